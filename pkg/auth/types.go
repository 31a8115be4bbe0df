// Package auth provides JWT authentication and request middleware for the
// conformance API.
package auth

// Principal is any authenticated entity making a request.
type Principal interface {
	GetID() string
	GetRoles() []string
	HasRole(role string) bool
}

// BasePrincipal is a simple implementation of Principal.
type BasePrincipal struct {
	ID    string
	Roles []string
}

func (b *BasePrincipal) GetID() string {
	return b.ID
}

func (b *BasePrincipal) GetRoles() []string {
	return b.Roles
}

// HasRole reports whether the principal carries the role. Admins implicitly
// hold every role.
func (b *BasePrincipal) HasRole(role string) bool {
	for _, r := range b.Roles {
		if r == role || r == "admin" {
			return true
		}
	}
	return false
}
