// Package store persists work items and generated reports. The SQLite
// backend covers single-node deployments; report archival can run against
// Postgres in shared environments.
package store

import "errors"

// ErrNotFound is returned when a requested record does not exist.
var ErrNotFound = errors.New("record not found")

// ErrDuplicate is returned when a unique constraint would be violated.
var ErrDuplicate = errors.New("record already exists")
