// Package artifacts provides content-addressed storage for uploaded source
// documents and generated report bodies. Blobs are keyed by their SHA-256
// hash so identical content is stored once and retrievals can be verified.
package artifacts

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"sync"
)

// Store is the contract for content-addressed blob storage.
type Store interface {
	// Put persists data and returns its content hash ("sha256:<hex>").
	Put(ctx context.Context, data []byte) (string, error)
	// Get retrieves data by its content hash.
	Get(ctx context.Context, hash string) ([]byte, error)
	// Exists reports whether a blob exists for the content hash.
	Exists(ctx context.Context, hash string) (bool, error)
	// Delete removes a blob by its content hash. Missing blobs are not an error.
	Delete(ctx context.Context, hash string) error
}

// hashBytes returns the prefixed content hash of data.
func hashBytes(data []byte) string {
	sum := sha256.Sum256(data)
	return "sha256:" + hex.EncodeToString(sum[:])
}

// rawHash strips the "sha256:" prefix and validates the hex digest.
func rawHash(hash string) (string, error) {
	raw, ok := strings.CutPrefix(hash, "sha256:")
	if !ok {
		return "", fmt.Errorf("invalid hash format: %s", hash)
	}
	if _, err := hex.DecodeString(raw); err != nil {
		return "", fmt.Errorf("invalid hash hex: %w", err)
	}
	return raw, nil
}

// FileStore is a filesystem-backed Store.
type FileStore struct {
	baseDir string
	mu      sync.RWMutex
}

// NewFileStore creates a blob store rooted at baseDir.
func NewFileStore(baseDir string) (*FileStore, error) {
	if err := os.MkdirAll(baseDir, 0o755); err != nil {
		return nil, fmt.Errorf("ensure archive dir: %w", err)
	}
	return &FileStore{baseDir: baseDir}, nil
}

func (s *FileStore) blobPath(raw string) string {
	return filepath.Join(s.baseDir, raw+".blob")
}

func (s *FileStore) Put(ctx context.Context, data []byte) (string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	hash := hashBytes(data)
	path := s.blobPath(strings.TrimPrefix(hash, "sha256:"))

	// Identical content is already present, nothing to write.
	if _, err := os.Stat(path); err == nil {
		return hash, nil
	}

	tmp := path + ".tmp"
	if err := os.WriteFile(tmp, data, 0o644); err != nil {
		return "", fmt.Errorf("write blob: %w", err)
	}
	if err := os.Rename(tmp, path); err != nil {
		return "", fmt.Errorf("commit blob: %w", err)
	}
	return hash, nil
}

func (s *FileStore) Get(ctx context.Context, hash string) ([]byte, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	raw, err := rawHash(hash)
	if err != nil {
		return nil, err
	}
	data, err := os.ReadFile(s.blobPath(raw))
	if err != nil {
		if os.IsNotExist(err) {
			return nil, fmt.Errorf("artifact not found: %s", hash)
		}
		return nil, err
	}
	return data, nil
}

func (s *FileStore) Exists(ctx context.Context, hash string) (bool, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	raw, err := rawHash(hash)
	if err != nil {
		return false, err
	}
	_, err = os.Stat(s.blobPath(raw))
	if err == nil {
		return true, nil
	}
	if os.IsNotExist(err) {
		return false, nil
	}
	return false, err
}

func (s *FileStore) Delete(ctx context.Context, hash string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	raw, err := rawHash(hash)
	if err != nil {
		return err
	}
	if err := os.Remove(s.blobPath(raw)); err != nil && !os.IsNotExist(err) {
		return fmt.Errorf("delete artifact: %w", err)
	}
	return nil
}
