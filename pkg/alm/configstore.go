package alm

import (
	"crypto/cipher"
	"crypto/rand"
	"crypto/sha256"
	"encoding/json"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"
	"sync"

	"github.com/santhosh-tekuri/jsonschema/v5"
	"golang.org/x/crypto/chacha20poly1305"
	"golang.org/x/crypto/hkdf"
)

// configSchema validates connection configs before they are accepted. Keeps
// malformed platform names and missing credentials out of the sealed store.
const configSchema = `{
	"type": "object",
	"required": ["platform", "base_url", "username", "password"],
	"properties": {
		"platform": {"type": "string", "enum": ["jira", "azure_devops", "azuredevops", "azure", "polarion"]},
		"base_url": {"type": "string", "minLength": 1},
		"username": {"type": "string", "minLength": 1},
		"password": {"type": "string", "minLength": 1},
		"project_key": {"type": "string"},
		"disabled": {"type": "boolean"}
	}
}`

// ConfigStore keeps named platform connections on disk. Credentials are
// sealed with a key derived from the master secret, so the file at rest
// never contains plaintext passwords.
type ConfigStore struct {
	mu     sync.Mutex
	path   string
	aead   cipher.AEAD
	schema *jsonschema.Schema
}

// NewConfigStore opens or creates the store at path. masterSecret is the
// process-level secret the sealing key is derived from.
func NewConfigStore(path string, masterSecret []byte) (*ConfigStore, error) {
	if len(masterSecret) == 0 {
		return nil, fmt.Errorf("alm config store: empty master secret")
	}

	key := make([]byte, chacha20poly1305.KeySize)
	kdf := hkdf.New(sha256.New, masterSecret, nil, []byte("alm-config-store"))
	if _, err := io.ReadFull(kdf, key); err != nil {
		return nil, fmt.Errorf("alm config store: derive key: %w", err)
	}
	aead, err := chacha20poly1305.NewX(key)
	if err != nil {
		return nil, fmt.Errorf("alm config store: init cipher: %w", err)
	}

	c := jsonschema.NewCompiler()
	c.Draft = jsonschema.Draft2020
	schemaURL := "https://conformance.schemas.local/alm/config.schema.json"
	if err := c.AddResource(schemaURL, strings.NewReader(configSchema)); err != nil {
		return nil, fmt.Errorf("alm config store: schema load failed: %w", err)
	}
	schema, err := c.Compile(schemaURL)
	if err != nil {
		return nil, fmt.Errorf("alm config store: schema compile failed: %w", err)
	}

	if dir := filepath.Dir(path); dir != "." {
		if err := os.MkdirAll(dir, 0o700); err != nil {
			return nil, fmt.Errorf("alm config store: %w", err)
		}
	}

	return &ConfigStore{path: path, aead: aead, schema: schema}, nil
}

type sealedEntry struct {
	Platform string `json:"platform"`
	Nonce    []byte `json:"nonce"`
	Sealed   []byte `json:"sealed"`
}

// Save validates and seals one named connection.
func (s *ConfigStore) Save(name string, cfg Config) error {
	if name == "" {
		return fmt.Errorf("alm config store: empty connection name")
	}

	raw, err := json.Marshal(cfg)
	if err != nil {
		return err
	}
	var loose any
	if err := json.Unmarshal(raw, &loose); err != nil {
		return err
	}
	if err := s.schema.Validate(loose); err != nil {
		return fmt.Errorf("alm config store: invalid config: %w", err)
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	entries, err := s.load()
	if err != nil {
		return err
	}

	nonce := make([]byte, chacha20poly1305.NonceSizeX)
	if _, err := rand.Read(nonce); err != nil {
		return fmt.Errorf("alm config store: nonce: %w", err)
	}
	entries[name] = sealedEntry{
		Platform: cfg.Platform,
		Nonce:    nonce,
		Sealed:   s.aead.Seal(nil, nonce, raw, []byte(name)),
	}
	return s.flush(entries)
}

// Load unseals one named connection.
func (s *ConfigStore) Load(name string) (Config, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	entries, err := s.load()
	if err != nil {
		return Config{}, err
	}
	entry, ok := entries[name]
	if !ok {
		return Config{}, fmt.Errorf("alm config store: unknown connection %q", name)
	}

	raw, err := s.aead.Open(nil, entry.Nonce, entry.Sealed, []byte(name))
	if err != nil {
		return Config{}, fmt.Errorf("alm config store: unseal %q: %w", name, err)
	}
	var cfg Config
	if err := json.Unmarshal(raw, &cfg); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

// Connect loads a named connection and builds its connector. Disabled
// connections refuse to connect.
func (s *ConfigStore) Connect(name string) (Connector, error) {
	cfg, err := s.Load(name)
	if err != nil {
		return nil, err
	}
	if cfg.Disabled {
		return nil, fmt.Errorf("alm config store: connection %q is disabled", name)
	}
	return New(cfg)
}

// SetDisabled flips the disabled flag on a named connection.
func (s *ConfigStore) SetDisabled(name string, disabled bool) error {
	cfg, err := s.Load(name)
	if err != nil {
		return err
	}
	cfg.Disabled = disabled
	return s.Save(name, cfg)
}

// List returns connection names and their platforms, never credentials.
func (s *ConfigStore) List() (map[string]string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	entries, err := s.load()
	if err != nil {
		return nil, err
	}
	out := make(map[string]string, len(entries))
	for name, e := range entries {
		out[name] = e.Platform
	}
	return out, nil
}

// Delete removes one named connection; deleting a missing name is a no-op.
func (s *ConfigStore) Delete(name string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	entries, err := s.load()
	if err != nil {
		return err
	}
	if _, ok := entries[name]; !ok {
		return nil
	}
	delete(entries, name)
	return s.flush(entries)
}

func (s *ConfigStore) load() (map[string]sealedEntry, error) {
	data, err := os.ReadFile(s.path)
	if os.IsNotExist(err) {
		return map[string]sealedEntry{}, nil
	}
	if err != nil {
		return nil, fmt.Errorf("alm config store: read: %w", err)
	}
	var entries map[string]sealedEntry
	if err := json.Unmarshal(data, &entries); err != nil {
		return nil, fmt.Errorf("alm config store: parse: %w", err)
	}
	return entries, nil
}

func (s *ConfigStore) flush(entries map[string]sealedEntry) error {
	data, err := json.MarshalIndent(entries, "", "  ")
	if err != nil {
		return err
	}
	tmp := s.path + ".tmp"
	if err := os.WriteFile(tmp, data, 0o600); err != nil {
		return fmt.Errorf("alm config store: write: %w", err)
	}
	return os.Rename(tmp, s.path)
}
