// Package secret retrieves named secrets as maps of string fields. Secrets
// hold database credentials and named SQL fragments; callers receive them
// through the Store interface regardless of which backend holds them.
package secret

import (
	"context"
	"errors"
	"fmt"
	"sync"

	"github.com/99designs/keyring"
	"github.com/aws/aws-sdk-go-v2/service/secretsmanager"
	"github.com/aws/aws-sdk-go-v2/service/secretsmanager/types"
	json "github.com/goccy/go-json"
	"github.com/gurre/dskit/aws"
)

// ErrNotFound is returned when no secret exists under the requested name.
var ErrNotFound = errors.New("secret not found")

// PlainKey is the field used for secrets stored as a bare string rather than a JSON object.
const PlainKey = "value"

// Store defines the contract for secret lookups.
// Example:
//
//	var store secret.Store
//	fields, err := store.Get(ctx, "nordypy_teradata")
//	if err != nil {
//	    log.Fatal(err)
//	}
//	sql := fields["get_data"]
type Store interface {
	Get(ctx context.Context, name string) (map[string]string, error)
}

// SecretsManagerStore implements Store using AWS Secrets Manager.
type SecretsManagerStore struct {
	client aws.SecretsManagerClient
}

// NewSecretsManagerStore creates a new SecretsManagerStore instance
func NewSecretsManagerStore(client aws.SecretsManagerClient) *SecretsManagerStore {
	return &SecretsManagerStore{client: client}
}

// Get fetches the current version of the secret and decodes its SecretString.
func (s *SecretsManagerStore) Get(ctx context.Context, name string) (map[string]string, error) {
	resp, err := s.client.GetSecretValue(ctx, &secretsmanager.GetSecretValueInput{
		SecretId: &name,
	})
	if err != nil {
		var notFound *types.ResourceNotFoundException
		if errors.As(err, &notFound) {
			return nil, fmt.Errorf("%w: %s", ErrNotFound, name)
		}
		return nil, fmt.Errorf("failed to get secret %s: %w", name, err)
	}

	switch {
	case resp.SecretString != nil:
		return decode([]byte(*resp.SecretString))
	case resp.SecretBinary != nil:
		return decode(resp.SecretBinary)
	}
	return nil, fmt.Errorf("secret %s has no value", name)
}

// KeyringStore implements Store using the operating system keyring. Item data
// holds the same JSON document a Secrets Manager secret would.
type KeyringStore struct {
	ring keyring.Keyring
}

// NewKeyringStore wraps an already opened keyring.
func NewKeyringStore(ring keyring.Keyring) *KeyringStore {
	return &KeyringStore{ring: ring}
}

// OpenKeyringStore opens the platform keyring for serviceName.
func OpenKeyringStore(serviceName string) (*KeyringStore, error) {
	ring, err := keyring.Open(keyring.Config{
		ServiceName: serviceName,
		PassPrefix:  serviceName,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to open keyring: %w", err)
	}
	return NewKeyringStore(ring), nil
}

// Get reads the keyring item named name.
func (s *KeyringStore) Get(ctx context.Context, name string) (map[string]string, error) {
	item, err := s.ring.Get(name)
	if err != nil {
		if errors.Is(err, keyring.ErrKeyNotFound) {
			return nil, fmt.Errorf("%w: %s", ErrNotFound, name)
		}
		return nil, fmt.Errorf("failed to read keyring item %s: %w", name, err)
	}
	return decode(item.Data)
}

// Put stores fields under name as a JSON document.
func (s *KeyringStore) Put(ctx context.Context, name string, fields map[string]string) error {
	data, err := json.Marshal(fields)
	if err != nil {
		return fmt.Errorf("failed to encode secret: %w", err)
	}
	if err := s.ring.Set(keyring.Item{Key: name, Data: data}); err != nil {
		return fmt.Errorf("failed to write keyring item %s: %w", name, err)
	}
	return nil
}

// MemoryStore implements Store using memory storage.
// It's primarily intended for testing purposes.
type MemoryStore struct {
	mu      sync.RWMutex
	secrets map[string]map[string]string
}

// NewMemoryStore creates a new MemoryStore instance
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{secrets: make(map[string]map[string]string)}
}

// Get returns a copy of the fields stored under name.
func (s *MemoryStore) Get(ctx context.Context, name string) (map[string]string, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	fields, ok := s.secrets[name]
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrNotFound, name)
	}
	return copyFields(fields), nil
}

// Put stores a copy of fields under name.
func (s *MemoryStore) Put(ctx context.Context, name string, fields map[string]string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.secrets[name] = copyFields(fields)
	return nil
}

// decode turns a secret payload into fields. JSON objects have every value
// rendered as a string; anything else is returned under PlainKey.
func decode(data []byte) (map[string]string, error) {
	var raw map[string]any
	if err := json.Unmarshal(data, &raw); err != nil {
		return map[string]string{PlainKey: string(data)}, nil
	}

	fields := make(map[string]string, len(raw))
	for k, v := range raw {
		switch val := v.(type) {
		case string:
			fields[k] = val
		case nil:
			fields[k] = ""
		default:
			encoded, err := json.Marshal(val)
			if err != nil {
				return nil, fmt.Errorf("failed to encode secret field %s: %w", k, err)
			}
			fields[k] = string(encoded)
		}
	}
	return fields, nil
}

func copyFields(in map[string]string) map[string]string {
	out := make(map[string]string, len(in))
	for k, v := range in {
		out[k] = v
	}
	return out
}

// Compile-time interface checks
var (
	_ Store = (*SecretsManagerStore)(nil)
	_ Store = (*KeyringStore)(nil)
	_ Store = (*MemoryStore)(nil)
)
