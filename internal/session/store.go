// Package session persists the client's authentication state: the staff
// token, the customer token and the identities that belong to them.
package session

import (
	"context"
	"sort"
	"sync"
)

// Well-known session keys.
const (
	KeyToken         = "token"
	KeyCustomerToken = "customer_token"
	KeyUser          = "user"
	KeyCustomer      = "customer"
)

// AllKeys lists every key cleared on logout or session expiry.
var AllKeys = []string{KeyToken, KeyCustomerToken, KeyUser, KeyCustomer}

// Store is a small key/value store for session state.
type Store interface {
	// Get returns the value for key and whether it was present.
	Get(ctx context.Context, key string) (string, bool, error)

	// Set writes key.
	Set(ctx context.Context, key, value string) error

	// Delete removes keys. Missing keys are ignored.
	Delete(ctx context.Context, keys ...string) error

	// List returns every stored key/value pair.
	List(ctx context.Context) (map[string]string, error)
}

// Token returns the bearer token: the staff token if set, else the customer token.
func Token(ctx context.Context, s Store) (string, error) {
	for _, key := range []string{KeyToken, KeyCustomerToken} {
		v, ok, err := s.Get(ctx, key)
		if err != nil {
			return "", err
		}
		if ok && v != "" {
			return v, nil
		}
	}
	return "", nil
}

// Clear removes all session keys.
func Clear(ctx context.Context, s Store) error {
	return s.Delete(ctx, AllKeys...)
}

// MemoryStore is an in-process Store.
type MemoryStore struct {
	mu     sync.RWMutex
	values map[string]string
}

// NewMemoryStore returns an empty MemoryStore.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{values: make(map[string]string)}
}

func (m *MemoryStore) Get(_ context.Context, key string) (string, bool, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	v, ok := m.values[key]
	return v, ok, nil
}

func (m *MemoryStore) Set(_ context.Context, key, value string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.values[key] = value
	return nil
}

func (m *MemoryStore) Delete(_ context.Context, keys ...string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, k := range keys {
		delete(m.values, k)
	}
	return nil
}

func (m *MemoryStore) List(_ context.Context) (map[string]string, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	out := make(map[string]string, len(m.values))
	for k, v := range m.values {
		out[k] = v
	}
	return out, nil
}

// SortedKeys returns the keys of a List result in a stable order.
func SortedKeys(values map[string]string) []string {
	keys := make([]string, 0, len(values))
	for k := range values {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}
