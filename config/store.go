// Package config provides the hierarchical key-value store handed to packages.
//
// Keys are dot-delimited paths ("db.pool.size") and, as with viper, case
// insensitive. Each package receives a Scope rooted at its own namespace so
// that one package's reads and writes cannot reach another package's keys.
package config

import (
	"errors"
	"fmt"
	"strings"
	"sync"
	"sync/atomic"

	"github.com/spf13/viper"
)

// RootNamespace is the reserved prefix under which the bootstrap
// configuration is merged. Package scopes live below it.
const RootNamespace = "_.config"

const delimiter = "."

var (
	// ErrInvalidKey is returned for empty keys and keys with empty path
	// segments, including keys of nested maps.
	ErrInvalidKey = errors.New("config: invalid key")
	// ErrScopeClosed is returned by writes through a closed Scope.
	ErrScopeClosed = errors.New("config: scope closed")
)

// Store is a concurrency-safe hierarchical key-value store.
type Store struct {
	mu sync.RWMutex
	v  *viper.Viper
}

func NewStore() *Store {
	return &Store{v: viper.NewWithOptions(viper.KeyDelimiter(delimiter))}
}

// Get returns the value stored at key, or nil.
func (s *Store) Get(key string) any {
	if checkKey(key) != nil {
		return nil
	}
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.v.Get(key)
}

func (s *Store) IsSet(key string) bool {
	if checkKey(key) != nil {
		return false
	}
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.v.IsSet(key)
}

// Set stores value at key. Nested maps are stored leaf by leaf so that later
// writes to sibling keys merge instead of replacing the whole subtree.
func (s *Store) Set(key string, value any) error {
	if err := checkTree(key, value); err != nil {
		return err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	s.set(key, value)
	return nil
}

// Merge writes every entry of values below prefix.
func (s *Store) Merge(prefix string, values map[string]any) error {
	if err := checkKey(prefix); err != nil {
		return err
	}
	for k, v := range values {
		if err := checkTree(prefix+delimiter+k, v); err != nil {
			return err
		}
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	for k, v := range values {
		s.set(prefix+delimiter+k, v)
	}
	return nil
}

// AllSettings returns a copy of the whole tree.
func (s *Store) AllSettings() map[string]any {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return copyMap(s.v.AllSettings())
}

// Namespace returns a view rooted at prefix.
func (s *Store) Namespace(prefix string) (*Scope, error) {
	if err := checkKey(prefix); err != nil {
		return nil, err
	}
	return &Scope{store: s, prefix: strings.ToLower(prefix), closed: new(atomic.Bool)}, nil
}

func (s *Store) set(key string, value any) {
	if m, ok := asMap(value); ok && len(m) > 0 {
		for k, v := range m {
			s.set(key+delimiter+k, v)
		}
		return
	}
	s.v.Set(key, value)
}

func (s *Store) read(fn func(v *viper.Viper)) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	fn(s.v)
}

func checkKey(key string) error {
	if strings.TrimSpace(key) == "" {
		return fmt.Errorf("%w: empty key", ErrInvalidKey)
	}
	for _, seg := range strings.Split(key, delimiter) {
		if strings.TrimSpace(seg) == "" {
			return fmt.Errorf("%w: %q has an empty segment", ErrInvalidKey, key)
		}
	}
	return nil
}

// checkTree checks key and the key of every leaf below it.
func checkTree(key string, value any) error {
	if err := checkKey(key); err != nil {
		return err
	}
	m, ok := asMap(value)
	if !ok {
		return nil
	}
	for k, v := range m {
		if err := checkTree(key+delimiter+k, v); err != nil {
			return err
		}
	}
	return nil
}

func asMap(value any) (map[string]any, bool) {
	switch m := value.(type) {
	case map[string]any:
		return m, true
	case map[any]any:
		out := make(map[string]any, len(m))
		for k, v := range m {
			out[fmt.Sprint(k)] = v
		}
		return out, true
	default:
		return nil, false
	}
}

func copyMap(in map[string]any) map[string]any {
	if in == nil {
		return nil
	}
	out := make(map[string]any, len(in))
	for k, v := range in {
		if m, ok := asMap(v); ok {
			out[k] = copyMap(m)
			continue
		}
		out[k] = v
	}
	return out
}
