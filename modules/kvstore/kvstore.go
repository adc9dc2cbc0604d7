// Package kvstore is an in-memory key-value package other packages can
// depend on as "kvstore".
package kvstore

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"sync"

	"github.com/bayleafwalker/packhost/config"
	"github.com/bayleafwalker/packhost/injector"
)

const EntryPoint = "kvstore"

var ErrFull = errors.New("kvstore: capacity reached")

type Store struct {
	mu       sync.RWMutex
	data     map[string]string
	capacity int
}

func NewStore() *Store {
	return &Store{data: make(map[string]string)}
}

func (s *Store) Get(key string) (string, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	v, ok := s.data[key]
	return v, ok
}

// Set stores value under key. Once capacity is reached only existing keys
// can be overwritten.
func (s *Store) Set(key, value string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, exists := s.data[key]; !exists && s.capacity > 0 && len(s.data) >= s.capacity {
		return fmt.Errorf("%w (%d entries)", ErrFull, s.capacity)
	}
	s.data[key] = value
	return nil
}

func (s *Store) Delete(key string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.data, key)
}

func (s *Store) Keys() []string {
	s.mu.RLock()
	defer s.mu.RUnlock()
	keys := make([]string, 0, len(s.data))
	for k := range s.data {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}

func (s *Store) Len() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.data)
}

// Factory builds the package. Scope keys:
//
//	capacity  maximum number of entries, 0 for unlimited
//	seed      map of entries loaded at init
var Factory = injector.FactoryOf(func(pkg *injector.Package, _ injector.Args) (any, error) {
	s := NewStore()
	pkg.OnInit(func(_ context.Context, scope *config.Scope) error {
		n := scope.GetInt("capacity")
		if n < 0 {
			return fmt.Errorf("capacity must not be negative, got %d", n)
		}
		s.mu.Lock()
		s.capacity = n
		s.mu.Unlock()

		seed, err := seedEntries(scope)
		if err != nil {
			return err
		}
		keys := make([]string, 0, len(seed))
		for k := range seed {
			keys = append(keys, k)
		}
		sort.Strings(keys)
		for _, k := range keys {
			if err := s.Set(k, seed[k]); err != nil {
				return fmt.Errorf("seed %q: %w", k, err)
			}
		}
		return nil
	})
	return s, nil
})

func seedEntries(scope *config.Scope) (map[string]string, error) {
	sub, err := scope.Sub("seed")
	if err != nil {
		return nil, err
	}
	out := make(map[string]string)
	for k, v := range sub.AllSettings() {
		if _, nested := v.(map[string]any); nested {
			return nil, fmt.Errorf("seed %q: nested values are not supported", k)
		}
		out[k] = fmt.Sprint(v)
	}
	return out, nil
}
