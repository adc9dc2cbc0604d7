package config

import (
	"fmt"
	"sync/atomic"
	"time"

	"github.com/spf13/viper"
)

// Scope is a namespaced view of a Store. Every key is resolved relative to
// the scope's prefix; there is no way to address a key outside of it.
type Scope struct {
	store  *Store
	prefix string
	// shared with every scope derived through Sub
	closed *atomic.Bool
}

// Path returns the absolute prefix of the scope.
func (s *Scope) Path() string { return s.prefix }

func (s *Scope) key(key string) (string, error) {
	if err := checkKey(key); err != nil {
		return "", err
	}
	return s.prefix + delimiter + key, nil
}

func (s *Scope) Get(key string) any {
	full, err := s.key(key)
	if err != nil {
		return nil
	}
	return s.store.Get(full)
}

func (s *Scope) GetString(key string) (out string) {
	s.get(key, func(v *viper.Viper, full string) { out = v.GetString(full) })
	return out
}

func (s *Scope) GetInt(key string) (out int) {
	s.get(key, func(v *viper.Viper, full string) { out = v.GetInt(full) })
	return out
}

func (s *Scope) GetBool(key string) (out bool) {
	s.get(key, func(v *viper.Viper, full string) { out = v.GetBool(full) })
	return out
}

func (s *Scope) GetDuration(key string) (out time.Duration) {
	s.get(key, func(v *viper.Viper, full string) { out = v.GetDuration(full) })
	return out
}

func (s *Scope) GetStringSlice(key string) (out []string) {
	s.get(key, func(v *viper.Viper, full string) { out = v.GetStringSlice(full) })
	return out
}

func (s *Scope) IsSet(key string) bool {
	full, err := s.key(key)
	if err != nil {
		return false
	}
	return s.store.IsSet(full)
}

func (s *Scope) Set(key string, value any) error {
	if s.closed.Load() {
		return fmt.Errorf("%w: %s", ErrScopeClosed, s.prefix)
	}
	full, err := s.key(key)
	if err != nil {
		return err
	}
	return s.store.Set(full, value)
}

// Sub returns a nested scope below key. Closing either scope closes both.
func (s *Scope) Sub(key string) (*Scope, error) {
	full, err := s.key(key)
	if err != nil {
		return nil, err
	}
	sub, err := s.store.Namespace(full)
	if err != nil {
		return nil, err
	}
	sub.closed = s.closed
	return sub, nil
}

// Close rejects every later Set through the scope and its subscopes with
// ErrScopeClosed. Reads keep working.
func (s *Scope) Close() { s.closed.Store(true) }

func (s *Scope) Closed() bool { return s.closed.Load() }

// AllSettings returns a copy of every value below the scope's prefix.
func (s *Scope) AllSettings() map[string]any {
	out := map[string]any{}
	s.store.read(func(v *viper.Viper) {
		if m, ok := asMap(v.Get(s.prefix)); ok {
			out = copyMap(m)
		}
	})
	return out
}

func (s *Scope) get(key string, fn func(v *viper.Viper, full string)) {
	full, err := s.key(key)
	if err != nil {
		return
	}
	s.store.read(func(v *viper.Viper) { fn(v, full) })
}
