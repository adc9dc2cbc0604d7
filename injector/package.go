package injector

import (
	"context"
	"maps"
	"sync"

	"github.com/go-logr/logr"

	"github.com/bayleafwalker/packhost/config"
	"github.com/bayleafwalker/packhost/internal/manifest"
)

// State is a package's position in the initialization lifecycle.
type State int

const (
	StateUnregistered State = iota
	StateDependencyChecked
	StateVersionChecked
	StateOrdered
	StateInitializing
	StateReady
	StateFailed
)

func (s State) String() string {
	switch s {
	case StateUnregistered:
		return "Unregistered"
	case StateDependencyChecked:
		return "DependencyChecked"
	case StateVersionChecked:
		return "VersionChecked"
	case StateOrdered:
		return "Ordered"
	case StateInitializing:
		return "Initializing"
	case StateReady:
		return "Ready"
	case StateFailed:
		return "Failed"
	default:
		return "Unknown"
	}
}

// Terminal reports whether no further transition can happen.
func (s State) Terminal() bool { return s == StateReady || s == StateFailed }

// InitFunc is a package's init handler. It runs once, after the package's
// factory, with the package's configuration scope. It should return once ctx
// is done.
type InitFunc func(ctx context.Context, scope *config.Scope) error

// Handler receives the arguments of an emitted event.
type Handler func(args ...any)

// Package is one loaded unit.
type Package struct {
	manifest *manifest.Manifest
	origin   string
	factory  Factory
	injector *Injector

	mu       sync.RWMutex
	state    State
	lastErr  error
	exports  any
	scope    *config.Scope
	initFns  []InitFunc
	handlers map[string][]Handler
}

func newPackage(in *Injector, m *manifest.Manifest, origin string, f Factory) *Package {
	return &Package{
		manifest: m,
		origin:   origin,
		factory:  f,
		injector: in,
		handlers: make(map[string][]Handler),
	}
}

func (p *Package) Name() string    { return p.manifest.Name }
func (p *Package) Version() string { return p.manifest.Version }

// Origin is where the package was discovered.
func (p *Package) Origin() string { return p.origin }

// Dependencies returns a copy of the declared dependency ranges.
func (p *Package) Dependencies() map[string]string {
	return maps.Clone(p.manifest.Dependencies)
}

// Injector is the owning injector. Factories may use it to register
// additional capabilities.
func (p *Package) Injector() *Injector { return p.injector }

// Logger returns the injector's logger named after the package.
func (p *Package) Logger() logr.Logger {
	return p.injector.log.WithName(p.Name()).WithValues("package", p.Name(), "version", p.Version())
}

func (p *Package) State() State {
	p.mu.RLock()
	defer p.mu.RUnlock()
	return p.state
}

// Err returns the error that moved the package to StateFailed, if any.
func (p *Package) Err() error {
	p.mu.RLock()
	defer p.mu.RUnlock()
	return p.lastErr
}

// Exports is what the package's factory returned.
func (p *Package) Exports() any {
	p.mu.RLock()
	defer p.mu.RUnlock()
	return p.exports
}

// Scope is the package's configuration namespace. It is nil until the
// package starts initializing.
func (p *Package) Scope() *config.Scope {
	p.mu.RLock()
	defer p.mu.RUnlock()
	return p.scope
}

// OnInit registers an init handler. Handlers run in registration order; the
// first error fails the package.
func (p *Package) OnInit(fn InitFunc) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.initFns = append(p.initFns, fn)
}

// On registers a handler for event.
func (p *Package) On(event string, h Handler) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.handlers[event] = append(p.handlers[event], h)
}

// Emit calls every handler registered for event synchronously and returns
// how many ran.
func (p *Package) Emit(event string, args ...any) int {
	p.mu.RLock()
	hs := append([]Handler(nil), p.handlers[event]...)
	p.mu.RUnlock()
	for _, h := range hs {
		h(args...)
	}
	return len(hs)
}

func (p *Package) initHandlers() []InitFunc {
	p.mu.RLock()
	defer p.mu.RUnlock()
	return append([]InitFunc(nil), p.initFns...)
}

func (p *Package) setExports(v any) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.exports = v
}

func (p *Package) setScope(s *config.Scope) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.scope = s
}

func (p *Package) transition(ctx context.Context, to State, err error) {
	p.mu.Lock()
	from := p.state
	p.state = to
	if to == StateFailed {
		p.lastErr = err
	}
	p.mu.Unlock()
	p.injector.notify(ctx, p, from, to, err)
}
