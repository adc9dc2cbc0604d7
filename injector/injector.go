package injector

import (
	"sync"
	"time"

	"github.com/go-logr/logr"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/trace"

	"github.com/bayleafwalker/packhost/config"
	"github.com/bayleafwalker/packhost/internal/manifest"
	"github.com/bayleafwalker/packhost/internal/resolver"
)

// ConfigName is the capability name the configuration store is registered
// under.
const ConfigName = "config"

const tracerName = "github.com/bayleafwalker/packhost/injector"

// Injector owns the registry, the loaded packages and their configuration.
type Injector struct {
	mu           sync.RWMutex
	capabilities map[string]any
	ready        map[string]*Package
	loaded       []*Package
	byName       map[string]*Package
	started      bool

	config   *config.Store
	catalog  *Catalog
	resolver resolver.Resolver

	log         logr.Logger
	tracer      trace.Tracer
	marker      string
	initTimeout time.Duration
	observers   []Observer
}

type Option func(*Injector)

func WithLogger(log logr.Logger) Option {
	return func(in *Injector) { in.log = log }
}

// WithCatalog sets the catalog used to resolve manifest entry points.
func WithCatalog(c *Catalog) Option {
	return func(in *Injector) { in.catalog = c }
}

// WithMarker overrides the keyword a manifest must carry to be loaded.
func WithMarker(keyword string) Option {
	return func(in *Injector) { in.marker = keyword }
}

// WithInitTimeout bounds how long each package's init handlers may take.
// Zero waits indefinitely. A handler that overruns is not stopped: its ctx is
// canceled and its scope closed, so later writes fail with
// config.ErrScopeClosed, but the handler must return on its own.
func WithInitTimeout(d time.Duration) Option {
	return func(in *Injector) { in.initTimeout = d }
}

func WithTracerProvider(tp trace.TracerProvider) Option {
	return func(in *Injector) { in.tracer = tp.Tracer(tracerName) }
}

func WithObserver(obs ...Observer) Option {
	return func(in *Injector) { in.observers = append(in.observers, obs...) }
}

// WithConfigStore replaces the configuration store created by New.
func WithConfigStore(s *config.Store) Option {
	return func(in *Injector) { in.config = s }
}

// New returns an injector with the configuration store registered under
// ConfigName.
func New(opts ...Option) *Injector {
	in := &Injector{
		capabilities: make(map[string]any),
		ready:        make(map[string]*Package),
		byName:       make(map[string]*Package),
		config:       config.NewStore(),
		catalog:      NewCatalog(),
		resolver:     resolver.NewDefault(),
		log:          logr.Discard(),
		tracer:       otel.GetTracerProvider().Tracer(tracerName),
		marker:       manifest.MarkerKeyword,
	}
	for _, opt := range opts {
		opt(in)
	}
	in.Register(ConfigName, in.config)
	return in
}

// Register stores a bare capability. A later call with the same name
// replaces the earlier value.
func (in *Injector) Register(name string, value any) {
	in.mu.Lock()
	defer in.mu.Unlock()
	in.capabilities[name] = value
}

// Get returns the initialized package registered as name, else the bare
// capability, else (nil, false).
func (in *Injector) Get(name string) (any, bool) {
	in.mu.RLock()
	defer in.mu.RUnlock()
	if pkg, ok := in.ready[name]; ok {
		return pkg, true
	}
	v, ok := in.capabilities[name]
	return v, ok
}

// InitConfig merges values under config.RootNamespace. Package scopes are
// rooted below it, so values["greeter"] is what the greeter package sees.
func (in *Injector) InitConfig(values map[string]any) error {
	if len(values) == 0 {
		return nil
	}
	return in.config.Merge(config.RootNamespace, values)
}

func (in *Injector) Config() *config.Store { return in.config }

func (in *Injector) Catalog() *Catalog { return in.catalog }

// Packages returns the loaded packages in discovery order.
func (in *Injector) Packages() []*Package {
	in.mu.RLock()
	defer in.mu.RUnlock()
	return append([]*Package(nil), in.loaded...)
}

// Package returns a loaded package whether or not it is initialized.
func (in *Injector) Package(name string) (*Package, bool) {
	in.mu.RLock()
	defer in.mu.RUnlock()
	p, ok := in.byName[name]
	return p, ok
}
