package metrics

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"

	"github.com/bayleafwalker/packhost/config"
	"github.com/bayleafwalker/packhost/injector"
	"github.com/bayleafwalker/packhost/internal/discovery"
	"github.com/bayleafwalker/packhost/internal/manifest"
)

func candidate(name string, deps map[string]string) discovery.Candidate {
	return discovery.Candidate{
		Origin:   "test/" + name,
		Manifest: &manifest.Manifest{Name: name, Version: "1.0.0", Dependencies: deps, Keywords: []string{manifest.MarkerKeyword}},
	}
}

func TestRecorder_ObservesLifecycle(t *testing.T) {
	reg := prometheus.NewRegistry()
	rec, err := NewRecorder(reg)
	if err != nil {
		t.Fatalf("NewRecorder: %v", err)
	}
	tick := time.Unix(0, 0)
	rec.now = func() time.Time {
		tick = tick.Add(250 * time.Millisecond)
		return tick
	}

	cat := injector.NewCatalog()
	cat.Register("db", injector.FactoryOf(func(*injector.Package, injector.Args) (any, error) { return nil, nil }))
	cat.Register("api", injector.FactoryOf(func(pkg *injector.Package, _ injector.Args) (any, error) {
		pkg.OnInit(func(context.Context, *config.Scope) error { return errors.New("port in use") })
		return nil, nil
	}))
	in := injector.New(injector.WithCatalog(cat), injector.WithObserver(rec))

	pkgs, err := in.LoadPackages(context.Background(), discovery.Static(
		candidate("db", nil),
		candidate("api", map[string]string{"db": "*"}),
	))
	if err != nil {
		t.Fatalf("LoadPackages: %v", err)
	}
	rec.ObserveLoad(len(pkgs), 0)
	if err := in.Initialize(context.Background()); err == nil {
		t.Fatalf("expected api to fail")
	}

	if got := testutil.ToFloat64(rec.packagesLoaded); got != 2 {
		t.Fatalf("expected 2 loaded packages, got %v", got)
	}
	if got := testutil.ToFloat64(rec.packageReady.WithLabelValues("db")); got != 1 {
		t.Fatalf("expected db ready gauge 1, got %v", got)
	}
	if got := testutil.ToFloat64(rec.packageReady.WithLabelValues("api")); got != 0 {
		t.Fatalf("expected api ready gauge 0, got %v", got)
	}
	if got := testutil.ToFloat64(rec.failuresTotal.WithLabelValues("api", "init")); got != 1 {
		t.Fatalf("expected one init failure for api, got %v", got)
	}
	if got := testutil.ToFloat64(rec.transitionsTotal.WithLabelValues("Initializing")); got != 2 {
		t.Fatalf("expected 2 Initializing transitions, got %v", got)
	}
	if got := testutil.CollectAndCount(rec.initDuration); got != 2 {
		t.Fatalf("expected ready and failed duration series, got %d", got)
	}
}

func TestRecorder_ValidationFailure(t *testing.T) {
	reg := prometheus.NewRegistry()
	rec, err := NewRecorder(reg)
	if err != nil {
		t.Fatalf("NewRecorder: %v", err)
	}

	cat := injector.NewCatalog()
	cat.Register("api", injector.FactoryOf(func(*injector.Package, injector.Args) (any, error) { return nil, nil }))
	in := injector.New(injector.WithCatalog(cat), injector.WithObserver(rec))
	if _, err := in.LoadPackages(context.Background(), discovery.Static(candidate("api", map[string]string{"db": "*"}))); err != nil {
		t.Fatalf("LoadPackages: %v", err)
	}
	_ = in.Initialize(context.Background())

	if got := testutil.ToFloat64(rec.failuresTotal.WithLabelValues("api", "validation")); got != 1 {
		t.Fatalf("expected one validation failure, got %v", got)
	}
	if got := testutil.CollectAndCount(rec.initDuration); got != 0 {
		t.Fatalf("expected no init durations, got %d", got)
	}
}

func TestNewRecorder_DuplicateRegistration(t *testing.T) {
	reg := prometheus.NewRegistry()
	if _, err := NewRecorder(reg); err != nil {
		t.Fatalf("NewRecorder: %v", err)
	}
	if _, err := NewRecorder(reg); err == nil {
		t.Fatalf("expected duplicate registration error")
	}
}
