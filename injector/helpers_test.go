package injector

import (
	"context"
	"sync"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/bayleafwalker/packhost/config"
	"github.com/bayleafwalker/packhost/internal/discovery"
	"github.com/bayleafwalker/packhost/internal/manifest"
)

type fixture struct {
	t     *testing.T
	cat   *Catalog
	cands []discovery.Candidate
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	return &fixture{t: t, cat: NewCatalog()}
}

func (f *fixture) add(name, version string, deps map[string]string, fac Factory) {
	f.cat.Register(name, fac)
	f.cands = append(f.cands, discovery.Candidate{
		Origin: "test/" + name,
		Manifest: &manifest.Manifest{
			Name:         name,
			Version:      version,
			Dependencies: deps,
			Keywords:     []string{manifest.MarkerKeyword},
		},
	})
}

func (f *fixture) build(opts ...Option) *Injector {
	f.t.Helper()
	in := New(append([]Option{WithCatalog(f.cat)}, opts...)...)
	_, err := in.LoadPackages(context.Background(), discovery.Static(f.cands...))
	require.NoError(f.t, err)
	return in
}

// journal records events across goroutines in order.
type journal struct {
	mu     sync.Mutex
	events []string
}

func (j *journal) add(e string) {
	j.mu.Lock()
	defer j.mu.Unlock()
	j.events = append(j.events, e)
}

func (j *journal) all() []string {
	j.mu.Lock()
	defer j.mu.Unlock()
	return append([]string(nil), j.events...)
}

// tracked returns a factory that journals its invocation and init.
func tracked(j *journal, name string, inject ...string) Factory {
	return Inject(inject...).Func(func(pkg *Package, _ Args) (any, error) {
		j.add("factory:" + name)
		pkg.OnInit(func(context.Context, *config.Scope) error {
			j.add("init:" + name)
			return nil
		})
		return name, nil
	})
}
