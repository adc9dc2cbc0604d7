package modules_test

import (
	"context"
	"strings"
	"sync"
	"testing"

	"github.com/go-logr/logr/funcr"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/bayleafwalker/packhost/injector"
	"github.com/bayleafwalker/packhost/internal/discovery"
	"github.com/bayleafwalker/packhost/internal/manifest"
	"github.com/bayleafwalker/packhost/modules"
	"github.com/bayleafwalker/packhost/modules/greeter"
	"github.com/bayleafwalker/packhost/modules/kvstore"
)

func candidate(name string, deps map[string]string) discovery.Candidate {
	return discovery.Candidate{
		Origin: "test/" + name,
		Manifest: &manifest.Manifest{
			Name:         name,
			Version:      "1.0.0",
			Dependencies: deps,
			Keywords:     []string{manifest.MarkerKeyword},
		},
	}
}

func TestCatalog_BuiltIns(t *testing.T) {
	assert.Equal(t, []string{"greeter", "kvstore", "natsbus"}, modules.Catalog().EntryPoints())
}

func TestGreeterOverKVStore(t *testing.T) {
	ctx := context.Background()
	in := injector.New(injector.WithCatalog(modules.Catalog()))
	require.NoError(t, in.InitConfig(map[string]any{
		"kvstore": map[string]any{"seed": map[string]any{"owner": "poying"}},
		"greeter": map[string]any{"msg": "hi"},
	}))

	// greeter is discovered first but must start after kvstore.
	_, err := in.LoadPackages(ctx, discovery.Static(
		candidate("greeter", map[string]string{"kvstore": "^1.0.0"}),
		candidate("kvstore", nil),
	))
	require.NoError(t, err)

	order, err := in.Plan(ctx)
	require.NoError(t, err)
	assert.Equal(t, []string{"kvstore", "greeter"}, order)

	require.NoError(t, in.Initialize(ctx))

	v, ok := in.Get("greeter")
	require.True(t, ok)
	pkg := v.(*injector.Package)
	g, ok := pkg.Exports().(*greeter.Greeter)
	require.True(t, ok)

	assert.Equal(t, 1, pkg.Emit(greeter.HelloEvent, "poying"))
	assert.Equal(t, 1, g.Count())

	out, err := g.Greet("gopher")
	require.NoError(t, err)
	assert.Equal(t, "hi, gopher", out)

	kv, _ := in.Package("kvstore")
	store := kv.Exports().(*kvstore.Store)
	owner, _ := store.Get("owner")
	assert.Equal(t, "poying", owner)
	first, _ := store.Get("greeter.greeting.1")
	assert.Equal(t, "hi, poying", first)
	msg, _ := store.Get("greeter.message")
	assert.Equal(t, "hi", msg)
}

func TestGreeterLogsUnrecordedGreeting(t *testing.T) {
	var (
		mu    sync.Mutex
		lines []string
	)
	log := funcr.New(func(prefix, args string) {
		mu.Lock()
		defer mu.Unlock()
		lines = append(lines, prefix+" "+args)
	}, funcr.Options{})

	ctx := context.Background()
	in := injector.New(injector.WithCatalog(modules.Catalog()), injector.WithLogger(log))
	require.NoError(t, in.InitConfig(map[string]any{"kvstore": map[string]any{"capacity": 1}}))
	_, err := in.LoadPackages(ctx, discovery.Static(
		candidate("kvstore", nil),
		candidate("greeter", map[string]string{"kvstore": "*"}),
	))
	require.NoError(t, err)
	require.NoError(t, in.Initialize(ctx))

	pkg, _ := in.Package("greeter")
	assert.Equal(t, 1, pkg.Emit(greeter.HelloEvent, "gopher"))

	mu.Lock()
	defer mu.Unlock()
	var found string
	for _, l := range lines {
		if strings.Contains(l, "greeting not recorded") {
			found = l
		}
	}
	require.NotEmpty(t, found, "logged: %v", lines)
	assert.Contains(t, found, "capacity reached")
	assert.Contains(t, found, `"name"="gopher"`)
	assert.Contains(t, found, `"package"="greeter"`)
}

func TestGreeterWithoutKVStore(t *testing.T) {
	ctx := context.Background()
	in := injector.New(injector.WithCatalog(modules.Catalog()))
	_, err := in.LoadPackages(ctx, discovery.Static(candidate("greeter", map[string]string{"kvstore": "*"})))
	require.NoError(t, err)

	err = in.Initialize(ctx)
	var missing injector.MissingDependencyError
	require.ErrorAs(t, err, &missing)

	pkg, _ := in.Package("greeter")
	assert.Equal(t, injector.StateFailed, pkg.State())
}
