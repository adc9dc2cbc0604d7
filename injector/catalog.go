package injector

import (
	"fmt"
	"sort"
	"sync"
)

// Catalog maps manifest entry points to compiled factories. Go cannot load
// code from a package directory, so every package a host can run is linked
// in and registered here under the name its manifest's "main" field uses.
type Catalog struct {
	mu        sync.RWMutex
	factories map[string]Factory
}

func NewCatalog() *Catalog {
	return &Catalog{factories: make(map[string]Factory)}
}

// Register adds a factory. It panics on an empty or duplicate name, since
// both are programming errors in the host binary.
func (c *Catalog) Register(entryPoint string, f Factory) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if entryPoint == "" {
		panic("injector: catalog entry point must not be empty")
	}
	if _, dup := c.factories[entryPoint]; dup {
		panic(fmt.Sprintf("injector: entry point %q registered twice", entryPoint))
	}
	c.factories[entryPoint] = f
}

func (c *Catalog) Lookup(entryPoint string) (Factory, bool) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	f, ok := c.factories[entryPoint]
	return f, ok
}

// EntryPoints returns the registered names, sorted.
func (c *Catalog) EntryPoints() []string {
	c.mu.RLock()
	defer c.mu.RUnlock()
	out := make([]string, 0, len(c.factories))
	for name := range c.factories {
		out = append(out, name)
	}
	sort.Strings(out)
	return out
}
