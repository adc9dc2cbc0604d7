// Package modules registers the built-in package entry points.
package modules

import (
	"github.com/bayleafwalker/packhost/injector"
	"github.com/bayleafwalker/packhost/modules/greeter"
	"github.com/bayleafwalker/packhost/modules/kvstore"
	"github.com/bayleafwalker/packhost/modules/natsbus"
)

// Register adds every built-in entry point to c.
func Register(c *injector.Catalog) {
	c.Register(kvstore.EntryPoint, kvstore.Factory)
	c.Register(greeter.EntryPoint, greeter.Factory)
	c.Register(natsbus.EntryPoint, natsbus.Factory)
}

// Catalog returns a new catalog holding the built-in entry points.
func Catalog() *injector.Catalog {
	c := injector.NewCatalog()
	Register(c)
	return c
}
