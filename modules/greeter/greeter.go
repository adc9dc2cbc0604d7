// Package greeter greets whoever emits "hello" at it and keeps a log of
// greetings in the kvstore package.
package greeter

import (
	"context"
	"fmt"
	"strconv"
	"sync"

	"github.com/bayleafwalker/packhost/config"
	"github.com/bayleafwalker/packhost/injector"
	"github.com/bayleafwalker/packhost/modules/kvstore"
)

const (
	EntryPoint = "greeter"
	// HelloEvent is the event other packages emit to be greeted.
	HelloEvent = "hello"

	defaultMessage = "hello"
)

type Greeter struct {
	store *kvstore.Store

	mu    sync.Mutex
	msg   string
	count int
}

// Greet returns the greeting for name and records it.
func (g *Greeter) Greet(name string) (string, error) {
	g.mu.Lock()
	g.count++
	n := g.count
	msg := g.msg
	g.mu.Unlock()

	greeting := fmt.Sprintf("%s, %s", msg, name)
	if err := g.store.Set("greeter.greeting."+strconv.Itoa(n), greeting); err != nil {
		return "", err
	}
	return greeting, nil
}

func (g *Greeter) Count() int {
	g.mu.Lock()
	defer g.mu.Unlock()
	return g.count
}

// Factory builds the package. It depends on kvstore. Scope keys:
//
//	msg  greeting prefix, "hello" by default
var Factory = injector.Inject("$kvstore").Func(func(pkg *injector.Package, args injector.Args) (any, error) {
	store, err := injector.Arg[*kvstore.Store](args, "$kvstore")
	if err != nil {
		return nil, err
	}
	g := &Greeter{store: store, msg: defaultMessage}

	pkg.OnInit(func(_ context.Context, scope *config.Scope) error {
		msg := scope.GetString("msg")
		if msg == "" {
			msg = defaultMessage
		}
		g.mu.Lock()
		g.msg = msg
		g.mu.Unlock()
		return store.Set("greeter.message", msg)
	})
	log := pkg.Logger()
	pkg.On(HelloEvent, func(args ...any) {
		for _, a := range args {
			name, ok := a.(string)
			if !ok {
				continue
			}
			if _, err := g.Greet(name); err != nil {
				log.Error(err, "greeting not recorded", "name", name)
			}
		}
	})
	return g, nil
})
