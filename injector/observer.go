package injector

import "context"

// Observer is told about every package state transition. Calls are made from
// the goroutine driving Initialize, one at a time, in transition order.
type Observer interface {
	OnStateChange(ctx context.Context, pkg *Package, from, to State, err error)
}

// ObserverFunc adapts a function to Observer.
type ObserverFunc func(ctx context.Context, pkg *Package, from, to State, err error)

func (f ObserverFunc) OnStateChange(ctx context.Context, pkg *Package, from, to State, err error) {
	f(ctx, pkg, from, to, err)
}

func (in *Injector) notify(ctx context.Context, pkg *Package, from, to State, err error) {
	log := in.log.WithValues("package", pkg.Name())
	if err != nil {
		log.V(1).Info("state change", "from", from.String(), "to", to.String(), "error", err.Error())
	} else {
		log.V(1).Info("state change", "from", from.String(), "to", to.String())
	}
	for _, obs := range in.observers {
		obs.OnStateChange(ctx, pkg, from, to, err)
	}
}
