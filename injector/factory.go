package injector

import (
	"fmt"
	"reflect"
	"strings"
)

// Sigil marks a dependency name that should be resolved from the registry.
const Sigil = "$"

// Func is one factory function. recv is the package being initialized, or
// nil when the factory is invoked outside of orchestration.
type Func func(recv *Package, args Args) (any, error)

// Factory pairs an explicit list of dependency names with the functions that
// receive them.
type Factory struct {
	// Inject lists the names bound positionally into Args. Names carrying the
	// Sigil prefix are resolved through Injector.Get; all others stay unbound.
	Inject []string
	Funcs  []Func
}

// Inject starts a factory declaration:
//
//	injector.Inject("$config", "$kvstore").Func(newGreeter)
func Inject(names ...string) Factory {
	return Factory{Inject: names}
}

// Func appends fns to the factory.
func (f Factory) Func(fns ...Func) Factory {
	f.Funcs = append(append([]Func(nil), f.Funcs...), fns...)
	return f
}

// FactoryOf returns a factory without dependencies.
func FactoryOf(fns ...Func) Factory {
	return Factory{Funcs: fns}
}

// Args are the values bound for a factory's Inject list.
type Args struct {
	names  []string
	values []any
	bound  []bool
}

func (a Args) Len() int { return len(a.names) }

// Names returns the declared names, sigils included.
func (a Args) Names() []string { return append([]string(nil), a.names...) }

// Value returns the i-th bound value, or nil.
func (a Args) Value(i int) any {
	if i < 0 || i >= len(a.values) {
		return nil
	}
	return a.values[i]
}

// Bound reports whether the i-th name resolved to a value.
func (a Args) Bound(i int) bool {
	return i >= 0 && i < len(a.bound) && a.bound[i]
}

// Lookup finds a value by declared name. The sigil may be omitted.
func (a Args) Lookup(name string) (any, bool) {
	bare := strings.TrimPrefix(name, Sigil)
	for i, n := range a.names {
		if n == name || (strings.HasPrefix(n, Sigil) && n[len(Sigil):] == bare) {
			return a.values[i], a.bound[i]
		}
	}
	return nil, false
}

// Arg returns the named argument as T. A resolved package is unwrapped to its
// exports unless T is *Package.
func Arg[T any](a Args, name string) (T, error) {
	var zero T
	v, ok := a.Lookup(name)
	if !ok {
		return zero, fmt.Errorf("%w: %q", ErrNotBound, name)
	}
	if out, ok := v.(T); ok {
		return out, nil
	}
	if pkg, ok := v.(*Package); ok {
		if out, ok := pkg.Exports().(T); ok {
			return out, nil
		}
		return zero, fmt.Errorf("argument %q: package %q exports %T, not %s",
			name, pkg.Name(), pkg.Exports(), reflect.TypeFor[T]())
	}
	return zero, fmt.Errorf("argument %q is %T, not %s", name, v, reflect.TypeFor[T]())
}
