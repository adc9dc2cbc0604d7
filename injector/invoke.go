package injector

import (
	"fmt"
	"strings"
)

// Invoke resolves f's dependency names and calls each of its functions with
// the same Args and receiver. Results are returned in function order; the
// first error stops the remaining functions.
func (in *Injector) Invoke(f Factory, recv *Package) ([]any, error) {
	if len(f.Funcs) == 0 {
		return nil, ErrEmptyFactory
	}
	args := in.bind(f.Inject)

	results := make([]any, 0, len(f.Funcs))
	for i, fn := range f.Funcs {
		out, err := call(fn, recv, args)
		if err != nil {
			if len(f.Funcs) > 1 {
				err = fmt.Errorf("factory func %d: %w", i, err)
			}
			return results, err
		}
		results = append(results, out)
	}
	return results, nil
}

func (in *Injector) bind(names []string) Args {
	args := Args{
		names:  append([]string(nil), names...),
		values: make([]any, len(names)),
		bound:  make([]bool, len(names)),
	}
	for i, name := range names {
		dep, ok := strings.CutPrefix(name, Sigil)
		if !ok {
			continue
		}
		args.values[i], args.bound[i] = in.Get(dep)
	}
	return args
}

func call(fn Func, recv *Package, args Args) (out any, err error) {
	defer func() {
		if r := recover(); r != nil {
			err = PanicError{Value: r}
		}
	}()
	return fn(recv, args)
}
