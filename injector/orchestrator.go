package injector

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/go-logr/logr"
	"github.com/google/uuid"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
	"k8s.io/apimachinery/pkg/util/sets"

	"github.com/bayleafwalker/packhost/config"
	"github.com/bayleafwalker/packhost/internal/resolver"
)

// Plan validates the loaded packages and returns the order Initialize would
// use, without changing any package state.
func (in *Injector) Plan(ctx context.Context) ([]string, error) {
	plan, err := in.resolve(ctx, in.Packages())
	return plan.Order, err
}

// Initialize validates every loaded package, orders them dependency-first and
// starts them one at a time. Each package's factory is invoked and its init
// handlers awaited before the next package is touched; a package becomes
// visible through Get only once its init handlers returned successfully.
//
// Validation problems are all reported together before anything starts. The
// first initialization failure halts the sequence and is returned as an
// InitializationError. Canceling ctx fails the next package to be started,
// even one without init handlers.
func (in *Injector) Initialize(ctx context.Context) error {
	in.mu.Lock()
	if in.started {
		in.mu.Unlock()
		return ErrAlreadyInitialized
	}
	in.started = true
	pkgs := append([]*Package(nil), in.loaded...)
	in.mu.Unlock()

	runID := uuid.NewString()
	log := in.log.WithName("orchestrator").WithValues("runID", runID)
	ctx, span := in.tracer.Start(ctx, "injector.Initialize", trace.WithAttributes(
		attribute.String("packhost.run_id", runID),
		attribute.Int("packhost.packages", len(pkgs)),
	))
	defer span.End()

	order, err := in.validate(ctx, pkgs)
	if err != nil {
		log.Error(err, "validation failed", "packages", len(pkgs))
		recordError(span, err)
		return err
	}
	log.Info("resolved initialization order", "order", order)

	for _, name := range order {
		pkg, _ := in.Package(name)
		if err := in.start(ctx, pkg, log); err != nil {
			log.Error(err, "initialization halted", "package", name)
			recordError(span, err)
			return err
		}
	}
	log.Info("all packages ready", "count", len(order))
	return nil
}

func (in *Injector) resolve(ctx context.Context, pkgs []*Package) (resolver.Plan, error) {
	in.mu.RLock()
	caps := sets.KeySet(in.capabilities)
	in.mu.RUnlock()

	input := resolver.Input{Capabilities: caps}
	for _, p := range pkgs {
		input.Modules = append(input.Modules, resolver.Module{
			Name:         p.Name(),
			Version:      p.Version(),
			Dependencies: p.Dependencies(),
		})
	}
	return in.resolver.Resolve(ctx, input)
}

// validate runs the resolver and walks each package through the checked
// states, failing the ones the diagnostics point at.
func (in *Injector) validate(ctx context.Context, pkgs []*Package) ([]string, error) {
	plan, err := in.resolve(ctx, pkgs)
	if plan.Graph == nil {
		return nil, err
	}

	missing, versions := blame(plan.Diagnostics)
	for _, p := range pkgs {
		if errs := missing[p.Name()]; len(errs) > 0 {
			p.transition(ctx, StateFailed, errors.Join(errs...))
			continue
		}
		p.transition(ctx, StateDependencyChecked, nil)
		if errs := versions[p.Name()]; len(errs) > 0 {
			p.transition(ctx, StateFailed, errors.Join(errs...))
			continue
		}
		p.transition(ctx, StateVersionChecked, nil)
	}
	if !plan.Diagnostics.Empty() {
		return nil, err
	}

	if err != nil {
		var cycle CycleError
		if errors.As(err, &cycle) {
			for _, name := range cycle.Cycle {
				if p, ok := in.Package(name); ok && p.State() != StateFailed {
					p.transition(ctx, StateFailed, err)
				}
			}
		}
		return nil, err
	}

	for _, name := range plan.Order {
		p, _ := in.Package(name)
		p.transition(ctx, StateOrdered, nil)
	}
	return plan.Order, nil
}

// blame maps each diagnostic to the packages it disqualifies.
func blame(d resolver.Diagnostics) (missing, versions map[string][]error) {
	missing = make(map[string][]error)
	versions = make(map[string][]error)
	for _, m := range d.Missing {
		missing[m.Requester] = append(missing[m.Requester], m)
	}
	for _, c := range d.Conflicts {
		for _, who := range c.Requesters() {
			versions[who] = append(versions[who], c)
		}
	}
	for _, err := range d.Invalid {
		var ic InvalidConstraintError
		if !errors.As(err, &ic) {
			continue
		}
		who := ic.Requester
		if who == "" {
			who = ic.Name
		}
		versions[who] = append(versions[who], err)
	}
	return missing, versions
}

func (in *Injector) start(ctx context.Context, pkg *Package, log logr.Logger) error {
	name := pkg.Name()
	ctx, span := in.tracer.Start(ctx, "injector.InitPackage", trace.WithAttributes(
		attribute.String("packhost.package", name),
		attribute.String("packhost.version", pkg.Version()),
	))
	defer span.End()
	log = log.WithValues("package", name)

	if err := ctx.Err(); err != nil {
		return in.fail(ctx, span, pkg, fmt.Errorf("not started: %w", err))
	}
	pkg.transition(ctx, StateInitializing, nil)
	begin := time.Now()

	scope, err := in.config.Namespace(config.RootNamespace + "." + name)
	if err != nil {
		return in.fail(ctx, span, pkg, err)
	}
	pkg.setScope(scope)

	results, err := in.Invoke(pkg.factory, pkg)
	if err != nil {
		return in.fail(ctx, span, pkg, fmt.Errorf("factory: %w", err))
	}
	if len(results) == 1 {
		pkg.setExports(results[0])
	} else {
		pkg.setExports(results)
	}
	log.V(1).Info("factory invoked", "funcs", len(results))

	if err := in.awaitInit(ctx, pkg, scope); err != nil {
		return in.fail(ctx, span, pkg, err)
	}

	in.mu.Lock()
	in.ready[name] = pkg
	in.mu.Unlock()
	pkg.transition(ctx, StateReady, nil)
	log.Info("package ready", "version", pkg.Version(), "duration", time.Since(begin).String())
	return nil
}

// awaitInit runs the package's init handlers on their own goroutine and waits
// for them, the init timeout, or ctx, whichever comes first.
func (in *Injector) awaitInit(ctx context.Context, pkg *Package, scope *config.Scope) error {
	fns := pkg.initHandlers()
	if len(fns) == 0 {
		return nil
	}
	if in.initTimeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, in.initTimeout)
		defer cancel()
	}

	done := make(chan error, 1)
	go func() { done <- runInit(ctx, fns, scope) }()
	return waitInit(ctx, done)
}

// waitInit prefers a result that is already available over ctx being done.
func waitInit(ctx context.Context, done <-chan error) error {
	select {
	case err := <-done:
		return err
	case <-ctx.Done():
		select {
		case err := <-done:
			return err
		default:
		}
		return fmt.Errorf("waiting for init: %w", ctx.Err())
	}
}

func runInit(ctx context.Context, fns []InitFunc, scope *config.Scope) (err error) {
	defer func() {
		if r := recover(); r != nil {
			err = PanicError{Value: r}
		}
	}()
	for _, fn := range fns {
		if err := fn(ctx, scope); err != nil {
			return err
		}
	}
	return nil
}

// fail closes the package's scope, so init handlers still running after a
// timeout cannot write to it, and marks the package failed.
func (in *Injector) fail(ctx context.Context, span trace.Span, pkg *Package, err error) error {
	if scope := pkg.Scope(); scope != nil {
		scope.Close()
	}
	ierr := InitializationError{Package: pkg.Name(), Err: err}
	pkg.transition(context.WithoutCancel(ctx), StateFailed, ierr)
	recordError(span, err)
	return ierr
}

func recordError(span trace.Span, err error) {
	span.RecordError(err)
	span.SetStatus(codes.Error, err.Error())
}
