// Package injector is a name-based dependency injection container that loads
// self-describing packages and starts them in dependency order.
//
// A host links the packages it can run into a Catalog, keyed by the entry
// point their manifests name. LoadPackages turns discovered manifests into
// Packages; Initialize validates the dependency graph, orders it and starts
// each package in turn:
//
//	cat := injector.NewCatalog()
//	cat.Register("greeter", injector.Inject("$config", "$kvstore").Func(newGreeter))
//
//	in := injector.New(injector.WithCatalog(cat), injector.WithLogger(log))
//	_ = in.InitConfig(map[string]any{"greeter": map[string]any{"msg": "hi"}})
//	if _, err := in.LoadPackages(ctx, discovery.NewFS(os.DirFS(dir))); err != nil {
//		// *LoadError: some candidates were skipped
//	}
//	if err := in.Initialize(ctx); err != nil {
//		// MissingDependencyError, VersionConflictError, *ValidationError,
//		// CycleError or InitializationError
//	}
//
// Factory functions receive their dependencies through Args, in the order of
// the factory's Inject list. Names prefixed with Sigil are resolved through
// Get; everything else is left unbound. A factory may register init handlers
// and event handlers on the package it receives:
//
//	func newGreeter(pkg *injector.Package, args injector.Args) (any, error) {
//		store, err := injector.Arg[*kvstore.Store](args, "$kvstore")
//		if err != nil {
//			return nil, err
//		}
//		g := &Greeter{store: store}
//		pkg.OnInit(func(ctx context.Context, scope *config.Scope) error {
//			g.msg = scope.GetString("msg")
//			return nil
//		})
//		return g, nil
//	}
package injector
