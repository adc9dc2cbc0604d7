package injector

import (
	"context"
	"errors"

	"github.com/bayleafwalker/packhost/internal/discovery"
)

// LoadPackages discovers candidates from src and loads the ones carrying the
// marker keyword. Candidates without the marker are skipped before their
// manifest is validated. It may be called several times before Initialize; package
// names must be unique across all calls.
//
// The returned packages are the ones accepted by this call, in discovery
// order. Per-candidate problems are returned as a *LoadError alongside them.
func (in *Injector) LoadPackages(ctx context.Context, src discovery.Source) ([]*Package, error) {
	in.mu.RLock()
	started := in.started
	in.mu.RUnlock()
	if started {
		return nil, ErrAlreadyInitialized
	}

	candidates, err := src.Discover(ctx)
	var errs []error
	if err != nil {
		var scan *discovery.ScanError
		if !errors.As(err, &scan) {
			return nil, err
		}
		errs = append(errs, scan.Errs...)
	}

	log := in.log.WithName("loader")
	var accepted []*Package
	for _, c := range candidates {
		if c.Manifest == nil {
			continue
		}
		m := c.Manifest
		if !m.HasKeyword(in.marker) {
			log.V(1).Info("skipping package without marker keyword", "origin", c.Origin, "package", m.Name, "marker", in.marker)
			continue
		}
		if err := m.Validate(); err != nil {
			errs = append(errs, discovery.ManifestError{Path: c.Origin, Err: err})
			continue
		}
		f, ok := in.catalog.Lookup(m.Entry())
		if !ok {
			errs = append(errs, EntryPointError{Package: m.Name, EntryPoint: m.Entry(), Origin: c.Origin})
			continue
		}

		pkg := newPackage(in, m, c.Origin, f)
		in.mu.Lock()
		if prev, dup := in.byName[m.Name]; dup {
			in.mu.Unlock()
			errs = append(errs, DuplicatePackageError{Name: m.Name, Origin: prev.Origin(), Duplicate: c.Origin})
			continue
		}
		in.byName[m.Name] = pkg
		in.loaded = append(in.loaded, pkg)
		in.mu.Unlock()

		accepted = append(accepted, pkg)
		log.Info("loaded package", "package", m.Name, "version", m.Version, "origin", c.Origin)
	}

	if len(errs) > 0 {
		return accepted, &LoadError{Errs: errs}
	}
	return accepted, nil
}
