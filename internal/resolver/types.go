package resolver

import (
	"k8s.io/apimachinery/pkg/util/sets"

	"github.com/bayleafwalker/packhost/internal/graph"
)

// Module is the resolver's view of one loaded package.
type Module struct {
	Name    string
	Version string
	// Dependencies maps a dependency name to the version range this module
	// requires of it.
	Dependencies map[string]string
}

// Input is the normalized view of the world that the resolver operates on.
type Input struct {
	// Modules are the loaded packages in discovery order. Names must be unique.
	Modules []Module
	// Capabilities are bare, unversioned names registered directly with the
	// injector (for example "config").
	Capabilities sets.Set[string]
}

// Plan is the output of the resolver.
type Plan struct {
	// Order lists module names dependency-first. It is empty unless the input
	// passed validation.
	Order       []string
	Graph       *graph.DependencyGraph
	Diagnostics Diagnostics
}

// Diagnostics captures every validation problem found before ordering.
type Diagnostics struct {
	Missing   []MissingDependencyError
	Conflicts []VersionConflictError
	Invalid   []error
}

func (d Diagnostics) Empty() bool {
	return len(d.Missing) == 0 && len(d.Conflicts) == 0 && len(d.Invalid) == 0
}

// Err folds the diagnostics into a single error: nil when empty, the error
// itself when there is exactly one, a *ValidationError otherwise.
func (d Diagnostics) Err() error {
	errs := make([]error, 0, len(d.Missing)+len(d.Conflicts)+len(d.Invalid))
	for _, m := range d.Missing {
		errs = append(errs, m)
	}
	for _, c := range d.Conflicts {
		errs = append(errs, c)
	}
	errs = append(errs, d.Invalid...)

	switch len(errs) {
	case 0:
		return nil
	case 1:
		return errs[0]
	default:
		return &ValidationError{Errs: errs}
	}
}

// Requirement is one dependent's range on a shared dependency.
type Requirement struct {
	Requester  string
	Constraint string
	Satisfied  bool
}
