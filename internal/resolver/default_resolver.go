package resolver

import (
	"context"
	"fmt"
	"sort"

	"github.com/bayleafwalker/packhost/internal/graph"
	"github.com/bayleafwalker/packhost/internal/semver"
)

// DefaultResolver is the resolver wired into the injector.
type DefaultResolver struct{}

func NewDefault() *DefaultResolver {
	return &DefaultResolver{}
}

type requirement struct {
	requester  string
	constraint string
}

func (r *DefaultResolver) Resolve(ctx context.Context, in Input) (Plan, error) {
	if err := ctx.Err(); err != nil {
		return Plan{}, err
	}

	modules := make(map[string]Module, len(in.Modules))
	for _, m := range in.Modules {
		if _, dup := modules[m.Name]; dup {
			return Plan{}, fmt.Errorf("resolver: module %q listed twice", m.Name)
		}
		modules[m.Name] = m
	}

	plan := Plan{Graph: graph.New()}

	// 1) Graph construction: every edge must point at a module or a capability.
	required := make(map[string][]requirement)
	var requiredOrder []string
	for _, m := range in.Modules {
		deps := sortedKeys(m.Dependencies)
		for _, dep := range deps {
			_, isModule := modules[dep]
			if !isModule && !in.Capabilities.Has(dep) {
				plan.Diagnostics.Missing = append(plan.Diagnostics.Missing, MissingDependencyError{
					Name:      dep,
					Requester: m.Name,
				})
				continue
			}
			if !isModule {
				continue
			}
			if _, seen := required[dep]; !seen {
				requiredOrder = append(requiredOrder, dep)
			}
			required[dep] = append(required[dep], requirement{requester: m.Name, constraint: m.Dependencies[dep]})
		}
		plan.Graph.AddNode(m.Name, deps...)
	}

	// 2) Version aggregation for dependencies shared by two or more modules.
	for _, dep := range requiredOrder {
		reqs := required[dep]
		if len(reqs) < 2 {
			continue
		}
		checkShared(&plan.Diagnostics, modules[dep], reqs)
	}

	if err := plan.Diagnostics.Err(); err != nil {
		return plan, err
	}

	// 3) Ordering.
	order, err := plan.Graph.Order()
	if err != nil {
		return plan, err
	}
	plan.Order = order
	return plan, nil
}

func checkShared(diag *Diagnostics, dep Module, reqs []requirement) {
	version, err := semver.ParseVersion(dep.Version)
	if err != nil {
		diag.Invalid = append(diag.Invalid, InvalidConstraintError{Name: dep.Name, Err: err})
		return
	}

	constraints := make([]string, 0, len(reqs))
	checked := make([]Requirement, 0, len(reqs))
	for _, req := range reqs {
		c, err := semver.ParseConstraint(req.constraint)
		if err != nil {
			diag.Invalid = append(diag.Invalid, InvalidConstraintError{
				Name:       dep.Name,
				Requester:  req.requester,
				Constraint: req.constraint,
				Err:        err,
			})
			continue
		}
		constraints = append(constraints, req.constraint)
		checked = append(checked, Requirement{
			Requester:  req.requester,
			Constraint: req.constraint,
			Satisfied:  semver.Satisfies(version, c),
		})
	}

	ok, err := semver.SatisfiesAll(dep.Version, constraints...)
	if err != nil {
		diag.Invalid = append(diag.Invalid, InvalidConstraintError{Name: dep.Name, Err: err})
		return
	}
	if ok {
		return
	}
	diag.Conflicts = append(diag.Conflicts, VersionConflictError{
		Name:         dep.Name,
		Version:      dep.Version,
		Requirements: checked,
	})
}

func sortedKeys(m map[string]string) []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}
