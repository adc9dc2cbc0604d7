package resolver

import (
	"fmt"
	"strings"

	"github.com/bayleafwalker/packhost/internal/graph"
)

// CycleError is returned when the dependency graph is not acyclic.
type CycleError = graph.CycleError

// MissingDependencyError reports a declared dependency that names neither a
// loaded package nor a registered capability.
type MissingDependencyError struct {
	Name      string
	Requester string
}

func (e MissingDependencyError) Error() string {
	return fmt.Sprintf("dependency %q required by %q is not installed", e.Name, e.Requester)
}

// VersionConflictError reports a shared dependency whose concrete version does
// not satisfy every dependent's range.
type VersionConflictError struct {
	Name         string
	Version      string
	Requirements []Requirement
}

func (e VersionConflictError) Error() string {
	parts := make([]string, 0, len(e.Requirements))
	for _, r := range e.Requirements {
		verdict := "ok"
		if !r.Satisfied {
			verdict = "unsatisfied"
		}
		parts = append(parts, fmt.Sprintf("%s wants %s (%s)", r.Requester, r.Constraint, verdict))
	}
	return fmt.Sprintf("dependency %q version conflict: %s does not satisfy every requirement [%s]",
		e.Name, e.Version, strings.Join(parts, ", "))
}

// Requesters lists the dependents whose range was not satisfied.
func (e VersionConflictError) Requesters() []string {
	var out []string
	for _, r := range e.Requirements {
		if !r.Satisfied {
			out = append(out, r.Requester)
		}
	}
	return out
}

// InvalidConstraintError reports a range or version that could not be parsed.
type InvalidConstraintError struct {
	Name       string
	Requester  string
	Constraint string
	Err        error
}

func (e InvalidConstraintError) Error() string {
	if e.Requester == "" {
		return fmt.Sprintf("dependency %q: %v", e.Name, e.Err)
	}
	return fmt.Sprintf("dependency %q required by %q with %q: %v", e.Name, e.Requester, e.Constraint, e.Err)
}

func (e InvalidConstraintError) Unwrap() error { return e.Err }

// ValidationError aggregates every problem found while validating the graph.
type ValidationError struct {
	Errs []error
}

func (e *ValidationError) Error() string {
	msgs := make([]string, 0, len(e.Errs))
	for _, err := range e.Errs {
		msgs = append(msgs, err.Error())
	}
	return fmt.Sprintf("%d validation errors:\n- %s", len(e.Errs), strings.Join(msgs, "\n- "))
}

func (e *ValidationError) Unwrap() []error { return e.Errs }
