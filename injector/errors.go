package injector

import (
	"errors"
	"fmt"
	"strings"

	"github.com/bayleafwalker/packhost/internal/resolver"
)

// Validation errors surfaced by Initialize and Plan.
type (
	MissingDependencyError = resolver.MissingDependencyError
	VersionConflictError   = resolver.VersionConflictError
	InvalidConstraintError = resolver.InvalidConstraintError
	ValidationError        = resolver.ValidationError
	CycleError             = resolver.CycleError
	Requirement            = resolver.Requirement
)

var (
	// ErrAlreadyInitialized is returned by a second call to Initialize, and by
	// LoadPackages once initialization has started.
	ErrAlreadyInitialized = errors.New("injector: already initialized")
	// ErrUnknownEntryPoint is wrapped by errors for manifests whose entry
	// point is not registered in the catalog.
	ErrUnknownEntryPoint = errors.New("unknown entry point")
	// ErrEmptyFactory is returned when invoking a factory without functions.
	ErrEmptyFactory = errors.New("factory has no functions")
	// ErrNotBound is wrapped by Arg when the named argument resolved to nothing.
	ErrNotBound = errors.New("argument not bound")
)

// InitializationError reports the package whose startup halted the sequence.
type InitializationError struct {
	Package string
	Err     error
}

func (e InitializationError) Error() string {
	return fmt.Sprintf("initialize package %q: %v", e.Package, e.Err)
}

func (e InitializationError) Unwrap() error { return e.Err }

// DuplicatePackageError reports a second package with an already loaded name.
// The first package is kept.
type DuplicatePackageError struct {
	Name      string
	Origin    string
	Duplicate string
}

func (e DuplicatePackageError) Error() string {
	return fmt.Sprintf("package %q from %s already loaded from %s", e.Name, e.Duplicate, e.Origin)
}

// EntryPointError reports a manifest naming a factory the catalog lacks.
type EntryPointError struct {
	Package    string
	EntryPoint string
	Origin     string
}

func (e EntryPointError) Error() string {
	return fmt.Sprintf("package %q (%s): %v %q", e.Package, e.Origin, ErrUnknownEntryPoint, e.EntryPoint)
}

func (e EntryPointError) Unwrap() error { return ErrUnknownEntryPoint }

// PanicError is a recovered panic from a factory function or init handler.
type PanicError struct {
	Value any
}

func (e PanicError) Error() string {
	return fmt.Sprintf("panic: %v", e.Value)
}

// LoadError collects every candidate that could not be loaded. It is returned
// together with the packages that were.
type LoadError struct {
	Errs []error
}

func (e *LoadError) Error() string {
	msgs := make([]string, 0, len(e.Errs))
	for _, err := range e.Errs {
		msgs = append(msgs, err.Error())
	}
	return fmt.Sprintf("load packages: %d errors:\n- %s", len(e.Errs), strings.Join(msgs, "\n- "))
}

func (e *LoadError) Unwrap() []error { return e.Errs }
