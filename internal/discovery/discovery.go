// Package discovery finds candidate packages and parses their manifests.
package discovery

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/bayleafwalker/packhost/internal/manifest"
)

// Candidate is one discovered location. Manifest is nil when the location
// does not hold a package manifest.
type Candidate struct {
	// Origin identifies where the candidate came from (a directory path, or
	// namespace/name for cluster sources).
	Origin   string
	Manifest *manifest.Manifest
}

// Source produces candidates. Implementations may return partial results
// together with a *ScanError.
type Source interface {
	Discover(ctx context.Context) ([]Candidate, error)
}

// FilesystemError reports a location that could not be read.
type FilesystemError struct {
	Path string
	Err  error
}

func (e FilesystemError) Error() string {
	return fmt.Sprintf("read %s: %v", e.Path, e.Err)
}

func (e FilesystemError) Unwrap() error { return e.Err }

// ManifestError reports a manifest that cannot be decoded, or a marked one that
// fails validation.
type ManifestError struct {
	Path string
	Err  error
}

func (e ManifestError) Error() string {
	return fmt.Sprintf("manifest %s: %v", e.Path, e.Err)
}

func (e ManifestError) Unwrap() error { return e.Err }

// ScanError collects the per-candidate failures of one scan.
type ScanError struct {
	Errs []error
}

func (e *ScanError) Error() string {
	msgs := make([]string, 0, len(e.Errs))
	for _, err := range e.Errs {
		msgs = append(msgs, err.Error())
	}
	return fmt.Sprintf("discovery: %d candidates failed: %s", len(e.Errs), strings.Join(msgs, "; "))
}

func (e *ScanError) Unwrap() []error { return e.Errs }

type staticSource []Candidate

// Static returns a Source that always yields the given candidates.
func Static(candidates ...Candidate) Source {
	return staticSource(candidates)
}

func (s staticSource) Discover(ctx context.Context) ([]Candidate, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	return append([]Candidate(nil), s...), nil
}

// Multi chains sources. Candidates keep source order; scan errors from every
// source are merged, any other error aborts.
func Multi(sources ...Source) Source {
	return multiSource(sources)
}

type multiSource []Source

func (m multiSource) Discover(ctx context.Context) ([]Candidate, error) {
	var (
		out  []Candidate
		errs []error
	)
	for _, src := range m {
		cands, err := src.Discover(ctx)
		out = append(out, cands...)
		if err == nil {
			continue
		}
		var scan *ScanError
		if !errors.As(err, &scan) {
			return out, err
		}
		errs = append(errs, scan.Errs...)
	}
	if len(errs) > 0 {
		return out, &ScanError{Errs: errs}
	}
	return out, nil
}

func (m multiSource) String() string {
	names := make([]string, len(m))
	for i, src := range m {
		names[i] = fmt.Sprint(src)
	}
	return strings.Join(names, ",")
}
