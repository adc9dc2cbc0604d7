package discovery

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"path"

	"github.com/go-logr/logr"
	"golang.org/x/sync/errgroup"

	"github.com/bayleafwalker/packhost/internal/manifest"
)

const defaultConcurrency = 8

// FS scans the top-level directories of a filesystem for package manifests.
type FS struct {
	fsys        fs.FS
	root        string
	concurrency int
	log         logr.Logger
}

type FSOption func(*FS)

// WithConcurrency bounds the number of directories inspected at once.
func WithConcurrency(n int) FSOption {
	return func(f *FS) {
		if n > 0 {
			f.concurrency = n
		}
	}
}

// WithRoot sets the label used as the prefix of every candidate origin.
func WithRoot(root string) FSOption {
	return func(f *FS) { f.root = root }
}

func WithLogger(log logr.Logger) FSOption {
	return func(f *FS) { f.log = log }
}

func NewFS(fsys fs.FS, opts ...FSOption) *FS {
	f := &FS{fsys: fsys, root: ".", concurrency: defaultConcurrency, log: logr.Discard()}
	for _, opt := range opts {
		opt(f)
	}
	return f
}

type inspection struct {
	candidate *Candidate
	err       error
}

// Discover inspects every top-level entry concurrently. Results are merged in
// directory order once all inspections have settled; per-entry failures never
// stop sibling inspections and are returned as a *ScanError.
func (f *FS) Discover(ctx context.Context) ([]Candidate, error) {
	entries, err := fs.ReadDir(f.fsys, ".")
	if err != nil {
		return nil, FilesystemError{Path: f.root, Err: err}
	}

	results := make([]inspection, len(entries))
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(f.concurrency)
	for i, entry := range entries {
		g.Go(func() error {
			if err := gctx.Err(); err != nil {
				return err
			}
			results[i] = f.inspect(entry)
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}

	var (
		out  []Candidate
		errs []error
	)
	for _, r := range results {
		if r.err != nil {
			errs = append(errs, r.err)
			continue
		}
		if r.candidate != nil {
			out = append(out, *r.candidate)
		}
	}
	f.log.V(1).Info("scan complete", "root", f.root, "entries", len(entries), "candidates", len(out), "errors", len(errs))
	if len(errs) > 0 {
		return out, &ScanError{Errs: errs}
	}
	return out, nil
}

func (f *FS) inspect(entry fs.DirEntry) inspection {
	name := entry.Name()
	origin := path.Join(f.root, name)

	info, err := entry.Info()
	if err != nil {
		return inspection{err: FilesystemError{Path: origin, Err: err}}
	}
	if !info.IsDir() {
		return inspection{}
	}

	for _, file := range manifest.FileNames {
		rel := path.Join(name, file)
		data, err := fs.ReadFile(f.fsys, rel)
		if errors.Is(err, fs.ErrNotExist) {
			continue
		}
		if err != nil {
			return inspection{err: FilesystemError{Path: path.Join(f.root, rel), Err: err}}
		}
		m, err := manifest.Decode(data)
		if err != nil {
			return inspection{err: ManifestError{Path: path.Join(f.root, rel), Err: err}}
		}
		return inspection{candidate: &Candidate{Origin: origin, Manifest: m}}
	}
	return inspection{candidate: &Candidate{Origin: origin}}
}

func (f *FS) String() string {
	return fmt.Sprintf("fs:%s", f.root)
}
