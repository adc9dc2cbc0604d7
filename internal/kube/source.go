// Package kube discovers packages from PackageManifest objects and reports
// their lifecycle back onto those objects.
package kube

import (
	"context"
	"fmt"
	"sort"
	"strings"

	"k8s.io/apimachinery/pkg/labels"
	"k8s.io/apimachinery/pkg/types"
	"sigs.k8s.io/controller-runtime/pkg/client"

	packhostv1alpha1 "github.com/bayleafwalker/packhost/api/v1alpha1"
	"github.com/bayleafwalker/packhost/internal/discovery"
	"github.com/bayleafwalker/packhost/internal/manifest"
)

// OriginPrefix marks candidate origins that point at a PackageManifest.
const OriginPrefix = "kube:"

// Source lists PackageManifests and turns them into candidates.
type Source struct {
	Client client.Reader
	// Namespace restricts the listing. Empty lists across all namespaces.
	Namespace string
	Selector  labels.Selector
}

func (s *Source) Discover(ctx context.Context) ([]discovery.Candidate, error) {
	var opts []client.ListOption
	if s.Namespace != "" {
		opts = append(opts, client.InNamespace(s.Namespace))
	}
	if s.Selector != nil && !s.Selector.Empty() {
		opts = append(opts, client.MatchingLabelsSelector{Selector: s.Selector})
	}

	var list packhostv1alpha1.PackageManifestList
	if err := s.Client.List(ctx, &list, opts...); err != nil {
		return nil, fmt.Errorf("list package manifests: %w", err)
	}

	items := list.Items
	sort.Slice(items, func(i, j int) bool {
		if items[i].Namespace != items[j].Namespace {
			return items[i].Namespace < items[j].Namespace
		}
		return items[i].Name < items[j].Name
	})

	var (
		out  []discovery.Candidate
		errs []error
	)
	for i := range items {
		pm := &items[i]
		origin := Origin(pm.Namespace, pm.Name)
		m := ToManifest(pm)
		if err := m.Validate(); err != nil {
			errs = append(errs, discovery.ManifestError{Path: origin, Err: err})
			continue
		}
		out = append(out, discovery.Candidate{Origin: origin, Manifest: m})
	}
	if len(errs) > 0 {
		return out, &discovery.ScanError{Errs: errs}
	}
	return out, nil
}

// ToManifest converts a PackageManifest spec to a manifest. The result is not
// validated.
func ToManifest(pm *packhostv1alpha1.PackageManifest) *manifest.Manifest {
	var spec packhostv1alpha1.PackageManifestSpec
	pm.Spec.DeepCopyInto(&spec)
	name := spec.Name
	if name == "" {
		name = pm.Name
	}
	return &manifest.Manifest{
		Name:         name,
		Version:      spec.Version,
		Description:  spec.Description,
		Dependencies: spec.Dependencies,
		Keywords:     spec.Keywords,
		EntryPoint:   spec.EntryPoint,
	}
}

func Origin(namespace, name string) string {
	return OriginPrefix + namespace + "/" + name
}

// ParseOrigin returns the object key behind a cluster origin.
func ParseOrigin(origin string) (types.NamespacedName, bool) {
	rest, ok := strings.CutPrefix(origin, OriginPrefix)
	if !ok {
		return types.NamespacedName{}, false
	}
	ns, name, ok := strings.Cut(rest, "/")
	if !ok || ns == "" || name == "" {
		return types.NamespacedName{}, false
	}
	return types.NamespacedName{Namespace: ns, Name: name}, true
}

func (s *Source) String() string {
	if s.Namespace == "" {
		return "kube:*"
	}
	return OriginPrefix + s.Namespace
}
