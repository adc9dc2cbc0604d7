package kube

import (
	"context"
	"errors"
	"strings"
	"testing"

	"k8s.io/apimachinery/pkg/api/meta"
	metav1 "k8s.io/apimachinery/pkg/apis/meta/v1"
	"k8s.io/apimachinery/pkg/labels"
	"k8s.io/apimachinery/pkg/runtime"
	"k8s.io/apimachinery/pkg/types"
	clientgoscheme "k8s.io/client-go/kubernetes/scheme"
	"k8s.io/client-go/tools/record"
	"sigs.k8s.io/controller-runtime/pkg/client"
	"sigs.k8s.io/controller-runtime/pkg/client/fake"

	packhostv1alpha1 "github.com/bayleafwalker/packhost/api/v1alpha1"
	"github.com/bayleafwalker/packhost/config"
	"github.com/bayleafwalker/packhost/injector"
	"github.com/bayleafwalker/packhost/internal/discovery"
	"github.com/bayleafwalker/packhost/internal/manifest"
)

func newScheme(t *testing.T) *runtime.Scheme {
	t.Helper()
	scheme := runtime.NewScheme()
	_ = clientgoscheme.AddToScheme(scheme)
	if err := packhostv1alpha1.AddToScheme(scheme); err != nil {
		t.Fatalf("AddToScheme(packhost): %v", err)
	}
	return scheme
}

func packageManifest(ns, name string, spec packhostv1alpha1.PackageManifestSpec, lbls map[string]string) *packhostv1alpha1.PackageManifest {
	return &packhostv1alpha1.PackageManifest{
		TypeMeta:   metav1.TypeMeta{APIVersion: "packhost.io/v1alpha1", Kind: "PackageManifest"},
		ObjectMeta: metav1.ObjectMeta{Name: name, Namespace: ns, Labels: lbls, Generation: 3},
		Spec:       spec,
	}
}

func TestSource_DiscoverFiltersAndValidates(t *testing.T) {
	ctx := context.Background()
	scheme := newScheme(t)

	keywords := []string{manifest.MarkerKeyword}
	objs := []client.Object{
		packageManifest("apps", "kvstore", packhostv1alpha1.PackageManifestSpec{Version: "1.0.0", Keywords: keywords}, map[string]string{"tier": "core"}),
		packageManifest("apps", "greeter-pm", packhostv1alpha1.PackageManifestSpec{
			Name:         "greeter",
			Version:      "1.1.0",
			Keywords:     keywords,
			Dependencies: map[string]string{"kvstore": "^1.0.0"},
		}, map[string]string{"tier": "core"}),
		packageManifest("apps", "broken", packhostv1alpha1.PackageManifestSpec{Version: "latest"}, map[string]string{"tier": "core"}),
		packageManifest("apps", "extra", packhostv1alpha1.PackageManifestSpec{Version: "1.0.0"}, map[string]string{"tier": "edge"}),
		packageManifest("other", "elsewhere", packhostv1alpha1.PackageManifestSpec{Version: "1.0.0"}, map[string]string{"tier": "core"}),
	}
	cl := fake.NewClientBuilder().WithScheme(scheme).WithObjects(objs...).Build()

	src := &Source{Client: cl, Namespace: "apps", Selector: labels.SelectorFromSet(labels.Set{"tier": "core"})}
	got, err := src.Discover(ctx)

	var scan *discovery.ScanError
	if !errors.As(err, &scan) {
		t.Fatalf("expected *ScanError, got %v", err)
	}
	if len(scan.Errs) != 1 || !strings.Contains(scan.Errs[0].Error(), "kube:apps/broken") {
		t.Fatalf("unexpected scan errors: %v", scan.Errs)
	}
	if len(got) != 2 {
		t.Fatalf("expected 2 candidates, got %d", len(got))
	}
	if got[0].Origin != "kube:apps/greeter-pm" || got[0].Manifest.Name != "greeter" {
		t.Fatalf("unexpected first candidate: %+v", got[0])
	}
	if got[1].Origin != "kube:apps/kvstore" || got[1].Manifest.Name != "kvstore" {
		t.Fatalf("unexpected second candidate: %+v", got[1])
	}
}

func TestParseOrigin(t *testing.T) {
	key, ok := ParseOrigin(Origin("apps", "kvstore"))
	if !ok || key != (types.NamespacedName{Namespace: "apps", Name: "kvstore"}) {
		t.Fatalf("unexpected key %v (ok=%v)", key, ok)
	}
	for _, origin := range []string{"pkgs/kvstore", "kube:", "kube:apps", "kube:/x"} {
		if _, ok := ParseOrigin(origin); ok {
			t.Fatalf("expected %q to be rejected", origin)
		}
	}
}

func TestStatusReporter_ReportsLifecycle(t *testing.T) {
	ctx := context.Background()
	scheme := newScheme(t)

	keywords := []string{manifest.MarkerKeyword}
	store := packageManifest("apps", "kvstore", packhostv1alpha1.PackageManifestSpec{Version: "1.0.0", Keywords: keywords}, nil)
	broken := packageManifest("apps", "greeter", packhostv1alpha1.PackageManifestSpec{
		Version:      "1.0.0",
		Keywords:     keywords,
		Dependencies: map[string]string{"kvstore": "*"},
	}, nil)
	cl := fake.NewClientBuilder().WithScheme(scheme).WithObjects(store, broken).WithStatusSubresource(store, broken).Build()
	recorder := record.NewFakeRecorder(16)

	cat := injector.NewCatalog()
	cat.Register("kvstore", injector.FactoryOf(func(*injector.Package, injector.Args) (any, error) { return nil, nil }))
	cat.Register("greeter", injector.FactoryOf(func(pkg *injector.Package, _ injector.Args) (any, error) {
		pkg.OnInit(func(context.Context, *config.Scope) error { return errors.New("greeting store unavailable") })
		return nil, nil
	}))
	in := injector.New(
		injector.WithCatalog(cat),
		injector.WithObserver(&StatusReporter{Client: cl, Recorder: recorder, Host: "host-1"}),
	)
	if _, err := in.LoadPackages(ctx, &Source{Client: cl, Namespace: "apps"}); err != nil {
		t.Fatalf("LoadPackages: %v", err)
	}
	if err := in.Initialize(ctx); err == nil {
		t.Fatalf("expected greeter init to fail")
	}

	var got packhostv1alpha1.PackageManifest
	if err := cl.Get(ctx, types.NamespacedName{Namespace: "apps", Name: "kvstore"}, &got); err != nil {
		t.Fatalf("Get kvstore: %v", err)
	}
	if got.Status.Phase != packhostv1alpha1.PackagePhaseReady || got.Status.Host != "host-1" {
		t.Fatalf("unexpected kvstore status: %+v", got.Status)
	}
	if got.Status.ObservedGeneration != 3 {
		t.Fatalf("expected observedGeneration 3, got %d", got.Status.ObservedGeneration)
	}
	if !meta.IsStatusConditionTrue(got.Status.Conditions, packhostv1alpha1.ConditionResolved) ||
		!meta.IsStatusConditionTrue(got.Status.Conditions, packhostv1alpha1.ConditionReady) {
		t.Fatalf("expected Resolved and Ready conditions, got %+v", got.Status.Conditions)
	}

	if err := cl.Get(ctx, types.NamespacedName{Namespace: "apps", Name: "greeter"}, &got); err != nil {
		t.Fatalf("Get greeter: %v", err)
	}
	if got.Status.Phase != packhostv1alpha1.PackagePhaseFailed {
		t.Fatalf("expected Failed phase, got %q", got.Status.Phase)
	}
	ready := meta.FindStatusCondition(got.Status.Conditions, packhostv1alpha1.ConditionReady)
	if ready == nil || ready.Status != metav1.ConditionFalse || ready.Reason != "InitFailed" {
		t.Fatalf("unexpected Ready condition: %+v", ready)
	}
	if !strings.Contains(got.Status.Message, "greeting store unavailable") {
		t.Fatalf("expected root cause in message, got %q", got.Status.Message)
	}

	events := drain(recorder)
	if len(events) != 2 {
		t.Fatalf("expected 2 events, got %v", events)
	}
	if !strings.HasPrefix(events[0], "Normal PackageReady") || !strings.HasPrefix(events[1], "Warning InitFailed") {
		t.Fatalf("unexpected events: %v", events)
	}
}

func TestStatusReporter_ValidationFailure(t *testing.T) {
	ctx := context.Background()
	scheme := newScheme(t)

	pm := packageManifest("apps", "lonely", packhostv1alpha1.PackageManifestSpec{
		Version:      "1.0.0",
		Keywords:     []string{manifest.MarkerKeyword},
		Dependencies: map[string]string{"ghost": "^1.0.0"},
	}, nil)
	cl := fake.NewClientBuilder().WithScheme(scheme).WithObjects(pm).WithStatusSubresource(pm).Build()
	recorder := record.NewFakeRecorder(4)

	cat := injector.NewCatalog()
	cat.Register("lonely", injector.FactoryOf(func(*injector.Package, injector.Args) (any, error) { return nil, nil }))
	in := injector.New(injector.WithCatalog(cat), injector.WithObserver(&StatusReporter{Client: cl, Recorder: recorder}))
	if _, err := in.LoadPackages(ctx, &Source{Client: cl}); err != nil {
		t.Fatalf("LoadPackages: %v", err)
	}
	var missing injector.MissingDependencyError
	if err := in.Initialize(ctx); !errors.As(err, &missing) {
		t.Fatalf("expected MissingDependencyError, got %v", err)
	}

	var got packhostv1alpha1.PackageManifest
	if err := cl.Get(ctx, types.NamespacedName{Namespace: "apps", Name: "lonely"}, &got); err != nil {
		t.Fatalf("Get: %v", err)
	}
	resolved := meta.FindStatusCondition(got.Status.Conditions, packhostv1alpha1.ConditionResolved)
	if resolved == nil || resolved.Status != metav1.ConditionFalse || resolved.Reason != "ValidationFailed" {
		t.Fatalf("unexpected Resolved condition: %+v", resolved)
	}
	if events := drain(recorder); len(events) != 1 || !strings.Contains(events[0], `"ghost"`) {
		t.Fatalf("unexpected events: %v", events)
	}
}

func drain(r *record.FakeRecorder) []string {
	var out []string
	for {
		select {
		case e := <-r.Events:
			out = append(out, e)
		default:
			return out
		}
	}
}
