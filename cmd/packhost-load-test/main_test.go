package main

import (
	"testing"

	"github.com/bayleafwalker/packhost/internal/kube"
)

func TestLayered(t *testing.T) {
	pkgs, err := layered("lt", "apps", "packhost.io/host=lt", 5, 2)
	if err != nil {
		t.Fatalf("layered: %v", err)
	}
	if len(pkgs) != 5 {
		t.Fatalf("expected 5 packages, got %d", len(pkgs))
	}
	if len(pkgs[0].Spec.Dependencies) != 0 || len(pkgs[1].Spec.Dependencies) != 0 {
		t.Fatalf("first layer must have no dependencies")
	}
	deps := pkgs[4].Spec.Dependencies
	if len(deps) != 2 || deps["lt-2"] != "^1.0.0" || deps["lt-3"] != "^1.0.0" {
		t.Fatalf("unexpected dependencies for lt-4: %v", deps)
	}
	if pkgs[3].Labels["packhost.io/host"] != "lt" {
		t.Fatalf("label not applied: %v", pkgs[3].Labels)
	}

	// Every generated object must pass the same validation kube discovery
	// applies.
	for _, pm := range pkgs {
		if err := kube.ToManifest(pm).Validate(); err != nil {
			t.Fatalf("%s: %v", pm.Name, err)
		}
	}
}

func TestLayered_Invalid(t *testing.T) {
	if _, err := layered("lt", "apps", "nolabel", 1, 1); err == nil {
		t.Fatal("expected error for label without value")
	}
	if _, err := layered("lt", "apps", "a=b", 0, 1); err == nil {
		t.Fatal("expected error for zero packages")
	}
}
