// Package manifest parses and validates package manifests.
//
// A manifest is a package.json-shaped document (JSON or YAML):
//
//	{
//	  "name": "greeter",
//	  "version": "1.2.0",
//	  "keywords": ["packhost-package"],
//	  "dependencies": {"kvstore": "^1.0.0"},
//	  "main": "greeter"
//	}
package manifest

import (
	"errors"
	"fmt"
	"regexp"
	"sort"
	"strings"

	"sigs.k8s.io/yaml"

	"github.com/bayleafwalker/packhost/internal/semver"
)

const (
	// MarkerKeyword is the keyword a package must carry to be loaded.
	MarkerKeyword = "packhost-package"

	maxNameLength = 214
)

// FileNames are the manifest file names looked up in a package directory, in
// order of preference.
var FileNames = []string{"package.json", "package.yaml"}

// Names end up as configuration path segments, so dots and upper case are
// not allowed.
var reName = regexp.MustCompile(`^[a-z0-9][a-z0-9_-]*$`)

type Manifest struct {
	Name         string            `json:"name"`
	Version      string            `json:"version"`
	Description  string            `json:"description,omitempty"`
	Dependencies map[string]string `json:"dependencies,omitempty"`
	Keywords     []string          `json:"keywords,omitempty"`
	// EntryPoint names the factory registered in the catalog. Empty means the
	// package name.
	EntryPoint string `json:"main,omitempty"`
}

// Parse decodes a JSON or YAML manifest and validates it. Unknown fields are
// ignored so regular package.json files can be reused.
func Parse(data []byte) (*Manifest, error) {
	m, err := Decode(data)
	if err != nil {
		return nil, err
	}
	if err := m.Validate(); err != nil {
		return nil, err
	}
	return m, nil
}

// Decode decodes a JSON or YAML manifest without validating it. Manifests
// that do not carry the marker keyword are ordinary package.json files and
// need not follow packhost's naming or versioning rules.
func Decode(data []byte) (*Manifest, error) {
	var m Manifest
	if err := yaml.Unmarshal(data, &m); err != nil {
		return nil, fmt.Errorf("decode manifest: %w", err)
	}
	return &m, nil
}

// Validate checks the name, version and every dependency range.
func (m *Manifest) Validate() error {
	var errs []error
	if err := ValidateName(m.Name); err != nil {
		errs = append(errs, err)
	}
	if strings.TrimSpace(m.Version) == "" {
		errs = append(errs, errors.New("version is required"))
	} else if _, err := semver.ParseVersion(m.Version); err != nil {
		errs = append(errs, err)
	}
	for _, dep := range m.DependencyNames() {
		if err := ValidateName(dep); err != nil {
			errs = append(errs, fmt.Errorf("dependency: %w", err))
			continue
		}
		if _, err := semver.ParseConstraint(m.Dependencies[dep]); err != nil {
			errs = append(errs, fmt.Errorf("dependency %q: %w", dep, err))
		}
	}
	return errors.Join(errs...)
}

func ValidateName(name string) error {
	if name == "" {
		return errors.New("name is required")
	}
	if len(name) > maxNameLength {
		return fmt.Errorf("name %q is longer than %d characters", name, maxNameLength)
	}
	if !reName.MatchString(name) {
		return fmt.Errorf("name %q must match %s", name, reName.String())
	}
	return nil
}

// DependencyNames returns the declared dependency names sorted, so that
// iteration over the dependency map is deterministic.
func (m *Manifest) DependencyNames() []string {
	names := make([]string, 0, len(m.Dependencies))
	for name := range m.Dependencies {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

func (m *Manifest) HasKeyword(keyword string) bool {
	for _, k := range m.Keywords {
		if k == keyword {
			return true
		}
	}
	return false
}

// Entry returns the catalog entry point for this package.
func (m *Manifest) Entry() string {
	if m.EntryPoint != "" {
		return m.EntryPoint
	}
	return m.Name
}
