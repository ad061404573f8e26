// Package project reads and writes the project-level files: the manifest
// declaring wanted dependencies and the lockfile recording the installed
// graph.
package project

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"regexp"
	"sort"

	"templstack/internal/resolver"
	"templstack/internal/version"
)

// ManifestFileName is the manifest file looked up in the project root.
const ManifestFileName = "templstack.json"

var (
	ErrInvalidManifest = errors.New("invalid manifest")
	ErrInvalidName     = errors.New("invalid template name")
)

// nameRegex matches valid template names (with or without scope).
var nameRegex = regexp.MustCompile(`^(@[a-z0-9][a-z0-9\-_]*\/)?[a-z0-9][a-z0-9\-_]*$`)

// DependencySpec is one declared dependency in the manifest.
type DependencySpec struct {
	Constraint string        `json:"constraint"`
	Kind       resolver.Kind `json:"kind,omitempty"`
	Optional   bool          `json:"optional,omitempty"`
	Registry   string        `json:"registry,omitempty"`
}

// Manifest represents the templstack.json file.
type Manifest struct {
	Name         string                    `json:"name"`
	Version      string                    `json:"version"`
	Description  string                    `json:"description,omitempty"`
	Dependencies map[string]DependencySpec `json:"dependencies"`
}

// LoadManifest reads and validates a manifest from file.
func LoadManifest(path string) (*Manifest, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read manifest: %w", err)
	}

	var manifest Manifest
	if err := json.Unmarshal(data, &manifest); err != nil {
		return nil, fmt.Errorf("failed to parse manifest JSON: %w", err)
	}

	if err := manifest.Validate(); err != nil {
		return nil, err
	}
	return &manifest, nil
}

// SaveManifest validates and writes a manifest to file.
func SaveManifest(path string, manifest *Manifest) error {
	if err := manifest.Validate(); err != nil {
		return err
	}

	data, err := json.MarshalIndent(manifest, "", "  ")
	if err != nil {
		return fmt.Errorf("failed to marshal manifest: %w", err)
	}
	return os.WriteFile(path, data, 0o644)
}

// CreateManifest creates a new empty manifest with default values.
func CreateManifest(name string) *Manifest {
	return &Manifest{
		Name:         name,
		Version:      "0.1.0",
		Dependencies: make(map[string]DependencySpec),
	}
}

// Validate checks the manifest's structural rules: a well-formed name, a
// semantic version, and a parseable constraint per dependency.
func (m *Manifest) Validate() error {
	if m.Name == "" {
		return fmt.Errorf("%w: name is required", ErrInvalidManifest)
	}
	if !nameRegex.MatchString(m.Name) {
		return fmt.Errorf("%w: name must match pattern %s", ErrInvalidName, nameRegex.String())
	}

	if m.Version == "" {
		return fmt.Errorf("%w: version is required", ErrInvalidManifest)
	}
	if !version.IsValidVersion(m.Version) {
		return fmt.Errorf("%w: version %q is not a semantic version", ErrInvalidManifest, m.Version)
	}

	if m.Dependencies == nil {
		return fmt.Errorf("%w: dependencies field is required (can be empty object)", ErrInvalidManifest)
	}

	for name, spec := range m.Dependencies {
		if !nameRegex.MatchString(name) {
			return fmt.Errorf("%w: dependency name %q", ErrInvalidName, name)
		}
		if _, err := version.ParseConstraint(spec.Constraint); err != nil {
			return fmt.Errorf("%w: dependency %s: %v", ErrInvalidManifest, name, err)
		}
		if spec.Kind != "" && !validKind(spec.Kind) {
			return fmt.Errorf("%w: dependency %s has unknown kind %q", ErrInvalidManifest, name, spec.Kind)
		}
	}

	return nil
}

func validKind(kind resolver.Kind) bool {
	switch kind {
	case resolver.KindRuntime, resolver.KindDevelopment, resolver.KindOptional,
		resolver.KindPeer, resolver.KindConditional:
		return true
	}
	return false
}

// AddDependency records or replaces a dependency, validating the
// constraint first.
func (m *Manifest) AddDependency(name string, spec DependencySpec) error {
	if !nameRegex.MatchString(name) {
		return fmt.Errorf("%w: %q", ErrInvalidName, name)
	}
	if _, err := version.ParseConstraint(spec.Constraint); err != nil {
		return err
	}

	if m.Dependencies == nil {
		m.Dependencies = make(map[string]DependencySpec)
	}
	m.Dependencies[name] = spec
	return nil
}

// RemoveDependency drops a dependency; it reports whether one existed.
func (m *Manifest) RemoveDependency(name string) bool {
	if _, ok := m.Dependencies[name]; !ok {
		return false
	}
	delete(m.Dependencies, name)
	return true
}

// ResolverDependencies converts the manifest's declarations into the
// resolver's request shape, in name order so resolution input is stable.
func (m *Manifest) ResolverDependencies() []resolver.Dependency {
	names := make([]string, 0, len(m.Dependencies))
	for name := range m.Dependencies {
		names = append(names, name)
	}
	sort.Strings(names)

	deps := make([]resolver.Dependency, 0, len(names))
	for _, name := range names {
		spec := m.Dependencies[name]
		kind := spec.Kind
		if kind == "" {
			kind = resolver.KindRuntime
		}
		deps = append(deps, resolver.Dependency{
			Name:       name,
			Constraint: spec.Constraint,
			Kind:       kind,
			Optional:   spec.Optional,
			Requester:  m.Name,
		})
	}
	return deps
}
