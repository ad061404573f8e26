package project

import (
	"errors"
	"os"
	"path/filepath"
	"testing"

	"templstack/internal/resolver"
)

func TestManifestValidation(t *testing.T) {
	tests := []struct {
		name      string
		manifest  Manifest
		expectErr bool
		errType   error
	}{
		{
			name: "valid scoped template",
			manifest: Manifest{
				Name:         "@acme/starter",
				Version:      "1.0.0",
				Dependencies: map[string]DependencySpec{},
			},
			expectErr: false,
		},
		{
			name: "valid with dependencies",
			manifest: Manifest{
				Name:    "starter",
				Version: "1.0.0",
				Dependencies: map[string]DependencySpec{
					"flutter":  {Constraint: "^3.0.0", Kind: resolver.KindRuntime},
					"analyzer": {Constraint: "~5.2.0", Kind: resolver.KindDevelopment},
				},
			},
			expectErr: false,
		},
		{
			name: "missing name",
			manifest: Manifest{
				Version:      "1.0.0",
				Dependencies: map[string]DependencySpec{},
			},
			expectErr: true,
			errType:   ErrInvalidManifest,
		},
		{
			name: "invalid name format",
			manifest: Manifest{
				Name:         "Invalid Name",
				Version:      "1.0.0",
				Dependencies: map[string]DependencySpec{},
			},
			expectErr: true,
			errType:   ErrInvalidName,
		},
		{
			name: "invalid version",
			manifest: Manifest{
				Name:         "starter",
				Version:      "not-a-version",
				Dependencies: map[string]DependencySpec{},
			},
			expectErr: true,
			errType:   ErrInvalidManifest,
		},
		{
			name: "nil dependencies",
			manifest: Manifest{
				Name:    "starter",
				Version: "1.0.0",
			},
			expectErr: true,
			errType:   ErrInvalidManifest,
		},
		{
			name: "unparseable constraint",
			manifest: Manifest{
				Name:    "starter",
				Version: "1.0.0",
				Dependencies: map[string]DependencySpec{
					"flutter": {Constraint: ">=banana"},
				},
			},
			expectErr: true,
			errType:   ErrInvalidManifest,
		},
		{
			name: "unknown dependency kind",
			manifest: Manifest{
				Name:    "starter",
				Version: "1.0.0",
				Dependencies: map[string]DependencySpec{
					"flutter": {Constraint: "^3.0.0", Kind: resolver.Kind("exotic")},
				},
			},
			expectErr: true,
			errType:   ErrInvalidManifest,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := tt.manifest.Validate()

			if tt.expectErr {
				if err == nil {
					t.Fatal("expected error but got none")
				}
				if tt.errType != nil && !errors.Is(err, tt.errType) {
					t.Errorf("expected error type %v, got %v", tt.errType, err)
				}
			} else if err != nil {
				t.Errorf("unexpected error: %v", err)
			}
		})
	}
}

func TestManifestRoundTrip(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, ManifestFileName)

	manifest := CreateManifest("my-app")
	if err := manifest.AddDependency("flutter", DependencySpec{Constraint: "^3.0.0"}); err != nil {
		t.Fatalf("AddDependency: %v", err)
	}

	if err := SaveManifest(path, manifest); err != nil {
		t.Fatalf("SaveManifest: %v", err)
	}

	loaded, err := LoadManifest(path)
	if err != nil {
		t.Fatalf("LoadManifest: %v", err)
	}

	if loaded.Name != "my-app" {
		t.Errorf("Name = %q, want %q", loaded.Name, "my-app")
	}
	if spec, ok := loaded.Dependencies["flutter"]; !ok || spec.Constraint != "^3.0.0" {
		t.Errorf("flutter dependency = %+v, want constraint ^3.0.0", spec)
	}
}

func TestLoadManifestFailures(t *testing.T) {
	dir := t.TempDir()

	t.Run("missing file", func(t *testing.T) {
		if _, err := LoadManifest(filepath.Join(dir, "nonexistent.json")); err == nil {
			t.Error("expected error for missing file")
		}
	})

	t.Run("invalid JSON", func(t *testing.T) {
		path := filepath.Join(dir, "bad.json")
		os.WriteFile(path, []byte("not json"), 0o644)
		if _, err := LoadManifest(path); err == nil {
			t.Error("expected error for invalid JSON")
		}
	})
}

func TestAddDependencyRejectsBadInput(t *testing.T) {
	manifest := CreateManifest("my-app")

	if err := manifest.AddDependency("Bad Name", DependencySpec{Constraint: "^1.0.0"}); err == nil {
		t.Error("expected error for invalid name")
	}
	if err := manifest.AddDependency("dep", DependencySpec{Constraint: "nonsense constraint"}); err == nil {
		t.Error("expected error for invalid constraint")
	}
}

func TestResolverDependenciesStableOrder(t *testing.T) {
	manifest := CreateManifest("my-app")
	manifest.Dependencies = map[string]DependencySpec{
		"zeta":  {Constraint: "^1.0.0"},
		"alpha": {Constraint: "^2.0.0", Kind: resolver.KindPeer},
		"mid":   {Constraint: "~3.1.0", Optional: true},
	}

	deps := manifest.ResolverDependencies()
	if len(deps) != 3 {
		t.Fatalf("got %d dependencies, want 3", len(deps))
	}

	wantOrder := []string{"alpha", "mid", "zeta"}
	for i, want := range wantOrder {
		if deps[i].Name != want {
			t.Errorf("deps[%d].Name = %q, want %q", i, deps[i].Name, want)
		}
	}

	if deps[0].Kind != resolver.KindPeer {
		t.Errorf("alpha kind = %q, want peer", deps[0].Kind)
	}
	if deps[2].Kind != resolver.KindRuntime {
		t.Errorf("zeta kind = %q, want runtime default", deps[2].Kind)
	}
	if !deps[1].Optional {
		t.Error("mid should stay optional")
	}
	if deps[0].Requester != "my-app" {
		t.Errorf("requester = %q, want manifest name", deps[0].Requester)
	}
}

func TestLockfileRoundTrip(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, LockFileName)

	lock := NewLockfile()
	lock.Installed["flutter"] = LockedDependency{Version: "3.4.0", Registry: "main"}

	if err := SaveLockfile(path, lock); err != nil {
		t.Fatalf("SaveLockfile: %v", err)
	}

	loaded, err := LoadLockfile(path)
	if err != nil {
		t.Fatalf("LoadLockfile: %v", err)
	}

	if got := loaded.Installed["flutter"]; got.Version != "3.4.0" || got.Registry != "main" {
		t.Errorf("flutter pin = %+v, want 3.4.0 from main", got)
	}
	if loaded.GeneratedAt.IsZero() {
		t.Error("GeneratedAt should be stamped on save")
	}
}

func TestLoadLockfileMissingIsEmpty(t *testing.T) {
	lock, err := LoadLockfile(filepath.Join(t.TempDir(), LockFileName))
	if err != nil {
		t.Fatalf("LoadLockfile: %v", err)
	}
	if len(lock.Installed) != 0 {
		t.Errorf("fresh lockfile should be empty, got %d entries", len(lock.Installed))
	}
}

func TestLoadLockfileRejectsNewerFormat(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, LockFileName)
	os.WriteFile(path, []byte(`{"format_version": 99, "installed": {}}`), 0o644)

	if _, err := LoadLockfile(path); !errors.Is(err, ErrInvalidLockfile) {
		t.Errorf("expected ErrInvalidLockfile, got %v", err)
	}
}

func TestLockfileApply(t *testing.T) {
	lock := NewLockfile()
	lock.Installed["keep"] = LockedDependency{Version: "1.0.0"}

	result := &resolver.Result{ResolvedVersions: map[string]string{
		"flutter":  "3.4.0",
		"provider": "6.1.2",
	}}
	lock.Apply(result, map[string]string{"flutter": "main"})

	if got := lock.Installed["flutter"]; got.Version != "3.4.0" || got.Registry != "main" {
		t.Errorf("flutter pin = %+v", got)
	}
	if got := lock.Installed["provider"]; got.Version != "6.1.2" || got.Registry != "" {
		t.Errorf("provider pin = %+v", got)
	}
	if got := lock.Installed["keep"]; got.Version != "1.0.0" {
		t.Error("unresolved names must stay pinned")
	}

	versions := lock.InstalledVersions()
	if versions["flutter"] != "3.4.0" || versions["keep"] != "1.0.0" {
		t.Errorf("InstalledVersions = %v", versions)
	}
}
