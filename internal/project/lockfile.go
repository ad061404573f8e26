package project

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"time"

	"templstack/internal/resolver"
	"templstack/internal/version"
)

// LockFileName is the lockfile written next to the manifest.
const LockFileName = "templstack.lock"

// lockFormatVersion guards against readers older than the writer.
const lockFormatVersion = 1

var ErrInvalidLockfile = errors.New("invalid lockfile")

// LockedDependency pins one installed template.
type LockedDependency struct {
	Version  string `json:"version"`
	Registry string `json:"registry,omitempty"`
}

// Lockfile records the exact installed graph; resolution reads it to
// prefer versions already on disk.
type Lockfile struct {
	FormatVersion int                         `json:"format_version"`
	GeneratedAt   time.Time                   `json:"generated_at"`
	Installed     map[string]LockedDependency `json:"installed"`
}

// NewLockfile creates an empty lockfile.
func NewLockfile() *Lockfile {
	return &Lockfile{
		FormatVersion: lockFormatVersion,
		Installed:     make(map[string]LockedDependency),
	}
}

// LoadLockfile reads a lockfile from file. A missing file yields an empty
// lockfile, since a fresh project has nothing installed yet.
func LoadLockfile(path string) (*Lockfile, error) {
	data, err := os.ReadFile(path)
	if errors.Is(err, os.ErrNotExist) {
		return NewLockfile(), nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to read lockfile: %w", err)
	}

	var lock Lockfile
	if err := json.Unmarshal(data, &lock); err != nil {
		return nil, fmt.Errorf("failed to parse lockfile JSON: %w", err)
	}

	if lock.FormatVersion > lockFormatVersion {
		return nil, fmt.Errorf("%w: format version %d is newer than this tool understands", ErrInvalidLockfile, lock.FormatVersion)
	}
	if lock.Installed == nil {
		lock.Installed = make(map[string]LockedDependency)
	}

	for name, dep := range lock.Installed {
		if !version.IsValidVersion(dep.Version) {
			return nil, fmt.Errorf("%w: %s pins invalid version %q", ErrInvalidLockfile, name, dep.Version)
		}
	}

	return &lock, nil
}

// SaveLockfile writes the lockfile, stamping the generation time.
func SaveLockfile(path string, lock *Lockfile) error {
	lock.FormatVersion = lockFormatVersion
	lock.GeneratedAt = time.Now().UTC()

	data, err := json.MarshalIndent(lock, "", "  ")
	if err != nil {
		return fmt.Errorf("failed to marshal lockfile: %w", err)
	}
	return os.WriteFile(path, data, 0o644)
}

// InstalledVersions returns the pinned graph as name to version, the
// shape resolution takes for its stability bias.
func (l *Lockfile) InstalledVersions() map[string]string {
	out := make(map[string]string, len(l.Installed))
	for name, dep := range l.Installed {
		out[name] = dep.Version
	}
	return out
}

// Apply folds a resolution result into the lockfile: resolved names are
// pinned to their picked versions, names absent from the result are left
// alone.
func (l *Lockfile) Apply(result *resolver.Result, registryByName map[string]string) {
	for name, picked := range result.ResolvedVersions {
		dep := LockedDependency{Version: picked}
		if registry, ok := registryByName[name]; ok {
			dep.Registry = registry
		}
		l.Installed[name] = dep
	}
}

// Remove unpins one name; it reports whether it was pinned.
func (l *Lockfile) Remove(name string) bool {
	if _, ok := l.Installed[name]; !ok {
		return false
	}
	delete(l.Installed, name)
	return true
}
