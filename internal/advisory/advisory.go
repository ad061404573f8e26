// Package advisory defines the vulnerability/license lookup collaborator
// consumed by the resolver. Sources are pluggable: static data for tests
// and air-gapped use, or a remote feed behind the transport layer.
package advisory

import (
	"context"
	"fmt"
)

// CVE describes one known vulnerability for a template/plugin version.
type CVE struct {
	ID       string `json:"id"`
	Severity string `json:"severity"`
	Summary  string `json:"summary,omitempty"`
}

// Report is the lookup result for one (name, version) pair.
type Report struct {
	CVEs      []CVE  `json:"cves,omitempty"`
	LicenseID string `json:"license_id,omitempty"`
}

// Source answers vulnerability and license queries.
type Source interface {
	Lookup(ctx context.Context, name, version string) (Report, error)
}

// Policy governs how resolution treats advisory findings. The default is
// advisory-only: findings are reported, never blocking. Strict turns any
// finding into a resolution failure.
type Policy struct {
	Strict           bool
	AllowedLicenses  []string
	BlockedLicenses  []string
}

// LicenseAllowed checks a license against the policy lists. An empty
// license passes; an empty allow list permits anything not blocked.
func (p Policy) LicenseAllowed(licenseID string) bool {
	if licenseID == "" {
		return true
	}

	for _, blocked := range p.BlockedLicenses {
		if licenseID == blocked {
			return false
		}
	}

	if len(p.AllowedLicenses) == 0 {
		return true
	}
	for _, allowed := range p.AllowedLicenses {
		if licenseID == allowed {
			return true
		}
	}
	return false
}

// StaticSource is a map-backed Source keyed by "name@version".
type StaticSource struct {
	reports map[string]Report
}

var _ Source = (*StaticSource)(nil)

// NewStaticSource creates an empty static source.
func NewStaticSource() *StaticSource {
	return &StaticSource{reports: make(map[string]Report)}
}

// Add registers the report for name@version.
func (s *StaticSource) Add(name, version string, report Report) {
	s.reports[key(name, version)] = report
}

// Lookup returns the report for name@version; unknown pairs get an empty
// report, never an error.
func (s *StaticSource) Lookup(ctx context.Context, name, version string) (Report, error) {
	return s.reports[key(name, version)], nil
}

func key(name, version string) string {
	return fmt.Sprintf("%s@%s", name, version)
}
