package version

import (
	"fmt"

	"github.com/Masterminds/semver/v3"
)

// ParseVersion parses a semantic version string.
func ParseVersion(versionStr string) (*semver.Version, error) {
	if versionStr == "" {
		return nil, fmt.Errorf("%w: version cannot be empty", ErrParse)
	}

	v, err := semver.NewVersion(versionStr)
	if err != nil {
		return nil, fmt.Errorf("%w: invalid version %q: %v", ErrParse, versionStr, err)
	}

	return v, nil
}

// CompareVersions compares two version strings and returns:
// -1 if version1 < version2
//
//	0 if version1 == version2
//	1 if version1 > version2
//
// Build metadata is ignored, pre-releases sort below their release.
func CompareVersions(version1, version2 string) (int, error) {
	v1, err := ParseVersion(version1)
	if err != nil {
		return 0, err
	}

	v2, err := ParseVersion(version2)
	if err != nil {
		return 0, err
	}

	return v1.Compare(v2), nil
}

// IsValidVersion checks if a string is a valid semantic version.
func IsValidVersion(versionStr string) bool {
	_, err := ParseVersion(versionStr)
	return err == nil
}

// HighestVersion returns the highest version string from candidates, or an
// error if candidates is empty or contains an unparsable version.
func HighestVersion(candidates []string) (string, error) {
	if len(candidates) == 0 {
		return "", fmt.Errorf("no candidate versions")
	}

	best, err := ParseVersion(candidates[0])
	if err != nil {
		return "", err
	}

	for _, c := range candidates[1:] {
		v, err := ParseVersion(c)
		if err != nil {
			return "", err
		}
		if v.GreaterThan(best) {
			best = v
		}
	}

	return best.Original(), nil
}
