package update

import (
	"regexp"
	"strconv"
)

// stablePattern matches stable release artifact names. RCs, dev and beta
// builds do not match and are never offered for install.
var stablePattern = regexp.MustCompile(`^retina-node-v(\d+)\.(\d+)\.(\d+)$`)

// Version is a parsed stable release version.
type Version struct {
	Major, Minor, Patch int
}

// Less reports strict ordering between versions.
func (v Version) Less(o Version) bool {
	if v.Major != o.Major {
		return v.Major < o.Major
	}
	if v.Minor != o.Minor {
		return v.Minor < o.Minor
	}
	return v.Patch < o.Patch
}

// ParseVersion extracts the version from a "retina-node-vX.Y.Z" artifact
// name. Non-matching names (including prereleases) return false.
func ParseVersion(artifactName string) (Version, bool) {
	m := stablePattern.FindStringSubmatch(artifactName)
	if m == nil {
		return Version{}, false
	}
	major, _ := strconv.Atoi(m[1])
	minor, _ := strconv.Atoi(m[2])
	patch, _ := strconv.Atoi(m[3])
	return Version{Major: major, Minor: minor, Patch: patch}, true
}

// FindLatestStable returns the stable artifact with the highest version, or
// false when none of the artifacts is a stable release.
func FindLatestStable(artifacts []Artifact) (Artifact, bool) {
	var (
		best        Artifact
		bestVersion Version
		found       bool
	)
	for _, a := range artifacts {
		v, ok := ParseVersion(a.Name)
		if !ok {
			continue
		}
		if !found || bestVersion.Less(v) {
			best, bestVersion, found = a, v, true
		}
	}
	return best, found
}
