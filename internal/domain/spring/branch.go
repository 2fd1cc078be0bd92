package spring

import (
	"regexp"
	"strings"
)

const (
	// BranchRelease hosts numbered engine releases.
	BranchRelease = "master"
	// BranchDevelopment hosts in-progress builds named by commit count.
	BranchDevelopment = "develop"
	// BranchMaintenance receives development builds relocated after a
	// release is branched off.
	BranchMaintenance = "maintenance"
)

// releaseShape is the strict major.minor form only numbered releases use.
var releaseShape = regexp.MustCompile(`^\d+\.\d+$`)

// branchAliases maps the channel names operators configure to buildbot
// branch directories.
//
//nolint:gochecknoglobals // Read-only alias table.
var branchAliases = map[string]string{
	"stable":          BranchRelease,
	"testing":         BranchMaintenance,
	"unstable":        BranchDevelopment,
	BranchRelease:     BranchRelease,
	BranchMaintenance: BranchMaintenance,
	BranchDevelopment: BranchDevelopment,
}

// ResolveBranch maps a version string to the branch that built it: the
// strict major.minor shape means a numbered release, anything else comes
// from the development line.
func ResolveBranch(version string) string {
	if releaseShape.MatchString(version) {
		return BranchRelease
	}

	return BranchDevelopment
}

// CanonicalBranch resolves a branch name or channel alias to a buildbot
// branch directory.
func CanonicalBranch(name string) (string, bool) {
	branch, ok := branchAliases[strings.ToLower(strings.TrimSpace(name))]

	return branch, ok
}

// ParseLatestPointer extracts the version from a branch LATEST file: the
// release branch stores the bare version, other branches prefix it with
// "{branch}".
func ParseLatestPointer(branch, content string) string {
	return strings.TrimPrefix(strings.TrimSpace(content), "{"+branch+"}")
}
