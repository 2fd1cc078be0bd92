package spring

import (
	"regexp"
	"strconv"
	"strings"
)

var (
	// versionShape splits a version string into its dotted numeric prefix
	// and whatever trails it.
	versionShape = regexp.MustCompile(`^(\d+(?:\.\d+)*)(.*)$`)
	// commitCountShape extracts the commit count development build names
	// embed right after the numeric prefix.
	commitCountShape = regexp.MustCompile(`^-(\d+)-`)
)

// Version is the parsed form of an engine version string.
type Version struct {
	// Parts are the leading dot-separated numeric components.
	Parts []int
	// CommitCount is the integer from a trailing "-<digits>-" pattern,
	// zero when the pattern is absent.
	CommitCount int
}

// Parse decomposes an engine version string. It reports ok=false for
// strings that do not start with a dotted numeric prefix; such versions
// exist in the wild (branch aliases, tagged builds) and are simply not
// orderable.
func Parse(s string) (Version, bool) {
	match := versionShape.FindStringSubmatch(s)
	if match == nil {
		return Version{}, false
	}

	rawParts := strings.Split(match[1], ".")
	parts := make([]int, 0, len(rawParts))

	for _, raw := range rawParts {
		number, err := strconv.Atoi(raw)
		if err != nil {
			return Version{}, false
		}

		parts = append(parts, number)
	}

	version := Version{Parts: parts}

	if commit := commitCountShape.FindStringSubmatch(match[2]); commit != nil {
		number, err := strconv.Atoi(commit[1])
		if err != nil {
			return Version{}, false
		}

		version.CommitCount = number
	}

	return version, true
}

// Compare orders v against other: negative when v is older, positive when
// newer, zero when equal. Missing trailing components count as zero, so
// "95" orders before "95.1" and equals "95.0".
func (v Version) Compare(other Version) int {
	length := len(v.Parts)
	if len(other.Parts) > length {
		length = len(other.Parts)
	}

	for i := 0; i < length; i++ {
		var left, right int

		if i < len(v.Parts) {
			left = v.Parts[i]
		}

		if i < len(other.Parts) {
			right = other.Parts[i]
		}

		if left != right {
			if left < right {
				return -1
			}

			return 1
		}
	}

	switch {
	case v.CommitCount < other.CommitCount:
		return -1
	case v.CommitCount > other.CommitCount:
		return 1
	default:
		return 0
	}
}

// CompareVersions orders two version strings. It reports ok=false when
// either side does not parse; the caller decides what incomparable means
// for its flow.
func CompareVersions(a, b string) (int, bool) {
	left, ok := Parse(a)
	if !ok {
		return 0, false
	}

	right, ok := Parse(b)
	if !ok {
		return 0, false
	}

	return left.Compare(right), true
}
