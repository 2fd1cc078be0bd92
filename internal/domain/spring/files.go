package spring

import (
	"errors"
	"fmt"
)

const (
	// BaseDirName is the data subdirectory every installation must contain.
	BaseDirName = "base"

	// Archive variants published per version. The portable one is
	// mandatory, the server builds are nice to have.
	variantPortable  = "minimal-portable"
	variantDedicated = "spring-dedicated"
	variantHeadless  = "spring-headless"
)

// ErrMalformedVersion is returned for version strings whose file thresholds
// cannot be computed.
var ErrMalformedVersion = errors.New("malformed engine version")

// Thresholds at which the engine's runtime library set changed.
//
//nolint:gochecknoglobals // Parsed forms of fixed version boundaries.
var (
	versionLegacyRuntime = Version{Parts: []int{95}}
	versionImageLibSwap  = Version{Parts: []int{104}}
)

// ArchiveTag returns the artifact tag for an architecture; linux builds are
// published as static binaries under a suffixed tag.
func ArchiveTag(arch string) string {
	switch arch {
	case ArchLinux32, ArchLinux64:
		return arch + "-static"
	default:
		return arch
	}
}

// RequiredArchiveName names the portable archive an installation starts from.
func RequiredArchiveName(branch, version, arch string) string {
	return archiveName(branch, version, variantPortable, arch)
}

// OptionalArchiveNames lists the server build archives worth fetching when
// the repository has them.
func OptionalArchiveNames(branch, version, arch string) []string {
	return []string{
		archiveName(branch, version, variantDedicated, arch),
		archiveName(branch, version, variantHeadless, arch),
	}
}

// archiveName assembles a buildbot artifact name. Non-release branches
// embed the branch in the version label.
func archiveName(branch, version, variant, arch string) string {
	label := version
	if branch != BranchRelease {
		label = "{" + branch + "}" + version
	}

	return "spring_" + label + "_" + variant + "-" + ArchiveTag(arch) + ".7z"
}

// EngineFiles lists the files an installation of version on goos must
// carry. Required files decide completeness; exempt binaries are extracted
// when present but their absence does not fail an installation.
func EngineFiles(version, goos string) (required, exempt []string, err error) {
	parsed, ok := Parse(version)
	if !ok {
		return nil, nil, fmt.Errorf("%s: %w", version, ErrMalformedVersion)
	}

	switch goos {
	case "windows":
		return windowsEngineFiles(parsed), []string{"spring.exe"}, nil
	case "linux":
		// Static builds bundle their runtime, so the list is flat.
		return []string{"spring-dedicated", "spring-headless", "libunitsync.so"},
			[]string{"spring"}, nil
	default:
		return nil, nil, fmt.Errorf("%s: %w", goos, ErrUnsupportedPlatform)
	}
}

// windowsEngineFiles accounts for the runtime libraries that came and went
// across engine versions.
func windowsEngineFiles(version Version) []string {
	files := []string{"spring-dedicated.exe", "spring-headless.exe", "unitsync.dll", "zlib1.dll"}

	if version.Compare(versionLegacyRuntime) < 0 {
		files = append(files, "MSVCR71.dll", "SDL.dll")
	}

	if version.Compare(versionImageLibSwap) < 0 {
		files = append(files, "DevIL.dll")
	} else {
		files = append(files, "libIL.dll")
	}

	if version.Compare(versionLegacyRuntime) > 0 {
		files = append(files, "libcurl.dll")
	}

	return files
}
