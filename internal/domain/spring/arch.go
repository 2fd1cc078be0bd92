package spring

import (
	"errors"
	"fmt"
)

// Architecture tags used by the buildbot to name per-platform artifacts.
const (
	ArchWin32   = "win32"
	ArchWin64   = "win64"
	ArchLinux32 = "linux32"
	ArchLinux64 = "linux64"
)

// ErrUnsupportedPlatform is returned for OS/arch pairs the buildbot does
// not produce engine builds for.
var ErrUnsupportedPlatform = errors.New("no engine builds for this platform")

// ResolveArch maps a GOOS/GOARCH pair to its buildbot architecture tag.
func ResolveArch(goos, goarch string) (string, error) {
	switch goos + "/" + goarch {
	case "windows/386":
		return ArchWin32, nil
	case "windows/amd64":
		return ArchWin64, nil
	case "linux/386":
		return ArchLinux32, nil
	case "linux/amd64":
		return ArchLinux64, nil
	default:
		return "", fmt.Errorf("%s/%s: %w", goos, goarch, ErrUnsupportedPlatform)
	}
}

// PlatformFor maps an architecture tag back to its operating system name,
// so a configured tag override also selects the matching file set.
func PlatformFor(arch string) (string, error) {
	switch arch {
	case ArchWin32, ArchWin64:
		return "windows", nil
	case ArchLinux32, ArchLinux64:
		return "linux", nil
	default:
		return "", fmt.Errorf("%s: %w", arch, ErrUnsupportedPlatform)
	}
}

// InstallDirName names the directory one engine installation occupies.
func InstallDirName(version, arch string) string {
	return version + "-" + arch
}
