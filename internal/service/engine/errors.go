package engine

import (
	"errors"

	"github.com/oshokin/autohost-updater/internal/domain/spring"
	"github.com/oshokin/autohost-updater/internal/lockfile"
)

var (
	// ErrVersionUnavailable is returned when the branch listing does not
	// contain the requested version.
	ErrVersionUnavailable = errors.New("engine version not available on branch")
	// ErrNoPackageForArch is returned when the version exists but has no
	// directory for the target architecture.
	ErrNoPackageForArch = errors.New("no engine package for this architecture")
	// ErrArchiveMissing is returned when the per-arch directory exists but
	// does not reference the required archive.
	ErrArchiveMissing = errors.New("required archive missing from version")
	// ErrAvailabilityCheck is returned for failures that say nothing about
	// the version itself, like an unreachable buildbot.
	ErrAvailabilityCheck = errors.New("availability check failed")
	// ErrDownloadFailed is returned when a required archive cannot be fetched.
	ErrDownloadFailed = errors.New("engine download failed")
	// ErrExtractFailed is returned when the required archive cannot be unpacked.
	ErrExtractFailed = errors.New("engine extraction failed")
	// ErrIncomplete is returned when required files are still missing after
	// extraction; the error names them.
	ErrIncomplete = errors.New("engine installation incomplete")
)

// ExitCode maps an installation error to the stable process exit code.
// Unknown failures map to 1.
func ExitCode(err error) int {
	switch {
	case err == nil:
		return 0
	case errors.Is(err, spring.ErrMalformedVersion):
		return 2
	case errors.Is(err, ErrVersionUnavailable):
		return 3
	case errors.Is(err, ErrNoPackageForArch):
		return 4
	case errors.Is(err, ErrArchiveMissing):
		return 5
	case errors.Is(err, ErrAvailabilityCheck):
		return 6
	case errors.Is(err, lockfile.ErrBusy):
		return 7
	case errors.Is(err, lockfile.ErrIO):
		return 8
	case errors.Is(err, ErrDownloadFailed):
		return 9
	case errors.Is(err, ErrExtractFailed):
		return 10
	case errors.Is(err, ErrIncomplete):
		return 11
	default:
		return 1
	}
}
