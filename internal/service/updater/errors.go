package updater

import (
	"errors"

	"github.com/oshokin/autohost-updater/internal/lockfile"
)

var (
	// ErrManifestUnavailable is returned when packages.txt cannot be fetched.
	ErrManifestUnavailable = errors.New("cannot download package manifest")
	// ErrManifestEmpty is returned when the fetched manifest parses to no
	// sections at all, which usually means the repository URL serves
	// something else entirely.
	ErrManifestEmpty = errors.New("package manifest has no sections")
	// ErrChannelMissing is returned when the configured release channel has
	// no packages in the manifest.
	ErrChannelMissing = errors.New("release channel absent from manifest")
	// ErrManualUpdateRequired is returned when a package's major version
	// changed; the operator has to follow the upgrade documentation instead
	// of letting the updater deploy an incompatible layout.
	ErrManualUpdateRequired = errors.New("major version jump requires manual update")
	// ErrDownloadFailed is returned when a package artifact cannot be fetched.
	ErrDownloadFailed = errors.New("package download failed")
	// ErrExtractFailed is returned when a package archive cannot be unpacked.
	ErrExtractFailed = errors.New("package extraction failed")
	// ErrSwapFailed is returned when the current name cannot be pointed at
	// the new artifact; the installation must be checked manually.
	ErrSwapFailed = errors.New("current name swap failed")
	// ErrStatePersistFailed is returned when files were already swapped but
	// the installed record could not be written.
	ErrStatePersistFailed = errors.New("installed state not persisted")
)

// ExitCode maps a run error to the stable process exit code supervisors
// key their alerting on. Unknown failures map to 1.
func ExitCode(err error) int {
	switch {
	case err == nil:
		return 0
	case errors.Is(err, lockfile.ErrBusy):
		return 2
	case errors.Is(err, lockfile.ErrIO):
		return 3
	case errors.Is(err, ErrManifestUnavailable):
		return 4
	case errors.Is(err, ErrManifestEmpty):
		return 5
	case errors.Is(err, ErrChannelMissing):
		return 6
	case errors.Is(err, ErrManualUpdateRequired):
		return 7
	case errors.Is(err, ErrDownloadFailed):
		return 8
	case errors.Is(err, ErrExtractFailed):
		return 9
	case errors.Is(err, ErrSwapFailed):
		return 10
	case errors.Is(err, ErrStatePersistFailed):
		return 11
	default:
		return 1
	}
}
