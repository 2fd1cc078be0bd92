package updater

import (
	"context"
	"fmt"
	"regexp"
	"strconv"
	"strings"

	"github.com/oshokin/autohost-updater/internal/logger"
	"github.com/oshokin/autohost-updater/internal/repository/manifest"
)

// archiveSuffix marks package artifacts shipped as zip archives.
const archiveSuffix = ".zip"

// majorTagShape recognizes the major.minor.tag suffix of versioned
// identifiers like "perlUnitSync_0.6.linux64".
var majorTagShape = regexp.MustCompile(`_(\d+)\.(\d+)\.(\w+)$`)

// planItem is one pending package update.
type planItem struct {
	// name is the package's unversioned current name.
	name string
	// version is the available version with the archive suffix stripped.
	version string
	// remoteName is the artifact name in the repository, suffix included.
	remoteName string
	// isArchive reports whether the artifact is a zip archive.
	isArchive bool
}

// localName is the versioned file or directory the artifact occupies on disk.
func (p planItem) localName() string {
	return p.name + "_" + p.version
}

// computePlan walks the requested packages in order and decides which need
// an update. Packages missing from the channel are skipped with a warning,
// never treated as up to date or as an error.
func computePlan(
	ctx context.Context,
	installed *manifest.State,
	channel map[string]string,
	names []string,
	force bool,
) ([]planItem, error) {
	plan := make([]planItem, 0, len(names))

	for _, name := range names {
		raw, ok := channel[name]
		if !ok {
			logger.WarnKV(ctx, "Package is not available in the release channel, skipping",
				"package", name)

			continue
		}

		version := strings.TrimSuffix(raw, archiveSuffix)

		installedVersion := installed.Packages[name]
		if installedVersion == version {
			logger.DebugKV(ctx, "Package is up to date",
				"package", name, "version", version)

			continue
		}

		if !force {
			if err := guardMajorJump(name, installedVersion, version); err != nil {
				return nil, err
			}
		}

		plan = append(plan, planItem{
			name:       name,
			version:    version,
			remoteName: name + "_" + raw,
			isArchive:  strings.HasSuffix(raw, archiveSuffix),
		})
	}

	return plan, nil
}

// guardMajorJump aborts the run when the major component of a package's
// versioned identifier changed. A new major means the on-disk layout or
// protocol may have changed incompatibly, so deployment must be a
// deliberate operator action.
func guardMajorJump(name, installedVersion, availableVersion string) error {
	if installedVersion == "" {
		return nil
	}

	installedMajor, ok := majorTag(name + "_" + installedVersion)
	if !ok {
		return nil
	}

	availableMajor, ok := majorTag(name + "_" + availableVersion)
	if !ok {
		return nil
	}

	if installedMajor != availableMajor {
		return fmt.Errorf("package %s: installed %s, available %s: %w",
			name, installedVersion, availableVersion, ErrManualUpdateRequired)
	}

	return nil
}

// majorTag extracts the major component from a versioned identifier.
func majorTag(identifier string) (int, bool) {
	match := majorTagShape.FindStringSubmatch(identifier)
	if match == nil {
		return 0, false
	}

	major, err := strconv.Atoi(match[1])
	if err != nil {
		return 0, false
	}

	return major, true
}
