package engine

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"path/filepath"
	"runtime"
	"strings"

	"github.com/google/uuid"

	"github.com/oshokin/autohost-updater/internal/archive"
	"github.com/oshokin/autohost-updater/internal/config"
	"github.com/oshokin/autohost-updater/internal/domain/spring"
	"github.com/oshokin/autohost-updater/internal/download"
	"github.com/oshokin/autohost-updater/internal/lockfile"
	"github.com/oshokin/autohost-updater/internal/logger"
	"github.com/oshokin/autohost-updater/internal/version"
)

const (
	// engineLockFilename serializes installations of one engine version.
	engineLockFilename = "engine-install.lock"

	// installDirPermissions is used when the installation directory is created.
	installDirPermissions os.FileMode = 0o755
)

// Options are inputs accepted by the engine installer entry point.
type Options struct {
	// ConfigPath is the optional path to the settings YAML file.
	ConfigPath string
	// Version is an engine version, or a branch name or alias to resolve.
	Version string
}

// installer holds the collaborators for a single engine installation.
type installer struct {
	// cfg is the validated settings the run operates on.
	cfg *config.Config
	// downloader fetches engine archives.
	downloader *download.Downloader
	// resolver answers availability questions for the target architecture.
	resolver *Resolver
	// extractor unpacks the downloaded 7z archives.
	extractor *archive.SevenZip
	// arch is the architecture tag being installed.
	arch string
	// platform selects the file set matching the tag, windows or linux.
	platform string
}

// Run installs the requested engine version for the local architecture.
func Run(ctx context.Context, opts *Options) error {
	ctx = logger.WithName(ctx, "autohost-engine")
	ctx = logger.WithKV(ctx, "run_id", uuid.NewString())

	inst, err := newInstaller(opts)
	if err != nil {
		return err
	}

	if err = inst.Run(ctx, opts.Version); err != nil {
		logger.ErrorKV(ctx, "Engine installation failed", "error", err)
		return err
	}

	logger.Info(ctx, "Engine installer completed")

	return nil
}

// newInstaller loads the settings and wires the run's collaborators.
func newInstaller(opts *Options) (*installer, error) {
	cfg, err := config.Load(opts.ConfigPath)
	if err != nil {
		return nil, err
	}

	arch := cfg.Architecture
	if arch == "" {
		if arch, err = spring.ResolveArch(runtime.GOOS, runtime.GOARCH); err != nil {
			return nil, err
		}
	}

	platform, err := spring.PlatformFor(arch)
	if err != nil {
		return nil, err
	}

	downloader := download.New(
		download.WithTimeout(cfg.Timeout),
		download.WithUserAgent(version.UserAgent()),
		download.WithTLSDisabled(cfg.DisableTLS),
	)

	return &installer{
		cfg:        cfg,
		downloader: downloader,
		resolver:   NewResolver(downloader, cfg.BuildbotURL, arch),
		extractor:  archive.NewSevenZip(cfg.ArchiveTool),
		arch:       arch,
		platform:   platform,
	}, nil
}

// Run walks the installation state machine:
// 1) Resolve a branch name or alias to the version its LATEST pointer names.
// 2) Reject identifiers that cannot be a version.
// 3) Return immediately when the installation is already complete.
// 4) Verify availability, falling back from develop to maintenance.
// 5) Take the per-installation lock.
// 6) Download and unpack the required archive.
// 7) Download and unpack the optional archives, best effort.
// 8) Verify completeness.
// The lock is released on every exit path.
func (i *installer) Run(ctx context.Context, requested string) error {
	engineVersion, err := i.resolveRequest(ctx, requested)
	if err != nil {
		return err
	}

	installDir := filepath.Join(i.cfg.SpringDir, spring.InstallDirName(engineVersion, i.arch))

	missing, err := i.checkInstallation(installDir, engineVersion)
	if err != nil {
		return err
	}

	if len(missing) == 0 {
		logger.InfoKV(ctx, "Engine is already installed",
			"version", engineVersion, "dir", installDir)

		return nil
	}

	branch, err := i.availableBranch(ctx, engineVersion)
	if err != nil {
		return err
	}

	if err = os.MkdirAll(installDir, installDirPermissions); err != nil {
		return fmt.Errorf("create installation directory: %w", err)
	}

	lock, err := lockfile.Acquire(ctx, installDir, engineLockFilename)
	if err != nil {
		return err
	}

	defer lock.Release()

	// Another process may have finished the job while we waited for the lock.
	missing, err = i.checkInstallation(installDir, engineVersion)
	if err != nil {
		return err
	}

	if len(missing) == 0 {
		logger.InfoKV(ctx, "Engine is already installed",
			"version", engineVersion, "dir", installDir)

		return nil
	}

	if err = i.installRequired(ctx, branch, engineVersion, installDir); err != nil {
		return err
	}

	i.installOptional(ctx, branch, engineVersion, installDir)

	missing, err = i.checkInstallation(installDir, engineVersion)
	if err != nil {
		return err
	}

	if len(missing) > 0 {
		return fmt.Errorf("missing %s: %w", strings.Join(missing, ", "), ErrIncomplete)
	}

	logger.InfoKV(ctx, "Engine installed",
		"version", engineVersion, "dir", installDir)

	return nil
}

// resolveRequest turns a branch name or alias into the version its LATEST
// pointer names; anything else must already look like a version.
func (i *installer) resolveRequest(ctx context.Context, requested string) (string, error) {
	if branch, ok := spring.CanonicalBranch(requested); ok {
		resolved, err := i.resolver.ResolveLatest(ctx, branch)
		if err != nil {
			return "", err
		}

		logger.InfoKV(ctx, "Resolved branch to its latest version",
			"branch", branch, "version", resolved)

		return resolved, nil
	}

	if requested == "" || requested[0] < '0' || requested[0] > '9' {
		return "", fmt.Errorf("%q: %w", requested, spring.ErrMalformedVersion)
	}

	return requested, nil
}

// availableBranch verifies availability on the version's home branch and
// returns the branch that actually carries it. Development builds are
// retried on the maintenance branch, which shares the naming scheme.
func (i *installer) availableBranch(ctx context.Context, engineVersion string) (string, error) {
	branch := spring.ResolveBranch(engineVersion)

	err := i.resolver.CheckAvailability(ctx, branch, engineVersion)
	if err == nil {
		return branch, nil
	}

	if branch != spring.BranchDevelopment || !isNotCarried(err) {
		return "", err
	}

	logger.WarnKV(ctx, "Version not found on the development branch, trying maintenance",
		"version", engineVersion, "error", err)

	if err = i.resolver.CheckAvailability(ctx, spring.BranchMaintenance, engineVersion); err != nil {
		return "", err
	}

	return spring.BranchMaintenance, nil
}

// isNotCarried reports whether an availability failure means the branch
// does not carry the version, as opposed to the check itself failing.
func isNotCarried(err error) bool {
	return errors.Is(err, ErrVersionUnavailable) ||
		errors.Is(err, ErrNoPackageForArch) ||
		errors.Is(err, ErrArchiveMissing)
}

// installRequired downloads and unpacks the archive every installation needs.
func (i *installer) installRequired(ctx context.Context, branch, engineVersion, installDir string) error {
	name := spring.RequiredArchiveName(branch, engineVersion, i.arch)

	archiveURL, err := i.resolver.ArchiveURL(branch, engineVersion, name)
	if err != nil {
		return fmt.Errorf("%v: %w", err, ErrDownloadFailed)
	}

	destination := filepath.Join(installDir, name)

	logger.InfoKV(ctx, "Downloading engine archive", "url", archiveURL)

	status, err := i.downloader.Fetch(ctx, archiveURL, destination)
	if err != nil {
		if status == http.StatusNotFound {
			return fmt.Errorf("%s: %w", name, ErrNoPackageForArch)
		}

		return fmt.Errorf("%s (status %d): %v: %w", name, status, err, ErrDownloadFailed)
	}

	if err = i.extract(ctx, destination, installDir, engineVersion); err != nil {
		return fmt.Errorf("%s: %v: %w", name, err, ErrExtractFailed)
	}

	return nil
}

// installOptional fetches the dedicated and headless archives. They are not
// published for every version, so a missing archive is skipped quietly and
// other failures only degrade the installation.
func (i *installer) installOptional(ctx context.Context, branch, engineVersion, installDir string) {
	for _, name := range spring.OptionalArchiveNames(branch, engineVersion, i.arch) {
		archiveURL, err := i.resolver.ArchiveURL(branch, engineVersion, name)
		if err != nil {
			logger.WarnKV(ctx, "Skipping optional archive", "archive", name, "error", err)
			continue
		}

		destination := filepath.Join(installDir, name)

		status, err := i.downloader.Fetch(ctx, archiveURL, destination)
		if err != nil {
			if status == http.StatusNotFound {
				logger.DebugKV(ctx, "Optional archive is not published", "archive", name)
			} else {
				logger.WarnKV(ctx, "Optional archive download failed",
					"archive", name, "error", err)
			}

			continue
		}

		if err = i.extract(ctx, destination, installDir, engineVersion); err != nil {
			logger.WarnKV(ctx, "Optional archive extraction failed",
				"archive", name, "error", err)
		}
	}
}

// extract unpacks the files the engine needs from one archive and deletes
// the archive afterwards, even when extraction fails.
func (i *installer) extract(ctx context.Context, archivePath, installDir, engineVersion string) error {
	required, exempt, err := spring.EngineFiles(engineVersion, i.platform)
	if err != nil {
		return err
	}

	files := append([]string{spring.BaseDirName}, required...)
	files = append(files, exempt...)

	err = i.extractor.Extract(ctx, archivePath, installDir, files...)

	// The archive is spent either way; only the extracted tree matters.
	_ = os.Remove(archivePath)

	return err
}

// checkInstallation lists the required names absent from an installation
// directory. An empty result means the installation is complete.
func (i *installer) checkInstallation(installDir, engineVersion string) ([]string, error) {
	required, _, err := spring.EngineFiles(engineVersion, i.platform)
	if err != nil {
		return nil, err
	}

	var missing []string

	if info, statErr := os.Stat(filepath.Join(installDir, spring.BaseDirName)); statErr != nil || !info.IsDir() {
		missing = append(missing, spring.BaseDirName+"/")
	}

	for _, name := range required {
		if _, statErr := os.Stat(filepath.Join(installDir, name)); statErr != nil {
			missing = append(missing, name)
		}
	}

	return missing, nil
}
