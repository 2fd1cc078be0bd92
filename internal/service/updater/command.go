package updater

import (
	"context"
	"errors"
	"fmt"
	"net/url"
	"os"
	"path"
	"path/filepath"

	"github.com/google/uuid"

	"github.com/oshokin/autohost-updater/internal/archive"
	"github.com/oshokin/autohost-updater/internal/config"
	"github.com/oshokin/autohost-updater/internal/download"
	"github.com/oshokin/autohost-updater/internal/lockfile"
	"github.com/oshokin/autohost-updater/internal/logger"
	"github.com/oshokin/autohost-updater/internal/repository/manifest"
	"github.com/oshokin/autohost-updater/internal/version"
)

const (
	// manifestFilename is the package listing served by the repository.
	manifestFilename = "packages.txt"

	// upgradeDocFilename holds the manual upgrade instructions referenced
	// when the major-version-jump guard fires.
	upgradeDocFilename = "UPDATE.html"

	// lockFilename serializes package syncs per install directory.
	lockFilename = "autohost-update.lock"

	// installDirPermissions is used when the install directory is first created.
	installDirPermissions os.FileMode = 0o755
)

// Options are inputs accepted by the updater entry point.
type Options struct {
	// ConfigPath is the optional path to the settings YAML file.
	ConfigPath string
	// Packages overrides the configured package order when non-empty.
	Packages []string
	// Force disables the major-version-jump guard.
	Force bool
	// CheckOnly computes and logs the update plan without changing anything.
	CheckOnly bool
}

// runner holds the collaborators for a single sync execution.
// It is intentionally unexported—call Run(ctx, Options) from callers.
type runner struct {
	// cfg is the validated settings the run operates on.
	cfg *config.Config
	// downloader fetches the manifest and package artifacts.
	downloader *download.Downloader
	// repo persists the installed-packages record.
	repo manifest.Repository
	// swap applies the platform's current-name strategy.
	swap *swapper
	// packages is the effective package order for this run.
	packages []string
	// force disables the major-version-jump guard.
	force bool
	// checkOnly stops the run after the plan is computed.
	checkOnly bool
}

// Run executes a package sync and returns the number of updated packages.
// In check-only mode the count reports how many packages would update.
func Run(ctx context.Context, opts *Options) (int, error) {
	ctx = logger.WithName(ctx, "autohost-updater")
	ctx = logger.WithKV(ctx, "run_id", uuid.NewString())

	r, err := newRunner(opts)
	if err != nil {
		return 0, err
	}

	count, err := r.Run(ctx)
	if err != nil {
		logger.ErrorKV(ctx, "Package sync failed", "error", err)
		return count, err
	}

	logger.Info(ctx, "Package updater completed")

	return count, nil
}

// newRunner loads the settings and wires the run's collaborators.
func newRunner(opts *Options) (*runner, error) {
	cfg, err := config.Load(opts.ConfigPath)
	if err != nil {
		return nil, err
	}

	packages := opts.Packages
	if len(packages) == 0 {
		packages = cfg.Packages
	}

	return &runner{
		cfg: cfg,
		downloader: download.New(
			download.WithTimeout(cfg.Timeout),
			download.WithUserAgent(version.UserAgent()),
			download.WithTLSDisabled(cfg.DisableTLS),
		),
		repo:      manifest.NewFileRepository(filepath.Join(cfg.InstallDir, cfg.StateFilename)),
		swap:      newSwapper(),
		packages:  packages,
		force:     opts.Force,
		checkOnly: opts.CheckOnly,
	}, nil
}

// Run walks the sync state machine:
// 1) Take the install-directory lock.
// 2) Read the installed record.
// 3) Fetch the manifest and select the release channel.
// 4) Compute the update plan in the requested package order.
// 5) Download and extract the planned artifacts.
// 6) Swap current names and persist the record.
// The lock is released on every exit path.
func (r *runner) Run(ctx context.Context) (int, error) {
	if len(r.packages) == 0 {
		logger.Warn(ctx, "No packages requested, nothing to do")
		return 0, nil
	}

	if err := os.MkdirAll(r.cfg.InstallDir, installDirPermissions); err != nil {
		return 0, fmt.Errorf("create install directory: %w", err)
	}

	lock, err := lockfile.Acquire(ctx, r.cfg.InstallDir, lockFilename)
	if err != nil {
		return 0, err
	}

	defer lock.Release()

	installed, err := r.repo.Load(ctx)
	if err != nil {
		return 0, err
	}

	channel, err := r.fetchChannel(ctx)
	if err != nil {
		return 0, err
	}

	plan, err := computePlan(ctx, installed, channel, r.packages, r.force)
	if err != nil {
		if errors.Is(err, ErrManualUpdateRequired) {
			docURL, _ := r.artifactURL(upgradeDocFilename)
			logger.ErrorKV(ctx, "Manual update required, follow the upgrade instructions",
				"url", docURL)
		}

		return 0, err
	}

	if len(plan) == 0 {
		logger.Info(ctx, "All packages are up to date")
		return 0, nil
	}

	if r.checkOnly {
		r.logPlan(ctx, plan)
		return len(plan), nil
	}

	return r.applyPlan(ctx, installed, plan)
}

// fetchChannel downloads the manifest and picks the configured release section.
func (r *runner) fetchChannel(ctx context.Context) (map[string]string, error) {
	manifestURL, err := r.artifactURL(manifestFilename)
	if err != nil {
		return nil, fmt.Errorf("%v: %w", err, ErrManifestUnavailable)
	}

	logger.InfoKV(ctx, "Retrieving the list of available packages", "url", manifestURL)

	text, _, err := r.downloader.FetchString(ctx, manifestURL)
	if err != nil {
		return nil, fmt.Errorf("%v: %w", err, ErrManifestUnavailable)
	}

	parsed := manifest.Parse(text)
	if len(parsed) == 0 {
		return nil, fmt.Errorf("%s: %w", manifestURL, ErrManifestEmpty)
	}

	channel, ok := parsed[r.cfg.Release]
	if !ok || len(channel) == 0 {
		return nil, fmt.Errorf("channel %s: %w", r.cfg.Release, ErrChannelMissing)
	}

	return channel, nil
}

// applyPlan downloads every planned artifact, then swaps current names and
// persists the installed record. Packages already swapped before a later
// failure are not rolled back.
func (r *runner) applyPlan(ctx context.Context, installed *manifest.State, plan []planItem) (int, error) {
	for _, item := range plan {
		if err := r.fetchArtifact(ctx, item); err != nil {
			return 0, err
		}
	}

	updated := 0

	for _, item := range plan {
		applied, err := r.swap.Swap(ctx, r.cfg.InstallDir, item.name, item.localName())
		if err != nil {
			return updated, err
		}

		if !applied {
			// Left out of the record so a later run retries this package.
			continue
		}

		installed.Packages[item.name] = item.version
		updated++

		logger.InfoKV(ctx, "Package updated",
			"package", item.name, "version", item.version)
	}

	if updated == 0 {
		return 0, nil
	}

	if err := r.repo.Save(ctx, installed); err != nil {
		logger.ErrorKV(ctx,
			"Files were updated but the installed record was not saved, check system consistency manually",
			"error", err)

		return updated, fmt.Errorf("%v: %w", err, ErrStatePersistFailed)
	}

	return updated, nil
}

// fetchArtifact downloads one planned artifact and prepares it on disk:
// plain files become executable, archives are unpacked into their versioned
// directory and then deleted.
func (r *runner) fetchArtifact(ctx context.Context, item planItem) error {
	artifactURL, err := r.artifactURL(item.remoteName)
	if err != nil {
		return fmt.Errorf("%v: %w", err, ErrDownloadFailed)
	}

	destination := filepath.Join(r.cfg.InstallDir, item.remoteName)

	logger.InfoKV(ctx, "Downloading package",
		"package", item.name, "url", artifactURL)

	status, err := r.downloader.Fetch(ctx, artifactURL, destination)
	if err != nil {
		return fmt.Errorf("%s (status %d): %v: %w", item.remoteName, status, err, ErrDownloadFailed)
	}

	if !item.isArchive {
		// Scripts and binaries must come out runnable.
		if err = os.Chmod(destination, executableFileMode); err != nil {
			return fmt.Errorf("chmod %s: %v: %w", destination, err, ErrDownloadFailed)
		}

		return nil
	}

	extractDir := filepath.Join(r.cfg.InstallDir, item.localName())

	err = archive.ExtractZip(destination, extractDir)

	// The archive is spent either way; only the extracted tree matters.
	_ = os.Remove(destination)

	if err != nil {
		return fmt.Errorf("%s: %v: %w", item.remoteName, err, ErrExtractFailed)
	}

	return nil
}

// logPlan reports what a real run would change.
func (r *runner) logPlan(ctx context.Context, plan []planItem) {
	for _, item := range plan {
		logger.InfoKV(ctx, "Package needs an update",
			"package", item.name, "version", item.version)
	}

	logger.InfoKV(ctx, "Check-only mode, no changes applied",
		"pending_updates", len(plan))
}

// artifactURL joins the repository base URL with an artifact name.
func (r *runner) artifactURL(name string) (string, error) {
	base, err := url.Parse(r.cfg.RepositoryURL)
	if err != nil {
		return "", err
	}

	// path.Join normalizes duplicate slashes when composing the URL path.
	base.Path = path.Join(base.Path, name)

	return base.String(), nil
}
