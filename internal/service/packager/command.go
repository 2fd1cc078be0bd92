package packager

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"github.com/google/uuid"

	"github.com/oshokin/autohost-updater/internal/archive"
	"github.com/oshokin/autohost-updater/internal/config"
	"github.com/oshokin/autohost-updater/internal/domain/spring"
	"github.com/oshokin/autohost-updater/internal/logger"
	"github.com/oshokin/autohost-updater/internal/repository/manifest"
)

const (
	// manifestFilename is the package listing the repository serves.
	manifestFilename = "packages.txt"

	// archiveSuffix marks artifacts shipped as zip archives.
	archiveSuffix = ".zip"
)

var (
	// errChannelRequired is returned when no release channel is named.
	errChannelRequired = errors.New("release channel is required")
	// errNoArtifacts is returned when the scan directory holds nothing versioned.
	errNoArtifacts = errors.New("no versioned artifacts found")
)

// Options contains inputs for the packager entry point.
type Options struct {
	// ConfigPath is the optional path to the settings YAML file.
	ConfigPath string
	// Channel is the release channel section to build or replace.
	Channel string
	// Dir is the directory scanned for artifacts, the working directory by default.
	Dir string
}

// artifact is one versioned file or directory found in the scan directory.
type artifact struct {
	// name is the package's unversioned name.
	name string
	// value is the manifest entry: the version, suffixed when zipped.
	value string
	// upload is the file to publish next to the manifest.
	upload string
}

// packager turns a directory of build outputs into a publishable channel.
// It is intentionally unexported—call Run(ctx, Options) from callers.
type packager struct {
	// cfg supplies the repository URL named in the upload instructions.
	cfg *config.Config
	// channel is the manifest section being built.
	channel string
	// dir is the scanned artifact directory.
	dir string
}

// Run executes the packaging workflow.
func Run(ctx context.Context, opts *Options) error {
	ctx = logger.WithName(ctx, "autohost-packager")
	ctx = logger.WithKV(ctx, "run_id", uuid.NewString())

	if opts.Channel == "" {
		return errChannelRequired
	}

	cfg, err := config.Load(opts.ConfigPath)
	if err != nil {
		return err
	}

	dir := opts.Dir
	if dir == "" {
		dir = "."
	}

	p := &packager{cfg: cfg, channel: opts.Channel, dir: dir}

	if err = p.Run(ctx); err != nil {
		logger.ErrorKV(ctx, "Packaging failed", "error", err)
		return err
	}

	logger.Info(ctx, "Packager completed")

	return nil
}

// Run scans the artifact directory, rewrites the channel section of the
// manifest and prints the upload list.
func (p *packager) Run(ctx context.Context) error {
	artifacts, err := p.scanArtifacts(ctx)
	if err != nil {
		return err
	}

	if len(artifacts) == 0 {
		return fmt.Errorf("%s: %w", p.dir, errNoArtifacts)
	}

	if err = p.writeManifest(ctx, artifacts); err != nil {
		return err
	}

	p.printNextSteps(ctx, artifacts)

	return nil
}

// scanArtifacts collects the versioned files and directories of the scan
// directory, keyed by package name. Directories are zipped in place so the
// upload list holds plain files only; when a package shows up at several
// versions the newest one wins.
func (p *packager) scanArtifacts(ctx context.Context) (map[string]artifact, error) {
	entries, err := os.ReadDir(p.dir)
	if err != nil {
		return nil, fmt.Errorf("scan %s: %w", p.dir, err)
	}

	artifacts := make(map[string]artifact, len(entries))

	for _, entry := range entries {
		base := entry.Name()
		if base == manifestFilename || base == config.DefaultConfigFilename {
			continue
		}

		name, version, ok := splitVersioned(strings.TrimSuffix(base, archiveSuffix))
		if !ok {
			logger.WarnKV(ctx, "Skipping file without a version suffix", "file", base)
			continue
		}

		found := artifact{name: name, value: version, upload: base}

		switch {
		case entry.IsDir():
			err = archive.CreateZip(filepath.Join(p.dir, base), filepath.Join(p.dir, base+archiveSuffix))
			if err != nil {
				return nil, err
			}

			logger.InfoKV(ctx, "Packed directory artifact", "dir", base)

			found.value += archiveSuffix
			found.upload += archiveSuffix
		case strings.HasSuffix(base, archiveSuffix):
			found.value += archiveSuffix
		}

		current, exists := artifacts[name]
		if exists {
			if !newerValue(found.value, current.value) {
				continue
			}

			logger.WarnKV(ctx, "Package found at several versions, keeping the newest",
				"package", name, "kept", found.value, "dropped", current.value)
		}

		artifacts[name] = found
	}

	return artifacts, nil
}

// splitVersioned splits an artifact base name into package name and version.
// The version is everything after the last underscore and must start with a
// digit.
func splitVersioned(base string) (name, version string, ok bool) {
	idx := strings.LastIndexByte(base, '_')
	if idx <= 0 || idx == len(base)-1 {
		return "", "", false
	}

	name, version = base[:idx], base[idx+1:]
	if version[0] < '0' || version[0] > '9' {
		return "", "", false
	}

	return name, version, true
}

// newerValue reports whether candidate should replace current. Values the
// comparator cannot order are taken, so an odd one-off version still ships.
func newerValue(candidate, current string) bool {
	c, ok := spring.CompareVersions(
		strings.TrimSuffix(candidate, archiveSuffix),
		strings.TrimSuffix(current, archiveSuffix))
	if !ok {
		return true
	}

	return c > 0
}

// writeManifest replaces the packager's channel section, leaving every
// other channel as the existing manifest had it.
func (p *packager) writeManifest(ctx context.Context, artifacts map[string]artifact) error {
	path := filepath.Join(p.dir, manifestFilename)

	parsed := manifest.Manifest{}

	contents, err := os.ReadFile(filepath.Clean(path))

	switch {
	case err == nil:
		parsed = manifest.Parse(string(contents))
	case !errors.Is(err, os.ErrNotExist):
		return fmt.Errorf("read %s: %w", path, err)
	}

	section := make(map[string]string, len(artifacts))
	for name, art := range artifacts {
		section[name] = art.value
	}

	parsed[p.channel] = section

	if err = os.WriteFile(path, []byte(manifest.Format(parsed)), config.DefaultFilePermissions); err != nil {
		return fmt.Errorf("write %s: %w", path, err)
	}

	logger.InfoKV(ctx, "Manifest updated",
		"path", path, "channel", p.channel, "packages", len(section))

	return nil
}

// printNextSteps logs the files an operator has to publish.
func (p *packager) printNextSteps(ctx context.Context, artifacts map[string]artifact) {
	files := make([]string, 0, len(artifacts)+1)
	for _, art := range artifacts {
		files = append(files, art.upload)
	}

	files = append(files, manifestFilename)
	sort.Strings(files)

	var builder strings.Builder

	builder.WriteString("You should upload the following files to ")
	builder.WriteString(p.cfg.RepositoryURL)
	builder.WriteString(":\n")

	for i, name := range files {
		if i > 0 {
			builder.WriteString(",\n")
		}

		builder.WriteString(name)
	}

	logger.Info(ctx, builder.String())
}
