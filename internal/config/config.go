package config

import (
	"errors"
	"fmt"
	"net/url"
	"os"
	"path/filepath"
	"strings"
	"time"

	"gopkg.in/yaml.v3"
)

// Config holds the repository endpoints and directories shared by the
// autohost binaries.
type Config struct {
	// RepositoryURL is the base URL hosting packages.txt and package artifacts.
	RepositoryURL string `yaml:"repository_url"`
	// BuildbotURL is the base URL of the engine buildbot (branch directories live below it).
	BuildbotURL string `yaml:"buildbot_url"`
	// InstallDir is the directory holding the packages and the installed-state record.
	InstallDir string `yaml:"install_dir"`
	// SpringDir is the directory under which engine installations are created.
	SpringDir string `yaml:"spring_dir"`
	// Release is the release channel to follow in the remote manifest.
	Release string `yaml:"release"`
	// Packages is the ordered list of package names kept in sync.
	Packages []string `yaml:"packages"`
	// StateFilename is the installed-state record name inside InstallDir.
	StateFilename string `yaml:"state_file"`
	// ArchiveTool is the external command used to extract engine archives.
	ArchiveTool string `yaml:"archive_tool"`
	// Timeout is the per-request duration for HTTP operations.
	Timeout time.Duration `yaml:"timeout"`
	// Architecture optionally overrides the detected architecture tag.
	Architecture string `yaml:"architecture"`
	// DisableTLS rejects https endpoints, for hosts without a usable trust store.
	DisableTLS bool `yaml:"disable_tls"`
}

const (
	// DefaultConfigFilename is the default filename for settings.
	DefaultConfigFilename = "autohost-updater-settings.yaml"

	// DefaultRepositoryURL is the package repository used when none is configured.
	DefaultRepositoryURL = "http://planetspads.free.fr/spads/repository"

	// DefaultBuildbotURL is the engine buildbot used when none is configured.
	DefaultBuildbotURL = "https://springrts.com/dl/buildbot/default"

	// DefaultStateFilename records installed package versions inside the install directory.
	DefaultStateFilename = "installed-packages.txt"

	// DefaultSpringDir is the engine installation root, relative to the working directory.
	DefaultSpringDir = "spring"

	// DefaultRelease is the release channel followed by default.
	DefaultRelease = "stable"

	// DefaultArchiveTool extracts engine archives; resolved through PATH.
	DefaultArchiveTool = "7z"

	// DefaultTimeout is the default duration for a single HTTP request.
	DefaultTimeout = 10 * time.Second

	// DefaultFilePermissions is the default file permission for config files.
	DefaultFilePermissions = 0o600
)

var (
	// errConfigIsNotSet is returned when a nil configuration is provided.
	errConfigIsNotSet = errors.New("configuration is not set")
	// errInvalidPackageName is returned for package names that cannot serve
	// as manifest keys and file names at the same time.
	errInvalidPackageName = errors.New("invalid package name")
)

// Load reads configuration from the provided path and validates essential fields.
func Load(path string) (*Config, error) {
	if path == "" {
		path = DefaultConfigFilename
	}

	contents, err := os.ReadFile(filepath.Clean(path))
	if err != nil {
		return nil, fmt.Errorf("read settings: %w", err)
	}

	var cfg Config
	if err := yaml.Unmarshal(contents, &cfg); err != nil {
		return nil, fmt.Errorf("unmarshal settings: %w", err)
	}

	if err := Validate(&cfg); err != nil {
		return nil, err
	}

	return &cfg, nil
}

// Save writes the configuration to the provided path.
func Save(path string, cfg *Config) error {
	if cfg == nil {
		return errConfigIsNotSet
	}

	if path == "" {
		path = DefaultConfigFilename
	}

	if err := Validate(cfg); err != nil {
		return err
	}

	data, err := yaml.Marshal(cfg)
	if err != nil {
		return fmt.Errorf("marshal settings: %w", err)
	}

	// Restrict permissions.
	if err := os.WriteFile(filepath.Clean(path), data, DefaultFilePermissions); err != nil {
		return fmt.Errorf("write settings: %w", err)
	}

	return nil
}

// Validate checks the provided settings for required fields and fills defaults.
func Validate(cfg *Config) error {
	if cfg == nil {
		return errConfigIsNotSet
	}

	if cfg.RepositoryURL == "" {
		cfg.RepositoryURL = DefaultRepositoryURL
	}

	if _, err := url.ParseRequestURI(cfg.RepositoryURL); err != nil {
		return fmt.Errorf("invalid repository URL: %w", err)
	}

	if cfg.BuildbotURL == "" {
		cfg.BuildbotURL = DefaultBuildbotURL
	}

	if _, err := url.ParseRequestURI(cfg.BuildbotURL); err != nil {
		return fmt.Errorf("invalid buildbot URL: %w", err)
	}

	if cfg.InstallDir == "" {
		cfg.InstallDir = "."
	}

	if cfg.SpringDir == "" {
		cfg.SpringDir = DefaultSpringDir
	}

	if cfg.Release == "" {
		cfg.Release = DefaultRelease
	}

	// Package names double as manifest keys and install-directory file names.
	for _, name := range cfg.Packages {
		if name == "" || strings.ContainsAny(name, ":/\\") {
			return fmt.Errorf("%q: %w", name, errInvalidPackageName)
		}
	}

	if cfg.StateFilename == "" {
		cfg.StateFilename = DefaultStateFilename
	}

	if cfg.ArchiveTool == "" {
		cfg.ArchiveTool = DefaultArchiveTool
	}

	if cfg.Timeout <= 0 {
		cfg.Timeout = DefaultTimeout
	}

	return nil
}
