package integration

import (
	"archive/zip"
	"bytes"
	"context"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"runtime"
	"sync/atomic"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/oshokin/autohost-updater/internal/config"
	"github.com/oshokin/autohost-updater/internal/service/updater"
)

// buildZip produces an in-memory package archive with the provided
// name→content map; names ending in "/" become directories.
func buildZip(t *testing.T, entries map[string]string) []byte {
	t.Helper()

	var buf bytes.Buffer

	writer := zip.NewWriter(&buf)

	for name, content := range entries {
		header := &zip.FileHeader{Name: name, Method: zip.Deflate}
		if name[len(name)-1] == '/' {
			header.SetMode(0o755 | os.ModeDir)
		} else {
			header.SetMode(0o755)
		}

		entry, err := writer.CreateHeader(header)
		require.NoError(t, err)

		_, err = entry.Write([]byte(content))
		require.NoError(t, err)
	}

	require.NoError(t, writer.Close())

	return buf.Bytes()
}

// saveSettings writes a validated settings file and returns its path.
func saveSettings(t *testing.T, dir string, cfg *config.Config) string {
	t.Helper()

	path := filepath.Join(dir, config.DefaultConfigFilename)
	require.NoError(t, config.Save(path, cfg))

	return path
}

// requireCurrentName asserts a package's current name points at the
// versioned artifact, whichever swap strategy the platform uses.
func requireCurrentName(t *testing.T, installDir, name, versioned string) {
	t.Helper()

	current := filepath.Join(installDir, name)

	if runtime.GOOS == "windows" {
		require.DirExists(t, filepath.Join(installDir, versioned))
		_, err := os.Stat(current)
		require.NoError(t, err)

		return
	}

	target, err := os.Readlink(current)
	require.NoError(t, err)
	require.Equal(t, versioned, target)
}

// TestUpdater_Run_SyncsPackages serves a manifest, an archive package and a
// plain-file package over HTTP and verifies a full sync: download, extract,
// current-name swap, state record, and a no-op second run.
//
//nolint:funlen // Integration test requires comprehensive setup and verification.
func TestUpdater_Run_SyncsPackages(t *testing.T) {
	t.Parallel()

	dir := t.TempDir()
	installDir := filepath.Join(dir, "install")

	spadsZip := buildZip(t, map[string]string{
		"spads.pl":                "#!/usr/bin/perl\n",
		"etc/":                    "",
		"etc/spads.conf":          "autoHostPort:8452\n",
		"etc/hostingPresets.conf": "[default]\n",
	})

	var artifactHits atomic.Int32

	mux := http.NewServeMux()
	mux.HandleFunc("/packages.txt", func(w http.ResponseWriter, _ *http.Request) {
		_, _ = w.Write([]byte("[stable]\nspads:0.12.29.zip\nperlUnitSync:0.6.linux64\n"))
	})
	mux.HandleFunc("/spads_0.12.29.zip", func(w http.ResponseWriter, _ *http.Request) {
		artifactHits.Add(1)
		_, _ = w.Write(spadsZip)
	})
	mux.HandleFunc("/perlUnitSync_0.6.linux64", func(w http.ResponseWriter, _ *http.Request) {
		artifactHits.Add(1)
		_, _ = w.Write([]byte("shared object bytes"))
	})

	server := httptest.NewServer(mux)
	defer server.Close()

	cfgPath := saveSettings(t, dir, &config.Config{
		RepositoryURL: server.URL,
		InstallDir:    installDir,
		Release:       "stable",
		Packages:      []string{"spads", "perlUnitSync"},
	})

	count, err := updater.Run(context.Background(), &updater.Options{ConfigPath: cfgPath})
	require.NoError(t, err)
	require.Equal(t, 2, count)

	// The archive package unpacked into its versioned directory.
	require.FileExists(t, filepath.Join(installDir, "spads_0.12.29", "spads.pl"))
	require.FileExists(t, filepath.Join(installDir, "spads_0.12.29", "etc", "spads.conf"))

	// The plain-file package landed versioned and executable.
	info, err := os.Stat(filepath.Join(installDir, "perlUnitSync_0.6.linux64"))
	require.NoError(t, err)

	if runtime.GOOS != "windows" {
		require.Equal(t, os.FileMode(0o755), info.Mode().Perm())
	}

	// Current names resolve to the new versions.
	requireCurrentName(t, installDir, "spads", "spads_0.12.29")
	requireCurrentName(t, installDir, "perlUnitSync", "perlUnitSync_0.6.linux64")

	// The archive itself is gone, the installed record is written.
	require.NoFileExists(t, filepath.Join(installDir, "spads_0.12.29.zip"))

	record, err := os.ReadFile(filepath.Join(installDir, config.DefaultStateFilename))
	require.NoError(t, err)
	require.Contains(t, string(record), "spads:0.12.29")
	require.Contains(t, string(record), "perlUnitSync:0.6.linux64")

	require.Equal(t, int32(2), artifactHits.Load())

	// A second run sees everything up to date and downloads nothing.
	count, err = updater.Run(context.Background(), &updater.Options{ConfigPath: cfgPath})
	require.NoError(t, err)
	require.Zero(t, count)
	require.Equal(t, int32(2), artifactHits.Load())
}

// TestUpdater_Run_CheckOnly verifies the check-only mode reports the pending
// count without touching the install directory or the repository artifacts.
func TestUpdater_Run_CheckOnly(t *testing.T) {
	t.Parallel()

	dir := t.TempDir()
	installDir := filepath.Join(dir, "install")

	var artifactHits atomic.Int32

	mux := http.NewServeMux()
	mux.HandleFunc("/packages.txt", func(w http.ResponseWriter, _ *http.Request) {
		_, _ = w.Write([]byte("[stable]\nspads:0.12.29.zip\n"))
	})
	mux.HandleFunc("/spads_0.12.29.zip", func(w http.ResponseWriter, _ *http.Request) {
		artifactHits.Add(1)
	})

	server := httptest.NewServer(mux)
	defer server.Close()

	cfgPath := saveSettings(t, dir, &config.Config{
		RepositoryURL: server.URL,
		InstallDir:    installDir,
		Packages:      []string{"spads"},
	})

	count, err := updater.Run(context.Background(),
		&updater.Options{ConfigPath: cfgPath, CheckOnly: true})
	require.NoError(t, err)
	require.Equal(t, 1, count)

	require.NoDirExists(t, filepath.Join(installDir, "spads_0.12.29"))
	require.NoFileExists(t, filepath.Join(installDir, config.DefaultStateFilename))
	require.Zero(t, artifactHits.Load())
}

// TestUpdater_Run_MajorJumpNeedsForce verifies a changed major version
// aborts the sync until the run is forced.
func TestUpdater_Run_MajorJumpNeedsForce(t *testing.T) {
	t.Parallel()

	dir := t.TempDir()
	installDir := filepath.Join(dir, "install")

	require.NoError(t, os.MkdirAll(installDir, 0o755))
	require.NoError(t, os.WriteFile(filepath.Join(installDir, config.DefaultStateFilename),
		[]byte("1724500000\nspads:0.12.29\n"), 0o644))

	spadsZip := buildZip(t, map[string]string{"spads.pl": "#!/usr/bin/perl\n"})

	mux := http.NewServeMux()
	mux.HandleFunc("/packages.txt", func(w http.ResponseWriter, _ *http.Request) {
		_, _ = w.Write([]byte("[stable]\nspads:1.0.0.zip\n"))
	})
	mux.HandleFunc("/spads_1.0.0.zip", func(w http.ResponseWriter, _ *http.Request) {
		_, _ = w.Write(spadsZip)
	})

	server := httptest.NewServer(mux)
	defer server.Close()

	cfgPath := saveSettings(t, dir, &config.Config{
		RepositoryURL: server.URL,
		InstallDir:    installDir,
		Packages:      []string{"spads"},
	})

	_, err := updater.Run(context.Background(), &updater.Options{ConfigPath: cfgPath})
	require.ErrorIs(t, err, updater.ErrManualUpdateRequired)
	require.Equal(t, 7, updater.ExitCode(err))
	require.NoDirExists(t, filepath.Join(installDir, "spads_1.0.0"))

	// The installed record is exactly as seeded.
	record, err := os.ReadFile(filepath.Join(installDir, config.DefaultStateFilename))
	require.NoError(t, err)
	require.Equal(t, "1724500000\nspads:0.12.29\n", string(record))

	count, err := updater.Run(context.Background(),
		&updater.Options{ConfigPath: cfgPath, Force: true})
	require.NoError(t, err)
	require.Equal(t, 1, count)
	requireCurrentName(t, installDir, "spads", "spads_1.0.0")
}
