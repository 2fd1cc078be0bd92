package archive

import (
	"archive/zip"
	"bytes"
	"context"
	"os"
	"path/filepath"
	"runtime"
	"strings"
	"testing"

	"github.com/stretchr/testify/require"
)

// writeStubTool drops an executable shell script standing in for 7z.
func writeStubTool(t *testing.T, body string) string {
	t.Helper()

	if runtime.GOOS == "windows" {
		t.Skip("stub tool scripts require a unix shell")
	}

	path := filepath.Join(t.TempDir(), "7z-stub")
	script := "#!/bin/sh\n" + body + "\n"

	require.NoError(t, os.WriteFile(path, []byte(script), 0o755))

	return path
}

func TestSevenZip_Extract_PassesArguments(t *testing.T) {
	t.Parallel()

	dir := t.TempDir()
	recorded := filepath.Join(dir, "args.txt")

	tool := writeStubTool(t, `echo "$@" > `+recorded)

	err := NewSevenZip(tool).Extract(context.Background(),
		"/tmp/engine.7z", "/tmp/out", "base", "spring.exe")
	require.NoError(t, err)

	contents, err := os.ReadFile(recorded)
	require.NoError(t, err)
	require.Equal(t, "x -o/tmp/out /tmp/engine.7z base spring.exe -y",
		strings.TrimSpace(string(contents)))
}

func TestSevenZip_Extract_NonZeroExit(t *testing.T) {
	t.Parallel()

	tool := writeStubTool(t, "exit 2")

	err := NewSevenZip(tool).Extract(context.Background(), "/tmp/engine.7z", "/tmp/out")
	require.ErrorIs(t, err, ErrExtractionFailed)
	require.Contains(t, err.Error(), "exit status 2")
}

func TestSevenZip_Extract_ToolMissing(t *testing.T) {
	t.Parallel()

	missing := filepath.Join(t.TempDir(), "no-such-tool")

	err := NewSevenZip(missing).Extract(context.Background(), "/tmp/engine.7z", "/tmp/out")
	require.ErrorIs(t, err, ErrToolUnavailable)
}

// buildZip produces an in-memory archive with the provided name→content map.
func buildZip(t *testing.T, entries map[string]string) string {
	t.Helper()

	var buf bytes.Buffer

	writer := zip.NewWriter(&buf)

	for name, content := range entries {
		header := &zip.FileHeader{Name: name, Method: zip.Deflate}
		if strings.HasSuffix(name, "/") {
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

	path := filepath.Join(t.TempDir(), "package.zip")
	require.NoError(t, os.WriteFile(path, buf.Bytes(), 0o644))

	return path
}

func TestExtractZip(t *testing.T) {
	t.Parallel()

	archivePath := buildZip(t, map[string]string{
		"spads/":           "",
		"spads/spads.conf": "autoHostPort:8452\n",
		"spads/spads":      "#!/usr/bin/perl\n",
	})

	dest := filepath.Join(t.TempDir(), "out")
	require.NoError(t, ExtractZip(archivePath, dest))

	contents, err := os.ReadFile(filepath.Join(dest, "spads", "spads.conf"))
	require.NoError(t, err)
	require.Equal(t, "autoHostPort:8452\n", string(contents))

	if runtime.GOOS != "windows" {
		info, statErr := os.Stat(filepath.Join(dest, "spads", "spads"))
		require.NoError(t, statErr)
		require.Equal(t, os.FileMode(0o755), info.Mode().Perm())
	}
}

func TestExtractZip_RefusesEscapingEntry(t *testing.T) {
	t.Parallel()

	archivePath := buildZip(t, map[string]string{
		"../evil.txt": "escape",
	})

	dest := filepath.Join(t.TempDir(), "out")

	err := ExtractZip(archivePath, dest)
	require.ErrorIs(t, err, ErrUnsafeEntry)
}

func TestExtractZip_MissingArchive(t *testing.T) {
	t.Parallel()

	err := ExtractZip(filepath.Join(t.TempDir(), "absent.zip"), t.TempDir())
	require.Error(t, err)
}

func TestCreateZip_RoundTrip(t *testing.T) {
	t.Parallel()

	src := filepath.Join(t.TempDir(), "spads_0.12.29")
	require.NoError(t, os.MkdirAll(filepath.Join(src, "etc"), 0o755))
	require.NoError(t, os.WriteFile(filepath.Join(src, "spads"), []byte("#!/usr/bin/perl\n"), 0o755))
	require.NoError(t, os.WriteFile(filepath.Join(src, "etc", "spads.conf"), []byte("autoHostPort:8452\n"), 0o644))

	archivePath := filepath.Join(t.TempDir(), "spads_0.12.29.zip")
	require.NoError(t, CreateZip(src, archivePath))

	dest := filepath.Join(t.TempDir(), "out")
	require.NoError(t, ExtractZip(archivePath, dest))

	contents, err := os.ReadFile(filepath.Join(dest, "etc", "spads.conf"))
	require.NoError(t, err)
	require.Equal(t, "autoHostPort:8452\n", string(contents))

	if runtime.GOOS != "windows" {
		info, statErr := os.Stat(filepath.Join(dest, "spads"))
		require.NoError(t, statErr)
		require.Equal(t, os.FileMode(0o755), info.Mode().Perm())
	}
}

func TestCreateZip_MissingSource(t *testing.T) {
	t.Parallel()

	dir := t.TempDir()
	archivePath := filepath.Join(dir, "out.zip")

	err := CreateZip(filepath.Join(dir, "absent"), archivePath)
	require.Error(t, err)
	require.NoFileExists(t, archivePath)
}
