// Package archive handles the two archive formats the repository serves:
// proprietary engine archives through an external tool and plain zip
// package archives in-process, in both directions.
package archive

import (
	"archive/zip"
	"context"
	"errors"
	"fmt"
	"io"
	"io/fs"
	"os"
	"os/exec"
	"path/filepath"
	"strings"
)

// extractedDirPermissions is used for directories created during extraction.
const extractedDirPermissions = 0o755

var (
	// ErrToolUnavailable is returned when the external tool cannot be started.
	ErrToolUnavailable = errors.New("archive tool cannot be started")
	// ErrExtractionFailed is returned when the external tool ran but exited
	// with a non-zero status.
	ErrExtractionFailed = errors.New("archive extraction failed")
	// ErrUnsafeEntry is returned for zip entries escaping the destination.
	ErrUnsafeEntry = errors.New("archive entry escapes destination")
)

// SevenZip invokes an external 7-Zip compatible binary.
type SevenZip struct {
	// tool is the binary name or path, resolved through PATH when bare.
	tool string
}

// NewSevenZip returns an extractor using the provided tool binary.
func NewSevenZip(tool string) *SevenZip {
	return &SevenZip{tool: tool}
}

// Extract unpacks archive into dest, limited to the named entries when any
// are given. The tool's own output is discarded; only its exit status and
// the extracted files matter.
func (s *SevenZip) Extract(ctx context.Context, archivePath, dest string, files ...string) error {
	args := make([]string, 0, len(files)+4)
	args = append(args, "x", "-o"+dest, archivePath)
	args = append(args, files...)
	args = append(args, "-y")

	cmd := exec.CommandContext(ctx, s.tool, args...)
	cmd.Stdout = io.Discard
	cmd.Stderr = io.Discard

	err := cmd.Run()
	if err == nil {
		return nil
	}

	var exitErr *exec.ExitError
	if errors.As(err, &exitErr) {
		return fmt.Errorf("%s %s: exit status %d: %w",
			s.tool, archivePath, exitErr.ExitCode(), ErrExtractionFailed)
	}

	return fmt.Errorf("%s: %v: %w", s.tool, err, ErrToolUnavailable)
}

// ExtractZip unpacks a zip archive into dest, creating it if needed.
func ExtractZip(archivePath, dest string) error {
	reader, err := zip.OpenReader(archivePath)
	if err != nil {
		// The reader flags non-local entry names itself since Go 1.20.
		if errors.Is(err, zip.ErrInsecurePath) {
			_ = reader.Close()

			return fmt.Errorf("%s: %w", archivePath, ErrUnsafeEntry)
		}

		return fmt.Errorf("open %s: %w", archivePath, err)
	}

	defer func() {
		_ = reader.Close()
	}()

	if err = os.MkdirAll(dest, extractedDirPermissions); err != nil {
		return fmt.Errorf("create %s: %w", dest, err)
	}

	for _, entry := range reader.File {
		if err = extractZipEntry(entry, dest); err != nil {
			return err
		}
	}

	return nil
}

// CreateZip packs the contents of a directory into a zip archive. Entry
// names are slash-separated and relative to the directory, so the archive
// unpacks into a same-named tree anywhere.
func CreateZip(srcDir, zipPath string) error {
	out, err := os.Create(filepath.Clean(zipPath))
	if err != nil {
		return fmt.Errorf("create %s: %w", zipPath, err)
	}

	writer := zip.NewWriter(out)

	err = addZipTree(writer, srcDir)
	if closeErr := writer.Close(); err == nil {
		err = closeErr
	}

	if closeErr := out.Close(); err == nil {
		err = closeErr
	}

	if err != nil {
		// A partial archive must not survive.
		_ = os.Remove(zipPath)

		return fmt.Errorf("pack %s: %w", srcDir, err)
	}

	return nil
}

// addZipTree walks srcDir and appends every file and directory to writer.
func addZipTree(writer *zip.Writer, srcDir string) error {
	return filepath.WalkDir(srcDir, func(path string, entry fs.DirEntry, walkErr error) error {
		if walkErr != nil {
			return walkErr
		}

		relative, err := filepath.Rel(srcDir, path)
		if err != nil {
			return err
		}

		if relative == "." {
			return nil
		}

		info, err := entry.Info()
		if err != nil {
			return err
		}

		header, err := zip.FileInfoHeader(info)
		if err != nil {
			return err
		}

		header.Name = filepath.ToSlash(relative)
		if entry.IsDir() {
			header.Name += "/"
		} else {
			header.Method = zip.Deflate
		}

		target, err := writer.CreateHeader(header)
		if err != nil {
			return err
		}

		if entry.IsDir() {
			return nil
		}

		source, err := os.Open(filepath.Clean(path))
		if err != nil {
			return err
		}

		_, err = io.Copy(target, source)

		if closeErr := source.Close(); err == nil {
			err = closeErr
		}

		return err
	})
}

// extractZipEntry writes one zip entry under dest, refusing path escapes.
func extractZipEntry(entry *zip.File, dest string) error {
	name := filepath.Clean(entry.Name)
	if name == "." {
		return nil
	}

	target := filepath.Join(dest, name)
	if !strings.HasPrefix(target, filepath.Clean(dest)+string(os.PathSeparator)) {
		return fmt.Errorf("%s: %w", entry.Name, ErrUnsafeEntry)
	}

	if entry.FileInfo().IsDir() {
		if err := os.MkdirAll(target, extractedDirPermissions); err != nil {
			return fmt.Errorf("create %s: %w", target, err)
		}

		return nil
	}

	if err := os.MkdirAll(filepath.Dir(target), extractedDirPermissions); err != nil {
		return fmt.Errorf("create %s: %w", filepath.Dir(target), err)
	}

	source, err := entry.Open()
	if err != nil {
		return fmt.Errorf("open entry %s: %w", entry.Name, err)
	}

	defer func() {
		_ = source.Close()
	}()

	file, err := os.OpenFile(filepath.Clean(target),
		os.O_WRONLY|os.O_CREATE|os.O_TRUNC, entry.Mode())
	if err != nil {
		return fmt.Errorf("create %s: %w", target, err)
	}

	//nolint:gosec // Archive contents are size-bounded package artifacts.
	if _, err = io.Copy(file, source); err != nil {
		_ = file.Close()

		return fmt.Errorf("extract %s: %w", entry.Name, err)
	}

	if err = file.Close(); err != nil {
		return fmt.Errorf("finalize %s: %w", target, err)
	}

	return nil
}
