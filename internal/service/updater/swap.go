package updater

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"io/fs"
	"os"
	"path/filepath"
	"runtime"
	"strconv"

	goupdate "github.com/doitdistributed/go-update"
	"github.com/mitchellh/go-ps"

	"github.com/oshokin/autohost-updater/internal/logger"
)

const (
	// toBeDeletedSuffix marks old artifacts moved aside when they cannot
	// be replaced in place.
	toBeDeletedSuffix = ".toBeDeleted"

	// maxMoveAsideAttempts bounds the numbered sibling names tried per swap.
	maxMoveAsideAttempts = 100

	// executableFileMode is applied to artifacts that must stay runnable.
	executableFileMode os.FileMode = 0o755

	// copiedDirPermissions is used for directories recreated during a copy swap.
	copiedDirPermissions os.FileMode = 0o755
)

var errNoFreeSiblingName = errors.New("all move-aside names are taken")

// swapper points the unversioned current name of a package at its new
// versioned artifact. The platform capability is resolved once; everything
// else stays platform-agnostic.
type swapper struct {
	// supportsSymlink selects the symlink strategy over move-aside-and-copy.
	supportsSymlink bool
}

// newSwapper resolves the platform capability.
func newSwapper() *swapper {
	return &swapper{
		supportsSymlink: runtime.GOOS != "windows",
	}
}

// Swap makes dir/current point at dir/versioned. It reports applied=false
// without an error when the swap was skipped because the current artifact
// is an executable still in use; every other failure is fatal for the run.
func (s *swapper) Swap(ctx context.Context, dir, current, versioned string) (bool, error) {
	if s.supportsSymlink {
		if err := s.symlinkSwap(dir, current, versioned); err != nil {
			logger.ErrorKV(ctx, "Cannot swap current name, system consistency must be checked manually",
				"package", current, "error", err)

			return false, fmt.Errorf("%s: %v: %w", current, err, ErrSwapFailed)
		}

		return true, nil
	}

	return s.copySwap(ctx, dir, current, versioned)
}

// symlinkSwap replaces the current name with a symbolic link to the
// versioned artifact. The link target is relative so the install directory
// stays relocatable.
func (s *swapper) symlinkSwap(dir, current, versioned string) error {
	currentPath := filepath.Join(dir, current)

	if err := os.Remove(currentPath); err != nil && !errors.Is(err, os.ErrNotExist) {
		return fmt.Errorf("remove %s: %w", currentPath, err)
	}

	if err := os.Symlink(versioned, currentPath); err != nil {
		return fmt.Errorf("link %s: %w", currentPath, err)
	}

	return nil
}

// copySwap is the strategy for platforms without usable symbolic links: the
// old current file is renamed to a numbered .toBeDeleted sibling, then the
// versioned artifact is copied into place.
func (s *swapper) copySwap(ctx context.Context, dir, current, versioned string) (bool, error) {
	currentPath := filepath.Join(dir, current)

	if _, err := os.Lstat(currentPath); err == nil {
		if moveErr := moveAside(currentPath); moveErr != nil {
			// A rename that fails on a running executable is the one case
			// worth tolerating: replacing it would fail anyway, so the
			// package stays on its old version until a later run.
			inUse, checkErr := isExecutableInUse(current)
			if checkErr == nil && inUse {
				logger.ErrorKV(ctx,
					"Current executable is in use, swap skipped; package stays inconsistent until a later run",
					"package", current, "error", moveErr)

				return false, nil
			}

			logger.ErrorKV(ctx, "Cannot move old artifact aside, system consistency must be checked manually",
				"package", current, "error", moveErr)

			return false, fmt.Errorf("%s: %v: %w", current, moveErr, ErrSwapFailed)
		}
	}

	if err := s.copyIntoPlace(dir, current, versioned); err != nil {
		logger.ErrorKV(ctx, "Cannot copy new artifact into place, system consistency must be checked manually",
			"package", current, "error", err)

		return false, fmt.Errorf("%s: %v: %w", current, err, ErrSwapFailed)
	}

	return true, nil
}

// copyIntoPlace materializes the versioned artifact under the current name.
func (s *swapper) copyIntoPlace(dir, current, versioned string) error {
	var (
		currentPath   = filepath.Join(dir, current)
		versionedPath = filepath.Join(dir, versioned)
	)

	info, err := os.Stat(versionedPath)
	if err != nil {
		return fmt.Errorf("stat %s: %w", versionedPath, err)
	}

	if info.IsDir() {
		return copyDir(versionedPath, currentPath)
	}

	return applyFile(versionedPath, currentPath)
}

// moveAside renames path to the first free numbered .toBeDeleted sibling.
func moveAside(path string) error {
	for i := 1; i <= maxMoveAsideAttempts; i++ {
		candidate := path + toBeDeletedSuffix + strconv.Itoa(i)
		if _, err := os.Lstat(candidate); err == nil {
			continue
		}

		if err := os.Rename(path, candidate); err != nil {
			return fmt.Errorf("rename %s: %w", path, err)
		}

		return nil
	}

	return fmt.Errorf("%s: %w", path, errNoFreeSiblingName)
}

// isExecutableInUse reports whether a process with the given executable
// name is currently running.
func isExecutableInUse(name string) (bool, error) {
	processList, err := ps.Processes()
	if err != nil {
		return false, err
	}

	thisProcessID := os.Getpid()

	for _, process := range processList {
		if process.Pid() == thisProcessID {
			continue
		}

		if process.Executable() == name {
			return true, nil
		}
	}

	return false, nil
}

// applyFile writes the versioned file over the current name, keeping the
// replaced content out of the way until the write lands.
func applyFile(sourcePath, targetPath string) error {
	data, err := os.ReadFile(filepath.Clean(sourcePath))
	if err != nil {
		return fmt.Errorf("read %s: %w", sourcePath, err)
	}

	if _, err = os.Stat(targetPath); err != nil && errors.Is(err, os.ErrNotExist) {
		var created *os.File

		created, err = os.Create(filepath.Clean(targetPath))
		if err != nil {
			return fmt.Errorf("create %s: %w", targetPath, err)
		}

		if err = created.Close(); err != nil {
			return fmt.Errorf("create %s: %w", targetPath, err)
		}
	}

	options := goupdate.Options{
		TargetPath: targetPath,
		TargetMode: executableFileMode,
	}

	if err = goupdate.Apply(bytes.NewReader(data), options); err != nil {
		return fmt.Errorf("apply %s: %w", targetPath, err)
	}

	oldFileName := targetPath + ".old"
	if _, err = os.Stat(oldFileName); err == nil {
		_ = os.Remove(oldFileName)
	}

	return nil
}

// copyDir recreates the versioned directory tree under the current name.
func copyDir(src, dst string) error {
	return filepath.WalkDir(src, func(path string, entry fs.DirEntry, err error) error {
		if err != nil {
			return err
		}

		rel, err := filepath.Rel(src, path)
		if err != nil {
			return err
		}

		target := filepath.Join(dst, rel)

		if entry.IsDir() {
			return os.MkdirAll(target, copiedDirPermissions)
		}

		info, err := entry.Info()
		if err != nil {
			return err
		}

		return copyFile(path, target, info.Mode().Perm())
	})
}

// copyFile duplicates one file preserving its permission bits.
func copyFile(src, dst string, mode os.FileMode) error {
	source, err := os.Open(filepath.Clean(src))
	if err != nil {
		return err
	}

	defer func() {
		_ = source.Close()
	}()

	target, err := os.OpenFile(filepath.Clean(dst), os.O_WRONLY|os.O_CREATE|os.O_TRUNC, mode)
	if err != nil {
		return err
	}

	if _, err = io.Copy(target, source); err != nil {
		_ = target.Close()

		return err
	}

	return target.Close()
}
