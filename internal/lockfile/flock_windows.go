//go:build windows

package lockfile

import (
	"errors"
	"os"

	"golang.org/x/sys/windows"
)

// lockFile places a non-blocking exclusive LockFileEx claim on the first byte
// of the marker file.
func lockFile(file *os.File) error {
	overlapped := new(windows.Overlapped)

	return windows.LockFileEx(
		windows.Handle(file.Fd()),
		windows.LOCKFILE_EXCLUSIVE_LOCK|windows.LOCKFILE_FAIL_IMMEDIATELY,
		0, 1, 0,
		overlapped,
	)
}

// unlockFile drops the LockFileEx claim.
func unlockFile(file *os.File) error {
	overlapped := new(windows.Overlapped)

	return windows.UnlockFileEx(windows.Handle(file.Fd()), 0, 1, 0, overlapped)
}

// isContended reports whether the claim failed because another process holds it.
func isContended(err error) bool {
	return errors.Is(err, windows.ERROR_LOCK_VIOLATION)
}
