// Package lockfile provides a cross-process advisory lock scoped to a
// directory and a name.
//
// The lock is an exclusive, non-blocking claim on a marker file (flock on
// Unix, LockFileEx on Windows) acquired with bounded constant-delay polling.
// The marker file is created on first use and never deleted; its mere
// existence carries no meaning, only a held claim does.
package lockfile
