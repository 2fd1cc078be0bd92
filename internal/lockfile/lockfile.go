package lockfile

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/cenkalti/backoff/v4"
)

const (
	// DefaultMaxRetries is the number of additional claim attempts after the first one fails.
	DefaultMaxRetries = 20

	// DefaultRetryDelay is the fixed delay between claim attempts.
	DefaultRetryDelay = 100 * time.Millisecond

	// lockFilePermissions is used when the marker file is first created.
	lockFilePermissions = 0o644
)

var (
	// ErrBusy is returned when the claim is still held elsewhere after the retry budget.
	ErrBusy = errors.New("lock is held by another process")
	// ErrIO is returned when the marker file cannot be opened or claimed for I/O reasons.
	ErrIO = errors.New("lock file I/O failure")

	// errContended marks a retryable claim failure inside the polling loop.
	errContended = errors.New("lock contended")
)

// Lock represents a held (or released) exclusive claim on a marker file.
type Lock struct {
	// file is the open marker file the claim is attached to.
	file *os.File
	// path is the marker file location, kept for logging.
	path string
	// held reports whether the claim is currently active.
	held bool
}

// options collects the tunable acquisition parameters.
type options struct {
	maxRetries uint64
	retryDelay time.Duration
}

// Option adjusts lock acquisition behaviour.
type Option func(*options)

// WithMaxRetries overrides the number of additional claim attempts.
func WithMaxRetries(n uint64) Option {
	return func(o *options) {
		o.maxRetries = n
	}
}

// WithRetryDelay overrides the fixed delay between claim attempts.
func WithRetryDelay(d time.Duration) Option {
	return func(o *options) {
		o.retryDelay = d
	}
}

// Acquire claims dir/name exclusively for this process.
//
// The first failed attempt is followed by up to maxRetries polls with a fixed
// delay. This is polling, not a queued wait: under contention a caller can
// still lose the claim to a third process that grabs it between polls.
// Acquire returns ErrBusy once the budget is exhausted and ErrIO when the
// marker file cannot be opened or claimed at all.
func Acquire(ctx context.Context, dir, name string, opts ...Option) (*Lock, error) {
	o := &options{
		maxRetries: DefaultMaxRetries,
		retryDelay: DefaultRetryDelay,
	}
	for _, opt := range opts {
		opt(o)
	}

	path := filepath.Join(dir, name)

	// The marker file is reused across runs and intentionally never removed.
	file, err := os.OpenFile(filepath.Clean(path), os.O_CREATE|os.O_RDWR, lockFilePermissions)
	if err != nil {
		return nil, fmt.Errorf("open %s: %v: %w", path, err, ErrIO)
	}

	claim := func() error {
		claimErr := lockFile(file)
		if claimErr == nil {
			return nil
		}

		if isContended(claimErr) {
			return errContended
		}

		return backoff.Permanent(fmt.Errorf("claim %s: %v: %w", path, claimErr, ErrIO))
	}

	policy := backoff.WithContext(
		backoff.WithMaxRetries(backoff.NewConstantBackOff(o.retryDelay), o.maxRetries),
		ctx,
	)

	if err = backoff.Retry(claim, policy); err != nil {
		_ = file.Close()

		if errors.Is(err, errContended) {
			return nil, fmt.Errorf("%s: %w", path, ErrBusy)
		}

		return nil, err
	}

	lock := &Lock{
		file: file,
		path: path,
		held: true,
	}

	return lock, nil
}

// Path returns the marker file location.
func (l *Lock) Path() string {
	if l == nil {
		return ""
	}

	return l.path
}

// Release drops the claim. It is a safe no-op on an unheld or nil lock, so
// callers may defer it unconditionally on every exit path.
func (l *Lock) Release() {
	if l == nil || !l.held {
		return
	}

	l.held = false

	// The claim dies with the descriptor anyway; unlock first to release it
	// even if the close fails.
	_ = unlockFile(l.file)
	_ = l.file.Close()
}
