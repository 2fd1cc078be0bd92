package lockfile

import (
	"context"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

// TestAcquireRelease verifies a basic claim cycle and that the marker file survives release.
func TestAcquireRelease(t *testing.T) {
	t.Parallel()

	dir := t.TempDir()

	lock, err := Acquire(context.Background(), dir, "scope.lock")
	require.NoError(t, err)
	require.Equal(t, filepath.Join(dir, "scope.lock"), lock.Path())

	lock.Release()

	// The marker file is never deleted.
	_, err = os.Stat(lock.Path())
	require.NoError(t, err)

	// The scope can be claimed again after release.
	again, err := Acquire(context.Background(), dir, "scope.lock")
	require.NoError(t, err)
	again.Release()
}

// TestAcquire_BusyAfterBudget ensures a held scope yields ErrBusy only after
// the configured retry budget instead of blocking indefinitely.
func TestAcquire_BusyAfterBudget(t *testing.T) {
	t.Parallel()

	dir := t.TempDir()

	holder, err := Acquire(context.Background(), dir, "scope.lock")
	require.NoError(t, err)
	defer holder.Release()

	const (
		retries = 3
		delay   = 10 * time.Millisecond
	)

	started := time.Now()

	_, err = Acquire(context.Background(), dir, "scope.lock",
		WithMaxRetries(retries), WithRetryDelay(delay))
	require.ErrorIs(t, err, ErrBusy)

	// One initial attempt plus `retries` polls separated by the fixed delay.
	require.GreaterOrEqual(t, time.Since(started), retries*delay)
}

// TestAcquire_IndependentScopes checks that locks on different names do not contend.
func TestAcquire_IndependentScopes(t *testing.T) {
	t.Parallel()

	dir := t.TempDir()

	first, err := Acquire(context.Background(), dir, "first.lock")
	require.NoError(t, err)
	defer first.Release()

	second, err := Acquire(context.Background(), dir, "second.lock",
		WithMaxRetries(0), WithRetryDelay(time.Millisecond))
	require.NoError(t, err)
	second.Release()
}

// TestRelease_Idempotent verifies Release is a safe no-op on unheld and nil locks.
func TestRelease_Idempotent(t *testing.T) {
	t.Parallel()

	dir := t.TempDir()

	lock, err := Acquire(context.Background(), dir, "scope.lock")
	require.NoError(t, err)

	lock.Release()
	lock.Release()

	var unheld *Lock
	unheld.Release()
}

// TestAcquire_UnwritableDir ensures an unopenable marker file surfaces as ErrIO.
func TestAcquire_UnwritableDir(t *testing.T) {
	t.Parallel()

	if os.Geteuid() == 0 {
		t.Skip("root ignores directory permissions")
	}

	dir := t.TempDir()
	require.NoError(t, os.Chmod(dir, 0o500))

	t.Cleanup(func() {
		_ = os.Chmod(dir, 0o755)
	})

	_, err := Acquire(context.Background(), dir, "scope.lock")
	require.ErrorIs(t, err, ErrIO)
}
