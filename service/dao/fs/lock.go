package fs

import (
	"context"
	"fmt"
	"os"
	"time"

	"github.com/strokeworks/vectorflow/service/dao"
)

// dirLock is a cooperative mutual-exclusion lock based on atomic directory
// creation. Acquisition retries with a fixed backoff until the configured
// timeout, then fails with dao.ErrLockTimeout instead of deadlocking.
type dirLock struct {
	path       string
	retryDelay time.Duration
	timeout    time.Duration
}

func newDirLock(path string, retryDelay, timeout time.Duration) *dirLock {
	if retryDelay <= 0 {
		retryDelay = 20 * time.Millisecond
	}
	if timeout <= 0 {
		timeout = 3 * time.Second
	}
	return &dirLock{path: path, retryDelay: retryDelay, timeout: timeout}
}

// Acquire blocks until the lock directory could be created, the context is
// cancelled, or the timeout elapses.
func (l *dirLock) Acquire(ctx context.Context) error {
	deadline := time.Now().Add(l.timeout)
	for {
		err := os.Mkdir(l.path, 0o755)
		if err == nil {
			return nil
		}
		if !os.IsExist(err) {
			return fmt.Errorf("failed to create lock %s: %w", l.path, err)
		}
		if time.Now().After(deadline) {
			return fmt.Errorf("%w: %s held for over %s", dao.ErrLockTimeout, l.path, l.timeout)
		}
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-time.After(l.retryDelay):
		}
	}
}

// Release removes the lock directory. Releasing a lock that is not held is
// a no-op.
func (l *dirLock) Release() {
	_ = os.Remove(l.path)
}
