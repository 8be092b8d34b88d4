package rundir

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"
)

// LockableDirectory exposes a scoped acquisition for external readers and
// copiers. Acquisition creates a lock file under the directory that is
// removed only by an explicit Release; process exit does not remove it.
// A lock file left behind by a process that exited without releasing
// keeps the directory locked: Acquire retries with backoff and then
// times out, and never steals the lock.
type LockableDirectory struct {
	path     string
	lockFile string
	held     bool
}

// NewLockableDirectory wraps dirPath.
func NewLockableDirectory(dirPath string) *LockableDirectory {
	return &LockableDirectory{
		path:     dirPath,
		lockFile: filepath.Join(dirPath, ".litani.lock"),
	}
}

// Acquire retries with exponential backoff until the lock file can be
// created exclusively, or the context-free deadline elapses.
func (l *LockableDirectory) Acquire(maxWait time.Duration) error {
	deadline := time.Now().Add(maxWait)
	backoff := 10 * time.Millisecond

	for {
		f, err := os.OpenFile(l.lockFile, os.O_CREATE|os.O_EXCL|os.O_WRONLY, 0o644)
		if err == nil {
			fmt.Fprintf(f, "%d\n", os.Getpid())
			f.Close()
			l.held = true
			return nil
		}
		if !errors.Is(err, os.ErrExist) {
			return fmt.Errorf("acquire lock %s: %w", l.lockFile, err)
		}
		if time.Now().After(deadline) {
			return fmt.Errorf("acquire lock %s: timed out after %s", l.lockFile, maxWait)
		}
		time.Sleep(backoff)
		if backoff < time.Second {
			backoff *= 2
		}
	}
}

// Release removes the lock file. It is a no-op if the lock is not held.
func (l *LockableDirectory) Release() error {
	if !l.held {
		return nil
	}
	l.held = false
	if err := os.Remove(l.lockFile); err != nil && !os.IsNotExist(err) {
		return fmt.Errorf("release lock %s: %w", l.lockFile, err)
	}
	return nil
}

// IsLocked reports whether the directory currently carries a lock file,
// regardless of which process (if any) created it.
func (l *LockableDirectory) IsLocked() bool {
	_, err := os.Stat(l.lockFile)
	return err == nil
}

// expiredSentinel is the marker file written when a newer report
// supersedes an older one.
const expiredSentinel = ".litani.expired"

// MarkExpired writes the sentinel that makes dirPath eligible for cleanup.
func MarkExpired(dirPath string) error {
	return AtomicWrite(filepath.Join(dirPath, expiredSentinel), []byte(time.Now().UTC().Format(time.RFC3339)+"\n"), 0o644)
}

// IsExpired reports whether dirPath carries the expiry sentinel.
func IsExpired(dirPath string) bool {
	_, err := os.Stat(filepath.Join(dirPath, expiredSentinel))
	return err == nil
}
