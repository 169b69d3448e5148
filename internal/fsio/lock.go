package fsio

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"syscall"
	"time"
)

const lockFilePerm = 0o644

// pollInterval is how often Lock retries a contended flock while waiting
// out its timeout.
const pollInterval = 20 * time.Millisecond

// ErrLockTimeout is returned by Lock when timeout elapses before the
// working directory's advisory lock can be acquired.
var ErrLockTimeout = errors.New("checkpoint: timed out waiting for working-directory lock")

// Lock opens (creating if needed) a "<workDir>/.checkpoint.lock" file and
// takes an advisory, exclusive flock on it, returning a func that
// releases it. It polls a non-blocking LOCK_EX|LOCK_NB rather than
// blocking indefinitely, so a contended lock fails with ErrLockTimeout
// once timeout elapses instead of hanging the process — timeout is
// intended to be config.Config.LockTimeout.
//
// This uses BSD flock(2) (syscall.Flock), not POSIX fcntl record locks:
// fcntl locks are owned per (process, inode), so a second lock attempt
// from the *same* process never contends with the first, which would
// make this polling loop meaningless within one process (and untestable
// without a second process). flock(2) locks are owned per open file
// description, so independent opens genuinely contend regardless of
// which process holds them.
//
// This is a best-effort guard against two instances of the tool racing
// on the same working directory — spec.md §5 documents the
// single-instance assumption as unenforced; this is the rewrite's one
// addition beyond that assumption, not a correctness requirement.
// Advisory locking only binds cooperating processes.
func Lock(workDir string, timeout time.Duration) (release func() error, err error) {
	p := filepath.Join(workDir, ".checkpoint.lock")
	f, err := os.OpenFile(p, os.O_CREATE|os.O_RDWR, lockFilePerm)
	if err != nil {
		return nil, fmt.Errorf("checkpoint: open lock file: %w", err)
	}

	deadline := time.Now().Add(timeout)
	for {
		lockErr := syscall.Flock(int(f.Fd()), syscall.LOCK_EX|syscall.LOCK_NB)
		if lockErr == nil {
			return f.Close, nil
		}
		if lockErr != syscall.EWOULDBLOCK && lockErr != syscall.EAGAIN && lockErr != syscall.EINTR {
			f.Close()
			return nil, fmt.Errorf("checkpoint: lock working directory: %w", lockErr)
		}
		if time.Now().After(deadline) {
			f.Close()
			return nil, fmt.Errorf("%w: %s", ErrLockTimeout, timeout)
		}
		time.Sleep(pollInterval)
	}
}
