// Unix/Darwin file locking using flock(2).
//
// Compiled on all non-Windows platforms. The daemon holds an exclusive
// advisory lock on the PID file for its lifetime; a second instance fails to
// acquire it and exits.

//go:build !windows

package main

import (
	"fmt"
	"os"
	"syscall"
)

// lockFile acquires an exclusive, non-blocking advisory lock on f. LOCK_NB
// makes the call fail immediately (EWOULDBLOCK) when another process holds
// the lock.
func lockFile(f *os.File) error {
	if err := syscall.Flock(int(f.Fd()), syscall.LOCK_EX|syscall.LOCK_NB); err != nil {
		return fmt.Errorf("lock file %s: %w", f.Name(), err)
	}
	return nil
}

// unlockFile releases the advisory lock on f. Closing the descriptor also
// releases it implicitly.
func unlockFile(f *os.File) error {
	if err := syscall.Flock(int(f.Fd()), syscall.LOCK_UN); err != nil {
		return fmt.Errorf("unlock file %s: %w", f.Name(), err)
	}
	return nil
}
