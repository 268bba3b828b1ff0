package sync

import (
	"errors"
	"fmt"
	"os"
	"strconv"
)

// ErrSyncInProgress reports that another synchronization run holds the store
// lock. It is a contention signal, not a store failure.
var ErrSyncInProgress = errors.New("synchronization already in progress")

// acquireLock takes the advisory lock guarding a store. The lock is a
// sibling file created exclusively; it is held for the whole run and removed
// by the returned release function.
func acquireLock(dbPath string) (release func(), err error) {
	lockPath := dbPath + ".lock"
	f, err := os.OpenFile(lockPath, os.O_CREATE|os.O_EXCL|os.O_WRONLY, 0o644)
	if err != nil {
		if os.IsExist(err) {
			return nil, fmt.Errorf("%w (lock held at %s)", ErrSyncInProgress, lockPath)
		}
		return nil, fmt.Errorf("acquire store lock: %w", err)
	}
	f.WriteString(strconv.Itoa(os.Getpid()))
	f.Close()

	return func() { os.Remove(lockPath) }, nil
}
