package backup

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
)

const lockFilename = ".opsctl.lock"

// ErrLocked means another backup run holds the destination directory.
var ErrLocked = errors.New("destination is locked by another backup run")

// acquireLock takes an advisory lock on the destination directory so
// two runs cannot race on archive creation and retention deletion. The
// returned function releases the lock.
func acquireLock(dir string) (func(), error) {
	path := filepath.Join(dir, lockFilename)

	file, err := os.OpenFile(path, os.O_CREATE|os.O_EXCL|os.O_WRONLY, 0o644)
	if err != nil {
		if errors.Is(err, os.ErrExist) {
			return nil, fmt.Errorf("%w (%s)", ErrLocked, path)
		}
		return nil, fmt.Errorf("create lock file %s: %w", path, err)
	}

	_, _ = file.WriteString(strconv.Itoa(os.Getpid()) + "\n")
	if err := file.Close(); err != nil {
		os.Remove(path)
		return nil, fmt.Errorf("write lock file %s: %w", path, err)
	}

	return func() { os.Remove(path) }, nil
}
