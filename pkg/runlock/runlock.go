// Package runlock serialises runs that share a data root.
package runlock

import (
	"fmt"
	"path/filepath"

	"github.com/gofrs/flock"
	pserrors "pinscraper/pkg/errors"
)

// FileName is the lock file created inside a data root
const FileName = ".pinscraper.lock"

// Lock is an acquired exclusive lock on a data root
type Lock struct {
	fl *flock.Flock
}

// Path returns the lock file path for root
func Path(root string) string {
	return filepath.Join(root, FileName)
}

// Acquire takes the lock of root without blocking. A lock held by another
// process fails with errors.ErrRunInProgress.
func Acquire(root string) (*Lock, error) {
	fl := flock.New(Path(root))
	ok, err := fl.TryLock()
	if err != nil {
		return nil, fmt.Errorf("failed to lock data root: %w", err)
	}
	if !ok {
		return nil, fmt.Errorf("%w: %s", pserrors.ErrRunInProgress, Path(root))
	}
	return &Lock{fl: fl}, nil
}

// Release drops the lock. Calling it twice is fine.
func (l *Lock) Release() error {
	if l == nil || l.fl == nil {
		return nil
	}
	err := l.fl.Unlock()
	l.fl = nil
	return err
}
