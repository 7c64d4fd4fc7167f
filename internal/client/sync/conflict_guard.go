package sync

import (
	"errors"
	"fmt"
	"io/fs"

	"github.com/openmined/themesync/internal/theme"
)

// ConflictError is returned when a key changed both locally and remotely
// since the last sync.
type ConflictError struct {
	Key string
}

func (e *ConflictError) Error() string {
	return fmt.Sprintf("Detected changes to the file '%s' on both local and remote sources. Aborting...", e.Key)
}

// IsConflict reports whether err is a *ConflictError.
func IsConflict(err error) bool {
	var conflict *ConflictError
	return errors.As(err, &conflict)
}

// GuardConflicts re-reads every changed key from the store and fails on the
// first whose local checksum moved away from the recorded one. A missing file
// is a valid read. Other read errors are returned as is.
func GuardConflicts(store LocalStore, changed []theme.Checksum) error {
	for _, c := range changed {
		before, _ := store.Checksum(c.Key)

		if _, err := store.Read(c.Key); err != nil && !errors.Is(err, fs.ErrNotExist) {
			return fmt.Errorf("conflict check %s: %w", c.Key, err)
		}

		after, _ := store.Checksum(c.Key)
		if before != after {
			return &ConflictError{Key: c.Key}
		}
	}
	return nil
}
