//go:build windows

package restore

import (
	"errors"

	"golang.org/x/sys/windows"
)

// Windows keeps a file locked while a handle or mapped view is still open.
func platformTransientLock(err error) bool {
	return errors.Is(err, windows.ERROR_SHARING_VIOLATION) ||
		errors.Is(err, windows.ERROR_LOCK_VIOLATION) ||
		errors.Is(err, windows.ERROR_USER_MAPPED_FILE)
}
