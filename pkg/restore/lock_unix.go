//go:build unix

package restore

import (
	"errors"

	"golang.org/x/sys/unix"
)

func platformTransientLock(err error) bool {
	return errors.Is(err, unix.EBUSY) || errors.Is(err, unix.ETXTBSY)
}
