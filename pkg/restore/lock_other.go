//go:build !unix && !windows

package restore

func platformTransientLock(error) bool { return false }
