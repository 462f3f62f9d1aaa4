// Package iox provides I/O helpers for resource cleanup and error classification.
package iox

import (
	"errors"
	"io"
	"io/fs"
	"os"
	"syscall"
)

// ErrDiskFull classifies writes that failed because storage is out of space (ENOSPC).
var ErrDiskFull = errors.New("no space left on device")

// DiscardClose closes c and discards the error.
// Use in defer statements where close errors are unactionable:
//
//	defer iox.DiscardClose(f)
func DiscardClose(c io.Closer) { _ = c.Close() }

// CloseFunc returns a cleanup function that closes c.
// Designed for t.Cleanup registration:
//
//	t.Cleanup(iox.CloseFunc(sink))
func CloseFunc(c io.Closer) func() {
	return func() { _ = c.Close() }
}

// DiscardErr calls fn and discards the returned error.
// Use for non-Close cleanup calls (e.g. Sync) where errors are unactionable:
//
//	defer iox.DiscardErr(f.Sync)
func DiscardErr(fn func() error) { _ = fn() }

// RemoveIfExists deletes path. A path that is already gone is not an error.
func RemoveIfExists(path string) error {
	err := os.Remove(path)
	if err != nil && !errors.Is(err, fs.ErrNotExist) {
		return err
	}
	return nil
}

// IsDiskFull reports whether err was caused by the device running out of space.
func IsDiskFull(err error) bool {
	return errors.Is(err, syscall.ENOSPC) || errors.Is(err, ErrDiskFull)
}
