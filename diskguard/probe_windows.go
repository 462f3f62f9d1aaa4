//go:build windows

package diskguard

import (
	"fmt"

	"golang.org/x/sys/windows"
)

type platformProber struct{}

// Probe resolves the volume mount point for path and reads its free space.
func (platformProber) Probe(path string) (Usage, error) {
	p, err := windows.UTF16PtrFromString(path)
	if err != nil {
		return Usage{}, err
	}

	buf := make([]uint16, windows.MAX_PATH+1)
	if err := windows.GetVolumePathName(p, &buf[0], uint32(len(buf))); err != nil {
		return Usage{}, fmt.Errorf("resolve volume for %s: %w", path, err)
	}
	mount := windows.UTF16ToString(buf)

	var avail, total, free uint64
	if err := windows.GetDiskFreeSpaceEx(&buf[0], &avail, &total, &free); err != nil {
		return Usage{}, fmt.Errorf("free space for %s: %w", mount, err)
	}
	return Usage{Mountpoint: mount, Total: total, Free: free, Available: avail}, nil
}
