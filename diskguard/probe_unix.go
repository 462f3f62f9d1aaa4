//go:build linux || darwin || freebsd

package diskguard

import (
	"fmt"
	"path/filepath"

	"golang.org/x/sys/unix"
)

type platformProber struct{}

// Probe finds the mount point holding path and reads its usage with statfs.
func (platformProber) Probe(path string) (Usage, error) {
	mount, err := mountpoint(path)
	if err != nil {
		return Usage{}, err
	}

	var st unix.Statfs_t
	if err := unix.Statfs(mount, &st); err != nil {
		return Usage{}, fmt.Errorf("statfs %s: %w", mount, err)
	}

	bsize := uint64(st.Bsize)
	return Usage{
		Mountpoint: mount,
		Total:      uint64(st.Blocks) * bsize,
		Free:       uint64(st.Bfree) * bsize,
		Available:  uint64(st.Bavail) * bsize,
	}, nil
}

// mountpoint walks up from path until the device id changes. The last
// directory still on the starting device is the mount point.
func mountpoint(path string) (string, error) {
	dev, err := deviceOf(path)
	if err != nil {
		return "", err
	}

	cur := path
	for {
		parent := filepath.Dir(cur)
		if parent == cur {
			return cur, nil
		}
		pdev, err := deviceOf(parent)
		if err != nil {
			return "", err
		}
		if pdev != dev {
			return cur, nil
		}
		cur = parent
	}
}

func deviceOf(path string) (uint64, error) {
	var st unix.Stat_t
	if err := unix.Stat(path, &st); err != nil {
		return 0, fmt.Errorf("stat %s: %w", path, err)
	}
	return uint64(st.Dev), nil
}
