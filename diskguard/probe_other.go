//go:build !linux && !darwin && !freebsd && !windows

package diskguard

import (
	"errors"
	"runtime"
)

// ErrUnsupportedPlatform is returned by the platform prober where no disk
// query is implemented.
var ErrUnsupportedPlatform = errors.New("disk inspection not supported on " + runtime.GOOS)

type platformProber struct{}

func (platformProber) Probe(string) (Usage, error) {
	return Usage{}, ErrUnsupportedPlatform
}
