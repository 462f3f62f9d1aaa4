//go:build !windows

package hidden

// Default returns the Marker for this platform.
func Default() Marker {
	return Dotfile{}
}
