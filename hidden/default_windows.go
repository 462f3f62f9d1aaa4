//go:build windows

package hidden

import (
	"fmt"

	"golang.org/x/sys/windows"
)

// Attribute hides paths with the FILE_ATTRIBUTE_HIDDEN bit.
type Attribute struct{}

// Default returns the Marker for this platform.
func Default() Marker {
	return Attribute{}
}

// Hide sets FILE_ATTRIBUTE_HIDDEN on path, keeping its other attributes.
func (Attribute) Hide(path string) error {
	p, err := windows.UTF16PtrFromString(path)
	if err != nil {
		return err
	}
	attrs, err := windows.GetFileAttributes(p)
	if err != nil {
		return fmt.Errorf("get attributes %s: %w", path, err)
	}
	if err := windows.SetFileAttributes(p, attrs|windows.FILE_ATTRIBUTE_HIDDEN); err != nil {
		return fmt.Errorf("set attributes %s: %w", path, err)
	}
	return nil
}

// IsHidden reports whether path carries FILE_ATTRIBUTE_HIDDEN.
func (Attribute) IsHidden(path string) (bool, error) {
	p, err := windows.UTF16PtrFromString(path)
	if err != nil {
		return false, err
	}
	attrs, err := windows.GetFileAttributes(p)
	if err != nil {
		return false, fmt.Errorf("get attributes %s: %w", path, err)
	}
	return attrs&windows.FILE_ATTRIBUTE_HIDDEN != 0, nil
}
