// Package types defines core domain types shared by the stager packages.
//
//nolint:revive // types is a common Go package naming convention
package types

import (
	"errors"
	"fmt"
)

// Request validation errors.
var (
	ErrNoSource      = errors.New("source path is required")
	ErrPartSize      = errors.New("max part size must be greater than 0")
	ErrNegativeTotal = errors.New("total bytes must not be negative")
)

// StagingRequest describes one staging operation. The caller owns it and
// must not change it once the operation starts.
type StagingRequest struct {
	// SourcePath is the file to stage.
	SourcePath string `json:"source_path"`
	// MaxPartBytes bounds the size of every part file.
	MaxPartBytes int64 `json:"max_part_bytes"`
	// TotalBytes is the source size the caller expects. Zero means unknown.
	// A mismatch with the size on disk is logged, not rejected.
	TotalBytes int64 `json:"total_bytes"`
	// KeepArchive leaves the intermediate archive on disk after splitting.
	KeepArchive bool `json:"keep_archive"`
}

// Validate checks the request fields.
func (r StagingRequest) Validate() error {
	if r.SourcePath == "" {
		return ErrNoSource
	}
	if r.MaxPartBytes <= 0 {
		return fmt.Errorf("%w: got %d", ErrPartSize, r.MaxPartBytes)
	}
	if r.TotalBytes < 0 {
		return fmt.Errorf("%w: got %d", ErrNegativeTotal, r.TotalBytes)
	}
	return nil
}
