package cmd

import (
	"errors"
	"fmt"

	"github.com/urfave/cli/v2"

	"github.com/pithecene-io/stager/archive"
	"github.com/pithecene-io/stager/chunker"
	"github.com/pithecene-io/stager/diskguard"
	"github.com/pithecene-io/stager/manifest"
	"github.com/pithecene-io/stager/stage"
)

// Exit codes.
const (
	exitSuccess          = 0
	exitUsage            = 1
	exitLowSpace         = 2
	exitInspectionFailed = 3
	exitArchiveFailed    = 4
	exitChunkFailed      = 5
)

// exitCode maps a staging error to the process exit code.
func exitCode(err error) int {
	switch {
	case err == nil:
		return exitSuccess
	case errors.Is(err, stage.ErrInsufficientDiskSpace):
		return exitLowSpace
	case errors.Is(err, diskguard.ErrInspection):
		return exitInspectionFailed
	case errors.Is(err, archive.ErrWrite):
		return exitArchiveFailed
	case errors.Is(err, chunker.ErrChunkIO), errors.Is(err, manifest.ErrMismatch):
		return exitChunkFailed
	default:
		return exitUsage
	}
}

// exitErr wraps err in a cli.ExitCoder carrying its exit code.
func exitErr(err error) error {
	if err == nil {
		return nil
	}
	return cli.Exit(fmt.Sprintf("Error: %v", err), exitCode(err))
}
