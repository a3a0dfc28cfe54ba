// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package main

import (
	"errors"

	"github.com/pdiddy/arxiv-registry/internal/arxiv"
	"github.com/pdiddy/arxiv-registry/internal/registry"
)

// Process exit codes. Each failure class of the registry has its own code
// so scripts can tell them apart.
const (
	exitOK                 = 0
	exitOther              = 1
	exitNotFound           = 2
	exitMetadataIncomplete = 3
	exitConflict           = 4
	exitStorage            = 5
	exitUpstream           = 6
)

// exitCode maps err to a process exit code. For a batch with mixed
// failures the most severe class wins: storage, conflict, incomplete
// metadata, not found, upstream.
func exitCode(err error) int {
	switch {
	case err == nil:
		return exitOK
	case registry.IsStorageError(err):
		return exitStorage
	case errors.Is(err, registry.ErrConflict):
		return exitConflict
	case errors.Is(err, registry.ErrMetadataIncomplete):
		return exitMetadataIncomplete
	case errors.Is(err, registry.ErrNotFound):
		return exitNotFound
	case errors.Is(err, arxiv.ErrUpstream):
		return exitUpstream
	}
	return exitOther
}
