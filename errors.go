package fuse

import (
	"errors"

	"github.com/interposefs/interposefs/fuseops"
)

// Aliases kept for the samples and callers that spell these fuse.EIO
// rather than fuseops.EIO, matching the naming every sample filesystem in
// this repo's history already used.
const (
	EEXIST    = fuseops.EEXIST
	EINVAL    = fuseops.EINVAL
	EIO       = fuseops.EIO
	ENODATA   = fuseops.ENODATA
	ENOENT    = fuseops.ENOENT
	ENOSPC    = fuseops.ENOSPC
	ENOSYS    = fuseops.ENOSYS
	ENOTSUP   = fuseops.ENOTSUP
	ERANGE    = fuseops.ERANGE
	ENOTEMPTY = fuseops.ENOTEMPTY
)

// ErrExternallyManagedMountPoint is returned by Unmount when the mount
// point is a /dev/fd/N-style externally managed descriptor rather than a
// directory this package mounted itself.
var ErrExternallyManagedMountPoint = errors.New("fuse: externally managed mount point")
