package fuse

import (
	"fmt"

	"github.com/interposefs/interposefs/fuseops"
)

func MapFlockType(t uint32) fuseops.FileLockType {
	switch t {
	case 0:
		return fuseops.F_RDLOCK
	case 1:
		return fuseops.F_WRLOCK
	case 2:
		return fuseops.F_UNLCK
	}
	panic(fmt.Sprintf("MapFlockType: unknown type %d", t))
}

func UnmapFlockType(t fuseops.FileLockType) uint32 {
	switch t {
	case fuseops.F_RDLOCK:
		return 0
	case fuseops.F_WRLOCK:
		return 1
	case fuseops.F_UNLCK:
		return 2
	}
	return 2
}
