// Copyright 2015 Google Inc. All Rights Reserved.
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
//     http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.

package passthrough

import (
	"fmt"
	"os"

	"golang.org/x/sys/unix"

	"github.com/interposefs/interposefs/fuseops"
)

// procFdPath is the magic symlink through which this package performs
// every attribute read/write that has no dedicated *at syscall: chmod,
// chown, truncate, utimes, getxattr/setxattr/listxattr/removexattr, and
// reopening a descriptor with different access flags. Every Inode
// descriptor is opened O_PATH (no read/write access of its own), so these
// are the only way to touch the referenced object's content or xattrs.
func procFdPath(fd int) string {
	return fmt.Sprintf("/proc/self/fd/%d", fd)
}

// chmodBits packs an os.FileMode's permission and special bits into the
// word chmod(2) expects; the type bits (ModeDir, ...) are meaningless to
// chmod and are dropped.
func chmodBits(mode os.FileMode) uint32 {
	bits := uint32(mode.Perm())
	if mode&os.ModeSetuid != 0 {
		bits |= unix.S_ISUID
	}
	if mode&os.ModeSetgid != 0 {
		bits |= unix.S_ISGID
	}
	if mode&os.ModeSticky != 0 {
		bits |= unix.S_ISVTX
	}
	return bits
}

const utimeOmit = unix.UTIME_OMIT
const utimeNow = unix.UTIME_NOW

// applySetAttr applies the requested changes in op onto in's underlying
// object via its proc-fd path, per spec §4.2's metadata-write contract.
func applySetAttr(in *Inode, op *fuseops.SetInodeAttributesOp) error {
	path := procFdPath(in.fd)

	if op.Size != nil {
		if err := unix.Truncate(path, int64(*op.Size)); err != nil {
			return err
		}
	}

	if op.Mode != nil {
		if err := unix.Chmod(path, chmodBits(*op.Mode)); err != nil {
			return err
		}
	}

	if op.UID != nil || op.GID != nil {
		uid, gid := -1, -1
		if op.UID != nil {
			uid = int(*op.UID)
		}
		if op.GID != nil {
			gid = int(*op.GID)
		}
		if err := unix.Chown(path, uid, gid); err != nil {
			return err
		}
	}

	if op.AtimeNow || op.Atime != nil || op.MtimeNow || op.Mtime != nil {
		times := [2]unix.Timespec{
			{Sec: 0, Nsec: utimeOmit},
			{Sec: 0, Nsec: utimeOmit},
		}
		switch {
		case op.AtimeNow:
			times[0].Nsec = utimeNow
		case op.Atime != nil:
			times[0] = unix.NsecToTimespec(op.Atime.UnixNano())
		}
		switch {
		case op.MtimeNow:
			times[1].Nsec = utimeNow
		case op.Mtime != nil:
			times[1] = unix.NsecToTimespec(op.Mtime.UnixNano())
		}
		if err := unix.UtimesNanoAt(unix.AT_FDCWD, path, times[:], 0); err != nil {
			return err
		}
	}

	return nil
}
