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

// Package fuseops contains the Op types returned by fuse.Connection.ReadOp,
// one per low-level kernel filesystem request kind.
package fuseops

import (
	"os"
	"time"
)

// InodeID is the kernel-facing opaque identifier for an inode, minted by
// the passthrough layer's inode table (spec §4.1). The root directory is
// always RootInodeID.
type InodeID uint64

const RootInodeID InodeID = 1

// HandleID is an opaque per-open file or directory handle, echoed by the
// kernel on follow-up ops (read, write, readdir, release, ...) until the
// corresponding release op.
type HandleID uint64

// OpenFlags mirrors the open(2) flag bits the kernel passes through on
// open/create/opendir ops. Replaces the teacher's dependency on
// bazilfuse.OpenFlags now that the module no longer uses bazil.org/fuse.
type OpenFlags uint32

const (
	OpenReadOnly  OpenFlags = 0x0
	OpenWriteOnly OpenFlags = 0x1
	OpenReadWrite OpenFlags = 0x2
	OpenAccmode   OpenFlags = 0x3
	OpenCreate    OpenFlags = 0x40
	OpenExclusive OpenFlags = 0x80
	OpenTruncate  OpenFlags = 0x200
	OpenAppend    OpenFlags = 0x400
	OpenNonblock  OpenFlags = 0x800
	OpenSync      OpenFlags = 0x1000
	OpenDirectory OpenFlags = 0x10000
)

// DirOffset is an opaque directory-stream cursor value, meaningful only as
// an argument to a subsequent ReadDirOp on the same handle. See the
// extensive discussion on ReadDirOp.Offset.
type DirOffset uint64

// OpHeader carries side information about the calling context of an op,
// populated from the kernel's in_header by the connection layer.
type OpHeader struct {
	UID           uint32
	GID           uint32
	PID           uint32
	CorrelationID string
}

// InodeAttributes mirrors struct fuse_attr's logical fields.
type InodeAttributes struct {
	Size   uint64
	Nlink  uint32
	Mode   os.FileMode
	UID    uint32
	GID    uint32
	Rdev   uint32
	Atime  time.Time
	Mtime  time.Time
	Ctime  time.Time
	Crtime time.Time
}

// ChildInodeEntry is filled out by the file system on any op that creates
// or looks up a child inode.
type ChildInodeEntry struct {
	Child      InodeID
	Generation uint64

	Attributes InodeAttributes

	AttributesExpiration time.Time
	EntryExpiration      time.Time
}

// Dirent is one entry returned from ReadDir/ReadDirPlus, in the format
// consumed by fuseutil.WriteDirent / fuseutil.WriteDirentPlus.
type DirentType uint32

const (
	DT_Unknown DirentType = 0
	DT_Socket  DirentType = 12
	DT_Link    DirentType = 10
	DT_File    DirentType = 8
	DT_Block   DirentType = 6
	DT_Dir     DirentType = 4
	DT_FIFO    DirentType = 1
)

type Dirent struct {
	Offset DirOffset
	Inode  InodeID
	Name   string
	Type   DirentType
}

// DirentPlus additionally carries a full lookup entry, as produced by
// readdirplus so the kernel can populate its dentry cache without a
// follow-up LookUpInode.
type DirentPlus struct {
	Dirent Dirent
	Entry  ChildInodeEntry
}

// StatFSInfo is filled out by the file system on a StatFSOp.
type StatFSInfo struct {
	BlockSize       uint32
	Blocks          uint64
	BlocksFree      uint64
	BlocksAvailable uint64
	IoSize          uint32
	Inodes          uint64
	InodesFree      uint64
}

// FileLockType mirrors the kernel's flock/posix-lock type constants.
type FileLockType uint32

const (
	F_RDLOCK FileLockType = 0
	F_WRLOCK FileLockType = 1
	F_UNLCK  FileLockType = 2
)
