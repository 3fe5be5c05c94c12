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

package fuseops

import (
	"os"
	"time"
)

// Sent once when mounting the file system. It must succeed in order for the
// mount to succeed. The file system reports the kernel capabilities it
// wants to enable (writeback cache, flock, ...) by setting the fields
// below before responding.
type InitOp struct {
	commonOp

	Kernel struct {
		Major, Minor uint32
	}

	// Set by the file system.
	UseWritebackCache bool
	UseFlockLocks     bool
	DisableInterrupt  bool
}

////////////////////////////////////////////////////////////////////////
// Inodes
////////////////////////////////////////////////////////////////////////

// Look up a child by name within a parent directory. The kernel sends this
// when resolving user paths to dentry structs, which are then cached.
type LookUpInodeOp struct {
	commonOp

	Parent InodeID
	Name   string

	// Set by the file system.
	Entry ChildInodeEntry
}

// Refresh the attributes for an inode whose ID was previously returned in a
// LookUpInodeOp.
type GetInodeAttributesOp struct {
	commonOp

	Inode InodeID

	// Set by the file system.
	Attributes           InodeAttributes
	AttributesExpiration time.Time
}

// Change attributes for an inode. Sent for chmod(2), chown(2),
// truncate(2)/ftruncate(2), and utimes(2), among others.
type SetInodeAttributesOp struct {
	commonOp

	Inode InodeID

	Size  *uint64
	Mode  *os.FileMode
	UID   *uint32
	GID   *uint32
	Atime *time.Time
	Mtime *time.Time

	AtimeNow bool
	MtimeNow bool

	// Set by the file system.
	Attributes           InodeAttributes
	AttributesExpiration time.Time
}

// Forget an inode ID previously issued (e.g. by LookUpInode or MkDir). The
// kernel sends this when removing an inode from its internal caches. No
// reply is sent; the operation cannot fail.
type ForgetInodeOp struct {
	commonOp

	Inode InodeID
	N     uint64
}

// The batched form of ForgetInodeOp (FUSE_BATCH_FORGET).
type ForgetInodeEntry struct {
	Inode InodeID
	N     uint64
}

type ForgetMultiOp struct {
	commonOp

	Entries []ForgetInodeEntry
}

// Check whether the calling process may access the inode in the given mode
// (the mode bits of access(2): R_OK, W_OK, X_OK).
type AccessOp struct {
	commonOp

	Inode InodeID
	Mask  uint32
}

////////////////////////////////////////////////////////////////////////
// Inode creation
////////////////////////////////////////////////////////////////////////

type MkDirOp struct {
	commonOp

	Parent InodeID
	Name   string
	Mode   os.FileMode

	// Set by the file system.
	Entry ChildInodeEntry
}

// Create a non-directory, non-symlink, non-regular-file inode: a fifo,
// socket, device node, or (rarely) a regular file via mknod(2) instead of
// open(2)/creat(2). Mode encodes the target file type in its upper bits;
// the passthrough layer dispatches on it (spec §4.2).
type MkNodeOp struct {
	commonOp

	Parent InodeID
	Name   string
	Mode   os.FileMode
	Rdev   uint32

	// Set by the file system.
	Entry ChildInodeEntry
}

// Create a file inode and open it, in response to open(2) with O_CREAT
// when the kernel has observed that the file doesn't exist.
type CreateFileOp struct {
	commonOp

	Parent InodeID
	Name   string
	Mode   os.FileMode
	Flags  OpenFlags

	// Set by the file system.
	Entry  ChildInodeEntry
	Handle HandleID
}

// Create a symlink whose target is Target, as a child of Parent named
// Name.
type CreateSymlinkOp struct {
	commonOp

	Parent InodeID
	Name   string
	Target string

	// Set by the file system.
	Entry ChildInodeEntry
}

// Create a hard link to Target as a child of Parent named Name.
type CreateLinkOp struct {
	commonOp

	Parent InodeID
	Name   string
	Target InodeID

	// Set by the file system.
	Entry ChildInodeEntry
}

// Read the target of a symlink previously created by CreateSymlink or
// discovered by LookUpInode.
type ReadSymlinkOp struct {
	commonOp

	Inode InodeID

	// Set by the file system.
	Target string
}

// Rename the child Name of OldParent to NewName under NewParent.
//
// Per spec §4.2/§8: any nonzero value of Flags (RENAME_EXCHANGE,
// RENAME_NOREPLACE, ...) must be rejected with EINVAL rather than acted
// on, and the filesystem must be left unchanged in that case.
type RenameOp struct {
	commonOp

	OldParent InodeID
	OldName   string
	NewParent InodeID
	NewName   string
	Flags     uint32
}

////////////////////////////////////////////////////////////////////////
// Unlinking
////////////////////////////////////////////////////////////////////////

type RmDirOp struct {
	commonOp

	Parent InodeID
	Name   string
}

type UnlinkOp struct {
	commonOp

	Parent InodeID
	Name   string
}

////////////////////////////////////////////////////////////////////////
// Extended attributes
////////////////////////////////////////////////////////////////////////

type GetXattrOp struct {
	commonOp

	Inode InodeID
	Name  string
	Size  int

	// Set by the file system. If Size was zero, only Len should be set
	// (to the value the file system would have written), per getxattr(2)'s
	// size-probing convention.
	Dst []byte
	Len int
}

type ListXattrOp struct {
	commonOp

	Inode InodeID
	Size  int

	// Set by the file system: a sequence of NUL-terminated names.
	Dst []byte
	Len int
}

type SetXattrOp struct {
	commonOp

	Inode InodeID
	Name  string
	Value []byte
	Flags uint32
}

type RemoveXattrOp struct {
	commonOp

	Inode InodeID
	Name  string
}

////////////////////////////////////////////////////////////////////////
// Directory handles
////////////////////////////////////////////////////////////////////////

type OpenDirOp struct {
	commonOp

	Inode InodeID
	Flags OpenFlags

	// Set by the file system.
	Handle HandleID
}

// Read entries from a directory previously opened with OpenDir.
//
// Offset is opaque outside of the values previously returned in this same
// handle's Dirent.Offset fields; see the extended discussion in the
// upstream fuseops package this type is adapted from regarding how Linux's
// parse_dirfile/telldir/seekdir/rewinddir machinery produces and consumes
// it. fuseutil.WriteDirent is the only supported way to build Data.
type ReadDirOp struct {
	commonOp

	Inode  InodeID
	Handle HandleID
	Offset DirOffset
	Size   int

	// Set by the file system.
	Data []byte
}

// Like ReadDirOp, but each entry additionally carries a full lookup entry
// (spec §4.2: readdirplus performs an implicit lookup per non-dot entry).
// If an entry is generated but does not fit in Size, its implicit lookup
// must be forgotten by one to avoid leaking lookup count (spec §8).
type ReadDirPlusOp struct {
	commonOp

	Inode  InodeID
	Handle HandleID
	Offset DirOffset
	Size   int

	// Set by the file system.
	Data []byte
}

type ReleaseDirHandleOp struct {
	commonOp

	Handle HandleID
}

type FsyncDirOp struct {
	commonOp

	Inode  InodeID
	Handle HandleID
}

////////////////////////////////////////////////////////////////////////
// File handles
////////////////////////////////////////////////////////////////////////

type OpenFileOp struct {
	commonOp

	Inode InodeID
	Flags OpenFlags

	// Set by the file system. KeepPageCache requests that the kernel not
	// invalidate its page cache across this open (cache mode "always",
	// spec §4.2); UseDirectIO requests it bypass the cache entirely (cache
	// mode "never").
	Handle        HandleID
	KeepPageCache bool
	UseDirectIO   bool
}

// Read data from a file previously opened with CreateFile or OpenFile.
type ReadFileOp struct {
	commonOp

	Inode  InodeID
	Handle HandleID
	Offset int64
	Size   int

	// Set by the file system: the data read. Less than Size indicates EOF.
	Data [][]byte
}

// Write data to a file previously opened with CreateFile or OpenFile.
type WriteFileOp struct {
	commonOp

	Inode  InodeID
	Handle HandleID
	Offset int64
	Data   []byte
}

type SyncFileOp struct {
	commonOp

	Inode  InodeID
	Handle HandleID
}

// Flush the current state of an open file to storage upon closing a file
// descriptor (one close(2) can produce zero, one, or more of these, per
// dup(2) fan-out). Not necessarily one-to-one with OpenFileOp; must not be
// used for reference counting.
//
// The passthrough layer implements this as "close a dup of the descriptor"
// so that any pending write error surfaces to the closing process (spec
// §4.2), rather than doing nothing, which is what most "real" kernel file
// systems do because they rely on eventual page-cache writeback instead.
type FlushFileOp struct {
	commonOp

	Inode  InodeID
	Handle HandleID
}

type ReleaseFileHandleOp struct {
	commonOp

	Handle HandleID
}

type FallocateOp struct {
	commonOp

	Inode  InodeID
	Handle HandleID
	Offset uint64
	Length uint64
	Mode   uint32
}

type CopyFileRangeOp struct {
	commonOp

	InodeIn   InodeID
	HandleIn  HandleID
	OffsetIn  int64
	InodeOut  InodeID
	HandleOut HandleID
	OffsetOut int64
	Len       uint64

	// Set by the file system.
	BytesCopied uint64
}

type LseekOp struct {
	commonOp

	Inode  InodeID
	Handle HandleID
	Offset int64
	Whence int

	// Set by the file system.
	ResultOffset int64
}

////////////////////////////////////////////////////////////////////////
// Locking
////////////////////////////////////////////////////////////////////////

type FlockOp struct {
	commonOp

	Inode  InodeID
	Handle HandleID
	Type   FileLockType
}

type GetLkOp struct {
	commonOp

	Inode  InodeID
	Handle HandleID

	Start, End uint64
	Type       FileLockType
	PID        uint32

	// Set by the file system: the conflicting lock, if any.
	ConflictingStart, ConflictingEnd uint64
	ConflictingType                 FileLockType
	ConflictingPID                  uint32
	Conflict                        bool
}

type SetLkOp struct {
	commonOp

	Inode  InodeID
	Handle HandleID

	Start, End uint64
	Type       FileLockType
	Block      bool
}

////////////////////////////////////////////////////////////////////////
// Filesystem-wide
////////////////////////////////////////////////////////////////////////

type StatFSOp struct {
	commonOp

	// Set by the file system.
	Info StatFSInfo
}

// Sent on unmount, after which no further ops will be delivered. The file
// system should release all resources (spec §4.2: "walks the inode table,
// closes all descriptors, frees all records").
type DestroyOp struct {
	commonOp
}
