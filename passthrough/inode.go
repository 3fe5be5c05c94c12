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

// Package passthrough implements the low-level file system operations
// against a source directory tree, using descriptor-relative syscalls
// exclusively: no operation ever re-resolves a path from the mount root.
package passthrough

import (
	"os"
	"time"
	"unsafe"

	"golang.org/x/sys/unix"

	"github.com/interposefs/interposefs/fuseops"
	"github.com/jacobsa/syncutil"
)

// inodeKey is the canonical identity of a source object: no two live
// Inode records share a key.
type inodeKey struct {
	dev uint64
	ino uint64
}

// Inode owns a "path only, no access" descriptor to one source object.
// Its kernel-facing identifier is not a counter but a packed integer equal
// to the record's own memory address: Go's garbage collector never
// relocates a heap object while it remains reachable, and the table below
// keeps every live Inode reachable through its id-keyed index, so the
// identifier stays valid for exactly as long as the kernel may hold it.
type Inode struct {
	mu syncutil.InvariantMutex

	fd     int
	key    inodeKey
	isRoot bool
	isDir  bool

	// GUARDED_BY(mu)
	lookupCount uint64
	// GUARDED_BY(mu)
	openCount uint64
	// GUARDED_BY(mu)
	generation uint64
}

func (in *Inode) checkInvariants() {
	if in.fd < 0 {
		panic("passthrough.Inode: negative descriptor")
	}
}

func newInode(fd int, key inodeKey, isDir bool) *Inode {
	in := &Inode{fd: fd, key: key, isDir: isDir, lookupCount: 1}
	in.mu = syncutil.NewInvariantMutex(in.checkInvariants)
	return in
}

// ID returns the opaque identifier handed to the kernel for this inode.
// The root inode always reports fuseops.RootInodeID; every other inode
// reports its own memory address, which fits the kernel's 64-bit
// identifier width on every platform this module targets.
func (in *Inode) ID() fuseops.InodeID {
	if in.isRoot {
		return fuseops.RootInodeID
	}
	return fuseops.InodeID(uintptr(unsafe.Pointer(in)))
}

// Fd returns the inode's path-only descriptor, valid for *at syscalls and
// fstat, but not for read/write I/O.
func (in *Inode) Fd() int { return in.fd }

// IsDir reports whether the inode denotes a directory, decided once at
// insertion time from the lookup stat.
func (in *Inode) IsDir() bool { return in.isDir }

// Generation returns the current generation counter, bumped whenever an
// identifier is reused after recycling (spec §4.1); this implementation
// never recycles identifiers (they are addresses), so it is always zero,
// kept only so ChildInodeEntry has something to report.
func (in *Inode) Generation() uint64 {
	in.mu.Lock()
	defer in.mu.Unlock()
	return in.generation
}

// Attributes stats the inode's own descriptor and translates the result
// into the kernel-facing attribute record.
func (in *Inode) Attributes() (fuseops.InodeAttributes, error) {
	var st unix.Stat_t
	if err := unix.Fstat(in.fd, &st); err != nil {
		return fuseops.InodeAttributes{}, err
	}
	return attributesFromStat(&st), nil
}

func attributesFromStat(st *unix.Stat_t) fuseops.InodeAttributes {
	return fuseops.InodeAttributes{
		Size:  uint64(st.Size),
		Nlink: uint32(st.Nlink),
		Mode:  modeFromStatType(st.Mode),
		UID:   st.Uid,
		GID:   st.Gid,
		Rdev:  uint32(st.Rdev),
		Atime: timespecToTime(st.Atim),
		Mtime: timespecToTime(st.Mtim),
		Ctime: timespecToTime(st.Ctim),
	}
}

func timespecToTime(ts unix.Timespec) time.Time {
	return time.Unix(ts.Sec, ts.Nsec)
}

func modeFromStatType(raw uint32) os.FileMode {
	mode := os.FileMode(raw & 0777)
	switch raw & unix.S_IFMT {
	case unix.S_IFDIR:
		mode |= os.ModeDir
	case unix.S_IFCHR:
		mode |= os.ModeDevice | os.ModeCharDevice
	case unix.S_IFBLK:
		mode |= os.ModeDevice
	case unix.S_IFIFO:
		mode |= os.ModeNamedPipe
	case unix.S_IFLNK:
		mode |= os.ModeSymlink
	case unix.S_IFSOCK:
		mode |= os.ModeSocket
	}
	if raw&unix.S_ISUID != 0 {
		mode |= os.ModeSetuid
	}
	if raw&unix.S_ISGID != 0 {
		mode |= os.ModeSetgid
	}
	if raw&unix.S_ISVTX != 0 {
		mode |= os.ModeSticky
	}
	return mode
}

// keyFromStat extracts the canonical (device, inode) identity from a stat
// result.
func keyFromStat(st *unix.Stat_t) inodeKey {
	return inodeKey{dev: uint64(st.Dev), ino: st.Ino}
}

// incrLookup bumps the lookup count, used both by fresh lookups that find
// an existing record and by readdirplus's implicit per-entry lookup.
func (in *Inode) incrLookup(n uint64) {
	in.mu.Lock()
	in.lookupCount += n
	in.mu.Unlock()
}

// decrLookup subtracts n from the lookup count, clamping at zero rather
// than underflowing (spec §4.1: forgets racing a concurrent lookup must
// be tolerated, not asserted on), and reports whether the count reached
// zero.
func (in *Inode) decrLookup(n uint64) (reachedZero bool) {
	in.mu.Lock()
	defer in.mu.Unlock()
	if n >= in.lookupCount {
		in.lookupCount = 0
	} else {
		in.lookupCount -= n
	}
	return in.lookupCount == 0
}

func (in *Inode) close() error {
	return unix.Close(in.fd)
}
