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

	"golang.org/x/sys/unix"

	"github.com/interposefs/interposefs/fuseops"
	"github.com/jacobsa/syncutil"
)

// InodeTable maps (source-device, source-inode-number) to the live Inode
// record for that object, plus a second index keyed by the kernel-facing
// identifier so resolve can run without walking the whole table.
//
// Lock ordering (spec §5): the table lock is always acquired before any
// per-Inode lock, never the reverse.
type InodeTable struct {
	mu syncutil.InvariantMutex

	root *Inode

	// GUARDED_BY(mu)
	byKey map[inodeKey]*Inode
	// GUARDED_BY(mu)
	byID map[fuseops.InodeID]*Inode
}

func (t *InodeTable) checkInvariants() {
	if len(t.byKey) != len(t.byID) {
		panic("passthrough.InodeTable: byKey/byID size mismatch")
	}
}

// NewInodeTable opens sourceDir as the mount's root and returns a table
// containing only the distinguished root record. The root is never
// inserted into byKey/byID and is never forgotten.
func NewInodeTable(sourceDir string) (*InodeTable, error) {
	fd, err := unix.Open(sourceDir, unix.O_PATH|unix.O_DIRECTORY, 0)
	if err != nil {
		return nil, fmt.Errorf("passthrough: opening source root %q: %w", sourceDir, err)
	}

	var st unix.Stat_t
	if err := unix.Fstat(fd, &st); err != nil {
		unix.Close(fd)
		return nil, fmt.Errorf("passthrough: stat source root %q: %w", sourceDir, err)
	}

	root := newInode(fd, keyFromStat(&st), true)
	root.isRoot = true

	t := &InodeTable{
		root:  root,
		byKey: make(map[inodeKey]*Inode),
		byID:  make(map[fuseops.InodeID]*Inode),
	}
	t.mu = syncutil.NewInvariantMutex(t.checkInvariants)
	return t, nil
}

// Root returns the distinguished root Inode.
func (t *InodeTable) Root() *Inode { return t.root }

// Resolve yields the Inode for a kernel-supplied identifier. The second
// result is false if no live inode (and not the root) carries that id.
func (t *InodeTable) Resolve(id fuseops.InodeID) (*Inode, bool) {
	if id == fuseops.RootInodeID {
		return t.root, true
	}
	t.mu.Lock()
	defer t.mu.Unlock()
	in, ok := t.byID[id]
	return in, ok
}

// findOrInsertLocked assumes the caller already holds t.mu.
func (t *InodeTable) findOrInsertLocked(fd int, st *unix.Stat_t) *Inode {
	key := keyFromStat(st)
	if existing, ok := t.byKey[key]; ok {
		unix.Close(fd)
		existing.incrLookup(1)
		return existing
	}

	in := newInode(fd, key, st.Mode&unix.S_IFMT == unix.S_IFDIR)
	t.byKey[key] = in
	t.byID[in.ID()] = in
	return in
}

// insertFromOpen finds or inserts an Inode for a descriptor obtained by
// some means other than Lookup (e.g. CreateFile's mandatory O_CREAT|O_EXCL
// open, which must succeed or fail atomically with the name creation
// itself, unlike a plain lookup-after-create).
func (t *InodeTable) insertFromOpen(fd int, st *unix.Stat_t) *Inode {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.findOrInsertLocked(fd, st)
}

// Lookup opens name relative to parent's descriptor with a path-only,
// no-follow mode, stats the result, and finds or inserts the matching
// Inode. It is spec §4.1's "lookup" operation.
func (t *InodeTable) Lookup(parent *Inode, name string) (*Inode, error) {
	fd, err := unix.Openat(parent.fd, name, unix.O_PATH|unix.O_NOFOLLOW, 0)
	if err != nil {
		return nil, err
	}

	var st unix.Stat_t
	if err := unix.Fstat(fd, &st); err != nil {
		unix.Close(fd)
		return nil, err
	}

	t.mu.Lock()
	in := t.findOrInsertLocked(fd, &st)
	t.mu.Unlock()

	return in, nil
}

// Forget decrements in's lookup count by n, detaching and closing it once
// the count reaches zero. It tolerates being called on an id the table no
// longer holds (a race with a concurrent forget of the same inode), per
// spec §4.1.
func (t *InodeTable) Forget(id fuseops.InodeID, n uint64) {
	if id == fuseops.RootInodeID {
		return
	}

	t.mu.Lock()
	in, ok := t.byID[id]
	if !ok {
		t.mu.Unlock()
		return
	}
	if in.decrLookup(n) {
		delete(t.byID, id)
		delete(t.byKey, in.key)
		t.mu.Unlock()
		in.close()
		return
	}
	t.mu.Unlock()
}

// ForgetMulti applies Forget to each entry; it is the batched form the
// kernel sends as FUSE_BATCH_FORGET.
func (t *InodeTable) ForgetMulti(entries []fuseops.ForgetInodeEntry) {
	for _, e := range entries {
		t.Forget(e.Inode, e.N)
	}
}

// Destroy walks every remaining record and closes its descriptor,
// including the root's. Called once, from the Destroy op, after which no
// further requests are delivered.
func (t *InodeTable) Destroy() {
	t.mu.Lock()
	for id, in := range t.byID {
		in.close()
		delete(t.byID, id)
		delete(t.byKey, in.key)
	}
	t.mu.Unlock()
	t.root.close()
}
