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
	"os"
	"sync"
	"sync/atomic"

	"github.com/interposefs/interposefs/fuseops"
)

// fileHandle is the per-open state for a regular file, device, or other
// non-directory object. fd is a real read/write descriptor distinct from
// the owning Inode's path-only one.
type fileHandle struct {
	fd    int
	inode fuseops.InodeID
}

// dirHandle is the per-open state for a directory. The full listing is
// fetched once at OpenDir time and cached; readdir/readdirplus slice into
// it by the kernel-supplied offset, which this implementation treats as a
// plain index into entries (spec §4.2's "cursor" is exactly this index
// plus the last name served).
type dirHandle struct {
	fd int

	mu      sync.Mutex
	entries []os.DirEntry
}

// handleTable hands out HandleIDs and tracks the live file/dir handles
// they name. A single monotonically increasing counter backs both kinds;
// they are never confused because each op group (file vs. directory) only
// ever looks its handle up in the matching map.
type handleTable struct {
	next uint64

	filesMu sync.Mutex
	files   map[fuseops.HandleID]*fileHandle

	dirsMu sync.Mutex
	dirs   map[fuseops.HandleID]*dirHandle
}

func newHandleTable() *handleTable {
	return &handleTable{
		files: make(map[fuseops.HandleID]*fileHandle),
		dirs:  make(map[fuseops.HandleID]*dirHandle),
	}
}

func (t *handleTable) nextID() fuseops.HandleID {
	return fuseops.HandleID(atomic.AddUint64(&t.next, 1))
}

func (t *handleTable) putFile(fd int, inode fuseops.InodeID) fuseops.HandleID {
	id := t.nextID()
	t.filesMu.Lock()
	t.files[id] = &fileHandle{fd: fd, inode: inode}
	t.filesMu.Unlock()
	return id
}

func (t *handleTable) getFile(id fuseops.HandleID) (*fileHandle, bool) {
	t.filesMu.Lock()
	defer t.filesMu.Unlock()
	h, ok := t.files[id]
	return h, ok
}

func (t *handleTable) dropFile(id fuseops.HandleID) (*fileHandle, bool) {
	t.filesMu.Lock()
	defer t.filesMu.Unlock()
	h, ok := t.files[id]
	if ok {
		delete(t.files, id)
	}
	return h, ok
}

func (t *handleTable) putDir(fd int) fuseops.HandleID {
	id := t.nextID()
	t.dirsMu.Lock()
	t.dirs[id] = &dirHandle{fd: fd}
	t.dirsMu.Unlock()
	return id
}

func (t *handleTable) getDir(id fuseops.HandleID) (*dirHandle, bool) {
	t.dirsMu.Lock()
	defer t.dirsMu.Unlock()
	h, ok := t.dirs[id]
	return h, ok
}

func (t *handleTable) dropDir(id fuseops.HandleID) (*dirHandle, bool) {
	t.dirsMu.Lock()
	defer t.dirsMu.Unlock()
	h, ok := t.dirs[id]
	if ok {
		delete(t.dirs, id)
	}
	return h, ok
}
