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

package faultinjection

import (
	"fmt"

	"github.com/interposefs/interposefs/fuseops"
)

// Every method below that is not listed in spec §4.4's fault-menu table
// forwards unmodified: NotImplementedFileSystem is never actually reached
// for those, since FS only embeds it to satisfy fuseutil.FileSystem for
// methods this file does define trivial pass-throughs for.

func (fs *FS) Init(op *fuseops.InitOp)       { fs.next.Init(op) }
func (fs *FS) Destroy(op *fuseops.DestroyOp) { fs.next.Destroy(op) }
func (fs *FS) StatFS(op *fuseops.StatFSOp)   { fs.next.StatFS(op) }

func (fs *FS) LookUpInode(op *fuseops.LookUpInodeOp) { fs.next.LookUpInode(op) }

func (fs *FS) GetInodeAttributes(op *fuseops.GetInodeAttributesOp) {
	if fs.abruptExit("getattr", op.Inode, fs.cfg.FileFailRate, fuseops.EIO) {
		op.Respond(fuseops.EIO)
		return
	}
	fs.delay("getattr", op.Inode, fs.cfg.FileFailRate)
	fs.next.GetInodeAttributes(op)
}

func (fs *FS) SetInodeAttributes(op *fuseops.SetInodeAttributesOp) {
	if fs.abruptExit("setattr", op.Inode, fs.cfg.FileFailRate, fuseops.EIO) {
		op.Respond(fuseops.EIO)
		return
	}
	fs.delay("setattr", op.Inode, fs.cfg.FileFailRate)
	fs.next.SetInodeAttributes(op)
}

func (fs *FS) ForgetInode(op *fuseops.ForgetInodeOp) { fs.next.ForgetInode(op) }
func (fs *FS) ForgetMulti(op *fuseops.ForgetMultiOp) { fs.next.ForgetMulti(op) }
func (fs *FS) Access(op *fuseops.AccessOp)           { fs.next.Access(op) }

func (fs *FS) MkDir(op *fuseops.MkDirOp)                 { fs.next.MkDir(op) }
func (fs *FS) MkNode(op *fuseops.MkNodeOp)               { fs.next.MkNode(op) }
func (fs *FS) CreateFile(op *fuseops.CreateFileOp)       { fs.next.CreateFile(op) }
func (fs *FS) CreateSymlink(op *fuseops.CreateSymlinkOp) { fs.next.CreateSymlink(op) }
func (fs *FS) CreateLink(op *fuseops.CreateLinkOp)       { fs.next.CreateLink(op) }
func (fs *FS) ReadSymlink(op *fuseops.ReadSymlinkOp)     { fs.next.ReadSymlink(op) }
func (fs *FS) Rename(op *fuseops.RenameOp)               { fs.next.Rename(op) }
func (fs *FS) RmDir(op *fuseops.RmDirOp)                 { fs.next.RmDir(op) }
func (fs *FS) Unlink(op *fuseops.UnlinkOp)               { fs.next.Unlink(op) }

func (fs *FS) GetXattr(op *fuseops.GetXattrOp)       { fs.next.GetXattr(op) }
func (fs *FS) ListXattr(op *fuseops.ListXattrOp)     { fs.next.ListXattr(op) }
func (fs *FS) SetXattr(op *fuseops.SetXattrOp)       { fs.next.SetXattr(op) }
func (fs *FS) RemoveXattr(op *fuseops.RemoveXattrOp) { fs.next.RemoveXattr(op) }

func (fs *FS) OpenDir(op *fuseops.OpenDirOp) {
	if fs.abruptExit("opendir", op.Inode, fs.cfg.DirFailRate, fuseops.ENOENT) {
		op.Respond(fuseops.ENOENT)
		return
	}
	fs.delay("opendir", op.Inode, fs.cfg.DirFailRate)
	fs.next.OpenDir(op)
}

func (fs *FS) ReadDir(op *fuseops.ReadDirOp) {
	if fs.abruptExit("readdir", op.Inode, fs.cfg.DirFailRate, fuseops.EIO) {
		op.Respond(fuseops.EIO)
		return
	}
	fs.delay("readdir", op.Inode, fs.cfg.DirFailRate)
	fs.next.ReadDir(op)
}

func (fs *FS) ReadDirPlus(op *fuseops.ReadDirPlusOp) {
	if fs.abruptExit("readdirplus", op.Inode, fs.cfg.DirFailRate, fuseops.EIO) {
		op.Respond(fuseops.EIO)
		return
	}
	fs.delay("readdirplus", op.Inode, fs.cfg.DirFailRate)
	fs.next.ReadDirPlus(op)
}

func (fs *FS) ReleaseDirHandle(op *fuseops.ReleaseDirHandleOp) { fs.next.ReleaseDirHandle(op) }

func (fs *FS) FsyncDir(op *fuseops.FsyncDirOp) { fs.next.FsyncDir(op) }

func (fs *FS) OpenFile(op *fuseops.OpenFileOp) {
	if fs.abruptExit("open", op.Inode, fs.cfg.FileFailRate, fuseops.ENOENT) {
		op.Respond(fuseops.ENOENT)
		return
	}
	fs.delay("open", op.Inode, fs.cfg.FileFailRate)
	fs.next.OpenFile(op)
}

// ReadFile implements the read fault menu. Truncation is applied by
// shrinking the request (a shorter Size, a forward-shifted Offset) before
// forwarding, rather than by editing the reply after the fact: by the time
// next.ReadFile returns, it has already driven op.Respond and the wire
// reply has been encoded, so there is no later point at which this layer
// could still rewrite op.Data.
func (fs *FS) ReadFile(op *fuseops.ReadFileOp) {
	if fs.abruptExit("read", op.Inode, fs.cfg.FileFailRate, fuseops.EIO) {
		op.Respond(fuseops.EIO)
		return
	}
	fs.delay("read", op.Inode, fs.cfg.FileFailRate)

	if fs.hit(fs.cfg.FileFailRate) {
		shift := fs.intn(maxReadOffsetShift)
		size := fs.truncatedReadSize()
		if size < op.Size {
			op.Size = size
		}
		op.Offset += int64(shift)
		fs.record("read", "truncation", op.Inode, fmt.Sprintf("size=%d offset_shift=%d", op.Size, shift))
	}

	fs.next.ReadFile(op)
}

// WriteFile implements the write fault menu. As with ReadFile, truncation
// halves the request's Data before forwarding; the forwarded byte count
// reported back to the kernel is simply len(op.Data) once the passthrough
// layer writes it, so there is no separate result value to read back (and
// so no opportunity for the original "res read before assignment" defect
// to recur here).
func (fs *FS) WriteFile(op *fuseops.WriteFileOp) {
	if fs.abruptExit("write_buf", op.Inode, fs.cfg.FileFailRate, fuseops.EIO) {
		op.Respond(fuseops.EIO)
		return
	}
	fs.delay("write_buf", op.Inode, fs.cfg.FileFailRate)

	if fs.hit(fs.cfg.FileFailRate) {
		half := len(op.Data) / 2
		op.Data = op.Data[:half]
		fs.record("write_buf", "truncation", op.Inode, fmt.Sprintf("bytes=%d", half))
	}

	fs.next.WriteFile(op)
}

func (fs *FS) SyncFile(op *fuseops.SyncFileOp) {
	if fs.abruptExit("fsync", op.Inode, fs.cfg.FileFailRate, fuseops.EIO) {
		op.Respond(fuseops.EIO)
		return
	}
	fs.delay("fsync", op.Inode, fs.cfg.FileFailRate)
	fs.next.SyncFile(op)
}

func (fs *FS) FlushFile(op *fuseops.FlushFileOp) {
	if fs.abruptExit("flush", op.Inode, fs.cfg.FileFailRate, fuseops.ENOSPC) {
		op.Respond(fuseops.ENOSPC)
		return
	}
	fs.delay("flush", op.Inode, fs.cfg.FileFailRate)
	fs.next.FlushFile(op)
}

func (fs *FS) ReleaseFileHandle(op *fuseops.ReleaseFileHandleOp) { fs.next.ReleaseFileHandle(op) }
func (fs *FS) Fallocate(op *fuseops.FallocateOp)                 { fs.next.Fallocate(op) }
func (fs *FS) CopyFileRange(op *fuseops.CopyFileRangeOp)         { fs.next.CopyFileRange(op) }
func (fs *FS) Lseek(op *fuseops.LseekOp)                         { fs.next.Lseek(op) }

func (fs *FS) Flock(op *fuseops.FlockOp)   { fs.next.Flock(op) }
func (fs *FS) GetLk(op *fuseops.GetLkOp)   { fs.next.GetLk(op) }
func (fs *FS) SetLk(op *fuseops.SetLkOp)   { fs.next.SetLk(op) }
