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

package fuseutil

import (
	"github.com/interposefs/interposefs/fuseops"
)

// NotImplementedFileSystem responds to every op with ENOSYS, except
// ForgetInode and ForgetMulti, which respond with nil. Embed this in
// a layer's struct to inherit default pass-through-less implementations
// for the methods it doesn't override, so the struct keeps implementing
// FileSystem as the interface grows.
type NotImplementedFileSystem struct{}

var _ FileSystem = &NotImplementedFileSystem{}

func (fs *NotImplementedFileSystem) Init(op *fuseops.InitOp)         { op.Respond(fuseops.ENOSYS) }
func (fs *NotImplementedFileSystem) Destroy(op *fuseops.DestroyOp)   { op.Respond(fuseops.ENOSYS) }
func (fs *NotImplementedFileSystem) StatFS(op *fuseops.StatFSOp)     { op.Respond(fuseops.ENOSYS) }

func (fs *NotImplementedFileSystem) LookUpInode(op *fuseops.LookUpInodeOp) {
	op.Respond(fuseops.ENOSYS)
}
func (fs *NotImplementedFileSystem) GetInodeAttributes(op *fuseops.GetInodeAttributesOp) {
	op.Respond(fuseops.ENOSYS)
}
func (fs *NotImplementedFileSystem) SetInodeAttributes(op *fuseops.SetInodeAttributesOp) {
	op.Respond(fuseops.ENOSYS)
}
func (fs *NotImplementedFileSystem) ForgetInode(op *fuseops.ForgetInodeOp) { op.Respond(nil) }
func (fs *NotImplementedFileSystem) ForgetMulti(op *fuseops.ForgetMultiOp) { op.Respond(nil) }
func (fs *NotImplementedFileSystem) Access(op *fuseops.AccessOp)           { op.Respond(fuseops.ENOSYS) }

func (fs *NotImplementedFileSystem) MkDir(op *fuseops.MkDirOp)     { op.Respond(fuseops.ENOSYS) }
func (fs *NotImplementedFileSystem) MkNode(op *fuseops.MkNodeOp)   { op.Respond(fuseops.ENOSYS) }
func (fs *NotImplementedFileSystem) CreateFile(op *fuseops.CreateFileOp) {
	op.Respond(fuseops.ENOSYS)
}
func (fs *NotImplementedFileSystem) CreateSymlink(op *fuseops.CreateSymlinkOp) {
	op.Respond(fuseops.ENOSYS)
}
func (fs *NotImplementedFileSystem) CreateLink(op *fuseops.CreateLinkOp) {
	op.Respond(fuseops.ENOSYS)
}
func (fs *NotImplementedFileSystem) ReadSymlink(op *fuseops.ReadSymlinkOp) {
	op.Respond(fuseops.ENOSYS)
}
func (fs *NotImplementedFileSystem) Rename(op *fuseops.RenameOp) { op.Respond(fuseops.ENOSYS) }
func (fs *NotImplementedFileSystem) RmDir(op *fuseops.RmDirOp)   { op.Respond(fuseops.ENOSYS) }
func (fs *NotImplementedFileSystem) Unlink(op *fuseops.UnlinkOp) { op.Respond(fuseops.ENOSYS) }

func (fs *NotImplementedFileSystem) GetXattr(op *fuseops.GetXattrOp) { op.Respond(fuseops.ENOSYS) }
func (fs *NotImplementedFileSystem) ListXattr(op *fuseops.ListXattrOp) {
	op.Respond(fuseops.ENOSYS)
}
func (fs *NotImplementedFileSystem) SetXattr(op *fuseops.SetXattrOp) { op.Respond(fuseops.ENOSYS) }
func (fs *NotImplementedFileSystem) RemoveXattr(op *fuseops.RemoveXattrOp) {
	op.Respond(fuseops.ENOSYS)
}

func (fs *NotImplementedFileSystem) OpenDir(op *fuseops.OpenDirOp) { op.Respond(fuseops.ENOSYS) }
func (fs *NotImplementedFileSystem) ReadDir(op *fuseops.ReadDirOp) { op.Respond(fuseops.ENOSYS) }
func (fs *NotImplementedFileSystem) ReadDirPlus(op *fuseops.ReadDirPlusOp) {
	op.Respond(fuseops.ENOSYS)
}
func (fs *NotImplementedFileSystem) ReleaseDirHandle(op *fuseops.ReleaseDirHandleOp) {
	op.Respond(fuseops.ENOSYS)
}
func (fs *NotImplementedFileSystem) FsyncDir(op *fuseops.FsyncDirOp) { op.Respond(fuseops.ENOSYS) }

func (fs *NotImplementedFileSystem) OpenFile(op *fuseops.OpenFileOp) { op.Respond(fuseops.ENOSYS) }
func (fs *NotImplementedFileSystem) ReadFile(op *fuseops.ReadFileOp) { op.Respond(fuseops.ENOSYS) }
func (fs *NotImplementedFileSystem) WriteFile(op *fuseops.WriteFileOp) {
	op.Respond(fuseops.ENOSYS)
}
func (fs *NotImplementedFileSystem) SyncFile(op *fuseops.SyncFileOp)   { op.Respond(fuseops.ENOSYS) }
func (fs *NotImplementedFileSystem) FlushFile(op *fuseops.FlushFileOp) { op.Respond(fuseops.ENOSYS) }
func (fs *NotImplementedFileSystem) ReleaseFileHandle(op *fuseops.ReleaseFileHandleOp) {
	op.Respond(fuseops.ENOSYS)
}
func (fs *NotImplementedFileSystem) Fallocate(op *fuseops.FallocateOp) {
	op.Respond(fuseops.ENOSYS)
}
func (fs *NotImplementedFileSystem) CopyFileRange(op *fuseops.CopyFileRangeOp) {
	op.Respond(fuseops.ENOSYS)
}
func (fs *NotImplementedFileSystem) Lseek(op *fuseops.LseekOp) { op.Respond(fuseops.ENOSYS) }

func (fs *NotImplementedFileSystem) Flock(op *fuseops.FlockOp) { op.Respond(fuseops.ENOSYS) }
func (fs *NotImplementedFileSystem) GetLk(op *fuseops.GetLkOp) { op.Respond(fuseops.ENOSYS) }
func (fs *NotImplementedFileSystem) SetLk(op *fuseops.SetLkOp) { op.Respond(fuseops.ENOSYS) }
