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
	"flag"
	"io"
	"math/rand"
	"time"

	"github.com/interposefs/interposefs/fuseops"
)

var fRandomDelays = flag.Bool(
	"fuseutil.random_delays", false,
	"If set, randomly delay each op received, to help expose concurrency issues.")

// FileSystem is the operation table described in spec §3/§4.3: one method
// per low-level request kind. A FileSystem is the unit of composition for
// interception layers — each layer is itself a FileSystem that wraps
// another ("next") FileSystem and delegates to it.
//
// Each method is responsible for calling Respond exactly once on the
// supplied op (directly, or by forwarding to the next layer's
// corresponding method, which counts as the reply).
//
// See NotImplementedFileSystem for a convenient way to embed default
// implementations for methods a given layer doesn't care about.
type FileSystem interface {
	Init(*fuseops.InitOp)
	Destroy(*fuseops.DestroyOp)
	StatFS(*fuseops.StatFSOp)

	LookUpInode(*fuseops.LookUpInodeOp)
	GetInodeAttributes(*fuseops.GetInodeAttributesOp)
	SetInodeAttributes(*fuseops.SetInodeAttributesOp)
	ForgetInode(*fuseops.ForgetInodeOp)
	ForgetMulti(*fuseops.ForgetMultiOp)
	Access(*fuseops.AccessOp)

	MkDir(*fuseops.MkDirOp)
	MkNode(*fuseops.MkNodeOp)
	CreateFile(*fuseops.CreateFileOp)
	CreateSymlink(*fuseops.CreateSymlinkOp)
	CreateLink(*fuseops.CreateLinkOp)
	ReadSymlink(*fuseops.ReadSymlinkOp)
	Rename(*fuseops.RenameOp)
	RmDir(*fuseops.RmDirOp)
	Unlink(*fuseops.UnlinkOp)

	GetXattr(*fuseops.GetXattrOp)
	ListXattr(*fuseops.ListXattrOp)
	SetXattr(*fuseops.SetXattrOp)
	RemoveXattr(*fuseops.RemoveXattrOp)

	OpenDir(*fuseops.OpenDirOp)
	ReadDir(*fuseops.ReadDirOp)
	ReadDirPlus(*fuseops.ReadDirPlusOp)
	ReleaseDirHandle(*fuseops.ReleaseDirHandleOp)
	FsyncDir(*fuseops.FsyncDirOp)

	OpenFile(*fuseops.OpenFileOp)
	ReadFile(*fuseops.ReadFileOp)
	WriteFile(*fuseops.WriteFileOp)
	SyncFile(*fuseops.SyncFileOp)
	FlushFile(*fuseops.FlushFileOp)
	ReleaseFileHandle(*fuseops.ReleaseFileHandleOp)
	Fallocate(*fuseops.FallocateOp)
	CopyFileRange(*fuseops.CopyFileRangeOp)
	Lseek(*fuseops.LseekOp)

	Flock(*fuseops.FlockOp)
	GetLk(*fuseops.GetLkOp)
	SetLk(*fuseops.SetLkOp)
}

// RespondToOp is a convenience for responding to op with the current value
// of *err, typically via defer.
func RespondToOp(op fuseops.Op, err *error) {
	op.Respond(*err)
}

// Server adapts a FileSystem (the top of a layer stack) to the raw op
// stream read off a kernel connection.
type Server interface {
	ServeOps(c OpSource)
}

// OpSource is implemented by fuse.Connection; declared here to avoid an
// import cycle between fuseutil and the root fuse package.
type OpSource interface {
	ReadOp() (fuseops.Op, error)
}

// NewFileSystemServer creates a Server that dispatches ops read from a
// connection to the corresponding FileSystem method, each on its own
// goroutine. It is safe to process ops concurrently: the kernel
// serializes operations that the user expects to happen in order.
func NewFileSystemServer(fs FileSystem) Server {
	return fileSystemServer{fs}
}

type fileSystemServer struct {
	fs FileSystem
}

func (s fileSystemServer) ServeOps(c OpSource) {
	for {
		op, err := c.ReadOp()
		if err == io.EOF {
			break
		}
		if err != nil {
			panic(err)
		}

		go s.handleOp(op)
	}
}

func (s fileSystemServer) handleOp(op fuseops.Op) {
	if *fRandomDelays {
		const delayLimit = 100 * time.Microsecond
		time.Sleep(time.Duration(rand.Int63n(int64(delayLimit))))
	}

	switch typed := op.(type) {
	default:
		op.Respond(fuseops.ENOSYS)

	case *fuseops.InitOp:
		s.fs.Init(typed)
	case *fuseops.DestroyOp:
		s.fs.Destroy(typed)
	case *fuseops.StatFSOp:
		s.fs.StatFS(typed)

	case *fuseops.LookUpInodeOp:
		s.fs.LookUpInode(typed)
	case *fuseops.GetInodeAttributesOp:
		s.fs.GetInodeAttributes(typed)
	case *fuseops.SetInodeAttributesOp:
		s.fs.SetInodeAttributes(typed)
	case *fuseops.ForgetInodeOp:
		s.fs.ForgetInode(typed)
	case *fuseops.ForgetMultiOp:
		s.fs.ForgetMulti(typed)
	case *fuseops.AccessOp:
		s.fs.Access(typed)

	case *fuseops.MkDirOp:
		s.fs.MkDir(typed)
	case *fuseops.MkNodeOp:
		s.fs.MkNode(typed)
	case *fuseops.CreateFileOp:
		s.fs.CreateFile(typed)
	case *fuseops.CreateSymlinkOp:
		s.fs.CreateSymlink(typed)
	case *fuseops.CreateLinkOp:
		s.fs.CreateLink(typed)
	case *fuseops.ReadSymlinkOp:
		s.fs.ReadSymlink(typed)
	case *fuseops.RenameOp:
		s.fs.Rename(typed)
	case *fuseops.RmDirOp:
		s.fs.RmDir(typed)
	case *fuseops.UnlinkOp:
		s.fs.Unlink(typed)

	case *fuseops.GetXattrOp:
		s.fs.GetXattr(typed)
	case *fuseops.ListXattrOp:
		s.fs.ListXattr(typed)
	case *fuseops.SetXattrOp:
		s.fs.SetXattr(typed)
	case *fuseops.RemoveXattrOp:
		s.fs.RemoveXattr(typed)

	case *fuseops.OpenDirOp:
		s.fs.OpenDir(typed)
	case *fuseops.ReadDirOp:
		s.fs.ReadDir(typed)
	case *fuseops.ReadDirPlusOp:
		s.fs.ReadDirPlus(typed)
	case *fuseops.ReleaseDirHandleOp:
		s.fs.ReleaseDirHandle(typed)
	case *fuseops.FsyncDirOp:
		s.fs.FsyncDir(typed)

	case *fuseops.OpenFileOp:
		s.fs.OpenFile(typed)
	case *fuseops.ReadFileOp:
		s.fs.ReadFile(typed)
	case *fuseops.WriteFileOp:
		s.fs.WriteFile(typed)
	case *fuseops.SyncFileOp:
		s.fs.SyncFile(typed)
	case *fuseops.FlushFileOp:
		s.fs.FlushFile(typed)
	case *fuseops.ReleaseFileHandleOp:
		s.fs.ReleaseFileHandle(typed)
	case *fuseops.FallocateOp:
		s.fs.Fallocate(typed)
	case *fuseops.CopyFileRangeOp:
		s.fs.CopyFileRange(typed)
	case *fuseops.LseekOp:
		s.fs.Lseek(typed)

	case *fuseops.FlockOp:
		s.fs.Flock(typed)
	case *fuseops.GetLkOp:
		s.fs.GetLk(typed)
	case *fuseops.SetLkOp:
		s.fs.SetLk(typed)
	}
}
