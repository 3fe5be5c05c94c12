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

package ratelimit

import (
	"errors"
	"time"

	"github.com/interposefs/interposefs/fuseops"
	"github.com/interposefs/interposefs/fuseutil"
)

// defaultInterval is the replenishment period (spec §4.5's I, default
// 100ms) used when Config.Interval is zero.
const defaultInterval = 100 * time.Millisecond

// Config carries the two buckets' capacity and fill rate (spec §4.5,
// §6's `throttleIO.*` keys).
type Config struct {
	ReadCapacity  int64
	ReadRate      int64
	WriteCapacity int64
	WriteRate     int64

	// Interval is the replenishment period. Zero selects defaultInterval.
	Interval time.Duration
}

// FS is the throttling layer: read and write_buf consume from their
// respective bucket before forwarding; every other operation passes
// through unmodified (spec §4.5's "Wrapping rules").
type FS struct {
	fuseutil.NotImplementedFileSystem

	next fuseutil.FileSystem

	readBucket  *Bucket
	writeBucket *Bucket
}

var _ fuseutil.FileSystem = (*FS)(nil)

// NewThrottleLayer returns a throttling layer forwarding to next, with its
// buckets already running.
func NewThrottleLayer(next fuseutil.FileSystem, cfg Config) (*FS, error) {
	if cfg.ReadCapacity <= 0 || cfg.ReadRate <= 0 {
		return nil, errors.New("ratelimit: read capacity and rate must be > 0")
	}
	if cfg.WriteCapacity <= 0 || cfg.WriteRate <= 0 {
		return nil, errors.New("ratelimit: write capacity and rate must be > 0")
	}
	if cfg.Interval <= 0 {
		cfg.Interval = defaultInterval
	}

	fs := &FS{
		next:        next,
		readBucket:  NewBucket(cfg.ReadCapacity, cfg.ReadRate, cfg.Interval),
		writeBucket: NewBucket(cfg.WriteCapacity, cfg.WriteRate, cfg.Interval),
	}
	fs.readBucket.Start()
	fs.writeBucket.Start()

	return fs, nil
}

// Close stops both buckets' replenishment goroutines. FS.Destroy only
// forwards and does not call it.
func (fs *FS) Close() {
	fs.readBucket.Close()
	fs.writeBucket.Close()
}

func (fs *FS) Init(op *fuseops.InitOp)       { fs.next.Init(op) }
func (fs *FS) Destroy(op *fuseops.DestroyOp) { fs.next.Destroy(op) }
func (fs *FS) StatFS(op *fuseops.StatFSOp)   { fs.next.StatFS(op) }

func (fs *FS) LookUpInode(op *fuseops.LookUpInodeOp) { fs.next.LookUpInode(op) }
func (fs *FS) GetInodeAttributes(op *fuseops.GetInodeAttributesOp) {
	fs.next.GetInodeAttributes(op)
}
func (fs *FS) SetInodeAttributes(op *fuseops.SetInodeAttributesOp) {
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

func (fs *FS) OpenDir(op *fuseops.OpenDirOp)                   { fs.next.OpenDir(op) }
func (fs *FS) ReadDir(op *fuseops.ReadDirOp)                   { fs.next.ReadDir(op) }
func (fs *FS) ReadDirPlus(op *fuseops.ReadDirPlusOp)           { fs.next.ReadDirPlus(op) }
func (fs *FS) ReleaseDirHandle(op *fuseops.ReleaseDirHandleOp) { fs.next.ReleaseDirHandle(op) }
func (fs *FS) FsyncDir(op *fuseops.FsyncDirOp)                 { fs.next.FsyncDir(op) }

func (fs *FS) OpenFile(op *fuseops.OpenFileOp) { fs.next.OpenFile(op) }

// ReadFile consumes the requested size from the read bucket before
// forwarding; the reply reports whatever the passthrough layer actually
// read, unchanged (spec §4.5).
func (fs *FS) ReadFile(op *fuseops.ReadFileOp) {
	if op.Size > 0 {
		fs.readBucket.Consume(int64(op.Size))
	}
	fs.next.ReadFile(op)
}

// WriteFile consumes the total requested byte count from the write bucket
// before forwarding.
func (fs *FS) WriteFile(op *fuseops.WriteFileOp) {
	if n := len(op.Data); n > 0 {
		fs.writeBucket.Consume(int64(n))
	}
	fs.next.WriteFile(op)
}

func (fs *FS) SyncFile(op *fuseops.SyncFileOp)   { fs.next.SyncFile(op) }
func (fs *FS) FlushFile(op *fuseops.FlushFileOp) { fs.next.FlushFile(op) }

func (fs *FS) ReleaseFileHandle(op *fuseops.ReleaseFileHandleOp) { fs.next.ReleaseFileHandle(op) }
func (fs *FS) Fallocate(op *fuseops.FallocateOp)                 { fs.next.Fallocate(op) }
func (fs *FS) CopyFileRange(op *fuseops.CopyFileRangeOp)         { fs.next.CopyFileRange(op) }
func (fs *FS) Lseek(op *fuseops.LseekOp)                         { fs.next.Lseek(op) }

func (fs *FS) Flock(op *fuseops.FlockOp) { fs.next.Flock(op) }
func (fs *FS) GetLk(op *fuseops.GetLkOp) { fs.next.GetLk(op) }
func (fs *FS) SetLk(op *fuseops.SetLkOp) { fs.next.SetLk(op) }
