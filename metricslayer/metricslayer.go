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

// Package metricslayer wraps a fuseutil.FileSystem with a layer that
// records byte throughput and per-operation latency through the telemetry
// collaborator contract (spec §6).
package metricslayer

import (
	"context"
	"time"

	"github.com/interposefs/interposefs/fuseops"
	"github.com/interposefs/interposefs/fuseutil"
	"github.com/interposefs/interposefs/internal/layerutil"
	"github.com/interposefs/interposefs/telemetry"
)

// FS instruments the same operation set tracinglayer does (spec §4.4's
// fault-menu operations): the ones whose duration and byte counts are
// worth a metric. Every other operation forwards unmodified.
type FS struct {
	fuseutil.NotImplementedFileSystem

	next fuseutil.FileSystem

	readBytes  telemetry.Counter
	writeBytes telemetry.Counter
	latency    telemetry.Histogram
}

var _ fuseutil.FileSystem = (*FS)(nil)

// New returns a metrics layer forwarding to next, with its instruments
// created from meter. An error from the meter (e.g. a duplicate
// instrument name) is returned rather than silently producing a no-op
// layer.
func New(next fuseutil.FileSystem, meter telemetry.Meter) (*FS, error) {
	readBytes, err := meter.Counter("interposefs.read_bytes")
	if err != nil {
		return nil, err
	}
	writeBytes, err := meter.Counter("interposefs.write_bytes")
	if err != nil {
		return nil, err
	}
	latency, err := meter.Histogram("interposefs.op_latency_seconds")
	if err != nil {
		return nil, err
	}

	return &FS{
		next:       next,
		readBytes:  readBytes,
		writeBytes: writeBytes,
		latency:    latency,
	}, nil
}

func (fs *FS) observe(start time.Time) {
	fs.latency.Record(context.Background(), time.Since(start).Seconds())
}

func (fs *FS) Init(op *fuseops.InitOp)       { fs.next.Init(op) }
func (fs *FS) Destroy(op *fuseops.DestroyOp) { fs.next.Destroy(op) }
func (fs *FS) StatFS(op *fuseops.StatFSOp)   { fs.next.StatFS(op) }

func (fs *FS) LookUpInode(op *fuseops.LookUpInodeOp) { fs.next.LookUpInode(op) }

func (fs *FS) GetInodeAttributes(op *fuseops.GetInodeAttributesOp) {
	defer fs.observe(time.Now())
	fs.next.GetInodeAttributes(op)
}

func (fs *FS) SetInodeAttributes(op *fuseops.SetInodeAttributesOp) {
	defer fs.observe(time.Now())
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
	defer fs.observe(time.Now())
	fs.next.OpenDir(op)
}

func (fs *FS) ReadDir(op *fuseops.ReadDirOp) {
	defer fs.observe(time.Now())
	fs.next.ReadDir(op)
}

func (fs *FS) ReadDirPlus(op *fuseops.ReadDirPlusOp) {
	defer fs.observe(time.Now())
	fs.next.ReadDirPlus(op)
}

func (fs *FS) ReleaseDirHandle(op *fuseops.ReleaseDirHandleOp) { fs.next.ReleaseDirHandle(op) }
func (fs *FS) FsyncDir(op *fuseops.FsyncDirOp)                 { fs.next.FsyncDir(op) }

func (fs *FS) OpenFile(op *fuseops.OpenFileOp) {
	defer fs.observe(time.Now())
	fs.next.OpenFile(op)
}

// ReadFile records the operation's latency and, once the passthrough
// layer has filled in op.Data, the number of bytes actually read — not
// the number requested, since a truncated read (spec §4.4) reads fewer.
func (fs *FS) ReadFile(op *fuseops.ReadFileOp) {
	defer fs.observe(time.Now())
	fs.next.ReadFile(op)
	if n := layerutil.DataLen(op.Data); n > 0 {
		fs.readBytes.Add(context.Background(), int64(n))
	}
}

func (fs *FS) WriteFile(op *fuseops.WriteFileOp) {
	defer fs.observe(time.Now())
	before := len(op.Data)
	fs.next.WriteFile(op)
	if before > 0 {
		fs.writeBytes.Add(context.Background(), int64(before))
	}
}

func (fs *FS) SyncFile(op *fuseops.SyncFileOp) {
	defer fs.observe(time.Now())
	fs.next.SyncFile(op)
}

func (fs *FS) FlushFile(op *fuseops.FlushFileOp) {
	defer fs.observe(time.Now())
	fs.next.FlushFile(op)
}

func (fs *FS) ReleaseFileHandle(op *fuseops.ReleaseFileHandleOp) { fs.next.ReleaseFileHandle(op) }
func (fs *FS) Fallocate(op *fuseops.FallocateOp)                 { fs.next.Fallocate(op) }
func (fs *FS) CopyFileRange(op *fuseops.CopyFileRangeOp)         { fs.next.CopyFileRange(op) }
func (fs *FS) Lseek(op *fuseops.LseekOp)                         { fs.next.Lseek(op) }

func (fs *FS) Flock(op *fuseops.FlockOp) { fs.next.Flock(op) }
func (fs *FS) GetLk(op *fuseops.GetLkOp) { fs.next.GetLk(op) }
func (fs *FS) SetLk(op *fuseops.SetLkOp) { fs.next.SetLk(op) }
