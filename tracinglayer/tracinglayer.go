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

// Package tracinglayer wraps a fuseutil.FileSystem with a layer that opens
// a span around each fault-menu request it forwards (other requests pass
// through without a span), so a tracer above or below any
// other layer can observe call duration and, when stacked above
// faultinjection, the fault it simulated (spec §8 scenario 6).
package tracinglayer

import (
	"context"
	"fmt"
	"sync"

	"github.com/google/uuid"

	"github.com/interposefs/interposefs/faultinjection"
	"github.com/interposefs/interposefs/fuseops"
	"github.com/interposefs/interposefs/fuseutil"
	"github.com/interposefs/interposefs/telemetry"
)

// FS spans the operations the fault-injection layer's menu also covers
// (spec §4.4's table): those are the calls whose duration and simulated
// faults are worth observing. Every other operation forwards unmodified,
// keeping the layer's overhead proportional to what it can actually
// report on.
type FS struct {
	fuseutil.NotImplementedFileSystem

	next   fuseutil.FileSystem
	tracer telemetry.Tracer

	mu     sync.Mutex
	active map[spanKey]telemetry.Span
}

var _ fuseutil.FileSystem = (*FS)(nil)
var _ faultinjection.EventSink = (*FS)(nil)

type spanKey struct {
	op    string
	inode fuseops.InodeID
}

// New returns a tracing layer forwarding to next and reporting spans to
// tracer.
func New(next fuseutil.FileSystem, tracer telemetry.Tracer) *FS {
	return &FS{
		next:   next,
		tracer: tracer,
		active: make(map[spanKey]telemetry.Span),
	}
}

func (fs *FS) startSpan(name string, inode fuseops.InodeID) telemetry.Span {
	// fuseops.Op exposes a Context() but no way to thread a derived one
	// back in (its setter is private to the connection layer), so a fresh
	// background context is used here rather than op.Context() itself;
	// cross-call cancellation propagation is not part of this layer's job.
	_, span := fs.tracer.StartSpan(context.Background(), name)
	span.SetAttribute("inode", uint64(inode))
	span.SetAttribute("request_id", uuid.NewString())

	key := spanKey{op: name, inode: inode}
	fs.mu.Lock()
	fs.active[key] = span
	fs.mu.Unlock()

	return span
}

func (fs *FS) endSpan(name string, inode fuseops.InodeID, span telemetry.Span) {
	key := spanKey{op: name, inode: inode}
	fs.mu.Lock()
	delete(fs.active, key)
	fs.mu.Unlock()

	span.End()
}

// Emit implements faultinjection.EventSink: when a faultinjection layer
// somewhere below this one is wired to report to it (via WithEventSink),
// each sampled fault is attached as an event on the span this layer opened
// for the same operation/inode pair, best-effort — a second concurrent
// request against the same inode could in principle steal the
// attribution, an accepted limitation of correlating purely on
// operation+inode without a request-scoped context to carry a span
// through (spec §6 leaves the telemetry collaborator's internals outside
// the core's concern).
func (fs *FS) Emit(ev faultinjection.Event) {
	key := spanKey{op: ev.Op, inode: ev.Inode}

	fs.mu.Lock()
	span, ok := fs.active[key]
	fs.mu.Unlock()
	if !ok {
		return
	}

	span.AddEvent(eventName(ev), map[string]interface{}{
		"kind":   ev.Kind,
		"detail": ev.Detail,
	})
}

func eventName(ev faultinjection.Event) string {
	switch {
	case ev.Kind == "truncation" && ev.Op == "read":
		return "truncated read simulated"
	case ev.Kind == "truncation" && ev.Op == "write_buf":
		return "truncated write simulated"
	case ev.Kind == "error":
		return fmt.Sprintf("%s error injected", ev.Op)
	case ev.Kind == "delay":
		return fmt.Sprintf("%s delay injected", ev.Op)
	default:
		return fmt.Sprintf("%s %s", ev.Op, ev.Kind)
	}
}

func (fs *FS) Init(op *fuseops.InitOp)       { fs.next.Init(op) }
func (fs *FS) Destroy(op *fuseops.DestroyOp) { fs.next.Destroy(op) }
func (fs *FS) StatFS(op *fuseops.StatFSOp)   { fs.next.StatFS(op) }

func (fs *FS) LookUpInode(op *fuseops.LookUpInodeOp) { fs.next.LookUpInode(op) }

func (fs *FS) GetInodeAttributes(op *fuseops.GetInodeAttributesOp) {
	span := fs.startSpan("getattr", op.Inode)
	fs.next.GetInodeAttributes(op)
	fs.endSpan("getattr", op.Inode, span)
}

func (fs *FS) SetInodeAttributes(op *fuseops.SetInodeAttributesOp) {
	span := fs.startSpan("setattr", op.Inode)
	fs.next.SetInodeAttributes(op)
	fs.endSpan("setattr", op.Inode, span)
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
	span := fs.startSpan("opendir", op.Inode)
	fs.next.OpenDir(op)
	fs.endSpan("opendir", op.Inode, span)
}

func (fs *FS) ReadDir(op *fuseops.ReadDirOp) {
	span := fs.startSpan("readdir", op.Inode)
	fs.next.ReadDir(op)
	fs.endSpan("readdir", op.Inode, span)
}

func (fs *FS) ReadDirPlus(op *fuseops.ReadDirPlusOp) {
	span := fs.startSpan("readdirplus", op.Inode)
	fs.next.ReadDirPlus(op)
	fs.endSpan("readdirplus", op.Inode, span)
}

func (fs *FS) ReleaseDirHandle(op *fuseops.ReleaseDirHandleOp) { fs.next.ReleaseDirHandle(op) }
func (fs *FS) FsyncDir(op *fuseops.FsyncDirOp)                 { fs.next.FsyncDir(op) }

func (fs *FS) OpenFile(op *fuseops.OpenFileOp) {
	span := fs.startSpan("open", op.Inode)
	fs.next.OpenFile(op)
	fs.endSpan("open", op.Inode, span)
}

func (fs *FS) ReadFile(op *fuseops.ReadFileOp) {
	span := fs.startSpan("read", op.Inode)
	span.SetAttribute("offset", op.Offset)
	span.SetAttribute("size", op.Size)
	fs.next.ReadFile(op)
	fs.endSpan("read", op.Inode, span)
}

func (fs *FS) WriteFile(op *fuseops.WriteFileOp) {
	span := fs.startSpan("write_buf", op.Inode)
	span.SetAttribute("offset", op.Offset)
	span.SetAttribute("size", len(op.Data))
	fs.next.WriteFile(op)
	fs.endSpan("write_buf", op.Inode, span)
}

func (fs *FS) SyncFile(op *fuseops.SyncFileOp) {
	span := fs.startSpan("fsync", op.Inode)
	fs.next.SyncFile(op)
	fs.endSpan("fsync", op.Inode, span)
}

func (fs *FS) FlushFile(op *fuseops.FlushFileOp) {
	span := fs.startSpan("flush", op.Inode)
	fs.next.FlushFile(op)
	fs.endSpan("flush", op.Inode, span)
}

func (fs *FS) ReleaseFileHandle(op *fuseops.ReleaseFileHandleOp) { fs.next.ReleaseFileHandle(op) }
func (fs *FS) Fallocate(op *fuseops.FallocateOp)                 { fs.next.Fallocate(op) }
func (fs *FS) CopyFileRange(op *fuseops.CopyFileRangeOp)         { fs.next.CopyFileRange(op) }
func (fs *FS) Lseek(op *fuseops.LseekOp)                         { fs.next.Lseek(op) }

func (fs *FS) Flock(op *fuseops.FlockOp) { fs.next.Flock(op) }
func (fs *FS) GetLk(op *fuseops.GetLkOp) { fs.next.GetLk(op) }
func (fs *FS) SetLk(op *fuseops.SetLkOp) { fs.next.SetLk(op) }
