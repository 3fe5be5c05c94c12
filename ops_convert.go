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

package fuse

import (
	"bytes"
	"context"
	"fmt"
	"syscall"
	"time"

	"github.com/interposefs/interposefs/fuseops"
	"github.com/interposefs/interposefs/internal/fusewire"
)

func nsecToTime(sec uint64, nsec uint32) time.Time {
	return time.Unix(int64(sec), int64(nsec))
}

// cString extracts a single NUL-terminated string starting at the front
// of b, as used for names following a fixed-size request struct.
func cString(b []byte) string {
	if i := bytes.IndexByte(b, 0); i >= 0 {
		return string(b[:i])
	}
	return string(b)
}

// twoCStrings extracts two NUL-terminated strings back to back, as used by
// rename(2)'s old/new name pair.
func twoCStrings(b []byte) (string, string) {
	i := bytes.IndexByte(b, 0)
	if i < 0 {
		return string(b), ""
	}
	first := string(b[:i])
	rest := b[i+1:]
	return first, cString(rest)
}

// finish installs the shared bookkeeping (correlation header, context,
// short description) on an op built inline in convert's switch below and
// returns it as a fuseops.Op.
func finish(op fuseops.Op, header fuseops.OpHeader, ctx context.Context) fuseops.Op {
	fuseops.Init(op, header, ctx)
	return op
}

// convert decodes the body of a kernel request (everything after InHeader)
// into the fuseops.Op matching hdr.Opcode.
func (c *Connection) convert(
	hdr fusewire.InHeader,
	body []byte,
	header fuseops.OpHeader,
	ctx context.Context,
) (fuseops.Op, error) {
	switch hdr.Opcode {
	case fusewire.OpLookup:
		op := &fuseops.LookUpInodeOp{Parent: fuseops.InodeID(hdr.Nodeid), Name: cString(body)}
		return finish(op, header, ctx), nil

	case fusewire.OpForget:
		var in fusewire.ForgetIn
		fusewire.Decode(body, &in)
		op := &fuseops.ForgetInodeOp{Inode: fuseops.InodeID(hdr.Nodeid), N: in.Nlookup}
		return finish(op, header, ctx), nil

	case fusewire.OpForgetMulti:
		var in fusewire.ForgetMultiIn
		fusewire.Decode(body[:8], &in)
		entries := make([]fuseops.ForgetInodeEntry, 0, in.Count)
		rest := body[8:]
		const oneSize = 16
		for i := uint32(0); i < in.Count && len(rest) >= oneSize; i++ {
			var one fusewire.ForgetOne
			fusewire.Decode(rest[:oneSize], &one)
			entries = append(entries, fuseops.ForgetInodeEntry{Inode: fuseops.InodeID(one.Nodeid), N: one.Nlookup})
			rest = rest[oneSize:]
		}
		op := &fuseops.ForgetMultiOp{Entries: entries}
		return finish(op, header, ctx), nil

	case fusewire.OpGetattr:
		op := &fuseops.GetInodeAttributesOp{Inode: fuseops.InodeID(hdr.Nodeid)}
		return finish(op, header, ctx), nil

	case fusewire.OpSetattr:
		var in fusewire.SetattrIn
		fusewire.Decode(body, &in)
		op := &fuseops.SetInodeAttributesOp{Inode: fuseops.InodeID(hdr.Nodeid)}
		if in.Valid&fusewire.FattrSize != 0 {
			v := in.Size
			op.Size = &v
		}
		if in.Valid&fusewire.FattrMode != 0 {
			v := modeFromUnix(in.Mode)
			op.Mode = &v
		}
		if in.Valid&fusewire.FattrUID != 0 {
			v := in.UID
			op.UID = &v
		}
		if in.Valid&fusewire.FattrGID != 0 {
			v := in.GID
			op.GID = &v
		}
		if in.Valid&fusewire.FattrAtime != 0 {
			t := nsecToTime(in.Atime, in.AtimeNsec)
			op.Atime = &t
		}
		op.AtimeNow = in.Valid&fusewire.FattrAtimeNow != 0
		if in.Valid&fusewire.FattrMtime != 0 {
			t := nsecToTime(in.Mtime, in.MtimeNsec)
			op.Mtime = &t
		}
		op.MtimeNow = in.Valid&fusewire.FattrMtimeNow != 0
		return finish(op, header, ctx), nil

	case fusewire.OpMkdir:
		var in fusewire.MkdirIn
		fusewire.Decode(body[:8], &in)
		op := &fuseops.MkDirOp{
			Parent: fuseops.InodeID(hdr.Nodeid),
			Name:   cString(body[8:]),
			Mode:   modeFromUnix(in.Mode),
		}
		return finish(op, header, ctx), nil

	case fusewire.OpMknod:
		var in fusewire.MknodIn
		fusewire.Decode(body[:16], &in)
		op := &fuseops.MkNodeOp{
			Parent: fuseops.InodeID(hdr.Nodeid),
			Name:   cString(body[16:]),
			Mode:   modeFromUnix(in.Mode),
			Rdev:   in.Rdev,
		}
		return finish(op, header, ctx), nil

	case fusewire.OpCreate:
		var in fusewire.CreateIn
		fusewire.Decode(body[:16], &in)
		op := &fuseops.CreateFileOp{
			Parent: fuseops.InodeID(hdr.Nodeid),
			Name:   cString(body[16:]),
			Mode:   modeFromUnix(in.Mode),
			Flags:  fuseops.OpenFlags(in.Flags),
		}
		return finish(op, header, ctx), nil

	case fusewire.OpSymlink:
		name, target := twoCStrings(body)
		op := &fuseops.CreateSymlinkOp{
			Parent: fuseops.InodeID(hdr.Nodeid),
			Name:   name,
			Target: target,
		}
		return finish(op, header, ctx), nil

	case fusewire.OpReadlink:
		op := &fuseops.ReadSymlinkOp{Inode: fuseops.InodeID(hdr.Nodeid)}
		return finish(op, header, ctx), nil

	case fusewire.OpLink:
		var in fusewire.LinkIn
		fusewire.Decode(body[:8], &in)
		op := &fuseops.CreateLinkOp{
			Parent: fuseops.InodeID(hdr.Nodeid),
			Name:   cString(body[8:]),
			Target: fuseops.InodeID(in.OldNodeid),
		}
		return finish(op, header, ctx), nil

	case fusewire.OpRename, fusewire.OpRename2:
		var newDir uint64
		var flags uint32
		var rest []byte
		if hdr.Opcode == fusewire.OpRename2 {
			var in fusewire.Rename2In
			fusewire.Decode(body[:16], &in)
			newDir, flags, rest = in.Newdir, in.Flags, body[16:]
		} else {
			var in fusewire.RenameIn
			fusewire.Decode(body[:8], &in)
			newDir, rest = in.Newdir, body[8:]
		}
		oldName, newName := twoCStrings(rest)
		op := &fuseops.RenameOp{
			OldParent: fuseops.InodeID(hdr.Nodeid),
			OldName:   oldName,
			NewParent: fuseops.InodeID(newDir),
			NewName:   newName,
			Flags:     flags,
		}
		return finish(op, header, ctx), nil

	case fusewire.OpRmdir:
		op := &fuseops.RmDirOp{Parent: fuseops.InodeID(hdr.Nodeid), Name: cString(body)}
		return finish(op, header, ctx), nil

	case fusewire.OpUnlink:
		op := &fuseops.UnlinkOp{Parent: fuseops.InodeID(hdr.Nodeid), Name: cString(body)}
		return finish(op, header, ctx), nil

	case fusewire.OpOpen:
		var in fusewire.OpenIn
		fusewire.Decode(body, &in)
		op := &fuseops.OpenFileOp{Inode: fuseops.InodeID(hdr.Nodeid), Flags: fuseops.OpenFlags(in.Flags)}
		return finish(op, header, ctx), nil

	case fusewire.OpRead:
		var in fusewire.ReadIn
		fusewire.Decode(body, &in)
		op := &fuseops.ReadFileOp{
			Inode:  fuseops.InodeID(hdr.Nodeid),
			Handle: fuseops.HandleID(in.Fh),
			Offset: int64(in.Offset),
			Size:   int(in.Size),
		}
		return finish(op, header, ctx), nil

	case fusewire.OpWrite:
		var in fusewire.WriteIn
		const writeInSize = 40
		fusewire.Decode(body[:writeInSize], &in)
		op := &fuseops.WriteFileOp{
			Inode:  fuseops.InodeID(hdr.Nodeid),
			Handle: fuseops.HandleID(in.Fh),
			Offset: int64(in.Offset),
			Data:   body[writeInSize:],
		}
		return finish(op, header, ctx), nil

	case fusewire.OpStatfs:
		op := &fuseops.StatFSOp{}
		return finish(op, header, ctx), nil

	case fusewire.OpRelease:
		var in fusewire.ReleaseIn
		fusewire.Decode(body, &in)
		op := &fuseops.ReleaseFileHandleOp{Handle: fuseops.HandleID(in.Fh)}
		return finish(op, header, ctx), nil

	case fusewire.OpFsync:
		var in fusewire.FsyncIn
		fusewire.Decode(body, &in)
		op := &fuseops.SyncFileOp{Inode: fuseops.InodeID(hdr.Nodeid), Handle: fuseops.HandleID(in.Fh)}
		return finish(op, header, ctx), nil

	case fusewire.OpFlush:
		var in fusewire.FlushIn
		fusewire.Decode(body, &in)
		op := &fuseops.FlushFileOp{Inode: fuseops.InodeID(hdr.Nodeid), Handle: fuseops.HandleID(in.Fh)}
		return finish(op, header, ctx), nil

	case fusewire.OpOpendir:
		var in fusewire.OpenIn
		fusewire.Decode(body, &in)
		op := &fuseops.OpenDirOp{Inode: fuseops.InodeID(hdr.Nodeid), Flags: fuseops.OpenFlags(in.Flags)}
		return finish(op, header, ctx), nil

	case fusewire.OpReaddir, fusewire.OpReaddirplus:
		var in fusewire.ReadIn
		fusewire.Decode(body, &in)
		if hdr.Opcode == fusewire.OpReaddirplus {
			op := &fuseops.ReadDirPlusOp{
				Inode:  fuseops.InodeID(hdr.Nodeid),
				Handle: fuseops.HandleID(in.Fh),
				Offset: fuseops.DirOffset(in.Offset),
				Size:   int(in.Size),
			}
			return finish(op, header, ctx), nil
		}
		op := &fuseops.ReadDirOp{
			Inode:  fuseops.InodeID(hdr.Nodeid),
			Handle: fuseops.HandleID(in.Fh),
			Offset: fuseops.DirOffset(in.Offset),
			Size:   int(in.Size),
		}
		return finish(op, header, ctx), nil

	case fusewire.OpReleasedir:
		var in fusewire.ReleaseIn
		fusewire.Decode(body, &in)
		op := &fuseops.ReleaseDirHandleOp{Handle: fuseops.HandleID(in.Fh)}
		return finish(op, header, ctx), nil

	case fusewire.OpFsyncdir:
		var in fusewire.FsyncIn
		fusewire.Decode(body, &in)
		op := &fuseops.FsyncDirOp{Inode: fuseops.InodeID(hdr.Nodeid), Handle: fuseops.HandleID(in.Fh)}
		return finish(op, header, ctx), nil

	case fusewire.OpSetxattr:
		var in fusewire.SetxattrIn
		fusewire.Decode(body[:8], &in)
		name, value := cString(body[8:]), []byte{}
		if i := bytes.IndexByte(body[8:], 0); i >= 0 {
			value = body[8+i+1:]
		}
		op := &fuseops.SetXattrOp{Inode: fuseops.InodeID(hdr.Nodeid), Name: name, Value: value, Flags: in.Flags}
		return finish(op, header, ctx), nil

	case fusewire.OpGetxattr:
		var in fusewire.GetxattrIn
		fusewire.Decode(body[:8], &in)
		op := &fuseops.GetXattrOp{Inode: fuseops.InodeID(hdr.Nodeid), Name: cString(body[8:]), Size: int(in.Size)}
		return finish(op, header, ctx), nil

	case fusewire.OpListxattr:
		var in fusewire.GetxattrIn
		fusewire.Decode(body[:8], &in)
		op := &fuseops.ListXattrOp{Inode: fuseops.InodeID(hdr.Nodeid), Size: int(in.Size)}
		return finish(op, header, ctx), nil

	case fusewire.OpRemovexattr:
		op := &fuseops.RemoveXattrOp{Inode: fuseops.InodeID(hdr.Nodeid), Name: cString(body)}
		return finish(op, header, ctx), nil

	case fusewire.OpAccess:
		var in fusewire.AccessIn
		fusewire.Decode(body, &in)
		op := &fuseops.AccessOp{Inode: fuseops.InodeID(hdr.Nodeid), Mask: in.Mask}
		return finish(op, header, ctx), nil

	case fusewire.OpFallocate:
		var in fusewire.FallocateIn
		fusewire.Decode(body, &in)
		op := &fuseops.FallocateOp{
			Inode:  fuseops.InodeID(hdr.Nodeid),
			Handle: fuseops.HandleID(in.Fh),
			Offset: in.Offset,
			Length: in.Length,
			Mode:   in.Mode,
		}
		return finish(op, header, ctx), nil

	case fusewire.OpLseek:
		var in fusewire.LseekIn
		fusewire.Decode(body, &in)
		op := &fuseops.LseekOp{
			Inode:  fuseops.InodeID(hdr.Nodeid),
			Handle: fuseops.HandleID(in.Fh),
			Offset: int64(in.Offset),
			Whence: int(in.Whence),
		}
		return finish(op, header, ctx), nil

	case fusewire.OpCopyFileRng:
		var in fusewire.CopyFileRangeIn
		fusewire.Decode(body, &in)
		op := &fuseops.CopyFileRangeOp{
			InodeIn:   fuseops.InodeID(hdr.Nodeid),
			HandleIn:  fuseops.HandleID(in.FhIn),
			OffsetIn:  int64(in.OffIn),
			InodeOut:  fuseops.InodeID(in.NodeOut),
			HandleOut: fuseops.HandleID(in.FhOut),
			OffsetOut: int64(in.OffOut),
			Len:       in.Len,
		}
		return finish(op, header, ctx), nil

	case fusewire.OpGetlk, fusewire.OpSetlk, fusewire.OpSetlkw:
		var in fusewire.LkIn
		fusewire.Decode(body, &in)
		if hdr.Opcode == fusewire.OpGetlk {
			op := &fuseops.GetLkOp{
				Inode: fuseops.InodeID(hdr.Nodeid), Handle: fuseops.HandleID(in.Fh),
				Start: in.Lk.Start, End: in.Lk.End,
				Type: lockType(in.Lk.Type), PID: in.Lk.PID,
			}
			return finish(op, header, ctx), nil
		}
		if in.LkFlags&fusewire.FuseLkFlock != 0 {
			op := &fuseops.FlockOp{Inode: fuseops.InodeID(hdr.Nodeid), Handle: fuseops.HandleID(in.Fh), Type: lockType(in.Lk.Type)}
			return finish(op, header, ctx), nil
		}
		op := &fuseops.SetLkOp{
			Inode: fuseops.InodeID(hdr.Nodeid), Handle: fuseops.HandleID(in.Fh),
			Start: in.Lk.Start, End: in.Lk.End,
			Type:  lockType(in.Lk.Type),
			Block: hdr.Opcode == fusewire.OpSetlkw,
		}
		return finish(op, header, ctx), nil

	case fusewire.OpDestroy:
		op := &fuseops.DestroyOp{}
		return finish(op, header, ctx), nil

	default:
		return nil, fmt.Errorf("unsupported opcode %d", hdr.Opcode)
	}
}

func lockType(t uint32) fuseops.FileLockType {
	switch t {
	case 0:
		return fuseops.F_RDLOCK
	case 1:
		return fuseops.F_WRLOCK
	default:
		return fuseops.F_UNLCK
	}
}

// errnoOf converts a handler error into the positive errno number the wire
// protocol expects (Connection.writeReply negates it). Handlers are
// expected to return one of the fuseops.Exxx syscall.Errno constants;
// anything else becomes EIO so a handler bug never corrupts the session by
// reporting success for a non-nil error.
func errnoOf(err error) int {
	if errno, ok := err.(syscall.Errno); ok {
		return int(errno)
	}
	return int(fuseops.EIO)
}
