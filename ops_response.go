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
	"fmt"

	"github.com/interposefs/interposefs/fuseops"
	"github.com/interposefs/interposefs/internal/fusewire"
)

func attrFromInodeAttributes(inode fuseops.InodeID, a fuseops.InodeAttributes) fusewire.Attr {
	return fusewire.Attr{
		Ino:     uint64(inode),
		Size:    a.Size,
		Blocks:  (a.Size + 511) / 512,
		Atime:   uint64(a.Atime.Unix()),
		Mtime:   uint64(a.Mtime.Unix()),
		Ctime:   uint64(a.Ctime.Unix()),
		Mode:    unixModeFromMode(a.Mode),
		Nlink:   a.Nlink,
		UID:     a.UID,
		GID:     a.GID,
		Rdev:    a.Rdev,
		Blksize: 4096,
	}
}

func expirationParts(t interface{ Unix() int64 }) (uint64, uint32) {
	return uint64(t.Unix()), 0
}

func entryOut(inode fuseops.InodeID, e fuseops.ChildInodeEntry) fusewire.EntryOut {
	entryValid, entryValidNsec := expirationParts(e.EntryExpiration)
	attrValid, attrValidNsec := expirationParts(e.AttributesExpiration)
	return fusewire.EntryOut{
		Nodeid:         uint64(e.Child),
		Generation:     e.Generation,
		EntryValid:     entryValid,
		AttrValid:      attrValid,
		EntryValidNsec: entryValidNsec,
		AttrValidNsec:  attrValidNsec,
		Attr:           attrFromInodeAttributes(e.Child, e.Attributes),
	}
}

// kernelResponse encodes the reply fields a handler set on op into the raw
// body the kernel expects for that opcode. It returns (nil, nil) for ops
// with no reply body.
func (c *Connection) kernelResponse(op fuseops.Op) (interface{}, error) {
	switch o := op.(type) {
	case *fuseops.LookUpInodeOp:
		return entryOut(o.Entry.Child, o.Entry), nil

	case *fuseops.MkDirOp:
		return entryOut(o.Entry.Child, o.Entry), nil

	case *fuseops.MkNodeOp:
		return entryOut(o.Entry.Child, o.Entry), nil

	case *fuseops.CreateSymlinkOp:
		return entryOut(o.Entry.Child, o.Entry), nil

	case *fuseops.CreateLinkOp:
		return entryOut(o.Entry.Child, o.Entry), nil

	case *fuseops.CreateFileOp:
		entry, err := fusewire.Encode(entryOut(o.Entry.Child, o.Entry))
		if err != nil {
			return nil, err
		}
		open, err := fusewire.Encode(fusewire.OpenOut{Fh: uint64(o.Handle)})
		if err != nil {
			return nil, err
		}
		return append(entry, open...), nil

	case *fuseops.GetInodeAttributesOp:
		valid, validNsec := expirationParts(o.AttributesExpiration)
		return fusewire.AttrOut{
			AttrValid:     valid,
			AttrValidNsec: validNsec,
			Attr:          attrFromInodeAttributes(o.Inode, o.Attributes),
		}, nil

	case *fuseops.SetInodeAttributesOp:
		valid, validNsec := expirationParts(o.AttributesExpiration)
		return fusewire.AttrOut{
			AttrValid:     valid,
			AttrValidNsec: validNsec,
			Attr:          attrFromInodeAttributes(o.Inode, o.Attributes),
		}, nil

	case *fuseops.ReadSymlinkOp:
		return []byte(o.Target), nil

	case *fuseops.GetXattrOp:
		if o.Size == 0 {
			return fusewire.GetxattrOut{Size: uint32(o.Len)}, nil
		}
		return o.Dst, nil

	case *fuseops.ListXattrOp:
		if o.Size == 0 {
			return fusewire.GetxattrOut{Size: uint32(o.Len)}, nil
		}
		return o.Dst, nil

	case *fuseops.OpenDirOp:
		return fusewire.OpenOut{Fh: uint64(o.Handle)}, nil

	case *fuseops.OpenFileOp:
		var flags uint32
		if o.KeepPageCache {
			flags |= fusewire.FopenKeepCache
		}
		if o.UseDirectIO {
			flags |= fusewire.FopenDirectIO
		}
		return fusewire.OpenOut{Fh: uint64(o.Handle), OpenFlags: flags}, nil

	case *fuseops.ReadFileOp:
		var buf bytes.Buffer
		for _, b := range o.Data {
			buf.Write(b)
		}
		return buf.Bytes(), nil

	case *fuseops.WriteFileOp:
		return fusewire.WriteOut{Size: uint32(len(o.Data))}, nil

	case *fuseops.ReadDirOp:
		return o.Data, nil

	case *fuseops.ReadDirPlusOp:
		return o.Data, nil

	case *fuseops.CopyFileRangeOp:
		return fusewire.WriteOut{Size: uint32(o.BytesCopied)}, nil

	case *fuseops.LseekOp:
		return fusewire.LseekOut{Offset: uint64(o.ResultOffset)}, nil

	case *fuseops.GetLkOp:
		typ := uint32(2)
		if o.Conflict {
			typ = UnmapFlockType(o.ConflictingType)
		}
		return fusewire.LkOut{Lk: fusewire.FileLock{
			Start: o.ConflictingStart,
			End:   o.ConflictingEnd,
			Type:  typ,
			PID:   o.ConflictingPID,
		}}, nil

	case *fuseops.StatFSOp:
		info := o.Info
		return fusewire.StatfsOut{St: fusewire.Kstatfs{
			Blocks:  info.Blocks,
			Bfree:   info.BlocksFree,
			Bavail:  info.BlocksAvailable,
			Files:   info.Inodes,
			Ffree:   info.InodesFree,
			Bsize:   info.BlockSize,
			Namelen: 255,
			Frsize:  info.IoSize,
		}}, nil

	// No-reply-body ops: rename, rmdir, unlink, setxattr, removexattr,
	// access, flush, fsync(dir), release(dir), fallocate, flock, setlk,
	// forget/forgetmulti (filtered before reaching here), destroy.
	case *fuseops.RenameOp, *fuseops.RmDirOp, *fuseops.UnlinkOp,
		*fuseops.SetXattrOp, *fuseops.RemoveXattrOp, *fuseops.AccessOp,
		*fuseops.FlushFileOp, *fuseops.SyncFileOp, *fuseops.FsyncDirOp,
		*fuseops.ReleaseFileHandleOp, *fuseops.ReleaseDirHandleOp,
		*fuseops.FallocateOp, *fuseops.FlockOp, *fuseops.SetLkOp,
		*fuseops.DestroyOp:
		return nil, nil

	default:
		return nil, fmt.Errorf("kernelResponse: unhandled op type %T", op)
	}
}
