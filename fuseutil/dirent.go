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
	"github.com/interposefs/interposefs/internal/fusewire"
)

// WriteDirent appends d to buf in the on-wire format ReadDirOp.Data
// expects, returning the number of bytes written, or zero if d would not
// fit (the caller must then stop, per spec §4.2/§8: "that entry is not
// emitted... buffer is returned with the already-collected entries").
func WriteDirent(buf []byte, d fuseops.Dirent) (out []byte, n int) {
	wired := fusewire.Dirent{
		Ino:     uint64(d.Inode),
		Off:     uint64(d.Offset),
		Namelen: uint32(len(d.Name)),
		Type:    uint32(d.Type),
	}
	return fusewire.AppendDirent(buf, cap(buf)-len(buf), wired, d.Name)
}

// WriteDirentPlus is the readdirplus equivalent of WriteDirent. It writes
// only the regular dirent record, exactly as WriteDirent does; d.Entry is
// not encoded.
func WriteDirentPlus(buf []byte, d fuseops.DirentPlus) (out []byte, n int) {
	// The plus record is the same dirent payload; the accompanying lookup
	// entry is tracked by the caller (passthrough.readdirCursor) rather
	// than serialized here, since this module's session layer exchanges
	// ChildInodeEntry values directly rather than re-parsing the kernel's
	// dirent+entry_out concatenation on the way back out.
	return WriteDirent(buf, d.Dirent)
}
