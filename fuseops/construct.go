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

package fuseops

import (
	"context"
	"fmt"
	"reflect"
)

// Init finishes constructing an Op built elsewhere (typically the
// connection layer, which populates the exported request fields of a
// concrete *XxxOp literal directly from the decoded kernel message) by
// installing the bookkeeping commonOp keeps unexported: the correlation
// header, a cancellable context, and the op's short description.
//
// It must be called exactly once, before the op is handed to a
// fuseutil.FileSystem.
func Init(op Op, header OpHeader, ctx context.Context) {
	t := reflect.TypeOf(op)
	switch o := op.(type) {
	case *InitOp:
		o.commonOp.init(t, header, ctx)
	case *LookUpInodeOp:
		o.commonOp.init(t, header, ctx)
	case *GetInodeAttributesOp:
		o.commonOp.init(t, header, ctx)
	case *SetInodeAttributesOp:
		o.commonOp.init(t, header, ctx)
	case *ForgetInodeOp:
		o.commonOp.init(t, header, ctx)
	case *ForgetMultiOp:
		o.commonOp.init(t, header, ctx)
	case *AccessOp:
		o.commonOp.init(t, header, ctx)
	case *MkDirOp:
		o.commonOp.init(t, header, ctx)
	case *MkNodeOp:
		o.commonOp.init(t, header, ctx)
	case *CreateFileOp:
		o.commonOp.init(t, header, ctx)
	case *CreateSymlinkOp:
		o.commonOp.init(t, header, ctx)
	case *CreateLinkOp:
		o.commonOp.init(t, header, ctx)
	case *ReadSymlinkOp:
		o.commonOp.init(t, header, ctx)
	case *RenameOp:
		o.commonOp.init(t, header, ctx)
	case *RmDirOp:
		o.commonOp.init(t, header, ctx)
	case *UnlinkOp:
		o.commonOp.init(t, header, ctx)
	case *GetXattrOp:
		o.commonOp.init(t, header, ctx)
	case *ListXattrOp:
		o.commonOp.init(t, header, ctx)
	case *SetXattrOp:
		o.commonOp.init(t, header, ctx)
	case *RemoveXattrOp:
		o.commonOp.init(t, header, ctx)
	case *OpenDirOp:
		o.commonOp.init(t, header, ctx)
	case *ReadDirOp:
		o.commonOp.init(t, header, ctx)
	case *ReadDirPlusOp:
		o.commonOp.init(t, header, ctx)
	case *ReleaseDirHandleOp:
		o.commonOp.init(t, header, ctx)
	case *FsyncDirOp:
		o.commonOp.init(t, header, ctx)
	case *OpenFileOp:
		o.commonOp.init(t, header, ctx)
	case *ReadFileOp:
		o.commonOp.init(t, header, ctx)
	case *WriteFileOp:
		o.commonOp.init(t, header, ctx)
	case *SyncFileOp:
		o.commonOp.init(t, header, ctx)
	case *FlushFileOp:
		o.commonOp.init(t, header, ctx)
	case *ReleaseFileHandleOp:
		o.commonOp.init(t, header, ctx)
	case *FallocateOp:
		o.commonOp.init(t, header, ctx)
	case *CopyFileRangeOp:
		o.commonOp.init(t, header, ctx)
	case *LseekOp:
		o.commonOp.init(t, header, ctx)
	case *FlockOp:
		o.commonOp.init(t, header, ctx)
	case *GetLkOp:
		o.commonOp.init(t, header, ctx)
	case *SetLkOp:
		o.commonOp.init(t, header, ctx)
	case *StatFSOp:
		o.commonOp.init(t, header, ctx)
	case *DestroyOp:
		o.commonOp.init(t, header, ctx)
	default:
		panic(fmt.Sprintf("fuseops.Init: unhandled op type %T", op))
	}
}
