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

import "syscall"

// Errno values returned to the kernel as op replies. These used to be
// aliases of github.com/jacobsa/bazilfuse's errno wrappers; that
// dependency is gone, so they are plain syscall.Errno values, which is
// what the connection layer sends over the wire either way.
const (
	EEXIST  = syscall.EEXIST
	EINVAL  = syscall.EINVAL
	EIO     = syscall.EIO
	ENOATTR = syscall.ENODATA
	ENODATA = syscall.ENODATA
	ENOENT  = syscall.ENOENT
	ENOSPC  = syscall.ENOSPC
	ENOSYS  = syscall.ENOSYS
	ENOTSUP = syscall.ENOTSUP
	ERANGE  = syscall.ERANGE
	ENOTEMPTY = syscall.ENOTEMPTY
)
