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

// Package fuse contains the session/connection plumbing that sits between
// the kernel's FUSE channel and a fuseutil.FileSystem (the top of a layer
// stack built from passthrough, fault-injection, throttling, metrics, and
// tracing layers).
//
// The primary elements of interest are:
//
//  *  Connection, which reads raw ops off the kernel channel and decodes
//     them into fuseops.Op values.
//
//  *  fuseutil.FileSystem, which defines the operation-table methods a
//     layer must implement, and fuseutil.NewFileSystemServer, which
//     drives a Connection against one.
//
//  *  Mount, which opens and mounts the kernel channel and starts serving.
//
// This package targets Linux only: the passthrough layer above it is
// built entirely on descriptor-relative (*at) syscalls and /proc/self/fd,
// which have no portable equivalent.
package fuse
