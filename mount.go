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
	"fmt"
	"log"
	"os"
	"strings"
	"time"

	"github.com/interposefs/interposefs/fuseutil"
)

// MountConfig holds the knobs a caller can set before calling Mount: the
// mount-time options that must be decided before the kernel handshake
// happens.
type MountConfig struct {
	// FSName and Subtype surface in mount(8)/df output as the fuse.<subtype>
	// filesystem name.
	FSName  string
	Subtype string

	// ReadOnly requests the kernel reject any write-class operation before
	// it ever reaches this process.
	ReadOnly bool

	// AllowOther permits users other than the mount's owner to access it
	// (requires user_allow_other in /etc/fuse.conf or root).
	AllowOther bool

	// DebugLogger and ErrorLogger receive per-op tracing and error
	// messages, respectively. A nil DebugLogger selects this package's
	// -fuse.debug logger (debug.go); a nil ErrorLogger writes to stderr.
	DebugLogger *log.Logger
	ErrorLogger *log.Logger

	// OpTimeout is not consulted by Mount; the wait for the kernel's INIT
	// handshake has no time limit.
	OpTimeout time.Duration

	// Options carries raw "-o" mount options beyond the above, passed
	// through verbatim to fusermount.
	Options map[string]string
}

func (c *MountConfig) toOptionsString() string {
	var opts []string
	if c.FSName != "" {
		opts = append(opts, "fsname="+c.FSName)
	}
	if c.Subtype != "" {
		opts = append(opts, "subtype="+c.Subtype)
	}
	if c.ReadOnly {
		opts = append(opts, "ro")
	}
	if c.AllowOther {
		opts = append(opts, "allow_other")
	}
	for k, v := range c.Options {
		if v == "" {
			opts = append(opts, k)
		} else {
			opts = append(opts, k+"="+v)
		}
	}
	if len(opts) == 0 {
		return "default_permissions"
	}
	return "default_permissions," + strings.Join(opts, ",")
}

// MountedFileSystem represents a live mount: the kernel channel is open and
// ServeOps is running on its own goroutine. Callers wait for unmount via
// Join and tear the mount down via Close (or an external `fusermount -u`).
type MountedFileSystem struct {
	dir  string
	conn *Connection
	done chan struct{}
	err  error
}

// Dir returns the directory this file system is mounted at.
func (mfs *MountedFileSystem) Dir() string { return mfs.dir }

// Join blocks until the file system has been unmounted, returning any error
// encountered while serving ops.
func (mfs *MountedFileSystem) Join() error {
	<-mfs.done
	return mfs.err
}

// Mount mounts fs (typically the top of a layer stack built by
// cmd/interposefsmount) at dir and begins serving requests. It returns once
// the kernel handshake has completed; Join blocks until unmount.
func Mount(dir string, fs fuseutil.FileSystem, config *MountConfig) (*MountedFileSystem, error) {
	if config == nil {
		config = &MountConfig{}
	}

	dev, err := mount(dir, config)
	if err != nil {
		return nil, fmt.Errorf("mount: %w", err)
	}

	debug := config.DebugLogger
	if debug == nil {
		debug = getLogger()
	}
	errorf := config.ErrorLogger
	if errorf == nil {
		errorf = log.New(os.Stderr, "fuse: ", log.LstdFlags)
	}

	conn := newConnection(dev, debug, errorf)
	if err := conn.Init(); err != nil {
		dev.Close()
		return nil, fmt.Errorf("FUSE handshake: %w", err)
	}

	mfs := &MountedFileSystem{
		dir:  dir,
		conn: conn,
		done: make(chan struct{}),
	}

	server := fuseutil.NewFileSystemServer(fs)
	go func() {
		defer close(mfs.done)
		defer func() {
			if r := recover(); r != nil {
				mfs.err = fmt.Errorf("panic serving ops: %v", r)
			}
		}()
		server.ServeOps(conn)
		conn.close()
	}()

	return mfs, nil
}

// Unmount unmounts the file system mounted at dir, which must have been
// mounted by this process (or be a /dev/fd/N externally managed mount
// point, in which case ErrExternallyManagedMountPoint wraps the result).
func Unmount(dir string) error {
	return unmount(dir)
}
