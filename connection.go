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
	"context"
	"fmt"
	"io"
	"log"
	"os"
	"reflect"
	"sync"

	"github.com/google/uuid"
	"github.com/interposefs/interposefs/fuseops"
	"github.com/interposefs/interposefs/internal/fusewire"
)

const maxReadahead = 1 << 20

// Connection reads raw kernel requests off a mounted /dev/fuse channel and
// decodes them into fuseops.Op values; the caller (fuseutil.ServeOps)
// dispatches each to a fuseutil.FileSystem and then calls Reply.
//
// Per spec §5, kernel-initiated interrupt delivery is disabled at Init, so
// Connection does not implement mid-operation cancellation: the context
// returned with each op is cancelled only when the connection itself is
// torn down.
type Connection struct {
	dev    *os.File
	debug  *log.Logger
	errorf *log.Logger

	protocol struct {
		major, minor uint32
	}

	mu         sync.Mutex
	cancelFn   context.CancelFunc
	ctx        context.Context
	opsInFlight sync.WaitGroup
}

func newConnection(dev *os.File, debug, errorf *log.Logger) *Connection {
	ctx, cancel := context.WithCancel(context.Background())
	return &Connection{
		dev:      dev,
		debug:    debug,
		errorf:   errorf,
		ctx:      ctx,
		cancelFn: cancel,
	}
}

// Init performs the FUSE handshake: reads the kernel's INIT request,
// settles the protocol minor version, and replies directly.
//
// The reply keeps only the async-read, big-writes and atomic-O_TRUNC
// capability bits the kernel offered. No InitOp is built and no
// FileSystem's Init method is called, so capabilities a layer would set
// there (writeback cache, flock) are not negotiated with the kernel.
func (c *Connection) Init() error {
	msg, err := c.readRawMessage()
	if err != nil {
		return fmt.Errorf("reading INIT request: %w", err)
	}

	var hdr fusewire.InHeader
	if err := fusewire.Decode(msg[:headerLen], &hdr); err != nil {
		return fmt.Errorf("decoding INIT header: %w", err)
	}
	if hdr.Opcode != fusewire.OpInit {
		return fmt.Errorf("expected FUSE_INIT, got opcode %d", hdr.Opcode)
	}

	var in fusewire.InitIn
	if err := fusewire.Decode(msg[headerLen:], &in); err != nil {
		return fmt.Errorf("decoding InitIn: %w", err)
	}

	c.protocol.major = in.Major
	c.protocol.minor = in.Minor
	if in.Minor > fusewire.MinorVersion {
		c.protocol.minor = fusewire.MinorVersion
	}

	out := fusewire.InitOut{
		Major:         fusewire.KernelVersion,
		Minor:         c.protocol.minor,
		MaxReadahead:  maxReadahead,
		Flags:         in.Flags & (fusewire.FuseAsyncRead | fusewire.FuseBigWrites | fusewire.FuseAtomicOTrunc),
		MaxBackground: 16,
		MaxWrite:      1 << 20,
	}

	return c.writeReply(hdr.Unique, 0, out)
}

const headerLen = 40 // encoded size of fusewire.InHeader

const outHeaderLen = 16 // encoded size of fusewire.OutHeader

func (c *Connection) readRawMessage() ([]byte, error) {
	buf := make([]byte, fusewire.MinReadBuffer+maxReadahead)
	n, err := c.dev.Read(buf)
	if err != nil {
		return nil, err
	}
	return buf[:n], nil
}

func (c *Connection) writeReply(unique uint64, errno int32, body interface{}) error {
	var payload []byte
	if body != nil {
		var err error
		payload, err = fusewire.Encode(body)
		if err != nil {
			return err
		}
	}

	out := fusewire.OutHeader{
		Length: uint32(outHeaderLen) + uint32(len(payload)),
		Error:  -errno,
		Unique: unique,
	}
	head, err := fusewire.Encode(out)
	if err != nil {
		return err
	}

	msg := append(head, payload...)
	return c.writeMessage(msg)
}

var writeLock sync.Mutex

func (c *Connection) writeMessage(msg []byte) error {
	writeLock.Lock()
	defer writeLock.Unlock()

	n, err := c.dev.Write(msg)
	if err != nil {
		return err
	}
	if n != len(msg) {
		return fmt.Errorf("short write: wrote %d of %d bytes", n, len(msg))
	}
	return nil
}

type contextKeyType int

const (
	contextKeyUnique contextKeyType = iota
	contextKeyOpcode
)

// ReadOp reads the next request from the kernel channel and decodes it
// into the corresponding fuseops.Op. It returns io.EOF once the channel is
// closed (unmount in progress).
func (c *Connection) ReadOp() (fuseops.Op, error) {
	msg, err := c.readRawMessage()
	if err != nil {
		if err == io.EOF {
			return nil, io.EOF
		}
		return nil, err
	}
	if len(msg) < headerLen {
		return nil, fmt.Errorf("message too short: %d bytes", len(msg))
	}

	var hdr fusewire.InHeader
	if err := fusewire.Decode(msg[:headerLen], &hdr); err != nil {
		return nil, err
	}
	body := msg[headerLen:]

	header := fuseops.OpHeader{
		UID:           hdr.UID,
		GID:           hdr.GID,
		PID:           hdr.PID,
		CorrelationID: uuid.NewString(),
	}

	ctx := context.WithValue(c.ctx, contextKeyUnique, hdr.Unique)
	ctx = context.WithValue(ctx, contextKeyOpcode, hdr.Opcode)

	op, err := c.convert(hdr, body, header, ctx)
	if err != nil {
		return nil, err
	}

	c.opsInFlight.Add(1)
	op.setCallback(func(opErr error) {
		defer c.opsInFlight.Done()
		if hdr.Opcode == fusewire.OpForget || hdr.Opcode == fusewire.OpForgetMulti {
			// No reply is ever sent for forget; the kernel does not expect one.
			return
		}
		if repErr := c.reply(hdr.Unique, hdr.Opcode, op, opErr); repErr != nil {
			c.logError("writing reply for unique=%d: %v", hdr.Unique, repErr)
		}
	})

	c.logDebug("-> %s (unique=%d)", op.ShortDesc(), hdr.Unique)
	return op, nil
}

func (c *Connection) logDebug(format string, v ...interface{}) {
	if c.debug != nil {
		c.debug.Output(2, fmt.Sprintf(format, v...))
	}
}

func (c *Connection) logError(format string, v ...interface{}) {
	if c.errorf != nil {
		c.errorf.Output(2, fmt.Sprintf(format, v...))
	}
}

// shouldLogError decides whether a failed op is noteworthy: a handful of
// errno values are expected in routine operation (a lookup miss, an xattr
// probe with no value set) and would otherwise flood the error log.
func shouldLogError(op fuseops.Op, err error) bool {
	switch op.(type) {
	case *fuseops.LookUpInodeOp:
		return err != fuseops.ENOENT
	case *fuseops.GetXattrOp, *fuseops.ListXattrOp:
		switch err {
		case fuseops.ENOSYS, fuseops.ENODATA, fuseops.ERANGE:
			return false
		}
		return err != nil
	}
	return err != nil
}

// reply is invoked once per op via the callback installed in ReadOp. It is
// unexported: the Server implementation (fuseutil.fileSystemServer) never
// calls it directly and reaches it only through Op.Respond.
func (c *Connection) reply(unique uint64, opcode fusewire.Opcode, op fuseops.Op, opErr error) error {
	if opErr != nil {
		if shouldLogError(op, opErr) {
			c.logError("(%s) error: %v", op.ShortDesc(), opErr)
		} else {
			c.logDebug("(%s) error: %v", op.ShortDesc(), opErr)
		}
		errno := errnoOf(opErr)
		return c.writeReply(unique, int32(errno), nil)
	}

	c.logDebug("<- (%s) OK", op.ShortDesc())
	body, err := c.kernelResponse(op)
	if err != nil {
		return err
	}
	return c.writeReply(unique, 0, body)
}

// callbackForOp returns the function that should run after the
// FileSystem's handler method returns, when used without the Respond
// closure path (kept for symmetry with the teacher's Connection; unused
// by the default dispatch but available to alternative servers).
func (c *Connection) callbackForOp(op fuseops.Op) func(error) {
	return func(err error) { op.Respond(err) }
}

func (c *Connection) close() error {
	c.cancelFn()
	c.opsInFlight.Wait()
	return c.dev.Close()
}

func describeOpType(op fuseops.Op) string {
	return reflect.TypeOf(op).String()
}
