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
	"strings"
)

// Op is the interface implemented by every op type in this package. A
// handler must call Respond exactly once, whether directly or by
// forwarding to another layer's corresponding method (spec §4.3: "a
// method may only reply once").
type Op interface {
	// Header returns the calling-context information carried by the
	// request, for use by observability layers.
	Header() OpHeader

	// Context returns a context.Context associated with the op. It is
	// cancelled if the connection is closed out from under the op; kernel
	// interrupt delivery is not wired up to it (spec §5: interrupts are
	// disabled at init).
	Context() context.Context

	// Respond completes the op with the given error (nil for success).
	// It is an implementation error to call this more than once.
	Respond(err error)

	// ShortDesc returns a short human-readable description, for logging.
	ShortDesc() string

	setCallback(func(error))
}

// commonOp is embedded by every concrete Op type below to supply the
// shared bookkeeping: correlation-carrying header, a cancellable context,
// and the respond-once callback hookup installed by the connection layer
// when it hands the op to fuseutil.NewFileSystemServer's dispatch loop.
type commonOp struct {
	opType   string
	header   OpHeader
	ctx      context.Context
	callback func(error)
	done     bool
}

func (o *commonOp) init(opType reflect.Type, header OpHeader, ctx context.Context) {
	o.opType = describeOpType(opType)
	o.header = header
	o.ctx = ctx
}

func describeOpType(t reflect.Type) string {
	name := t.String()
	const prefix = "*fuseops."
	const suffix = "Op"
	if strings.HasPrefix(name, prefix) && strings.HasSuffix(name, suffix) {
		return name[len(prefix) : len(name)-len(suffix)]
	}
	return name
}

func (o *commonOp) Header() OpHeader { return o.header }

func (o *commonOp) Context() context.Context { return o.ctx }

func (o *commonOp) ShortDesc() string { return o.opType }

func (o *commonOp) setCallback(cb func(error)) { o.callback = cb }

func (o *commonOp) Respond(err error) {
	if o.done {
		panic(fmt.Sprintf("%s: Respond called more than once", o.opType))
	}
	o.done = true
	if o.callback != nil {
		o.callback(err)
	}
}
