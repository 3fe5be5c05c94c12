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

package tracinglayer

import (
	"context"
	"testing"

	"github.com/interposefs/interposefs/faultinjection"
	"github.com/interposefs/interposefs/fuseops"
	"github.com/interposefs/interposefs/fuseutil"
	"github.com/interposefs/interposefs/telemetry"
)

type recordingFS struct {
	fuseutil.NotImplementedFileSystem
	readFileCalls int
}

func (r *recordingFS) ReadFile(op *fuseops.ReadFileOp) { r.readFileCalls++ }
func (r *recordingFS) WriteFile(op *fuseops.WriteFileOp) {}

type recordingSpan struct {
	attrs  map[string]interface{}
	events []string
	ended  bool
}

func (s *recordingSpan) SetAttribute(key string, value interface{}) {
	if s.attrs == nil {
		s.attrs = make(map[string]interface{})
	}
	s.attrs[key] = value
}

func (s *recordingSpan) AddEvent(name string, _ map[string]interface{}) {
	s.events = append(s.events, name)
}

func (s *recordingSpan) End() { s.ended = true }

type recordingTracer struct {
	spans []*recordingSpan
}

func (t *recordingTracer) StartSpan(ctx context.Context, name string) (context.Context, telemetry.Span) {
	span := &recordingSpan{}
	t.spans = append(t.spans, span)
	return ctx, span
}

func TestReadFileOpensAndEndsASpanAroundTheForwardedCall(t *testing.T) {
	next := &recordingFS{}
	tracer := &recordingTracer{}
	fs := New(next, tracer)

	fs.ReadFile(&fuseops.ReadFileOp{Inode: 7, Offset: 3, Size: 100})

	if next.readFileCalls != 1 {
		t.Fatalf("expected ReadFile to forward exactly once, got %d", next.readFileCalls)
	}
	if len(tracer.spans) != 1 {
		t.Fatalf("expected exactly one span, got %d", len(tracer.spans))
	}
	span := tracer.spans[0]
	if !span.ended {
		t.Fatalf("expected the span to be ended after the forwarded call returns")
	}
	if span.attrs["inode"] != uint64(7) {
		t.Fatalf("expected the inode attribute to be recorded, got %v", span.attrs["inode"])
	}
	if span.attrs["offset"] != int64(3) {
		t.Fatalf("expected the offset attribute to be recorded, got %v", span.attrs["offset"])
	}
	if _, ok := span.attrs["request_id"]; !ok {
		t.Fatalf("expected a request_id attribute to be attached")
	}
}

func TestNonMenuOperationForwardsWithoutOpeningASpan(t *testing.T) {
	next := &recordingFS{}
	tracer := &recordingTracer{}
	fs := New(next, tracer)

	fs.Access(&fuseops.AccessOp{})

	if len(tracer.spans) != 0 {
		t.Fatalf("expected Access not to open a span, got %d", len(tracer.spans))
	}
}

func TestEmitAttachesAnEventToTheOpenSpanForTheSameOperationAndInode(t *testing.T) {
	next := &recordingFS{}
	tracer := &recordingTracer{}
	fs := New(next, tracer)

	// Simulate a faultinjection layer below this one that never returns
	// control until ReadFile forwards, by starting the span by hand and
	// emitting while it's still open.
	span := fs.startSpan("read", 7)

	fs.Emit(faultinjection.Event{Op: "read", Inode: 7, Kind: "truncation", Detail: "size=5"})

	if len(span.(*recordingSpan).events) != 1 {
		t.Fatalf("expected one event attached to the open span, got %d", len(span.(*recordingSpan).events))
	}
	if span.(*recordingSpan).events[0] != "truncated read simulated" {
		t.Fatalf("unexpected event name %q", span.(*recordingSpan).events[0])
	}

	fs.endSpan("read", 7, span)
}

func TestEmitIsANoOpWhenNoSpanIsOpenForTheOperationAndInode(t *testing.T) {
	next := &recordingFS{}
	tracer := &recordingTracer{}
	fs := New(next, tracer)

	// No span has been opened, so this must not panic and must not touch
	// anything.
	fs.Emit(faultinjection.Event{Op: "read", Inode: 99, Kind: "error", Detail: "EIO"})
}

func TestEventSinkInterfaceIsSatisfied(t *testing.T) {
	var _ faultinjection.EventSink = New(&recordingFS{}, &recordingTracer{})
}
