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

package metricslayer

import (
	"context"
	"errors"
	"testing"

	"github.com/interposefs/interposefs/fuseops"
	"github.com/interposefs/interposefs/fuseutil"
	"github.com/interposefs/interposefs/telemetry"
)

// recordingFS is a fake downstream that fills in enough of a reply for
// the layer above it to observe a byte count.
type recordingFS struct {
	fuseutil.NotImplementedFileSystem
	getAttrCalls int
}

func (r *recordingFS) ReadFile(op *fuseops.ReadFileOp) {
	op.Data = [][]byte{[]byte("hello"), []byte(" world")}
}

func (r *recordingFS) WriteFile(op *fuseops.WriteFileOp) {}

func (r *recordingFS) GetInodeAttributes(op *fuseops.GetInodeAttributesOp) {
	r.getAttrCalls++
}

// recordingCounter/recordingHistogram/recordingMeter let tests assert on
// exactly what a layer reported without pulling in the OTel SDK.
type recordingCounter struct{ total int64 }

func (c *recordingCounter) Add(_ context.Context, value int64) { c.total += value }

type recordingHistogram struct{ samples []float64 }

func (h *recordingHistogram) Record(_ context.Context, value float64) {
	h.samples = append(h.samples, value)
}

type recordingMeter struct {
	readBytes  *recordingCounter
	writeBytes *recordingCounter
	latency    *recordingHistogram
}

func newRecordingMeter() *recordingMeter {
	return &recordingMeter{
		readBytes:  &recordingCounter{},
		writeBytes: &recordingCounter{},
		latency:    &recordingHistogram{},
	}
}

func (m *recordingMeter) Counter(name string) (telemetry.Counter, error) {
	switch name {
	case "interposefs.read_bytes":
		return m.readBytes, nil
	case "interposefs.write_bytes":
		return m.writeBytes, nil
	default:
		return nil, errors.New("metricslayer test: unexpected counter name " + name)
	}
}

func (m *recordingMeter) Histogram(name string) (telemetry.Histogram, error) {
	if name != "interposefs.op_latency_seconds" {
		return nil, errors.New("metricslayer test: unexpected histogram name " + name)
	}
	return m.latency, nil
}

type failingMeter struct{}

func (failingMeter) Counter(string) (telemetry.Counter, error) {
	return nil, errors.New("boom")
}
func (failingMeter) Histogram(string) (telemetry.Histogram, error) {
	return nil, errors.New("boom")
}

func TestNewPropagatesAMeterError(t *testing.T) {
	if _, err := New(&recordingFS{}, failingMeter{}); err == nil {
		t.Fatalf("expected New to propagate the meter's error")
	}
}

func TestReadFileCountsBytesActuallyRead(t *testing.T) {
	next := &recordingFS{}
	meter := newRecordingMeter()
	fs, err := New(next, meter)
	if err != nil {
		t.Fatalf("New: %v", err)
	}

	fs.ReadFile(&fuseops.ReadFileOp{Size: 4096})

	if meter.readBytes.total != int64(len("hello world")) {
		t.Fatalf("expected %d read bytes recorded, got %d", len("hello world"), meter.readBytes.total)
	}
	if len(meter.latency.samples) != 1 {
		t.Fatalf("expected one latency sample, got %d", len(meter.latency.samples))
	}
}

func TestWriteFileCountsBytesRequested(t *testing.T) {
	next := &recordingFS{}
	meter := newRecordingMeter()
	fs, err := New(next, meter)
	if err != nil {
		t.Fatalf("New: %v", err)
	}

	fs.WriteFile(&fuseops.WriteFileOp{Data: []byte("0123456789")})

	if meter.writeBytes.total != 10 {
		t.Fatalf("expected 10 write bytes recorded, got %d", meter.writeBytes.total)
	}
}

func TestGetInodeAttributesForwardsAndRecordsLatency(t *testing.T) {
	next := &recordingFS{}
	meter := newRecordingMeter()
	fs, err := New(next, meter)
	if err != nil {
		t.Fatalf("New: %v", err)
	}

	fs.GetInodeAttributes(&fuseops.GetInodeAttributesOp{})

	if next.getAttrCalls != 1 {
		t.Fatalf("expected GetInodeAttributes to forward exactly once, got %d", next.getAttrCalls)
	}
	if len(meter.latency.samples) != 1 {
		t.Fatalf("expected one latency sample, got %d", len(meter.latency.samples))
	}
}

func TestNonMenuOperationForwardsWithoutTouchingInstruments(t *testing.T) {
	next := &recordingFS{}
	meter := newRecordingMeter()
	fs, err := New(next, meter)
	if err != nil {
		t.Fatalf("New: %v", err)
	}

	fs.Access(&fuseops.AccessOp{})

	if len(meter.latency.samples) != 0 {
		t.Fatalf("expected Access to leave the latency histogram untouched, got %d samples", len(meter.latency.samples))
	}
}
