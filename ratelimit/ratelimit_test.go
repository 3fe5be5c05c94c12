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

package ratelimit

import (
	"testing"
	"time"

	"github.com/interposefs/interposefs/fuseops"
	"github.com/interposefs/interposefs/fuseutil"
)

type recordingFS struct {
	fuseutil.NotImplementedFileSystem
	readFileCalls  int
	writeFileCalls int
}

func (r *recordingFS) ReadFile(op *fuseops.ReadFileOp) {
	r.readFileCalls++
	op.Respond(nil)
}

func (r *recordingFS) WriteFile(op *fuseops.WriteFileOp) {
	r.writeFileCalls++
	op.Respond(nil)
}

func TestNewRejectsNonPositiveCapacityOrRate(t *testing.T) {
	next := &recordingFS{}
	if _, err := NewThrottleLayer(next, Config{ReadCapacity: 0, ReadRate: 1, WriteCapacity: 1, WriteRate: 1}); err == nil {
		t.Fatalf("expected an error for a zero read capacity")
	}
	if _, err := NewThrottleLayer(next, Config{ReadCapacity: 1, ReadRate: 1, WriteCapacity: 1, WriteRate: 0}); err == nil {
		t.Fatalf("expected an error for a zero write rate")
	}
}

func TestReadWithinCapacityForwardsWithoutBlocking(t *testing.T) {
	next := &recordingFS{}
	fs, err := NewThrottleLayer(next, Config{
		ReadCapacity: 4096, ReadRate: 4096,
		WriteCapacity: 4096, WriteRate: 4096,
		Interval: 10 * time.Millisecond,
	})
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	defer fs.Close()

	op := &fuseops.ReadFileOp{Size: 100}

	done := make(chan struct{})
	go func() {
		fs.ReadFile(op)
		close(done)
	}()

	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatalf("ReadFile blocked despite ample capacity")
	}

	if next.readFileCalls != 1 {
		t.Fatalf("expected ReadFile to forward exactly once, got %d", next.readFileCalls)
	}
}

func TestWriteConsumesTheRequestedByteCount(t *testing.T) {
	next := &recordingFS{}
	fs, err := NewThrottleLayer(next, Config{
		ReadCapacity: 10, ReadRate: 10,
		WriteCapacity: 10, WriteRate: 10,
		Interval: 10 * time.Millisecond,
	})
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	defer fs.Close()

	op := &fuseops.WriteFileOp{Data: make([]byte, 10)}
	fs.WriteFile(op)

	fs.writeBucket.mu.Lock()
	remaining := fs.writeBucket.count
	fs.writeBucket.mu.Unlock()

	if remaining != 0 {
		t.Fatalf("expected the write bucket to be drained to 0, got %d", remaining)
	}
	if next.writeFileCalls != 1 {
		t.Fatalf("expected WriteFile to forward exactly once, got %d", next.writeFileCalls)
	}
}

func TestReadBlocksUntilBucketReplenishes(t *testing.T) {
	next := &recordingFS{}
	fs, err := NewThrottleLayer(next, Config{
		ReadCapacity: 10, ReadRate: 10,
		WriteCapacity: 10, WriteRate: 10,
		Interval: 20 * time.Millisecond,
	})
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	defer fs.Close()

	// Drain the read bucket directly, then issue a read that must wait for
	// the background ticker (a real one here) to replenish it.
	fs.readBucket.Consume(10)

	start := time.Now()
	op := &fuseops.ReadFileOp{Size: 5}
	fs.ReadFile(op)
	elapsed := time.Since(start)

	if elapsed < 10*time.Millisecond {
		t.Fatalf("expected ReadFile to wait for at least one replenishment tick, waited %s", elapsed)
	}
	if next.readFileCalls != 1 {
		t.Fatalf("expected exactly one forwarded ReadFile, got %d", next.readFileCalls)
	}
}
