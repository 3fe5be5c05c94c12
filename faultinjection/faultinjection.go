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

// Package faultinjection wraps a fuseutil.FileSystem with a layer that
// randomly injects errors, delays, and read/write truncation, for
// chaos-testing callers of the mounted filesystem.
package faultinjection

import (
	"errors"
	"fmt"
	"math/rand"
	"sync"
	"time"

	"github.com/jacobsa/timeutil"

	"github.com/interposefs/interposefs/fuseops"
	"github.com/interposefs/interposefs/fuseutil"
)

// truncatedReadBounds is the shortened-size range a truncated read reply
// falls into. The range itself comes from the original implementation this
// behavior is preserved from and is arbitrary; kept as a named policy knob
// rather than re-derived.
type truncatedReadBounds struct {
	Min, Max int
}

var readTruncation = truncatedReadBounds{Min: 5, Max: 14}

// maxReadOffsetShift bounds how far a truncated read's starting offset is
// shifted forward of the one requested.
const maxReadOffsetShift = 10

// Config carries the randomised-fault parameters (spec §4.4).
type Config struct {
	// FileFailRate is F_f: probability 1/FileFailRate per independent
	// check on a file operation. Zero disables file-operation faults.
	FileFailRate int

	// DirFailRate is F_d, the directory-operation equivalent.
	DirFailRate int

	// Delay is D, the sleep duration for a delay fault.
	Delay time.Duration

	// UseSeed selects a fixed seed (Seed) over a time-derived one.
	UseSeed bool
	Seed    int64

	// LogPath is the destination for the plain-text fault ledger. Empty
	// disables the ledger; failure to open or write it never fails the
	// enclosing request (spec §7, §9).
	LogPath string

	// Clock supplies both the log line timestamp and, when UseSeed is
	// false, the RNG seed. Defaults to timeutil.RealClock().
	Clock timeutil.Clock
}

// Event is a structured record of one sampled fault, suitable for a
// tracing layer to attach to the span of the call it occurred within (spec
// §4.4's "ordering": a single call may emit more than one).
type Event struct {
	Op     string
	Kind   string // "error", "delay", "truncation"
	Inode  fuseops.InodeID
	Time   time.Time
	Detail string
}

// EventSink receives every Event as it is sampled. The default sink
// discards events; a tracing layer installed above this one can supply its
// own via WithEventSink.
type EventSink interface {
	Emit(Event)
}

type discardSink struct{}

func (discardSink) Emit(Event) {}

// FS is the fault-injection FileSystem layer: it overrides the operations
// spec §4.4 names a fault menu for and forwards everything else (and,
// after sampling, the menu operations themselves) to next unmodified.
type FS struct {
	fuseutil.NotImplementedFileSystem

	next fuseutil.FileSystem
	cfg  Config

	sink EventSink

	mu  sync.Mutex
	rng *rand.Rand

	ledger *faultLedger
}

var _ fuseutil.FileSystem = (*FS)(nil)

// New returns a fault-injection layer forwarding to next. It errors only on
// an invalid configuration (negative fail rate); a problem opening the
// fault log is never an error here, per spec §9.
func New(next fuseutil.FileSystem, cfg Config) (*FS, error) {
	if cfg.FileFailRate < 0 || cfg.DirFailRate < 0 {
		return nil, errors.New("faultinjection: fail rate must be >= 0")
	}
	if cfg.Clock == nil {
		cfg.Clock = timeutil.RealClock()
	}

	var seed int64
	if cfg.UseSeed {
		seed = cfg.Seed
	} else {
		seed = cfg.Clock.Now().UnixNano()
	}

	return &FS{
		next:   next,
		cfg:    cfg,
		sink:   discardSink{},
		rng:    rand.New(rand.NewSource(seed)),
		ledger: newFaultLedger(cfg.LogPath, cfg.Clock),
	}, nil
}

// WithEventSink installs sink as the destination for sampled-fault events,
// replacing the default no-op sink. Intended for a tracing layer stacked
// above this one.
func (fs *FS) WithEventSink(sink EventSink) *FS {
	if sink != nil {
		fs.sink = sink
	}
	return fs
}

////////////////////////////////////////////////////////////////////////
// Sampling
////////////////////////////////////////////////////////////////////////

// hit reports whether a 1-in-oneInN die rolled a hit. oneInN <= 0 disables
// the check entirely (never hits).
func (fs *FS) hit(oneInN int) bool {
	if oneInN <= 0 {
		return false
	}
	fs.mu.Lock()
	defer fs.mu.Unlock()
	return fs.rng.Intn(oneInN) == 0
}

func (fs *FS) intn(n int) int {
	fs.mu.Lock()
	defer fs.mu.Unlock()
	return fs.rng.Intn(n)
}

func (fs *FS) record(op, kind string, inode fuseops.InodeID, detail string) {
	ev := Event{Op: op, Kind: kind, Inode: inode, Time: fs.cfg.Clock.Now(), Detail: detail}
	fs.sink.Emit(ev)
	if kind == "error" {
		fs.ledger.write(op, detail, inode)
	}
}

// abruptExit samples the abrupt-exit die for op at rate; on a hit it
// records the fault and returns true without responding. The caller then
// responds with err itself and must not forward (spec §4.3:
// "a method that replies with an error must not also forward").
func (fs *FS) abruptExit(op string, inode fuseops.InodeID, rate int, err error) bool {
	if !fs.hit(rate) {
		return false
	}
	fs.record(op, "error", inode, err.Error())
	return true
}

// delay samples the delay die for op at rate; on a hit it sleeps for
// cfg.Delay and records the fault.
func (fs *FS) delay(op string, inode fuseops.InodeID, rate int) {
	if fs.cfg.Delay <= 0 || !fs.hit(rate) {
		return
	}
	time.Sleep(fs.cfg.Delay)
	fs.record(op, "delay", inode, fmt.Sprintf("slept %s", fs.cfg.Delay))
}

// truncatedReadSize picks a shortened size within readTruncation's bounds.
func (fs *FS) truncatedReadSize() int {
	span := readTruncation.Max - readTruncation.Min
	if span <= 0 {
		return readTruncation.Min
	}
	return readTruncation.Min + fs.intn(span+1)
}
