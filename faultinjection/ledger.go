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

package faultinjection

import (
	"fmt"
	"io"
	"os"
	"sync"

	"github.com/jacobsa/timeutil"
	"gopkg.in/natefinch/lumberjack.v2"

	"github.com/interposefs/interposefs/fuseops"
)

// faultLedger appends one plain-text line per injected error to LogPath
// (spec §4.4's "Log record format"). The path may not exist or be
// writable; a write failure is reported to stderr exactly once and then
// the ledger disables itself for the rest of the session (spec §7, §9):
// the enclosing request is never failed on account of the ledger.
type faultLedger struct {
	clock timeutil.Clock

	mu     sync.Mutex
	w      io.Writer // nil if disabled (no path configured, or a prior write failed)
	warned bool
}

func newFaultLedger(path string, clock timeutil.Clock) *faultLedger {
	l := &faultLedger{clock: clock}
	if path != "" {
		l.w = &lumberjack.Logger{Filename: path}
	}
	return l
}

// write appends one line: "[YYYY-MM-DD HH:MM:SS] ERROR: <op>: <message>.
// Inode Number: <n>".
func (l *faultLedger) write(op, message string, inode fuseops.InodeID) {
	l.mu.Lock()
	defer l.mu.Unlock()

	if l.w == nil {
		return
	}

	ts := l.clock.Now().Format("2006-01-02 15:04:05")
	line := fmt.Sprintf("[%s] ERROR: %s: %s. Inode Number: %d\n", ts, op, message, inode)

	if _, err := io.WriteString(l.w, line); err != nil {
		if !l.warned {
			fmt.Fprintf(os.Stderr, "faultinjection: fault log write failed, disabling ledger: %v\n", err)
			l.warned = true
		}
		l.w = nil
	}
}
