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

package passthrough

import (
	"os"
	"testing"

	"golang.org/x/sys/unix"

	"github.com/interposefs/interposefs/fuseops"
)

func TestModeFromStatType(t *testing.T) {
	cases := []struct {
		name string
		raw  uint32
		want os.FileMode
	}{
		{"regular", unix.S_IFREG | 0644, 0644},
		{"directory", unix.S_IFDIR | 0755, os.ModeDir | 0755},
		{"symlink", unix.S_IFLNK | 0777, os.ModeSymlink | 0777},
		{"setuid", unix.S_IFREG | unix.S_ISUID | 0755, os.ModeSetuid | 0755},
	}

	for _, c := range cases {
		got := modeFromStatType(c.raw)
		if got != c.want {
			t.Errorf("%s: modeFromStatType(%#o) = %v, want %v", c.name, c.raw, got, c.want)
		}
	}
}

func TestDecrLookupClampsAtZero(t *testing.T) {
	in := newInode(0, inodeKey{}, false)
	// newInode starts the count at 1; forgetting far more than that must
	// clamp rather than underflow into a huge unsigned count.
	if reachedZero := in.decrLookup(50); !reachedZero {
		t.Fatalf("decrLookup(50) on a lookup count of 1: got reachedZero=false, want true")
	}
	if in.lookupCount != 0 {
		t.Fatalf("lookupCount after overshoot forget = %d, want 0", in.lookupCount)
	}
}

func TestIncrThenDecrLookupRoundTrips(t *testing.T) {
	in := newInode(0, inodeKey{}, false)
	in.incrLookup(2) // count is now 3: one from newInode, two from this call

	if reachedZero := in.decrLookup(2); reachedZero {
		t.Fatalf("decrLookup(2) of 3: got reachedZero=true, want false")
	}
	if reachedZero := in.decrLookup(1); !reachedZero {
		t.Fatalf("decrLookup(1) of the remaining 1: got reachedZero=false, want true")
	}
}

func TestRootReportsTheDistinguishedID(t *testing.T) {
	in := newInode(0, inodeKey{}, true)
	in.isRoot = true
	if got := in.ID(); got != fuseops.RootInodeID {
		t.Fatalf("root Inode.ID() = %v, want %v", got, fuseops.RootInodeID)
	}
}
