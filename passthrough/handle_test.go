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

import "testing"

func TestHandleTableIDsAreUniqueAcrossFilesAndDirs(t *testing.T) {
	ht := newHandleTable()

	fileID := ht.putFile(0, 0)
	dirID := ht.putDir(0)

	if fileID == dirID {
		t.Fatalf("file and dir handles collided on id %v", fileID)
	}

	if _, ok := ht.getFile(fileID); !ok {
		t.Fatalf("getFile(%v) missing after putFile", fileID)
	}
	if _, ok := ht.getDir(dirID); !ok {
		t.Fatalf("getDir(%v) missing after putDir", dirID)
	}
}

func TestDropFileRemovesItFromTheTable(t *testing.T) {
	ht := newHandleTable()
	id := ht.putFile(0, 0)

	if _, ok := ht.dropFile(id); !ok {
		t.Fatalf("dropFile(%v) reported missing on first call", id)
	}
	if _, ok := ht.getFile(id); ok {
		t.Fatalf("getFile(%v) still found a handle after dropFile", id)
	}
	if _, ok := ht.dropFile(id); ok {
		t.Fatalf("dropFile(%v) succeeded twice", id)
	}
}

func TestDropDirRemovesItFromTheTable(t *testing.T) {
	ht := newHandleTable()
	id := ht.putDir(0)

	if _, ok := ht.dropDir(id); !ok {
		t.Fatalf("dropDir(%v) reported missing on first call", id)
	}
	if _, ok := ht.getDir(id); ok {
		t.Fatalf("getDir(%v) still found a handle after dropDir", id)
	}
}
