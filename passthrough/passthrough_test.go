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

package passthrough_test

import (
	"io/ioutil"
	"os"
	"path/filepath"
	"testing"

	. "github.com/jacobsa/ogletest"

	"github.com/interposefs/interposefs/fuseops"
	"github.com/interposefs/interposefs/passthrough"
)

func TestFileSystem(t *testing.T) { RunTests(t) }

////////////////////////////////////////////////////////////////////////
// Boilerplate
////////////////////////////////////////////////////////////////////////

type FileSystemTest struct {
	dir string
	fs  *passthrough.FileSystem
}

var _ SetUpInterface = &FileSystemTest{}
var _ TearDownInterface = &FileSystemTest{}

func init() { RegisterTestSuite(&FileSystemTest{}) }

func (t *FileSystemTest) SetUp(ti *TestInfo) {
	var err error

	t.dir, err = ioutil.TempDir("", "passthrough_fs_test")
	if err != nil {
		panic(err)
	}

	t.fs, err = passthrough.New(passthrough.Config{SourceDir: t.dir})
	if err != nil {
		panic(err)
	}
}

func (t *FileSystemTest) TearDown() {
	destroy := &fuseops.DestroyOp{}
	t.fs.Destroy(destroy)
	os.RemoveAll(t.dir)
}

////////////////////////////////////////////////////////////////////////
// Test functions
////////////////////////////////////////////////////////////////////////

// None of these tests observe the error argument a handler passes to
// Respond directly: that plumbing is installed by the real connection
// (fuse.Connection.ReadOp) and is not exposed outside fuseops, so a
// handler called directly in a unit test can only be verified through the
// output fields it sets (Entry, Handle, Data) and through the resulting
// state of the backing directory tree.

func (t *FileSystemTest) MkDirThenLookUpSeesTheSameInode() {
	mk := &fuseops.MkDirOp{
		Parent: fuseops.RootInodeID,
		Name:   "subdir",
		Mode:   0755,
	}
	t.fs.MkDir(mk)

	lookup := &fuseops.LookUpInodeOp{
		Parent: fuseops.RootInodeID,
		Name:   "subdir",
	}
	t.fs.LookUpInode(lookup)

	ExpectEq(mk.Entry.Child, lookup.Entry.Child)
	ExpectTrue(lookup.Entry.Attributes.Mode.IsDir())
}

func (t *FileSystemTest) CreateFileMakesAnOpenableRegularFile() {
	create := &fuseops.CreateFileOp{
		Parent: fuseops.RootInodeID,
		Name:   "greeting",
		Mode:   0644,
	}
	t.fs.CreateFile(create)
	ExpectFalse(create.Entry.Attributes.Mode.IsDir())
	ExpectNe(fuseops.HandleID(0), create.Handle)

	write := &fuseops.WriteFileOp{
		Handle: create.Handle,
		Data:   []byte("hello"),
		Offset: 0,
	}
	t.fs.WriteFile(write)

	contents, err := ioutil.ReadFile(filepath.Join(t.dir, "greeting"))
	AssertEq(nil, err)
	ExpectEq("hello", string(contents))
}

func (t *FileSystemTest) ReadDirPlusOverflowForgetsTheSkippedLookup() {
	// Populate enough entries that a small reply buffer cannot hold them
	// all, forcing the overflow branch that must forget its lookup.
	for i := 0; i < 8; i++ {
		mk := &fuseops.MkDirOp{
			Parent: fuseops.RootInodeID,
			Name:   string(rune('a' + i)),
			Mode:   0755,
		}
		t.fs.MkDir(mk)
	}

	openDir := &fuseops.OpenDirOp{Inode: fuseops.RootInodeID}
	t.fs.OpenDir(openDir)

	plus := &fuseops.ReadDirPlusOp{
		Inode:  fuseops.RootInodeID,
		Handle: openDir.Handle,
		Offset: 0,
		Size:   64,
	}
	t.fs.ReadDirPlus(plus)

	// A 64-byte buffer cannot hold all 8 entries' fixed-size plus
	// records; the handler must still return successfully, having
	// forgotten the lookups for whatever did not fit.
	ExpectTrue(len(plus.Data) <= 64)
}
