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

func TestInodeTable(t *testing.T) { RunTests(t) }

////////////////////////////////////////////////////////////////////////
// Boilerplate
////////////////////////////////////////////////////////////////////////

type InodeTableTest struct {
	dir   string
	table *passthrough.InodeTable
}

var _ SetUpInterface = &InodeTableTest{}
var _ TearDownInterface = &InodeTableTest{}

func init() { RegisterTestSuite(&InodeTableTest{}) }

func (t *InodeTableTest) SetUp(ti *TestInfo) {
	var err error

	t.dir, err = ioutil.TempDir("", "passthrough_table_test")
	if err != nil {
		panic(err)
	}

	if err = ioutil.WriteFile(filepath.Join(t.dir, "foo"), []byte("hello"), 0644); err != nil {
		panic(err)
	}
	if err = os.Mkdir(filepath.Join(t.dir, "bar"), 0755); err != nil {
		panic(err)
	}

	t.table, err = passthrough.NewInodeTable(t.dir)
	if err != nil {
		panic(err)
	}
}

func (t *InodeTableTest) TearDown() {
	t.table.Destroy()
	os.RemoveAll(t.dir)
}

////////////////////////////////////////////////////////////////////////
// Test functions
////////////////////////////////////////////////////////////////////////

func (t *InodeTableTest) RootResolvesToTheDistinguishedIdentifier() {
	root, ok := t.table.Resolve(fuseops.RootInodeID)
	AssertTrue(ok)
	ExpectEq(fuseops.RootInodeID, root.ID())
	ExpectTrue(root.IsDir())
}

func (t *InodeTableTest) LookupOfTheSameNameTwiceReturnsTheSameIdentifier() {
	root, ok := t.table.Resolve(fuseops.RootInodeID)
	AssertTrue(ok)

	first, err := t.table.Lookup(root, "foo")
	AssertEq(nil, err)

	second, err := t.table.Lookup(root, "foo")
	AssertEq(nil, err)

	ExpectEq(first.ID(), second.ID())
	ExpectFalse(first.IsDir())
}

func (t *InodeTableTest) LookupOfADirectorySetsIsDir() {
	root, ok := t.table.Resolve(fuseops.RootInodeID)
	AssertTrue(ok)

	in, err := t.table.Lookup(root, "bar")
	AssertEq(nil, err)
	ExpectTrue(in.IsDir())
}

func (t *InodeTableTest) LookupOfAMissingNameReturnsAnError() {
	root, ok := t.table.Resolve(fuseops.RootInodeID)
	AssertTrue(ok)

	_, err := t.table.Lookup(root, "enoent")
	ExpectNe(nil, err)
}

func (t *InodeTableTest) ForgetAfterTwoLookupsRequiresTwoCountsToRemove() {
	root, ok := t.table.Resolve(fuseops.RootInodeID)
	AssertTrue(ok)

	first, err := t.table.Lookup(root, "foo")
	AssertEq(nil, err)
	_, err = t.table.Lookup(root, "foo")
	AssertEq(nil, err)

	id := first.ID()

	// One pending lookup remains; the id must still resolve.
	t.table.Forget(id, 1)
	_, ok = t.table.Resolve(id)
	ExpectTrue(ok)

	// The second forget drops the last reference.
	t.table.Forget(id, 1)
	_, ok = t.table.Resolve(id)
	ExpectFalse(ok)
}

func (t *InodeTableTest) ForgetToleratesAnUnknownIdentifier() {
	// Never looked up, so this id names nothing; Forget must not panic.
	t.table.Forget(fuseops.InodeID(0xdeadbeef), 1)
}

func (t *InodeTableTest) ForgetToleratesACountLargerThanTheLookupCount() {
	root, ok := t.table.Resolve(fuseops.RootInodeID)
	AssertTrue(ok)

	in, err := t.table.Lookup(root, "foo")
	AssertEq(nil, err)

	id := in.ID()

	// Only one lookup is outstanding; forgetting 100 must still just
	// remove the record rather than underflowing or panicking.
	t.table.Forget(id, 100)
	_, ok = t.table.Resolve(id)
	ExpectFalse(ok)
}

func (t *InodeTableTest) ForgetMultiAppliesEveryEntry() {
	root, ok := t.table.Resolve(fuseops.RootInodeID)
	AssertTrue(ok)

	foo, err := t.table.Lookup(root, "foo")
	AssertEq(nil, err)
	bar, err := t.table.Lookup(root, "bar")
	AssertEq(nil, err)

	t.table.ForgetMulti([]fuseops.ForgetInodeEntry{
		{Inode: foo.ID(), N: 1},
		{Inode: bar.ID(), N: 1},
	})

	_, ok = t.table.Resolve(foo.ID())
	ExpectFalse(ok)
	_, ok = t.table.Resolve(bar.ID())
	ExpectFalse(ok)
}

func (t *InodeTableTest) ForgetOfTheRootIDIsANoOp() {
	// The root is never inserted into the table's maps; forgetting it
	// must not be mistaken for an unknown-id case that panics.
	t.table.Forget(fuseops.RootInodeID, 1)
	root, ok := t.table.Resolve(fuseops.RootInodeID)
	ExpectTrue(ok)
	ExpectEq(fuseops.RootInodeID, root.ID())
}
