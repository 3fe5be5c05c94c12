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

// Package layerutil holds the small pieces of bookkeeping shared by every
// wrap-and-forward interception layer (fault injection, throttling, tracing,
// metrics): each layer is a fuseutil.FileSystem that embeds
// fuseutil.NotImplementedFileSystem and a "next" fuseutil.FileSystem, and
// every overridden method either replies directly or forwards to next —
// never both.
package layerutil

// DataLen sums the length of a scatter/gather reply buffer, as used by
// ReadFileOp.Data. A metrics layer observing bytes actually read calls this
// on op.Data after forwarding; reading the field afterward is safe even
// though the reply has already been sent, since nothing here mutates it.
func DataLen(data [][]byte) int {
	n := 0
	for _, b := range data {
		n += len(b)
	}
	return n
}
