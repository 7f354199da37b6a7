// Copyright the wasivfs Authors.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package wasip1

import "encoding/binary"

// byteOrder is little-endian on every target wasivfs runs on: wasm32 and
// wasm64 are both little-endian, and so is every host this package's
// test stand-in runs on in practice.
var byteOrder = binary.LittleEndian
