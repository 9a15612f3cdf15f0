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

package kproto

import "unsafe"

// DirentType mirrors the handful of Linux d_type values this filesystem
// ever produces.
type DirentType uint32

const (
	DT_Unknown DirentType = 0
	DT_Dir     DirentType = 4
	DT_Reg     DirentType = 8
)

// Dirent is a single directory entry as returned by Readdir.
type Dirent struct {
	Ino    uint64
	Offset DirOffset
	Name   string
	Type   DirentType
}

// WriteDirent writes d into buf in the format expected in ReaddirOp.Data,
// returning the number of bytes written, or zero if d would not fit.
func WriteDirent(buf []byte, d Dirent) (n int) {
	// fuse_dirent (http://goo.gl/BmFxob), 8-byte aligned per
	// FUSE_DIRENT_ALIGN.
	type fuseDirent struct {
		ino     uint64
		off     uint64
		namelen uint32
		typ     uint32
		name    [0]byte
	}

	const direntAlignment = 8
	const direntSize = 8 + 8 + 4 + 4

	var padLen int
	if len(d.Name)%direntAlignment != 0 {
		padLen = direntAlignment - (len(d.Name) % direntAlignment)
	}

	totalLen := direntSize + len(d.Name) + padLen
	if totalLen > len(buf) {
		return 0
	}

	fd := fuseDirent{
		ino:     d.Ino,
		off:     uint64(d.Offset),
		namelen: uint32(len(d.Name)),
		typ:     uint32(d.Type),
	}

	n += copy(buf[n:], (*[direntSize]byte)(unsafe.Pointer(&fd))[:])
	n += copy(buf[n:], d.Name)
	if padLen != 0 {
		var padding [direntAlignment]byte
		n += copy(buf[n:], padding[:padLen])
	}

	return n
}
