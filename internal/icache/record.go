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

package icache

import (
	"time"

	"github.com/shadowfs/shadowfsd/internal/shadowmeta"
)

// Handle is the kernel-visible "nodeid": an opaque, process-unique,
// non-reused identifier for a live Record.
//
// The original handles-as-addresses pattern (spec 9) is not used here:
// Go's runtime gives no guarantee against relocation that a raw pointer
// value could rely on the way the C original does, and the teacher's own
// analogous field (fuseops.InodeID, fs.nextInodeID) is already a simple
// monotonic counter handed out under the same mutex that owns the record
// map. A Handle is only ever resolved by looking it up in the Icache's
// map, exactly like the original scheme (a stale handle is "not found",
// never a dangling dereference) — the identifier's origin (pointer vs.
// counter) doesn't change that contract.
type Handle uint64

// RootHandle is the well-known handle the kernel request protocol uses to
// name the mount's root entry before any lookup has occurred.
const RootHandle Handle = 1

// Kind is the type of filesystem object a Record stands in for.
type Kind int

const (
	KindInvalid Kind = iota
	KindDirectory
	KindRegularFile
)

// Attr is the cached attribute record returned by getattr/lookup/setattr.
type Attr struct {
	Mode    uint32
	UID     uint32
	GID     uint32
	Size    uint64
	Atime   time.Time
	Mtime   time.Time
	Ctime   time.Time
	Dev     uint64
	Rdev    uint64
	Blksize int64
	Blocks  int64
	Ino     uint64
}

// Record is the central icache entity: one per live shadow-tree entry the
// daemon has told the kernel about.
type Record struct {
	// Constant for the life of the record.
	handle Handle
	ino    uint64
	dev    uint64
	kind   Kind
	name   string
	parent *Record // owns one reference on parent; nil only for root

	// openFD is set once at allocation and never mutated afterward: a
	// directory fd (opened O_DIRECTORY|O_RDONLY) kept open for the
	// record's life, or -1 for regular files. Because it never changes after Allocate, reading it
	// needs no lock.
	openFD int

	// Mutable; every field below is GUARDED_BY the owning Icache's mu.
	attr      Attr
	fmeta     *shadowmeta.Meta
	refcount  uint64
	pinned    bool
	flockHeld bool
}

// Handle returns the record's stable nodeid. Immutable; safe unlocked.
func (r *Record) Handle() Handle { return r.handle }

// Ino returns the shadow-filesystem inode number. Immutable; safe unlocked.
func (r *Record) Ino() uint64 { return r.ino }

// Dev returns the shadow-filesystem device id. Immutable; safe unlocked.
func (r *Record) Dev() uint64 { return r.dev }

// Kind returns the record's type. Immutable; safe unlocked.
func (r *Record) Kind() Kind { return r.kind }

// Name returns the final path component in the parent directory.
// Immutable; safe unlocked.
func (r *Record) Name() string { return r.name }

// Parent returns the back-reference to the parent record, or nil for root.
// Immutable; safe unlocked.
func (r *Record) Parent() *Record { return r.parent }

// OpenFD returns the directory file descriptor (directories only, else
// -1). Immutable after allocation; safe unlocked.
func (r *Record) OpenFD() int { return r.openFD }
