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

// Package kproto is the kernel request protocol's binding layer: the op
// vocabulary and dispatch loop the daemon is written against. It is
// modeled directly on jacobsa/fuse's fuseops/fuseutil packages (same
// Op/OpHeader/NodeID/HandleID shapes, same per-op-struct convention, same
// goroutine-per-op ServeOps loop) and extended with the Flock, Statfs,
// GetFmap, and GetDaxdev operations this daemon's custom kernel-protocol
// vocabulary needs, none of which exist in the standard library because
// GCS objects (the only backing store the upstream binding was ever
// asked to serve) never needed byte-range locks or direct device maps.
//
// The transport that decodes raw kernel requests into these Op values and
// encodes replies back onto the kernel channel is the "session and
// thread pool" spec item the project takes as an external dependency:
// this package defines the contract such a transport fulfills (the
// Connection interface) rather than parsing /dev/fuse itself.
package kproto

import (
	"time"
)

// NodeID is the kernel-visible identifier for a live inode record. The
// daemon mints these (backed by icache.Handle) and the kernel echoes them
// back in later requests until a matching Forget arrives.
type NodeID uint64

// RootNodeID is the well-known id naming the mount's root entry, valid
// even before any lookup names it explicitly.
const RootNodeID NodeID = 1

// HandleID is an opaque, per-open-file or per-open-directory identifier
// the daemon mints in response to Open/Opendir and that the kernel
// echoes back in Read/Write/Readdir/Release/Releasedir/Flock.
type HandleID uint64

// DirOffset is an opaque cursor into an open directory's entry stream.
type DirOffset uint64

// OpHeader carries the requesting process's credentials, present on
// every op.
type OpHeader struct {
	UID uint32
	GID uint32
	PID uint32
}

// Attr is the attribute set returned for an inode by Lookup, Getattr, and
// Setattr. Mode is a raw POSIX mode_t (type bits plus permission bits),
// matching the shape the shadow metadata codec and the kernel protocol
// both already use, rather than Go's incompatible os.FileMode encoding.
type Attr struct {
	Size  uint64
	Mode  uint32
	Atime time.Time
	Mtime time.Time
	Ctime time.Time
	UID   uint32
	GID   uint32
	Ino   uint64
}

// Extent is a single (offset, length) run in a file-mapping reply.
type Extent struct {
	Offset uint64
	Length uint64
}

// Op is implemented by every request type below. Respond must be called
// exactly once per op, from whichever goroutine ends up handling it.
type Op interface {
	Respond(err error)
}

// opBase is embedded by every concrete op type; RespondFn is supplied by
// the transport that constructed the op and is responsible for encoding
// err (or the op's out fields, on success) back onto the kernel channel.
type opBase struct {
	Header    OpHeader
	RespondFn func(error)
}

func (o *opBase) Respond(err error) {
	if o.RespondFn != nil {
		o.RespondFn(err)
	}
}

// LookupOp resolves a child name within a parent directory.
type LookupOp struct {
	opBase
	Parent NodeID
	Name   string

	// Set by the file system on success.
	Child      NodeID
	Attr       Attr
	Expiration time.Time
}

// GetattrOp refreshes the cached attributes for a node.
type GetattrOp struct {
	opBase
	Node NodeID

	Attr       Attr
	Expiration time.Time
}

// SetattrOp changes mode/uid/gid/mtime for a node. Size changes are
// always rejected by this filesystem (see spec invariants); the field is
// present so the dispatcher can detect and reject the request cleanly
// rather than silently ignoring it.
type SetattrOp struct {
	opBase
	Node NodeID

	Size  *uint64
	Mode  *uint32
	UID   *uint32
	GID   *uint32
	Mtime *time.Time

	Attr Attr
}

// ForgetOp retires nlookup references on Node.
type ForgetOp struct {
	opBase
	Node    NodeID
	Nlookup uint64
}

// OpendirOp opens a directory node for reading.
type OpendirOp struct {
	opBase
	Node NodeID

	Handle HandleID
}

// ReaddirOp reads a chunk of directory entries, kernel-style, starting at
// Offset.
type ReaddirOp struct {
	opBase
	Node   NodeID
	Handle HandleID
	Offset DirOffset
	Size   int

	// Set by the file system: encoded directory entries, consumed by the
	// same convention as fuseutil.AppendDirent.
	Data []byte
}

// ReleasedirOp releases a directory handle minted by OpendirOp.
type ReleasedirOp struct {
	opBase
	Handle HandleID
}

// OpenOp opens a regular file node.
type OpenOp struct {
	opBase
	Node  NodeID
	Flags int

	Handle HandleID
}

// ReadOp reads a byte range from an open file.
type ReadOp struct {
	opBase
	Node   NodeID
	Handle HandleID
	Offset int64
	Size   int

	Data []byte
}

// WriteOp writes a byte range to an open file. This filesystem refuses
// all writes; the op exists so the dispatcher can answer it explicitly.
type WriteOp struct {
	opBase
	Node   NodeID
	Handle HandleID
	Offset int64
	Data   []byte
}

// FlushOp corresponds to close(2)/fflush-style synchronization requests.
type FlushOp struct {
	opBase
	Node   NodeID
	Handle HandleID
}

// FsyncOp corresponds to fsync(2)/fdatasync(2).
type FsyncOp struct {
	opBase
	Node   NodeID
	Handle HandleID
}

// ReleaseOp releases a file handle minted by OpenOp.
type ReleaseOp struct {
	opBase
	Handle HandleID
}

// FlockType names the advisory lock operation requested.
type FlockType int

const (
	FlockShared FlockType = iota
	FlockExclusive
	FlockUnlock
)

// FlockOp requests or releases a whole-file advisory lock (flock(2)).
type FlockOp struct {
	opBase
	Node   NodeID
	Handle HandleID
	Type   FlockType
}

// StatfsOp corresponds to statfs(2)/fstatfs(2) on the mount.
type StatfsOp struct {
	opBase
	Node NodeID

	Blocks  uint64
	Bfree   uint64
	Bavail  uint64
	Files   uint64
	Ffree   uint64
	Bsize   uint32
	Namelen uint32
	Frsize  uint32
}

// GetFmapOp is the custom operation letting the kernel client learn the
// DAX extents backing a regular file's contents.
type GetFmapOp struct {
	opBase
	Node  NodeID
	Index int

	// Set by the file system on success.
	Extents []Extent
}

// GetDaxdevOp is the custom operation letting the kernel client learn
// which DAX device backs a given table index.
type GetDaxdevOp struct {
	opBase
	Index int

	// Set by the file system on success.
	DeviceName string
}

// UnsupportedOp stands in for any of the write-path operations this
// filesystem permanently refuses: mknod, mkdir, rmdir, unlink, symlink,
// link, rename, create, fallocate, readlink. Name identifies which one
// was requested, for logging; the daemon never needs more detail than
// that because every one of them gets the same reply.
type UnsupportedOp struct {
	opBase
	Name string
}
