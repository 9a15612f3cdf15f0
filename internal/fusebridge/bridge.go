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

// Package fusebridge adapts shadowfs.ShadowFS, which is written against
// this daemon's own kproto op vocabulary, onto the real fuseutil.FileSystem
// interface so it can be served over an actual kernel mount via
// fuse.Mount. Every op fuseutil.FileSystem defines has a direct kproto
// counterpart and is translated one-to-one below.
//
// The kproto vocabulary also defines Flock, Statfs, GetFmap, and
// GetDaxdev, none of which fuseutil.FileSystem (and the fuseops request
// types it dispatches) has any equivalent for: the vendored jacobsa/fuse
// transport exposes no ioctl request type at all, which is how the
// original famfs daemon this one is modeled on serves those four calls.
// They remain reachable only through kproto.Connection directly (and the
// shadowfs test suite, which drives it exactly that way); a real kernel
// mount through this bridge cannot reach them. See DESIGN.md.
package fusebridge

import (
	"os"

	"github.com/jacobsa/fuse/fuseops"
	"github.com/shadowfs/shadowfsd/internal/kproto"
	"github.com/shadowfs/shadowfsd/internal/shadowfs"
)

// Target is the subset of *shadowfs.ShadowFS the bridge drives. Every
// method is synchronous: it mutates its op's out fields and calls
// op.Respond before returning, exactly the contract kproto.Op documents.
type Target interface {
	Lookup(*kproto.LookupOp)
	Getattr(*kproto.GetattrOp)
	Setattr(*kproto.SetattrOp)
	Forget(*kproto.ForgetOp)
	Opendir(*kproto.OpendirOp)
	Readdir(*kproto.ReaddirOp)
	Releasedir(*kproto.ReleasedirOp)
	Open(*kproto.OpenOp)
	Read(*kproto.ReadOp)
	Write(*kproto.WriteOp)
	Flush(*kproto.FlushOp)
	Fsync(*kproto.FsyncOp)
	Release(*kproto.ReleaseOp)
	Unsupported(*kproto.UnsupportedOp)
}

var _ Target = (*shadowfs.ShadowFS)(nil)

// Bridge implements fuseutil.FileSystem by translating each real op into
// its kproto equivalent, invoking the wrapped Target, and copying the
// result back.
type Bridge struct {
	fs Target
}

// New returns a Bridge serving fs over a real kernel mount.
func New(fs Target) *Bridge {
	return &Bridge{fs: fs}
}

func (b *Bridge) Init(op *fuseops.InitOp) {
	op.Respond(nil)
}

func toFuseAttr(a kproto.Attr) fuseops.InodeAttributes {
	return fuseops.InodeAttributes{
		Size:  a.Size,
		Nlink: 1,
		Mode:  os.FileMode(a.Mode&07777) | modeTypeBits(a.Mode),
		Atime: a.Atime,
		Mtime: a.Mtime,
		Ctime: a.Ctime,
		Uid:   a.UID,
		Gid:   a.GID,
	}
}

// modeTypeBits maps the POSIX S_IFDIR/S_IFREG type bits kproto.Attr.Mode
// carries onto the os.FileMode bits fuseops.InodeAttributes expects.
func modeTypeBits(raw uint32) os.FileMode {
	const sIFDIR = 0040000
	if raw&0170000 == sIFDIR {
		return os.ModeDir
	}
	return 0
}

func (b *Bridge) LookUpInode(op *fuseops.LookUpInodeOp) {
	kop := &kproto.LookupOp{Parent: kproto.NodeID(op.Parent), Name: op.Name}
	var err error
	kop.RespondFn = func(e error) { err = e }
	b.fs.Lookup(kop)

	if err == nil {
		op.Entry = fuseops.ChildInodeEntry{
			Child:                fuseops.InodeID(kop.Child),
			Attributes:           toFuseAttr(kop.Attr),
			AttributesExpiration: kop.Expiration,
			EntryExpiration:      kop.Expiration,
		}
	}
	op.Respond(err)
}

func (b *Bridge) GetInodeAttributes(op *fuseops.GetInodeAttributesOp) {
	kop := &kproto.GetattrOp{Node: kproto.NodeID(op.Inode)}
	var err error
	kop.RespondFn = func(e error) { err = e }
	b.fs.Getattr(kop)

	if err == nil {
		op.Attributes = toFuseAttr(kop.Attr)
		op.AttributesExpiration = kop.Expiration
	}
	op.Respond(err)
}

func (b *Bridge) SetInodeAttributes(op *fuseops.SetInodeAttributesOp) {
	kop := &kproto.SetattrOp{Node: kproto.NodeID(op.Inode), Size: op.Size}
	if op.Mode != nil {
		m := uint32(op.Mode.Perm())
		kop.Mode = &m
	}
	if op.Mtime != nil {
		kop.Mtime = op.Mtime
	}

	var err error
	kop.RespondFn = func(e error) { err = e }
	b.fs.Setattr(kop)

	if err == nil {
		op.Attributes = toFuseAttr(kop.Attr)
	}
	op.Respond(err)
}

func (b *Bridge) ForgetInode(op *fuseops.ForgetInodeOp) {
	kop := &kproto.ForgetOp{Node: kproto.NodeID(op.ID), Nlookup: 1}
	var err error
	kop.RespondFn = func(e error) { err = e }
	b.fs.Forget(kop)
	op.Respond(err)
}

func (b *Bridge) MkDir(op *fuseops.MkDirOp)                   { b.refuse(op, "mkdir") }
func (b *Bridge) CreateFile(op *fuseops.CreateFileOp)         { b.refuse(op, "create") }
func (b *Bridge) CreateSymlink(op *fuseops.CreateSymlinkOp)   { b.refuse(op, "symlink") }
func (b *Bridge) RmDir(op *fuseops.RmDirOp)                   { b.refuse(op, "rmdir") }
func (b *Bridge) Unlink(op *fuseops.UnlinkOp)                 { b.refuse(op, "unlink") }

// responder is satisfied by every fuseops.*Op type; used so refuse can
// serve the several mutating ops that all answer the same way without
// repeating the translate-dispatch-respond boilerplate per op type.
type responder interface {
	Respond(error)
}

func (b *Bridge) refuse(op responder, name string) {
	kop := &kproto.UnsupportedOp{Name: name}
	var err error
	kop.RespondFn = func(e error) { err = e }
	b.fs.Unsupported(kop)
	op.Respond(err)
}

func (b *Bridge) OpenDir(op *fuseops.OpenDirOp) {
	kop := &kproto.OpendirOp{Node: kproto.NodeID(op.Inode)}
	var err error
	kop.RespondFn = func(e error) { err = e }
	b.fs.Opendir(kop)

	if err == nil {
		op.Handle = fuseops.HandleID(kop.Handle)
	}
	op.Respond(err)
}

func (b *Bridge) ReadDir(op *fuseops.ReadDirOp) {
	kop := &kproto.ReaddirOp{
		Node:   kproto.NodeID(op.Inode),
		Handle: kproto.HandleID(op.Handle),
		Offset: kproto.DirOffset(op.Offset),
		Size:   op.Size,
	}
	var err error
	kop.RespondFn = func(e error) { err = e }
	b.fs.Readdir(kop)

	if err == nil {
		op.Data = kop.Data
	}
	op.Respond(err)
}

func (b *Bridge) ReleaseDirHandle(op *fuseops.ReleaseDirHandleOp) {
	kop := &kproto.ReleasedirOp{Handle: kproto.HandleID(op.Handle)}
	var err error
	kop.RespondFn = func(e error) { err = e }
	b.fs.Releasedir(kop)
	op.Respond(err)
}

func (b *Bridge) OpenFile(op *fuseops.OpenFileOp) {
	kop := &kproto.OpenOp{Node: kproto.NodeID(op.Inode), Flags: int(op.Flags)}
	var err error
	kop.RespondFn = func(e error) { err = e }
	b.fs.Open(kop)

	if err == nil {
		op.Handle = fuseops.HandleID(kop.Handle)
	}
	op.Respond(err)
}

func (b *Bridge) ReadFile(op *fuseops.ReadFileOp) {
	kop := &kproto.ReadOp{
		Node:   kproto.NodeID(op.Inode),
		Handle: kproto.HandleID(op.Handle),
		Offset: op.Offset,
		Size:   op.Size,
	}
	var err error
	kop.RespondFn = func(e error) { err = e }
	b.fs.Read(kop)

	if err == nil {
		op.Data = kop.Data
	}
	op.Respond(err)
}

func (b *Bridge) WriteFile(op *fuseops.WriteFileOp) {
	kop := &kproto.WriteOp{
		Node:   kproto.NodeID(op.Inode),
		Handle: kproto.HandleID(op.Handle),
		Offset: op.Offset,
		Data:   op.Data,
	}
	var err error
	kop.RespondFn = func(e error) { err = e }
	b.fs.Write(kop)
	op.Respond(err)
}

func (b *Bridge) SyncFile(op *fuseops.SyncFileOp) {
	kop := &kproto.FsyncOp{Node: kproto.NodeID(op.Inode), Handle: kproto.HandleID(op.Handle)}
	var err error
	kop.RespondFn = func(e error) { err = e }
	b.fs.Fsync(kop)
	op.Respond(err)
}

func (b *Bridge) FlushFile(op *fuseops.FlushFileOp) {
	kop := &kproto.FlushOp{Node: kproto.NodeID(op.Inode), Handle: kproto.HandleID(op.Handle)}
	var err error
	kop.RespondFn = func(e error) { err = e }
	b.fs.Flush(kop)
	op.Respond(err)
}

func (b *Bridge) ReleaseFileHandle(op *fuseops.ReleaseFileHandleOp) {
	kop := &kproto.ReleaseOp{Handle: kproto.HandleID(op.Handle)}
	var err error
	kop.RespondFn = func(e error) { err = e }
	b.fs.Release(kop)
	op.Respond(err)
}
