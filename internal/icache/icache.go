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

// Package icache is the inode cache: the daemon's one piece of mutable,
// concurrently-accessed state. It hands out Records addressed by Handle,
// deduplicates live records by (ino, dev) so two lookup paths converging
// on the same underlying file share one record, and enforces the
// refcount/pinned lifecycle that decides when a Record may be torn down.
//
// A single mutex protects every mutable Record field across the whole
// cache; call sites that need to do I/O (open, stat, read the shadow
// document) do it before or after touching the cache, never while
// holding it.
package icache

import (
	"fmt"

	"github.com/jacobsa/syncutil"
	"github.com/shadowfs/shadowfsd/internal/kerr"
	"github.com/shadowfs/shadowfsd/internal/shadowmeta"
	"golang.org/x/sys/unix"
)

type inoDevKey struct {
	ino uint64
	dev uint64
}

// Icache is the cache of live Records. The zero value is not usable; call
// New.
type Icache struct {
	mu syncutil.InvariantMutex

	// GUARDED_BY(mu)
	nextHandle Handle
	byHandle   map[Handle]*Record
	byInoDev   map[inoDevKey]*Record
	root       *Record
}

// New returns an Icache seeded with a root Record built from rootAttr. The
// root is given one self-reference: nothing ever forgets the root over
// the record's lifetime in normal operation, but the baseline reference
// means a spurious extra forget can't drive its refcount negative.
func New(rootIno, rootDev uint64, rootAttr Attr, rootFD int) *Icache {
	ic := &Icache{
		nextHandle: RootHandle,
		byHandle:   make(map[Handle]*Record),
		byInoDev:   make(map[inoDevKey]*Record),
	}
	ic.mu = syncutil.NewInvariantMutex(ic.CheckInvariants)
	ic.mu.Lock()
	defer ic.mu.Unlock()

	root := &Record{
		handle:   RootHandle,
		ino:      rootIno,
		dev:      rootDev,
		kind:     KindDirectory,
		name:     "",
		parent:   nil,
		openFD:   rootFD,
		attr:     rootAttr,
		refcount: 1,
	}
	ic.nextHandle = RootHandle + 1
	ic.byHandle[root.handle] = root
	ic.byInoDev[inoDevKey{rootIno, rootDev}] = root
	ic.root = root

	return ic
}

// Root returns the cache's root Record without taking a reference on it:
// the root's baseline self-reference already keeps it alive for the
// daemon's whole run.
func (ic *Icache) Root() *Record {
	return ic.root
}

// GetFromHandle borrows the Record named by h, incrementing its refcount.
// The caller owns the returned reference and must eventually Put it back.
func (ic *Icache) GetFromHandle(h Handle) (*Record, error) {
	ic.mu.Lock()
	defer ic.mu.Unlock()

	rec, ok := ic.byHandle[h]
	if !ok {
		return nil, fmt.Errorf("icache: no record for handle %d: %w", h, kerr.NotFound)
	}
	rec.refcount++
	return rec, nil
}

// FindByIno looks for a live record already tracking (ino, dev) and, if
// found, borrows a reference to it. This is how lookup dedups two
// requests racing to discover the same underlying file.
func (ic *Icache) FindByIno(ino, dev uint64) (*Record, bool) {
	ic.mu.Lock()
	defer ic.mu.Unlock()

	rec, ok := ic.byInoDev[inoDevKey{ino, dev}]
	if !ok {
		return nil, false
	}
	rec.refcount++
	return rec, true
}

// Allocate inserts a brand new Record for an (ino, dev) the cache has
// never seen, under parent (which must already be a reference the caller
// holds; Allocate takes its own additional reference on parent on the new
// child's behalf, leaving the caller's reference on parent untouched).
// The returned Record carries refcount 1, owned by the caller.
//
// If a concurrent lookup already inserted a record for (ino, dev) since
// the caller's FindByIno miss, Allocate instead closes openFD (if any),
// fills that record's fmeta if it has none, and returns it with one more
// reference, so at most one record ever exists per (ino, dev).
func (ic *Icache) Allocate(parent *Record, name string, ino, dev uint64, kind Kind, fmeta *shadowmeta.Meta, attr Attr, openFD int) *Record {
	ic.mu.Lock()
	defer ic.mu.Unlock()

	if existing, ok := ic.byInoDev[inoDevKey{ino, dev}]; ok {
		if openFD >= 0 {
			unix.Close(openFD)
		}
		if existing.kind == KindRegularFile && existing.fmeta == nil {
			existing.fmeta = fmeta
		}
		existing.refcount++
		return existing
	}

	rec := &Record{
		handle:   ic.nextHandle,
		ino:      ino,
		dev:      dev,
		kind:     kind,
		name:     name,
		parent:   parent,
		openFD:   openFD,
		attr:     attr,
		fmeta:    fmeta,
		refcount: 1,
	}
	ic.nextHandle++
	if parent != nil {
		parent.refcount++
	}
	ic.byHandle[rec.handle] = rec
	ic.byInoDev[inoDevKey{ino, dev}] = rec

	return rec
}

// Put drops n references from rec. When the count reaches zero and the
// record isn't pinned, the record is unlinked from both indexes, its open
// directory fd (if any) is closed, and Put recurses one reference onto
// the parent — mirroring the reference Allocate took on the child's
// behalf.
func (ic *Icache) Put(rec *Record, n uint64) {
	ic.mu.Lock()
	defer ic.mu.Unlock()
	ic.putLocked(rec, n)
}

func (ic *Icache) putLocked(rec *Record, n uint64) {
	if n > rec.refcount {
		panic(fmt.Sprintf("icache: refcount underflow on handle %d: have %d, dropping %d", rec.handle, rec.refcount, n))
	}
	rec.refcount -= n
	if rec.refcount != 0 || rec.pinned {
		return
	}

	delete(ic.byHandle, rec.handle)
	delete(ic.byInoDev, inoDevKey{rec.ino, rec.dev})
	if rec.openFD >= 0 {
		unix.Close(rec.openFD)
	}
	rec.fmeta = nil

	parent := rec.parent
	rec.parent = nil
	if parent != nil {
		ic.putLocked(parent, 1)
	}
}

// DestroyAll tears down every live record unconditionally, for use during
// daemon shutdown once no request can be in flight.
func (ic *Icache) DestroyAll() {
	ic.mu.Lock()
	defer ic.mu.Unlock()

	for h, rec := range ic.byHandle {
		if rec.openFD >= 0 {
			unix.Close(rec.openFD)
		}
		rec.fmeta = nil
		delete(ic.byHandle, h)
	}
	for k := range ic.byInoDev {
		delete(ic.byInoDev, k)
	}
	ic.root = nil
}

// Count returns the number of live records, including root. Intended for
// tests and diagnostics.
func (ic *Icache) Count() int {
	ic.mu.Lock()
	defer ic.mu.Unlock()
	return len(ic.byHandle)
}

// Attr returns a copy of rec's current cached attributes.
func (ic *Icache) Attr(rec *Record) Attr {
	ic.mu.Lock()
	defer ic.mu.Unlock()
	return rec.attr
}

// SetAttr applies mutate to rec's attributes and marks rec pinned: once a
// record's attributes have been explicitly set, its shadow document is no
// longer consulted to refresh them (spec: setattr always pins).
func (ic *Icache) SetAttr(rec *Record, mutate func(*Attr)) Attr {
	ic.mu.Lock()
	defer ic.mu.Unlock()
	mutate(&rec.attr)
	rec.pinned = true
	return rec.attr
}

// Pinned reports whether rec has been pinned (survives refcount 0).
func (ic *Icache) Pinned(rec *Record) bool {
	ic.mu.Lock()
	defer ic.mu.Unlock()
	return rec.pinned
}

// Fmeta returns rec's cached shadow-document metadata, or nil if none has
// been attached (the pass_yaml diagnostic path, or a directory).
func (ic *Icache) Fmeta(rec *Record) *shadowmeta.Meta {
	ic.mu.Lock()
	defer ic.mu.Unlock()
	return rec.fmeta
}

// SetFmetaIfMissing attaches fmeta to rec only if rec is a regular file
// that currently has none. Lookup calls this when it resolves an existing
// cache entry by ino/dev rather than allocating fresh: a second path
// reaching an already-cached file can repair a previously-missing fmeta,
// but never overwrites one that's already there.
func (ic *Icache) SetFmetaIfMissing(rec *Record, fmeta *shadowmeta.Meta) {
	ic.mu.Lock()
	defer ic.mu.Unlock()
	if rec.kind == KindRegularFile && rec.fmeta == nil {
		rec.fmeta = fmeta
	}
}

// TryLockExclusive sets rec's flock_held flag, failing if it's already
// set. The caller is responsible for the corresponding OS-level advisory
// lock on rec's file descriptor.
func (ic *Icache) TryLockExclusive(rec *Record) error {
	ic.mu.Lock()
	defer ic.mu.Unlock()
	if rec.flockHeld {
		return kerr.InvalidArgument
	}
	rec.flockHeld = true
	return nil
}

// Unflock clears rec's flock_held flag, failing if it wasn't set.
func (ic *Icache) Unflock(rec *Record) error {
	ic.mu.Lock()
	defer ic.mu.Unlock()
	if !rec.flockHeld {
		return kerr.InvalidArgument
	}
	rec.flockHeld = false
	return nil
}

// FlockHeld reports whether rec currently holds the advisory lock.
func (ic *Icache) FlockHeld(rec *Record) bool {
	ic.mu.Lock()
	defer ic.mu.Unlock()
	return rec.flockHeld
}

// CheckInvariants is invoked by syncutil.InvariantMutex around every
// lock/unlock cycle in builds that enable it. It re-derives cheap
// structural facts about the two indexes rather than walking reference
// graphs, since the latter would make every request pay for a full cache
// scan.
func (ic *Icache) CheckInvariants() {
	if len(ic.byHandle) != len(ic.byInoDev) {
		panic(fmt.Sprintf("icache: index size mismatch: %d handles, %d ino/dev pairs", len(ic.byHandle), len(ic.byInoDev)))
	}

	for h, rec := range ic.byHandle {
		if rec.handle != h {
			panic(fmt.Sprintf("icache: record stored under handle %d reports handle %d", h, rec.handle))
		}
		if rec.refcount == 0 && !rec.pinned {
			panic(fmt.Sprintf("icache: handle %d has refcount 0 but is still indexed", h))
		}
		if rec.kind == KindRegularFile && rec.openFD != -1 {
			panic(fmt.Sprintf("icache: handle %d is a regular file but holds open_fd %d", h, rec.openFD))
		}
		if other, ok := ic.byInoDev[inoDevKey{rec.ino, rec.dev}]; !ok || other != rec {
			panic(fmt.Sprintf("icache: handle %d not reachable from the ino/dev index", h))
		}
	}
}
