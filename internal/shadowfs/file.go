package shadowfs

import (
	"fmt"

	"github.com/shadowfs/shadowfsd/internal/icache"
	"github.com/shadowfs/shadowfsd/internal/kerr"
	"github.com/shadowfs/shadowfsd/internal/kproto"
	"golang.org/x/sys/unix"
)

// fileHandle is the session state behind an open regular-file handle: the
// cache record it names (reference owned by this handle) and a real,
// non-O_PATH file descriptor kept open for the duration so flock(2) has
// something to operate on.
type fileHandle struct {
	rec *icache.Record
	fd  int
}

// Open implements kproto.FileSystem. The shadow tree never serves file
// content through read/write; Open's only job is to mint a handle that
// Flock, Flush, and Release can later act on.
func (fs *ShadowFS) Open(op *kproto.OpenOp) {
	rec, err := fs.resolve(op.Node)
	if err != nil {
		op.Respond(err)
		return
	}

	if rec.Kind() != icache.KindRegularFile {
		fs.ic.Put(rec, 1)
		op.Respond(fmt.Errorf("open: node %d is not a regular file: %w", op.Node, kerr.InvalidArgument))
		return
	}

	parent := rec.Parent()
	if parent == nil {
		fs.ic.Put(rec, 1)
		op.Respond(fmt.Errorf("open: node %d has no parent directory: %w", op.Node, kerr.IOError))
		return
	}

	fd, err := unix.Openat(parent.OpenFD(), rec.Name(), unix.O_RDONLY, 0)
	if err != nil {
		fs.ic.Put(rec, 1)
		op.Respond(fmt.Errorf("open %s: %w", rec.Name(), translateErrno(err)))
		return
	}

	fs.fileHandlesMu.Lock()
	fs.nextFileHndl++
	h := fs.nextFileHndl
	fs.fileHandles[h] = &fileHandle{rec: rec, fd: fd}
	fs.fileHandlesMu.Unlock()

	op.Handle = h
	op.Respond(nil)
}

// Read implements kproto.FileSystem. The shadow tree describes file
// content via DAX extents, not bytes the daemon itself serves; every read
// succeeds with zero bytes returned.
func (fs *ShadowFS) Read(op *kproto.ReadOp) {
	op.Data = nil
	op.Respond(nil)
}

// Write implements kproto.FileSystem. Writes are permanently refused.
func (fs *ShadowFS) Write(op *kproto.WriteOp) {
	op.Respond(kerr.NotSupported)
}

// Flush implements kproto.FileSystem. There is no buffered daemon-side
// state to flush; every flush succeeds.
func (fs *ShadowFS) Flush(op *kproto.FlushOp) {
	op.Respond(nil)
}

// Fsync implements kproto.FileSystem. Same reasoning as Flush.
func (fs *ShadowFS) Fsync(op *kproto.FsyncOp) {
	op.Respond(nil)
}
