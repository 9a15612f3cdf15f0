package shadowfs

import (
	"fmt"

	"github.com/shadowfs/shadowfsd/internal/kerr"
	"github.com/shadowfs/shadowfsd/internal/kproto"
	"golang.org/x/sys/unix"
)

// Forget implements kproto.FileSystem. Nlookup+1 references are dropped:
// the kernel's nlookup count, plus the reference the dispatcher itself
// took when it resolved op.Node to answer this very request.
func (fs *ShadowFS) Forget(op *kproto.ForgetOp) {
	rec, err := fs.resolve(op.Node)
	if err != nil {
		op.Respond(err)
		return
	}

	fs.ic.Put(rec, op.Nlookup+1)
	op.Respond(nil)
}

// Release implements kproto.FileSystem. Two references are dropped: the
// one Open took when it minted the handle, and the lookup reference that
// accompanied it. Any held flock is released first.
func (fs *ShadowFS) Release(op *kproto.ReleaseOp) {
	fs.fileHandlesMu.Lock()
	fh, ok := fs.fileHandles[op.Handle]
	if ok {
		delete(fs.fileHandles, op.Handle)
	}
	fs.fileHandlesMu.Unlock()

	if !ok {
		op.Respond(fmt.Errorf("release: unknown handle %d: %w", op.Handle, kerr.InvalidArgument))
		return
	}

	if fs.ic.FlockHeld(fh.rec) {
		unix.Flock(fh.fd, unix.LOCK_UN)
		fs.ic.Unflock(fh.rec)
	}

	unix.Close(fh.fd)
	fs.ic.Put(fh.rec, 2)
	op.Respond(nil)
}

// Releasedir implements kproto.FileSystem.
func (fs *ShadowFS) Releasedir(op *kproto.ReleasedirOp) {
	fs.dirHandlesMu.Lock()
	dh, ok := fs.dirHandles[op.Handle]
	if ok {
		delete(fs.dirHandles, op.Handle)
	}
	fs.dirHandlesMu.Unlock()

	if !ok {
		op.Respond(fmt.Errorf("releasedir: unknown handle %d: %w", op.Handle, kerr.InvalidArgument))
		return
	}

	unix.Close(dh.fd)
	fs.ic.Put(dh.rec, 1)
	op.Respond(nil)
}
