package shadowfs

import (
	"fmt"

	"github.com/shadowfs/shadowfsd/internal/kerr"
	"github.com/shadowfs/shadowfsd/internal/kproto"
	"golang.org/x/sys/unix"
)

// Flock implements kproto.FileSystem. Only exclusive-lock and unlock are
// meaningful here; a shared-lock request is always rejected, matching the
// original daemon's reasoning that a shadow tree has exactly one writer
// (none) so shared access needs no kernel-mediated arbitration.
func (fs *ShadowFS) Flock(op *kproto.FlockOp) {
	fs.fileHandlesMu.Lock()
	fh, ok := fs.fileHandles[op.Handle]
	fs.fileHandlesMu.Unlock()

	if !ok {
		op.Respond(fmt.Errorf("flock: unknown handle %d: %w", op.Handle, kerr.InvalidArgument))
		return
	}

	switch op.Type {
	case kproto.FlockShared:
		op.Respond(fmt.Errorf("flock: shared locks are not supported: %w", kerr.InvalidArgument))

	case kproto.FlockExclusive:
		if err := fs.ic.TryLockExclusive(fh.rec); err != nil {
			op.Respond(err)
			return
		}
		if err := unix.Flock(fh.fd, unix.LOCK_EX); err != nil {
			fs.ic.Unflock(fh.rec)
			op.Respond(fmt.Errorf("flock: %w", translateErrno(err)))
			return
		}
		op.Respond(nil)

	case kproto.FlockUnlock:
		if err := fs.ic.Unflock(fh.rec); err != nil {
			op.Respond(err)
			return
		}
		if err := unix.Flock(fh.fd, unix.LOCK_UN); err != nil {
			op.Respond(fmt.Errorf("flock: %w", translateErrno(err)))
			return
		}
		op.Respond(nil)

	default:
		op.Respond(fmt.Errorf("flock: unrecognized lock type %d: %w", op.Type, kerr.InvalidArgument))
	}
}
