package shadowfs

import (
	"fmt"

	"github.com/shadowfs/shadowfsd/internal/kerr"
	"github.com/shadowfs/shadowfsd/internal/kproto"
)

// Unsupported implements kproto.FileSystem for every mutating operation
// this filesystem permanently refuses: mknod, mkdir, rmdir, unlink,
// symlink, link, rename, create, fallocate, readlink. A shadow tree has
// no notion of creating or restructuring entries, so all of them answer
// the same way.
func (fs *ShadowFS) Unsupported(op *kproto.UnsupportedOp) {
	fs.logf("refusing unsupported operation %q", op.Name)
	op.Respond(fmt.Errorf("%s: %w", op.Name, kerr.NotSupported))
}
