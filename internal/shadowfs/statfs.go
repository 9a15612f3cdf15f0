package shadowfs

import (
	"fmt"

	"github.com/shadowfs/shadowfsd/internal/icache"
	"github.com/shadowfs/shadowfsd/internal/kerr"
	"github.com/shadowfs/shadowfsd/internal/kproto"
	"golang.org/x/sys/unix"
)

// Statfs implements kproto.FileSystem. The real filesystem's statfs(2)
// result is passed through unmodified; for a regular file (which holds no
// fd of its own in the cache) the parent directory's fd stands in, since
// statfs reports on the whole mounted filesystem rather than any one
// entry within it.
func (fs *ShadowFS) Statfs(op *kproto.StatfsOp) {
	rec, err := fs.resolve(op.Node)
	if err != nil {
		op.Respond(err)
		return
	}
	defer fs.ic.Put(rec, 1)

	fd := rec.OpenFD()
	if rec.Kind() != icache.KindDirectory {
		parent := rec.Parent()
		if parent == nil {
			op.Respond(fmt.Errorf("statfs: node %d has no open directory fd available: %w", op.Node, kerr.IOError))
			return
		}
		fd = parent.OpenFD()
	}

	var st unix.Statfs_t
	if err := unix.Fstatfs(fd, &st); err != nil {
		op.Respond(fmt.Errorf("statfs: %w", translateErrno(err)))
		return
	}

	op.Blocks = st.Blocks
	op.Bfree = st.Bfree
	op.Bavail = st.Bavail
	op.Files = st.Files
	op.Ffree = st.Ffree
	op.Bsize = uint32(st.Bsize)
	op.Namelen = uint32(st.Namelen)
	op.Frsize = uint32(st.Frsize)
	op.Respond(nil)
}
