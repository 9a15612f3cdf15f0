package shadowfs

import (
	"fmt"

	"github.com/shadowfs/shadowfsd/internal/icache"
	"github.com/shadowfs/shadowfsd/internal/kerr"
	"github.com/shadowfs/shadowfsd/internal/kproto"
	"github.com/shadowfs/shadowfsd/internal/shadowmeta"
	"golang.org/x/sys/unix"
)

// Lookup implements kproto.FileSystem.
func (fs *ShadowFS) Lookup(op *kproto.LookupOp) {
	parent, err := fs.resolve(op.Parent)
	if err != nil {
		op.Respond(err)
		return
	}
	defer fs.ic.Put(parent, 1)

	if parent.Kind() != icache.KindDirectory {
		op.Respond(fmt.Errorf("lookup: parent %d is not a directory: %w", op.Parent, kerr.InvalidArgument))
		return
	}

	child, err := fs.lookupChild(parent, op.Name)
	if err != nil {
		op.Respond(err)
		return
	}

	op.Child = kproto.NodeID(child.Handle())
	op.Attr = toAttr(fs.ic.Attr(child))
	op.Expiration = fs.expiration()
	op.Respond(nil)
}

// Getattr implements kproto.FileSystem.
func (fs *ShadowFS) Getattr(op *kproto.GetattrOp) {
	rec, err := fs.resolve(op.Node)
	if err != nil {
		op.Respond(err)
		return
	}
	defer fs.ic.Put(rec, 1)

	op.Attr = toAttr(fs.ic.Attr(rec))
	op.Expiration = fs.expiration()
	op.Respond(nil)
}

// lookupChild implements spec §4.2 steps 2-8: open the leaf relative to
// parent's directory fd, stat it, dedup against the icache by (ino, dev),
// and either return the existing record or allocate a new one. parent
// must already be a reference the caller holds; lookupChild neither
// drops nor adds to it.
func (fs *ShadowFS) lookupChild(parent *icache.Record, name string) (*icache.Record, error) {
	pathFD := parent.OpenFD()

	leafFD, err := unix.Openat(pathFD, name, unix.O_PATH|unix.O_NOFOLLOW, 0)
	if err != nil {
		return nil, fmt.Errorf("lookup %s: %w", name, translateErrno(err))
	}

	var st unix.Stat_t
	if err := unix.Fstat(leafFD, &st); err != nil {
		unix.Close(leafFD)
		return nil, fmt.Errorf("stat %s: %w", name, translateErrno(err))
	}

	ino := st.Ino
	dev := uint64(st.Dev)
	isDir := st.Mode&unix.S_IFMT == unix.S_IFDIR

	if !isDir && st.Mode&unix.S_IFMT != unix.S_IFREG {
		unix.Close(leafFD)
		return nil, fmt.Errorf("lookup %s: not a regular file or directory: %w", name, kerr.NotFound)
	}

	if existing, ok := fs.ic.FindByIno(ino, dev); ok {
		unix.Close(leafFD)
		if !isDir && !fs.opts.PassYAML {
			if meta, err := fs.readShadowDoc(pathFD, name); err == nil {
				fs.ic.SetFmetaIfMissing(existing, meta)
			}
		}
		return existing, nil
	}

	base := statToBaseAttr(&st, ino)

	if isDir {
		dirFD, err := unix.Openat(pathFD, name, unix.O_DIRECTORY|unix.O_RDONLY, 0)
		unix.Close(leafFD)
		if err != nil {
			return nil, fmt.Errorf("opendir %s: %w", name, translateErrno(err))
		}
		return fs.ic.Allocate(parent, name, ino, dev, icache.KindDirectory, nil, base, dirFD), nil
	}

	unix.Close(leafFD)

	if fs.opts.PassYAML {
		attr := base
		attr.Mode = st.Mode
		attr.UID = st.Uid
		attr.GID = st.Gid
		attr.Size = uint64(st.Size)
		return fs.ic.Allocate(parent, name, ino, dev, icache.KindRegularFile, nil, attr, -1), nil
	}

	meta, err := fs.readShadowDoc(pathFD, name)
	if err != nil {
		return nil, err
	}

	attr := base
	attr.Mode = meta.Mode | unix.S_IFREG
	attr.UID = meta.UID
	attr.GID = meta.GID
	attr.Size = meta.Size

	return fs.ic.Allocate(parent, name, ino, dev, icache.KindRegularFile, meta, attr, -1), nil
}

// statToBaseAttr carries over the fields spec §4.2 step 5 says are always
// taken from the real stat regardless of what the shadow codec reports:
// dev, rdev, blksize, blocks, timestamps, and the shadow inode number.
func statToBaseAttr(st *unix.Stat_t, ino uint64) icache.Attr {
	return icache.Attr{
		Dev:     uint64(st.Dev),
		Rdev:    uint64(st.Rdev),
		Blksize: int64(st.Blksize),
		Blocks:  st.Blocks,
		Atime:   statTimeToTime(st.Atim),
		Mtime:   statTimeToTime(st.Mtim),
		Ctime:   statTimeToTime(st.Ctim),
		Ino:     ino,
	}
}

func (fs *ShadowFS) readShadowDoc(parentFD int, name string) (*shadowmeta.Meta, error) {
	fd, err := unix.Openat(parentFD, name, unix.O_RDONLY, 0)
	if err != nil {
		return nil, fmt.Errorf("open shadow document %s: %w", name, translateErrno(err))
	}

	r := newFdReader(fd)
	defer r.Close()

	meta, err := shadowmeta.Decode(r)
	if err != nil {
		return nil, fmt.Errorf("decode shadow document %s: %w", name, err)
	}
	return meta, nil
}
