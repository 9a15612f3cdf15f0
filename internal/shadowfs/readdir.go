package shadowfs

import (
	"fmt"
	"os"

	"github.com/shadowfs/shadowfsd/internal/icache"
	"github.com/shadowfs/shadowfsd/internal/kerr"
	"github.com/shadowfs/shadowfsd/internal/kproto"
	"golang.org/x/sys/unix"
)

// dirHandle is the session state behind an open directory handle: a
// snapshot of its entries taken at Opendir time (so a concurrent Readdir
// sequence sees a consistent listing even if the underlying directory
// changes mid-stream) plus the reference Opendir took on the directory's
// cache record.
type dirHandle struct {
	rec     *icache.Record
	fd      int
	entries []os.DirEntry
}

// Opendir implements kproto.FileSystem.
func (fs *ShadowFS) Opendir(op *kproto.OpendirOp) {
	rec, err := fs.resolve(op.Node)
	if err != nil {
		op.Respond(err)
		return
	}

	if rec.Kind() != icache.KindDirectory {
		fs.ic.Put(rec, 1)
		op.Respond(fmt.Errorf("opendir: node %d is not a directory: %w", op.Node, kerr.InvalidArgument))
		return
	}

	dupFD, err := unix.Dup(rec.OpenFD())
	if err != nil {
		fs.ic.Put(rec, 1)
		op.Respond(fmt.Errorf("opendir: dup: %w", translateErrno(err)))
		return
	}

	entries, err := os.NewFile(uintptr(dupFD), rec.Name()).ReadDir(-1)
	if err != nil {
		unix.Close(dupFD)
		fs.ic.Put(rec, 1)
		op.Respond(fmt.Errorf("opendir: readdir: %w", translateErrno(err)))
		return
	}

	fs.dirHandlesMu.Lock()
	fs.nextDirHndl++
	h := fs.nextDirHndl
	fs.dirHandles[h] = &dirHandle{rec: rec, fd: dupFD, entries: entries}
	fs.dirHandlesMu.Unlock()

	op.Handle = h
	op.Respond(nil)
}

// Readdir implements kproto.FileSystem. Every entry is resolved through
// the same lookupChild path a Lookup request takes, and each entry placed
// in the reply keeps the lookup reference that call took. The reply holds
// plain dirents (inode number, offset, name, type) only; no attributes
// are encoded into it. Entries whose lookup fails are skipped. If an
// entry's encoded dirent doesn't fit the remaining reply buffer, its
// lookup reference is released immediately and the reply ends there.
func (fs *ShadowFS) Readdir(op *kproto.ReaddirOp) {
	fs.dirHandlesMu.Lock()
	dh, ok := fs.dirHandles[op.Handle]
	fs.dirHandlesMu.Unlock()

	if !ok {
		op.Respond(fmt.Errorf("readdir: unknown handle %d: %w", op.Handle, kerr.InvalidArgument))
		return
	}

	buf := make([]byte, op.Size)
	n := 0

	for i := int(op.Offset); i < len(dh.entries); i++ {
		entry := dh.entries[i]
		name := entry.Name()

		child, err := fs.lookupChild(dh.rec, name)
		if err != nil {
			continue
		}

		typ := kproto.DT_Reg
		if child.Kind() == icache.KindDirectory {
			typ = kproto.DT_Dir
		}

		written := kproto.WriteDirent(buf[n:], kproto.Dirent{
			Ino:    child.Ino(),
			Offset: kproto.DirOffset(i + 1),
			Name:   name,
			Type:   typ,
		})
		if written == 0 {
			fs.ic.Put(child, 1)
			break
		}

		n += written
	}

	op.Data = buf[:n]
	op.Respond(nil)
}
