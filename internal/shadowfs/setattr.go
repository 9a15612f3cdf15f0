package shadowfs

import (
	"fmt"

	"github.com/shadowfs/shadowfsd/internal/icache"
	"github.com/shadowfs/shadowfsd/internal/kerr"
	"github.com/shadowfs/shadowfsd/internal/kproto"
)

// Setattr implements kproto.FileSystem. Only mode, uid, gid, and mtime may
// be changed; a size change is always rejected since the shadow tree's
// notion of a file's size comes from its metadata document, not from
// truncating real backing bytes. Any successful change pins the record's
// attributes, per spec: once set explicitly they are no longer refreshed
// from the shadow document.
func (fs *ShadowFS) Setattr(op *kproto.SetattrOp) {
	rec, err := fs.resolve(op.Node)
	if err != nil {
		op.Respond(err)
		return
	}
	defer fs.ic.Put(rec, 1)

	if op.Size != nil {
		op.Respond(fmt.Errorf("setattr: size changes are not supported: %w", kerr.InvalidArgument))
		return
	}

	attr := fs.ic.SetAttr(rec, func(a *icache.Attr) {
		if op.Mode != nil {
			a.Mode = *op.Mode
		}
		if op.UID != nil {
			a.UID = *op.UID
		}
		if op.GID != nil {
			a.GID = *op.GID
		}
		if op.Mtime != nil {
			a.Mtime = *op.Mtime
		}
	})

	op.Attr = toAttr(attr)
	op.Respond(nil)
}
