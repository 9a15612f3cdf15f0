package shadowfs

import (
	"fmt"

	"github.com/shadowfs/shadowfsd/internal/fmap"
	"github.com/shadowfs/shadowfsd/internal/kerr"
	"github.com/shadowfs/shadowfsd/internal/kproto"
)

// GetFmap implements kproto.FileSystem: the custom operation the kernel
// client uses to learn the DAX extents backing a regular file's content.
func (fs *ShadowFS) GetFmap(op *kproto.GetFmapOp) {
	rec, err := fs.resolve(op.Node)
	if err != nil {
		op.Respond(err)
		return
	}
	defer fs.ic.Put(rec, 1)

	meta := fs.ic.Fmeta(rec)
	if meta == nil {
		op.Respond(fmt.Errorf("get_fmap: node %d has no shadow metadata: %w", op.Node, kerr.NotFound))
		return
	}

	buf, err := fmap.Encode(fmap.KindRegular, fmap.ExtentTypeSimple, meta.Extents)
	if err != nil {
		op.Respond(fmt.Errorf("get_fmap: %w", err))
		return
	}

	op.Extents = make([]kproto.Extent, len(meta.Extents))
	for i, e := range meta.Extents {
		op.Extents[i] = kproto.Extent{Offset: e.Offset, Length: e.Length}
	}
	fs.logf("get_fmap: node=%d extents=%d message_bytes=%d", op.Node, len(meta.Extents), len(buf))
	op.Respond(nil)
}
