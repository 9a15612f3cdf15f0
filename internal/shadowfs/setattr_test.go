package shadowfs

import (
	"testing"
	"time"

	"github.com/shadowfs/shadowfsd/internal/icache"
	"github.com/shadowfs/shadowfsd/internal/kerr"
	"github.com/shadowfs/shadowfsd/internal/kproto"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func (f *fixture) setattr(t *testing.T, node kproto.NodeID, op *kproto.SetattrOp) error {
	t.Helper()
	op.Node = node
	var respErr error
	op.RespondFn = func(err error) { respErr = err }
	f.fs.Setattr(op)
	return respErr
}

func TestSetattr_ModeUIDGIDMtimeApplied(t *testing.T) {
	f := newFixture(t, nil)
	f.writeShadowDoc(t, "f", sampleShadowDoc)
	lk, err := f.lookup(t, f.rootNode(), "f")
	require.NoError(t, err)

	mode := uint32(0100600)
	uid := uint32(42)
	gid := uint32(43)
	mtime := time.Unix(1000, 0)

	op := &kproto.SetattrOp{Mode: &mode, UID: &uid, GID: &gid, Mtime: &mtime}
	require.NoError(t, f.setattr(t, lk.Child, op))

	assert.EqualValues(t, mode, op.Attr.Mode)
	assert.EqualValues(t, uid, op.Attr.UID)
	assert.EqualValues(t, gid, op.Attr.GID)
	assert.True(t, mtime.Equal(op.Attr.Mtime))
}

func TestSetattr_SizeChangeAlwaysRejected(t *testing.T) {
	f := newFixture(t, nil)
	f.writeShadowDoc(t, "f", sampleShadowDoc)
	lk, err := f.lookup(t, f.rootNode(), "f")
	require.NoError(t, err)

	size := uint64(8192)
	op := &kproto.SetattrOp{Size: &size}
	err = f.setattr(t, lk.Child, op)
	assert.ErrorIs(t, err, kerr.InvalidArgument)
}

func TestSetattr_PinsRecordAgainstRefresh(t *testing.T) {
	f := newFixture(t, nil)
	f.writeShadowDoc(t, "f", sampleShadowDoc)
	lk, err := f.lookup(t, f.rootNode(), "f")
	require.NoError(t, err)

	mode := uint32(0100600)
	require.NoError(t, f.setattr(t, lk.Child, &kproto.SetattrOp{Mode: &mode}))

	rec, err := f.ic.GetFromHandle(icache.Handle(lk.Child))
	require.NoError(t, err)
	assert.True(t, f.ic.Pinned(rec))
	f.ic.Put(rec, 1)
}
