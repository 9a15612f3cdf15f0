package shadowfs

import (
	"testing"

	"github.com/shadowfs/shadowfsd/internal/kerr"
	"github.com/shadowfs/shadowfsd/internal/kproto"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func (f *fixture) open(t *testing.T, node kproto.NodeID) kproto.HandleID {
	t.Helper()
	op := &kproto.OpenOp{Node: node}
	var respErr error
	op.RespondFn = func(err error) { respErr = err }
	f.fs.Open(op)
	require.NoError(t, respErr)
	return op.Handle
}

func (f *fixture) flock(t *testing.T, handle kproto.HandleID, typ kproto.FlockType) error {
	t.Helper()
	op := &kproto.FlockOp{Handle: handle, Type: typ}
	var respErr error
	op.RespondFn = func(err error) { respErr = err }
	f.fs.Flock(op)
	return respErr
}

func TestFlock_ExclusiveThenUnlock(t *testing.T) {
	f := newFixture(t, nil)
	f.writeShadowDoc(t, "f", sampleShadowDoc)
	lk, err := f.lookup(t, f.rootNode(), "f")
	require.NoError(t, err)

	h := f.open(t, lk.Child)

	require.NoError(t, f.flock(t, h, kproto.FlockExclusive))
	assert.Error(t, f.flock(t, h, kproto.FlockExclusive))
	require.NoError(t, f.flock(t, h, kproto.FlockUnlock))
	assert.Error(t, f.flock(t, h, kproto.FlockUnlock))
}

func TestFlock_SharedAlwaysRejected(t *testing.T) {
	f := newFixture(t, nil)
	f.writeShadowDoc(t, "f", sampleShadowDoc)
	lk, err := f.lookup(t, f.rootNode(), "f")
	require.NoError(t, err)

	h := f.open(t, lk.Child)

	err = f.flock(t, h, kproto.FlockShared)
	assert.ErrorIs(t, err, kerr.InvalidArgument)
}

func TestFlock_UnknownHandleRejected(t *testing.T) {
	f := newFixture(t, nil)
	err := f.flock(t, kproto.HandleID(9999), kproto.FlockExclusive)
	assert.ErrorIs(t, err, kerr.InvalidArgument)
}
