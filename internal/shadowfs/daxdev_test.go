package shadowfs

import (
	"testing"

	"github.com/shadowfs/shadowfsd/internal/kerr"
	"github.com/shadowfs/shadowfsd/internal/kproto"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func (f *fixture) getDaxdev(t *testing.T, index int) (*kproto.GetDaxdevOp, error) {
	t.Helper()
	op := &kproto.GetDaxdevOp{Index: index}
	var respErr error
	op.RespondFn = func(err error) { respErr = err }
	f.fs.GetDaxdev(op)
	return op, respErr
}

func TestGetDaxdev_UnconfiguredRejected(t *testing.T) {
	f := newFixture(t, nil)
	_, err := f.getDaxdev(t, 0)
	assert.ErrorIs(t, err, kerr.OperationNotSupported)
}

func TestGetDaxdev_ConfiguredReturnsDeviceName(t *testing.T) {
	f := newFixture(t, nil)
	require.NoError(t, f.dax.Configure(0, "/dev/dax0.0"))

	op, err := f.getDaxdev(t, 0)
	require.NoError(t, err)
	assert.Equal(t, "/dev/dax0.0", op.DeviceName)
}

func TestGetDaxdev_OnlyIndexZeroValid(t *testing.T) {
	f := newFixture(t, nil)
	require.NoError(t, f.dax.Configure(0, "/dev/dax0.0"))

	_, err := f.getDaxdev(t, 1)
	assert.ErrorIs(t, err, kerr.InvalidArgument)
}
