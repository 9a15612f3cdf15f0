package shadowfs

import (
	"fmt"

	"github.com/shadowfs/shadowfsd/internal/kerr"
	"github.com/shadowfs/shadowfsd/internal/kproto"
)

// GetDaxdev implements kproto.FileSystem: the custom operation letting the
// kernel client learn which DAX device backs a given table index. Only
// index 0 is ever valid, and only once a device has actually been
// configured at mount time.
func (fs *ShadowFS) GetDaxdev(op *kproto.GetDaxdevOp) {
	if op.Index != 0 {
		op.Respond(fmt.Errorf("get_daxdev: index %d is not valid: %w", op.Index, kerr.InvalidArgument))
		return
	}

	if fs.dax == nil {
		op.Respond(fmt.Errorf("get_daxdev: no DAX device configured: %w", kerr.OperationNotSupported))
		return
	}

	name, configured := fs.dax.Lookup(op.Index)
	if !configured {
		op.Respond(fmt.Errorf("get_daxdev: no DAX device configured: %w", kerr.OperationNotSupported))
		return
	}

	op.DeviceName = name
	op.Respond(nil)
}
