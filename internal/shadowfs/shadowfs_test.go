package shadowfs

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/jacobsa/timeutil"
	"github.com/shadowfs/shadowfsd/internal/daxtable"
	"github.com/shadowfs/shadowfsd/internal/icache"
	"github.com/shadowfs/shadowfsd/internal/kproto"
	"github.com/shadowfs/shadowfsd/internal/mountopts"
	"github.com/stretchr/testify/require"
	"golang.org/x/sys/unix"
)

// fixture bundles a ShadowFS wired to a real temporary directory tree,
// standing in for a mounted shadow tree during tests.
type fixture struct {
	fs    *ShadowFS
	ic    *icache.Icache
	dax   *daxtable.Table
	clock *timeutil.SimulatedClock
	root  string
}

func newFixture(t *testing.T, mutate func(*mountopts.Options)) *fixture {
	t.Helper()

	dir := t.TempDir()

	rootFD, err := unix.Open(dir, unix.O_DIRECTORY|unix.O_RDONLY, 0)
	require.NoError(t, err)
	t.Cleanup(func() { unix.Close(rootFD) })

	var st unix.Stat_t
	require.NoError(t, unix.Fstat(rootFD, &st))

	ic := icache.New(st.Ino, uint64(st.Dev), icache.Attr{
		Mode: st.Mode,
		UID:  st.Uid,
		GID:  st.Gid,
		Ino:  st.Ino,
	}, rootFD)

	dax := daxtable.New()
	clock := &timeutil.SimulatedClock{}

	opts := mountopts.Defaults()
	opts.Source = dir
	opts.Timeout = 1.0
	if mutate != nil {
		mutate(&opts)
	}

	return &fixture{
		fs:    New(ic, dax, opts, clock),
		ic:    ic,
		dax:   dax,
		clock: clock,
		root:  dir,
	}
}

func (f *fixture) writeShadowDoc(t *testing.T, name, doc string) {
	t.Helper()
	require.NoError(t, os.WriteFile(filepath.Join(f.root, name), []byte(doc), 0644))
}

func (f *fixture) mkdir(t *testing.T, name string) {
	t.Helper()
	require.NoError(t, os.Mkdir(filepath.Join(f.root, name), 0755))
}

func (f *fixture) rootNode() kproto.NodeID {
	return kproto.NodeID(f.ic.Root().Handle())
}

func (f *fixture) lookup(t *testing.T, parent kproto.NodeID, name string) (*kproto.LookupOp, error) {
	t.Helper()
	op := &kproto.LookupOp{Parent: parent, Name: name}
	var respErr error
	op.RespondFn = func(err error) { respErr = err }
	f.fs.Lookup(op)
	return op, respErr
}

const sampleShadowDoc = `
file:
  path: a/f
  size: 4096
  flags: 0
  mode: 0644
  uid: 1000
  gid: 1000
  nextents: 1
  simple_ext_list:
    - offset: 0x0
      length: 0x1000
`
