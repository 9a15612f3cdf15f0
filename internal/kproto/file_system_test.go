package kproto

import (
	"io"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
)

// fakeFS records which method was invoked for each op it receives.
type fakeFS struct {
	mu   sync.Mutex
	seen []string
}

func (f *fakeFS) record(name string) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.seen = append(f.seen, name)
}

func (f *fakeFS) Lookup(op *LookupOp)         { f.record("Lookup"); op.Respond(nil) }
func (f *fakeFS) Getattr(op *GetattrOp)       { f.record("Getattr"); op.Respond(nil) }
func (f *fakeFS) Setattr(op *SetattrOp)       { f.record("Setattr"); op.Respond(nil) }
func (f *fakeFS) Forget(op *ForgetOp)         { f.record("Forget"); op.Respond(nil) }
func (f *fakeFS) Opendir(op *OpendirOp)       { f.record("Opendir"); op.Respond(nil) }
func (f *fakeFS) Readdir(op *ReaddirOp)       { f.record("Readdir"); op.Respond(nil) }
func (f *fakeFS) Releasedir(op *ReleasedirOp) { f.record("Releasedir"); op.Respond(nil) }
func (f *fakeFS) Open(op *OpenOp)             { f.record("Open"); op.Respond(nil) }
func (f *fakeFS) Read(op *ReadOp)             { f.record("Read"); op.Respond(nil) }
func (f *fakeFS) Write(op *WriteOp)           { f.record("Write"); op.Respond(nil) }
func (f *fakeFS) Flush(op *FlushOp)           { f.record("Flush"); op.Respond(nil) }
func (f *fakeFS) Fsync(op *FsyncOp)           { f.record("Fsync"); op.Respond(nil) }
func (f *fakeFS) Release(op *ReleaseOp)       { f.record("Release"); op.Respond(nil) }
func (f *fakeFS) Flock(op *FlockOp)           { f.record("Flock"); op.Respond(nil) }
func (f *fakeFS) Statfs(op *StatfsOp)         { f.record("Statfs"); op.Respond(nil) }
func (f *fakeFS) GetFmap(op *GetFmapOp)       { f.record("GetFmap"); op.Respond(nil) }
func (f *fakeFS) GetDaxdev(op *GetDaxdevOp)   { f.record("GetDaxdev"); op.Respond(nil) }
func (f *fakeFS) Unsupported(op *UnsupportedOp) { f.record("Unsupported"); op.Respond(nil) }

// fakeConn replays a fixed slice of ops, then reports io.EOF.
type fakeConn struct {
	mu   sync.Mutex
	ops  []Op
	done chan struct{}
}

func (c *fakeConn) ReadOp() (Op, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if len(c.ops) == 0 {
		close(c.done)
		return nil, io.EOF
	}
	op := c.ops[0]
	c.ops = c.ops[1:]
	return op, nil
}

func TestServeOps_DispatchesEveryOpType(t *testing.T) {
	fs := &fakeFS{}
	var wg sync.WaitGroup
	respond := func() func(error) {
		wg.Add(1)
		return func(error) { wg.Done() }
	}

	conn := &fakeConn{
		done: make(chan struct{}),
		ops: []Op{
			&LookupOp{opBase: opBase{RespondFn: respond()}},
			&GetattrOp{opBase: opBase{RespondFn: respond()}},
			&SetattrOp{opBase: opBase{RespondFn: respond()}},
			&ForgetOp{opBase: opBase{RespondFn: respond()}},
			&OpendirOp{opBase: opBase{RespondFn: respond()}},
			&ReaddirOp{opBase: opBase{RespondFn: respond()}},
			&ReleasedirOp{opBase: opBase{RespondFn: respond()}},
			&OpenOp{opBase: opBase{RespondFn: respond()}},
			&ReadOp{opBase: opBase{RespondFn: respond()}},
			&WriteOp{opBase: opBase{RespondFn: respond()}},
			&FlushOp{opBase: opBase{RespondFn: respond()}},
			&FsyncOp{opBase: opBase{RespondFn: respond()}},
			&ReleaseOp{opBase: opBase{RespondFn: respond()}},
			&FlockOp{opBase: opBase{RespondFn: respond()}},
			&StatfsOp{opBase: opBase{RespondFn: respond()}},
			&GetFmapOp{opBase: opBase{RespondFn: respond()}},
			&GetDaxdevOp{opBase: opBase{RespondFn: respond()}},
			&UnsupportedOp{opBase: opBase{RespondFn: respond()}, Name: "mkdir"},
		},
	}

	NewServer(fs).ServeOps(conn)
	<-conn.done
	wg.Wait()

	assert.ElementsMatch(t, []string{
		"Lookup", "Getattr", "Setattr", "Forget", "Opendir", "Readdir",
		"Releasedir", "Open", "Read", "Write", "Flush", "Fsync", "Release",
		"Flock", "Statfs", "GetFmap", "GetDaxdev", "Unsupported",
	}, fs.seen)
}

func TestOpBase_RespondIsOptional(t *testing.T) {
	op := &LookupOp{}
	assert.NotPanics(t, func() { op.Respond(nil) })
}
