// Copyright 2015 Google Inc. All Rights Reserved.
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
//     http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.

// Package shadowfs is the request dispatcher: for each kernel operation
// it resolves nodeid inputs through the icache (taking a reference),
// performs the required shadow-tree I/O or cache mutation, replies, and
// releases the reference. It implements kproto.FileSystem.
package shadowfs

import (
	"errors"
	"fmt"
	"sync"
	"syscall"
	"time"

	"github.com/jacobsa/timeutil"
	"github.com/shadowfs/shadowfsd/internal/daxtable"
	"github.com/shadowfs/shadowfsd/internal/icache"
	"github.com/shadowfs/shadowfsd/internal/kerr"
	"github.com/shadowfs/shadowfsd/internal/kproto"
	"github.com/shadowfs/shadowfsd/internal/logger"
	"github.com/shadowfs/shadowfsd/internal/mountopts"
)

// ShadowFS implements kproto.FileSystem against a shadow tree rooted at
// the icache's root record.
type ShadowFS struct {
	ic    *icache.Icache
	dax   *daxtable.Table
	opts  mountopts.Options
	clock timeutil.Clock

	dirHandlesMu sync.Mutex
	dirHandles   map[kproto.HandleID]*dirHandle
	nextDirHndl  kproto.HandleID

	fileHandlesMu sync.Mutex
	fileHandles   map[kproto.HandleID]*fileHandle
	nextFileHndl  kproto.HandleID
}

// New returns a dispatcher serving ic under the given mount options. dax
// may be nil if no DAX device was configured.
func New(ic *icache.Icache, dax *daxtable.Table, opts mountopts.Options, clock timeutil.Clock) *ShadowFS {
	return &ShadowFS{
		ic:          ic,
		dax:         dax,
		opts:        opts,
		clock:       clock,
		dirHandles:  make(map[kproto.HandleID]*dirHandle),
		fileHandles: make(map[kproto.HandleID]*fileHandle),
	}
}

func (fs *ShadowFS) timeout() time.Duration {
	return time.Duration(fs.opts.Timeout * float64(time.Second))
}

func (fs *ShadowFS) expiration() time.Time {
	return fs.clock.Now().Add(fs.timeout())
}

// resolve borrows a reference to the record named by id, translating a
// cache miss into invalid_argument per spec §4.2 step 1.
func (fs *ShadowFS) resolve(id kproto.NodeID) (*icache.Record, error) {
	rec, err := fs.ic.GetFromHandle(icache.Handle(id))
	if err != nil {
		return nil, fmt.Errorf("resolve %d: %w", id, kerr.InvalidArgument)
	}
	return rec, nil
}

func toAttr(a icache.Attr) kproto.Attr {
	return kproto.Attr{
		Size:  a.Size,
		Mode:  a.Mode,
		Atime: a.Atime,
		Mtime: a.Mtime,
		Ctime: a.Ctime,
		UID:   a.UID,
		GID:   a.GID,
		Ino:   a.Ino,
	}
}

// translateErrno maps a syscall-level error onto one of the six kerr
// kinds, defaulting to io_error for anything unrecognized.
func translateErrno(err error) error {
	var errno syscall.Errno
	if errors.As(err, &errno) {
		switch errno {
		case syscall.ENOENT:
			return kerr.NotFound
		case syscall.EINVAL:
			return kerr.InvalidArgument
		case syscall.ENOSYS:
			return kerr.NotSupported
		case syscall.EOPNOTSUPP:
			return kerr.OperationNotSupported
		case syscall.ENOMEM:
			return kerr.NoMemory
		}
	}
	return kerr.IOError
}

func (fs *ShadowFS) logf(format string, args ...any) {
	logger.Tracef(format, args...)
}
