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

package kproto

import "io"

// FileSystem has one method per op type. Each method is responsible for
// calling Respond on the op it is given, exactly once.
//
// Implementations must be safe for concurrent use: ServeOps dispatches
// every op on its own goroutine.
type FileSystem interface {
	Lookup(*LookupOp)
	Getattr(*GetattrOp)
	Setattr(*SetattrOp)
	Forget(*ForgetOp)
	Opendir(*OpendirOp)
	Readdir(*ReaddirOp)
	Releasedir(*ReleasedirOp)
	Open(*OpenOp)
	Read(*ReadOp)
	Write(*WriteOp)
	Flush(*FlushOp)
	Fsync(*FsyncOp)
	Release(*ReleaseOp)
	Flock(*FlockOp)
	Statfs(*StatfsOp)
	GetFmap(*GetFmapOp)
	GetDaxdev(*GetDaxdevOp)
	Unsupported(*UnsupportedOp)
}

// Connection is implemented by the transport: whatever decodes raw kernel
// requests into Op values. See the package doc for why this project
// takes that transport as an external dependency rather than
// implementing it.
type Connection interface {
	// ReadOp blocks until the next request is available, returning
	// io.EOF once the session has been torn down.
	ReadOp() (Op, error)
}

// NewServer returns a Server that dispatches every op read from a
// Connection to the matching FileSystem method, one goroutine per op.
func NewServer(fs FileSystem) *Server {
	return &Server{fs: fs}
}

// Server drives a Connection, handing each op it reads to the bound
// FileSystem.
type Server struct {
	fs FileSystem
}

// ServeOps loops reading ops from c and dispatching them until c reports
// io.EOF, at which point it returns. It does not return on other errors;
// those are programmer/transport errors and are not expected in normal
// operation.
func (s *Server) ServeOps(c Connection) {
	for {
		op, err := c.ReadOp()
		if err == io.EOF {
			return
		}
		if err != nil {
			panic(err)
		}
		go s.handleOp(op)
	}
}

func (s *Server) handleOp(op Op) {
	switch typed := op.(type) {
	default:
		op.Respond(errUnknownOp{})

	case *LookupOp:
		s.fs.Lookup(typed)
	case *GetattrOp:
		s.fs.Getattr(typed)
	case *SetattrOp:
		s.fs.Setattr(typed)
	case *ForgetOp:
		s.fs.Forget(typed)
	case *OpendirOp:
		s.fs.Opendir(typed)
	case *ReaddirOp:
		s.fs.Readdir(typed)
	case *ReleasedirOp:
		s.fs.Releasedir(typed)
	case *OpenOp:
		s.fs.Open(typed)
	case *ReadOp:
		s.fs.Read(typed)
	case *WriteOp:
		s.fs.Write(typed)
	case *FlushOp:
		s.fs.Flush(typed)
	case *FsyncOp:
		s.fs.Fsync(typed)
	case *ReleaseOp:
		s.fs.Release(typed)
	case *FlockOp:
		s.fs.Flock(typed)
	case *StatfsOp:
		s.fs.Statfs(typed)
	case *GetFmapOp:
		s.fs.GetFmap(typed)
	case *GetDaxdevOp:
		s.fs.GetDaxdev(typed)
	case *UnsupportedOp:
		s.fs.Unsupported(typed)
	}
}

type errUnknownOp struct{}

func (errUnknownOp) Error() string { return "kproto: unrecognized op type" }
