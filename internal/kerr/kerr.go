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

// Package kerr defines the fixed set of error kinds the dispatcher may
// surface to the kernel, each bound to the errno the kernel protocol
// library expects in its reply.
package kerr

import (
	"errors"
	"syscall"
)

// Kind wraps a syscall.Errno so callers can both compare with errors.Is
// against the package-level sentinels and recover the errno a reply layer
// needs to hand back to the kernel.
type Kind struct {
	name string
	errno syscall.Errno
}

func (k *Kind) Error() string {
	return k.name
}

// Errno returns the syscall.Errno this kind wraps.
func (k *Kind) Errno() syscall.Errno {
	return k.errno
}

var (
	// NotFound: missing shadow entry, missing fmap on a directory.
	NotFound = &Kind{name: "not_found", errno: syscall.ENOENT}
	// InvalidArgument: unknown nodeid, bad index, unsupported lock mode.
	InvalidArgument = &Kind{name: "invalid_argument", errno: syscall.EINVAL}
	// NotSupported: all mutating operations; shared locks; truncate.
	NotSupported = &Kind{name: "not_supported", errno: syscall.ENOSYS}
	// OperationNotSupported: DAX requested but not configured; fallocate.
	OperationNotSupported = &Kind{name: "operation_not_supported", errno: syscall.EOPNOTSUPP}
	// NoMemory: allocation failure during lookup or readdir.
	NoMemory = &Kind{name: "no_memory", errno: syscall.ENOMEM}
	// IOError: propagated from shadow FS calls.
	IOError = &Kind{name: "io_error", errno: syscall.EIO}
)

// ToErrno maps any error to the errno that should be returned to the kernel.
// Errors wrapping one of the package's Kind sentinels return that kind's
// errno; a bare syscall.Errno is passed through; anything else maps to EIO.
func ToErrno(err error) syscall.Errno {
	if err == nil {
		return 0
	}

	var k *Kind
	if errors.As(err, &k) {
		return k.errno
	}

	var errno syscall.Errno
	if errors.As(err, &errno) {
		return errno
	}

	return syscall.EIO
}
