//go:build linux
// +build linux

// Copyright 2024 Intel Corporation. All Rights Reserved.
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

package pagezero

import (
	"github.com/pkg/errors"
	"golang.org/x/sys/unix"
)

// MadviseSyscall gives the kernel advice about the address range.
func MadviseSyscall(addr uint64, length uint64, advice int) error {
	var err error
	// syscall:
	// int madvise(void *addr, size_t length, int advice);
	_, _, en := unix.Syscall(unix.SYS_MADVISE, uintptr(addr), uintptr(length), uintptr(advice))
	if en != 0 {
		err = unix.Errno(en)
	}
	return err
}

// discardRange drops the backing pages of [addr, addr+length) with
// MADV_DONTNEED. The next touch on a dropped page observes zero-fill
// content.
func discardRange(addr uint64, length uint64) error {
	if err := MadviseSyscall(addr, length, unix.MADV_DONTNEED); err != nil {
		return errors.Wrapf(err, "madvise(%#x, %d, MADV_DONTNEED)", addr, length)
	}
	return nil
}
