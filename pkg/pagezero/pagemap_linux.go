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

// Dirty page scanning uses the PAGEMAP_SCAN ioctl on
// /proc/pid/pagemap, available since kernel 6.7:
// https://docs.kernel.org/admin-guide/mm/pagemap.html

package pagezero

import (
	"os"
	"strconv"
	"sync"
	"unsafe"

	"github.com/pkg/errors"
	"golang.org/x/sys/unix"
)

// pmScanArg is struct pm_scan_arg of the PAGEMAP_SCAN ioctl
// (UAPI linux/fs.h):
// struct pm_scan_arg {
//         __u64 size;
//         __u64 flags;
//         __u64 start;
//         __u64 end;
//         __u64 walk_end;
//         __u64 vec;
//         __u64 vec_len;
//         __u64 max_pages;
//         __u64 category_inverted;
//         __u64 category_mask;
//         __u64 category_anyof_mask;
//         __u64 return_mask;
// };
type pmScanArg struct {
	size              uint64
	flags             uint64
	start             uint64
	end               uint64
	walkEnd           uint64
	vec               uint64
	vecLen            uint64
	maxPages          uint64
	categoryInverted  uint64
	categoryMask      uint64
	categoryAnyofMask uint64
	returnMask        uint64
}

// ScanFilter selects pages for a pagemap scan. A page matches if its
// categories, XORed with Inverted, contain every bit of Mask and at
// least one bit of AnyOf (when AnyOf is non-zero). Matching pages are
// reported coalesced by equal categories under Return.
type ScanFilter struct {
	Mask     uint64
	AnyOf    uint64
	Inverted uint64
	Return   uint64
}

// WrittenFilter matches pages written since they were faulted in clean
// or discarded.
func WrittenFilter() ScanFilter {
	return ScanFilter{Mask: PageIsWritten, Return: PageIsWritten}
}

// ProcPagemapFile is an open pagemap file of a process.
type ProcPagemapFile struct {
	file *os.File
}

// ProcPagemapOpen opens the pagemap file of a process for scanning.
func ProcPagemapOpen(pid int) (*ProcPagemapFile, error) {
	path := "/proc/" + strconv.Itoa(pid) + "/pagemap"
	file, err := os.OpenFile(path, os.O_RDONLY, 0)
	if err != nil {
		return nil, errors.Wrapf(err, "open %s", path)
	}
	return &ProcPagemapFile{file: file}, nil
}

func (f *ProcPagemapFile) Close() error {
	if f.file == nil {
		return nil
	}
	err := f.file.Close()
	f.file = nil
	return err
}

// pagemapScanSyscall issues one PAGEMAP_SCAN ioctl.
// syscall:
// long ioctl(int fd, PAGEMAP_SCAN, struct pm_scan_arg *arg);
// On success the return value is the number of page_region structs
// written to arg->vec, and arg->walk_end tells how far the walk got.
func pagemapScanSyscall(fd uintptr, arg *pmScanArg) (int, error) {
	var err error
	ret, _, en := unix.Syscall(unix.SYS_IOCTL, fd, pmScanIoctl, uintptr(unsafe.Pointer(arg)))
	if en != 0 {
		err = unix.Errno(en)
		return 0, err
	}
	return int(ret), nil
}

// Scan walks the window [start, start+length) and fills buf with the
// runs of pages matching filter, in ascending address order, disjoint
// and non-adjacent. The kernel stops a walk when its output vector is
// full, so Scan re-issues the ioctl into the unused tail of buf and
// merges the seam until the window is covered or buf runs out. Scan
// allocates nothing: buf is both the kernel vector and the backing of
// the returned set. A buffer of length/pagesize entries always fits
// the worst case.
//
// Start and length must be multiples of the page size.
func (f *ProcPagemapFile) Scan(start, length uint64, filter ScanFilter, buf []PageRange) (DirtyPageSet, error) {
	if !alignedTo(start) || !alignedTo(length) {
		return DirtyPageSet{}, errors.Wrapf(ErrUnaligned, "scan window %#x+%#x", start, length)
	}
	end := start + length
	if length == 0 {
		return DirtyPageSet{start: start, end: end}, nil
	}
	if len(buf) == 0 {
		return DirtyPageSet{}, errors.New("scan needs a non-empty range buffer")
	}
	filled := 0
	syscalls := uint64(0)
	next := start
	for next < end && filled < len(buf) {
		free := buf[filled:]
		arg := pmScanArg{
			start:             next,
			end:               end,
			vec:               uint64(uintptr(unsafe.Pointer(&free[0]))),
			vecLen:            uint64(len(free)),
			categoryInverted:  filter.Inverted,
			categoryMask:      filter.Mask,
			categoryAnyofMask: filter.AnyOf,
			returnMask:        filter.Return,
		}
		arg.size = uint64(unsafe.Sizeof(arg))
		n, err := pagemapScanSyscall(f.file.Fd(), &arg)
		syscalls += 1
		if err != nil {
			if errno, ok := err.(unix.Errno); ok && scanUnsupportedErrno(errno) {
				return DirtyPageSet{}, errors.Wrapf(ErrScanUnsupported, "%v", errno)
			}
			return DirtyPageSet{}, errors.Wrapf(err, "PAGEMAP_SCAN at %#x", next)
		}
		if n > 0 {
			// A continuation can open exactly where the previous
			// batch ended. Merge the seam so that the output stays
			// non-adjacent.
			if filled > 0 && free[0].start == buf[filled-1].end &&
				free[0].categories == buf[filled-1].categories {
				buf[filled-1].end = free[0].end
				copy(free[0:], free[1:n])
				n -= 1
			}
			filled += n
		}
		if n == 0 && arg.walkEnd <= next {
			return DirtyPageSet{}, errors.Errorf("PAGEMAP_SCAN made no progress at %#x", next)
		}
		next = arg.walkEnd
	}
	set := DirtyPageSet{start: start, end: next, syscalls: syscalls, ranges: buf[:filled]}
	return set, nil
}

// ScanWritten is Scan with the written pages filter.
func (f *ProcPagemapFile) ScanWritten(start, length uint64, buf []PageRange) (DirtyPageSet, error) {
	return f.Scan(start, length, WrittenFilter(), buf)
}

var pagemapScanOnce sync.Once
var pagemapScanWorks bool

// PagemapScanAvailable tells whether the running kernel implements
// PAGEMAP_SCAN. The first call probes with a scratch mapping, later
// calls return the cached verdict.
func PagemapScanAvailable() bool {
	pagemapScanOnce.Do(func() {
		err := probePagemapScan()
		pagemapScanWorks = err == nil
		if err != nil {
			log.Debugf("pagemap scan probe: %v", err)
		}
	})
	return pagemapScanWorks
}

func probePagemapScan() error {
	data, err := unix.Mmap(-1, 0, int(constPagesize),
		unix.PROT_READ|unix.PROT_WRITE,
		unix.MAP_PRIVATE|unix.MAP_ANONYMOUS)
	if err != nil {
		return err
	}
	defer func() {
		_ = unix.Munmap(data)
	}()
	data[0] = 1
	f, err := ProcPagemapOpen(os.Getpid())
	if err != nil {
		return err
	}
	defer f.Close()
	buf := make([]PageRange, 1)
	_, err = f.ScanWritten(uint64(uintptr(unsafe.Pointer(&data[0]))), constUPagesize, buf)
	return err
}
