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
	"fmt"
	"strings"
)

// PageRange is one contiguous run of pages [start, end) in the virtual
// address space, together with the page category bits the kernel
// reported for it. The field layout matches struct page_region of the
// PAGEMAP_SCAN ioctl, which lets a []PageRange act as the ioctl output
// vector without copying.
type PageRange struct {
	start      uint64
	end        uint64
	categories uint64
}

// NewPageRange creates a range [startAddr, endAddr) carrying category
// bits. Reversed bounds are swapped.
func NewPageRange(startAddr, endAddr, categories uint64) PageRange {
	if endAddr < startAddr {
		startAddr, endAddr = endAddr, startAddr
	}
	return PageRange{start: startAddr, end: endAddr, categories: categories}
}

func (pr *PageRange) Start() uint64 {
	return pr.start
}

func (pr *PageRange) End() uint64 {
	return pr.end
}

// Length returns the range length in bytes.
func (pr *PageRange) Length() uint64 {
	return pr.end - pr.start
}

// Pages returns the range length in pages.
func (pr *PageRange) Pages() uint64 {
	return (pr.end - pr.start) / constUPagesize
}

// Categories returns the page category bits of the range.
func (pr *PageRange) Categories() uint64 {
	return pr.categories
}

func (pr *PageRange) String() string {
	return fmt.Sprintf("%x-%x (%d pages)", pr.start, pr.end, pr.Pages())
}

// DirtyPageSet is the outcome of one pagemap scan: matching page runs
// in ascending address order, pairwise disjoint and never adjacent,
// all inside the covered window.
type DirtyPageSet struct {
	start    uint64
	end      uint64
	syscalls uint64
	ranges   []PageRange
}

// Window returns the address range the scan covered. The end is short
// of the requested end only if the scan ran out of buffer slots.
func (ds *DirtyPageSet) Window() (uint64, uint64) {
	return ds.start, ds.end
}

// Ranges returns the matched runs. The slice aliases the scan buffer
// and stays valid until the buffer is reused.
func (ds *DirtyPageSet) Ranges() []PageRange {
	return ds.ranges
}

func (ds *DirtyPageSet) Empty() bool {
	return len(ds.ranges) == 0
}

// Bytes returns the total matched length in bytes.
func (ds *DirtyPageSet) Bytes() uint64 {
	total := uint64(0)
	for i := range ds.ranges {
		total += ds.ranges[i].Length()
	}
	return total
}

// Pages returns the total matched length in pages.
func (ds *DirtyPageSet) Pages() uint64 {
	return ds.Bytes() / constUPagesize
}

// Syscalls returns how many ioctl calls the scan needed to cover the
// window.
func (ds *DirtyPageSet) Syscalls() uint64 {
	return ds.syscalls
}

func (ds *DirtyPageSet) String() string {
	rs := make([]string, 0, len(ds.ranges))
	for i := range ds.ranges {
		rs = append(rs, ds.ranges[i].String())
	}
	return fmt.Sprintf("window %x-%x dirty %d pages: %s",
		ds.start, ds.end, ds.Pages(), strings.Join(rs, ", "))
}
