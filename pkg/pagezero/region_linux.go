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
	"math"
	"unsafe"

	"github.com/pkg/errors"
	"golang.org/x/sys/unix"
)

// Region is an anonymous private memory mapping owned by the
// benchmark. A region is used by one worker at a time: nothing in the
// engine shares a live region between goroutines.
type Region struct {
	data          []byte
	dirtyFraction float64
}

// NewRegion maps size bytes of anonymous memory. With forceResident
// the whole mapping is zero-filled right away so that every page is
// faulted in before any measurement touches the region.
func NewRegion(size uint64, dirtyFraction float64, forceResident bool) (*Region, error) {
	if size == 0 {
		return nil, errors.Wrap(ErrResource, "cannot map an empty region")
	}
	data, err := unix.Mmap(-1, 0, int(size),
		unix.PROT_READ|unix.PROT_WRITE,
		unix.MAP_PRIVATE|unix.MAP_ANONYMOUS)
	if err != nil {
		return nil, errors.Wrapf(ErrResource, "mmap %d bytes: %v", size, err)
	}
	r := &Region{
		data:          data,
		dirtyFraction: dirtyFraction,
	}
	if forceResident {
		zeroBytes(r.data)
	}
	stats.Store(StatsRegionMapped{bytes: size})
	return r, nil
}

// Size returns the mapping length in bytes, 0 after Close.
func (r *Region) Size() uint64 {
	return uint64(len(r.data))
}

// Addr returns the mapping base address, 0 after Close.
func (r *Region) Addr() uint64 {
	if len(r.data) == 0 {
		return 0
	}
	return uint64(uintptr(unsafe.Pointer(&r.data[0])))
}

// View returns the mapped memory. The caller gets exclusive use of the
// slice until the next engine call on this region.
func (r *Region) View() []byte {
	return r.data
}

// DirtyFraction returns the fraction the region was configured with.
func (r *Region) DirtyFraction() float64 {
	return r.dirtyFraction
}

// DirtyTarget returns how many bytes MakeDirty writes: the configured
// fraction of the region size, rounded half away from zero and clamped
// to the region.
func (r *Region) DirtyTarget() uint64 {
	target := math.Round(float64(len(r.data)) * r.dirtyFraction)
	if math.IsNaN(target) || target < 0 {
		return 0
	}
	if target > float64(len(r.data)) {
		return uint64(len(r.data))
	}
	return uint64(target)
}

// MakeDirty writes the dirty pattern over the first DirtyTarget bytes
// of the region.
func (r *Region) MakeDirty() {
	n := r.DirtyTarget()
	if n == 0 {
		return
	}
	fillBytes(r.data[:n], dirtyPattern)
	stats.Store(StatsDirtied{bytes: n})
}

// Close unmaps the region. The first call releases the mapping, later
// calls are no-ops.
func (r *Region) Close() error {
	if r.data == nil {
		return nil
	}
	data := r.data
	r.data = nil
	if err := unix.Munmap(data); err != nil {
		return errors.Wrapf(ErrResource, "munmap %d bytes: %v", len(data), err)
	}
	stats.Store(StatsRegionUnmapped{bytes: uint64(len(data))})
	return nil
}
