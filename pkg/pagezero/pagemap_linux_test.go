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
	"os"
	"testing"

	"github.com/pkg/errors"
)

// scanTestSetup maps pages for scanning and opens the pagemap of this
// process. Tests are skipped on kernels without PAGEMAP_SCAN.
func scanTestSetup(t *testing.T, pages uint64, dirtyFraction float64) (*Region, *ProcPagemapFile) {
	t.Helper()
	if !PagemapScanAvailable() {
		t.Skip("kernel has no PAGEMAP_SCAN")
	}
	region, err := NewRegion(pages*constUPagesize, dirtyFraction, false)
	if err != nil {
		t.Fatalf("mapping %d pages: %v", pages, err)
	}
	t.Cleanup(func() { _ = region.Close() })
	pagemap, err := ProcPagemapOpen(os.Getpid())
	if err != nil {
		t.Fatalf("opening pagemap: %v", err)
	}
	t.Cleanup(func() { _ = pagemap.Close() })
	return region, pagemap
}

func TestScanUntouchedRegion(t *testing.T) {
	region, pagemap := scanTestSetup(t, 64, 0.0)
	buf := make([]PageRange, 64)
	set, err := pagemap.ScanWritten(region.Addr(), region.Size(), buf)
	if err != nil {
		t.Fatalf("scan: %v", err)
	}
	if !set.Empty() {
		t.Errorf("untouched region reported dirty: %s", set.String())
	}
	if start, end := set.Window(); start != region.Addr() || end != region.Addr()+region.Size() {
		t.Errorf("expected window %x-%x, got %x-%x",
			region.Addr(), region.Addr()+region.Size(), start, end)
	}
}

func TestScanAlternatingPages(t *testing.T) {
	pages := uint64(64)
	region, pagemap := scanTestSetup(t, pages, 0.0)
	view := region.View()
	for page := uint64(0); page < pages; page += 2 {
		view[page*constUPagesize] = 1
	}
	buf := make([]PageRange, pages)
	set, err := pagemap.ScanWritten(region.Addr(), region.Size(), buf)
	if err != nil {
		t.Fatalf("scan: %v", err)
	}
	if len(set.Ranges()) != int(pages/2) {
		t.Errorf("expected %d single page ranges, got %d: %s",
			pages/2, len(set.Ranges()), set.String())
	}
	if set.Pages() != pages/2 {
		t.Errorf("expected %d dirty pages, got %d", pages/2, set.Pages())
	}
	last := PageRange{}
	for i, pr := range set.Ranges() {
		if pr.Pages() != 1 {
			t.Errorf("range %d: expected a single page, got %s", i, pr.String())
		}
		if (pr.Start()-region.Addr())/constUPagesize%2 != 0 {
			t.Errorf("range %d: untouched page reported dirty: %s", i, pr.String())
		}
		if i > 0 && pr.Start() < last.End() {
			t.Errorf("range %d: out of order or overlapping: %s after %s",
				i, pr.String(), last.String())
		}
		last = pr
	}
}

func TestScanCoalescesContiguousPages(t *testing.T) {
	pages := uint64(64)
	region, pagemap := scanTestSetup(t, pages, 0.0)
	fillBytes(region.View(), dirtyPattern)
	buf := make([]PageRange, pages)
	set, err := pagemap.ScanWritten(region.Addr(), region.Size(), buf)
	if err != nil {
		t.Fatalf("scan: %v", err)
	}
	if len(set.Ranges()) != 1 {
		t.Errorf("expected one coalesced range, got %d: %s", len(set.Ranges()), set.String())
	}
	if set.Pages() != pages {
		t.Errorf("expected %d dirty pages, got %d", pages, set.Pages())
	}
}

func TestScanDirtyFraction(t *testing.T) {
	region, pagemap := scanTestSetup(t, 256, 0.1)
	region.MakeDirty()
	target := region.DirtyTarget()
	expectedPages := (target + constUPagesize - 1) / constUPagesize
	buf := make([]PageRange, 256)
	set, err := pagemap.ScanWritten(region.Addr(), region.Size(), buf)
	if err != nil {
		t.Fatalf("scan: %v", err)
	}
	if set.Pages() != expectedPages {
		t.Errorf("expected %d dirty pages after dirtying %d bytes, got %d",
			expectedPages, target, set.Pages())
	}
}

func TestScanAfterDiscard(t *testing.T) {
	region, pagemap := scanTestSetup(t, 64, 0.0)
	fillBytes(region.View(), dirtyPattern)
	if err := discardRange(region.Addr(), region.Size()); err != nil {
		t.Fatalf("discard: %v", err)
	}
	buf := make([]PageRange, 64)
	set, err := pagemap.ScanWritten(region.Addr(), region.Size(), buf)
	if err != nil {
		t.Fatalf("scan: %v", err)
	}
	if !set.Empty() {
		t.Errorf("discarded region reported dirty: %s", set.String())
	}
}

func TestScanSmallBufferStopsEarly(t *testing.T) {
	pages := uint64(64)
	region, pagemap := scanTestSetup(t, pages, 0.0)
	view := region.View()
	for page := uint64(0); page < pages; page += 2 {
		view[page*constUPagesize] = 1
	}
	// Every scan fills its whole buffer, the window ends early, the
	// next scan continues where the previous one stopped.
	buf := make([]PageRange, 4)
	covered := region.Addr()
	end := region.Addr() + region.Size()
	dirty := uint64(0)
	for covered < end {
		set, err := pagemap.ScanWritten(covered, end-covered, buf)
		if err != nil {
			t.Fatalf("scan at %x: %v", covered, err)
		}
		_, windowEnd := set.Window()
		if windowEnd <= covered {
			t.Fatalf("scan at %x made no progress", covered)
		}
		dirty += set.Pages()
		covered = windowEnd
	}
	if dirty != pages/2 {
		t.Errorf("expected %d dirty pages over all continuations, got %d", pages/2, dirty)
	}
}

func TestScanWindowValidation(t *testing.T) {
	region, pagemap := scanTestSetup(t, 4, 0.0)
	buf := make([]PageRange, 4)
	if _, err := pagemap.ScanWritten(region.Addr()+1, constUPagesize, buf); !errors.Is(err, ErrUnaligned) {
		t.Errorf("expected unaligned error for a bad start, got %v", err)
	}
	if _, err := pagemap.ScanWritten(region.Addr(), constUPagesize+1, buf); !errors.Is(err, ErrUnaligned) {
		t.Errorf("expected unaligned error for a bad length, got %v", err)
	}
	if _, err := pagemap.ScanWritten(region.Addr(), constUPagesize, nil); err == nil {
		t.Errorf("expected an error scanning into an empty buffer")
	}
	set, err := pagemap.ScanWritten(region.Addr(), 0, buf)
	if err != nil {
		t.Errorf("empty window scan: %v", err)
	}
	if !set.Empty() {
		t.Errorf("empty window reported dirty pages")
	}
}
