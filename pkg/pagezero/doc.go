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

// Package pagezero measures strategies that return dirty anonymous
// memory to a clean state.
//
// The package maps anonymous memory regions, dirties a configurable
// fraction of them, and times how long each reclaim strategy takes to
// make the content clean again:
//
//	fullzero   write zeroes over the whole region
//	discard    madvise(MADV_DONTNEED) the whole region
//	scanzero   find written pages with the PAGEMAP_SCAN ioctl,
//	           write zeroes over those pages only
//	heuristic  pick one of the above based on the region size
//
// The benchmark data flow:
//
//	Config
//	   |
//	   v
//	Bench ---- worker goroutines, one per configured thread
//	   |           |
//	   |           +-- Reclaimer (per worker, from the registry)
//	   |           |       |
//	   |           |       +-- Region: mmap, dirty, reclaim, munmap
//	   |           |       +-- ProcPagemapFile: PAGEMAP_SCAN
//	   |           |
//	   |           +-- timed Reclaim() call -> Result
//	   v
//	Results ---- JSON list or summary table
//
// Only the Reclaim call is timed. Region setup, dirtying and teardown
// happen outside the measured window, and every measurement runs on a
// freshly mapped region so that reclaims never see each other's page
// state.
//
// The package logs nothing by default. Call SetLogger to direct engine
// messages to a standard library logger.
package pagezero
