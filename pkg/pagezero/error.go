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

// Error kinds, distinguishable with errors.Is through wrapped chains.
// Anything else coming out of a reclaim is a plain syscall failure with
// the errno in the chain.
var (
	// ErrResource: mapping or unmapping memory failed. Fatal to the
	// worker that hit it, never retried.
	ErrResource = errors.New("region resource failure")
	// ErrUnaligned: a scan window start or length is not a multiple
	// of the page size.
	ErrUnaligned = errors.New("address range not page aligned")
	// ErrScanUnsupported: the running kernel has no PAGEMAP_SCAN.
	// Scan-based reclaimers degrade to discard advice instead of
	// failing the benchmark.
	ErrScanUnsupported = errors.New("PAGEMAP_SCAN not supported")
)

// scanUnsupportedErrno tells if an errno from the pagemap ioctl means
// the interface itself is missing rather than the request being bad.
func scanUnsupportedErrno(errno unix.Errno) bool {
	switch errno {
	case unix.ENOTTY, unix.ENOSYS, unix.EOPNOTSUPP:
		return true
	}
	return false
}
