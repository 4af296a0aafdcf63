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
)

const (
	// Page category bits of the PAGEMAP_SCAN ioctl, UAPI linux/fs.h
	// (kernel 6.7 and later).
	PageIsWpAllowed uint64 = 1 << iota
	PageIsWritten
	PageIsFile
	PageIsPresent
	PageIsSwapped
	PageIsPfnZero
	PageIsHuge
	PageIsSoftDirty
)

const (
	// PAGEMAP_SCAN flags. The benchmark scans read-only, so neither
	// flag is set, but both belong to the wire protocol.
	pmScanWpMatching uint64 = 1 << iota
	pmScanCheckWpAsync
)

// pmScanIoctl is the PAGEMAP_SCAN ioctl request number,
// _IOWR('f', 16, struct pm_scan_arg).
const pmScanIoctl uintptr = 0xc0606610

// dirtyPattern is the byte written when dirtying region contents.
const dirtyPattern byte = 0xAA

var constPagesize int64 = int64(os.Getpagesize())
var constUPagesize uint64 = uint64(constPagesize)
