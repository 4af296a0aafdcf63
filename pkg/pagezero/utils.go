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
	"sort"
)

// zeroBytes clears b with the plain loop the compiler turns into a
// memclr. This is the write path whose cost the zeroing strategies
// measure, so keep it free of per-iteration bookkeeping.
func zeroBytes(b []byte) {
	for i := range b {
		b[i] = 0
	}
}

func fillBytes(b []byte, v byte) {
	for i := range b {
		b[i] = v
	}
}

// alignedTo tells if n is a multiple of the page size.
func alignedTo(n uint64) bool {
	return n%constUPagesize == 0
}

// roundUpToPagesize rounds n up to the next page boundary.
func roundUpToPagesize(n uint64) uint64 {
	return (n + constUPagesize - 1) / constUPagesize * constUPagesize
}

type mapStringPStatsStrategy map[string]*StatsStrategy

func (m mapStringPStatsStrategy) sortedKeys() []string {
	keys := make([]string, 0, len(m))
	for key := range m {
		keys = append(keys, key)
	}
	sort.Strings(keys)
	return keys
}
