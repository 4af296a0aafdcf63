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
	"testing"
)

func TestZeroAndFillBytes(t *testing.T) {
	b := make([]byte, 300)
	fillBytes(b, dirtyPattern)
	for i := range b {
		if b[i] != dirtyPattern {
			t.Fatalf("expected %#x at %d, got %#x", dirtyPattern, i, b[i])
		}
	}
	zeroBytes(b[:150])
	for i := range b {
		expected := byte(0)
		if i >= 150 {
			expected = dirtyPattern
		}
		if b[i] != expected {
			t.Fatalf("expected %#x at %d, got %#x", expected, i, b[i])
		}
	}
}

func TestAlignment(t *testing.T) {
	PS := constUPagesize
	tcases := []struct {
		name            string
		n               uint64
		expectedAligned bool
		expectedRoundUp uint64
	}{
		{"zero", 0, true, 0},
		{"one", 1, false, PS},
		{"page", PS, true, PS},
		{"page and one", PS + 1, false, 2 * PS},
		{"almost two pages", 2*PS - 1, false, 2 * PS},
		{"many pages", 64 * PS, true, 64 * PS},
	}
	for _, tc := range tcases {
		t.Run(tc.name, func(t *testing.T) {
			if alignedTo(tc.n) != tc.expectedAligned {
				t.Errorf("alignedTo(%d): expected %v", tc.n, tc.expectedAligned)
			}
			if got := roundUpToPagesize(tc.n); got != tc.expectedRoundUp {
				t.Errorf("roundUpToPagesize(%d): expected %d, got %d",
					tc.n, tc.expectedRoundUp, got)
			}
		})
	}
}

func TestSortedKeys(t *testing.T) {
	m := mapStringPStatsStrategy{
		"ScanAndZero":   nil,
		"DiscardAdvise": nil,
		"FullZero":      nil,
	}
	keys := m.sortedKeys()
	expected := []string{"DiscardAdvise", "FullZero", "ScanAndZero"}
	if len(keys) != len(expected) {
		t.Fatalf("expected %d keys, got %d", len(expected), len(keys))
	}
	for i := range expected {
		if keys[i] != expected[i] {
			t.Errorf("expected key %d to be %q, got %q", i, expected[i], keys[i])
		}
	}
}
