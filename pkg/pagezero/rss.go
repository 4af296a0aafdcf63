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
	"os"
	"strconv"
	"strings"
)

// ReadRssAnon returns the anonymous resident set size of this process
// in bytes. The value is process wide: with concurrent workers it
// tells the trend around a reclaim, not the exact page count of one
// region.
func ReadRssAnon() (uint64, error) {
	data, err := os.ReadFile("/proc/self/status")
	if err != nil {
		return 0, err
	}
	for _, line := range strings.Split(string(data), "\n") {
		if !strings.HasPrefix(line, "RssAnon:") {
			continue
		}
		// RssAnon:     123456 kB
		fields := strings.Fields(line)
		if len(fields) < 2 {
			break
		}
		kb, err := strconv.ParseUint(fields[1], 10, 64)
		if err != nil {
			return 0, fmt.Errorf("unparsable RssAnon line %q", line)
		}
		return kb * 1024, nil
	}
	return 0, fmt.Errorf("no RssAnon in /proc/self/status")
}
