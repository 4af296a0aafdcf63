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
	"encoding/json"
	"fmt"
	"sort"
	"strings"
	"time"
)

// Result is the outcome of one timed reclaim. Duration covers the
// Reclaim call only, measured with the monotonic clock. RssBefore and
// RssAfter are filled only when RSS sampling is on.
type Result struct {
	Strategy      Strategy      `json:"strategy"`
	TotalSize     uint64        `json:"total_size"`
	DirtyFraction float64       `json:"dirty_fraction"`
	Duration      time.Duration `json:"duration_ns"`
	Threads       int           `json:"threads"`
	Processes     int           `json:"processes"`
	RssBefore     uint64        `json:"rss_before,omitempty"`
	RssAfter      uint64        `json:"rss_after,omitempty"`
}

// Results is an ordered list of measurement outcomes.
type Results []Result

// JsonString renders the results as a flat JSON list.
func (rs Results) JsonString() (string, error) {
	out, err := json.Marshal(rs)
	if err != nil {
		return "", err
	}
	return string(out), nil
}

// Summarize renders a per-strategy duration table.
func (rs Results) Summarize() string {
	type resultAgg struct {
		count uint64
		sumNs uint64
		minNs uint64
		maxNs uint64
		bytes uint64
	}
	aggs := map[string]*resultAgg{}
	for i := range rs {
		name := rs[i].Strategy.String()
		agg, ok := aggs[name]
		if !ok {
			agg = &resultAgg{}
			aggs[name] = agg
		}
		ns := uint64(rs[i].Duration.Nanoseconds())
		agg.count += 1
		agg.sumNs += ns
		if agg.count == 1 || ns < agg.minNs {
			agg.minNs = ns
		}
		if ns > agg.maxNs {
			agg.maxNs = ns
		}
		agg.bytes += rs[i].TotalSize
	}
	names := make([]string, 0, len(aggs))
	for name := range aggs {
		names = append(names, name)
	}
	sort.Strings(names)
	lines := []string{}
	lines = append(lines, "table: results")
	lines = append(lines, "     strategy    count  min[us]  avg[us]  max[us] avg[GiB/s]")
	for _, name := range names {
		agg := aggs[name]
		avgNs := agg.sumNs / agg.count
		gibps := float64(0)
		if agg.sumNs > 0 {
			gibps = float64(agg.bytes) / (float64(agg.sumNs) / float64(time.Second)) / (1 << 30)
		}
		lines = append(lines, fmt.Sprintf("%13s %8d %8d %8d %8d %10.2f",
			name,
			agg.count,
			agg.minNs/1000,
			avgNs/1000,
			agg.maxNs/1000,
			gibps))
	}
	return strings.Join(lines, "\n")
}
