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
	"time"

	"github.com/prometheus/client_golang/prometheus"
	dto "github.com/prometheus/client_model/go"
)

func gatherPagezero(t *testing.T) map[string]*dto.MetricFamily {
	t.Helper()
	reg := prometheus.NewPedanticRegistry()
	c, err := NewCollector()
	if err != nil {
		t.Fatalf("creating collector: %v", err)
	}
	reg.MustRegister(c)
	mfs, err := reg.Gather()
	if err != nil {
		t.Fatalf("gather: %v", err)
	}
	families := map[string]*dto.MetricFamily{}
	for _, mf := range mfs {
		families[mf.GetName()] = mf
	}
	return families
}

func findCounter(families map[string]*dto.MetricFamily, name string, labels ...string) (float64, bool) {
	mf, ok := families[name]
	if !ok {
		return 0, false
	}
	if mf.GetType() != dto.MetricType_COUNTER {
		return 0, false
	}
	for _, m := range mf.GetMetric() {
		if len(labels) == 0 && len(m.GetLabel()) == 0 {
			return m.GetCounter().GetValue(), true
		}
		if len(labels) == 2 && len(m.GetLabel()) == 1 &&
			m.GetLabel()[0].GetName() == labels[0] &&
			m.GetLabel()[0].GetValue() == labels[1] {
			return m.GetCounter().GetValue(), true
		}
	}
	return 0, false
}

func counterValue(t *testing.T, families map[string]*dto.MetricFamily, name string, labels ...string) float64 {
	t.Helper()
	value, ok := findCounter(families, name, labels...)
	if !ok {
		t.Fatalf("no counter %q with labels %v", name, labels)
	}
	return value
}

// The collector reads the global engine counters, which only grow.
// Checks are against the deltas stored by this test.
func TestCollector(t *testing.T) {
	before := gatherPagezero(t)
	stats.Store(StatsRegionMapped{bytes: 1024 * 1024})
	stats.Store(StatsDirtied{bytes: 512 * 1024})
	stats.Store(StatsScan{scans: 1, syscalls: 2, scannedPages: 256, matchedPages: 128, ranges: 4})
	stats.Store(StatsZeroed{bytes: 512 * 1024})
	stats.Store(StatsDiscarded{bytes: 256 * 1024})
	stats.Store(StatsMeasurement{strategy: "FullZero", duration: 2 * time.Millisecond})
	stats.Store(StatsMeasurement{strategy: "FullZero", failed: true})
	after := gatherPagezero(t)

	growth := []struct {
		name     string
		labels   []string
		expected float64
	}{
		{name: "pagezero_regions_mapped_total", expected: 1},
		{name: "pagezero_mapped_bytes_total", expected: 1024 * 1024},
		{name: "pagezero_dirtied_bytes_total", expected: 512 * 1024},
		{name: "pagezero_scans_total", expected: 1},
		{name: "pagezero_scan_syscalls_total", expected: 2},
		{name: "pagezero_scanned_pages_total", expected: 256},
		{name: "pagezero_scan_matched_pages_total", expected: 128},
		{name: "pagezero_scan_ranges_total", expected: 4},
		{name: "pagezero_zeroed_bytes_total", expected: 512 * 1024},
		{name: "pagezero_discarded_bytes_total", expected: 256 * 1024},
		{name: "pagezero_measurements_total", labels: []string{"strategy", "FullZero"}, expected: 1},
		{name: "pagezero_measurement_errors_total", labels: []string{"strategy", "FullZero"}, expected: 1},
		{name: "pagezero_measurement_seconds_total", labels: []string{"strategy", "FullZero"}, expected: 0.002},
	}
	for _, g := range growth {
		beforeValue, _ := findCounter(before, g.name, g.labels...)
		afterValue := counterValue(t, after, g.name, g.labels...)
		if afterValue-beforeValue < g.expected-1e-9 {
			t.Errorf("%s %v: expected growth of %f from %f, got %f",
				g.name, g.labels, g.expected, beforeValue, afterValue)
		}
	}
}

func TestCollectorDescribe(t *testing.T) {
	c, err := NewCollector()
	if err != nil {
		t.Fatalf("creating collector: %v", err)
	}
	ch := make(chan *prometheus.Desc, 32)
	c.Describe(ch)
	close(ch)
	descs := 0
	for range ch {
		descs += 1
	}
	if descs != len(collectorDescs) {
		t.Errorf("expected %d descriptions, got %d", len(collectorDescs), descs)
	}
}
