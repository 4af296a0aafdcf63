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
	"time"

	"github.com/prometheus/client_golang/prometheus"

	"github.com/intel/pagezero-bench/pkg/metrics"
)

var (
	regionsMappedDesc = prometheus.NewDesc(
		"pagezero_regions_mapped_total",
		"Anonymous regions mapped.",
		nil, nil)
	regionsUnmappedDesc = prometheus.NewDesc(
		"pagezero_regions_unmapped_total",
		"Anonymous regions unmapped.",
		nil, nil)
	mappedBytesDesc = prometheus.NewDesc(
		"pagezero_mapped_bytes_total",
		"Bytes of anonymous memory mapped.",
		nil, nil)
	dirtiedBytesDesc = prometheus.NewDesc(
		"pagezero_dirtied_bytes_total",
		"Bytes written when dirtying regions.",
		nil, nil)
	scansDesc = prometheus.NewDesc(
		"pagezero_scans_total",
		"Pagemap scans.",
		nil, nil)
	scanSyscallsDesc = prometheus.NewDesc(
		"pagezero_scan_syscalls_total",
		"PAGEMAP_SCAN ioctl calls, continuations included.",
		nil, nil)
	scannedPagesDesc = prometheus.NewDesc(
		"pagezero_scanned_pages_total",
		"Pages covered by pagemap scans.",
		nil, nil)
	matchedPagesDesc = prometheus.NewDesc(
		"pagezero_scan_matched_pages_total",
		"Pages reported dirty by pagemap scans.",
		nil, nil)
	scanRangesDesc = prometheus.NewDesc(
		"pagezero_scan_ranges_total",
		"Coalesced ranges reported by pagemap scans.",
		nil, nil)
	zeroedBytesDesc = prometheus.NewDesc(
		"pagezero_zeroed_bytes_total",
		"Bytes cleaned by writing zeroes.",
		nil, nil)
	discardedBytesDesc = prometheus.NewDesc(
		"pagezero_discarded_bytes_total",
		"Bytes cleaned with discard advice.",
		nil, nil)
	measurementsDesc = prometheus.NewDesc(
		"pagezero_measurements_total",
		"Completed measurements per strategy.",
		[]string{"strategy"}, nil)
	measurementErrorsDesc = prometheus.NewDesc(
		"pagezero_measurement_errors_total",
		"Voided measurements per strategy.",
		[]string{"strategy"}, nil)
	measurementSecondsDesc = prometheus.NewDesc(
		"pagezero_measurement_seconds_total",
		"Time spent inside timed reclaims per strategy.",
		[]string{"strategy"}, nil)
)

var collectorDescs = []*prometheus.Desc{
	regionsMappedDesc,
	regionsUnmappedDesc,
	mappedBytesDesc,
	dirtiedBytesDesc,
	scansDesc,
	scanSyscallsDesc,
	scannedPagesDesc,
	matchedPagesDesc,
	scanRangesDesc,
	zeroedBytesDesc,
	discardedBytesDesc,
	measurementsDesc,
	measurementErrorsDesc,
	measurementSecondsDesc,
}

// collector exposes the engine stats as prometheus counters.
type collector struct{}

// NewCollector creates the benchmark metrics collector.
func NewCollector() (prometheus.Collector, error) {
	return &collector{}, nil
}

func init() {
	err := metrics.RegisterCollector("pagezero", NewCollector)
	if err != nil {
		fmt.Printf("Failed to register pagezero collector: %v", err)
		return
	}
}

// Describe implements prometheus.Collector.
func (c *collector) Describe(ch chan<- *prometheus.Desc) {
	for _, desc := range collectorDescs {
		ch <- desc
	}
}

// Collect implements prometheus.Collector.
func (c *collector) Collect(ch chan<- prometheus.Metric) {
	snap := stats.snapshot()
	counter := func(desc *prometheus.Desc, value uint64, labels ...string) {
		ch <- prometheus.MustNewConstMetric(desc, prometheus.CounterValue, float64(value), labels...)
	}
	counter(regionsMappedDesc, snap.regions.mapped)
	counter(regionsUnmappedDesc, snap.regions.unmapped)
	counter(mappedBytesDesc, snap.regions.mappedBytes)
	counter(dirtiedBytesDesc, snap.regions.dirtiedBytes)
	counter(scansDesc, snap.scans.scans)
	counter(scanSyscallsDesc, snap.scans.syscalls)
	counter(scannedPagesDesc, snap.scans.scannedPages)
	counter(matchedPagesDesc, snap.scans.matchedPages)
	counter(scanRangesDesc, snap.scans.ranges)
	counter(zeroedBytesDesc, snap.reclaims.zeroedBytes)
	counter(discardedBytesDesc, snap.reclaims.discardedBytes)
	for _, name := range snap.strategies.sortedKeys() {
		ss := snap.strategies[name]
		counter(measurementsDesc, ss.measurements, name)
		counter(measurementErrorsDesc, ss.errors, name)
		ch <- prometheus.MustNewConstMetric(measurementSecondsDesc, prometheus.CounterValue,
			float64(ss.sumNs)/float64(time.Second), name)
	}
}
