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
)

// ReclaimerDiscard hands the whole region back to the kernel with one
// MADV_DONTNEED call. Pages are freed asynchronously and fault back in
// as zero-fill on the next touch.
type ReclaimerDiscard struct {
	discardedBytes uint64
}

func init() {
	ReclaimerRegister("discard", NewReclaimerDiscard)
}

func NewReclaimerDiscard() (Reclaimer, error) {
	return &ReclaimerDiscard{}, nil
}

func (d *ReclaimerDiscard) SetConfigJson(configJson string) error {
	if configJson != "" && configJson != "{}" {
		return fmt.Errorf("discard takes no options, got %q", configJson)
	}
	return nil
}

func (d *ReclaimerDiscard) GetConfigJson() string {
	return "{}"
}

func (d *ReclaimerDiscard) Strategy() Strategy {
	return StrategyDiscardAdvise
}

func (d *ReclaimerDiscard) ForceResident() bool {
	return false
}

func (d *ReclaimerDiscard) Prepare(regionSize uint64) error {
	return nil
}

func (d *ReclaimerDiscard) Reclaim(region *Region) error {
	if err := discardRange(region.Addr(), region.Size()); err != nil {
		return err
	}
	d.discardedBytes += region.Size()
	return nil
}

func (d *ReclaimerDiscard) Close() error {
	if d.discardedBytes > 0 {
		stats.Store(StatsDiscarded{bytes: d.discardedBytes})
		d.discardedBytes = 0
	}
	return nil
}
