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

// ReclaimerFullZero writes zeroes over the whole region, dirty or not.
// Its regions are created fully resident so the measurement sees write
// bandwidth instead of first-touch page faults.
type ReclaimerFullZero struct {
	zeroedBytes uint64
}

func init() {
	ReclaimerRegister("fullzero", NewReclaimerFullZero)
}

func NewReclaimerFullZero() (Reclaimer, error) {
	return &ReclaimerFullZero{}, nil
}

func (z *ReclaimerFullZero) SetConfigJson(configJson string) error {
	if configJson != "" && configJson != "{}" {
		return fmt.Errorf("fullzero takes no options, got %q", configJson)
	}
	return nil
}

func (z *ReclaimerFullZero) GetConfigJson() string {
	return "{}"
}

func (z *ReclaimerFullZero) Strategy() Strategy {
	return StrategyFullZero
}

func (z *ReclaimerFullZero) ForceResident() bool {
	return true
}

func (z *ReclaimerFullZero) Prepare(regionSize uint64) error {
	return nil
}

func (z *ReclaimerFullZero) Reclaim(region *Region) error {
	zeroBytes(region.View())
	z.zeroedBytes += region.Size()
	return nil
}

func (z *ReclaimerFullZero) Close() error {
	if z.zeroedBytes > 0 {
		stats.Store(StatsZeroed{bytes: z.zeroedBytes})
		z.zeroedBytes = 0
	}
	return nil
}
