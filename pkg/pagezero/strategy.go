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
	"sort"
	"strconv"
)

// Strategy tags a reclaim technique in configuration and results.
type Strategy int

const (
	StrategyFullZero Strategy = iota
	StrategyDiscardAdvise
	StrategyScanAndZero
	StrategyHeuristic
)

var strategyNames = map[Strategy]string{
	StrategyFullZero:      "FullZero",
	StrategyDiscardAdvise: "DiscardAdvise",
	StrategyScanAndZero:   "ScanAndZero",
	StrategyHeuristic:     "Heuristic",
}

func (s Strategy) String() string {
	if name, ok := strategyNames[s]; ok {
		return name
	}
	return fmt.Sprintf("Strategy(%d)", int(s))
}

// MarshalJSON encodes the strategy as its name.
func (s Strategy) MarshalJSON() ([]byte, error) {
	name, ok := strategyNames[s]
	if !ok {
		return nil, fmt.Errorf("cannot marshal strategy %d", int(s))
	}
	return []byte(strconv.Quote(name)), nil
}

func (s *Strategy) UnmarshalJSON(data []byte) error {
	name, err := strconv.Unquote(string(data))
	if err != nil {
		return fmt.Errorf("invalid strategy %s", string(data))
	}
	for strategy, strategyName := range strategyNames {
		if strategyName == name {
			*s = strategy
			return nil
		}
	}
	return fmt.Errorf("unknown strategy %q", name)
}

// Reclaimer makes the content of a dirtied region clean again. One
// reclaimer instance serves one worker: instances are never shared
// between goroutines.
type Reclaimer interface {
	SetConfigJson(string) error // Set new configuration.
	GetConfigJson() string      // Get current configuration.
	// Strategy returns the tag the reclaimer's results carry.
	Strategy() Strategy
	// ForceResident tells if regions reclaimed by this strategy must
	// be fully faulted in when created. The answer is fixed once
	// Prepare has run.
	ForceResident() bool
	// Prepare sizes internal state for regions of regionSize bytes.
	// Runs once per benchmark, outside the timed window.
	Prepare(regionSize uint64) error
	// Reclaim cleans the region. This is the timed call.
	Reclaim(region *Region) error
	// Close releases resources held since Prepare.
	Close() error
}

type ReclaimerCreator func() (Reclaimer, error)

// reclaimerCreators is a map of reclaimer name -> reclaimer creator
var reclaimerCreators map[string]ReclaimerCreator = make(map[string]ReclaimerCreator, 0)

func ReclaimerRegister(name string, creator ReclaimerCreator) {
	reclaimerCreators[name] = creator
}

func ReclaimerList() []string {
	keys := make([]string, 0, len(reclaimerCreators))
	for key := range reclaimerCreators {
		keys = append(keys, key)
	}
	sort.Strings(keys)
	return keys
}

func NewReclaimer(name string) (Reclaimer, error) {
	if creator, ok := reclaimerCreators[name]; ok {
		return creator()
	}
	return nil, fmt.Errorf("invalid reclaimer name %q", name)
}
