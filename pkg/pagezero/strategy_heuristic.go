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

	"github.com/pkg/errors"
)

type ReclaimerHeuristicConfig struct {
	// FullZeroMax is the largest region size in bytes that is still
	// zeroed in full. Small regions are cheaper to overwrite than to
	// scan or to fault back in.
	FullZeroMax uint64
	// DiscardMin is the smallest region size in bytes handed to the
	// kernel with discard advice.
	DiscardMin uint64
}

const reclaimerHeuristicDefaults string = `{"FullZeroMax":131072,"DiscardMin":1048576}`

// ReclaimerHeuristic picks a reclaim technique from the region size:
// full zeroing up to FullZeroMax, discard advice from DiscardMin up,
// scan and zero in between. Results carry the Heuristic tag no matter
// which branch ran.
type ReclaimerHeuristic struct {
	config *ReclaimerHeuristicConfig
	chosen Reclaimer
}

func init() {
	ReclaimerRegister("heuristic", NewReclaimerHeuristic)
}

func NewReclaimerHeuristic() (Reclaimer, error) {
	h := &ReclaimerHeuristic{}
	if err := h.SetConfigJson(reclaimerHeuristicDefaults); err != nil {
		return nil, errors.New("invalid heuristic default configuration")
	}
	return h, nil
}

func (h *ReclaimerHeuristic) SetConfigJson(configJson string) error {
	config := ReclaimerHeuristicConfig{}
	if err := json.Unmarshal([]byte(configJson), &config); err != nil {
		return err
	}
	if config.FullZeroMax >= config.DiscardMin {
		return errors.Errorf("FullZeroMax %d must be below DiscardMin %d",
			config.FullZeroMax, config.DiscardMin)
	}
	h.config = &config
	return nil
}

func (h *ReclaimerHeuristic) GetConfigJson() string {
	if h.config == nil {
		return ""
	}
	if configStr, err := json.Marshal(h.config); err == nil {
		return string(configStr)
	}
	return ""
}

func (h *ReclaimerHeuristic) Strategy() Strategy {
	return StrategyHeuristic
}

func (h *ReclaimerHeuristic) ForceResident() bool {
	if h.chosen == nil {
		return false
	}
	return h.chosen.ForceResident()
}

// Prepare fixes the branch for regions of regionSize bytes.
func (h *ReclaimerHeuristic) Prepare(regionSize uint64) error {
	name := "scanzero"
	switch {
	case regionSize <= h.config.FullZeroMax:
		name = "fullzero"
	case regionSize >= h.config.DiscardMin:
		name = "discard"
	}
	chosen, err := NewReclaimer(name)
	if err != nil {
		return err
	}
	if err := chosen.Prepare(regionSize); err != nil {
		return err
	}
	h.chosen = chosen
	log.Debugf("heuristic: %d byte regions reclaimed with %s", regionSize, name)
	return nil
}

func (h *ReclaimerHeuristic) Reclaim(region *Region) error {
	if h.chosen == nil {
		return errors.New("heuristic used without Prepare")
	}
	return h.chosen.Reclaim(region)
}

func (h *ReclaimerHeuristic) Close() error {
	if h.chosen == nil {
		return nil
	}
	chosen := h.chosen
	h.chosen = nil
	return chosen.Close()
}
