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
	"reflect"
	"strings"
	"testing"
)

func TestReclaimerRegistry(t *testing.T) {
	expected := []string{"discard", "fullzero", "heuristic", "scanzero"}
	if names := ReclaimerList(); !reflect.DeepEqual(names, expected) {
		t.Errorf("expected reclaimers %v, got %v", expected, names)
	}
	for _, name := range ReclaimerList() {
		rec, err := NewReclaimer(name)
		if err != nil {
			t.Errorf("creating %q: %v", name, err)
			continue
		}
		if rec == nil {
			t.Errorf("creating %q returned nil", name)
		}
	}
	if _, err := NewReclaimer("nosuch"); err == nil ||
		!strings.Contains(err.Error(), "invalid reclaimer name") {
		t.Errorf("expected invalid reclaimer name error, got %v", err)
	}
}

func TestStrategyNames(t *testing.T) {
	tcases := []struct {
		strategy Strategy
		name     string
	}{
		{StrategyFullZero, "FullZero"},
		{StrategyDiscardAdvise, "DiscardAdvise"},
		{StrategyScanAndZero, "ScanAndZero"},
		{StrategyHeuristic, "Heuristic"},
	}
	for _, tc := range tcases {
		t.Run(tc.name, func(t *testing.T) {
			if tc.strategy.String() != tc.name {
				t.Errorf("expected %q, got %q", tc.name, tc.strategy.String())
			}
			data, err := json.Marshal(tc.strategy)
			if err != nil {
				t.Fatalf("marshal: %v", err)
			}
			if string(data) != fmt.Sprintf("%q", tc.name) {
				t.Errorf("expected %q, got %s", tc.name, data)
			}
			var back Strategy
			if err := json.Unmarshal(data, &back); err != nil {
				t.Fatalf("unmarshal: %v", err)
			}
			if back != tc.strategy {
				t.Errorf("round trip changed %v to %v", tc.strategy, back)
			}
		})
	}
	if Strategy(42).String() != "Strategy(42)" {
		t.Errorf("unexpected name for unknown strategy: %q", Strategy(42).String())
	}
	if _, err := json.Marshal(Strategy(42)); err == nil {
		t.Errorf("expected error marshaling unknown strategy")
	}
	var s Strategy
	if err := json.Unmarshal([]byte(`"NoSuch"`), &s); err == nil {
		t.Errorf("expected error unmarshaling unknown strategy name")
	}
	if err := json.Unmarshal([]byte(`42`), &s); err == nil {
		t.Errorf("expected error unmarshaling non-string strategy")
	}
}

func TestReclaimerConfigs(t *testing.T) {
	tcases := []struct {
		name            string
		reclaimer       string
		configJson      string
		expectedError   string
		expectedConfig  string
		expectedDefault string
	}{
		{
			name:            "fullzero takes no options",
			reclaimer:       "fullzero",
			configJson:      `{"Whatever":1}`,
			expectedError:   "no options",
			expectedDefault: "{}",
		}, {
			name:            "discard takes no options",
			reclaimer:       "discard",
			configJson:      `{"Whatever":1}`,
			expectedError:   "no options",
			expectedDefault: "{}",
		}, {
			name:            "scanzero window",
			reclaimer:       "scanzero",
			configJson:      `{"ScanWindow":1048576,"FullWindowDiscard":true}`,
			expectedConfig:  `{"ScanWindow":1048576,"FullWindowDiscard":true}`,
			expectedDefault: `{"ScanWindow":0,"FullWindowDiscard":false}`,
		}, {
			name:          "scanzero bad json",
			reclaimer:     "scanzero",
			configJson:    `{"ScanWindow":`,
			expectedError: "unexpected end",
		}, {
			name:            "heuristic thresholds",
			reclaimer:       "heuristic",
			configJson:      `{"FullZeroMax":4096,"DiscardMin":8192}`,
			expectedConfig:  `{"FullZeroMax":4096,"DiscardMin":8192}`,
			expectedDefault: `{"FullZeroMax":131072,"DiscardMin":1048576}`,
		}, {
			name:          "heuristic thresholds out of order",
			reclaimer:     "heuristic",
			configJson:    `{"FullZeroMax":1048576,"DiscardMin":131072}`,
			expectedError: "must be below",
		}, {
			name:          "heuristic thresholds equal",
			reclaimer:     "heuristic",
			configJson:    `{"FullZeroMax":131072,"DiscardMin":131072}`,
			expectedError: "must be below",
		},
	}
	for _, tc := range tcases {
		t.Run(tc.name, func(t *testing.T) {
			rec, err := NewReclaimer(tc.reclaimer)
			if err != nil {
				t.Fatalf("creating %q: %v", tc.reclaimer, err)
			}
			if tc.expectedDefault != "" && rec.GetConfigJson() != tc.expectedDefault {
				t.Errorf("expected default config %q, got %q",
					tc.expectedDefault, rec.GetConfigJson())
			}
			err = rec.SetConfigJson(tc.configJson)
			if tc.expectedError != "" {
				seenError := fmt.Sprintf("%s", err)
				if !strings.Contains(seenError, tc.expectedError) {
					t.Errorf("expected error containing %q, got %q",
						tc.expectedError, seenError)
				}
				return
			}
			if err != nil {
				t.Errorf("got unexpected error: %v", err)
			}
			if tc.expectedConfig != "" && rec.GetConfigJson() != tc.expectedConfig {
				t.Errorf("expected config %q, got %q", tc.expectedConfig, rec.GetConfigJson())
			}
		})
	}
}

func TestStrategyTags(t *testing.T) {
	tcases := []struct {
		reclaimer string
		strategy  Strategy
	}{
		{"fullzero", StrategyFullZero},
		{"discard", StrategyDiscardAdvise},
		{"scanzero", StrategyScanAndZero},
		{"heuristic", StrategyHeuristic},
	}
	for _, tc := range tcases {
		rec, err := NewReclaimer(tc.reclaimer)
		if err != nil {
			t.Fatalf("creating %q: %v", tc.reclaimer, err)
		}
		if rec.Strategy() != tc.strategy {
			t.Errorf("%q: expected tag %v, got %v", tc.reclaimer, tc.strategy, rec.Strategy())
		}
	}
}
