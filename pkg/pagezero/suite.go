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
	"os"
	"time"

	"github.com/pkg/errors"
	"sigs.k8s.io/yaml"
)

// BenchSpec is one suite entry with human friendly encodings: sizes
// take k/M/G/T suffixes, intervals take time.ParseDuration syntax.
// Absent fields inherit the base configuration; pointer fields make 0
// and false expressible.
type BenchSpec struct {
	Size           string            `json:"size,omitempty"`
	DirtyFraction  *float64          `json:"dirtyfraction,omitempty"`
	Threads        int               `json:"threads,omitempty"`
	Processes      int               `json:"processes,omitempty"`
	Iterations     int               `json:"iterations,omitempty"`
	Strategies     []string          `json:"strategies,omitempty"`
	StrategyConfig map[string]string `json:"strategyconfig,omitempty"`
	Interval       string            `json:"interval,omitempty"`
	SampleRss      *bool             `json:"samplerss,omitempty"`
}

// SuiteConfig is a sequence of benchmark runs loaded from one YAML
// file.
type SuiteConfig struct {
	Benchmarks []BenchSpec `json:"benchmarks"`
}

// ReadSuiteFile loads a suite from a YAML file.
func ReadSuiteFile(path string) (*SuiteConfig, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, errors.Wrapf(err, "reading suite %q", path)
	}
	return ParseSuite(data)
}

// ParseSuite reads a suite from YAML data.
func ParseSuite(data []byte) (*SuiteConfig, error) {
	suite := &SuiteConfig{}
	if err := yaml.UnmarshalStrict(data, suite); err != nil {
		return nil, errors.Wrap(err, "parsing suite")
	}
	if len(suite.Benchmarks) == 0 {
		return nil, errors.New("suite has no benchmarks")
	}
	return suite, nil
}

// Config resolves the spec on top of base.
func (spec *BenchSpec) Config(base BenchConfig) (BenchConfig, error) {
	config := base
	if spec.Size != "" {
		size, err := ParseBytes(spec.Size)
		if err != nil {
			return config, err
		}
		if size <= 0 {
			return config, errors.Errorf("invalid size %q", spec.Size)
		}
		config.Size = uint64(size)
	}
	if spec.DirtyFraction != nil {
		config.DirtyFraction = *spec.DirtyFraction
	}
	if spec.Threads > 0 {
		config.Threads = spec.Threads
	}
	if spec.Processes > 0 {
		config.Processes = spec.Processes
	}
	if spec.Iterations > 0 {
		config.Iterations = spec.Iterations
	}
	if len(spec.Strategies) > 0 {
		config.Strategies = spec.Strategies
	}
	if spec.StrategyConfig != nil {
		config.StrategyConfig = spec.StrategyConfig
	}
	if spec.Interval != "" {
		interval, err := time.ParseDuration(spec.Interval)
		if err != nil {
			return config, errors.Wrapf(err, "invalid interval %q", spec.Interval)
		}
		config.Interval = interval
	}
	if spec.SampleRss != nil {
		config.SampleRss = *spec.SampleRss
	}
	return config, nil
}
