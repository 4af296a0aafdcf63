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
	"context"
	"math"
	"sync"
	"time"

	"github.com/hashicorp/go-multierror"
	"github.com/pkg/errors"
	"golang.org/x/time/rate"
)

// BenchConfig parameterizes one benchmark run.
type BenchConfig struct {
	// Size is the region size in bytes.
	Size uint64 `json:"size"`
	// DirtyFraction in [0.0, 1.0] of every region is dirtied before
	// each reclaim.
	DirtyFraction float64 `json:"dirtyfraction"`
	// Threads is the number of parallel workers.
	Threads int `json:"threads"`
	// Processes is recorded in results for multi-process bookkeeping,
	// the benchmark itself does not fork.
	Processes int `json:"processes"`
	// Iterations is the number of measurements per strategy in every
	// worker.
	Iterations int `json:"iterations"`
	// Strategies are reclaimer registry names in run order.
	Strategies []string `json:"strategies"`
	// StrategyConfig maps a reclaimer name to its options JSON.
	StrategyConfig map[string]string `json:"strategyconfig,omitempty"`
	// Interval spaces measurement starts across all workers, 0 runs
	// back to back.
	Interval time.Duration `json:"interval,omitempty"`
	// SampleRss records process RSS around every reclaim.
	SampleRss bool `json:"samplerss,omitempty"`
}

// DefaultBenchConfig mirrors the defaults of the command line.
func DefaultBenchConfig() BenchConfig {
	return BenchConfig{
		Size:          uint64(MustParseBytes("1G")),
		DirtyFraction: 0.1,
		Threads:       1,
		Processes:     1,
		Iterations:    1,
		Strategies:    []string{"fullzero", "discard", "scanzero", "heuristic"},
	}
}

// scanBased tells if the strategy name can end up scanning the
// pagemap, which requires page aligned region sizes.
func scanBased(name string) bool {
	return name == "scanzero" || name == "heuristic"
}

func (c *BenchConfig) Validate() error {
	if c.Size == 0 {
		return errors.New("region size must be over 0")
	}
	if math.IsNaN(c.DirtyFraction) || c.DirtyFraction < 0.0 || c.DirtyFraction > 1.0 {
		return errors.New("dirty fraction must be between 0.0 and 1.0")
	}
	if c.Threads < 1 {
		return errors.New("thread count must be at least 1")
	}
	if c.Iterations < 1 {
		return errors.New("iteration count must be at least 1")
	}
	if c.Interval < 0 {
		return errors.New("interval must not be negative")
	}
	if len(c.Strategies) == 0 {
		return errors.New("at least one strategy is needed")
	}
	for _, name := range c.Strategies {
		if _, ok := reclaimerCreators[name]; !ok {
			return errors.Errorf("invalid reclaimer name %q, known: %v", name, ReclaimerList())
		}
		if scanBased(name) && !alignedTo(c.Size) {
			return errors.Errorf("size %d is not page aligned, required by %q", c.Size, name)
		}
	}
	for name := range c.StrategyConfig {
		if _, ok := reclaimerCreators[name]; !ok {
			return errors.Errorf("options for unknown reclaimer %q", name)
		}
	}
	return nil
}

// Bench runs the configured measurements over a pool of workers.
type Bench struct {
	config  BenchConfig
	limiter *rate.Limiter

	mutex   sync.Mutex
	results Results
	errs    *multierror.Error
}

func NewBench(config BenchConfig) (*Bench, error) {
	if err := config.Validate(); err != nil {
		return nil, err
	}
	b := &Bench{config: config}
	if config.Interval > 0 {
		b.limiter = rate.NewLimiter(rate.Every(config.Interval), 1)
	}
	return b, nil
}

// Run executes iterations x strategies measurements in every worker
// and returns all collected results. The error aggregates everything
// the workers hit; results are returned even when it is non-nil. A
// canceled context stops workers between measurements.
func (b *Bench) Run(ctx context.Context) (Results, error) {
	log.Infof("benchmarking %d byte regions, dirty fraction %.2f, %d workers, %d iterations",
		b.config.Size, b.config.DirtyFraction, b.config.Threads, b.config.Iterations)
	wg := sync.WaitGroup{}
	for worker := 0; worker < b.config.Threads; worker++ {
		wg.Add(1)
		go func(worker int) {
			defer wg.Done()
			b.runWorker(ctx, worker)
		}(worker)
	}
	wg.Wait()
	return b.results, b.errs.ErrorOrNil()
}

// runWorker runs every configured strategy in order. A resource error
// ends the worker, anything else is recorded and the worker moves on.
func (b *Bench) runWorker(ctx context.Context, worker int) {
	for _, name := range b.config.Strategies {
		if ctx.Err() != nil {
			return
		}
		if err := b.runStrategy(ctx, name); err != nil {
			b.storeError(errors.Wrapf(err, "worker %d", worker))
			if errors.Is(err, ErrResource) {
				return
			}
		}
	}
}

func (b *Bench) runStrategy(ctx context.Context, name string) error {
	rec, err := NewReclaimer(name)
	if err != nil {
		return err
	}
	if optionsJson, ok := b.config.StrategyConfig[name]; ok {
		if err := rec.SetConfigJson(optionsJson); err != nil {
			return errors.Wrapf(err, "%s options", name)
		}
	}
	if err := rec.Prepare(b.config.Size); err != nil {
		return errors.Wrapf(err, "prepare %s", name)
	}
	defer func() {
		if err := rec.Close(); err != nil {
			log.Errorf("closing %s: %v", name, err)
		}
	}()
	for i := 0; i < b.config.Iterations; i++ {
		if ctx.Err() != nil {
			return nil
		}
		if b.limiter != nil {
			if err := b.limiter.Wait(ctx); err != nil {
				return nil
			}
		}
		result, err := b.measure(rec)
		if err != nil {
			stats.Store(StatsMeasurement{strategy: rec.Strategy().String(), failed: true})
			if errors.Is(err, ErrResource) {
				return err
			}
			// One voided measurement, the next iteration still runs.
			b.storeError(errors.Wrapf(err, "%s iteration %d", name, i))
			continue
		}
		stats.Store(StatsMeasurement{strategy: rec.Strategy().String(), duration: result.Duration})
		b.storeResult(result)
	}
	return nil
}

// measure runs one reclaim on a fresh region. Only the Reclaim call
// sits between the clock reads.
func (b *Bench) measure(rec Reclaimer) (Result, error) {
	region, err := NewRegion(b.config.Size, b.config.DirtyFraction, rec.ForceResident())
	if err != nil {
		return Result{}, err
	}
	closed := false
	defer func() {
		if !closed {
			_ = region.Close()
		}
	}()
	region.MakeDirty()
	rssBefore := uint64(0)
	rssAfter := uint64(0)
	if b.config.SampleRss {
		rssBefore, _ = ReadRssAnon()
	}
	start := time.Now()
	reclaimErr := rec.Reclaim(region)
	duration := time.Since(start)
	if b.config.SampleRss {
		rssAfter, _ = ReadRssAnon()
	}
	closed = true
	if err := region.Close(); err != nil {
		return Result{}, err
	}
	if reclaimErr != nil {
		return Result{}, reclaimErr
	}
	return Result{
		Strategy:      rec.Strategy(),
		TotalSize:     b.config.Size,
		DirtyFraction: b.config.DirtyFraction,
		Duration:      duration,
		Threads:       b.config.Threads,
		Processes:     b.config.Processes,
		RssBefore:     rssBefore,
		RssAfter:      rssAfter,
	}, nil
}

func (b *Bench) storeResult(result Result) {
	b.mutex.Lock()
	defer b.mutex.Unlock()
	b.results = append(b.results, result)
}

func (b *Bench) storeError(err error) {
	b.mutex.Lock()
	defer b.mutex.Unlock()
	b.errs = multierror.Append(b.errs, err)
}
