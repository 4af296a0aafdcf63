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

package main

import (
	"bytes"
	"context"
	"flag"
	"fmt"
	"io"
	"net/http"
	"os"
	"os/signal"
	"strings"
	"syscall"

	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/prometheus/common/expfmt"
	"k8s.io/klog/v2"

	"github.com/intel/pagezero-bench/pkg/metrics"
	"github.com/intel/pagezero-bench/pkg/pagezero"
	_ "github.com/intel/pagezero-bench/pkg/version"
)

// createdPidFile is removed on every exit path once pidFileWrite has
// succeeded.
var createdPidFile string

func exit(format string, a ...interface{}) {
	if createdPidFile != "" {
		pidFileRemove(createdPidFile)
	}
	fmt.Fprintf(os.Stderr, fmt.Sprintf("pagezero-bench: "+format+"\n", a...))
	os.Exit(1)
}

// strategyConfigFlag collects repeated -strategy-config NAME={JSON}
// options into a map.
type strategyConfigFlag map[string]string

func (s strategyConfigFlag) String() string {
	opts := make([]string, 0, len(s))
	for name, optionsJson := range s {
		opts = append(opts, name+"="+optionsJson)
	}
	return strings.Join(opts, " ")
}

func (s strategyConfigFlag) Set(value string) error {
	nameOptions := strings.SplitN(value, "=", 2)
	if len(nameOptions) != 2 {
		return fmt.Errorf("expected NAME={JSON}, got %q", value)
	}
	s[nameOptions[0]] = nameOptions[1]
	return nil
}

func parseOptStrategies(strategiesStr string) []string {
	strategies := []string{}
	for _, name := range strings.Split(strategiesStr, ",") {
		name = strings.TrimSpace(name)
		if name != "" {
			strategies = append(strategies, name)
		}
	}
	return strategies
}

func dumpMetrics(w io.Writer) error {
	g, err := metrics.NewMetricGatherer()
	if err != nil {
		return err
	}
	mfs, err := g.Gather()
	if err != nil {
		return err
	}
	for _, mf := range mfs {
		out := &bytes.Buffer{}
		if _, err := expfmt.MetricFamilyToText(out, mf); err != nil {
			return err
		}
		fmt.Fprint(w, out)
	}
	return nil
}

func serveMetrics(addr string) {
	g, err := metrics.NewMetricGatherer()
	if err != nil {
		exit("metrics gatherer: %v", err)
	}
	mux := http.NewServeMux()
	mux.Handle("/metrics", promhttp.HandlerFor(g, promhttp.HandlerOpts{}))
	go func() {
		if err := http.ListenAndServe(addr, mux); err != nil {
			klog.Errorf("metrics server on %s: %v", addr, err)
		}
	}()
}

func main() {
	defaults := pagezero.DefaultBenchConfig()
	optSize := flag.String("size", "1G", "-size=SIZE[kMGT] region size")
	optDirtyFraction := flag.Float64("dirty-fraction", defaults.DirtyFraction,
		"-dirty-fraction=0.0..1.0 fraction of every region dirtied before a reclaim")
	optThreads := flag.Int("threads", defaults.Threads, "-threads=COUNT parallel workers")
	optProcesses := flag.Int("processes", defaults.Processes,
		"-processes=COUNT process count recorded in results, the benchmark itself does not fork")
	optIterations := flag.Int("iterations", defaults.Iterations,
		"-iterations=COUNT measurements per strategy in every worker")
	optStrategies := flag.String("strategies", strings.Join(defaults.Strategies, ","),
		"-strategies=NAME[,NAME...] reclaim strategies to benchmark")
	optStrategyConfig := strategyConfigFlag{}
	flag.Var(optStrategyConfig, "strategy-config",
		"-strategy-config=NAME={JSON} strategy options, can be repeated")
	optInterval := flag.Duration("interval", 0,
		"-interval=DURATION spacing between measurement starts, 0 runs back to back")
	optRss := flag.Bool("rss", false, "-rss sample process RssAnon around every reclaim")
	optConfig := flag.String("config", "", "-config=FILE run a YAML benchmark suite")
	optPidFile := flag.String("pid-file", "", "-pid-file=FILE write the process id to FILE while running")
	optJson := flag.Bool("json", false, "-json print results as JSON, nothing else on stdout")
	optStats := flag.Bool("stats", false, "-stats print engine counters at exit")
	optMetricsDump := flag.Bool("metrics-dump", false,
		"-metrics-dump print metrics in prometheus text format at exit")
	optMetricsAddr := flag.String("metrics-addr", "",
		"-metrics-addr=ADDR serve prometheus metrics on ADDR/metrics while running")
	optDebug := flag.Bool("debug", false, "-debug log engine debug messages")

	klog.InitFlags(nil)
	_ = flag.Set("logtostderr", "true")
	flag.Parse()

	if len(flag.Args()) != 0 {
		exit("unknown command-line arguments: %s", strings.Join(flag.Args(), ","))
	}

	pagezero.SetLogger(klog.NewStandardLogger("INFO"))
	pagezero.SetLogDebug(*optDebug)

	size, err := pagezero.ParseBytes(*optSize)
	if err != nil {
		exit("invalid -size: %v", err)
	}
	if size <= 0 {
		exit("invalid -size %q: region size must be over 0", *optSize)
	}

	base := pagezero.BenchConfig{
		Size:           uint64(size),
		DirtyFraction:  *optDirtyFraction,
		Threads:        *optThreads,
		Processes:      *optProcesses,
		Iterations:     *optIterations,
		Strategies:     parseOptStrategies(*optStrategies),
		StrategyConfig: optStrategyConfig,
		Interval:       *optInterval,
		SampleRss:      *optRss,
	}

	runs := []pagezero.BenchConfig{}
	if *optConfig != "" {
		suite, err := pagezero.ReadSuiteFile(*optConfig)
		if err != nil {
			exit("%v", err)
		}
		for i := range suite.Benchmarks {
			config, err := suite.Benchmarks[i].Config(base)
			if err != nil {
				exit("benchmark %d: %v", i, err)
			}
			runs = append(runs, config)
		}
	} else {
		runs = append(runs, base)
	}

	if *optPidFile != "" {
		if err := pidFileWrite(*optPidFile); err != nil {
			exit("%v", err)
		}
		createdPidFile = *optPidFile
		defer pidFileRemove(createdPidFile)
	}

	if *optMetricsAddr != "" {
		serveMetrics(*optMetricsAddr)
	}

	ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer cancel()

	// With -json stdout carries the result list and nothing else.
	auxOut := io.Writer(os.Stdout)
	if *optJson {
		auxOut = os.Stderr
	}

	allResults := pagezero.Results{}
	failed := false
	for i, config := range runs {
		b, err := pagezero.NewBench(config)
		if err != nil {
			exit("benchmark %d: %v", i, err)
		}
		results, err := b.Run(ctx)
		if err != nil {
			failed = true
			fmt.Fprintf(os.Stderr, "pagezero-bench: benchmark %d: %v\n", i, err)
		}
		allResults = append(allResults, results...)
		if !*optJson && len(results) > 0 {
			if len(runs) > 1 {
				fmt.Printf("benchmark %d: size=%d dirtyfraction=%.2f threads=%d iterations=%d\n",
					i, config.Size, config.DirtyFraction, config.Threads, config.Iterations)
			}
			fmt.Println(results.Summarize())
		}
		if ctx.Err() != nil {
			break
		}
	}

	if *optJson {
		out, err := allResults.JsonString()
		if err != nil {
			exit("%v", err)
		}
		fmt.Println(out)
	}
	if *optStats {
		fmt.Fprintln(auxOut, pagezero.GetStats().Summarize())
	}
	if *optMetricsDump {
		if err := dumpMetrics(auxOut); err != nil {
			exit("dumping metrics: %v", err)
		}
	}
	if failed {
		if createdPidFile != "" {
			pidFileRemove(createdPidFile)
		}
		os.Exit(1)
	}
}
