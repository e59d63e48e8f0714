// Copyright 2019 Intel Corporation. All Rights Reserved.
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

// Package config holds the static, file-and-flag driven options of the
// selection engine: knapsack thresholds, the default chooser policy, and
// metrics/logging knobs. The selection engine itself is not config-driven
// (its behavior is fully determined by the job/node/partition data passed
// to it per call) -- this package only configures the ambient pieces around
// it (pkg/metrics, pkg/log, cmd/coreselectd).
package config

import (
	"time"

	"github.com/pkg/errors"
	"github.com/spf13/pflag"
	k8syaml "sigs.k8s.io/yaml"
)

// ChooserPolicy names one of the three multi-node chooser policies from spec.md §4.4-§4.6.
type ChooserPolicy string

const (
	// ChooserConsecutive selects the consecutive-block best-fit chooser.
	ChooserConsecutive ChooserPolicy = "consecutive"
	// ChooserLLN selects the least-loaded-node chooser.
	ChooserLLN ChooserPolicy = "lln"
	// ChooserTopology selects the network-topology (switch-tree) chooser.
	ChooserTopology ChooserPolicy = "topology"
)

// Options is the set of ambient, process-wide options for the selection engine.
type Options struct {
	// DefaultChooser is the chooser policy used when a partition does not request one.
	DefaultChooser ChooserPolicy `json:"defaultChooser"`
	// KnapsackMaxAttempts caps the number of drop-and-retry rounds in the
	// knapsack-mitigation wrapper (spec.md §4.7); 0 means unlimited (bounded
	// only by the highest candidate CPU capacity, as in the reference
	// algorithm).
	KnapsackMaxAttempts int `json:"knapsackMaxAttempts"`
	// LogLevel is the minimum emitted log.Level name ("debug", "info", "warn", "error").
	LogLevel string `json:"logLevel"`
	// MetricsEnabled makes cmd/coreselectd create a pkg/metrics exporter and
	// print its Prometheus text; pkg/jobselect records its pass metrics
	// whether or not it is set.
	MetricsEnabled bool `json:"metricsEnabled"`
	// MetricsReportingPeriod is how often pkg/metrics's opencensus view data
	// is recomputed into the exporter's registry; it marshals as a Go
	// duration string ("1s") rather than a bare nanosecond count, so that
	// YAML/JSON-patch reconfiguration stays human-editable.
	MetricsReportingPeriod Duration `json:"metricsReportingPeriod"`
}

// DefaultOptions returns the built-in option defaults.
func DefaultOptions() Options {
	return Options{
		DefaultChooser:         ChooserConsecutive,
		KnapsackMaxAttempts:    0,
		LogLevel:               "info",
		MetricsEnabled:         true,
		MetricsReportingPeriod: Duration(time.Second),
	}
}

// opt is the active, package-level option set, following the teacher's
// pattern of a single mutable `opt` struct updated by flags/files/patches
// (pkg/cri/resource-manager/policy/builtin/static/flags.go).
var opt = DefaultOptions()

// GetOptions returns a copy of the currently active options.
func GetOptions() Options {
	return opt
}

// SetOptions replaces the currently active options wholesale.
func SetOptions(o Options) {
	opt = o
}

// ParseYAML loads options from YAML bytes, overlaying them on top of the
// current options (an absent field keeps its current value).
func ParseYAML(data []byte) error {
	merged := opt
	if err := k8syaml.Unmarshal(data, &merged); err != nil {
		return errors.Wrap(err, "failed to parse YAML configuration")
	}
	opt = merged
	return nil
}

// RegisterFlags registers the ambient options as CLI flags on the given flag set.
func RegisterFlags(fs *pflag.FlagSet) {
	fs.StringVar((*string)(&opt.DefaultChooser), "default-chooser", string(opt.DefaultChooser),
		"default multi-node chooser policy (consecutive, lln, topology)")
	fs.IntVar(&opt.KnapsackMaxAttempts, "knapsack-max-attempts", opt.KnapsackMaxAttempts,
		"maximum knapsack-mitigation retry rounds (0 = unlimited)")
	fs.StringVar(&opt.LogLevel, "log-level", opt.LogLevel, "minimum log level")
	fs.BoolVar(&opt.MetricsEnabled, "metrics", opt.MetricsEnabled, "enable driver pass metrics")
	fs.DurationVar((*time.Duration)(&opt.MetricsReportingPeriod), "metrics-period",
		time.Duration(opt.MetricsReportingPeriod), "metrics view reporting period")
}
