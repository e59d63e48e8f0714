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

package chooser

import (
	"github.com/pkg/errors"

	"github.com/intel/cons-tres-core/pkg/bitmap"
)

// ErrRequiredNodeUnusable is returned when the knapsack pre-filter would
// have to drop a required node (zero capacity, or over the job's max-CPU
// cap under whole-node exclusivity); such a call cannot succeed.
var ErrRequiredNodeUnusable = errors.New("required node unusable")

// WithKnapsackMitigation wraps a chooser Func with the §4.7 retry loop: it
// first drops zero-capacity nodes (and, under whole-node exclusivity,
// over-cap nodes), then on failure progressively removes low-capacity
// nodes and retries, fighting the knapsack-style fragmentation where many
// small nodes block a chooser that could succeed using only the large ones.
// maxAttempts caps the number of threshold retries; 0 means unlimited
// (bounded only by the highest observed capacity, as in the reference
// algorithm).
func WithKnapsackMitigation(fn Func, req *Request, wholeNodeExclusive bool, maxAttempts int) (*Result, error) {
	preFiltered := req.Candidate.Clone()
	for i := preFiltered.First(); i != -1; i = preFiltered.NextSet(i + 1) {
		cpu := req.Capacities[i]
		drop := cpu == 0
		if !drop && wholeNodeExclusive && req.MaxCPUsPerNode != -1 && cpu > req.MaxCPUsPerNode {
			drop = true
		}
		if !drop {
			continue
		}
		if req.Required != nil && req.Required.Test(i) {
			return nil, ErrRequiredNodeUnusable
		}
		preFiltered.Clear(i)
	}

	saved := preFiltered.Clone()

	attempt := func(candidate *bitmap.Bitmap) (*Result, error) {
		req.Candidate = candidate
		return fn(req)
	}

	result, err := attempt(preFiltered.Clone())
	if err == nil {
		return result, nil
	}
	if !errors.Is(err, ErrInsufficientResources) {
		return nil, err
	}

	mostCPUs := 0
	for i := saved.First(); i != -1; i = saved.NextSet(i + 1) {
		if req.Capacities[i] > mostCPUs {
			mostCPUs = req.Capacities[i]
		}
	}

	attempts := 0
	for threshold := 1; threshold < mostCPUs; threshold++ {
		if maxAttempts > 0 && attempts >= maxAttempts {
			break
		}
		candidate := saved.Clone()
		changed := false
		for i := candidate.First(); i != -1; i = candidate.NextSet(i + 1) {
			if req.Required != nil && req.Required.Test(i) {
				continue
			}
			cpu := req.Capacities[i]
			if cpu > 0 && cpu <= threshold {
				candidate.Clear(i)
				changed = true
			}
		}
		if !changed {
			continue
		}
		attempts++
		result, err = attempt(candidate)
		if err == nil {
			return result, nil
		}
		if !errors.Is(err, ErrInsufficientResources) {
			return nil, err
		}
	}

	return nil, err
}
