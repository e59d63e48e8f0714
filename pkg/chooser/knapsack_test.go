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
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/intel/cons-tres-core/pkg/bitmap"
	"github.com/intel/cons-tres-core/pkg/jobspec"
)

// fragileFn simulates a chooser that fails whenever fragmentary low-
// capacity nodes remain in the candidate set, succeeding only once the
// candidate has been narrowed down to nodes that can each satisfy the
// job alone. It exercises WithKnapsackMitigation's retry loop in
// isolation from the best-fit logic of the real choosers.
func fragileFn(req *Request) (*Result, error) {
	for i := req.Candidate.First(); i != -1; i = req.Candidate.NextSet(i + 1) {
		if req.Capacities[i] <= 1 {
			return nil, ErrInsufficientResources
		}
	}
	for i := req.Candidate.First(); i != -1; i = req.Candidate.NextSet(i + 1) {
		if req.Capacities[i] >= req.MinCPUs {
			result := newResult(req.Candidate.Len())
			result.Nodes.Set(i)
			result.CPUCounts[i] = req.Capacities[i]
			return result, nil
		}
	}
	return nil, ErrInsufficientResources
}

// TestKnapsackMitigationRecoversFromFragmentation is scenario S6: 5
// candidate nodes with capacities [1,1,1,1,8], job min_cpus=8 on
// min_nodes=1 -- the first attempt fails because of the four
// capacity-1 nodes; the wrapper drops them and the retry succeeds
// using only n5 (index 4).
func TestKnapsackMitigationRecoversFromFragmentation(t *testing.T) {
	req := &Request{
		Candidate:      bitmap.FromBits(5, 0, 1, 2, 3, 4),
		Capacities:     map[int]int{0: 1, 1: 1, 2: 1, 3: 1, 4: 8},
		MinNodes:       1,
		MaxNodes:       1,
		MinCPUs:        8,
		MaxCPUsPerNode: jobspec.NoVal,
	}

	res, err := WithKnapsackMitigation(fragileFn, req, false, 0)
	require.NoError(t, err)
	require.True(t, res.Nodes.Test(4))
	require.Equal(t, 1, res.Nodes.Popcount())
	require.Equal(t, 8, res.CPUCounts[4])
}

func TestKnapsackMitigationRequiredNodeUnusable(t *testing.T) {
	req := &Request{
		Candidate:      bitmap.FromBits(3, 0, 1, 2),
		Capacities:     map[int]int{0: 0, 1: 2, 2: 2},
		Required:       bitmap.FromBits(3, 0),
		MinNodes:       1,
		MaxNodes:       1,
		MinCPUs:        2,
		MaxCPUsPerNode: jobspec.NoVal,
	}
	_, err := WithKnapsackMitigation(fragileFn, req, false, 0)
	require.ErrorIs(t, err, ErrRequiredNodeUnusable)
}

func TestKnapsackMitigationPropagatesNonRetryableError(t *testing.T) {
	failHard := func(req *Request) (*Result, error) {
		return nil, ErrContiguityUnmet
	}
	req := &Request{
		Candidate:      bitmap.FromBits(2, 0, 1),
		Capacities:     map[int]int{0: 2, 1: 2},
		MinNodes:       1,
		MaxNodes:       1,
		MinCPUs:        2,
		MaxCPUsPerNode: jobspec.NoVal,
	}
	_, err := WithKnapsackMitigation(failHard, req, false, 0)
	require.ErrorIs(t, err, ErrContiguityUnmet)
}
