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

// TestConsecutiveBasicFit is scenario S1: 4 nodes (2,2,2,4 CPUs), job1
// wants all 4 nodes exclusively.
func TestConsecutiveBasicFit(t *testing.T) {
	req := &Request{
		Candidate:      bitmap.FromBits(4, 0, 1, 2, 3),
		Capacities:     map[int]int{0: 2, 1: 2, 2: 2, 3: 4},
		MinNodes:       4,
		MaxNodes:       4,
		MinCPUs:        10,
		MaxCPUsPerNode: jobspec.NoVal,
	}
	res, err := Consecutive(req)
	require.NoError(t, err)
	require.Equal(t, 4, res.Nodes.Popcount())
	require.Equal(t, 2, res.CPUCounts[0])
	require.Equal(t, 4, res.CPUCounts[3])
}

func TestConsecutiveThreeOfFour(t *testing.T) {
	req := &Request{
		Candidate:      bitmap.FromBits(4, 0, 1, 2),
		Capacities:     map[int]int{0: 2, 1: 2, 2: 2},
		MinNodes:       3,
		MaxNodes:       3,
		MinCPUs:        6,
		MaxCPUsPerNode: jobspec.NoVal,
	}
	res, err := Consecutive(req)
	require.NoError(t, err)
	require.Equal(t, 3, res.Nodes.Popcount())
}

func TestConsecutiveRequiredNodePreSeated(t *testing.T) {
	req := &Request{
		Candidate:      bitmap.FromBits(5, 0, 1, 2, 3, 4),
		Capacities:     map[int]int{0: 2, 1: 2, 2: 2, 3: 2, 4: 2},
		Required:       bitmap.FromBits(5, 4),
		MinNodes:       2,
		MaxNodes:       2,
		MinCPUs:        4,
		MaxCPUsPerNode: jobspec.NoVal,
	}
	res, err := Consecutive(req)
	require.NoError(t, err)
	require.True(t, res.Nodes.Test(4))
	require.Equal(t, 2, res.Nodes.Popcount())
}

func TestConsecutiveInsufficientResources(t *testing.T) {
	req := &Request{
		Candidate:      bitmap.FromBits(2, 0, 1),
		Capacities:     map[int]int{0: 1, 1: 1},
		MinNodes:       2,
		MaxNodes:       2,
		MinCPUs:        10,
		MaxCPUsPerNode: jobspec.NoVal,
	}
	_, err := Consecutive(req)
	require.ErrorIs(t, err, ErrInsufficientResources)
}

func TestConsecutiveContiguityUnmet(t *testing.T) {
	// Required nodes 0 and 3 are not in the same run (run1 = {0,1}, run2 = {3}).
	req := &Request{
		Candidate:      bitmap.FromBits(5, 0, 1, 3),
		Capacities:     map[int]int{0: 2, 1: 2, 3: 2},
		Required:       bitmap.FromBits(5, 0, 3),
		MinNodes:       2,
		MaxNodes:       2,
		MinCPUs:        4,
		MaxCPUsPerNode: jobspec.NoVal,
		Contiguous:     true,
	}
	_, err := Consecutive(req)
	require.ErrorIs(t, err, ErrContiguityUnmet)
}
