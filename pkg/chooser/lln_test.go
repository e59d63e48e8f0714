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

func TestLLNPicksHighestCapacityFirst(t *testing.T) {
	req := &Request{
		Candidate:      bitmap.FromBits(4, 0, 1, 2, 3),
		Capacities:     map[int]int{0: 1, 1: 4, 2: 2, 3: 8},
		MinNodes:       2,
		MaxNodes:       2,
		MinCPUs:        10,
		MaxCPUsPerNode: jobspec.NoVal,
	}
	res, err := LLN(req)
	require.NoError(t, err)
	require.True(t, res.Nodes.Test(3))
	require.True(t, res.Nodes.Test(1))
	require.Equal(t, 2, res.Nodes.Popcount())
}

func TestLLNInsufficientResources(t *testing.T) {
	req := &Request{
		Candidate:      bitmap.FromBits(2, 0, 1),
		Capacities:     map[int]int{0: 1, 1: 1},
		MinNodes:       1,
		MaxNodes:       1,
		MinCPUs:        10,
		MaxCPUsPerNode: jobspec.NoVal,
	}
	_, err := LLN(req)
	require.ErrorIs(t, err, ErrInsufficientResources)
}
