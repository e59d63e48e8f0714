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

package nodefilter

import (
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/intel/cons-tres-core/pkg/bitmap"
	"github.com/intel/cons-tres-core/pkg/gres"
	"github.com/intel/cons-tres-core/pkg/jobspec"
	"github.com/intel/cons-tres-core/pkg/topology"
)

func fourNodes() []*topology.Node {
	return []*topology.Node{
		{Name: "n0", RealMemoryMB: 8000, Geometry: topology.NodeGeometry{Sockets: 1, CoresPerSocket: 2, ThreadsPerCore: 1, CoremapOffset: 0}},
		{Name: "n1", RealMemoryMB: 8000, Geometry: topology.NodeGeometry{Sockets: 1, CoresPerSocket: 2, ThreadsPerCore: 1, CoremapOffset: 2}},
		{Name: "n2", RealMemoryMB: 8000, Geometry: topology.NodeGeometry{Sockets: 1, CoresPerSocket: 2, ThreadsPerCore: 1, CoremapOffset: 4}},
		{Name: "n3", RealMemoryMB: 8000, Geometry: topology.NodeGeometry{Sockets: 1, CoresPerSocket: 2, ThreadsPerCore: 1, CoremapOffset: 6}},
	}
}

func allAvailable() []*topology.NodeUsage {
	return []*topology.NodeUsage{
		{State: topology.StateAvailable},
		{State: topology.StateAvailable},
		{State: topology.StateAvailable},
		{State: topology.StateAvailable},
	}
}

func TestReservedNodeAlwaysDropped(t *testing.T) {
	nodes := fourNodes()
	usages := allAvailable()
	usages[1].State = topology.StateReserved

	candidate := bitmap.New(4)
	candidate.SetAll()
	job := &jobspec.Job{}

	err := VerifyNodeState(nodes, usages, candidate, nil, job, false, gres.Noop{})
	require.NoError(t, err)
	require.False(t, candidate.Test(1))
	require.Equal(t, 3, candidate.Popcount())
}

func TestRequiredNodeUnusableAbortsCall(t *testing.T) {
	nodes := fourNodes()
	usages := allAvailable()
	usages[2].State = topology.StateReserved

	candidate := bitmap.New(4)
	candidate.SetAll()
	job := &jobspec.Job{RequiredNodes: bitmap.FromBits(4, 2)}

	err := VerifyNodeState(nodes, usages, candidate, nil, job, false, gres.Noop{})
	require.ErrorIs(t, err, ErrRequiredNodeUnusable)
}

func TestMemoryFlagDropsInsufficientMemory(t *testing.T) {
	nodes := fourNodes()
	nodes[0].RealMemoryMB = 500
	usages := allAvailable()

	candidate := bitmap.New(4)
	candidate.SetAll()
	job := &jobspec.Job{ReqMemMB: 1000}

	err := VerifyNodeState(nodes, usages, candidate, nil, job, true, gres.Noop{})
	require.NoError(t, err)
	require.False(t, candidate.Test(0))
}

func TestGRESZeroDropsNode(t *testing.T) {
	nodes := fourNodes()
	usages := allAvailable()
	candidate := bitmap.New(4)
	candidate.SetAll()
	job := &jobspec.Job{}

	collab := zeroGres{}
	err := VerifyNodeState(nodes, usages, candidate, nil, job, false, collab)
	require.NoError(t, err)
	require.Equal(t, 0, candidate.Popcount())
}

type zeroGres struct{}

func (zeroGres) CoreFilter(_, _ string, _ bool, _ *bitmap.Bitmap, _, _ int, _ string) {}
func (zeroGres) JobTest(_, _ string, _ bool, _ *bitmap.Bitmap, _, _ int, _, _ string) int {
	return 0
}
