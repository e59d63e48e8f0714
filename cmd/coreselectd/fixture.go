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

package main

import (
	"github.com/pkg/errors"
	k8syaml "sigs.k8s.io/yaml"

	"github.com/intel/cons-tres-core/pkg/bitmap"
	"github.com/intel/cons-tres-core/pkg/jobspec"
	"github.com/intel/cons-tres-core/pkg/topology"
)

// fixtureNode is the YAML shape of one cluster node, one step removed from
// topology.Node: CoremapOffset is computed, not read, so fixtures only
// describe shape and ordering, the way an admin would write one down.
type fixtureNode struct {
	Name           string `json:"name"`
	Sockets        int    `json:"sockets"`
	CoresPerSocket int    `json:"coresPerSocket"`
	ThreadsPerCore int    `json:"threadsPerCore"`
	MemoryMB       int64  `json:"memoryMB"`
	State          string `json:"state"`
}

type fixtureRow struct {
	UsedCores []int `json:"usedCores"`
}

type fixturePartition struct {
	Name     string       `json:"name"`
	Priority int          `json:"priority"`
	LLN      bool         `json:"lln"`
	Rows     []fixtureRow `json:"rows"`
}

type fixtureJob struct {
	ID            string `json:"id"`
	MinCPUs       int    `json:"minCPUs"`
	MaxCPUs       int    `json:"maxCPUs"`
	MinNodes      int    `json:"minNodes"`
	MaxNodes      int    `json:"maxNodes"`
	CPUsPerTask   int    `json:"cpusPerTask"`
	Shared        bool   `json:"shared"`
	Contiguous    bool   `json:"contiguous"`
	CoreSpec      int    `json:"coreSpec"`
	Partition     string `json:"partition"`
	RequiredNodes []int  `json:"requiredNodes"`
	RequestClass  string `json:"requestClass"`
	Chooser       string `json:"chooser"`
}

// fixture is the whole-file shape: a cluster plus the one job to test.
type fixture struct {
	Nodes      []fixtureNode      `json:"nodes"`
	Partitions []fixturePartition `json:"partitions"`
	Job        fixtureJob         `json:"job"`
}

func loadFixture(data []byte) (*fixture, error) {
	var f fixture
	if err := k8syaml.Unmarshal(data, &f); err != nil {
		return nil, errors.Wrap(err, "failed to parse cluster/job fixture")
	}
	return &f, nil
}

// build converts the YAML fixture into the topology/jobspec types the
// selection core consumes: it computes each node's CoremapOffset in
// declaration order and resolves the job's partition by name.
func (f *fixture) build() ([]*topology.Node, []*topology.NodeUsage, *topology.PartitionTable, *jobspec.Job, error) {
	nodes := make([]*topology.Node, len(f.Nodes))
	usages := make([]*topology.NodeUsage, len(f.Nodes))
	offset := 0
	for i, fn := range f.Nodes {
		geom := topology.NodeGeometry{
			Sockets:        fn.Sockets,
			CoresPerSocket: fn.CoresPerSocket,
			ThreadsPerCore: fn.ThreadsPerCore,
			CoremapOffset:  offset,
		}
		nodes[i] = &topology.Node{Name: fn.Name, Geometry: geom, RealMemoryMB: fn.MemoryMB}
		usages[i] = &topology.NodeUsage{State: parseState(fn.State)}
		offset += geom.Cores()
	}

	partitions := &topology.PartitionTable{}
	for _, fp := range f.Partitions {
		part := &topology.Partition{Name: fp.Name, Priority: fp.Priority, LLN: fp.LLN}
		for _, fr := range fp.Rows {
			row := topology.Row{CoreUsage: bitmap.New(offset)}
			for _, c := range fr.UsedCores {
				row.CoreUsage.Set(c)
			}
			part.Rows = append(part.Rows, row)
		}
		partitions.Partitions = append(partitions.Partitions, part)
	}

	job := &jobspec.Job{
		ID:           f.Job.ID,
		MinCPUs:      f.Job.MinCPUs,
		MaxCPUs:      valOrNoVal(f.Job.MaxCPUs),
		MinNodes:     f.Job.MinNodes,
		MaxNodes:     f.Job.MaxNodes,
		CPUsPerTask:  f.Job.CPUsPerTask,
		Shared:       f.Job.Shared,
		Contiguous:   f.Job.Contiguous,
		CoreSpec:     f.Job.CoreSpec,
		Partition:    partitions.ByName(f.Job.Partition),
		RequestClass: parseRequestClass(f.Job.RequestClass),
	}
	if len(f.Job.RequiredNodes) > 0 {
		req := bitmap.New(len(nodes))
		for _, n := range f.Job.RequiredNodes {
			req.Set(n)
		}
		job.RequiredNodes = req
	}
	if job.Partition == nil && f.Job.Partition != "" {
		return nil, nil, nil, nil, errors.Errorf("job references unknown partition %q", f.Job.Partition)
	}
	return nodes, usages, partitions, job, nil
}

func valOrNoVal(v int) int {
	if v == 0 {
		return jobspec.NoVal
	}
	return v
}

func parseState(s string) topology.NodeState {
	switch s {
	case "one-row":
		return topology.StateOneRow
	case "reserved":
		return topology.StateReserved
	case "completing":
		return topology.StateCompleting
	default:
		return topology.StateAvailable
	}
}

func parseRequestClass(s string) jobspec.NodeRequest {
	switch s {
	case "one-row":
		return jobspec.RequestOneRow
	case "reserved":
		return jobspec.RequestReserved
	default:
		return jobspec.RequestAvailable
	}
}
