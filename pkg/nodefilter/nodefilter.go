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
	"time"

	"github.com/pkg/errors"

	"github.com/intel/cons-tres-core/pkg/bitmap"
	"github.com/intel/cons-tres-core/pkg/gres"
	"github.com/intel/cons-tres-core/pkg/jobspec"
	"github.com/intel/cons-tres-core/pkg/log"
	"github.com/intel/cons-tres-core/pkg/topology"
)

// flog rate-limits per-node drop messages: a job competing for space on a
// mostly-full, thousand-node partition can otherwise produce one log line
// per rejected node on every call.
var flog = log.RateLimit(log.NewLogger("nodefilter"), log.Interval(200*time.Millisecond))

// anyPartitionUses reports whether any row of any partition has a core
// allocated within node's core range -- our proxy for "a partition is
// using this node" in the absence of a separate per-node occupancy index.
func anyPartitionUses(node *topology.Node, partitions *topology.PartitionTable) bool {
	if partitions == nil {
		return false
	}
	begin, end := node.Geometry.CoreRange()
	for _, p := range partitions.Partitions {
		for _, row := range p.Rows {
			if row.CoreUsage == nil {
				continue
			}
			for c := begin; c < end; c++ {
				if row.CoreUsage.Test(c) {
					return true
				}
			}
		}
	}
	return false
}

// VerifyNodeState drops from candidate every node index that fails
// exclusivity, sharing, memory, or GRES preconditions for job. Dropping a
// required node aborts the whole call with ErrRequiredNodeUnusable.
func VerifyNodeState(nodes []*topology.Node, usages []*topology.NodeUsage, candidate *bitmap.Bitmap, partitions *topology.PartitionTable, job *jobspec.Job, memFlag bool, collab gres.Collaborator) error {
	if collab == nil {
		collab = gres.Noop{}
	}

	for i := candidate.First(); i != -1; i = candidate.NextSet(i + 1) {
		node := nodes[i]
		usage := usages[i]

		drop := false
		reason := ""

		if memFlag {
			minMem := job.ReqMemMB
			if job.MemPerCPU {
				minMem *= int64(expectedCPUsPerNode(job))
			}
			if node.RealMemoryMB-usage.AllocMemoryMB < minMem {
				drop = true
				reason = "insufficient free memory"
			}
		}

		if !drop {
			if collab.JobTest(job.JobGRES, node.GRES, false, nil, 0, 0, job.ID, node.Name) == 0 {
				drop = true
				reason = "GRES collaborator rejected node"
			}
		}

		if !drop {
			switch usage.State {
			case topology.StateReserved:
				drop = true
				reason = "node reserved"
			case topology.StateOneRow:
				if job.RequestClass == jobspec.RequestReserved || job.RequestClass == jobspec.RequestAvailable {
					drop = true
					reason = "node restricted to one-row jobs"
				}
				if anyPartitionUses(node, partitions) {
					drop = true
					reason = "node already in use by a one-row job"
				}
			case topology.StateAvailable:
				if job.RequestClass == jobspec.RequestReserved && anyPartitionUses(node, partitions) {
					drop = true
					reason = "node in use, job requires a reserved node"
				}
				if job.RequestClass == jobspec.RequestOneRow && anyPartitionUses(node, partitions) {
					drop = true
					reason = "node in use, job forbids sharing"
				}
			}
		}

		if drop {
			required := job.RequiredNodes != nil && job.RequiredNodes.Test(i)
			candidate.Clear(i)
			if required {
				return errors.Wrapf(ErrRequiredNodeUnusable, "node %q (index %d)", node.Name, i)
			}
			flog.Debug("dropping node %q (index %d) from candidate: %s", node.Name, i, reason)
		}
	}

	return nil
}

// expectedCPUsPerNode estimates the per-node CPU count used to scale a
// per-CPU memory requirement into a per-node minimum before any core has
// actually been selected.
func expectedCPUsPerNode(job *jobspec.Job) int {
	if job.PerNodeMinCPUs > 0 {
		return job.PerNodeMinCPUs
	}
	if job.TasksPerNode > 0 {
		cpusPerTask := job.CPUsPerTask
		if cpusPerTask < 1 {
			cpusPerTask = 1
		}
		return job.TasksPerNode * cpusPerTask
	}
	return 1
}
