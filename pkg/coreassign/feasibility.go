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

package coreassign

import (
	"github.com/intel/cons-tres-core/pkg/bitmap"
	"github.com/intel/cons-tres-core/pkg/gres"
	"github.com/intel/cons-tres-core/pkg/jobspec"
	"github.com/intel/cons-tres-core/pkg/topology"
)

// CanJobRunOnNode wraps AllocateSC with the GRES core filter, a completing-
// node guard, and the memory/GRES upper-bound checks from the node
// feasibility step. It returns the final CPU count usable on node, or 0 if
// the node cannot host the job -- in which case the node's entire core
// range is cleared from avail.
func CanJobRunOnNode(node *topology.Node, usage *topology.NodeUsage, avail, partUsage *bitmap.Bitmap, job *jobspec.Job, mode jobspec.AllocMode, memFlag bool, testOnly bool, collab gres.Collaborator) int {
	begin, end := node.Geometry.CoreRange()
	threads := node.Geometry.ThreadsPerCore

	if collab == nil {
		collab = gres.Noop{}
	}
	collab.CoreFilter(job.JobGRES, node.GRES, testOnly, avail, begin, end, node.Name)

	if usage.State == topology.StateCompleting && !testOnly {
		avail.ClearRange(begin, end)
		return 0
	}

	cpus := AllocateSC(node, avail, partUsage, job, mode, job.WholeNode)
	if cpus == 0 {
		return 0
	}

	cpuAllocSize := job.CPUsPerTask
	if cpuAllocSize < 1 {
		cpuAllocSize = 1
	}

	if memFlag {
		availMem := node.RealMemoryMB - usage.AllocMemoryMB
		if job.MemPerCPU {
			for job.ReqMemMB*int64(cpus) > availMem && cpus > 0 {
				cpus -= cpuAllocSize
			}
			if cpus < job.TasksPerNode || cpus < job.CPUsPerTask {
				avail.ClearRange(begin, end)
				return 0
			}
		} else if job.ReqMemMB > availMem {
			avail.ClearRange(begin, end)
			return 0
		}
	}

	if gresCores := collab.JobTest(job.JobGRES, node.GRES, testOnly, nil, begin, end, job.ID, node.Name); gresCores != gres.NoVal {
		gresCPUs := gresCores * threads
		for cpus > gresCPUs {
			if cpus < cpuAllocSize {
				cpus = 0
				break
			}
			cpus -= cpuAllocSize
		}
	}

	if cpus <= 0 {
		avail.ClearRange(begin, end)
		return 0
	}

	trimToCPUCount(avail, begin, end, threads, cpus)
	return cpus
}

// trimToCPUCount clears the highest-index cores in [begin, end) of avail
// until the remaining selected cores back at most target CPUs (at
// cpusPerCore CPUs per core).
func trimToCPUCount(avail *bitmap.Bitmap, begin, end, cpusPerCore, target int) {
	if cpusPerCore <= 0 {
		return
	}
	selected := 0
	for c := begin; c < end; c++ {
		if avail.Test(c) {
			selected++
		}
	}
	for c := end - 1; c >= begin && selected*cpusPerCore > target; c-- {
		if avail.Test(c) {
			avail.Clear(c)
			selected--
		}
	}
}
