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

// Package coreassign implements the per-node allocator: given one node's
// core availability and a job's topology/task-shape constraints, it picks
// which cores to use on that node and reports how many CPUs they back.
// allocateSC is the workhorse the teacher's static policy spells
// allocateCPUs/allocateOrdinaryCPUs/allocateIsolatedCPUs as three cousins of
// the same idea: try a preferred placement, fall back to a looser one, and
// always leave the node's bitmap holding exactly what was actually taken.
package coreassign

import (
	"github.com/intel/cons-tres-core/pkg/bitmap"
	"github.com/intel/cons-tres-core/pkg/jobspec"
	"github.com/intel/cons-tres-core/pkg/topology"
)

// AllocateSC selects cores for job on node, mutating avail so that on
// return only the chosen cores remain set within the node's core range
// (every other core in range is cleared, whether it started free or not).
// avail and partUsage are bitmaps over the global core space; only the
// node's [begin, end) slice is read or written. partUsage reflects cores
// already in use by the job's own partition on this node, used solely to
// size the max-cpus-per-node trim in step 4 of the algorithm.
//
// mode selects socket- vs core-granularity allocation (AllocCPU follows
// the AllocCore path; callers distinguish cpu_alloc_size upstream).
// preferCores biases whole-socket consumption over even spreading across
// sockets, mirroring the teacher's isolated-CPU preference in whole-node
// placements.
//
// It returns the number of CPUs backed by the selected cores, or 0 if the
// node cannot satisfy the job's per-node constraints -- in which case
// every core in the node's range is cleared from avail.
func AllocateSC(node *topology.Node, avail, partUsage *bitmap.Bitmap, job *jobspec.Job, mode jobspec.AllocMode, preferCores bool) int {
	geo := node.Geometry
	begin, end := geo.CoreRange()
	sockets := geo.Sockets
	coresPerSocket := geo.CoresPerSocket
	threads := geo.ThreadsPerCore

	freeCores := make([]int, sockets)
	usedCores := make([]int, sockets)
	usedOnSocket := make([]bool, sockets)

	for c := begin; c < end; c++ {
		i := geo.SocketOf(c)
		if avail.Test(c) {
			freeCores[i]++
		} else {
			usedCores[i]++
		}
		if partUsage.Test(c) {
			usedOnSocket[i] = true
		}
	}

	// Step 2: whole-socket mode drops any socket with an in-use core.
	if mode == jobspec.AllocSocket {
		for i := 0; i < sockets; i++ {
			if usedCores[i] > 0 {
				clearSocket(avail, begin, coresPerSocket, i)
				freeCores[i] = 0
			}
		}
	}

	freeCPUCount := 0
	usedCPUCount := 0
	for i := 0; i < sockets; i++ {
		freeCPUCount += freeCores[i] * threads
		// Open question in the source algorithm: this overwrites rather
		// than accumulates across sockets -- the last partition-loaded
		// socket scanned determines used_cpu_count.
		if usedOnSocket[i] {
			usedCPUCount = usedCores[i] * threads
		}
	}

	// Step 4: trim to job.MaxCPUs, applied here as a per-node cap, if set.
	// Partitions carry no per-node CPU cap of their own.
	if job.MaxCPUs != jobspec.NoVal {
		excess := freeCPUCount + usedCPUCount - job.MaxCPUs
		for i := 0; i < sockets && excess > 0; i++ {
			for c := begin + i*coresPerSocket; c < begin+(i+1)*coresPerSocket && excess > 0; c++ {
				if avail.Test(c) {
					avail.Clear(c)
					freeCores[i]--
					freeCPUCount -= threads
					excess -= threads
				}
			}
		}
	}

	// Step 5: per-socket minimum, then per-node minimum socket count.
	viableSockets := 0
	for i := 0; i < sockets; i++ {
		if freeCores[i] < job.MinCoresPerSocket {
			if freeCores[i] > 0 {
				clearSocket(avail, begin, coresPerSocket, i)
				freeCPUCount -= freeCores[i] * threads
				freeCores[i] = 0
			}
			continue
		}
		if freeCores[i] > 0 {
			viableSockets++
		}
	}
	if job.MinSocketsPerNode > 0 && viableSockets < job.MinSocketsPerNode {
		clearRange(avail, begin, end)
		return 0
	}

	freeCoreCount := 0
	for i := 0; i < sockets; i++ {
		freeCoreCount += freeCores[i]
	}
	if freeCoreCount == 0 {
		clearRange(avail, begin, end)
		return 0
	}

	// Step 7: thread cap and available-CPU/task accounting.
	threadsPrime := threads
	if job.TasksPerCore > 0 && job.TasksPerCore < threadsPrime {
		threadsPrime = job.TasksPerCore
	}

	availCPUs := 0
	for i := 0; i < sockets; i++ {
		availCPUs += freeCores[i] * threadsPrime
	}

	var tasks int
	if job.TasksPerSocket > 0 {
		for i := 0; i < sockets; i++ {
			perSocket := freeCores[i] * threadsPrime
			if perSocket > job.TasksPerSocket {
				perSocket = job.TasksPerSocket
			}
			tasks += perSocket
		}
	} else {
		tasks = availCPUs
	}

	// Step 8.
	if job.TasksPerNode > 0 && job.Shared && tasks > job.TasksPerNode {
		tasks = job.TasksPerNode
	}

	// Step 9.
	if job.CPUsPerTask >= 2 {
		if cap := availCPUs / job.CPUsPerTask; cap < tasks {
			tasks = cap
		}
		if job.TasksPerNode > 0 {
			availCPUs = tasks * job.CPUsPerTask
		}
	}

	// Step 10.
	if job.TasksPerNode > tasks && !job.Overcommit {
		clearRange(avail, begin, end)
		return 0
	}
	if job.PerNodeMinCPUs > availCPUs {
		clearRange(avail, begin, end)
		return 0
	}

	// Step 11: core selection pass. cps is a per-socket cap expressed in
	// cores; ntasks_per_socket (optionally scaled by cpus_per_task) is a
	// CPU-unit quantity, so it is converted down by threadsPrime.
	cps := tasks
	if job.TasksPerSocket > 0 {
		cps = job.TasksPerSocket
		if job.CPUsPerTask > 1 {
			cps *= job.CPUsPerTask
		}
	}
	if threadsPrime > 0 {
		cps = (cps + threadsPrime - 1) / threadsPrime
	}
	if preferCores {
		// Bias toward exhausting one socket's capacity before moving to
		// the next instead of spreading evenly, the way a whole-node
		// placement prefers packing full sockets.
		cps = coresPerSocket
	}

	socketTaken := make([]int, sockets)
	cpuCount := 0
	remaining := availCPUs
	for c := begin; c < end; c++ {
		if remaining <= 0 {
			avail.Clear(c)
			continue
		}
		if !avail.Test(c) {
			continue
		}
		i := geo.SocketOf(c)
		if socketTaken[i] >= cps {
			avail.Clear(c)
			continue
		}
		socketTaken[i]++
		cpuCount += threadsPrime
		remaining -= threadsPrime
	}

	if cpuCount == 0 {
		clearRange(avail, begin, end)
		return 0
	}
	return cpuCount
}

func clearRange(b *bitmap.Bitmap, begin, end int) {
	b.ClearRange(begin, end)
}

func clearSocket(b *bitmap.Bitmap, nodeBegin, coresPerSocket, socket int) {
	b.ClearRange(nodeBegin+socket*coresPerSocket, nodeBegin+(socket+1)*coresPerSocket)
}
