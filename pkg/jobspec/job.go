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

// Package jobspec is the shared vocabulary between the per-node allocator,
// node-state filter, chooser, and priority-layered driver: the job
// descriptor, the allocation/resource-type flags, and the sentinel values
// that stand for "unset/unlimited". It depends only on bitmap and topology,
// so every package above it can speak the same job/result types
// without importing the driver.
package jobspec

import (
	"time"

	"github.com/intel/cons-tres-core/pkg/bitmap"
	"github.com/intel/cons-tres-core/pkg/topology"
)

// NoVal is the sentinel for "unset/unlimited" 16- and 32-bit capacity fields.
const NoVal = -1

// AllocMode selects how the per-node allocator treats socket boundaries.
type AllocMode int

const (
	// AllocCore allows cores to be mixed freely across sockets.
	AllocCore AllocMode = iota
	// AllocSocket only allocates whole, currently-idle sockets.
	AllocSocket
	// AllocCPU follows the same path as AllocCore; callers distinguish
	// cpu_alloc_size handling upstream, not in the allocator itself.
	AllocCPU
)

// Mode is the driver call mode.
type Mode int

const (
	// TestOnly reports feasibility without committing an allocation.
	TestOnly Mode = iota
	// WillRun is a what-if evaluation used for backfill/priority estimation.
	WillRun
	// RunNow commits the allocation if selection succeeds.
	RunNow
)

// NodeRequest is the requested admission class for selected nodes.
type NodeRequest int

const (
	// RequestAvailable rejects nodes in the one-row or reserved state.
	RequestAvailable NodeRequest = iota
	// RequestOneRow requires nodes committed to at most one sharing row.
	RequestOneRow
	// RequestReserved requires nodes that no partition row uses and that
	// are not in the one-row or reserved state.
	RequestReserved
)

// Job is the job descriptor passed into every layer of the selection core.
type Job struct {
	ID string

	// Aggregate and per-node CPU demand.
	MinCPUs        int
	MaxCPUs        int // NoVal means uncapped
	PerNodeMinCPUs int

	// Task shape.
	TasksPerNode   int
	TasksPerCore   int // cap on threads-per-core actually used (0 = uncapped)
	TasksPerSocket int
	CPUsPerTask    int

	// Topology constraints.
	MinCoresPerSocket int
	MinSocketsPerNode int

	// Behavioral flags.
	Overcommit   bool
	WholeNode    bool // exclusive whole-node/whole-socket allocation
	Shared       bool // job accepts sharing a node with others
	Contiguous   bool // required nodes must form one consecutive run/switch

	CoreSpec int // cores reserved for system use, carved from the top of each node

	RequiredNodes *bitmap.Bitmap
	// RequiredNodeCPUs maps a required node's global index to a CPU count.
	// No selection code reads it.
	RequiredNodeCPUs map[int]int

	ReqSwitchCount int
	Wait4Switch    time.Duration

	Partition *topology.Partition

	// Resource accounting.
	ReqMemMB  int64
	MemPerCPU bool
	JobGRES   string

	MinNodes int
	MaxNodes int
	ReqNodes int // NoVal if the job does not pin an exact node count

	// RequestClass is the node-request admission class (available / one-row
	// / reserved) the node-state filter checks candidate nodes against.
	RequestClass NodeRequest
}

// Result is the selection core's output: which nodes, how many CPUs on
// each, and which cores, plus the topology SLA outcome.
type Result struct {
	Nodes     *bitmap.Bitmap
	CPUCounts map[int]int // keyed by global node index
	Cores     *bitmap.Bitmap

	BestSwitch       bool
	LeafSwitchCount  int
	Wait4SwitchStart time.Time
}
