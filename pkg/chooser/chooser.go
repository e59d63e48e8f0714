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

// Package chooser implements the three multi-node selection policies --
// consecutive-block best-fit, least-loaded-node, and topology (switch-tree)
// best-fit -- behind one function-table signature, plus the knapsack-
// mitigation retry wrapper common to all three. The three variants share
// the Request/Result contract the way the teacher's three CPU Manager
// policies (static, topology-aware, balloons) share the policy.Backend
// interface: dispatch by policy choice, not by subclassing a base chooser.
package chooser

import (
	"github.com/pkg/errors"

	"github.com/intel/cons-tres-core/pkg/bitmap"
	"github.com/intel/cons-tres-core/pkg/jobspec"
)

// ErrInsufficientResources means a pass failed to satisfy the job's CPU or
// node minimums; the priority-layered driver treats this as a retry
// trigger, not a fatal error.
var ErrInsufficientResources = errors.New("insufficient resources")

// ErrContiguityUnmet means the required nodes span more than one run (or
// more than one switch, in topology mode) while contiguous placement was
// requested. Fatal to the whole selection call.
var ErrContiguityUnmet = errors.New("required nodes not contiguous")

// ErrMaxCPULimitExceeded means the required nodes alone already exceed the
// job's max-CPU cap. Fatal to the whole selection call.
var ErrMaxCPULimitExceeded = errors.New("required nodes exceed max CPU cap")

// Request is the chooser's input: a candidate node bitmap (consumed -- the
// chooser uses it as scratch state), each candidate's CPU capacity, and
// the job's node/CPU targets.
type Request struct {
	// Candidate holds the nodes still eligible for selection. The chooser
	// mutates it in place; its contents on return are not the selection,
	// which is reported only in Result.Nodes.
	Candidate *bitmap.Bitmap
	// Capacities maps a global node index to its usable CPU count, as
	// computed by coreassign.CanJobRunOnNode for that node.
	Capacities map[int]int
	// Required is the subset of Candidate the job must receive.
	Required *bitmap.Bitmap

	MinNodes       int
	MaxNodes       int
	MinCPUs        int
	MaxCPUsPerNode int // jobspec.NoVal means uncapped

	Contiguous bool
}

// Result is the chooser's output.
type Result struct {
	Nodes     *bitmap.Bitmap
	CPUCounts map[int]int

	// LeafSwitchCount is populated only by the topology chooser. No chooser
	// sets BestSwitch; pkg/jobselect fills it in after the chooser returns.
	BestSwitch      bool
	LeafSwitchCount int
}

// Func is the common chooser signature every policy implements.
type Func func(req *Request) (*Result, error)

func enoughNodes(avail, rem, min, req int) bool {
	if req > min {
		return avail >= rem+min-req
	}
	return avail >= rem
}

func capAllows(result *Result, maxPerNode int, cpus int) bool {
	return maxPerNode == jobspec.NoVal || cpus <= maxPerNode
}

func newResult(candLen int) *Result {
	return &Result{
		Nodes:     bitmap.New(candLen),
		CPUCounts: make(map[int]int),
	}
}

func sumRequired(req *Request) (cpus int, count int) {
	if req.Required == nil {
		return 0, 0
	}
	for i := req.Required.First(); i != -1; i = req.Required.NextSet(i + 1) {
		cpus += req.Capacities[i]
		count++
	}
	return cpus, count
}
