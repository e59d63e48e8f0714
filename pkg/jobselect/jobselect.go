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

package jobselect

import (
	"sort"
	"time"

	"github.com/hashicorp/go-multierror"
	"github.com/pkg/errors"

	"github.com/intel/cons-tres-core/pkg/bitmap"
	"github.com/intel/cons-tres-core/pkg/chooser"
	"github.com/intel/cons-tres-core/pkg/coreassign"
	"github.com/intel/cons-tres-core/pkg/gres"
	"github.com/intel/cons-tres-core/pkg/jobspec"
	"github.com/intel/cons-tres-core/pkg/log"
	"github.com/intel/cons-tres-core/pkg/metrics"
	"github.com/intel/cons-tres-core/pkg/nodefilter"
	"github.com/intel/cons-tres-core/pkg/topology"
)

// Request bundles everything one JobTest call needs: the job, the node
// inventory and its live usage records, the candidate node set, the
// partition allocation table, the multi-node chooser to dispatch to, and
// the resource-type/mode flags that shape which passes run.
type Request struct {
	Job    *jobspec.Job
	Nodes  []*topology.Node
	Usages []*topology.NodeUsage

	// Candidate is the node bitmap to consider; JobTest consumes a clone
	// and leaves the caller's bitmap untouched.
	Candidate  *bitmap.Bitmap
	Partitions *topology.PartitionTable

	// Chooser is the multi-node selection policy to dispatch to --
	// chooser.Consecutive, chooser.LLN, or chooser.NewTopologyChooser(t),
	// picked by the caller the way the teacher picks a policy.Backend by
	// name rather than by subclassing.
	Chooser      chooser.Func
	Collaborator gres.Collaborator

	Mode      jobspec.Mode
	AllocMode jobspec.AllocMode

	// MemFlag means the job carries a memory requirement to check.
	MemFlag bool
	// MemoryOnly means the resource-type flags request no CPU accounting
	// at all (CR_MEMORY alone); pass 0 is the only pass run.
	MemoryOnly bool

	// ExcludedCores is caller-owned; JobTest only reads it. A length that
	// does not match the node set's global core space is logged and
	// treated as no exclusion, never as a fatal error.
	ExcludedCores *bitmap.Bitmap

	// ClusterNodeCount, when non-zero, must equal len(Nodes); a mismatch
	// is fatal and logged (the controller's view of the cluster and the
	// core's view have diverged).
	ClusterNodeCount int

	WholeNodeExclusive  bool
	KnapsackMaxAttempts int
}

// Driver is the priority-layered placement driver (spec §4.8/§4.9). It
// holds no per-call state between invocations -- every JobTest call owns
// its own scratch bitmaps, released when the call returns -- only a
// logger, the way the teacher's policy backends hold a logger.Logger
// alongside otherwise stateless helper methods.
type Driver struct {
	log.Logger
}

// New returns a ready-to-use Driver.
func New() *Driver {
	return &Driver{Logger: log.NewLogger("jobselect")}
}

// JobTest runs the full priority-layered selection for one job and
// returns the chosen nodes, per-node CPU counts, and core bitmap, or an
// error. Non-fatal per-pass failures (ErrInsufficientResources) are
// retried against a looser baseline; everything else aborts the call.
func (d *Driver) JobTest(req *Request) (*jobspec.Result, error) {
	job := req.Job

	if req.ClusterNodeCount != 0 && req.ClusterNodeCount != len(req.Nodes) {
		return nil, errors.Wrapf(ErrNodeCountMismatch, "controller reports %d nodes, core was handed %d",
			req.ClusterNodeCount, len(req.Nodes))
	}

	gi, err := topology.NewGeometryIndex(req.Nodes)
	if err != nil {
		return nil, policyError("bad node geometry: %v", err)
	}
	totalCores := gi.TotalCores()

	excluded := req.ExcludedCores
	if excluded != nil && excluded.Len() != totalCores {
		d.Warn("excluded-core bitmap size %d does not match global core space %d, ignoring it",
			excluded.Len(), totalCores)
		excluded = nil
	}

	candidate := req.Candidate.Clone()
	testOnly := req.Mode == jobspec.TestOnly

	if !testOnly {
		if err := nodefilter.VerifyNodeState(req.Nodes, req.Usages, candidate, req.Partitions, job, req.MemFlag, req.Collaborator); err != nil {
			return nil, err
		}
	}

	minCPUs := job.MinCPUs
	if job.Overcommit && job.MinCPUs == job.MinNodes {
		multiplier := job.CPUsPerTask
		if multiplier < 1 {
			multiplier = 1
		}
		minCPUs = job.MinCPUs * multiplier
	}

	avail := buildAvailCores(gi, candidate, job.CoreSpec)
	if excluded != nil {
		avail.AndNot(excluded)
	}

	pname := partitionName(job)

	// Pass 0: probe against the unconstrained availability map.
	freeCores := avail.Clone()
	pass0Start := time.Now()
	result, capCores, err := d.attempt(req, candidate.Clone(), freeCores, bitmap.New(totalCores), minCPUs)
	metrics.RecordPass(pname, metrics.OutcomeProbe, time.Since(pass0Start))
	if err != nil {
		return nil, err
	}
	if testOnly || req.MemoryOnly {
		return finishResult(result, capCores, req.Nodes)
	}
	if !result.BestSwitch {
		return nil, ErrTopologyBestSwitch
	}

	// Pass 1: strictly idle cores only (every partition row excluded).
	freeCores = avail.Clone()
	partCoreMap := bitmap.New(totalCores)
	for _, p := range req.Partitions.Partitions {
		for _, row := range p.Rows {
			if row.CoreUsage == nil {
				continue
			}
			freeCores.AndNot(row.CoreUsage)
			if p == job.Partition {
				partCoreMap.Or(row.CoreUsage)
			}
		}
	}
	pass1Candidate := candidate.Clone()
	d.Debug("pass1 free cores: %s", log.Delay(func() interface{} { return freeCores.String() }))
	pass1Start := time.Now()
	result, capCores, pass1Err := d.attempt(req, pass1Candidate, freeCores, partCoreMap, minCPUs)
	metrics.RecordPass(pname, metrics.OutcomeIdle, time.Since(pass1Start))
	if pass1Err == nil && result.BestSwitch {
		return finishResult(result, capCores, req.Nodes)
	}
	forbidsSharing := !job.Shared && job.RequestClass == jobspec.RequestOneRow
	if forbidsSharing {
		if pass1Err != nil {
			return nil, pass1Err
		}
		return nil, ErrTopologyBestSwitch
	}

	// Pass 2: rows of strictly-higher-priority partitions excluded; the
	// resulting baseline is persisted as the new avail_cores for pass 3.
	freeCores = avail.Clone()
	for _, p := range req.Partitions.Partitions {
		if job.Partition != nil && p.Priority <= job.Partition.Priority {
			continue
		}
		for _, row := range p.Rows {
			if row.CoreUsage != nil {
				freeCores.AndNot(row.CoreUsage)
			}
		}
	}
	avail = freeCores.Clone()
	pass2Start := time.Now()
	_, _, pass2Err := d.attempt(req, candidate.Clone(), freeCores.Clone(), partCoreMap, minCPUs)
	metrics.RecordPass(pname, metrics.OutcomeRelaxed, time.Since(pass2Start))
	if pass2Err != nil {
		return nil, pass2Err
	}

	// Pass 3: rows of equal-priority partitions also excluded, forcing
	// idleness inside the job's own priority tier (peers, not self).
	freeCores = avail.Clone()
	for _, p := range req.Partitions.Partitions {
		if p == job.Partition {
			continue
		}
		if job.Partition == nil || p.Priority != job.Partition.Priority {
			continue
		}
		for _, row := range p.Rows {
			if row.CoreUsage != nil {
				freeCores.AndNot(row.CoreUsage)
			}
		}
	}
	pass3Start := time.Now()
	result, capCores, pass3Err := d.attempt(req, candidate.Clone(), freeCores, partCoreMap, minCPUs)
	metrics.RecordPass(pname, metrics.OutcomePeers, time.Since(pass3Start))
	if pass3Err == nil && result.BestSwitch {
		return finishResult(result, capCores, req.Nodes)
	}

	// Pass 4: fit into one of the job's own partition rows.
	pass4Start := time.Now()
	result, capCores, pass4Err := d.passOwnRows(req, candidate, avail, partCoreMap, minCPUs)
	metrics.RecordPass(pname, metrics.OutcomeOwnRows, time.Since(pass4Start))
	if pass4Err == nil {
		return finishResult(result, capCores, req.Nodes)
	}

	merr := multierror.Append(nil, pass2Err, pass3Err, pass4Err)
	if pass1Err != nil {
		merr = multierror.Append(merr, pass1Err)
	}
	merr = multierror.Append(merr, ErrInsufficientResources)
	metrics.RecordPass(pname, metrics.OutcomeRejected, 0)
	d.WarnBlock("  ", "job %q exhausted passes 1-4 on partition %q:\n%v", job.ID, pname, merr)
	return nil, merr.ErrorOrNil()
}

// attempt computes per-node capacities over freeCores (mutating freeCores
// in place, per node, the way CanJobRunOnNode leaves only the cores it
// actually selected) and runs the configured chooser, wrapped in the
// knapsack-mitigation retry loop.
func (d *Driver) attempt(req *Request, candidate *bitmap.Bitmap, freeCores, partUsage *bitmap.Bitmap, minCPUs int) (*chooser.Result, *bitmap.Bitmap, error) {
	job := req.Job
	testOnly := req.Mode == jobspec.TestOnly

	capacities := make(map[int]int)
	for i := candidate.First(); i != -1; i = candidate.NextSet(i + 1) {
		node := req.Nodes[i]
		usage := req.Usages[i]
		cpus := coreassign.CanJobRunOnNode(node, usage, freeCores, partUsage, job, req.AllocMode, req.MemFlag, testOnly, req.Collaborator)
		if cpus > 0 {
			capacities[i] = cpus
		} else {
			candidate.Clear(i)
		}
	}

	chooserReq := &chooser.Request{
		Candidate:      candidate,
		Capacities:     capacities,
		Required:       job.RequiredNodes,
		MinNodes:       job.MinNodes,
		MaxNodes:       job.MaxNodes,
		MinCPUs:        minCPUs,
		MaxCPUsPerNode: job.MaxCPUs,
		Contiguous:     job.Contiguous,
	}

	fn := req.Chooser
	result, err := chooser.WithKnapsackMitigation(fn, chooserReq, req.WholeNodeExclusive, req.KnapsackMaxAttempts)
	if err != nil {
		return nil, nil, err
	}

	if job.ReqSwitchCount > 0 && job.Wait4Switch > 0 {
		// The driver call is synchronous and one-shot (spec §5): it has no
		// queued-job wall-clock history to measure elapsed wait against, so
		// elapsed is always zero here. A caller retrying a deferred job
		// across calls is expected to track wait4switch_start itself and
		// fold it into a shorter Wait4Switch on the next call.
		const elapsed = time.Duration(0)
		result.BestSwitch = elapsed >= job.Wait4Switch || result.LeafSwitchCount <= job.ReqSwitchCount
	} else {
		result.BestSwitch = true
	}

	return result, freeCores, nil
}

// passOwnRows implements §4.8 pass 4: try the job's own partition rows,
// densest first, accepting the first that fits; fall back to trying a
// completely empty row explicitly if the density-ordered scan found none.
func (d *Driver) passOwnRows(req *Request, candidate, avail, partUsage *bitmap.Bitmap, minCPUs int) (*chooser.Result, *bitmap.Bitmap, error) {
	job := req.Job
	d.Debug("own-rows pass, partition %q rows: %s", partitionName(job), log.Delay(func() interface{} {
		if job.Partition == nil {
			return "<none>"
		}
		return len(job.Partition.Rows)
	}))
	if job.Partition == nil || len(job.Partition.Rows) == 0 {
		return nil, nil, ErrInsufficientResources
	}

	rows := make([]int, len(job.Partition.Rows))
	for i := range rows {
		rows[i] = i
	}
	sort.Slice(rows, func(a, b int) bool {
		da, db := rowDensity(job.Partition.Rows[rows[a]]), rowDensity(job.Partition.Rows[rows[b]])
		return da > db
	})

	limit := len(rows)
	if job.RequestClass == jobspec.RequestOneRow {
		limit = 1
	}
	if limit > len(rows) {
		limit = len(rows)
	}

	var lastErr error = ErrInsufficientResources
	triedEmpty := false
	for _, idx := range rows[:limit] {
		row := job.Partition.Rows[idx]
		if row.CoreUsage != nil && row.CoreUsage.IsEmpty() {
			triedEmpty = true
		}
		freeCores := avail.Clone()
		if row.CoreUsage != nil {
			freeCores.AndNot(row.CoreUsage)
		}
		result, capCores, err := d.attempt(req, candidate.Clone(), freeCores, partUsage, minCPUs)
		if err == nil && result.BestSwitch {
			return result, capCores, nil
		}
		if err != nil {
			lastErr = err
		} else {
			lastErr = ErrInsufficientResources
		}
	}

	if !triedEmpty {
		for _, row := range job.Partition.Rows {
			if row.CoreUsage == nil || !row.CoreUsage.IsEmpty() {
				continue
			}
			freeCores := avail.Clone()
			result, capCores, err := d.attempt(req, candidate.Clone(), freeCores, partUsage, minCPUs)
			if err == nil && result.BestSwitch {
				return result, capCores, nil
			}
			break
		}
	}

	return nil, nil, lastErr
}

// partitionName returns job.Partition.Name, or "" for an unpartitioned job.
func partitionName(job *jobspec.Job) string {
	if job.Partition == nil {
		return ""
	}
	return job.Partition.Name
}

func rowDensity(row topology.Row) int {
	if row.CoreUsage == nil {
		return 0
	}
	return row.CoreUsage.Popcount()
}

// finishResult converts a chooser.Result plus the winning pass's core
// scratch bitmap into the driver's public jobspec.Result, applying §4.9:
// every node absent from the final node bitmap has its core range cleared.
// The result's Wait4SwitchStart is left at its zero value: neither JobTest
// nor chooser.Result keeps wall-clock state.
func finishResult(result *chooser.Result, coreScratch *bitmap.Bitmap, nodes []*topology.Node) (*jobspec.Result, error) {
	for i, node := range nodes {
		if result.Nodes.Test(i) {
			continue
		}
		begin, end := node.Geometry.CoreRange()
		coreScratch.ClearRange(begin, end)
	}
	return &jobspec.Result{
		Nodes:           result.Nodes,
		CPUCounts:       result.CPUCounts,
		Cores:           coreScratch,
		BestSwitch:      result.BestSwitch,
		LeafSwitchCount: result.LeafSwitchCount,
	}, nil
}

// buildAvailCores marks every candidate node's cores available, then
// carves coreSpec cores per node from the top of each socket in
// round-robin, highest socket/highest core downward; a node whose core
// count does not exceed coreSpec is dropped from candidate entirely.
func buildAvailCores(gi *topology.GeometryIndex, candidate *bitmap.Bitmap, coreSpec int) *bitmap.Bitmap {
	avail := bitmap.New(gi.TotalCores())
	for i := candidate.First(); i != -1; i = candidate.NextSet(i + 1) {
		node := gi.Node(i)
		begin, end := node.Geometry.CoreRange()
		avail.SetRange(begin, end)
		if coreSpec <= 0 {
			continue
		}
		if node.Geometry.Cores() <= coreSpec {
			avail.ClearRange(begin, end)
			candidate.Clear(i)
			continue
		}
		carveCoreSpec(avail, node, coreSpec)
	}
	return avail
}

func carveCoreSpec(avail *bitmap.Bitmap, node *topology.Node, coreSpec int) {
	geo := node.Geometry
	begin, _ := geo.CoreRange()
	sockets := geo.Sockets
	coresPerSocket := geo.CoresPerSocket

	remaining := coreSpec
	socket := sockets - 1
	coreInSocket := coresPerSocket - 1
	for remaining > 0 {
		c := begin + socket*coresPerSocket + coreInSocket
		avail.Clear(c)
		remaining--
		socket--
		if socket < 0 {
			socket = sockets - 1
			coreInSocket--
			if coreInSocket < 0 {
				break
			}
		}
	}
}
