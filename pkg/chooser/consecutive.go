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

type run struct {
	start, end int // [start, end) node indices
	cpus       int // sum of capacities of non-required nodes in the run
	nodeCount  int // total node count in the run
	reqIdx     int // index of the first required node in the run, or -1
}

func buildRuns(req *Request) []run {
	var runs []run
	n := req.Candidate.Len()
	i := 0
	for i < n {
		if !req.Candidate.Test(i) {
			i++
			continue
		}
		start := i
		r := run{start: start, reqIdx: -1}
		for i < n && req.Candidate.Test(i) {
			r.nodeCount++
			required := req.Required != nil && req.Required.Test(i)
			if required {
				if r.reqIdx == -1 {
					r.reqIdx = i
				}
			} else {
				r.cpus += req.Capacities[i]
			}
			i++
		}
		r.end = i
		runs = append(runs, r)
		i++
	}
	return runs
}

// betterRun implements the §4.4 tie-break order; on an exact tie it
// reports b as better, preserving the source algorithm's "last scanned
// wins" behavior (see DESIGN.md).
func betterRun(a, b run, remCPUs, remNodesMin, jobMinNodes, requiredTotal int) bool {
	aHasReq := a.reqIdx != -1
	bHasReq := b.reqIdx != -1
	if aHasReq != bHasReq {
		return bHasReq
	}

	aSuff := a.cpus >= remCPUs && enoughNodes(a.nodeCount, remNodesMin, jobMinNodes, requiredTotal)
	bSuff := b.cpus >= remCPUs && enoughNodes(b.nodeCount, remNodesMin, jobMinNodes, requiredTotal)
	if aSuff != bSuff {
		return bSuff
	}
	if aSuff {
		return b.cpus <= a.cpus
	}
	return b.cpus >= a.cpus
}

// allRequiredInOneRun reports whether every bit of required falls inside a
// single run of candidate.
func allRequiredInOneRun(candidateRuns []run, required interface {
	First() int
	NextSet(int) int
}) bool {
	if required.First() == -1 {
		return true
	}
	for _, r := range candidateRuns {
		covers := true
		for i := required.First(); i != -1; i = required.NextSet(i + 1) {
			if i < r.start || i >= r.end {
				covers = false
				break
			}
		}
		if covers {
			return true
		}
	}
	return false
}

// Consecutive is the consecutive-block best-fit chooser (spec §4.4): it
// grows runs of adjacent candidate nodes and repeatedly consumes the
// best-fit run until the job's CPU and node targets are met.
func Consecutive(req *Request) (*Result, error) {
	n := req.Candidate.Len()
	result := newResult(n)

	requiredTotal := 0
	if req.Required != nil {
		requiredTotal = req.Required.Popcount()
	}

	if req.Contiguous && requiredTotal > 0 {
		initialRuns := buildRuns(req)
		if !allRequiredInOneRun(initialRuns, req.Required) {
			return nil, ErrContiguityUnmet
		}
	}

	remCPUs := req.MinCPUs
	chosen := 0

	if req.Required != nil {
		for i := req.Required.First(); i != -1; i = req.Required.NextSet(i + 1) {
			if !req.Candidate.Test(i) {
				continue
			}
			cpu := req.Capacities[i]
			result.Nodes.Set(i)
			result.CPUCounts[i] = cpu
			req.Candidate.Clear(i)
			remCPUs -= cpu
			chosen++
		}
	}

	for {
		if remCPUs <= 0 && chosen >= req.MinNodes {
			break
		}
		if req.MaxNodes > 0 && chosen >= req.MaxNodes {
			break
		}

		runs := buildRuns(req)
		if len(runs) == 0 {
			return nil, ErrInsufficientResources
		}

		remNodesMin := req.MinNodes - chosen
		best := runs[0]
		for _, r := range runs[1:] {
			if betterRun(best, r, remCPUs, remNodesMin, req.MinNodes, requiredTotal) {
				best = r
			}
		}

		progressed := appendFromRun(req, result, best, &remCPUs, &chosen, remNodesMin)
		req.Candidate.ClearRange(best.start, best.end)
		if !progressed {
			return nil, ErrInsufficientResources
		}
	}

	if remCPUs > 0 || chosen < req.MinNodes {
		return nil, ErrInsufficientResources
	}
	return result, nil
}

// appendFromRun fills result from run r in "rem_nodes <= 1" best-fit order
// or plain index order, per §4.4 step 3. remNodesMin is MinNodes-*chosen as
// of the caller's run-selection decision, not MaxNodes-derived: MaxNodes is
// an independent, often-unset (0 = unbounded) cap, not the quantity step 3
// means by "rem_nodes".
func appendFromRun(req *Request, result *Result, r run, remCPUs *int, chosen *int, remNodesMin int) bool {
	order := make([]int, 0, r.nodeCount)
	if r.reqIdx != -1 {
		for i := r.reqIdx; i < r.end; i++ {
			order = append(order, i)
		}
		for i := r.reqIdx - 1; i >= r.start; i-- {
			order = append(order, i)
		}
	} else if remNodesMin <= 1 {
		best := -1
		for i := r.start; i < r.end; i++ {
			if result.Nodes.Test(i) {
				continue
			}
			cpu := req.Capacities[i]
			if cpu >= *remCPUs {
				if best == -1 || cpu < req.Capacities[best] {
					best = i
				}
			}
		}
		if best != -1 {
			order = append(order, best)
		} else {
			for i := r.start; i < r.end; i++ {
				order = append(order, i)
			}
		}
	} else {
		for i := r.start; i < r.end; i++ {
			order = append(order, i)
		}
	}

	progressed := false
	for _, i := range order {
		if result.Nodes.Test(i) {
			continue
		}
		if *remCPUs <= 0 && req.MinNodes-*chosen <= 0 {
			break
		}
		if req.MaxNodes > 0 && *chosen >= req.MaxNodes {
			break
		}
		cpu := req.Capacities[i]
		if !capAllows(result, req.MaxCPUsPerNode, cpu) {
			continue
		}
		result.Nodes.Set(i)
		result.CPUCounts[i] = cpu
		*remCPUs -= cpu
		*chosen++
		progressed = true
	}
	return progressed
}
