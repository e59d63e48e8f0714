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
	"github.com/intel/cons-tres-core/pkg/bitmap"
	topo "github.com/intel/cons-tres-core/pkg/topology"
)

type switchRec struct {
	sw        *topo.Switch
	nodes     *bitmap.Bitmap // remaining (unselected, non-required) candidate nodes under this switch
	nodeCount int
	cpus      int // sum of capacities of nodes still in `nodes`
	reqCPU    int // CPU contribution of required nodes pre-seated under this switch
	required  bool
}

func sumCapacities(nodes *bitmap.Bitmap, capacities map[int]int) int {
	sum := 0
	for i := nodes.First(); i != -1; i = nodes.NextSet(i + 1) {
		sum += capacities[i]
	}
	return sum
}

// betterSwitch reports whether b should replace a as the current best,
// under the §4.6 precedence: smallest level first, then required-over-
// non-required, then sufficiency, then tightest (or loosest) CPU fit, and
// finally -- among tied required switches -- the larger required-CPU total.
func betterSwitch(a, b switchRec, remCPUs, remNodesMin, jobMinNodes, requiredTotal int) bool {
	if a.sw.Level != b.sw.Level {
		return b.sw.Level < a.sw.Level
	}
	if a.required != b.required {
		return b.required
	}
	aSuff := a.cpus >= remCPUs && enoughNodes(a.nodeCount, remNodesMin, jobMinNodes, requiredTotal)
	bSuff := b.cpus >= remCPUs && enoughNodes(b.nodeCount, remNodesMin, jobMinNodes, requiredTotal)
	if aSuff != bSuff {
		return bSuff
	}
	if aSuff {
		if a.cpus != b.cpus {
			return b.cpus < a.cpus
		}
		if a.required && b.required && a.reqCPU != b.reqCPU {
			return b.reqCPU > a.reqCPU
		}
		return false
	}
	return b.cpus > a.cpus
}

// NewTopologyChooser returns a Func implementing the network-topology
// (switch-tree) best-fit chooser (spec §4.6) over the given switch table.
func NewTopologyChooser(switches *topo.SwitchTable) Func {
	return func(req *Request) (*Result, error) {
		return chooseTopology(switches, req)
	}
}

func chooseTopology(switches *topo.SwitchTable, req *Request) (*Result, error) {
	n := req.Candidate.Len()
	result := newResult(n)

	requiredTotal := 0
	if req.Required != nil {
		requiredTotal = req.Required.Popcount()
	}

	recs := make([]*switchRec, len(switches.Switches))
	for i, sw := range switches.Switches {
		scratch := sw.Nodes.Clone()
		scratch.And(req.Candidate)
		recs[i] = &switchRec{sw: sw, nodes: scratch, nodeCount: scratch.Popcount()}
		if req.Required != nil && scratch.Overlaps(req.Required) {
			recs[i].required = true
		}
	}

	if requiredTotal > 0 {
		covered := bitmap.New(n)
		singleCovers := false
		for _, r := range recs {
			if req.Required != nil {
				covered.Or(intersect(r.nodes, req.Required))
			}
			if r.required && containsAll(r.nodes, req.Required) {
				singleCovers = true
			}
		}
		if !covered.IsSuperset(req.Required) || !singleCovers {
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
			for _, r := range recs {
				if r.nodes.Test(i) {
					r.nodes.Clear(i)
					r.nodeCount--
					r.reqCPU += cpu
				}
			}
		}
	}

	for _, r := range recs {
		r.cpus = sumCapacities(r.nodes, req.Capacities)
	}

	var chosenSwitch *switchRec
	for _, r := range recs {
		if chosenSwitch == nil || betterSwitch(*chosenSwitch, *r, remCPUs, req.MinNodes-chosen, req.MinNodes, requiredTotal) {
			chosenSwitch = r
		}
	}
	if chosenSwitch == nil {
		return nil, ErrInsufficientResources
	}
	if requiredTotal > 0 && !chosenSwitch.required {
		return nil, ErrContiguityUnmet
	}

	leaves := make([]*switchRec, 0)
	for _, r := range recs {
		if r.sw.Level != 0 {
			continue
		}
		if !chosenSwitch.sw.Nodes.IsSuperset(r.sw.Nodes) {
			r.nodeCount = 0
			r.cpus = 0
			continue
		}
		leaves = append(leaves, r)
	}

	leafSwitchCount := 0
	for {
		if remCPUs <= 0 && chosen >= req.MinNodes {
			break
		}
		if req.MaxNodes > 0 && chosen >= req.MaxNodes {
			break
		}

		var bestLeaf *switchRec
		for _, l := range leaves {
			if l.nodeCount == 0 {
				continue
			}
			if bestLeaf == nil || betterSwitch(*bestLeaf, *l, remCPUs, req.MinNodes-chosen, req.MinNodes, requiredTotal) {
				bestLeaf = l
			}
		}
		if bestLeaf == nil {
			break
		}
		leafSwitchCount++

		progressed := false
		for bestLeaf.nodeCount > 0 {
			if remCPUs <= 0 && chosen >= req.MinNodes {
				break
			}
			if req.MaxNodes > 0 && chosen >= req.MaxNodes {
				break
			}
			best := -1
			for i := bestLeaf.nodes.First(); i != -1; i = bestLeaf.nodes.NextSet(i + 1) {
				if result.Nodes.Test(i) {
					continue
				}
				cpu := req.Capacities[i]
				if best == -1 {
					best = i
					continue
				}
				bestCPU := req.Capacities[best]
				switch {
				case cpu >= remCPUs && bestCPU >= remCPUs:
					if cpu < bestCPU {
						best = i
					}
				case cpu >= remCPUs:
					best = i
				case bestCPU >= remCPUs:
					// keep best
				default:
					if cpu > bestCPU {
						best = i
					}
				}
			}
			if best == -1 {
				break
			}
			cpu := req.Capacities[best]
			bestLeaf.nodes.Clear(best)
			bestLeaf.nodeCount--
			if !capAllows(result, req.MaxCPUsPerNode, cpu) {
				continue
			}
			result.Nodes.Set(best)
			result.CPUCounts[best] = cpu
			remCPUs -= cpu
			chosen++
			progressed = true
		}
		bestLeaf.nodeCount = 0
		bestLeaf.cpus = 0
		if !progressed {
			break
		}
	}

	if remCPUs > 0 || chosen < req.MinNodes {
		return nil, ErrInsufficientResources
	}
	result.LeafSwitchCount = leafSwitchCount
	return result, nil
}

func intersect(a, b *bitmap.Bitmap) *bitmap.Bitmap {
	c := a.Clone()
	c.And(b)
	return c
}

func containsAll(set, subset *bitmap.Bitmap) bool {
	return set.IsSuperset(subset)
}
