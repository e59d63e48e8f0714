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

// LLN is the least-loaded-node chooser (spec §4.5): after pre-seating
// required nodes exactly as Consecutive does, it greedily takes the
// candidate with the highest remaining CPU capacity until the job's
// targets are met.
func LLN(req *Request) (*Result, error) {
	n := req.Candidate.Len()
	result := newResult(n)

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

	prevMax := -1
	for remCPUs > 0 || chosen < req.MinNodes {
		if req.MaxNodes > 0 && chosen >= req.MaxNodes {
			break
		}

		best := -1
		bestCPU := -1
		for i := req.Candidate.First(); i != -1; i = req.Candidate.NextSet(i + 1) {
			cpu := req.Capacities[i]
			if cpu > bestCPU {
				best = i
				bestCPU = cpu
			}
			if prevMax >= 0 && bestCPU == prevMax {
				break
			}
		}

		if best == -1 || bestCPU <= 0 {
			break
		}
		if !capAllows(result, req.MaxCPUsPerNode, bestCPU) {
			req.Candidate.Clear(best)
			continue
		}

		result.Nodes.Set(best)
		result.CPUCounts[best] = bestCPU
		req.Candidate.Clear(best)
		remCPUs -= bestCPU
		chosen++
		prevMax = bestCPU
	}

	if remCPUs > 0 || chosen < req.MinNodes {
		return nil, ErrInsufficientResources
	}
	return result, nil
}
