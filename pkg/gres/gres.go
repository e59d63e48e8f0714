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

// Package gres defines the boundary to the generic-resource (GRES) plugin
// collaborator -- GPUs, NICs, and similar devices tracked outside the
// selection core. Only the call surface lives here; plugin internals are
// out of scope (spec non-goal) and are somebody else's package.
package gres

import "github.com/intel/cons-tres-core/pkg/bitmap"

// NoVal is the sentinel JobTest returns for "no limit imposed by GRES".
const NoVal = -1

// Collaborator is the interface the per-node allocator and node-state
// filter call into; a real implementation lives in a GRES plugin, never
// in this module.
type Collaborator interface {
	// CoreFilter may clear bits in coreMap over [coreBegin, coreEnd) that
	// this node's GRES devices cannot back (e.g. cores not local to the
	// NUMA node owning a requested GPU). testOnly requests a dry run that
	// must not mutate coreMap.
	CoreFilter(jobGRES, nodeGRES string, testOnly bool, coreMap *bitmap.Bitmap, coreBegin, coreEnd int, nodeName string)

	// JobTest returns the maximum number of cores this node's GRES state
	// can back for the job, or NoVal if GRES imposes no limit. coreMap may
	// be nil when the caller only wants the upper bound, not a core-level
	// filter; jobID and nodeName are for logging/test correlation only.
	JobTest(jobGRES, nodeGRES string, testOnly bool, coreMap *bitmap.Bitmap, coreBegin, coreEnd int, jobID, nodeName string) int
}

// Noop is a Collaborator that imposes no constraint: CoreFilter never
// clears a bit and JobTest always returns NoVal. It is the default when a
// job or node carries no GRES descriptor, and it is useful as a test double.
type Noop struct{}

var _ Collaborator = Noop{}

// CoreFilter implements Collaborator; it is a no-op.
func (Noop) CoreFilter(_, _ string, _ bool, _ *bitmap.Bitmap, _, _ int, _ string) {}

// JobTest implements Collaborator; it always returns NoVal.
func (Noop) JobTest(_, _ string, _ bool, _ *bitmap.Bitmap, _, _ int, _, _ string) int {
	return NoVal
}
