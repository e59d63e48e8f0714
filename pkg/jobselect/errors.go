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

// Package jobselect is the priority-layered placement driver: the
// top-level per-job entry point that orchestrates the node-state filter
// and the chooser/knapsack pair across up to five increasingly relaxed
// "free cores" baselines. It plays the role the teacher's static policy
// gives Start/AddContainer/allocateCPUs -- a call-frame owning scratch
// state across one admission decision -- generalized from one exclusive
// CPU pool to partitioned, priority-ordered sharing rows.
package jobselect

import "github.com/pkg/errors"

// ErrInsufficientResources means every pass failed to satisfy the job's
// CPU/node minima against its relaxed free-cores baseline.
var ErrInsufficientResources = errors.New("insufficient resources")

// ErrNodeCountMismatch means the caller's cluster node count disagrees
// with the length of the node slice handed to JobTest. Fatal, logged.
var ErrNodeCountMismatch = errors.New("cluster node count mismatch")

// ErrTopologyBestSwitch means no single switch covered demand within the
// job's switch-count SLA; the job may be deferred and retried later.
var ErrTopologyBestSwitch = errors.New("no switch satisfies requested switch count within wait budget")

func policyError(format string, args ...interface{}) error {
	return errors.Errorf(format, args...)
}
