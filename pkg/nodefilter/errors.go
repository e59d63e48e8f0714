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

// Package nodefilter drops nodes that fail exclusivity, sharing, memory,
// or GRES preconditions before a chooser ever sees them. It mirrors the
// constraint checks the teacher's static policy runs in checkConstraints
// and validateState before attempting CPU allocation, generalized from a
// single exclusive pool to an arbitrary node-request class.
package nodefilter

import "github.com/pkg/errors"

// ErrRequiredNodeUnusable is returned when a required node fails any of
// the state/memory/GRES preconditions; the whole selection call aborts.
var ErrRequiredNodeUnusable = errors.New("required node unusable")
