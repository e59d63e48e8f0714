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

package gres

import (
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/intel/cons-tres-core/pkg/bitmap"
)

func TestNoopLeavesCoreMapUntouched(t *testing.T) {
	cm := bitmap.FromBits(4, 0, 1, 2, 3)
	var c Collaborator = Noop{}
	c.CoreFilter("gpu:1", "", false, cm, 0, 4, "linux01")
	require.Equal(t, 4, cm.Popcount())
	require.Equal(t, NoVal, c.JobTest("gpu:1", "", false, cm, 0, 4, "job1", "linux01"))
}

// cappedFake caps JobTest at a fixed core count and never touches coreMap;
// it stands in for a GRES plugin in this package's tests.
type cappedFake struct {
	cap int
}

var _ Collaborator = cappedFake{}

func (c cappedFake) CoreFilter(_, _ string, _ bool, _ *bitmap.Bitmap, _, _ int, _ string) {}

func (c cappedFake) JobTest(_, _ string, _ bool, _ *bitmap.Bitmap, _, _ int, _, _ string) int {
	return c.cap
}

func TestCappedFakeReturnsConfiguredLimit(t *testing.T) {
	c := cappedFake{cap: 2}
	require.Equal(t, 2, c.JobTest("", "", false, nil, 0, 0, "job1", "linux01"))
}
