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

package bitmap

import "k8s.io/utils/cpuset"

// CPUSet converts a Bitmap to a k8s.io/utils/cpuset.CPUSet, the form the
// rest of the container ecosystem exchanges CPU lists in -- used only for
// CLI/debug output, never on the selection core's hot path, the way
// containers-nri-plugins' pkg/utils/cpuset wraps the same library for its
// own debug dumps.
func (b *Bitmap) CPUSet() cpuset.CPUSet {
	return cpuset.New(b.Members()...)
}

// FromCPUSet builds a Bitmap of size n from a CPUSet; members outside
// [0, n) are silently dropped, mirroring Set's out-of-range no-op.
func FromCPUSet(cs cpuset.CPUSet, n int) *Bitmap {
	b := New(n)
	for _, cpu := range cs.List() {
		b.Set(cpu)
	}
	return b
}
