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

package config

import (
	"encoding/json"

	jsonpatch "github.com/evanphx/json-patch"
	"github.com/pkg/errors"
)

// ApplyMergePatch updates the active options from an RFC 7386 JSON merge
// patch (e.g. to flip the default chooser policy). Fields omitted from the
// patch are left untouched. cmd/coreselectd does not call it: it runs one
// selection with the options it loaded at start-up and exits.
func ApplyMergePatch(patch []byte) error {
	current, err := json.Marshal(opt)
	if err != nil {
		return errors.Wrap(err, "failed to marshal current options")
	}

	merged, err := jsonpatch.MergePatch(current, patch)
	if err != nil {
		return errors.Wrap(err, "failed to apply JSON merge patch")
	}

	var next Options
	if err := json.Unmarshal(merged, &next); err != nil {
		return errors.Wrap(err, "failed to unmarshal patched options")
	}

	opt = next
	return nil
}
