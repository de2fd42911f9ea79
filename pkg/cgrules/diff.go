// Copyright 2021 Intel Corporation. All Rights Reserved.
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

package cgrules

import (
	"encoding/json"

	jsonpatch "github.com/evanphx/json-patch"
)

// ruleDoc is the JSON-marshalable mirror of a rule, used only to
// compute a readable diff between rule-list generations on reload
// (§4.K's supplemental reload-diffing feature); it is not the wire
// format the parser reads.
type ruleDoc struct {
	Subject     string   `json:"subject"`
	Controllers []string `json:"controllers"`
	Destination string   `json:"destination"`
}

func toDocs(list List) []ruleDoc {
	docs := make([]ruleDoc, 0, len(list))
	for _, r := range list {
		docs = append(docs, ruleDoc{
			Subject:     r.Subject.Name,
			Controllers: r.Controllers.List(),
			Destination: r.Destination,
		})
	}
	return docs
}

// diffRuleLists returns a JSON merge patch from old to new, or "" if old
// is empty (first load, nothing to diff against) or they are identical.
// The rules sit in a "rules" array, which a merge patch replaces as a
// whole, so any change yields the complete new rule array.
func diffRuleLists(old, new List) string {
	if len(old) == 0 {
		return ""
	}
	oldJSON, err := json.Marshal(map[string][]ruleDoc{"rules": toDocs(old)})
	if err != nil {
		return ""
	}
	newJSON, err := json.Marshal(map[string][]ruleDoc{"rules": toDocs(new)})
	if err != nil {
		return ""
	}
	patch, err := jsonpatch.CreateMergePatch(oldJSON, newJSON)
	if err != nil {
		return ""
	}
	if string(patch) == "{}" {
		return ""
	}
	return string(patch)
}
