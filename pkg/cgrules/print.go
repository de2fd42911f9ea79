// Copyright 2020 Intel Corporation. All Rights Reserved.
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
	"fmt"
	"strings"

	"sigs.k8s.io/yaml"
)

// PrintRulesConfig renders list back to cgrules.conf text: this is the
// canonical format the parser re-reads, and is the format spec.md
// §8's round-trip property ("emitting a rule list via
// print_rules_config then reparsing yields the same rule list") is
// defined against.
func PrintRulesConfig(list List) string {
	var b strings.Builder
	for _, r := range list {
		writeRuleLine(&b, subjectText(r.Subject), r)
		for _, child := range r.Children {
			writeRuleLine(&b, "%", child)
		}
	}
	return b.String()
}

func writeRuleLine(b *strings.Builder, subjectTok string, r *Rule) {
	fmt.Fprintf(b, "%s\t%s\t%s\n", subjectTok, strings.Join(r.Controllers.List(), ","), r.Destination)
}

func subjectText(s Subject) string {
	switch s.Kind {
	case SubjectWildcard:
		return "*"
	case SubjectGroup:
		return "@" + s.Name
	default:
		return s.Name
	}
}

// PrintRulesYAML renders list as a YAML document for machine
// consumption (a debug/audit mirror, not the format the parser reads).
func PrintRulesYAML(list List) (string, error) {
	docs := toDocs(list)
	out, err := yaml.Marshal(docs)
	if err != nil {
		return "", err
	}
	return string(out), nil
}
