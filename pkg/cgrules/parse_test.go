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
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/cgroupkit/cgroupkit/pkg/cgroup"
)

func writeConf(t *testing.T, body string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "cgrules.conf")
	if err := os.WriteFile(path, []byte(body), 0644); err != nil {
		t.Fatal(err)
	}
	return path
}

func allControllers() []string { return []string{"cpu", "memory"} }

func TestParseCacheWildcardAndContinuation(t *testing.T) {
	conf := writeConf(t, "* cpu,memory students/default\n\t% memory students/default/mem\n")
	p := NewParser(allControllers)
	list, err := p.ParseCache(conf)
	if err != nil {
		t.Fatalf("ParseCache: %v", err)
	}
	if len(list) != 1 {
		t.Fatalf("expected 1 top-level rule, got %d", len(list))
	}
	r := list[0]
	if r.Subject.Kind != SubjectWildcard {
		t.Fatalf("expected wildcard subject, got %v", r.Subject.Kind)
	}
	if !r.Controllers.HasAll("cpu", "memory") {
		t.Fatalf("expected cpu,memory controllers, got %v", r.Controllers.List())
	}
	if len(r.Children) != 1 || r.Children[0].Destination != "students/default/mem" {
		t.Fatalf("expected one continuation child, got %+v", r.Children)
	}
}

func TestParseCacheExpandsStarControllers(t *testing.T) {
	conf := writeConf(t, "* * students/default\n")
	p := NewParser(allControllers)
	list, err := p.ParseCache(conf)
	if err != nil {
		t.Fatalf("ParseCache: %v", err)
	}
	if !list[0].Controllers.HasAll("cpu", "memory") || list[0].Controllers.Len() != 2 {
		t.Fatalf("expected expanded controller set, got %v", list[0].Controllers.List())
	}
}

func TestParseCacheRejectsTooManyControllers(t *testing.T) {
	many := "c1,c2,c3,c4,c5,c6,c7,c8,c9"
	conf := writeConf(t, "* "+many+" students/default\n")
	p := NewParser(allControllers)
	_, err := p.ParseCache(conf)
	if err == nil {
		t.Fatal("expected a ParseFailed error")
	}
	e, ok := err.(*cgroup.Error)
	if !ok || e.Kind != cgroup.ParseFailed {
		t.Fatalf("expected cgroup.ParseFailed, got %v", err)
	}
}

func TestParseCacheMalformedLine(t *testing.T) {
	conf := writeConf(t, "* cpu\n")
	p := NewParser(allControllers)
	_, err := p.ParseCache(conf)
	if err == nil {
		t.Fatal("expected a ParseFailed error for a 2-field line")
	}
}

func TestParseCacheSkipsUnresolvableSubjectAndItsContinuations(t *testing.T) {
	conf := writeConf(t, strings.Join([]string{
		"no-such-user-xyz cpu students/ghost",
		"\t% memory students/ghost/mem",
		"* cpu students/default",
	}, "\n") + "\n")
	p := NewParser(allControllers)
	list, err := p.ParseCache(conf)
	if err != nil {
		t.Fatalf("ParseCache: %v", err)
	}
	if len(list) != 1 || list[0].Destination != "students/default" {
		t.Fatalf("expected the unresolvable rule and its continuation skipped, got %+v", list)
	}
}

func TestParseLookupStopsAtFirstMatch(t *testing.T) {
	conf := writeConf(t, strings.Join([]string{
		"* cpu students/default",
		"\t% memory students/default/mem",
		"* memory students/never-reached",
	}, "\n") + "\n")
	p := NewParser(allControllers)
	matched, err := p.ParseLookup(conf, 1000, 1000)
	if err != nil {
		t.Fatalf("ParseLookup: %v", err)
	}
	if matched == nil || matched.Destination != "students/default" {
		t.Fatalf("expected first wildcard rule matched, got %+v", matched)
	}
	if len(matched.Children) != 1 || matched.Children[0].Destination != "students/default/mem" {
		t.Fatalf("expected continuation consumed into Children, got %+v", matched.Children)
	}
}

func TestParseLookupNoMatchReturnsNil(t *testing.T) {
	conf := writeConf(t, "no-such-user-xyz cpu students/ghost\n")
	p := NewParser(allControllers)
	matched, err := p.ParseLookup(conf, 1000, 1000)
	if err != nil {
		t.Fatalf("ParseLookup: %v", err)
	}
	if matched != nil {
		t.Fatalf("expected no match, got %+v", matched)
	}
}

func TestParseGroupSubjectViaFakeGroupFile(t *testing.T) {
	groupFile := filepath.Join(t.TempDir(), "group")
	if err := os.WriteFile(groupFile, []byte("students:x:5000:alice,bob\n"), 0644); err != nil {
		t.Fatal(err)
	}
	conf := writeConf(t, "@students cpu students/group\n")
	p := NewParser(allControllers)
	p.GroupFilePath = groupFile

	list, err := p.ParseCache(conf)
	if err != nil {
		t.Fatalf("ParseCache: %v", err)
	}
	if len(list) != 1 || list[0].Subject.Kind != SubjectGroup || list[0].Subject.GID != 5000 {
		t.Fatalf("expected resolved group subject, got %+v", list)
	}
	if !list[0].Subject.Matches(0, 5000, nil) {
		t.Fatal("expected gid match against the resolved group")
	}
}

func TestRoundTripPrintThenReparse(t *testing.T) {
	conf := writeConf(t, "* cpu,memory students/default\n\t% memory students/default/mem\n")
	p := NewParser(allControllers)
	list, err := p.ParseCache(conf)
	if err != nil {
		t.Fatalf("ParseCache: %v", err)
	}

	text := PrintRulesConfig(list)
	reparsed := writeConf(t, text)
	list2, err := p.ParseCache(reparsed)
	if err != nil {
		t.Fatalf("ParseCache (reparsed): %v", err)
	}

	if len(list) != len(list2) {
		t.Fatalf("round trip changed rule count: %d vs %d", len(list), len(list2))
	}
	for i := range list {
		if list[i].Destination != list2[i].Destination {
			t.Fatalf("destination mismatch at %d: %q vs %q", i, list[i].Destination, list2[i].Destination)
		}
		if !list[i].Controllers.Equal(list2[i].Controllers) {
			t.Fatalf("controller set mismatch at %d: %v vs %v", i, list[i].Controllers.List(), list2[i].Controllers.List())
		}
		if len(list[i].Children) != len(list2[i].Children) {
			t.Fatalf("children count mismatch at %d", i)
		}
	}
}
