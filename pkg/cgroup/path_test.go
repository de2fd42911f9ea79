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

package cgroup

import "testing"

func TestNormaliseName(t *testing.T) {
	cases := map[string]string{
		"/a/b/":    "a/b",
		`a\b`:      "a/b",
		"":         "",
		"///a///":  "a",
	}
	for in, want := range cases {
		if got := normaliseName(in); got != want {
			t.Errorf("normaliseName(%q) = %q, want %q", in, got, want)
		}
	}
}

func TestParentName(t *testing.T) {
	cases := map[string]string{
		"a/b/c": "a/b",
		"a":     "",
		"":      "",
	}
	for in, want := range cases {
		if got := parentName(in); got != want {
			t.Errorf("parentName(%q) = %q, want %q", in, got, want)
		}
	}
}

func TestGroupPathUnmountedControllerIsEmpty(t *testing.T) {
	ctx, _ := fakeFS(t, "cpu")
	if err := ctx.Init(); err != nil {
		t.Fatalf("Init: %v", err)
	}
	if ctx.groupPath("a", "memory") != "" {
		t.Fatal("expected empty path for an unmounted controller")
	}
	if ctx.groupPath("", "cpu") == "" {
		t.Fatal("expected a non-empty root path for a mounted controller")
	}
}
