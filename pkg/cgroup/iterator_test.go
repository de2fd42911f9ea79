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

import (
	"os"
	"path/filepath"
	"testing"
)

func TestTreeWalkerVisitsAllEntriesAndStopsAtEOF(t *testing.T) {
	ctx, root := fakeFS(t, "cpu")
	if err := ctx.Init(); err != nil {
		t.Fatalf("Init: %v", err)
	}

	base := filepath.Join(root, "sys", "fs", "cgroup", "cpu", "students")
	if err := os.MkdirAll(filepath.Join(base, "alice"), 0755); err != nil {
		t.Fatal(err)
	}
	if err := os.MkdirAll(filepath.Join(base, "bob"), 0755); err != nil {
		t.Fatal(err)
	}
	if err := os.WriteFile(filepath.Join(base, "notes.txt"), []byte("x"), 0644); err != nil {
		t.Fatal(err)
	}

	w, err := ctx.BeginTreeWalk("cpu", "students", 0)
	if err != nil {
		t.Fatalf("BeginTreeWalk: %v", err)
	}
	defer w.End()

	names := map[string]EntryKind{}
	for {
		e, err := w.Next()
		if IsEOF(err) {
			break
		}
		if err != nil {
			t.Fatalf("Next: %v", err)
		}
		names[e.Name] = e.Kind
	}

	if names["alice"] != KindDir || names["bob"] != KindDir || names["notes.txt"] != KindFile {
		t.Fatalf("unexpected walk results: %+v", names)
	}
}

func TestTreeWalkerMaxDepthStopsDescentButNotSiblings(t *testing.T) {
	ctx, root := fakeFS(t, "cpu")
	if err := ctx.Init(); err != nil {
		t.Fatalf("Init: %v", err)
	}

	base := filepath.Join(root, "sys", "fs", "cgroup", "cpu", "students")
	if err := os.MkdirAll(filepath.Join(base, "alice", "nested"), 0755); err != nil {
		t.Fatal(err)
	}
	if err := os.MkdirAll(filepath.Join(base, "bob"), 0755); err != nil {
		t.Fatal(err)
	}

	w, err := ctx.BeginTreeWalk("cpu", "students", 1)
	if err != nil {
		t.Fatalf("BeginTreeWalk: %v", err)
	}
	defer w.End()

	var sawNested bool
	var sawBob bool
	for {
		e, err := w.Next()
		if IsEOF(err) {
			break
		}
		if err != nil {
			t.Fatalf("Next: %v", err)
		}
		if e.Name == "nested" {
			sawNested = true
		}
		if e.Name == "bob" {
			sawBob = true
		}
	}
	if sawNested {
		t.Fatal("expected depth-2 entry to be excluded by maxDepth=1")
	}
	if !sawBob {
		t.Fatal("expected the depth-1 sibling to still be reachable")
	}
}

func TestTreeWalkerYieldsErrorOnUnreadableDir(t *testing.T) {
	ctx, _ := fakeFS(t, "cpu")
	if err := ctx.Init(); err != nil {
		t.Fatalf("Init: %v", err)
	}

	w, err := ctx.BeginTreeWalk("cpu", "nonexistent-base", 0)
	if err != nil {
		t.Fatalf("BeginTreeWalk itself should not fail for a missing base: %v", err)
	}
	defer w.End()

	if _, err := w.Next(); err == nil {
		t.Fatal("expected Next to surface the directory-open failure as an error, not silently skip it")
	} else if IsEOF(err) {
		t.Fatal("expected a real error, not EOF, for an unreadable root")
	}
}

func TestTasksReaderReadsAndEOFs(t *testing.T) {
	ctx, root := fakeFS(t, "cpu")
	if err := ctx.Init(); err != nil {
		t.Fatalf("Init: %v", err)
	}
	dir := filepath.Join(root, "sys", "fs", "cgroup", "cpu", "students", "alice")
	if err := os.MkdirAll(dir, 0755); err != nil {
		t.Fatal(err)
	}
	if err := os.WriteFile(filepath.Join(dir, "tasks"), []byte("100\n200\n"), 0644); err != nil {
		t.Fatal(err)
	}

	r, err := ctx.BeginTasks("cpu", "students/alice")
	if err != nil {
		t.Fatalf("BeginTasks: %v", err)
	}
	defer r.End()

	var got []int
	for {
		pid, err := r.Next()
		if IsEOF(err) {
			break
		}
		if err != nil {
			t.Fatalf("Next: %v", err)
		}
		got = append(got, pid)
	}
	if len(got) != 2 || got[0] != 100 || got[1] != 200 {
		t.Fatalf("unexpected pids: %v", got)
	}
}

func TestStatsReaderReadsPairs(t *testing.T) {
	ctx, root := fakeFS(t, "memory")
	if err := ctx.Init(); err != nil {
		t.Fatalf("Init: %v", err)
	}
	dir := filepath.Join(root, "sys", "fs", "cgroup", "memory", "students", "alice")
	if err := os.MkdirAll(dir, 0755); err != nil {
		t.Fatal(err)
	}
	if err := os.WriteFile(filepath.Join(dir, "memory.stat"), []byte("cache 1024\nrss 2048\n"), 0644); err != nil {
		t.Fatal(err)
	}

	r, err := ctx.BeginStats("memory", "students/alice")
	if err != nil {
		t.Fatalf("BeginStats: %v", err)
	}
	defer r.End()

	pair, err := r.Next()
	if err != nil || pair.Name != "cache" || pair.Value != "1024" {
		t.Fatalf("unexpected first pair: %+v, err=%v", pair, err)
	}
	pair, err = r.Next()
	if err != nil || pair.Name != "rss" || pair.Value != "2048" {
		t.Fatalf("unexpected second pair: %+v, err=%v", pair, err)
	}
	if _, err := r.Next(); !IsEOF(err) {
		t.Fatalf("expected EOF, got %v", err)
	}
}
