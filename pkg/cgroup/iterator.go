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
	"bufio"
	"context"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"golang.org/x/time/rate"
)

// EntryKind classifies one tree-walk entry.
type EntryKind int

const (
	KindDir EntryKind = iota
	KindFile
	KindOther
)

// TreeEntry is one node yielded by the TreeWalker.
type TreeEntry struct {
	Name       string
	ParentName string
	FullPath   string
	Depth      int
	Kind       EntryKind
}

type pendingDir struct {
	path  string
	depth int
}

// TreeWalker performs a depth-bounded, symlink-following walk rooted at
// {mount}/{baseGroup}, per spec.md §4.H. Entries deeper than
// baseLevel+maxDepth are skipped but siblings remain reachable. It is
// throttled by a rate.Limiter so a deep walk doesn't hammer the VFS
// under load (spec.md §5).
type TreeWalker struct {
	maxDepth int
	queue    []pendingDir
	cursor   int
	entries  []os.DirEntry
	curPath  string
	curDepth int
	limiter  *rate.Limiter
}

// BeginTreeWalk starts a tree walk. maxDepth <= 0 means unbounded.
func (c *Context) BeginTreeWalk(controller, baseGroup string, maxDepth int) (*TreeWalker, error) {
	if err := c.requireInit(); err != nil {
		return nil, err
	}
	root := strings.TrimSuffix(c.groupPath(baseGroup, controller), "/")
	if root == "" {
		return nil, newError("BeginTreeWalk", SubsystemNotMounted, nil)
	}
	w := &TreeWalker{
		maxDepth: maxDepth,
		limiter:  rate.NewLimiter(rate.Limit(500), 50),
		queue:    []pendingDir{{path: root, depth: 0}},
	}
	return w, nil
}

// Next returns the next tree entry, or an EOF *Error when the walk is
// exhausted. Failure to open a directory is yielded as an error rather
// than silently skipped (spec.md §9's Design Notes).
func (w *TreeWalker) Next() (*TreeEntry, error) {
	for {
		if w.cursor < len(w.entries) {
			e := w.entries[w.cursor]
			w.cursor++
			return w.emit(e)
		}
		if len(w.queue) == 0 {
			return nil, newError("TreeWalker.Next", EOF, nil)
		}

		next := w.queue[0]
		w.queue = w.queue[1:]

		_ = w.limiter.Wait(context.Background()) //nolint:errcheck // best-effort throttle, never fatal

		entries, err := os.ReadDir(next.path)
		if err != nil {
			w.curPath, w.curDepth = next.path, next.depth
			w.entries, w.cursor = nil, 0
			return nil, newError("TreeWalker.Next", Other, err)
		}
		w.curPath, w.curDepth = next.path, next.depth
		w.entries, w.cursor = entries, 0
	}
}

func (w *TreeWalker) emit(e os.DirEntry) (*TreeEntry, error) {
	full := filepath.Join(w.curPath, e.Name())
	depth := w.curDepth + 1

	kind := KindOther
	info, err := os.Stat(full) // logical (symlink-following)
	switch {
	case err != nil:
		kind = KindOther
	case info.IsDir():
		kind = KindDir
		if w.maxDepth <= 0 || depth < w.maxDepth {
			w.queue = append(w.queue, pendingDir{path: full, depth: depth})
		}
	case info.Mode().IsRegular():
		kind = KindFile
	}

	return &TreeEntry{
		Name:       e.Name(),
		ParentName: w.curPath,
		FullPath:   full,
		Depth:      depth,
		Kind:       kind,
	}, nil
}

// End releases the walker's resources (a no-op beyond dropping state,
// since it never holds open file descriptors between Next calls).
func (w *TreeWalker) End() {
	w.queue, w.entries = nil, nil
}

// TasksReader yields pids from a group's tasks file, one per Next call.
type TasksReader struct {
	f  *os.File
	sc *bufio.Scanner
}

// BeginTasks opens {mount}/{group}/tasks for streaming.
func (c *Context) BeginTasks(controller, group string) (*TasksReader, error) {
	if err := c.requireInit(); err != nil {
		return nil, err
	}
	path := c.groupPath(group, controller)
	if path == "" {
		return nil, newError("BeginTasks", SubsystemNotMounted, nil)
	}
	f, err := os.Open(path + "tasks")
	if err != nil {
		return nil, newError("BeginTasks", DoesNotExist, err)
	}
	return &TasksReader{f: f, sc: bufio.NewScanner(f)}, nil
}

// Next returns the next pid, or EOF.
func (r *TasksReader) Next() (int, error) {
	for r.sc.Scan() {
		line := strings.TrimSpace(r.sc.Text())
		if line == "" {
			continue
		}
		pid, err := strconv.Atoi(line)
		if err != nil {
			return 0, newError("TasksReader.Next", Other, err)
		}
		return pid, nil
	}
	if err := r.sc.Err(); err != nil {
		return 0, newError("TasksReader.Next", Other, err)
	}
	return 0, newError("TasksReader.Next", EOF, nil)
}

// End closes the underlying tasks file.
func (r *TasksReader) End() {
	r.f.Close()
}

// StatPair is one (name, value) entry from a *.stat file.
type StatPair struct {
	Name  string
	Value string
}

// StatsReader streams whitespace-separated (name, value) pairs from
// {mount}/{group}/{controller}.stat, one line per Next call.
type StatsReader struct {
	f  *os.File
	sc *bufio.Scanner
}

// BeginStats opens the controller's .stat file for group.
func (c *Context) BeginStats(controller, group string) (*StatsReader, error) {
	if err := c.requireInit(); err != nil {
		return nil, err
	}
	path := c.groupPath(group, controller)
	if path == "" {
		return nil, newError("BeginStats", SubsystemNotMounted, nil)
	}
	f, err := os.Open(path + controller + ".stat")
	if err != nil {
		return nil, newError("BeginStats", ValueDoesNotExist, err)
	}
	return &StatsReader{f: f, sc: bufio.NewScanner(f)}, nil
}

// Next returns the next (name, value) pair, or EOF.
func (r *StatsReader) Next() (*StatPair, error) {
	for r.sc.Scan() {
		fields := strings.Fields(r.sc.Text())
		if len(fields) < 2 {
			continue
		}
		return &StatPair{Name: fields[0], Value: fields[1]}, nil
	}
	if err := r.sc.Err(); err != nil {
		return nil, newError("StatsReader.Next", Other, err)
	}
	return nil, newError("StatsReader.Next", EOF, nil)
}

// End closes the underlying stat file.
func (r *StatsReader) End() {
	r.f.Close()
}
