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
	"sync"

	"github.com/cgroupkit/cgroupkit/pkg/cgroup"
	"github.com/cgroupkit/cgroupkit/pkg/log"
)

var enginelog = log.NewLogger("cgrules.engine")

// ApplyFlags mirrors the C library's change_cgroup flags bitset.
type ApplyFlags int

const (
	// UseCache resolves against the cached rule list instead of
	// re-reading cgrules.conf.
	UseCache ApplyFlags = 1 << iota
)

// Engine is the process-wide (or test-scoped) rule list, guarded by its
// own RWMutex independent of pkg/cgroup's mount-table lock — spec.md §5
// notes the two locks are never held simultaneously, so there is no
// ordering hazard.
type Engine struct {
	mu     sync.RWMutex
	cache  List
	parser *Parser
	path   string
}

// NewEngine builds an Engine reading path (default /etc/cgrules.conf)
// and expanding "*" controller lists against cgCtx's mounted
// controllers.
func NewEngine(cgCtx *cgroup.Context, path string) *Engine {
	if path == "" {
		path = DefaultConfigPath
	}
	return &Engine{
		parser: NewParser(cgCtx.Controllers),
		path:   path,
	}
}

// Reload re-parses the whole file into the cache (spec.md §4.G cache
// mode), replacing any previous list and logging a diff of what
// changed (§4.K's supplemental reload-diffing feature).
func (e *Engine) Reload() error {
	newList, err := e.parser.ParseCache(e.path)
	if err != nil {
		return err
	}

	e.mu.Lock()
	old := e.cache
	e.cache = newList
	e.mu.Unlock()

	if d := diffRuleLists(old, newList); d != "" {
		enginelog.Info("cgrules.conf reload changed rules: %s", d)
	}
	return nil
}

// Resolve matches (uid, gid) against the cached list, per spec.md
// §4.G's cache-mode matcher.
func (e *Engine) Resolve(uid, gid int) *Rule {
	e.mu.RLock()
	defer e.mu.RUnlock()
	return e.cache.Resolve(uid, gid, usernameForUID)
}

// Print renders the cached rule list back to cgrules.conf text,
// spec.md §8's "emitting a rule list" round-trip property.
func (e *Engine) Print() string {
	e.mu.RLock()
	defer e.mu.RUnlock()
	return PrintRulesConfig(e.cache)
}

// ChangeCgroup implements spec.md §4.G's change_cgroup: resolve
// (uid, gid) to a rule (from the cache if flags has UseCache, else by
// a fresh lookup-mode parse), and attach pid to every matched rule and
// its continuations.
func (e *Engine) ChangeCgroup(cgCtx *cgroup.Context, uid, gid, pid int, flags ApplyFlags) error {
	var matched *Rule
	var err error

	if flags&UseCache != 0 {
		matched = e.Resolve(uid, gid)
	} else {
		matched, err = e.parser.ParseLookup(e.path, uid, gid)
		if err != nil {
			return err
		}
	}

	if matched == nil {
		return nil // no match: a no-op, per spec.md §4.G.
	}

	if err := applyRule(cgCtx, matched, pid); err != nil {
		return err
	}
	for _, child := range matched.Children {
		if err := applyRule(cgCtx, child, pid); err != nil {
			return err
		}
	}
	return nil
}

// applyRule builds a transient cgroup for rule.Destination, declares
// every one of rule's controllers on it, and attaches pid.
func applyRule(cgCtx *cgroup.Context, rule *Rule, pid int) error {
	g := cgroup.New(rule.Destination)
	for _, name := range rule.Controllers.List() {
		g.AddController(name)
	}
	defer g.Free()
	return cgCtx.Attach(g, pid)
}
