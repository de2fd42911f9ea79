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

// Package-level convenience wrappers around Default(), kept for API
// compatibility with libcgroup's process-wide singleton (spec.md §9:
// "the singleton variant can be retained as a thin convenience layer").

// Init discovers mounted controllers using the default Context.
func Init() error { return defaultCtx.Init() }

// Create materialises g using the default Context.
func Create(g *Cgroup, ignoreOwnership bool) error { return defaultCtx.Create(g, ignoreOwnership) }

// Modify rewrites g's attributes using the default Context.
func Modify(g *Cgroup) error { return defaultCtx.Modify(g) }

// Delete removes g using the default Context.
func Delete(g *Cgroup, ignoreMigration bool) error { return defaultCtx.Delete(g, ignoreMigration) }

// Fetch populates g from disk using the default Context.
func Fetch(g *Cgroup) error { return defaultCtx.Fetch(g) }

// CopyFromParent copies g's parent's attributes and creates g using the
// default Context.
func CopyFromParent(g *Cgroup, ignoreOwnership bool) error {
	return defaultCtx.CopyFromParent(g, ignoreOwnership)
}

// Attach attaches tid to g (or the root cgroup if g is nil) using the
// default Context.
func Attach(g *Cgroup, tid int) error { return defaultCtx.Attach(g, tid) }
