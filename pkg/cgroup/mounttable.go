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
	"strings"
	"sync"
	"time"

	"k8s.io/apimachinery/pkg/util/wait"

	"github.com/cgroupkit/cgroupkit/pkg/log"
)

// MaxControllers bounds the mount table, mirroring CG_CONTROLLER_MAX.
const MaxControllers = 32

const (
	procCgroups = "/proc/cgroups"
	procMounts  = "/proc/mounts"
)

var mountlog = log.NewLogger("cgroup.mount")

// mountEntry is one (controller, mountpoint) pair.
type mountEntry struct {
	controller string
	mountPoint string
}

// Context is the process-wide (or test-scoped) handle onto the mount
// table. A package-level default Context backs the free functions for
// API compatibility with the singleton-style C library; callers that
// want isolation (tests, multiple roots) construct their own.
type Context struct {
	mu          sync.RWMutex
	mounts      []mountEntry
	initialised bool

	// CgroupsPath and MountsPath let tests point discovery at a fake
	// /proc without touching the real one.
	CgroupsPath string
	MountsPath  string
}

// NewContext returns an uninitialised Context reading the real /proc.
func NewContext() *Context {
	return &Context{
		CgroupsPath: procCgroups,
		MountsPath:  procMounts,
	}
}

var defaultCtx = NewContext()

// Default returns the package-wide default Context.
func Default() *Context { return defaultCtx }

// Init discovers mounted controllers. It intersects the kernel-registered
// controllers in /proc/cgroups with the cgroup-typed entries of /proc/mounts,
// per spec.md §4.A. The first mount found for a controller wins; later
// duplicates are ignored.
func (c *Context) Init() error {
	c.mu.Lock()
	defer c.mu.Unlock()

	registered, err := c.readRegisteredControllers()
	if err != nil {
		return newError("Init", Other, err)
	}

	mounts, err := c.readCgroupMounts()
	if err != nil {
		return newError("Init", Other, err)
	}

	var table []mountEntry
	seen := map[string]bool{}
	for _, ctrl := range registered {
		mp, ok := mounts[ctrl]
		if !ok || seen[ctrl] {
			continue
		}
		seen[ctrl] = true
		table = append(table, mountEntry{controller: ctrl, mountPoint: mp})
		if len(table) >= MaxControllers {
			break
		}
	}

	if len(table) == 0 {
		return newError("Init", NotMounted, nil)
	}

	c.mounts = table
	c.initialised = true
	mountlog.Info("discovered %d mounted controllers", len(table))
	return nil
}

// InitWithRetry retries Init with exponential backoff, for callers that
// race early boot mounting of the cgroup hierarchy. It gives up and
// returns the last error once ctx is done.
func (c *Context) InitWithRetry(ctx context.Context, initial, max time.Duration, steps int) error {
	backoff := wait.Backoff{Duration: initial, Factor: 2, Steps: steps, Cap: max}
	var last error
	err := wait.ExponentialBackoff(backoff, func() (bool, error) {
		last = c.Init()
		if last == nil {
			return true, nil
		}
		select {
		case <-ctx.Done():
			return false, ctx.Err()
		default:
		}
		return false, nil
	})
	if err != nil && last != nil {
		return last
	}
	return err
}

func (c *Context) readRegisteredControllers() ([]string, error) {
	path := c.CgroupsPath
	if path == "" {
		path = procCgroups
	}
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()

	var names []string
	sc := bufio.NewScanner(f)
	first := true
	for sc.Scan() {
		if first {
			first = false
			continue // header line
		}
		line := strings.TrimSpace(sc.Text())
		if line == "" {
			continue
		}
		fields := strings.Fields(line)
		if len(fields) == 0 {
			continue
		}
		names = append(names, fields[0])
	}
	return names, sc.Err()
}

// readCgroupMounts scans /proc/mounts for type=cgroup entries, binding
// each to the controller names listed in its mount options.
func (c *Context) readCgroupMounts() (map[string]string, error) {
	path := c.MountsPath
	if path == "" {
		path = procMounts
	}
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()

	mounts := map[string]string{}
	sc := bufio.NewScanner(f)
	for sc.Scan() {
		fields := strings.Fields(sc.Text())
		if len(fields) < 4 {
			continue
		}
		mountPoint, fstype, opts := fields[1], fields[2], fields[3]
		if fstype != "cgroup" {
			continue
		}
		for _, opt := range strings.Split(opts, ",") {
			if _, ok := mounts[opt]; !ok {
				mounts[opt] = mountPoint
			}
		}
	}
	return mounts, sc.Err()
}

// requireInit is the guard every other public operation uses, per
// spec.md §4.A ("every other public operation must reject with
// NotInitialised until init succeeds").
func (c *Context) requireInit() error {
	c.mu.RLock()
	defer c.mu.RUnlock()
	if !c.initialised {
		return newError("requireInit", NotInitialised, nil)
	}
	return nil
}

// mountPoint returns the mount point for controller, or "" if it is not
// mounted.
func (c *Context) mountPoint(controller string) string {
	c.mu.RLock()
	defer c.mu.RUnlock()
	for _, m := range c.mounts {
		if m.controller == controller {
			return m.mountPoint
		}
	}
	return ""
}

// Controllers returns the currently mounted controller names, in
// discovery order.
func (c *Context) Controllers() []string {
	c.mu.RLock()
	defer c.mu.RUnlock()
	names := make([]string, 0, len(c.mounts))
	for _, m := range c.mounts {
		names = append(names, m.controller)
	}
	return names
}

// IsMounted reports whether controller is present in the mount table.
func (c *Context) IsMounted(controller string) bool {
	return c.mountPoint(controller) != ""
}
