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

	multierror "github.com/hashicorp/go-multierror"
	"golang.org/x/sys/unix"
	"k8s.io/client-go/util/retry"

	"github.com/cgroupkit/cgroupkit/pkg/log"
	"github.com/cgroupkit/cgroupkit/pkg/metrics"
)

var synclog = log.NewLogger("cgroup.sync")

const (
	dirMode  os.FileMode = 0775
	fileMode os.FileMode = 0664
)

// Create materialises cgroup on the filesystem: mkdir -p each declared
// controller's directory, chown/chmod it (unless ignoreOwnership),
// write every attribute, and finally chown the tasks file. Attribute
// write failures are recorded but do not abort the per-controller loop
// (the kernel exposes some attribute files read-only); the first
// recorded error is returned after every attribute has been attempted,
// per spec.md §4.E.
func (c *Context) Create(g *Cgroup, ignoreOwnership bool) error {
	return metrics.Observe(context.Background(), "create", func(context.Context) error {
		return c.createImpl(g, ignoreOwnership)
	})
}

func (c *Context) createImpl(g *Cgroup, ignoreOwnership bool) error {
	if err := c.requireInit(); err != nil {
		return err
	}
	for _, name := range g.ControllerNames() {
		if !c.IsMounted(name) {
			return newError("Create", SubsystemNotMounted, nil)
		}
	}

	var firstErr error
	var diag multierror.Error

	for _, ctl := range g.Controllers {
		path := c.groupPath(g.Name, ctl.Name)
		if path == "" {
			return newError("Create", SubsystemNotMounted, nil)
		}

		if err := mkdirP(path); err != nil {
			return err
		}

		if !ignoreOwnership {
			if err := chownRecursive(path, g.ControlUID, g.ControlGID); err != nil {
				return err
			}
		}

		for _, a := range ctl.Values {
			attrPath := path + a.Name
			if err := writeAttrFile(attrPath, a.Value); err != nil {
				diag.Errors = append(diag.Errors, err)
				if firstErr == nil {
					firstErr = err
				}
				continue
			}
		}

		if !ignoreOwnership {
			tasksPath := path + "tasks"
			if err := unix.Chown(tasksPath, g.TasksUID, g.TasksGID); err != nil {
				return newError("Create", NotAllowed, err)
			}
		}
	}

	if len(diag.Errors) > 0 {
		synclog.Warn("create(%s): %d attribute write(s) failed: %v", g.Name, len(diag.Errors), diag.ErrorOrNil())
	}
	return firstErr
}

// Modify rewrites every declared attribute of an existing cgroup. Unlike
// Create, a write failure here is diagnostic rather than expected, so
// the first error aborts immediately, per spec.md §4.E.
func (c *Context) Modify(g *Cgroup) error {
	return metrics.Observe(context.Background(), "modify", func(context.Context) error {
		return c.modifyImpl(g)
	})
}

func (c *Context) modifyImpl(g *Cgroup) error {
	if err := c.requireInit(); err != nil {
		return err
	}
	for _, ctl := range g.Controllers {
		path := c.groupPath(g.Name, ctl.Name)
		if path == "" {
			return newError("Modify", SubsystemNotMounted, nil)
		}
		for _, a := range ctl.Values {
			if err := writeAttrFile(path+a.Name, a.Value); err != nil {
				return err
			}
		}
	}
	return nil
}

// Delete removes a cgroup, migrating resident tasks to the parent's
// tasks file first. If ignoreMigration is set, a failure during
// migration falls back to a second pass that just rmdir's every
// controller directory, treating ENOENT as success.
func (c *Context) Delete(g *Cgroup, ignoreMigration bool) error {
	return metrics.Observe(context.Background(), "delete", func(context.Context) error {
		return c.deleteImpl(g, ignoreMigration)
	})
}

func (c *Context) deleteImpl(g *Cgroup, ignoreMigration bool) error {
	if err := c.requireInit(); err != nil {
		return err
	}

	var firstErr error
	for _, ctl := range g.Controllers {
		if err := c.deleteOneController(g.Name, ctl.Name); err != nil {
			firstErr = err
			break
		}
	}

	if firstErr == nil {
		return nil
	}
	if !ignoreMigration {
		return firstErr
	}

	var last error
	for _, ctl := range g.Controllers {
		path := c.groupPath(g.Name, ctl.Name)
		if path == "" {
			continue
		}
		if err := unix.Rmdir(strings.TrimSuffix(path, "/")); err != nil && err != unix.ENOENT {
			last = newError("Delete", Failed, err)
		}
	}
	return last
}

func (c *Context) deleteOneController(name, controller string) error {
	path := c.groupPath(name, controller)
	if path == "" {
		return newError("Delete", SubsystemNotMounted, nil)
	}
	parentPath := c.groupPath(parentName(name), controller)

	parentTasks, err := os.OpenFile(parentPath+"tasks", os.O_WRONLY|os.O_APPEND, 0)
	if err != nil {
		return newError("Delete", Failed, err)
	}
	defer parentTasks.Close()

	tasks, err := os.Open(path + "tasks")
	if err != nil {
		return newError("Delete", Failed, err)
	}
	sc := bufio.NewScanner(tasks)
	for sc.Scan() {
		line := strings.TrimSpace(sc.Text())
		if line == "" {
			continue
		}
		if _, err := parentTasks.WriteString(line); err != nil {
			tasks.Close()
			return newError("Delete", Failed, err)
		}
	}
	scanErr := sc.Err()
	tasks.Close()
	if scanErr != nil {
		return newError("Delete", Failed, scanErr)
	}

	if err := unix.Rmdir(strings.TrimSuffix(path, "/")); err != nil {
		return newError("Delete", Failed, err)
	}
	return nil
}

// Fetch populates g (which must already carry a Name) by reading every
// mounted controller's directory for g.Name. Controllers where the
// directory doesn't exist are skipped; if none exist at all, Fetch
// returns DoesNotExist without otherwise mutating g, per spec.md §4.E.
func (c *Context) Fetch(g *Cgroup) error {
	return metrics.Observe(context.Background(), "fetch", func(context.Context) error {
		return c.fetchImpl(g)
	})
}

func (c *Context) fetchImpl(g *Cgroup) error {
	if err := c.requireInit(); err != nil {
		return err
	}

	found := false
	for _, name := range c.Controllers() {
		path := c.groupPath(g.Name, name)
		info, err := os.Stat(strings.TrimSuffix(path, "/"))
		if err != nil || !info.IsDir() {
			continue
		}

		var st unix.Stat_t
		if err := unix.Stat(path+"tasks", &st); err == nil {
			g.TasksUID, g.TasksGID = int(st.Uid), int(st.Gid)
			g.ControlUID, g.ControlGID = int(st.Uid), int(st.Gid)
		}

		ctl := g.AddController(name)
		found = true

		entries, err := os.ReadDir(strings.TrimSuffix(path, "/"))
		if err != nil {
			continue
		}
		prefix := name + "."
		for _, e := range entries {
			if e.IsDir() || !strings.HasPrefix(e.Name(), prefix) {
				continue
			}
			value, err := readAttrFile(path + e.Name())
			if err != nil {
				continue
			}
			ctl.Set(e.Name(), value)
		}
	}

	if !found {
		return newError("Fetch", DoesNotExist, nil)
	}
	return nil
}

// CopyFromParent resolves cgroup g's parent (the hierarchy root if g's
// first controller directory is itself a mount point, otherwise
// dirname(g.Name)), fetches the parent's attributes, deep-copies them
// into g, and finally creates g on disk.
func (c *Context) CopyFromParent(g *Cgroup, ignoreOwnership bool) error {
	return metrics.Observe(context.Background(), "copy_from_parent", func(context.Context) error {
		return c.copyFromParentImpl(g, ignoreOwnership)
	})
}

func (c *Context) copyFromParentImpl(g *Cgroup, ignoreOwnership bool) error {
	if err := c.requireInit(); err != nil {
		return err
	}
	if len(g.Controllers) == 0 {
		return newError("CopyFromParent", InvalidOperation, nil)
	}

	pname, err := c.parentNameForCopy(g)
	if err != nil {
		return err
	}

	parent := New(pname)
	for _, name := range g.ControllerNames() {
		parent.AddController(name)
	}
	if err := c.fetchImpl(parent); err != nil {
		return err
	}

	if err := Copy(g, parent); err != nil {
		return err
	}
	g.Name = normaliseName(g.Name) // Copy doesn't touch Name; restore caller's.
	return c.createImpl(g, ignoreOwnership)
}

// parentNameForCopy implements spec.md §4.E's mount-point detection:
// if g's first controller directory is itself a mount point (its
// st_dev differs from its OS parent's), the parent is the hierarchy
// root (""); otherwise it's dirname(g.Name).
func (c *Context) parentNameForCopy(g *Cgroup) (string, error) {
	first := g.Controllers[0].Name
	path := strings.TrimSuffix(c.groupPath(g.Name, first), "/")
	if path == "" {
		return "", newError("CopyFromParent", SubsystemNotMounted, nil)
	}

	var self, up unix.Stat_t
	if err := unix.Stat(path, &self); err != nil {
		return "", newError("CopyFromParent", Failed, err)
	}
	if err := unix.Stat(filepath.Dir(path), &up); err != nil {
		return "", newError("CopyFromParent", Failed, err)
	}

	if self.Dev != up.Dev {
		return "", nil // hierarchy root
	}
	return parentName(g.Name), nil
}

// mkdirP emulates `mkdir -p` by creating each path segment in turn;
// EEXIST is not fatal. It never changes the caller's working directory.
func mkdirP(path string) error {
	path = strings.TrimSuffix(path, "/")
	if path == "" {
		return nil
	}

	segments := strings.Split(path, "/")
	cur := ""
	if strings.HasPrefix(path, "/") {
		cur = "/"
	}
	for _, seg := range segments {
		if seg == "" {
			continue
		}
		if cur == "" || cur == "/" {
			cur = cur + seg
		} else {
			cur = cur + "/" + seg
		}

		err := retry.OnError(retry.DefaultBackoff, func(err error) bool {
			return err == unix.EAGAIN || err == unix.EINTR
		}, func() error {
			return unix.Mkdir(cur, uint32(dirMode))
		})

		if err != nil {
			if err == unix.EEXIST {
				continue
			}
			if err == unix.EPERM {
				return newError("mkdirP", NotOwner, err)
			}
			return newError("mkdirP", NotAllowed, err)
		}
	}
	return nil
}

// chownRecursive chowns path and, if it is a directory, every entry
// beneath it, applying dirMode to directories and fileMode to files.
func chownRecursive(root string, uid, gid int) error {
	root = strings.TrimSuffix(root, "/")
	return filepath.Walk(root, func(p string, info os.FileInfo, err error) error {
		if err != nil {
			return err
		}
		if chownErr := unix.Chown(p, uid, gid); chownErr != nil {
			return newError("chownRecursive", NotAllowed, chownErr)
		}
		if info.IsDir() {
			return os.Chmod(p, dirMode)
		}
		return os.Chmod(p, fileMode)
	})
}

// parseTaskInt parses one whitespace-trimmed decimal task id.
func parseTaskInt(s string) (int, bool) {
	v, err := strconv.Atoi(strings.TrimSpace(s))
	return v, err == nil
}
