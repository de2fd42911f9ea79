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
	"context"
	"fmt"
	"os"
	"strconv"
	"strings"

	"golang.org/x/sys/unix"

	"github.com/cgroupkit/cgroupkit/pkg/metrics"
)

func readProcCgroup(pid int) (string, error) {
	data, err := os.ReadFile(fmt.Sprintf("/proc/%d/cgroup", pid))
	if err != nil {
		return "", err
	}
	return string(data), nil
}

// Attach writes tid into every controller's tasks file for g. If g is
// nil, tid is attached to the root cgroup under every mounted
// controller instead. The first per-controller failure aborts the
// remaining controllers, per spec.md §4.F.
func (c *Context) Attach(g *Cgroup, tid int) error {
	return metrics.Observe(context.Background(), "attach", func(context.Context) error {
		return c.attachImpl(g, tid)
	})
}

func (c *Context) attachImpl(g *Cgroup, tid int) error {
	if err := c.requireInit(); err != nil {
		return err
	}

	var controllers []string
	if g == nil {
		controllers = c.Controllers()
	} else {
		controllers = g.ControllerNames()
		for _, name := range controllers {
			if !c.IsMounted(name) {
				return newError("Attach", SubsystemNotMounted, nil)
			}
		}
	}

	name := ""
	if g != nil {
		name = g.Name
	}

	for _, ctrl := range controllers {
		path := c.groupPath(name, ctrl)
		if path == "" {
			return newError("Attach", SubsystemNotMounted, nil)
		}
		if err := writeTask(path+"tasks", tid); err != nil {
			return err
		}
	}
	return nil
}

func writeTask(path string, tid int) error {
	fd, err := unix.Open(path, unix.O_WRONLY, 0)
	if err != nil {
		errno, _ := err.(unix.Errno)
		switch errno {
		case unix.EPERM:
			return newError("Attach", NotOwner, err)
		case unix.ENOENT:
			return newError("Attach", DoesNotExist, err)
		default:
			return newError("Attach", NotAllowed, err)
		}
	}
	defer unix.Close(fd)

	if _, err := unix.Write(fd, []byte(strconv.Itoa(tid))); err != nil {
		return newError("Attach", NotAllowed, err)
	}
	return nil
}

// Gettid returns the kernel thread id of the calling OS thread, per
// spec.md §4.F ("must use the kernel's gettid, not the process id").
// Callers that need to attach the *current* goroutine's thread should
// pair this with runtime.LockOSThread.
func Gettid() int {
	return unix.Gettid()
}

// GetCurrentControllerPath reads /proc/<pid>/cgroup and returns the
// path component for controller, per spec.md §6.
func GetCurrentControllerPath(pid int, controller string) (string, error) {
	data, err := readProcCgroup(pid)
	if err != nil {
		return "", newError("GetCurrentControllerPath", Other, err)
	}
	for _, line := range strings.Split(data, "\n") {
		fields := strings.SplitN(line, ":", 3)
		if len(fields) != 3 {
			continue
		}
		for _, c := range strings.Split(fields[1], ",") {
			if c == controller {
				return fields[2], nil
			}
		}
	}
	return "", newError("GetCurrentControllerPath", DoesNotExist, nil)
}
