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
	"path/filepath"
	"testing"
	"time"
)

// fakeFS builds a tmp-dir-rooted fake /proc/cgroups + /proc/mounts plus
// the per-controller mount directories, and returns a Context pointed
// at it.
func fakeFS(t *testing.T, controllers ...string) (*Context, string) {
	t.Helper()
	root := t.TempDir()

	cgroupsPath := filepath.Join(root, "cgroups")
	var cgroupsBody string
	cgroupsBody = "#subsys_name\thierarchy\tnum_cgroups\tenabled\n"
	for _, c := range controllers {
		cgroupsBody += fmt.Sprintf("%s\t1\t1\t1\n", c)
	}
	if err := os.WriteFile(cgroupsPath, []byte(cgroupsBody), 0644); err != nil {
		t.Fatal(err)
	}

	mountsPath := filepath.Join(root, "mounts")
	var mountsBody string
	for _, c := range controllers {
		mp := filepath.Join(root, "sys", "fs", "cgroup", c)
		if err := os.MkdirAll(mp, 0755); err != nil {
			t.Fatal(err)
		}
		mountsBody += fmt.Sprintf("cgroup %s cgroup rw,%s 0 0\n", mp, c)
	}
	if err := os.WriteFile(mountsPath, []byte(mountsBody), 0644); err != nil {
		t.Fatal(err)
	}

	ctx := NewContext()
	ctx.CgroupsPath = cgroupsPath
	ctx.MountsPath = mountsPath
	return ctx, root
}

func TestInitDiscoversMountedControllers(t *testing.T) {
	ctx, _ := fakeFS(t, "cpu", "memory")
	if err := ctx.Init(); err != nil {
		t.Fatalf("Init: %v", err)
	}
	if !ctx.IsMounted("cpu") || !ctx.IsMounted("memory") {
		t.Fatalf("expected cpu and memory mounted, got %v", ctx.Controllers())
	}
	if ctx.IsMounted("freezer") {
		t.Fatalf("freezer should not be mounted")
	}
}

func TestInitNotMountedWhenNoCgroupEntries(t *testing.T) {
	root := t.TempDir()
	cgroupsPath := filepath.Join(root, "cgroups")
	os.WriteFile(cgroupsPath, []byte("#subsys_name\thierarchy\tnum_cgroups\tenabled\ncpu\t1\t1\t1\n"), 0644)
	mountsPath := filepath.Join(root, "mounts")
	os.WriteFile(mountsPath, []byte(""), 0644)

	ctx := NewContext()
	ctx.CgroupsPath = cgroupsPath
	ctx.MountsPath = mountsPath

	err := ctx.Init()
	if err == nil {
		t.Fatal("expected NotMounted error")
	}
	if e, ok := err.(*Error); !ok || e.Kind != NotMounted {
		t.Fatalf("expected NotMounted, got %v", err)
	}
}

func TestInitWithRetrySucceedsOnceMountsAppear(t *testing.T) {
	ctx, root := fakeFS(t, "cpu")
	// Point MountsPath at a file that doesn't exist yet: the first few
	// Init attempts must fail before we create it mid-retry.
	missing := filepath.Join(root, "mounts-delayed")
	ctx.MountsPath = missing

	go func() {
		time.Sleep(20 * time.Millisecond)
		data, _ := os.ReadFile(filepath.Join(root, "mounts"))
		os.WriteFile(missing, data, 0644)
	}()

	c, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()
	if err := ctx.InitWithRetry(c, 10*time.Millisecond, 100*time.Millisecond, 10); err != nil {
		t.Fatalf("InitWithRetry: %v", err)
	}
	if !ctx.IsMounted("cpu") {
		t.Fatal("expected cpu mounted after retry succeeded")
	}
}

func TestOperationsRejectBeforeInit(t *testing.T) {
	ctx := NewContext()
	ctx.CgroupsPath = "/nonexistent"
	ctx.MountsPath = "/nonexistent"

	if err := ctx.Fetch(New("g1")); err == nil {
		t.Fatal("expected NotInitialised")
	} else if e, ok := err.(*Error); !ok || e.Kind != NotInitialised {
		t.Fatalf("expected NotInitialised, got %v", err)
	}
}
