// Copyright 2021 Intel Corporation. All Rights Reserved.
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
	"strings"
	"unsafe"

	"github.com/cilium/ebpf"
	"golang.org/x/sys/unix"
)

// bpfProgAttachAttr mirrors the kernel's bpf_attr union for the
// BPF_PROG_ATTACH/BPF_PROG_DETACH commands; x/sys/unix doesn't export a
// typed wrapper for cgroup-bpf attach, so we lay it out ourselves the
// way cilium/ebpf's own internal syscall layer does.
type bpfProgAttachAttr struct {
	targetFD    uint32
	attachBpfFD uint32
	attachType  uint32
	attachFlags uint32
}

func bpfProgAttach(targetFD, progFD int, at AttachType) error {
	attr := bpfProgAttachAttr{
		targetFD:    uint32(targetFD),
		attachBpfFD: uint32(progFD),
		attachType:  uint32(at),
	}
	_, _, errno := unix.Syscall(unix.SYS_BPF, uintptr(unix.BPF_PROG_ATTACH),
		uintptr(unsafe.Pointer(&attr)), unsafe.Sizeof(attr))
	if errno != 0 {
		return errno
	}
	return nil
}

func bpfProgDetach(targetFD int, at AttachType) error {
	attr := bpfProgAttachAttr{
		targetFD:   uint32(targetFD),
		attachType: uint32(at),
	}
	_, _, errno := unix.Syscall(unix.SYS_BPF, uintptr(unix.BPF_PROG_DETACH),
		uintptr(unsafe.Pointer(&attr)), unsafe.Sizeof(attr))
	if errno != 0 {
		return errno
	}
	return nil
}

// AttachType names a cgroup-bpf attach point, mirroring the handful the
// kernel exposes for directory-scoped enforcement (device access,
// egress filtering, ...).
type AttachType uint32

const (
	// AttachCgroupDevice enforces device cgroup v2 policy.
	AttachCgroupDevice AttachType = unix.BPF_CGROUP_DEVICE
	// AttachCgroupInetEgress filters outbound IPv4/IPv6 traffic.
	AttachCgroupInetEgress AttachType = unix.BPF_CGROUP_INET_EGRESS
)

// AttachBPF attaches an already-loaded BPF program (identified by its
// kernel program ID, as returned to the caller when it loaded the
// program) to g's cgroup v2 directory for the given attach type. This
// library never compiles or loads BPF programs itself; it is a
// supplemental feature beyond the original libcgroup scope (§4.K of
// SPEC_FULL.md) — directory membership alone doesn't enforce device or
// network policy on cgroup v2, pairing it with cgroup-bpf is the
// standard mechanism modern container runtimes use.
func (c *Context) AttachBPF(g *Cgroup, controller string, progID ebpf.ProgramID, at AttachType) error {
	if err := c.requireInit(); err != nil {
		return err
	}
	path := strings.TrimSuffix(c.groupPath(g.Name, controller), "/")
	if path == "" {
		return newError("AttachBPF", SubsystemNotMounted, nil)
	}

	prog, err := ebpf.NewProgramFromID(progID)
	if err != nil {
		return newError("AttachBPF", DoesNotExist, err)
	}
	defer prog.Close()

	dir, err := os.Open(path)
	if err != nil {
		return newError("AttachBPF", DoesNotExist, err)
	}
	defer dir.Close()

	if err := bpfProgAttach(int(dir.Fd()), prog.FD(), at); err != nil {
		return newError("AttachBPF", Failed, err)
	}
	return nil
}

// DetachBPF removes any program of attach type at from g's cgroup
// directory.
func (c *Context) DetachBPF(g *Cgroup, controller string, at AttachType) error {
	if err := c.requireInit(); err != nil {
		return err
	}
	path := strings.TrimSuffix(c.groupPath(g.Name, controller), "/")
	if path == "" {
		return newError("DetachBPF", SubsystemNotMounted, nil)
	}

	dir, err := os.Open(path)
	if err != nil {
		return newError("DetachBPF", DoesNotExist, err)
	}
	defer dir.Close()

	if err := bpfProgDetach(int(dir.Fd()), at); err != nil {
		return newError("DetachBPF", Failed, err)
	}
	return nil
}
