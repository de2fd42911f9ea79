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
	"strings"

	"golang.org/x/sys/unix"
)

// writeAttrFile opens path for read+write truncation and writes value
// as-is (no trailing-newline policy, per spec.md §4.C). Errors are
// classified against the sibling tasks file to tell SubsystemNotMounted
// apart from plain NotAllowed.
func writeAttrFile(path, value string) error {
	fd, err := unix.Open(path, unix.O_RDWR|unix.O_TRUNC, 0)
	if err != nil {
		return classifyAttrError("writeAttrFile", path, err)
	}
	defer unix.Close(fd)

	if _, err := unix.Write(fd, []byte(value)); err != nil {
		return newError("writeAttrFile", Other, err)
	}
	return nil
}

// readAttrFile reads a single whitespace-delimited token from path,
// per spec.md §4.C ("multi-line stat files go through the Stats
// iterator").
func readAttrFile(path string) (string, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return "", classifyAttrError("readAttrFile", path, err)
	}
	fields := strings.Fields(string(data))
	if len(fields) == 0 {
		return "", nil
	}
	return fields[0], nil
}

// classifyAttrError maps a raw open/read errno to a domain Kind per the
// table in spec.md §4.C.
func classifyAttrError(op, path string, err error) *Error {
	errno, _ := err.(unix.Errno)
	if errno == 0 {
		if pe, ok := err.(*os.PathError); ok {
			errno, _ = pe.Err.(unix.Errno)
		}
	}

	switch errno {
	case unix.ENOENT:
		return newError(op, ValueDoesNotExist, err)
	case unix.EPERM:
		tasksPath := filepath.Join(filepath.Dir(path), "tasks")
		if _, statErr := os.Stat(tasksPath); statErr == nil {
			return newError(op, NotAllowed, err)
		}
		return newError(op, SubsystemNotMounted, err)
	default:
		return newError(op, Other, err)
	}
}
