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
	"fmt"

	"github.com/pkg/errors"
)

// Kind is the closed set of domain-level outcomes a cgroup operation can
// report. It replaces the C library's libcgroup error enumeration.
type Kind int

const (
	// OK indicates success; operations return a nil *Error instead, OK
	// only appears inside Kind's own String().
	OK Kind = iota
	NotCompiled
	NotMounted
	DoesNotExist
	NotCreated
	SubsystemNotMounted
	NotOwner
	MultipleMountpoints
	NotAllowed
	MaxExceeded
	ControllerExists
	ValueExists
	InvalidOperation
	ControllerCreateFailed
	Failed
	NotInitialised
	ValueDoesNotExist
	Generic
	ValuesNotEqual
	ControllersDiffer
	ParseFailed
	RulesFileMissing
	MountFailed
	ConfigNotOpenable
	EOF
	Other
)

var kindNames = map[Kind]string{
	OK:                     "ok",
	NotCompiled:            "not compiled",
	NotMounted:             "not mounted",
	DoesNotExist:           "does not exist",
	NotCreated:             "not created",
	SubsystemNotMounted:    "subsystem not mounted",
	NotOwner:               "not owner",
	MultipleMountpoints:    "multiple mountpoints",
	NotAllowed:             "not allowed",
	MaxExceeded:            "max exceeded",
	ControllerExists:       "controller exists",
	ValueExists:            "value exists",
	InvalidOperation:       "invalid operation",
	ControllerCreateFailed: "controller create failed",
	Failed:                 "failed",
	NotInitialised:         "not initialised",
	ValueDoesNotExist:      "value does not exist",
	Generic:                "generic error",
	ValuesNotEqual:         "values not equal",
	ControllersDiffer:      "controllers differ",
	ParseFailed:            "parse failed",
	RulesFileMissing:       "rules file missing",
	MountFailed:            "mount failed",
	ConfigNotOpenable:      "config not openable",
	EOF:                    "end of iteration",
	Other:                  "other",
}

func (k Kind) String() string {
	if s, ok := kindNames[k]; ok {
		return s
	}
	return "unknown"
}

// Error is the error type returned by every cgroupkit/pkg/cgroup
// operation. It carries the domain Kind plus, when one caused it, the
// wrapped OS-level error that produced it (the Go equivalent of the
// C library's thread-local errno, see spec.md §5/§9).
type Error struct {
	Kind Kind
	Op   string
	Errno error
}

func (e *Error) Error() string {
	if e.Errno != nil {
		return fmt.Sprintf("%s: %s: %v", e.Op, e.Kind, e.Errno)
	}
	return fmt.Sprintf("%s: %s", e.Op, e.Kind)
}

// Unwrap lets errors.Is/errors.As see through to the wrapped OS error.
func (e *Error) Unwrap() error {
	return e.Errno
}

// newError builds a domain error, optionally wrapping an OS error with
// context via github.com/pkg/errors so callers up the stack retain a
// stack trace of where the syscall failed.
func newError(op string, kind Kind, cause error) *Error {
	if cause != nil {
		cause = errors.Wrapf(cause, "%s", op)
	}
	return &Error{Kind: kind, Op: op, Errno: cause}
}

// Wrap builds an exported *Error for callers outside this package
// (e.g. pkg/cgrules) that need to surface a failure through the same
// closed Kind enumeration.
func Wrap(op string, kind Kind, cause error) error {
	return newError(op, kind, cause)
}

// IsEOF reports whether err is the Iterator EOF sentinel.
func IsEOF(err error) bool {
	e, ok := err.(*Error)
	return ok && e.Kind == EOF
}

// IsNotExist reports whether err signals a missing cgroup/attribute.
func IsNotExist(err error) bool {
	e, ok := err.(*Error)
	return ok && (e.Kind == DoesNotExist || e.Kind == ValueDoesNotExist)
}
