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

// Package log is the small logging indirection every cgroupkit package
// goes through, so the backend (klog) can be swapped without touching
// call sites.
package log

import (
	"fmt"

	"k8s.io/klog/v2"
)

// Logger is the per-package logging handle returned by NewLogger.
type Logger interface {
	Debug(format string, args ...interface{})
	Info(format string, args ...interface{})
	Warn(format string, args ...interface{})
	Error(format string, args ...interface{})
}

type logger struct {
	prefix string
}

var defaultLogger = NewLogger("cgroupkit")

// NewLogger creates a named logger instance. Every package calls this
// once at init time with its own short name, e.g. NewLogger("cgroup").
func NewLogger(name string) Logger {
	return &logger{prefix: name}
}

// Default returns the module-wide default logger.
func Default() Logger {
	return defaultLogger
}

func (l *logger) tag(format string) string {
	return "[" + l.prefix + "] " + format
}

func (l *logger) Debug(format string, args ...interface{}) {
	klog.V(2).Infof(l.tag(format), args...)
}

func (l *logger) Info(format string, args ...interface{}) {
	klog.Infof(l.tag(format), args...)
}

func (l *logger) Warn(format string, args ...interface{}) {
	klog.Warningf(l.tag(format), args...)
}

func (l *logger) Error(format string, args ...interface{}) {
	klog.Errorf(l.tag(format), args...)
}

// Fields formats a set of key/value pairs for inclusion in a log line,
// mirroring the %v-joined style the teacher's control packages use.
func Fields(kv ...interface{}) string {
	s := ""
	for i := 0; i+1 < len(kv); i += 2 {
		if s != "" {
			s += " "
		}
		s += fmt.Sprintf("%v=%v", kv[i], kv[i+1])
	}
	return s
}
