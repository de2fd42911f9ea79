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

package log

import "testing"

func TestFieldsFormatsPairs(t *testing.T) {
	got := Fields("op", "create", "group", "students/alice")
	want := "op=create group=students/alice"
	if got != want {
		t.Fatalf("got %q, want %q", got, want)
	}
}

func TestFieldsEmpty(t *testing.T) {
	if got := Fields(); got != "" {
		t.Fatalf("expected empty string, got %q", got)
	}
}

func TestNewLoggerAndDefaultDoNotPanic(t *testing.T) {
	l := NewLogger("test")
	l.Debug("debug %d", 1)
	l.Info("info %d", 1)
	l.Warn("warn %d", 1)
	l.Error("error %d", 1)
	Default().Info("default logger")
}
