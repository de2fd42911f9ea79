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

// Package cgrules implements the cgrules.conf parser and matcher of
// spec.md §4.G: resolving a (uid, gid, pid) triple to the cgroup a
// user-to-cgroup placement rule says it belongs in.
package cgrules

import (
	"k8s.io/apimachinery/pkg/util/sets"
)

// Wild is the uid/gid value a wildcard subject matches against anything.
const Wild = -1

// MaxControllers bounds a single rule's controller list, per
// spec.md §4.G (MAX_MNT_ELEMENTS).
const MaxControllers = 8

// SubjectKind discriminates a Rule's matching predicate.
type SubjectKind int

const (
	// SubjectUser matches a literal uid.
	SubjectUser SubjectKind = iota
	// SubjectGroup matches a gid or group membership.
	SubjectGroup
	// SubjectWildcard matches everything.
	SubjectWildcard
)

// Subject is the resolved predicate side of one rule line.
type Subject struct {
	Kind    SubjectKind
	UID     int
	GID     int
	Name    string   // user or group name, for diagnostics
	Members []string // group member usernames, SubjectGroup only
}

// Matches reports whether uid/gid satisfies the subject, per spec.md
// §4.G's matcher: wildcard always matches; group match first tries
// gid equality, then falls back to the cached member-name list
// compared against the resolved username for uid.
func (s Subject) Matches(uid, gid int, lookupUsername func(uid int) (string, bool)) bool {
	switch s.Kind {
	case SubjectWildcard:
		return true
	case SubjectUser:
		return s.UID == uid
	case SubjectGroup:
		if s.GID == gid {
			return true
		}
		if lookupUsername == nil {
			return false
		}
		name, ok := lookupUsername(uid)
		if !ok {
			return false
		}
		for _, m := range s.Members {
			if m == name {
				return true
			}
		}
		return false
	default:
		return false
	}
}

// Rule is one parsed (and possibly continuation-nested) line of
// cgrules.conf. Continuations ("%"-prefixed lines) are represented as
// Children of the rule whose subject they inherit, per the Design
// Notes in spec.md §9 ("nesting continuations as children... removing
// the previous-line lookback state from the parser").
type Rule struct {
	Subject     Subject
	Controllers sets.String
	Destination string
	Children    []*Rule

	// Line is the 1-based source line number, for diagnostics.
	Line int
}

// List is an ordered sequence of top-level rules; order defines match
// priority, per spec.md §3.
type List []*Rule

// Resolve walks list in order and returns the first rule whose subject
// matches (uid, gid), or nil if none does. This is the cache-mode
// matcher of spec.md §4.G.
func (l List) Resolve(uid, gid int, lookupUsername func(int) (string, bool)) *Rule {
	for _, r := range l {
		if r.Subject.Matches(uid, gid, lookupUsername) {
			return r
		}
	}
	return nil
}
