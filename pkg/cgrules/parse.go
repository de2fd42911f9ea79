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

package cgrules

import (
	"bufio"
	"fmt"
	"os"
	"strings"

	"k8s.io/apimachinery/pkg/util/sets"

	"github.com/cgroupkit/cgroupkit/pkg/cgroup"
	"github.com/cgroupkit/cgroupkit/pkg/log"
)

// asParseFailed wraps a parse error in the closed cgroup.Kind
// enumeration's ParseFailed, logging the offending line per spec.md §7
// ("Parser errors include the offending line number in a log message").
func asParseFailed(err error) error {
	parselog.Warn("%v", err)
	return cgroup.Wrap("ParseCache", cgroup.ParseFailed, err)
}

var parselog = log.NewLogger("cgrules.parse")

// DefaultConfigPath is where the C library looks for cgrules.conf.
const DefaultConfigPath = "/etc/cgrules.conf"

// Parser reads cgrules.conf. AllControllers supplies the currently
// mounted controller names for expanding a bare "*" controller list
// (spec.md §4.G); GroupFilePath overrides /etc/group for tests.
type Parser struct {
	AllControllers func() []string
	GroupFilePath  string
}

// NewParser builds a Parser against the live controller set.
func NewParser(allControllers func() []string) *Parser {
	return &Parser{AllControllers: allControllers}
}

// ParseErr is returned for a malformed line; the caller-visible error
// is always cgroup.ParseFailed, but ParseErr retains the line number
// for the log message spec.md §7 calls for.
type ParseErr struct {
	Line int
	Msg  string
}

func (e *ParseErr) Error() string {
	return fmt.Sprintf("cgrules.conf:%d: %s", e.Line, e.Msg)
}

// ParseCache parses the whole file into a fresh rule List, replacing
// any previous one the caller was holding (spec.md §4.G "Cache mode").
func (p *Parser) ParseCache(path string) (List, error) {
	list, _, err := p.scan(path, nil)
	if err != nil {
		return nil, asParseFailed(err)
	}
	return list, nil
}

// ParseLookup parses path until the first rule whose subject matches
// (uid, gid) is found, consumes that rule's continuation lines, and
// stops — it does not read the rest of the file. The returned Rule has
// its Children populated from the consumed continuations. A nil Rule
// with a nil error means the whole file was parsed with no match,
// per spec.md §4.G's "Lookup mode".
func (p *Parser) ParseLookup(path string, uid, gid int) (*Rule, error) {
	target := &matchTarget{uid: uid, gid: gid}
	_, matched, err := p.scan(path, target)
	if err != nil {
		return nil, asParseFailed(err)
	}
	return matched, nil
}

type matchTarget struct {
	uid, gid int
}

// scan is the shared line-oriented parser for both modes. When target
// is non-nil, scanning stops as soon as a top-level rule matches it.
func (p *Parser) scan(path string, target *matchTarget) (List, *Rule, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, nil, &ParseErr{Line: 0, Msg: err.Error()}
	}
	defer f.Close()

	resolver := newNameResolver(p.GroupFilePath)

	var list List
	var current *Rule // most recent top-level rule, for "%" continuation
	skipContinuations := false

	sc := bufio.NewScanner(f)
	lineNo := 0
	for sc.Scan() {
		lineNo++
		raw := strings.TrimSpace(sc.Text())
		if raw == "" || strings.HasPrefix(raw, "#") {
			continue
		}

		fields := strings.Fields(raw)
		if len(fields) != 3 {
			return nil, nil, &ParseErr{Line: lineNo, Msg: "expected 3 whitespace-separated fields"}
		}
		subjectTok, controllersTok, destination := fields[0], fields[1], fields[2]

		isContinuation := subjectTok == "%"
		if isContinuation {
			if skipContinuations {
				continue
			}
			if current == nil {
				return nil, nil, &ParseErr{Line: lineNo, Msg: "continuation with no preceding rule"}
			}
		} else {
			skipContinuations = false
		}

		controllers, err := p.parseControllers(controllersTok)
		if err != nil {
			return nil, nil, &ParseErr{Line: lineNo, Msg: err.Error()}
		}

		var subject Subject
		if isContinuation {
			subject = current.Subject
		} else {
			var ok bool
			subject, ok = p.parseSubject(resolver, subjectTok)
			if !ok {
				parselog.Warn("cgrules.conf:%d: unresolvable subject %q, skipping rule", lineNo, subjectTok)
				skipContinuations = true
				current = nil
				continue
			}
		}

		rule := &Rule{
			Subject:     subject,
			Controllers: controllers,
			Destination: destination,
			Line:        lineNo,
		}

		if isContinuation {
			current.Children = append(current.Children, rule)
			continue
		}

		list = append(list, rule)
		current = rule

		if target != nil && subject.Matches(target.uid, target.gid, usernameForUID) {
			// Consume this rule's continuations before stopping.
			for sc.Scan() {
				lineNo++
				raw := strings.TrimSpace(sc.Text())
				if raw == "" || strings.HasPrefix(raw, "#") {
					continue
				}
				cfields := strings.Fields(raw)
				if len(cfields) != 3 || cfields[0] != "%" {
					break
				}
				cControllers, err := p.parseControllers(cfields[1])
				if err != nil {
					return nil, nil, &ParseErr{Line: lineNo, Msg: err.Error()}
				}
				rule.Children = append(rule.Children, &Rule{
					Subject:     subject,
					Controllers: cControllers,
					Destination: cfields[2],
					Line:        lineNo,
				})
			}
			return list, rule, nil
		}
	}
	if err := sc.Err(); err != nil {
		return nil, nil, &ParseErr{Line: lineNo, Msg: err.Error()}
	}
	return list, nil, nil
}

func (p *Parser) parseSubject(resolver *nameResolver, tok string) (Subject, bool) {
	switch {
	case tok == "*":
		return Subject{Kind: SubjectWildcard, UID: Wild, GID: Wild}, true
	case strings.HasPrefix(tok, "@"):
		name := tok[1:]
		gid, members, ok := resolver.resolveGroup(name)
		if !ok {
			return Subject{}, false
		}
		return Subject{Kind: SubjectGroup, GID: gid, Name: name, Members: members}, true
	default:
		uid, ok := resolver.resolveUser(tok)
		if !ok {
			return Subject{}, false
		}
		return Subject{Kind: SubjectUser, UID: uid, Name: tok}, true
	}
}

func (p *Parser) parseControllers(tok string) (sets.String, error) {
	parts := strings.Split(tok, ",")
	if len(parts) == 1 && parts[0] == "*" {
		all := sets.NewString()
		if p.AllControllers != nil {
			all.Insert(p.AllControllers()...)
		}
		return all, nil
	}
	if len(parts) > MaxControllers {
		return nil, fmt.Errorf("more than %d controllers in a single rule", MaxControllers)
	}
	return sets.NewString(parts...), nil
}
