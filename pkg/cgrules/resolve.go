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
	"os"
	"os/user"
	"strconv"
	"strings"
)

// nameResolver resolves usernames and group names to uids/gids/members
// via the system's passwd/group databases, per spec.md §4.G.
type nameResolver struct {
	groupFilePath string
}

func newNameResolver(groupFilePath string) *nameResolver {
	if groupFilePath == "" {
		groupFilePath = "/etc/group"
	}
	return &nameResolver{groupFilePath: groupFilePath}
}

// resolveUser resolves a username to a uid via the passwd database.
func (r *nameResolver) resolveUser(name string) (int, bool) {
	u, err := user.Lookup(name)
	if err != nil {
		return 0, false
	}
	uid, err := strconv.Atoi(u.Uid)
	if err != nil {
		return 0, false
	}
	return uid, true
}

// resolveGroup resolves a group name to (gid, member usernames). The
// standard library's os/user doesn't expose group membership, so this
// reads /etc/group directly, matching how the C library consults the
// group database.
func (r *nameResolver) resolveGroup(name string) (gid int, members []string, ok bool) {
	f, err := os.Open(r.groupFilePath)
	if err != nil {
		return 0, nil, false
	}
	defer f.Close()

	sc := bufio.NewScanner(f)
	for sc.Scan() {
		line := sc.Text()
		if line == "" || strings.HasPrefix(line, "#") {
			continue
		}
		fields := strings.Split(line, ":")
		if len(fields) < 4 || fields[0] != name {
			continue
		}
		gid, err := strconv.Atoi(fields[2])
		if err != nil {
			return 0, nil, false
		}
		var members []string
		for _, m := range strings.Split(fields[3], ",") {
			if m = strings.TrimSpace(m); m != "" {
				members = append(members, m)
			}
		}
		return gid, members, true
	}
	return 0, nil, false
}

// usernameForUID resolves a uid back to its username, used by group
// subjects to test membership for a caller who isn't a direct group
// member by gid.
func usernameForUID(uid int) (string, bool) {
	u, err := user.LookupId(strconv.Itoa(uid))
	if err != nil {
		return "", false
	}
	return u.Username, true
}
