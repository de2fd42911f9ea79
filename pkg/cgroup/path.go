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

import "strings"

// groupPath returns "{mount}/{group}/" for controller, or "" if
// controller isn't mounted. With an empty group it returns "{mount}/".
// There is no canonicalisation beyond a single slash-join: ".." in
// group is forwarded verbatim.
func (c *Context) groupPath(group, controller string) string {
	mp := c.mountPoint(controller)
	if mp == "" {
		return ""
	}
	mp = strings.TrimRight(mp, "/")
	if group == "" {
		return mp + "/"
	}
	return mp + "/" + group + "/"
}

// parentName returns the dirname of a slash-normalised cgroup name, or
// "" for the hierarchy root.
func parentName(name string) string {
	name = strings.Trim(name, "/")
	if name == "" {
		return ""
	}
	idx := strings.LastIndex(name, "/")
	if idx < 0 {
		return ""
	}
	return name[:idx]
}

// normaliseName forward-slash-normalises a cgroup name per spec.md §3.
func normaliseName(name string) string {
	name = strings.ReplaceAll(name, "\\", "/")
	name = strings.Trim(name, "/")
	return name
}
