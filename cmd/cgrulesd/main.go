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

// Command cgrulesd is a one-shot runner for the rules engine: given a
// (uid, gid, pid), it resolves and applies the matching cgrules.conf
// rule, the call surface spec.md §4.G describes as change_cgroup.
package main

import (
	"flag"
	"fmt"
	"os"

	"github.com/cgroupkit/cgroupkit/pkg/cgroup"
	"github.com/cgroupkit/cgroupkit/pkg/cgrules"
	"github.com/cgroupkit/cgroupkit/pkg/log"
)

var (
	configPath = flag.String("config", cgrules.DefaultConfigPath, "path to cgrules.conf")
	uid        = flag.Int("uid", -1, "uid to resolve")
	gid        = flag.Int("gid", -1, "gid to resolve")
	pid        = flag.Int("pid", 0, "pid to attach on match")
	useCache   = flag.Bool("use-cache", false, "resolve from a cached parse instead of a fresh lookup-mode parse")
	printOnly  = flag.Bool("print", false, "parse and print the rule list, then exit")
)

var rulesdlog = log.NewLogger("cgrulesd")

func main() {
	flag.Parse()

	if err := cgroup.Init(); err != nil {
		rulesdlog.Error("init: %v", err)
		os.Exit(1)
	}

	engine := cgrules.NewEngine(cgroup.Default(), *configPath)

	if *printOnly {
		if err := engine.Reload(); err != nil {
			rulesdlog.Error("reload: %v", err)
			os.Exit(1)
		}
		fmt.Print(engine.Print())
		return
	}

	var flags cgrules.ApplyFlags
	if *useCache {
		if err := engine.Reload(); err != nil {
			rulesdlog.Error("reload: %v", err)
			os.Exit(1)
		}
		flags |= cgrules.UseCache
	}

	if err := engine.ChangeCgroup(cgroup.Default(), *uid, *gid, *pid, flags); err != nil {
		rulesdlog.Error("change_cgroup: %v", err)
		os.Exit(1)
	}
}
