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

// Command cgroupctl is a thin CLI wrapper around pkg/cgroup, standing
// in for the out-of-scope cgconfig loader (spec.md §1/§6): it only
// calls the same surface a loader would (init, create, modify, delete,
// fetch, attach, free).
package main

import (
	"contrib.go.opencensus.io/exporter/jaeger"
	"contrib.go.opencensus.io/exporter/prometheus"
	"flag"
	"fmt"
	"net/http"
	"os"
	"strings"

	"go.opencensus.io/stats/view"
	"go.opencensus.io/trace"
	_ "golang.org/x/net/trace" // registers /debug/requests, /debug/events

	"github.com/cgroupkit/cgroupkit/pkg/cgroup"
	"github.com/cgroupkit/cgroupkit/pkg/log"
)

var (
	op            = flag.String("op", "fetch", "operation: create, modify, delete, fetch, attach")
	groupName     = flag.String("group", "", "cgroup name, e.g. students/alice")
	controllers   = flag.String("controllers", "", "comma-separated controller list")
	attrs         = flag.String("attrs", "", "comma-separated name=value attribute pairs")
	ignoreOwner   = flag.Bool("ignore-ownership", true, "skip chown/chmod on create")
	ignoreMigrate = flag.Bool("ignore-migration", false, "rmdir even if task migration fails on delete")
	attachPID     = flag.Int("pid", 0, "pid/tid to attach")
	listenAddr    = flag.String("listen", "", "address to serve /metrics and /debug on, e.g. :9090")
	jaegerURL     = flag.String("jaeger-endpoint", "", "optional Jaeger collector endpoint")
)

var clilog = log.NewLogger("cgroupctl")

func main() {
	flag.Parse()

	if err := cgroup.Init(); err != nil {
		clilog.Error("init: %v", err)
		os.Exit(1)
	}

	if *listenAddr != "" {
		startDebugServer(*listenAddr)
	}

	g := cgroup.New(*groupName)
	for _, name := range strings.Split(*controllers, ",") {
		if name == "" {
			continue
		}
		ctl := g.AddController(name)
		for _, kv := range strings.Split(*attrs, ",") {
			if kv == "" {
				continue
			}
			parts := strings.SplitN(kv, "=", 2)
			if len(parts) != 2 {
				continue
			}
			ctl.Set(parts[0], parts[1])
		}
	}
	defer g.Free()

	var err error
	switch *op {
	case "create":
		err = cgroup.Create(g, *ignoreOwner)
	case "modify":
		err = cgroup.Modify(g)
	case "delete":
		err = cgroup.Delete(g, *ignoreMigrate)
	case "fetch":
		err = cgroup.Fetch(g)
		if err == nil {
			printCgroup(g)
		}
	case "attach":
		err = cgroup.Attach(g, *attachPID)
	default:
		fmt.Fprintf(os.Stderr, "unknown -op %q\n", *op)
		os.Exit(2)
	}

	if err != nil {
		clilog.Error("%s: %v", *op, err)
		os.Exit(1)
	}
}

func printCgroup(g *cgroup.Cgroup) {
	fmt.Printf("name: %s\n", g.Name)
	for _, ctl := range g.Controllers {
		fmt.Printf("  %s:\n", ctl.Name)
		for _, a := range ctl.Values {
			fmt.Printf("    %s = %s\n", a.Name, a.Value)
		}
	}
}

func startDebugServer(addr string) {
	exporter, err := prometheus.NewExporter(prometheus.Options{Namespace: "cgroupkit"})
	if err != nil {
		clilog.Warn("prometheus exporter: %v", err)
	} else {
		view.RegisterExporter(exporter)
		http.Handle("/metrics", exporter)
	}

	if *jaegerURL != "" {
		je, err := jaeger.NewExporter(jaeger.Options{
			CollectorEndpoint: *jaegerURL,
			ServiceName:       "cgroupkit",
		})
		if err != nil {
			clilog.Warn("jaeger exporter: %v", err)
		} else {
			trace.RegisterExporter(je)
		}
	}

	go func() {
		clilog.Info("serving /metrics and /debug/requests on %s", addr)
		if err := http.ListenAndServe(addr, nil); err != nil {
			clilog.Error("debug server: %v", err)
		}
	}()
}
