// Copyright 2021 Intel Corporation. All Rights Reserved.
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

// Package metrics instruments pkg/cgroup's synchroniser and task
// attachment operations via Observe, which pkg/cgroup calls around
// each of its exported methods. The dependency only runs one way:
// pkg/metrics never imports pkg/cgroup back.
package metrics

import (
	"context"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"go.opencensus.io/stats"
	"go.opencensus.io/stats/view"
	"go.opencensus.io/tag"
	"go.opencensus.io/trace"
)

var (
	opLatency = stats.Float64("cgroupkit/op_latency_ms", "latency of a synchroniser operation", "ms")
	opTotal   = stats.Int64("cgroupkit/op_total", "count of synchroniser operations", "1")

	// KeyOp tags a measurement with the operation name (create, modify,
	// delete, fetch, attach, copy_from_parent).
	KeyOp, _  = tag.NewKey("op")
	KeyError, _ = tag.NewKey("error")

	// LatencyView and CountView are registered with opencensus and, via
	// the contrib prometheus exporter, exposed on /metrics.
	LatencyView = &view.View{
		Name:        "cgroupkit/op_latency_ms",
		Measure:     opLatency,
		Description: "synchroniser operation latency",
		TagKeys:     []tag.Key{KeyOp},
		Aggregation: view.Distribution(1, 2, 5, 10, 25, 50, 100, 250, 500, 1000, 5000),
	}
	CountView = &view.View{
		Name:        "cgroupkit/op_total",
		Measure:     opTotal,
		Description: "synchroniser operation count",
		TagKeys:     []tag.Key{KeyOp, KeyError},
		Aggregation: view.Count(),
	}
)

func init() {
	if err := view.Register(LatencyView, CountView); err != nil {
		// Registration only fails on duplicate names within this
		// process; nothing useful to do but note it happened.
		_ = err
	}
}

// Observe wraps fn in an opencensus trace span named
// "cgroupkit.cgroup.<op>" and records its
// latency and outcome against the views above.
func Observe(ctx context.Context, op string, fn func(context.Context) error) error {
	ctx, span := trace.StartSpan(ctx, "cgroupkit.cgroup."+op)
	defer span.End()

	start := time.Now()
	err := fn(ctx)
	elapsed := float64(time.Since(start)) / float64(time.Millisecond)

	errLabel := "none"
	if err != nil {
		errLabel = "error"
		span.SetStatus(trace.Status{Code: trace.StatusCodeUnknown, Message: err.Error()})
	}

	taggedCtx, tagErr := tag.New(ctx, tag.Insert(KeyOp, op), tag.Insert(KeyError, errLabel))
	if tagErr == nil {
		stats.Record(taggedCtx, opLatency.M(elapsed), opTotal.M(1))
	}
	return err
}

// StatCollector is a prometheus.Collector that republishes a
// controller's *.stat key/value pairs, as returned by the caller-supplied
// reader function, as gauges, so operators get cgroup resource counters
// without the library itself interpreting controller semantics
// (spec.md §1's non-goal still holds: it only relabels strings).
type StatCollector struct {
	namespace string
	subsystem string
	reader    func() (map[string]float64, error)
}

// NewStatCollector builds a collector whose Collect calls reader to
// obtain the latest (name -> numeric value) snapshot.
func NewStatCollector(namespace, subsystem string, reader func() (map[string]float64, error)) *StatCollector {
	return &StatCollector{namespace: namespace, subsystem: subsystem, reader: reader}
}

// Describe implements prometheus.Collector. It intentionally describes
// nothing up-front since the key set is only known once the stat file
// is read (the kernel controller, not this library, defines it).
func (s *StatCollector) Describe(ch chan<- *prometheus.Desc) {}

// Collect implements prometheus.Collector.
func (s *StatCollector) Collect(ch chan<- prometheus.Metric) {
	values, err := s.reader()
	if err != nil {
		return
	}
	for name, v := range values {
		desc := prometheus.NewDesc(
			prometheus.BuildFQName(s.namespace, s.subsystem, name),
			"cgroup controller stat value, passed through verbatim",
			nil, nil,
		)
		ch <- prometheus.MustNewConstMetric(desc, prometheus.GaugeValue, v)
	}
}
