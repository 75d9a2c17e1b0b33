package main

import (
	"strconv"

	"github.com/CTAG07/Darlingtonia/pkg/site"
	"github.com/prometheus/client_golang/prometheus"
)

// writeMetrics records the outcome of a build in the node_exporter textfile
// format. The file is replaced atomically.
func writeMetrics(path string, buildID int, report *site.Report) error {
	labels := prometheus.Labels{"build_id": strconv.Itoa(buildID)}
	gauge := func(name, help string, value float64) prometheus.Gauge {
		g := prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace:   "darlingtonia",
			Name:        name,
			Help:        help,
			ConstLabels: labels,
		})
		g.Set(value)
		return g
	}

	last := prometheus.NewGauge(prometheus.GaugeOpts{
		Namespace:   "darlingtonia",
		Name:        "last_build_timestamp_seconds",
		Help:        "Unix time of the last successful build.",
		ConstLabels: labels,
	})
	last.SetToCurrentTime()

	reg := prometheus.NewRegistry()
	reg.MustRegister(
		gauge("build_duration_seconds", "Wall time of the last build.", report.Duration.Seconds()),
		gauge("pages_written", "Page files written by the last build.", float64(report.Files)),
		gauge("address_collisions", "Pages whose address was already taken in the last build.", float64(report.Collisions)),
		last,
	)
	return prometheus.WriteToTextfile(path, reg)
}
