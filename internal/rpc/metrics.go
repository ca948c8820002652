package rpc

import "sync/atomic"

// Counters are process-wide tallies the OpMetrics handler reports
// alongside the OTel exporter (SPEC_FULL §4.8, §13): the exporter feeds
// dashboards, this feeds a quick in-band health check that needs no
// separate scrape.
var Counters struct {
	Created   atomic.Int64
	Merged    atomic.Int64
	Conflicts atomic.Int64
	Retries   atomic.Int64
}

// CollectMetrics snapshots Counters into the OpMetrics response shape.
func CollectMetrics() MetricsData {
	return MetricsData{
		Outcomes: map[string]int64{
			"created":  Counters.Created.Load(),
			"merged":   Counters.Merged.Load(),
			"conflict": Counters.Conflicts.Load(),
		},
		RetryCount: Counters.Retries.Load(),
	}
}
