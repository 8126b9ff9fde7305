package relay

import (
	"sync/atomic"

	"github.com/VictoriaMetrics/metrics"
)

// Process-wide counters scraped by internal/debugsrv's /metrics handler via
// metrics.WritePrometheus against the package's default set -- the teacher
// declares this dependency in go.mod but never wires it into any stage; it
// is exercised here instead.
var (
	messagesMatchedTotal = metrics.NewCounter("messages_matched_total")
	messagesDroppedTotal = metrics.NewCounter("messages_dropped_total")

	activeRegistry atomic.Pointer[Registry]
	_              = metrics.NewGauge("subscribers_active", func() float64 {
		r := activeRegistry.Load()
		if r == nil {
			return 0
		}
		return float64(r.Size())
	})
)
