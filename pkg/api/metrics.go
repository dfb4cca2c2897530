package api

import (
	"sync"

	"github.com/waddlebot/core/pkg/router"
)

// metricsCollector accumulates in-process counters for GET
// /api/v1/router/metrics. spec.md's Non-goals exclude a dedicated
// observability stack (see DESIGN.md), so this is a plain mutex-guarded
// counter set rather than a Prometheus registry.
type metricsCollector struct {
	mu     sync.Mutex
	states map[router.State]int64
}

func newMetricsCollector() *metricsCollector {
	return &metricsCollector{states: make(map[router.State]int64)}
}

func (m *metricsCollector) record(r router.Result) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.states[r.State]++
}

func (m *metricsCollector) snapshot() MetricsResponse {
	m.mu.Lock()
	defer m.mu.Unlock()

	resp := MetricsResponse{StateCounts: make(map[string]int64, len(m.states))}
	for state, count := range m.states {
		resp.StateCounts[string(state)] = count
		resp.EventsReceived += count
		switch state {
		case router.StateCompleted, router.StateAwaitingResponse:
			resp.EventsCompleted += count
		case router.StateRejected:
			resp.EventsRejected += count
		case router.StateRateLimited:
			resp.EventsRateLimited += count
		case router.StateFailed, router.StateTimedOut, router.StateUnauthorized:
			resp.EventsFailed += count
		}
	}
	return resp
}
