package diag

import (
	"sort"
	"sync"
	"time"
)

// retention bounds how long individual calls are kept.
const retention = time.Hour

// Call is a single request to a backend endpoint.
type Call struct {
	Timestamp time.Time
	Success   bool
	Latency   time.Duration
	Error     string
}

// endpoint tracks calls to one backend endpoint.
type endpoint struct {
	name  string
	url   string
	calls []Call
}

// ConnectivityTracker records latency and outcome of backend calls per endpoint.
type ConnectivityTracker struct {
	mu        sync.Mutex
	endpoints map[string]*endpoint
	now       func() time.Time
}

// NewConnectivityTracker creates a new connectivity tracker.
func NewConnectivityTracker() *ConnectivityTracker {
	return &ConnectivityTracker{
		endpoints: make(map[string]*endpoint),
		now:       time.Now,
	}
}

// TrackSuccess records a successful call.
func (t *ConnectivityTracker) TrackSuccess(name, url string, latency time.Duration) {
	t.track(name, url, Call{Success: true, Latency: latency})
}

// TrackFailure records a failed call.
func (t *ConnectivityTracker) TrackFailure(name, url string, latency time.Duration, errorMsg string) {
	t.track(name, url, Call{Success: false, Latency: latency, Error: errorMsg})
}

func (t *ConnectivityTracker) track(name, url string, call Call) {
	t.mu.Lock()
	defer t.mu.Unlock()

	ep, ok := t.endpoints[name]
	if !ok {
		ep = &endpoint{name: name, url: url}
		t.endpoints[name] = ep
	}

	call.Timestamp = t.now().UTC()
	ep.calls = append(ep.calls, call)
	t.prune(ep)
}

// prune drops calls older than the retention window.
func (t *ConnectivityTracker) prune(ep *endpoint) {
	cutoff := t.now().Add(-retention)
	for i, call := range ep.calls {
		if call.Timestamp.After(cutoff) {
			ep.calls = ep.calls[i:]
			return
		}
	}
	ep.calls = ep.calls[:0]
}

// EndpointStats summarizes recent calls to one endpoint.
type EndpointStats struct {
	Name         string        `json:"name"`
	URL          string        `json:"url"`
	Status       string        `json:"status"`
	LastCall     time.Time     `json:"last_call"`
	Total        int           `json:"total_calls_1h"`
	SuccessRate  float64       `json:"success_rate_1h"`
	P50          time.Duration `json:"latency_p50"`
	P95          time.Duration `json:"latency_p95"`
	RecentErrors []string      `json:"recent_errors"`
}

// Stats returns per-endpoint statistics sorted by endpoint name.
func (t *ConnectivityTracker) Stats() []EndpointStats {
	t.mu.Lock()
	defer t.mu.Unlock()

	out := make([]EndpointStats, 0, len(t.endpoints))
	for _, ep := range t.endpoints {
		if len(ep.calls) == 0 {
			continue
		}

		var successes int
		var last time.Time
		latencies := make([]time.Duration, 0, len(ep.calls))
		recentErrors := make([]string, 0)

		for _, call := range ep.calls {
			if call.Success {
				successes++
			} else if len(recentErrors) < 5 {
				recentErrors = append(recentErrors, call.Error)
			}
			latencies = append(latencies, call.Latency)
			if call.Timestamp.After(last) {
				last = call.Timestamp
			}
		}

		rate := float64(successes) / float64(len(ep.calls))
		sort.Slice(latencies, func(i, j int) bool { return latencies[i] < latencies[j] })

		status := "healthy"
		if rate < 0.9 {
			status = "unhealthy"
		} else if rate < 0.95 {
			status = "degraded"
		}

		out = append(out, EndpointStats{
			Name:         ep.name,
			URL:          ep.url,
			Status:       status,
			LastCall:     last,
			Total:        len(ep.calls),
			SuccessRate:  rate,
			P50:          percentile(latencies, 0.50),
			P95:          percentile(latencies, 0.95),
			RecentErrors: recentErrors,
		})
	}

	sort.Slice(out, func(i, j int) bool { return out[i].Name < out[j].Name })
	return out
}

// percentile calculates the percentile of a sorted slice.
func percentile(sorted []time.Duration, p float64) time.Duration {
	if len(sorted) == 0 {
		return 0
	}
	return sorted[int(float64(len(sorted)-1)*p)]
}
