package app

import (
	"net"
	"net/http"
	"strconv"
	"time"

	"tracker.transitlive.org/internal/metrics"
)

// latencyTrackingRoundTripper wraps another RoundTripper and records the
// duration of every outgoing request in metrics.OutgoingLatency, labeled by
// URL (without query), method and status.
type latencyTrackingRoundTripper struct {
	next http.RoundTripper
}

func (rt *latencyTrackingRoundTripper) RoundTrip(req *http.Request) (*http.Response, error) {
	start := time.Now()
	resp, err := rt.next.RoundTrip(req)
	duration := time.Since(start).Seconds()

	status := "error"
	if err == nil && resp != nil {
		status = strconv.Itoa(resp.StatusCode)
	}
	safeURL := req.URL.Scheme + "://" + req.URL.Host + req.URL.Path

	metrics.OutgoingLatency.WithLabelValues(safeURL, req.Method, status).Observe(duration)
	return resp, err
}

// NewPooledClient returns the HTTP client used for outbound calls such as
// remote config fetches. Connections are pooled and kept alive between
// polls, timeouts are short enough to fail fast on an unreachable host, and
// every request is instrumented for latency.
func NewPooledClient() *http.Client {
	transport := &http.Transport{
		MaxIdleConns:        100,
		MaxIdleConnsPerHost: 10,
		IdleConnTimeout:     90 * time.Second,
		DialContext: (&net.Dialer{
			Timeout:   5 * time.Second,
			KeepAlive: 30 * time.Second,
		}).DialContext,
		TLSHandshakeTimeout: 5 * time.Second,
	}

	return &http.Client{
		Transport: &latencyTrackingRoundTripper{next: transport},
		Timeout:   10 * time.Second,
	}
}
