// Package health periodically checks that the proxied origins are reachable
// so a stopped backend shows up in the log before the browser sees 500s.
package health

import (
	"context"
	"io"
	"log/slog"
	"net/http"
	"sort"
	"sync"
	"time"

	"github.com/onosproject/gui-devproxy/internal/metrics"
)

// DefaultInterval is the time between two check cycles.
const DefaultInterval = 10 * time.Second

// HTTPProber abstracts *http.Client for testability.
type HTTPProber interface {
	Do(req *http.Request) (*http.Response, error)
}

// Status is the result of the last check of an origin.
type Status string

const (
	StatusUnknown Status = "unknown"
	StatusUp      Status = "up"
	StatusDown    Status = "down"
)

// Origin is a named upstream to check.
type Origin struct {
	Name string
	URL  string
}

// OriginStatus is the last known state of an origin.
type OriginStatus struct {
	Name           string     `json:"name"`
	URL            string     `json:"url"`
	Status         Status     `json:"status"`
	HTTPCode       *int       `json:"httpCode,omitempty"`
	ResponseTimeMs int64      `json:"responseTimeMs"`
	Error          string     `json:"error,omitempty"`
	LastChecked    *time.Time `json:"lastChecked,omitempty"`
}

// Checker performs periodic reachability checks against the origins.
type Checker struct {
	origins  []Origin
	client   HTTPProber
	interval time.Duration
	logger   *slog.Logger
	metrics  *metrics.Metrics

	mu     sync.RWMutex
	status map[string]OriginStatus
}

// NewChecker creates a checker. If logger is nil, a no-op logger is used.
func NewChecker(origins []Origin, client HTTPProber, interval time.Duration, logger *slog.Logger, m *metrics.Metrics) *Checker {
	if logger == nil {
		logger = slog.New(slog.NewTextHandler(io.Discard, nil))
	}
	if interval <= 0 {
		interval = DefaultInterval
	}
	status := make(map[string]OriginStatus, len(origins))
	for _, o := range origins {
		status[o.Name] = OriginStatus{Name: o.Name, URL: o.URL, Status: StatusUnknown}
	}
	return &Checker{
		origins:  origins,
		client:   client,
		interval: interval,
		logger:   logger,
		metrics:  m,
		status:   status,
	}
}

// Run performs an immediate check on start, then checks at the configured
// interval. It returns nil when ctx is cancelled.
func (c *Checker) Run(ctx context.Context) error {
	c.CheckAll(ctx)

	ticker := time.NewTicker(c.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return nil
		case <-ticker.C:
			c.CheckAll(ctx)
		}
	}
}

// CheckAll checks every origin once, concurrently.
func (c *Checker) CheckAll(ctx context.Context) {
	var wg sync.WaitGroup
	wg.Add(len(c.origins))
	for _, o := range c.origins {
		go func(o Origin) {
			defer wg.Done()
			c.apply(o, c.probe(ctx, o))
		}(o)
	}
	wg.Wait()
}

// probe sends a GET to the origin. Any HTTP response, whatever its code,
// means the origin is up.
func (c *Checker) probe(ctx context.Context, o Origin) OriginStatus {
	res := OriginStatus{Name: o.Name, URL: o.URL}
	now := time.Now()
	res.LastChecked = &now

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, o.URL, nil)
	if err != nil {
		res.Status = StatusDown
		res.Error = err.Error()
		return res
	}

	start := time.Now()
	resp, err := c.client.Do(req)
	res.ResponseTimeMs = time.Since(start).Milliseconds()
	if err != nil {
		res.Status = StatusDown
		res.Error = err.Error()
		return res
	}
	defer resp.Body.Close()
	_, _ = io.Copy(io.Discard, io.LimitReader(resp.Body, 4096))

	code := resp.StatusCode
	res.Status = StatusUp
	res.HTTPCode = &code
	return res
}

func (c *Checker) apply(o Origin, res OriginStatus) {
	c.mu.Lock()
	previous := c.status[o.Name].Status
	c.status[o.Name] = res
	c.mu.Unlock()

	c.metrics.SetOriginUp(o.Name, res.Status == StatusUp)

	if res.Status != previous {
		switch {
		case res.Status == StatusDown:
			c.logger.Warn("origin unreachable", "origin", o.Name, "url", o.URL, "error", res.Error)
		case previous == StatusDown:
			c.logger.Info("origin reachable again", "origin", o.Name, "url", o.URL)
		default:
			c.logger.Info("origin reachable", "origin", o.Name, "url", o.URL)
		}
	}
	c.logger.Debug("origin check completed",
		"origin", o.Name,
		"status", string(res.Status),
		"responseTimeMs", res.ResponseTimeMs,
	)
}

// Snapshot returns the last known state of every origin, sorted by name.
func (c *Checker) Snapshot() []OriginStatus {
	c.mu.RLock()
	defer c.mu.RUnlock()
	out := make([]OriginStatus, 0, len(c.status))
	for _, s := range c.status {
		out = append(out, s)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Name < out[j].Name })
	return out
}
