package server

import (
	"fmt"
	"log/slog"
	"net/http"
	"net/http/httputil"
	"net/url"
	"strings"

	"github.com/onosproject/gui-devproxy/internal/metrics"
)

// Engine forwards requests, including WebSocket upgrades, to a single
// origin. Failures never escape it: every forwarding failure becomes a
// ForwardingError and a 500 response.
type Engine struct {
	origin  string
	target  *url.URL
	proxy   *httputil.ReverseProxy
	logger  *slog.Logger
	metrics *metrics.Metrics
}

// EngineOption configures an Engine.
type EngineOption func(*Engine)

// WithEngineLogger sets the logger used for upgrade and error lines.
func WithEngineLogger(l *slog.Logger) EngineOption {
	return func(e *Engine) { e.logger = l }
}

// WithEngineMetrics sets the metrics sink.
func WithEngineMetrics(m *metrics.Metrics) EngineOption {
	return func(e *Engine) { e.metrics = m }
}

// NewDevProxyHandler creates a reverse proxy named origin that forwards all
// requests to target. The Host header is rewritten to the target host.
func NewDevProxyHandler(origin, target string, opts ...EngineOption) (*Engine, error) {
	u, err := url.Parse(target)
	if err != nil {
		return nil, fmt.Errorf("parse %s target: %w", origin, err)
	}
	if u.Scheme != "http" && u.Scheme != "https" {
		return nil, fmt.Errorf("%s target %q: scheme must be http or https", origin, target)
	}
	if u.Host == "" {
		return nil, fmt.Errorf("%s target %q: missing host", origin, target)
	}

	e := &Engine{
		origin: origin,
		target: u,
		logger: slog.Default(),
	}
	for _, opt := range opts {
		opt(e)
	}
	if e.logger == nil {
		e.logger = slog.Default()
	}

	e.proxy = &httputil.ReverseProxy{
		Rewrite: func(pr *httputil.ProxyRequest) {
			pr.SetURL(u)
			pr.Out.Host = u.Host
			pr.SetXForwarded()
		},
		ErrorHandler: e.OnError,
	}
	return e, nil
}

// Origin returns the name of the origin.
func (e *Engine) Origin() string {
	return e.origin
}

// Target returns the URL requests are forwarded to.
func (e *Engine) Target() *url.URL {
	u := *e.target
	return &u
}

func (e *Engine) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	if isUpgrade(r) {
		e.OnUpgrade(r)
	}
	e.proxy.ServeHTTP(w, r)
}

// OnUpgrade is called before a WebSocket upgrade is relayed to the origin.
func (e *Engine) OnUpgrade(r *http.Request) {
	e.logger.Info("websocket upgrade",
		"origin", e.origin,
		"path", r.URL.Path,
		"remote", r.RemoteAddr,
	)
	e.metrics.ObserveUpgrade(e.origin)
}

// OnError handles a failure to forward r. The response is a 500 with a
// text/plain content type and no body.
func (e *Engine) OnError(w http.ResponseWriter, r *http.Request, err error) {
	ferr := &ForwardingError{
		Origin: e.origin,
		Method: r.Method,
		Path:   r.URL.Path,
		Err:    err,
	}
	if ferr.ClientGone() {
		e.logger.Debug("client went away", "origin", e.origin, "path", r.URL.Path, "error", ferr)
	} else {
		e.logger.Error("proxy error", "origin", e.origin, "path", r.URL.Path, "error", ferr)
	}
	e.metrics.ObserveForwardError(e.origin)

	w.Header().Set("Content-Type", "text/plain")
	w.WriteHeader(http.StatusInternalServerError)
}

func isUpgrade(r *http.Request) bool {
	if r.Header.Get("Upgrade") == "" {
		return false
	}
	for _, v := range r.Header.Values("Connection") {
		for _, tok := range strings.Split(v, ",") {
			if strings.EqualFold(strings.TrimSpace(tok), "upgrade") {
				return true
			}
		}
	}
	return false
}
