package server

import (
	"encoding/json"
	"net/http"

	"github.com/onosproject/gui-devproxy/internal/health"
	"github.com/onosproject/gui-devproxy/internal/metrics"
	"github.com/onosproject/gui-devproxy/internal/router"
	"github.com/onosproject/gui-devproxy/internal/views"
)

// Paths served by the dev proxy itself. Everything else belongs to the GUI.
const (
	LiveReloadPath       = "/__livereload"
	LiveReloadEventsPath = "/__livereload/events"
	LiveReloadScriptPath = "/__livereload.js"
	MetricsPath          = "/__devproxy/metrics"
	ViewsPath            = "/__devproxy/views"
	HealthPath           = "/__devproxy/health"
)

// HandlerConfig holds the parts assembled by NewHandler.
type HandlerConfig struct {
	// Router sends rewritten requests to the source origin.
	Router *router.Router
	// Primary receives every request the router passes through.
	Primary http.Handler
	// The live-reload handlers are optional.
	LiveReload       http.Handler
	LiveReloadEvents http.Handler
	LiveReloadScript http.Handler
	Metrics          *metrics.Metrics
	Views            *views.Registry
	// Health reports origin reachability when set.
	Health *health.Checker
}

// ViewsResponse is the body of the views endpoint.
type ViewsResponse struct {
	Views []string `json:"views"`
	Count int      `json:"count"`
}

// HealthResponse is the body of the health endpoint.
type HealthResponse struct {
	Origins []health.OriginStatus `json:"origins"`
}

// NewHandler builds the proxy's HTTP surface.
func NewHandler(cfg HandlerConfig) http.Handler {
	mux := http.NewServeMux()

	if cfg.LiveReload != nil {
		mux.Handle(LiveReloadPath, cfg.LiveReload)
	}
	if cfg.LiveReloadEvents != nil {
		mux.Handle("GET "+LiveReloadEventsPath, cfg.LiveReloadEvents)
	}
	if cfg.LiveReloadScript != nil {
		mux.Handle(LiveReloadScriptPath, cfg.LiveReloadScript)
	}
	mux.Handle("GET "+MetricsPath, cfg.Metrics.Handler())
	mux.HandleFunc("GET "+ViewsPath, func(w http.ResponseWriter, r *http.Request) {
		names := cfg.Views.Names()
		if names == nil {
			names = []string{}
		}
		w.Header().Set("Content-Type", "application/json")
		_ = json.NewEncoder(w).Encode(ViewsResponse{Views: names, Count: len(names)})
	})
	if cfg.Health != nil {
		mux.HandleFunc("GET "+HealthPath, func(w http.ResponseWriter, r *http.Request) {
			w.Header().Set("Content-Type", "application/json")
			_ = json.NewEncoder(w).Encode(HealthResponse{Origins: cfg.Health.Snapshot()})
		})
	}
	mux.Handle("/", cfg.Router.Middleware(cfg.Primary))

	return mux
}
