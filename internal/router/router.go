// Package router decides, per request, whether a GUI request is served from
// source by the local file origin or passed through to the ONOS backend.
//
// Three decisions exist and are evaluated in order:
//
//	ExternalView  /onos/ui/app/view/<name>/...  where <name> is not a core view
//	CoreScript    any other *.js except the bootstrap script
//	Passthrough   everything else
//
// External views win over core scripts because an application's own view
// scripts live in that application's resource folder, not in the core GUI.
package router

import (
	"fmt"
	"log/slog"
	"net/http"
	"regexp"
	"strings"

	"github.com/onosproject/gui-devproxy/internal/metrics"
	"github.com/onosproject/gui-devproxy/internal/views"
)

// Kind is the routing decision for a request.
type Kind int

const (
	// Passthrough forwards the request unmodified to the primary target.
	Passthrough Kind = iota
	// ExternalView serves a view contributed by an application from that
	// application's bundled resources.
	ExternalView
	// CoreScript serves a core GUI script from the GUI source tree.
	CoreScript
)

func (k Kind) String() string {
	switch k {
	case Passthrough:
		return "passthrough"
	case ExternalView:
		return "external-view"
	case CoreScript:
		return "core-script"
	default:
		return "unknown"
	}
}

// Decision is the result of classifying a request path. View is only set
// for ExternalView.
type Decision struct {
	Kind Kind
	View string
}

// Origin names the upstream a request is sent to.
type Origin string

const (
	// OriginPrimary is the ONOS backend, reached by passing the request on.
	OriginPrimary Origin = "primary"
	// OriginSource is the local origin serving the repository file tree.
	OriginSource Origin = "source"
)

// Route is where a decision sends a request and under which path.
type Route struct {
	Path   string
	Origin Origin
}

// Rules holds the path prefixes used for classification and rewriting.
// Prefixes are normalized to start and end with '/'.
type Rules struct {
	// MountPrefix is the URL prefix the GUI is served under.
	MountPrefix string
	// AppsPrefix is the source-tree directory holding applications.
	AppsPrefix string
	// AppResources is the path of an application's bundled resources,
	// relative to the application directory.
	AppResources string
	// CoreSourcePrefix is the source-tree directory of the core GUI.
	CoreSourcePrefix string
	// BootstrapScript is the entry script the backend must template; it is
	// never rewritten.
	BootstrapScript string
}

// DefaultRules returns the ONOS source layout.
func DefaultRules() Rules {
	return Rules{
		MountPrefix:      "/onos/ui/",
		AppsPrefix:       "/apps/",
		AppResources:     "/app/src/main/resources/",
		CoreSourcePrefix: "/web/gui/src/main/webapp/",
		BootstrapScript:  "/onos/ui/onos.js",
	}
}

func normalizePrefix(p string) string {
	if p == "" {
		return "/"
	}
	if !strings.HasPrefix(p, "/") {
		p = "/" + p
	}
	if !strings.HasSuffix(p, "/") {
		p = p + "/"
	}
	return p
}

func (r Rules) normalized() (Rules, error) {
	if strings.Trim(r.MountPrefix, "/") == "" {
		return Rules{}, fmt.Errorf("mount prefix must not be empty")
	}
	if strings.TrimSpace(r.BootstrapScript) == "" {
		return Rules{}, fmt.Errorf("bootstrap script must not be empty")
	}
	r.MountPrefix = normalizePrefix(r.MountPrefix)
	r.AppsPrefix = normalizePrefix(r.AppsPrefix)
	r.AppResources = normalizePrefix(r.AppResources)
	r.CoreSourcePrefix = normalizePrefix(r.CoreSourcePrefix)
	return r, nil
}

// ViewPattern returns the expression extracting the view name from
// <mount>app/view/<name>/<rest>. The name stops at the next '/'.
func (r Rules) ViewPattern() *regexp.Regexp {
	return regexp.MustCompile("^" + regexp.QuoteMeta(normalizePrefix(r.MountPrefix)) + `app/view/([^/]+)/.+`)
}

// Router classifies requests and sends rewritten ones to the source origin.
// It holds no mutable state.
type Router struct {
	rules       Rules
	viewPattern *regexp.Regexp
	views       *views.Registry
	source      http.Handler
	logger      *slog.Logger
	metrics     *metrics.Metrics
}

// Option configures a Router.
type Option func(*Router)

// WithLogger sets the logger.
func WithLogger(l *slog.Logger) Option {
	return func(rt *Router) { rt.logger = l }
}

// WithMetrics sets the metrics sink.
func WithMetrics(m *metrics.Metrics) Option {
	return func(rt *Router) { rt.metrics = m }
}

// New creates a Router. registry holds the core views; source serves
// rewritten requests.
func New(rules Rules, registry *views.Registry, source http.Handler, opts ...Option) (*Router, error) {
	rules, err := rules.normalized()
	if err != nil {
		return nil, fmt.Errorf("invalid routing rules: %w", err)
	}
	if registry == nil {
		registry = views.NewRegistry()
	}
	rt := &Router{
		rules:       rules,
		viewPattern: rules.ViewPattern(),
		views:       registry,
		source:      source,
		logger:      slog.Default(),
	}
	for _, opt := range opts {
		opt(rt)
	}
	if rt.logger == nil {
		rt.logger = slog.Default()
	}
	return rt, nil
}

// Rules returns the normalized rules.
func (rt *Router) Rules() Rules {
	return rt.rules
}

// Classify returns the decision for path.
func (rt *Router) Classify(path string) Decision {
	if m := rt.viewPattern.FindStringSubmatch(path); m != nil && !rt.views.Contains(m[1]) {
		return Decision{Kind: ExternalView, View: m[1]}
	}
	if strings.HasSuffix(path, ".js") && path != rt.rules.BootstrapScript {
		return Decision{Kind: CoreScript}
	}
	return Decision{Kind: Passthrough}
}

// Route returns the rewritten path and origin for a decision. Only the first
// occurrence of the mount prefix is replaced.
func (rt *Router) Route(d Decision, path string) Route {
	switch d.Kind {
	case ExternalView:
		to := rt.rules.AppsPrefix + d.View + rt.rules.AppResources
		return Route{Path: strings.Replace(path, rt.rules.MountPrefix, to, 1), Origin: OriginSource}
	case CoreScript:
		return Route{Path: strings.Replace(path, rt.rules.MountPrefix, rt.rules.CoreSourcePrefix, 1), Origin: OriginSource}
	default:
		return Route{Path: path, Origin: OriginPrimary}
	}
}

// Resolve classifies and routes path in one step.
func (rt *Router) Resolve(path string) (Decision, Route) {
	d := rt.Classify(path)
	return d, rt.Route(d, path)
}

// Middleware sends rewritten requests to the source origin and passes every
// other request to next.
func (rt *Router) Middleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		d, route := rt.Resolve(r.URL.Path)
		rt.metrics.ObserveDecision(d.Kind.String())

		if route.Origin == OriginPrimary {
			next.ServeHTTP(w, r)
			return
		}

		rt.logger.Debug("rewriting request",
			"decision", d.Kind.String(),
			"view", d.View,
			"from", r.URL.Path,
			"to", route.Path,
		)
		r2 := r.Clone(r.Context())
		r2.URL.Path = route.Path
		r2.URL.RawPath = ""
		r2.RequestURI = ""
		rt.source.ServeHTTP(w, r2)
	})
}
