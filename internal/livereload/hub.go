package livereload

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"path/filepath"
	"strings"
	"time"

	"github.com/onosproject/gui-devproxy/internal/metrics"
	"github.com/onosproject/gui-devproxy/internal/websocket"
	ws "nhooyr.io/websocket"
)

// Message types sent to browsers.
const (
	TypeReload = "reload"
	TypeCSS    = "css"
)

// Message is the notification pushed to every connected browser.
type Message struct {
	Type  string   `json:"type"`
	Paths []string `json:"paths"`
}

// NewMessage builds the notification for a set of changed files. Stylesheet
// only changes are announced as css so pages can swap styles in place.
func NewMessage(paths []string) Message {
	typ := TypeCSS
	if len(paths) == 0 {
		typ = TypeReload
	}
	for _, p := range paths {
		if !strings.EqualFold(filepath.Ext(p), ".css") {
			typ = TypeReload
			break
		}
	}
	out := make([]string, len(paths))
	for i, p := range paths {
		out[i] = filepath.ToSlash(p)
	}
	return Message{Type: typ, Paths: out}
}

// Hub is the WebSocket endpoint browsers connect to for reload
// notifications.
type Hub struct {
	peers          *websocket.Set
	stream         *Stream
	keepalive      time.Duration
	logger         *slog.Logger
	metrics        *metrics.Metrics
	originPatterns []string
	connOpts       []websocket.Option
}

// HubOption configures a Hub.
type HubOption func(*Hub)

// WithHubLogger sets the logger.
func WithHubLogger(l *slog.Logger) HubOption {
	return func(h *Hub) { h.logger = l }
}

// WithHubMetrics sets the metrics sink.
func WithHubMetrics(m *metrics.Metrics) HubOption {
	return func(h *Hub) { h.metrics = m }
}

// WithOriginPatterns sets the cross-origin hosts allowed to connect.
func WithOriginPatterns(patterns ...string) HubOption {
	return func(h *Hub) { h.originPatterns = patterns }
}

// WithConnOptions sets the options applied to every browser connection.
func WithConnOptions(opts ...websocket.Option) HubOption {
	return func(h *Hub) { h.connOpts = opts }
}

// WithKeepalive sets the interval of keepalive comments on event streams.
func WithKeepalive(d time.Duration) HubOption {
	return func(h *Hub) { h.keepalive = d }
}

// NewHub creates a hub with no clients.
func NewHub(opts ...HubOption) *Hub {
	h := &Hub{logger: slog.Default()}
	for _, opt := range opts {
		opt(h)
	}
	if h.logger == nil {
		h.logger = slog.Default()
	}
	h.stream = newStream(h.logger, h.keepalive, h.reportClients)
	h.peers = websocket.NewSet(h.logger, func(int) { h.reportClients() })
	h.connOpts = append([]websocket.Option{websocket.WithLogger(h.logger)}, h.connOpts...)
	return h
}

// ServeHTTP accepts a browser connection and holds it until either side
// closes it. Browsers never send anything.
func (h *Hub) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	c, err := websocket.Accept(w, r, h.originPatterns...)
	if err != nil {
		if !errors.Is(err, websocket.ErrNotUpgrade) {
			h.logger.Debug("live-reload accept failed", "remote", r.RemoteAddr, "error", err)
		}
		return
	}

	ctx := c.CloseRead(context.WithoutCancel(r.Context()))
	peer := websocket.NewPeer(ctx, c, r.RemoteAddr, h.connOpts...)
	h.peers.Add(peer)
	defer h.peers.Remove(peer)
	h.logger.Debug("live-reload client connected", "remote", r.RemoteAddr)

	select {
	case <-ctx.Done():
	case <-peer.Done():
	}
	closeCtx, cancel := context.WithTimeout(context.Background(), time.Second)
	defer cancel()
	_ = peer.Close(closeCtx, ws.StatusNormalClosure, "")
	h.logger.Debug("live-reload client disconnected", "remote", r.RemoteAddr)
}

// Events returns the server-sent events endpoint carrying the same
// notifications as the WebSocket.
func (h *Hub) Events() http.Handler {
	return h.stream
}

func (h *Hub) reportClients() {
	h.metrics.SetClients(h.Clients())
}

// Broadcast notifies every connected browser of the changed paths and
// returns the number of browsers notified. It never waits on a browser; one
// that has fallen behind is dropped.
func (h *Hub) Broadcast(paths []string) int {
	msg := NewMessage(paths)
	n := h.peers.Broadcast(msg) + h.stream.publish(msg)
	h.metrics.ObserveBroadcast()
	h.logger.Info("reload", "type", msg.Type, "files", len(paths), "clients", n)
	return n
}

// Clients returns the number of connected browsers.
func (h *Hub) Clients() int {
	return h.peers.Len() + h.stream.count()
}

// Close closes every client connection, waiting at most until ctx is done.
func (h *Hub) Close(ctx context.Context) {
	h.stream.closeAll()
	h.peers.CloseAll(ctx)
}
