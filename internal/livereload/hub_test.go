package livereload

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/onosproject/gui-devproxy/internal/metrics"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	ws "nhooyr.io/websocket"
)

func TestNewMessage(t *testing.T) {
	tests := []struct {
		name  string
		paths []string
		want  string
	}{
		{"stylesheets only", []string{"/a/app/x.css", "/a/app/y.CSS"}, TypeCSS},
		{"mixed", []string{"/a/app/x.css", "/a/app/x.js"}, TypeReload},
		{"script", []string{"/a/app/x.js"}, TypeReload},
		{"nothing", nil, TypeReload},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			msg := NewMessage(tt.paths)
			assert.Equal(t, tt.want, msg.Type)
			assert.Len(t, msg.Paths, len(tt.paths))
		})
	}
}

func dialHub(t *testing.T, ctx context.Context, url string) *ws.Conn {
	t.Helper()
	c, _, err := ws.Dial(ctx, "ws"+url[4:], nil)
	require.NoError(t, err)
	return c
}

func waitForClients(t *testing.T, h *Hub, n int) {
	t.Helper()
	deadline := time.Now().Add(5 * time.Second)
	for h.Clients() != n {
		if time.Now().After(deadline) {
			t.Fatalf("expected %d clients, got %d", n, h.Clients())
		}
		time.Sleep(10 * time.Millisecond)
	}
}

func TestHub_BroadcastReachesEveryClient(t *testing.T) {
	m := metrics.New()
	hub := NewHub(WithHubMetrics(m))
	srv := httptest.NewServer(hub)
	defer srv.Close()

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	a := dialHub(t, ctx, srv.URL)
	defer a.CloseNow()
	b := dialHub(t, ctx, srv.URL)
	defer b.CloseNow()
	waitForClients(t, hub, 2)
	assert.Equal(t, 2.0, testutil.ToFloat64(m.LiveReloadClients))

	n := hub.Broadcast([]string{"/gui/app/onos.css"})
	assert.Equal(t, 2, n)

	for _, c := range []*ws.Conn{a, b} {
		_, data, err := c.Read(ctx)
		require.NoError(t, err)
		var msg Message
		require.NoError(t, json.Unmarshal(data, &msg))
		assert.Equal(t, TypeCSS, msg.Type)
		assert.Equal(t, []string{"/gui/app/onos.css"}, msg.Paths)
	}
	assert.Equal(t, 1.0, testutil.ToFloat64(m.ReloadBroadcasts))
}

func TestHub_ClientDisconnectUnregisters(t *testing.T) {
	hub := NewHub()
	srv := httptest.NewServer(hub)
	defer srv.Close()

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	c := dialHub(t, ctx, srv.URL)
	waitForClients(t, hub, 1)

	c.Close(ws.StatusNormalClosure, "bye")
	waitForClients(t, hub, 0)
}

func TestHub_Close(t *testing.T) {
	hub := NewHub()
	srv := httptest.NewServer(hub)
	defer srv.Close()

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	c := dialHub(t, ctx, srv.URL)
	defer c.CloseNow()
	waitForClients(t, hub, 1)

	readErr := make(chan error, 1)
	go func() {
		_, _, err := c.Read(ctx)
		readErr <- err
	}()

	hub.Close(ctx)

	select {
	case err := <-readErr:
		assert.Equal(t, ws.StatusGoingAway, ws.CloseStatus(err))
	case <-time.After(5 * time.Second):
		t.Fatal("client was not closed")
	}
	waitForClients(t, hub, 0)
}

func TestHub_PlainRequestRejected(t *testing.T) {
	hub := NewHub()
	rec := httptest.NewRecorder()
	hub.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/__livereload", nil))

	assert.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Zero(t, hub.Clients())
}

func TestHub_BroadcastWithoutClients(t *testing.T) {
	hub := NewHub()
	assert.Zero(t, hub.Broadcast([]string{"/x.js"}))
}
