package websocket

import (
	"context"
	"sync"
	"testing"
	"time"

	ws "nhooyr.io/websocket"
	"nhooyr.io/websocket/wsjson"
)

func TestSet_AddRemove(t *testing.T) {
	var mu sync.Mutex
	var counts []int
	s := NewSet(nil, func(n int) {
		mu.Lock()
		counts = append(counts, n)
		mu.Unlock()
	})

	a, b := &Peer{}, &Peer{}
	s.Add(a)
	s.Add(b)
	if s.Len() != 2 {
		t.Fatalf("Len() = %d, want 2", s.Len())
	}
	s.Remove(a)
	s.Remove(a)
	s.Remove(b)
	if s.Len() != 0 {
		t.Fatalf("Len() = %d, want 0", s.Len())
	}

	mu.Lock()
	defer mu.Unlock()
	want := []int{1, 2, 1, 0}
	if len(counts) != len(want) {
		t.Fatalf("onChange calls = %v, want %v", counts, want)
	}
	for i := range want {
		if counts[i] != want[i] {
			t.Errorf("onChange calls = %v, want %v", counts, want)
			break
		}
	}
}

func TestSet_Broadcast(t *testing.T) {
	s := NewSet(nil, nil)
	pairs := []connPair{newConnPair(t), newConnPair(t)}
	for _, pair := range pairs {
		s.Add(NewPeer(pair.server.CloseRead(context.Background()), pair.server, "browser"))
	}

	if n := s.Broadcast(map[string]string{"type": "reload"}); n != 2 {
		t.Errorf("Broadcast() = %d, want 2", n)
	}

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	for i, pair := range pairs {
		var got map[string]string
		if err := wsjson.Read(ctx, pair.client, &got); err != nil {
			t.Fatalf("client %d read error: %v", i, err)
		}
		if got["type"] != "reload" {
			t.Errorf("client %d got %v", i, got)
		}
	}
}

func TestSet_BroadcastAbortsPeerThatFellBehind(t *testing.T) {
	pair := newConnPair(t)
	// No write loop drains this queue.
	slow := &Peer{
		inner:  pair.server,
		remote: "slow",
		opts:   applyOptions(nil),
		queue:  make(chan any, 1),
		cancel: func() {},
		done:   make(chan struct{}),
	}
	slow.queue <- "stale"

	s := NewSet(nil, nil)
	s.Add(slow)

	if n := s.Broadcast("fresh"); n != 0 {
		t.Errorf("Broadcast() = %d, want 0", n)
	}
	if !slow.closing.Load() {
		t.Error("expected the slow peer to be aborted")
	}

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if _, _, err := pair.client.Read(ctx); err == nil {
		t.Error("expected the client connection to be gone")
	}
}

func TestSet_CloseAll(t *testing.T) {
	s := NewSet(nil, nil)
	pairs := []connPair{newConnPair(t), newConnPair(t)}
	for _, pair := range pairs {
		s.Add(NewPeer(pair.server.CloseRead(context.Background()), pair.server, "browser"))
	}

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	statuses := make(chan ws.StatusCode, len(pairs))
	for _, pair := range pairs {
		go func(c *ws.Conn) {
			_, _, err := c.Read(ctx)
			statuses <- ws.CloseStatus(err)
		}(pair.client)
	}

	s.CloseAll(ctx)

	for range pairs {
		select {
		case code := <-statuses:
			if code != ws.StatusGoingAway {
				t.Errorf("close status = %v, want %v", code, ws.StatusGoingAway)
			}
		case <-time.After(5 * time.Second):
			t.Fatal("timed out waiting for close frame")
		}
	}
}

func TestSet_CloseAllEmpty(t *testing.T) {
	s := NewSet(nil, nil)
	ctx, cancel := context.WithTimeout(context.Background(), time.Second)
	defer cancel()
	s.CloseAll(ctx)
}

func TestNewSet_NilLogger(t *testing.T) {
	if s := NewSet(nil, nil); s.log == nil {
		t.Error("expected default logger")
	}
}
