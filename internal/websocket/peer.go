package websocket

import (
	"context"
	"log/slog"
	"sync/atomic"
	"time"

	ws "nhooyr.io/websocket"
	"nhooyr.io/websocket/wsjson"
)

// Peer is a server-side connection that only receives. Messages are queued
// and written by a single loop that also sends keepalive pings; a peer that
// misses a pong or fails a write is dropped.
type Peer struct {
	inner   *ws.Conn
	remote  string
	opts    Options
	queue   chan any
	cancel  context.CancelFunc
	done    chan struct{}
	closing atomic.Bool
}

// NewPeer starts the write loop for an accepted connection. Pongs are only
// processed while something reads the connection, so callers pass the
// context returned by CloseRead.
func NewPeer(ctx context.Context, c *ws.Conn, remote string, options ...Option) *Peer {
	opts := applyOptions(options)
	ctx, cancel := context.WithCancel(ctx)
	p := &Peer{
		inner:  c,
		remote: remote,
		opts:   opts,
		queue:  make(chan any, opts.QueueSize),
		cancel: cancel,
		done:   make(chan struct{}),
	}
	go p.writeLoop(ctx)
	return p
}

// Remote returns the peer's address as given to NewPeer.
func (p *Peer) Remote() string {
	return p.remote
}

// Done is closed once the write loop has stopped.
func (p *Peer) Done() <-chan struct{} {
	return p.done
}

// Enqueue queues v to be written as JSON. It never blocks and reports false
// when the queue is full or the peer is gone.
func (p *Peer) Enqueue(v any) bool {
	if p.closing.Load() {
		return false
	}
	select {
	case <-p.done:
		return false
	default:
	}
	select {
	case p.queue <- v:
		return true
	default:
		return false
	}
}

// Close stops the write loop, waiting for it no longer than ctx allows, and
// sends a close frame. Queued messages that were not written are dropped.
func (p *Peer) Close(ctx context.Context, code ws.StatusCode, reason string) error {
	if !p.closing.CompareAndSwap(false, true) {
		return nil
	}
	p.cancel()
	select {
	case <-p.done:
	case <-ctx.Done():
	}
	return p.inner.Close(code, reason)
}

// Abort drops the connection without a close handshake.
func (p *Peer) Abort() {
	if !p.closing.CompareAndSwap(false, true) {
		return
	}
	p.cancel()
	p.inner.CloseNow()
}

func (p *Peer) writeLoop(ctx context.Context) {
	defer close(p.done)

	ticker := time.NewTicker(p.opts.PingInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case v := <-p.queue:
			wctx, cancel := context.WithTimeout(ctx, p.opts.WriteTimeout)
			err := wsjson.Write(wctx, p.inner, v)
			cancel()
			if err != nil {
				p.fail(ctx, "write failed", err)
				return
			}
		case <-ticker.C:
			pctx, cancel := context.WithTimeout(ctx, p.opts.PongTimeout)
			err := p.inner.Ping(pctx)
			cancel()
			if err != nil {
				p.fail(ctx, "pong timeout", err)
				return
			}
		}
	}
}

func (p *Peer) fail(ctx context.Context, msg string, err error) {
	if ctx.Err() != nil {
		return
	}
	p.opts.Logger.Warn(msg+", dropping peer", slog.String("remote", p.remote), slog.String("error", err.Error()))
	p.inner.CloseNow()
}
