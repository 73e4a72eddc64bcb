package websocket

import (
	"log/slog"
	"time"
)

// Peer defaults.
const (
	DefaultPingInterval = 15 * time.Second
	DefaultPongTimeout  = 10 * time.Second
	DefaultWriteTimeout = 2 * time.Second
	DefaultQueueSize    = 8
)

// Options configures a Peer.
type Options struct {
	// PingInterval is the time between two keepalive pings.
	PingInterval time.Duration
	// PongTimeout bounds the wait for the answer to a ping.
	PongTimeout time.Duration
	// WriteTimeout bounds the write of a single queued message.
	WriteTimeout time.Duration
	// QueueSize is the number of messages a peer may fall behind before
	// Enqueue starts refusing new ones.
	QueueSize int
	Logger    *slog.Logger
}

// Option is a functional option for configuring a Peer.
type Option func(*Options)

// WithPingInterval sets the interval between server-sent pings.
func WithPingInterval(d time.Duration) Option {
	return func(o *Options) { o.PingInterval = d }
}

// WithPongTimeout sets the maximum time to wait for a pong reply.
func WithPongTimeout(d time.Duration) Option {
	return func(o *Options) { o.PongTimeout = d }
}

// WithWriteTimeout sets the deadline applied to each message write.
func WithWriteTimeout(d time.Duration) Option {
	return func(o *Options) { o.WriteTimeout = d }
}

// WithQueueSize sets the outbound queue length.
func WithQueueSize(n int) Option {
	return func(o *Options) { o.QueueSize = n }
}

// WithLogger sets the logger for the peer.
func WithLogger(l *slog.Logger) Option {
	return func(o *Options) { o.Logger = l }
}

func applyOptions(opts []Option) Options {
	o := Options{
		PingInterval: DefaultPingInterval,
		PongTimeout:  DefaultPongTimeout,
		WriteTimeout: DefaultWriteTimeout,
		QueueSize:    DefaultQueueSize,
	}
	for _, fn := range opts {
		fn(&o)
	}
	if o.Logger == nil {
		o.Logger = slog.Default()
	}
	if o.QueueSize < 1 {
		o.QueueSize = 1
	}
	return o
}
