package livereload

import (
	"bytes"
	"encoding/json"
	"fmt"
	"log/slog"
	"net/http"
	"sync"
	"time"
)

const defaultKeepaliveInterval = 15 * time.Second

// Stream delivers reload notifications as server-sent events to browsers
// that cannot open a WebSocket.
type Stream struct {
	logger            *slog.Logger
	clients           map[chan []byte]struct{}
	keepaliveInterval time.Duration
	onChange          func()
	mu                sync.Mutex
}

func newStream(logger *slog.Logger, keepaliveInterval time.Duration, onChange func()) *Stream {
	if keepaliveInterval <= 0 {
		keepaliveInterval = defaultKeepaliveInterval
	}
	return &Stream{
		logger:            logger,
		clients:           make(map[chan []byte]struct{}),
		keepaliveInterval: keepaliveInterval,
		onChange:          onChange,
	}
}

func formatEvent(msg Message) ([]byte, error) {
	data, err := json.Marshal(msg)
	if err != nil {
		return nil, fmt.Errorf("marshal reload event: %w", err)
	}
	var buf bytes.Buffer
	fmt.Fprintf(&buf, "event: %s\ndata: %s\n\n", msg.Type, data)
	return buf.Bytes(), nil
}

// publish sends msg to every client using non-blocking sends.
func (s *Stream) publish(msg Message) int {
	evt, err := formatEvent(msg)
	if err != nil {
		s.logger.Debug("failed to format reload event", "error", err)
		return 0
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	for ch := range s.clients {
		select {
		case ch <- evt:
		default:
			// Client too slow, a reload is already queued for it
		}
	}
	return len(s.clients)
}

func (s *Stream) count() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.clients)
}

func (s *Stream) addClient(ch chan []byte) {
	s.mu.Lock()
	s.clients[ch] = struct{}{}
	s.mu.Unlock()
	s.changed()
}

func (s *Stream) removeClient(ch chan []byte) {
	s.mu.Lock()
	_, ok := s.clients[ch]
	delete(s.clients, ch)
	s.mu.Unlock()
	if ok {
		s.changed()
	}
}

func (s *Stream) changed() {
	if s.onChange != nil {
		s.onChange()
	}
}

// closeAll ends every open stream.
func (s *Stream) closeAll() {
	s.mu.Lock()
	for ch := range s.clients {
		close(ch)
		delete(s.clients, ch)
	}
	s.mu.Unlock()
	s.changed()
}

func (s *Stream) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	flusher, ok := w.(http.Flusher)
	if !ok {
		http.Error(w, "streaming not supported", http.StatusInternalServerError)
		return
	}

	w.Header().Set("Content-Type", "text/event-stream")
	w.Header().Set("Cache-Control", "no-cache")
	w.Header().Set("Connection", "keep-alive")

	clientCh := make(chan []byte, 4)
	s.addClient(clientCh)
	defer s.removeClient(clientCh)

	if err := writeAndFlush(w, flusher, []byte(":connected\n\n")); err != nil {
		return
	}

	keepalive := time.NewTicker(s.keepaliveInterval)
	defer keepalive.Stop()

	for {
		select {
		case <-r.Context().Done():
			return
		case evt, ok := <-clientCh:
			if !ok {
				return
			}
			if err := writeAndFlush(w, flusher, evt); err != nil {
				s.logger.Debug("failed to write reload event", "error", err)
				return
			}
			keepalive.Reset(s.keepaliveInterval)
		case <-keepalive.C:
			if err := writeAndFlush(w, flusher, []byte(":keepalive\n\n")); err != nil {
				return
			}
		}
	}
}

func writeAndFlush(w http.ResponseWriter, flusher http.Flusher, payload []byte) error {
	if _, err := w.Write(payload); err != nil {
		return err
	}
	flusher.Flush()
	return nil
}
