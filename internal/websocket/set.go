package websocket

import (
	"context"
	"log/slog"
	"sync"

	ws "nhooyr.io/websocket"
)

// Set holds the open peers so a message can be fanned out to all of them
// and they can be closed together on shutdown.
type Set struct {
	mu       sync.RWMutex
	peers    map[*Peer]struct{}
	log      *slog.Logger
	onChange func(count int)
}

// NewSet creates an empty set. onChange, if not nil, is called with the new
// size after every Add and Remove that changed it.
func NewSet(logger *slog.Logger, onChange func(count int)) *Set {
	if logger == nil {
		logger = slog.Default()
	}
	return &Set{
		peers:    make(map[*Peer]struct{}),
		log:      logger,
		onChange: onChange,
	}
}

// Add puts p in the set.
func (s *Set) Add(p *Peer) {
	s.mu.Lock()
	s.peers[p] = struct{}{}
	n := len(s.peers)
	s.mu.Unlock()
	if s.onChange != nil {
		s.onChange(n)
	}
}

// Remove takes p out of the set. Removing an absent peer does nothing.
func (s *Set) Remove(p *Peer) {
	s.mu.Lock()
	if _, ok := s.peers[p]; !ok {
		s.mu.Unlock()
		return
	}
	delete(s.peers, p)
	n := len(s.peers)
	s.mu.Unlock()
	if s.onChange != nil {
		s.onChange(n)
	}
}

// Len returns the number of peers.
func (s *Set) Len() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.peers)
}

func (s *Set) snapshot() []*Peer {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]*Peer, 0, len(s.peers))
	for p := range s.peers {
		out = append(out, p)
	}
	return out
}

// Broadcast queues v on every peer and returns how many accepted it. A peer
// whose queue is full has fallen too far behind and is aborted.
func (s *Set) Broadcast(v any) int {
	queued := 0
	for _, p := range s.snapshot() {
		if p.Enqueue(v) {
			queued++
			continue
		}
		s.log.Debug("peer not keeping up, dropping", slog.String("remote", p.Remote()))
		p.Abort()
	}
	return queued
}

// CloseAll sends a close frame to every peer and waits for the closes to
// complete or for ctx to expire.
func (s *Set) CloseAll(ctx context.Context) {
	peers := s.snapshot()
	if len(peers) == 0 {
		return
	}

	s.log.Info("closing websocket peers", slog.Int("count", len(peers)))

	var wg sync.WaitGroup
	wg.Add(len(peers))
	for _, p := range peers {
		go func(p *Peer) {
			defer wg.Done()
			_ = p.Close(ctx, ws.StatusGoingAway, "server shutting down")
		}(p)
	}

	done := make(chan struct{})
	go func() {
		wg.Wait()
		close(done)
	}()

	select {
	case <-done:
		s.log.Debug("websocket peers closed")
	case <-ctx.Done():
		s.log.Warn("shutdown timeout reached, some websocket peers may not have closed cleanly")
	}
}
