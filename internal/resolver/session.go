package resolver

import (
	"context"
	"sync"
	"sync/atomic"
	"time"

	"github.com/ppiankov/kcal/internal/model"
)

// Default debounce windows
const (
	DefaultLocalDelay   = 150 * time.Millisecond
	DefaultNetworkDelay = 800 * time.Millisecond
)

// Update is a result delivered by a Session. At most one is delivered per
// sequence number.
type Update struct {
	Seq        uint64
	Query      Query
	Resolution model.Resolution
}

// Session debounces resolutions for one text input.
// Each Update cancels whatever the previous one scheduled. Results reach the
// callback only while they belong to the latest update, so they are delivered
// in request order.
type Session struct {
	r       *Resolver
	local   time.Duration
	network time.Duration
	deliver func(Update)

	base   context.Context
	stop   context.CancelFunc
	mu     sync.Mutex
	seq    uint64
	cancel context.CancelFunc
	timers []*time.Timer

	deliverMu sync.Mutex
	wg        sync.WaitGroup
}

// NewSession creates a session whose results go to deliver.
// Cancelling ctx abandons all pending work.
func (r *Resolver) NewSession(ctx context.Context, deliver func(Update)) *Session {
	local, network := r.settings.Debounce.Local, r.settings.Debounce.Network
	if local <= 0 {
		local = DefaultLocalDelay
	}
	if network <= 0 {
		network = DefaultNetworkDelay
	}
	if network < local {
		network = local
	}

	base, stop := context.WithCancel(ctx)
	return &Session{
		r:       r,
		local:   local,
		network: network,
		deliver: deliver,
		base:    base,
		stop:    stop,
	}
}

// Update replaces the pending query and returns its sequence number.
// A local probe runs after the local window and, if it misses, a network
// probe after the network window. An empty name only cancels.
func (s *Session) Update(q Query) uint64 {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.seq++
	seq := s.seq
	s.cancelLocked()

	if model.Normalize(q.Name) == "" || s.base.Err() != nil {
		return seq
	}

	ctx, cancel := context.WithCancel(s.base)
	s.cancel = cancel

	var hit atomic.Bool
	localDone := make(chan struct{})
	s.wg.Add(2)
	s.timers = []*time.Timer{
		time.AfterFunc(s.local, func() {
			defer s.wg.Done()
			defer close(localDone)
			res := s.r.ResolveLocal(ctx, q)
			if res.Status != model.StatusResolved {
				return
			}
			hit.Store(true)
			s.send(ctx, Update{Seq: seq, Query: q, Resolution: res})
		}),
		time.AfterFunc(s.network, func() {
			defer s.wg.Done()
			select {
			case <-localDone:
			case <-ctx.Done():
				return
			}
			if hit.Load() {
				return
			}
			res := s.r.Resolve(ctx, q)
			if res.Status == model.StatusCancelled {
				return
			}
			s.send(ctx, Update{Seq: seq, Query: q, Resolution: res})
		}),
	}
	return seq
}

// Close cancels pending work and waits for running probes to return.
// No callback runs after Close returns.
func (s *Session) Close() {
	s.mu.Lock()
	s.cancelLocked()
	s.stop()
	s.mu.Unlock()
	s.wg.Wait()
}

// cancelLocked stops scheduled probes and abandons running ones
func (s *Session) cancelLocked() {
	for _, t := range s.timers {
		if t.Stop() {
			// The probe will never run
			s.wg.Done()
		}
	}
	s.timers = nil
	if s.cancel != nil {
		s.cancel()
		s.cancel = nil
	}
}

// send delivers u if it still belongs to the latest update
func (s *Session) send(ctx context.Context, u Update) {
	s.deliverMu.Lock()
	defer s.deliverMu.Unlock()

	s.mu.Lock()
	current := s.seq == u.Seq && ctx.Err() == nil
	s.mu.Unlock()

	if current {
		s.deliver(u)
	}
}
