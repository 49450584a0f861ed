package resolver

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ppiankov/kcal/internal/model"
	"github.com/ppiankov/kcal/internal/provider"
)

type recorder struct {
	mu      sync.Mutex
	updates []Update
}

func (r *recorder) deliver(u Update) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.updates = append(r.updates, u)
}

func (r *recorder) snapshot() []Update {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]Update(nil), r.updates...)
}

func fastDebounce(_ *Deps, s *Settings) {
	s.Debounce = model.DebounceConfig{Local: 10 * time.Millisecond, Network: 40 * time.Millisecond}
}

func TestSession_DebouncesKeystrokes(t *testing.T) {
	p := usdaHit(dragonFruit)
	f := newFixture(t, []provider.Provider{p}, fastDebounce)
	rec := &recorder{}
	s := f.r.NewSession(context.Background(), rec.deliver)
	defer s.Close()

	for _, prefix := range []string{"c", "ch", "chi", "chic", "chick", "chicke"} {
		s.Update(Query{Name: prefix, Quantity: 100, Unit: "g"})
		time.Sleep(2 * time.Millisecond)
	}
	last := s.Update(Query{Name: "chicken", Quantity: 100, Unit: "g"})

	require.Eventually(t, func() bool { return len(rec.snapshot()) == 1 }, time.Second, time.Millisecond)
	time.Sleep(80 * time.Millisecond)

	updates := rec.snapshot()
	require.Len(t, updates, 1, "only the settled query is resolved")
	assert.Equal(t, last, updates[0].Seq)
	assert.Equal(t, model.SourceStatic, updates[0].Resolution.Source)
	assert.Zero(t, p.calls.Load(), "a local hit skips the network probe")
}

func TestSession_NetworkAfterLocalMiss(t *testing.T) {
	p := usdaHit(dragonFruit)
	f := newFixture(t, []provider.Provider{p}, fastDebounce)
	rec := &recorder{}
	s := f.r.NewSession(context.Background(), rec.deliver)
	defer s.Close()

	s.Update(Query{Name: "dragon fruit", Quantity: 200, Unit: "g"})

	require.Eventually(t, func() bool { return len(rec.snapshot()) == 1 }, time.Second, time.Millisecond)
	u := rec.snapshot()[0]
	assert.Equal(t, model.SourceUSDA, u.Resolution.Source)
	assert.Equal(t, 120.0, u.Resolution.Values.Calories)
	assert.Equal(t, int32(1), p.calls.Load())
}

func TestSession_SupersededResultIsDropped(t *testing.T) {
	p := usdaHit(dragonFruit)
	p.release = make(chan struct{})
	f := newFixture(t, []provider.Provider{p}, fastDebounce)
	rec := &recorder{}
	s := f.r.NewSession(context.Background(), rec.deliver)
	defer s.Close()

	s.Update(Query{Name: "dragon fruit", Quantity: 100, Unit: "g"})
	require.Eventually(t, func() bool { return p.calls.Load() == 1 }, time.Second, time.Millisecond)

	latest := s.Update(Query{Name: "apple", Quantity: 100, Unit: "g"})
	close(p.release)

	require.Eventually(t, func() bool { return len(rec.snapshot()) >= 1 }, time.Second, time.Millisecond)
	time.Sleep(80 * time.Millisecond)

	updates := rec.snapshot()
	require.Len(t, updates, 1)
	assert.Equal(t, latest, updates[0].Seq)
	assert.Equal(t, 52.0, updates[0].Resolution.Values.Calories)
}

func TestSession_EmptyUpdateCancels(t *testing.T) {
	f := newFixture(t, nil, fastDebounce)
	rec := &recorder{}
	s := f.r.NewSession(context.Background(), rec.deliver)
	defer s.Close()

	s.Update(Query{Name: "apple", Quantity: 100, Unit: "g"})
	s.Update(Query{Name: "   "})

	time.Sleep(80 * time.Millisecond)
	assert.Empty(t, rec.snapshot())
}

func TestSession_NoDeliveryAfterClose(t *testing.T) {
	f := newFixture(t, nil, fastDebounce)
	rec := &recorder{}
	s := f.r.NewSession(context.Background(), rec.deliver)

	s.Update(Query{Name: "apple", Quantity: 100, Unit: "g"})
	s.Close()

	time.Sleep(80 * time.Millisecond)
	assert.Empty(t, rec.snapshot())

	s.Update(Query{Name: "banana", Quantity: 100, Unit: "g"})
	time.Sleep(80 * time.Millisecond)
	assert.Empty(t, rec.snapshot(), "a closed session schedules nothing")
}

func TestSession_DefaultWindows(t *testing.T) {
	f := newFixture(t, nil)
	s := f.r.NewSession(context.Background(), func(Update) {})
	defer s.Close()

	assert.Equal(t, DefaultLocalDelay, s.local)
	assert.Equal(t, DefaultNetworkDelay, s.network)
}
