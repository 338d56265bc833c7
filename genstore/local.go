package genstore

import (
	"context"
	"sync"
	"time"
)

type localEntry struct {
	gen    uint64
	bumped time.Time
}

// Local keeps generations in-process with an optional prune loop.
type Local struct {
	mu   sync.RWMutex
	gens map[string]localEntry
	now  func() time.Time

	ticker    *time.Ticker
	stopCh    chan struct{}
	wg        sync.WaitGroup
	closeOnce sync.Once
}

var _ Store = (*Local)(nil)

// NewLocal starts a prune loop when both interval and retention are positive.
func NewLocal(interval, retention time.Duration) *Local {
	s := &Local{gens: make(map[string]localEntry), now: time.Now}
	if interval > 0 && retention > 0 {
		s.ticker = time.NewTicker(interval)
		s.stopCh = make(chan struct{})
		s.wg.Add(1)
		go s.loop(retention)
	}
	return s
}

func (s *Local) loop(retention time.Duration) {
	defer s.wg.Done()
	for {
		select {
		case <-s.ticker.C:
			s.Cleanup(retention)
		case <-s.stopCh:
			return
		}
	}
}

func (s *Local) Snapshot(_ context.Context, k string) (uint64, error) {
	s.mu.RLock()
	e := s.gens[k]
	s.mu.RUnlock()
	return e.gen, nil
}

func (s *Local) SnapshotMany(_ context.Context, ks []string) (map[string]uint64, error) {
	out := make(map[string]uint64, len(ks))
	s.mu.RLock()
	for _, k := range ks {
		out[k] = s.gens[k].gen
	}
	s.mu.RUnlock()
	return out, nil
}

func (s *Local) Bump(_ context.Context, k string) (uint64, error) {
	now := s.now()
	s.mu.Lock()
	e := s.gens[k]
	e.gen++
	e.bumped = now
	s.gens[k] = e
	s.mu.Unlock()
	return e.gen, nil
}

// Cleanup drops counters whose last bump is older than retention. A dropped
// counter reads as 0, which cached values written at a later generation no
// longer match, so they miss and refill.
func (s *Local) Cleanup(retention time.Duration) {
	if retention <= 0 {
		return
	}
	cutoff := s.now().Add(-retention)
	s.mu.Lock()
	for k, e := range s.gens {
		if e.bumped.Before(cutoff) {
			delete(s.gens, k)
		}
	}
	s.mu.Unlock()
}

func (s *Local) Len() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.gens)
}

func (s *Local) Close(_ context.Context) error {
	s.closeOnce.Do(func() {
		if s.stopCh != nil {
			s.ticker.Stop()
			close(s.stopCh)
			s.wg.Wait()
		}
	})
	return nil
}
