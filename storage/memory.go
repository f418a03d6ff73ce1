package storage

import (
	"context"
	"sync"
	"time"

	"crosspost/types"
)

// MemoryStore keeps everything in process memory. Used by tests and as the
// fallback when no redis address is configured.
type MemoryStore struct {
	mu       sync.Mutex
	selected []string
	accounts []types.CMSAccount
	history  []types.SyncHistoryItem
	inflight *types.SyncHistoryItem
}

// NewMemoryStore returns an empty store.
func NewMemoryStore() *MemoryStore { return &MemoryStore{} }

func (s *MemoryStore) SelectedPlatforms(context.Context) ([]string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]string{}, s.selected...), nil
}

func (s *MemoryStore) SelectPlatform(_ context.Context, id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, existing := range s.selected {
		if existing == id {
			return nil
		}
	}
	s.selected = append(s.selected, id)
	return nil
}

func (s *MemoryStore) DeselectPlatform(_ context.Context, id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := s.selected[:0]
	for _, existing := range s.selected {
		if existing != id {
			out = append(out, existing)
		}
	}
	s.selected = out
	return nil
}

func (s *MemoryStore) CMSAccounts(context.Context) ([]types.CMSAccount, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]types.CMSAccount{}, s.accounts...), nil
}

func (s *MemoryStore) SaveCMSAccounts(_ context.Context, accounts []types.CMSAccount) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.accounts = append([]types.CMSAccount{}, accounts...)
	return nil
}

func (s *MemoryStore) History(context.Context) ([]types.SyncHistoryItem, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]types.SyncHistoryItem{}, s.history...), nil
}

func (s *MemoryStore) SaveHistory(_ context.Context, items []types.SyncHistoryItem) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.history = append([]types.SyncHistoryItem{}, items...)
	return nil
}

func (s *MemoryStore) InflightSnapshot(context.Context) (*types.SyncHistoryItem, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.inflight, nil
}

func (s *MemoryStore) SaveInflightSnapshot(_ context.Context, item *types.SyncHistoryItem) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.inflight = item
	return nil
}

func (s *MemoryStore) ClearInflightSnapshot(context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.inflight = nil
	return nil
}

// MemoryRateLimiter enforces the window in process memory.
type MemoryRateLimiter struct {
	mu     sync.Mutex
	window time.Duration
	last   time.Time
	now    func() time.Time
}

// NewMemoryRateLimiter enforces one pass per window.
func NewMemoryRateLimiter(window time.Duration) *MemoryRateLimiter {
	return &MemoryRateLimiter{window: window, now: time.Now}
}

func (l *MemoryRateLimiter) Allow(context.Context) (bool, error) {
	l.mu.Lock()
	defer l.mu.Unlock()
	now := l.now()
	if !l.last.IsZero() && now.Sub(l.last) < l.window {
		return false, nil
	}
	l.last = now
	return true, nil
}
