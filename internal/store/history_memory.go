package store

import (
	"context"
	"sync"
	"time"

	"github.com/Harshitk-cp/beliefgraph/internal/domain"
	"github.com/google/uuid"
)

// MemoryHistoryStore keeps prompt history in process. It is used when no
// DATABASE_URL is configured.
type MemoryHistoryStore struct {
	mu      sync.RWMutex
	entries map[uuid.UUID][]domain.HistoryEntry
	now     func() time.Time
}

func NewMemoryHistoryStore() *MemoryHistoryStore {
	return &MemoryHistoryStore{
		entries: make(map[uuid.UUID][]domain.HistoryEntry),
		now:     time.Now,
	}
}

func (s *MemoryHistoryStore) Append(ctx context.Context, e *domain.HistoryEntry) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	e.ID = uuid.New()
	e.CreatedAt = s.now()

	s.entries[e.SessionID] = append(s.entries[e.SessionID], cloneEntry(*e))
	return nil
}

func (s *MemoryHistoryStore) ListBySession(ctx context.Context, sessionID uuid.UUID, limit int) ([]domain.HistoryEntry, error) {
	if limit <= 0 {
		limit = defaultHistoryLimit
	}

	s.mu.RLock()
	defer s.mu.RUnlock()

	list := s.entries[sessionID]
	out := make([]domain.HistoryEntry, 0, min(limit, len(list)))
	for i := len(list) - 1; i >= 0 && len(out) < limit; i-- {
		out = append(out, cloneEntry(list[i]))
	}
	return out, nil
}

func (s *MemoryHistoryStore) DeleteBySession(ctx context.Context, sessionID uuid.UUID) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.entries, sessionID)
	return nil
}

// cloneEntry copies the entry's graph so stored history never aliases a
// caller's slices.
func cloneEntry(e domain.HistoryEntry) domain.HistoryEntry {
	if e.Graph != nil {
		g := e.Graph.Clone()
		e.Graph = &g
	}
	return e
}
