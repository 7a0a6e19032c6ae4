// Package memory is a process-local call store for tests and single node
// runs.
package memory

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/dkeye/Telehealth/internal/core"
	"github.com/dkeye/Telehealth/internal/domain"
)

type Store struct {
	mu       sync.RWMutex
	sessions map[domain.SessionID]*domain.CallSession
	byUser   map[domain.UserID]map[domain.SessionID]struct{}
}

var _ core.CallStore = (*Store)(nil)

func New() *Store {
	return &Store{
		sessions: make(map[domain.SessionID]*domain.CallSession),
		byUser:   make(map[domain.UserID]map[domain.SessionID]struct{}),
	}
}

func (s *Store) index(uid *domain.UserID, id domain.SessionID) {
	if uid == nil {
		return
	}
	set, ok := s.byUser[*uid]
	if !ok {
		set = make(map[domain.SessionID]struct{})
		s.byUser[*uid] = set
	}
	set[id] = struct{}{}
}

func (s *Store) Create(_ context.Context, cs domain.CallSession) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.sessions[cs.ID]; ok {
		return domain.ErrConflict
	}
	stored := clone(cs)
	s.sessions[cs.ID] = &stored
	s.index(stored.CallerID, cs.ID)
	s.index(stored.CalleeID, cs.ID)
	return nil
}

func (s *Store) Get(_ context.Context, id domain.SessionID) (domain.CallSession, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	cs, ok := s.sessions[id]
	if !ok {
		return domain.CallSession{}, domain.ErrNotFound
	}
	return clone(*cs), nil
}

func (s *Store) SetEndTime(_ context.Context, id domain.SessionID, end time.Time) (domain.CallSession, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	cs, ok := s.sessions[id]
	if !ok {
		return domain.CallSession{}, domain.ErrNotFound
	}
	if cs.EndTime != nil {
		return domain.CallSession{}, domain.ErrAlreadyEnded
	}
	cs.EndTime = &end
	return clone(*cs), nil
}

func (s *Store) SetCallee(_ context.Context, id domain.SessionID, callee domain.UserID) (domain.CallSession, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	cs, ok := s.sessions[id]
	if !ok {
		return domain.CallSession{}, domain.ErrNotFound
	}
	if cs.CalleeID != nil && *cs.CalleeID != callee {
		return domain.CallSession{}, domain.ErrCalleeTaken
	}
	cs.CalleeID = &callee
	s.index(&callee, id)
	return clone(*cs), nil
}

func (s *Store) ListByUser(_ context.Context, uid domain.UserID, offset, limit int) ([]domain.CallSession, error) {
	s.mu.RLock()
	out := make([]domain.CallSession, 0, len(s.byUser[uid]))
	for id := range s.byUser[uid] {
		out = append(out, clone(*s.sessions[id]))
	}
	s.mu.RUnlock()

	sort.Slice(out, func(i, j int) bool {
		if out[i].StartTime.Equal(out[j].StartTime) {
			return out[i].ID > out[j].ID
		}
		return out[i].StartTime.After(out[j].StartTime)
	})
	if offset >= len(out) {
		return []domain.CallSession{}, nil
	}
	out = out[offset:]
	if limit < len(out) {
		out = out[:limit]
	}
	return out, nil
}

func (s *Store) Close() error { return nil }

// clone copies pointer fields so callers never alias stored state.
func clone(cs domain.CallSession) domain.CallSession {
	out := cs
	if cs.CallerID != nil {
		v := *cs.CallerID
		out.CallerID = &v
	}
	if cs.CalleeID != nil {
		v := *cs.CalleeID
		out.CalleeID = &v
	}
	if cs.EndTime != nil {
		v := *cs.EndTime
		out.EndTime = &v
	}
	return out
}
