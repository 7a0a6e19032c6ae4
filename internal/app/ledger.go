package app

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/dkeye/Telehealth/internal/core"
	"github.com/dkeye/Telehealth/internal/domain"
	"github.com/google/uuid"
	"github.com/rs/zerolog/log"
)

const (
	DefaultHistoryLimit = 100
	DefaultMaxHistory   = 200
	inviteAttempts      = 5
)

// Ledger records call attempts. It never looks at connection state: a
// session can be created and ended without any signaling taking place.
type Ledger struct {
	Store      core.CallStore
	Policy     EndPolicy
	MaxHistory int
	NewID      func() string
	Now        func() time.Time
}

func NewLedger(store core.CallStore, policy EndPolicy, maxHistory int) *Ledger {
	if policy == nil {
		policy = OpenEndPolicy{}
	}
	if maxHistory <= 0 {
		maxHistory = DefaultMaxHistory
	}
	return &Ledger{
		Store:      store,
		Policy:     policy,
		MaxHistory: maxHistory,
		NewID:      uuid.NewString,
		Now:        func() time.Time { return time.Now().UTC() },
	}
}

// CreateInvite opens a session for caller (nil for a guest). ID collisions
// are retried with a fresh ID.
func (l *Ledger) CreateInvite(ctx context.Context, caller *domain.UserID) (domain.CallSession, error) {
	var lastErr error
	for range inviteAttempts {
		s := domain.CallSession{
			ID:        domain.SessionID(l.NewID()),
			CallerID:  caller,
			StartTime: l.Now(),
		}
		err := l.Store.Create(ctx, s)
		if err == nil {
			log.Info().Str("module", "app.ledger").Str("session", string(s.ID)).Msg("invite created")
			return s, nil
		}
		if !errors.Is(err, domain.ErrConflict) {
			return domain.CallSession{}, fmt.Errorf("create invite: %w", err)
		}
		log.Warn().Str("module", "app.ledger").Str("session", string(s.ID)).Msg("session id collision, regenerating")
		lastErr = err
	}
	return domain.CallSession{}, fmt.Errorf("create invite after %d attempts: %w", inviteAttempts, lastErr)
}

func (l *Ledger) GetSession(ctx context.Context, id domain.SessionID) (domain.CallSession, error) {
	return l.Store.Get(ctx, id)
}

// EndSession sets the end time once. A second end is rejected with
// domain.ErrAlreadyEnded.
func (l *Ledger) EndSession(ctx context.Context, actor domain.UserID, id domain.SessionID, end time.Time) (domain.CallSession, error) {
	s, err := l.Store.Get(ctx, id)
	if err != nil {
		return domain.CallSession{}, err
	}
	if !l.Policy.CanEnd(actor, s) {
		return domain.CallSession{}, domain.ErrForbidden
	}
	if !s.Active() {
		return domain.CallSession{}, domain.ErrAlreadyEnded
	}
	end = end.UTC()
	if end.Before(s.StartTime) {
		return domain.CallSession{}, domain.ErrInvalidEndTime
	}
	s, err = l.Store.SetEndTime(ctx, id, end)
	if err != nil {
		return domain.CallSession{}, err
	}
	log.Info().Str("module", "app.ledger").Str("session", string(id)).Str("actor", string(actor)).Msg("session ended")
	return s, nil
}

// JoinSession records callee on an active session. The caller joining its
// own session, or the same callee joining again, changes nothing.
func (l *Ledger) JoinSession(ctx context.Context, id domain.SessionID, callee domain.UserID) (domain.CallSession, error) {
	s, err := l.Store.Get(ctx, id)
	if err != nil {
		return domain.CallSession{}, err
	}
	if !s.Active() {
		return domain.CallSession{}, domain.ErrAlreadyEnded
	}
	if s.Involves(callee) {
		return s, nil
	}
	if s.CalleeID != nil {
		return domain.CallSession{}, domain.ErrCalleeTaken
	}
	s, err = l.Store.SetCallee(ctx, id, callee)
	if err != nil {
		return domain.CallSession{}, err
	}
	log.Info().Str("module", "app.ledger").Str("session", string(id)).Str("callee", string(callee)).Msg("callee joined")
	return s, nil
}

// ListHistory returns sessions uid took part in, newest first.
func (l *Ledger) ListHistory(ctx context.Context, uid domain.UserID, offset, limit int) ([]domain.CallSession, error) {
	if offset < 0 {
		offset = 0
	}
	if limit <= 0 {
		limit = DefaultHistoryLimit
	}
	limit = min(limit, l.MaxHistory)
	return l.Store.ListByUser(ctx, uid, offset, limit)
}
