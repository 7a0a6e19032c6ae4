package app

import (
	"context"
	"errors"
	"fmt"
	"testing"
	"time"

	"github.com/dkeye/Telehealth/internal/domain"
	"github.com/dkeye/Telehealth/internal/storage/memory"
	"github.com/stretchr/testify/require"
)

var t0 = time.Date(2026, 3, 1, 10, 0, 0, 0, time.UTC)

// newTestLedger returns a ledger whose clock advances one minute per call.
func newTestLedger(policy EndPolicy) *Ledger {
	l := NewLedger(memory.New(), policy, 0)
	tick := 0
	l.Now = func() time.Time {
		tick++
		return t0.Add(time.Duration(tick) * time.Minute)
	}
	return l
}

func uid(s string) *domain.UserID {
	u := domain.UserID(s)
	return &u
}

func TestLedger_CreateInvite(t *testing.T) {
	req := require.New(t)
	ctx := context.Background()
	l := newTestLedger(nil)

	first, err := l.CreateInvite(ctx, uid("42"))
	req.NoError(err)
	second, err := l.CreateInvite(ctx, uid("42"))
	req.NoError(err)

	req.NotEmpty(first.ID)
	req.NotEqual(first.ID, second.ID)
	req.Equal(domain.UserID("42"), *first.CallerID)
	req.Nil(first.CalleeID)
	req.Nil(first.EndTime)
	req.False(first.StartTime.IsZero())
	req.True(first.Active())

	got, err := l.GetSession(ctx, first.ID)
	req.NoError(err)
	req.Equal(first.ID, got.ID)
}

func TestLedger_CreateInvite_Guest(t *testing.T) {
	req := require.New(t)
	s, err := newTestLedger(nil).CreateInvite(context.Background(), nil)
	req.NoError(err)
	req.Nil(s.CallerID)
}

func TestLedger_CreateInvite_Retries_Collision(t *testing.T) {
	req := require.New(t)
	ctx := context.Background()
	l := newTestLedger(nil)
	ids := []string{"dup", "dup", "dup", "fresh"}
	l.NewID = func() string {
		id := ids[0]
		ids = ids[1:]
		return id
	}

	first, err := l.CreateInvite(ctx, uid("1"))
	req.NoError(err)
	req.Equal(domain.SessionID("dup"), first.ID)

	// When the generator collides twice the caller never notices
	second, err := l.CreateInvite(ctx, uid("1"))
	req.NoError(err)
	req.Equal(domain.SessionID("fresh"), second.ID)
}

func TestLedger_CreateInvite_Broken_Generator(t *testing.T) {
	req := require.New(t)
	ctx := context.Background()
	l := newTestLedger(nil)
	l.NewID = func() string { return "same" }

	_, err := l.CreateInvite(ctx, uid("1"))
	req.NoError(err)
	_, err = l.CreateInvite(ctx, uid("1"))
	req.ErrorIs(err, domain.ErrConflict)
}

func TestLedger_GetSession_Unknown(t *testing.T) {
	_, err := newTestLedger(nil).GetSession(context.Background(), "nope")
	require.ErrorIs(t, err, domain.ErrNotFound)
}

func TestLedger_EndSession(t *testing.T) {
	req := require.New(t)
	ctx := context.Background()
	l := newTestLedger(nil)

	_, err := l.EndSession(ctx, "42", "nope", t0)
	req.ErrorIs(err, domain.ErrNotFound)

	s, err := l.CreateInvite(ctx, uid("42"))
	req.NoError(err)
	end := s.StartTime.Add(90 * time.Second)

	ended, err := l.EndSession(ctx, "42", s.ID, end)
	req.NoError(err)
	req.True(ended.EndTime.Equal(end))

	got, err := l.GetSession(ctx, s.ID)
	req.NoError(err)
	req.True(got.EndTime.Equal(end))
	req.False(got.Active())

	// When it is ended again the first end time stays
	_, err = l.EndSession(ctx, "42", s.ID, end.Add(time.Hour))
	req.ErrorIs(err, domain.ErrAlreadyEnded)
	got, err = l.GetSession(ctx, s.ID)
	req.NoError(err)
	req.True(got.EndTime.Equal(end))
}

func TestLedger_EndSession_Before_Start(t *testing.T) {
	req := require.New(t)
	ctx := context.Background()
	l := newTestLedger(nil)
	s, err := l.CreateInvite(ctx, uid("42"))
	req.NoError(err)

	_, err = l.EndSession(ctx, "42", s.ID, s.StartTime.Add(-time.Second))
	req.ErrorIs(err, domain.ErrInvalidEndTime)

	got, err := l.GetSession(ctx, s.ID)
	req.NoError(err)
	req.True(got.Active())
}

func TestLedger_EndSession_Policy(t *testing.T) {
	req := require.New(t)
	ctx := context.Background()
	l := newTestLedger(ParticipantEndPolicy{})
	s, err := l.CreateInvite(ctx, uid("42"))
	req.NoError(err)

	_, err = l.EndSession(ctx, "7", s.ID, s.StartTime.Add(time.Minute))
	req.ErrorIs(err, domain.ErrForbidden)

	_, err = l.JoinSession(ctx, s.ID, "7")
	req.NoError(err)
	_, err = l.EndSession(ctx, "7", s.ID, s.StartTime.Add(time.Minute))
	req.NoError(err)
}

func TestLedger_JoinSession(t *testing.T) {
	req := require.New(t)
	ctx := context.Background()
	l := newTestLedger(nil)
	s, err := l.CreateInvite(ctx, uid("42"))
	req.NoError(err)

	// Caller joining its own invite changes nothing
	same, err := l.JoinSession(ctx, s.ID, "42")
	req.NoError(err)
	req.Nil(same.CalleeID)

	joined, err := l.JoinSession(ctx, s.ID, "7")
	req.NoError(err)
	req.Equal(domain.UserID("7"), *joined.CalleeID)

	again, err := l.JoinSession(ctx, s.ID, "7")
	req.NoError(err)
	req.Equal(domain.UserID("7"), *again.CalleeID)

	_, err = l.JoinSession(ctx, s.ID, "8")
	req.ErrorIs(err, domain.ErrCalleeTaken)

	_, err = l.JoinSession(ctx, "nope", "7")
	req.ErrorIs(err, domain.ErrNotFound)

	_, err = l.EndSession(ctx, "42", s.ID, l.Now())
	req.NoError(err)
	_, err = l.JoinSession(ctx, s.ID, "9")
	req.ErrorIs(err, domain.ErrAlreadyEnded)
}

func TestLedger_ListHistory(t *testing.T) {
	req := require.New(t)
	ctx := context.Background()
	l := newTestLedger(nil)

	// Given 2 sessions as caller, 1 as callee and 1 unrelated
	oldest, err := l.CreateInvite(ctx, uid("42"))
	req.NoError(err)
	asCallee, err := l.CreateInvite(ctx, uid("7"))
	req.NoError(err)
	_, err = l.JoinSession(ctx, asCallee.ID, "42")
	req.NoError(err)
	_, err = l.CreateInvite(ctx, uid("8"))
	req.NoError(err)
	newest, err := l.CreateInvite(ctx, uid("42"))
	req.NoError(err)

	all, err := l.ListHistory(ctx, "42", 0, 10)
	req.NoError(err)
	req.Len(all, 3)
	req.Equal(newest.ID, all[0].ID)
	req.Equal(asCallee.ID, all[1].ID)
	req.Equal(oldest.ID, all[2].ID)

	page, err := l.ListHistory(ctx, "42", 1, 1)
	req.NoError(err)
	req.Len(page, 1)
	req.Equal(asCallee.ID, page[0].ID)

	none, err := l.ListHistory(ctx, "42", 10, 10)
	req.NoError(err)
	req.Empty(none)
}

func TestLedger_ListHistory_Limits(t *testing.T) {
	req := require.New(t)
	ctx := context.Background()
	l := newTestLedger(nil)
	l.MaxHistory = 5
	for i := range 8 {
		_, err := l.CreateInvite(ctx, uid("42"))
		req.NoError(err, fmt.Sprint(i))
	}

	capped, err := l.ListHistory(ctx, "42", 0, 1000)
	req.NoError(err)
	req.Len(capped, 5)

	dflt, err := l.ListHistory(ctx, "42", -3, 0)
	req.NoError(err)
	req.Len(dflt, 5)
}

func TestPolicyByName(t *testing.T) {
	req := require.New(t)
	p, err := PolicyByName("open")
	req.NoError(err)
	req.IsType(OpenEndPolicy{}, p)
	p, err = PolicyByName("participants")
	req.NoError(err)
	req.IsType(ParticipantEndPolicy{}, p)
	_, err = PolicyByName("admins")
	req.Error(err)
	req.False(errors.Is(err, domain.ErrForbidden))
}
