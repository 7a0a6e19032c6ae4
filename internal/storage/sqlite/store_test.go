package sqlite

import (
	"context"
	"fmt"
	"path/filepath"
	"testing"
	"time"

	"github.com/dkeye/Telehealth/internal/domain"
	"github.com/stretchr/testify/require"
	"golang.org/x/sync/errgroup"
)

var t0 = time.Date(2026, 3, 1, 10, 0, 0, 0, time.UTC)

func openTest(t *testing.T) *Store {
	t.Helper()
	s, err := Open(filepath.Join(t.TempDir(), "calls.db"))
	require.NoError(t, err)
	t.Cleanup(func() { _ = s.Close() })
	return s
}

func user(s string) *domain.UserID {
	u := domain.UserID(s)
	return &u
}

func TestStore_Create_Get(t *testing.T) {
	req := require.New(t)
	ctx := context.Background()
	s := openTest(t)

	in := domain.CallSession{ID: "abc", CallerID: user("42"), StartTime: t0}
	req.NoError(s.Create(ctx, in))

	got, err := s.Get(ctx, "abc")
	req.NoError(err)
	req.Equal(in.ID, got.ID)
	req.Equal(domain.UserID("42"), *got.CallerID)
	req.Nil(got.CalleeID)
	req.Nil(got.EndTime)
	req.True(got.StartTime.Equal(t0))

	_, err = s.Get(ctx, "missing")
	req.ErrorIs(err, domain.ErrNotFound)
}

func TestStore_Create_Conflict(t *testing.T) {
	req := require.New(t)
	ctx := context.Background()
	s := openTest(t)

	req.NoError(s.Create(ctx, domain.CallSession{ID: "abc", StartTime: t0}))
	err := s.Create(ctx, domain.CallSession{ID: "abc", CallerID: user("1"), StartTime: t0})
	req.ErrorIs(err, domain.ErrConflict)

	// The original row is untouched
	got, err := s.Get(ctx, "abc")
	req.NoError(err)
	req.Nil(got.CallerID)
}

func TestStore_SetEndTime_Once(t *testing.T) {
	req := require.New(t)
	ctx := context.Background()
	s := openTest(t)
	req.NoError(s.Create(ctx, domain.CallSession{ID: "abc", StartTime: t0}))

	end := t0.Add(time.Minute)
	got, err := s.SetEndTime(ctx, "abc", end)
	req.NoError(err)
	req.True(got.EndTime.Equal(end))

	_, err = s.SetEndTime(ctx, "abc", end.Add(time.Hour))
	req.ErrorIs(err, domain.ErrAlreadyEnded)

	got, err = s.Get(ctx, "abc")
	req.NoError(err)
	req.True(got.EndTime.Equal(end))

	_, err = s.SetEndTime(ctx, "missing", end)
	req.ErrorIs(err, domain.ErrNotFound)
}

func TestStore_Concurrent_Writers(t *testing.T) {
	req := require.New(t)
	ctx := context.Background()
	s := openTest(t)

	// Given many writers hitting the same file through the pool
	const writers, perWriter = 64, 20
	var g errgroup.Group
	for w := range writers {
		g.Go(func() error {
			for i := range perWriter {
				id := domain.SessionID(fmt.Sprintf("w%d-%d", w, i))
				if err := s.Create(ctx, domain.CallSession{ID: id, CallerID: user("42"), StartTime: t0}); err != nil {
					return err
				}
				if _, err := s.SetEndTime(ctx, id, t0.Add(time.Minute)); err != nil {
					return err
				}
			}
			return nil
		})
	}

	// Then no write is rejected as busy
	req.NoError(g.Wait())
	all, err := s.ListByUser(ctx, "42", 0, writers*perWriter+1)
	req.NoError(err)
	req.Len(all, writers*perWriter)
	for _, cs := range all {
		req.NotNil(cs.EndTime)
	}
}

func TestStore_SetCallee(t *testing.T) {
	req := require.New(t)
	ctx := context.Background()
	s := openTest(t)
	req.NoError(s.Create(ctx, domain.CallSession{ID: "abc", CallerID: user("42"), StartTime: t0}))

	got, err := s.SetCallee(ctx, "abc", "7")
	req.NoError(err)
	req.Equal(domain.UserID("7"), *got.CalleeID)

	_, err = s.SetCallee(ctx, "abc", "7")
	req.NoError(err)

	_, err = s.SetCallee(ctx, "abc", "8")
	req.ErrorIs(err, domain.ErrCalleeTaken)

	_, err = s.SetCallee(ctx, "missing", "8")
	req.ErrorIs(err, domain.ErrNotFound)
}

func TestStore_ListByUser(t *testing.T) {
	req := require.New(t)
	ctx := context.Background()
	s := openTest(t)

	// Given 2 sessions as caller, 1 as callee, 1 unrelated
	req.NoError(s.Create(ctx, domain.CallSession{ID: "a", CallerID: user("42"), StartTime: t0}))
	req.NoError(s.Create(ctx, domain.CallSession{ID: "b", CallerID: user("7"), CalleeID: user("42"), StartTime: t0.Add(time.Minute)}))
	req.NoError(s.Create(ctx, domain.CallSession{ID: "c", CallerID: user("8"), StartTime: t0.Add(2 * time.Minute)}))
	req.NoError(s.Create(ctx, domain.CallSession{ID: "d", CallerID: user("42"), StartTime: t0.Add(3 * time.Minute)}))

	all, err := s.ListByUser(ctx, "42", 0, 10)
	req.NoError(err)
	req.Len(all, 3)
	req.Equal(domain.SessionID("d"), all[0].ID)
	req.Equal(domain.SessionID("b"), all[1].ID)
	req.Equal(domain.SessionID("a"), all[2].ID)

	page, err := s.ListByUser(ctx, "42", 1, 1)
	req.NoError(err)
	req.Len(page, 1)
	req.Equal(domain.SessionID("b"), page[0].ID)

	none, err := s.ListByUser(ctx, "nobody", 0, 10)
	req.NoError(err)
	req.NotNil(none)
	req.Empty(none)
}

func TestStore_Survives_Reopen(t *testing.T) {
	req := require.New(t)
	ctx := context.Background()
	path := filepath.Join(t.TempDir(), "calls.db")

	s, err := Open(path)
	req.NoError(err)
	req.NoError(s.Create(ctx, domain.CallSession{ID: "abc", CallerID: user("42"), StartTime: t0}))
	req.NoError(s.Close())

	s, err = Open(path)
	req.NoError(err)
	defer s.Close()
	got, err := s.Get(ctx, "abc")
	req.NoError(err)
	req.Equal(domain.UserID("42"), *got.CallerID)
}
