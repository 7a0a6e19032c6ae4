package domain

import (
	"errors"
	"time"
)

var (
	ErrNotFound       = errors.New("call session not found")
	ErrConflict       = errors.New("call session already exists")
	ErrForbidden      = errors.New("not allowed to modify call session")
	ErrAlreadyEnded   = errors.New("call session already ended")
	ErrInvalidEndTime = errors.New("end time before start time")
	ErrCalleeTaken    = errors.New("call session already has a callee")
)

// SessionID is the invite link token of a call.
type SessionID string

// CallSession is the audit record of one call attempt.
// CallerID and CalleeID are nil for guests / not-yet-joined callees.
type CallSession struct {
	ID        SessionID  `json:"session_id"`
	CallerID  *UserID    `json:"caller_id"`
	CalleeID  *UserID    `json:"callee_id"`
	StartTime time.Time  `json:"start_time"`
	EndTime   *time.Time `json:"end_time"`
}

func (s CallSession) Active() bool { return s.EndTime == nil }

// Involves reports whether uid is the caller or the callee.
func (s CallSession) Involves(uid UserID) bool {
	return (s.CallerID != nil && *s.CallerID == uid) ||
		(s.CalleeID != nil && *s.CalleeID == uid)
}
