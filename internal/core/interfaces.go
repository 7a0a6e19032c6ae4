package core

import (
	"context"
	"time"

	"github.com/dkeye/Telehealth/internal/domain"
)

// PublishResult reports delivery stats to the caller.
type PublishResult struct {
	SendTo  int
	Dropped []UserConnection
}

// ConnectionRegistry is the multimap of live handles keyed by user.
type ConnectionRegistry interface {
	Connect(uid domain.UserID, conn SignalConnection)
	Disconnect(uid domain.UserID, conn SignalConnection)
	ConnectionsFor(uid domain.UserID) []SignalConnection
	AllConnections() []UserConnection
}

// CallStore is the durable side of the call ledger.
// SetEndTime and SetCallee are single-row conditional updates.
type CallStore interface {
	Create(ctx context.Context, s domain.CallSession) error
	Get(ctx context.Context, id domain.SessionID) (domain.CallSession, error)
	// SetEndTime fails with domain.ErrAlreadyEnded if end time is set.
	SetEndTime(ctx context.Context, id domain.SessionID, end time.Time) (domain.CallSession, error)
	// SetCallee fails with domain.ErrCalleeTaken if another callee is set.
	SetCallee(ctx context.Context, id domain.SessionID, callee domain.UserID) (domain.CallSession, error)
	ListByUser(ctx context.Context, uid domain.UserID, offset, limit int) ([]domain.CallSession, error)
	Close() error
}
