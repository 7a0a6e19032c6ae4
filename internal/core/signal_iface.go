package core

import "github.com/dkeye/Telehealth/internal/domain"

// Frame is a raw text payload.
type Frame []byte

// SignalConnection abstracts for a system messaging transport
// Owned by the registry once connected; the registry must Close() it.
// Implementations must be comparable (pointer receivers).
type SignalConnection interface {
	TrySend(Frame) error
	Close()
}

// UserConnection pairs a live handle with the identity it was admitted under.
type UserConnection struct {
	UserID domain.UserID
	Conn   SignalConnection
}
