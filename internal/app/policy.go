package app

import (
	"fmt"

	"github.com/dkeye/Telehealth/internal/domain"
)

// EndPolicy decides who may end a call session.
type EndPolicy interface {
	CanEnd(actor domain.UserID, session domain.CallSession) bool
}

// OpenEndPolicy lets any authenticated user end any session.
type OpenEndPolicy struct{}

func (OpenEndPolicy) CanEnd(domain.UserID, domain.CallSession) bool { return true }

// ParticipantEndPolicy restricts ending to the caller or the callee.
type ParticipantEndPolicy struct{}

func (ParticipantEndPolicy) CanEnd(actor domain.UserID, s domain.CallSession) bool {
	return s.Involves(actor)
}

func PolicyByName(name string) (EndPolicy, error) {
	switch name {
	case "", "open":
		return OpenEndPolicy{}, nil
	case "participants":
		return ParticipantEndPolicy{}, nil
	}
	return nil, fmt.Errorf("unknown end policy %q", name)
}
