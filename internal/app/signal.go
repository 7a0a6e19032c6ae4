package app

import (
	"bytes"
	"encoding/json"
	"strconv"

	"github.com/dkeye/Telehealth/internal/core"
	"github.com/dkeye/Telehealth/internal/domain"
	"github.com/go-playground/validator/v10"
	"github.com/rs/zerolog/log"
)

// Well known signal types. Any other string is relayed unchanged.
const (
	SignalOffer        = "offer"
	SignalAnswer       = "answer"
	SignalCandidate    = "candidate"
	SignalICECandidate = "ice-candidate"
)

var validate = validator.New()

// TargetID accepts a JSON string or integer. Anything else decodes without
// error but stays invalid.
type TargetID struct {
	ID    domain.UserID
	Valid bool
}

func (t *TargetID) UnmarshalJSON(b []byte) error {
	*t = TargetID{}
	b = bytes.TrimSpace(b)
	var raw string
	switch {
	case len(b) == 0 || bytes.Equal(b, []byte("null")):
		return nil
	case b[0] == '"':
		if err := json.Unmarshal(b, &raw); err != nil {
			return nil
		}
	default:
		n, err := strconv.ParseInt(string(b), 10, 64)
		if err != nil {
			return nil
		}
		raw = strconv.FormatInt(n, 10)
	}
	uid, err := domain.ParseUserID(raw)
	if err != nil {
		return nil
	}
	t.ID, t.Valid = uid, true
	return nil
}

// InboundSignal is what a client sends. A client supplied sender_id is not
// part of the schema and is discarded.
type InboundSignal struct {
	TargetID TargetID        `json:"target_id"`
	Type     *string         `json:"type" validate:"omitnil,max=64"`
	Payload  json.RawMessage `json:"payload"`
}

// OutboundSignal is what the addressed peer receives. An absent type stays
// null.
type OutboundSignal struct {
	SenderID domain.UserID   `json:"sender_id"`
	Type     *string         `json:"type"`
	Payload  json.RawMessage `json:"payload"`
}

type RelayOutcome int

const (
	RelayDelivered RelayOutcome = iota
	RelayMalformed
	RelayNoTarget
	RelayPeerOffline
)

func (o RelayOutcome) String() string {
	switch o {
	case RelayDelivered:
		return "delivered"
	case RelayMalformed:
		return "malformed"
	case RelayNoTarget:
		return "no_target"
	case RelayPeerOffline:
		return "peer_offline"
	}
	return "unknown"
}

// SignalRelay forwards call negotiation envelopes to exactly one peer.
// Payloads are never inspected.
type SignalRelay struct {
	Registry core.ConnectionRegistry
	Router   *Router
}

func NewSignalRelay(reg core.ConnectionRegistry) *SignalRelay {
	return &SignalRelay{Registry: reg, Router: NewRouter(reg)}
}

func ParseSignal(raw []byte) (InboundSignal, error) {
	var in InboundSignal
	if err := json.Unmarshal(raw, &in); err != nil {
		return InboundSignal{}, err
	}
	if err := validate.Struct(in); err != nil {
		return InboundSignal{}, err
	}
	return in, nil
}

// Relay handles one inbound frame from the authenticated sender.
func (s *SignalRelay) Relay(sender domain.UserID, raw []byte) RelayOutcome {
	in, err := ParseSignal(raw)
	if err != nil {
		log.Debug().Err(err).Str("module", "app.signal").Str("sender", string(sender)).Msg("dropping malformed envelope")
		return RelayMalformed
	}
	if !in.TargetID.Valid {
		log.Debug().Str("module", "app.signal").Str("sender", string(sender)).Msg("dropping envelope without target")
		return RelayNoTarget
	}
	out, err := json.Marshal(OutboundSignal{
		SenderID: sender,
		Type:     in.Type,
		Payload:  in.Payload,
	})
	if err != nil {
		log.Error().Err(err).Str("module", "app.signal").Msg("marshal outbound envelope")
		return RelayMalformed
	}
	res := s.Router.Unicast(in.TargetID.ID, core.Frame(out))
	if res.SendTo == 0 {
		log.Debug().Str("module", "app.signal").Str("sender", string(sender)).Str("target", string(in.TargetID.ID)).Msg("peer offline")
		return RelayPeerOffline
	}
	log.Debug().Str("module", "app.signal").Str("sender", string(sender)).Str("target", string(in.TargetID.ID)).Str("type", signalType(in.Type)).Int("sent_to", res.SendTo).Msg("relayed")
	return RelayDelivered
}

func signalType(t *string) string {
	if t == nil {
		return ""
	}
	return *t
}

func (s *SignalRelay) Join(uid domain.UserID, conn core.SignalConnection) {
	s.Registry.Connect(uid, conn)
}

func (s *SignalRelay) Leave(uid domain.UserID, conn core.SignalConnection) {
	s.Registry.Disconnect(uid, conn)
}
