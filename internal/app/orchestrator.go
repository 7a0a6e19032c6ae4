package app

// Orchestrator bundles the channels and the ledger for the transport layer.
// Chat and signaling run on separate registries so chat broadcasts never
// reach signaling sockets.
type Orchestrator struct {
	ChatRegistry   *Registry
	SignalRegistry *Registry
	Chat           *ChatChannel
	Signal         *SignalRelay
	Ledger         *Ledger
}

func NewOrchestrator(ledger *Ledger) *Orchestrator {
	chatReg := NewRegistry("chat")
	signalReg := NewRegistry("signal")
	return &Orchestrator{
		ChatRegistry:   chatReg,
		SignalRegistry: signalReg,
		Chat:           NewChatChannel(chatReg),
		Signal:         NewSignalRelay(signalReg),
		Ledger:         ledger,
	}
}

type Stats struct {
	ChatUsers         int `json:"chat_users"`
	ChatConnections   int `json:"chat_connections"`
	SignalUsers       int `json:"signal_users"`
	SignalConnections int `json:"signal_connections"`
}

func (o *Orchestrator) Stats() Stats {
	return Stats{
		ChatUsers:         o.ChatRegistry.Users(),
		ChatConnections:   o.ChatRegistry.Count(),
		SignalUsers:       o.SignalRegistry.Users(),
		SignalConnections: o.SignalRegistry.Count(),
	}
}
