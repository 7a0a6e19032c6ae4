package app

import (
	"fmt"

	"github.com/dkeye/Telehealth/internal/core"
	"github.com/dkeye/Telehealth/internal/domain"
)

// ChatChannel is the broadcast-only plain text channel. Every message,
// including the sender's own, goes to all connected users.
type ChatChannel struct {
	Registry core.ConnectionRegistry
	Router   *Router
}

func NewChatChannel(reg core.ConnectionRegistry) *ChatChannel {
	return &ChatChannel{Registry: reg, Router: NewRouter(reg)}
}

func SayText(uid domain.UserID, text string) string {
	return fmt.Sprintf("User %s says: %s", uid, text)
}

func LeftText(uid domain.UserID) string {
	return fmt.Sprintf("User %s left the chat", uid)
}

func (c *ChatChannel) Join(uid domain.UserID, conn core.SignalConnection) {
	c.Registry.Connect(uid, conn)
}

func (c *ChatChannel) Say(uid domain.UserID, text string) core.PublishResult {
	return c.Router.Broadcast(core.Frame(SayText(uid, text)), nil)
}

// Leave drops conn and tells the remaining users.
func (c *ChatChannel) Leave(uid domain.UserID, conn core.SignalConnection) core.PublishResult {
	c.Registry.Disconnect(uid, conn)
	return c.Router.Broadcast(core.Frame(LeftText(uid)), nil)
}
