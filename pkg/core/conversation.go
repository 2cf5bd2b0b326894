package core

import (
	"context"
	"sync"

	"github.com/vango-go/vai-studio/pkg/core/types"
)

// ChatSender is the subset of Router used by Conversation.
type ChatSender interface {
	SendChatMessage(ctx context.Context, cfg types.ProviderConfig, req *types.ChatRequest) (string, error)
}

// Conversation is an ordered chat log. Sends are serialized so messages
// reach the provider in submission order, each carrying every earlier turn
// as history.
type Conversation struct {
	system string

	sendMu sync.Mutex // held for the duration of a send
	mu     sync.Mutex
	turns  []types.ChatTurn
}

// NewConversation creates an empty conversation with an optional system
// prompt.
func NewConversation(system string) *Conversation {
	return &Conversation{system: system}
}

// Turns returns a copy of the log.
func (c *Conversation) Turns() []types.ChatTurn {
	c.mu.Lock()
	defer c.mu.Unlock()
	out := make([]types.ChatTurn, len(c.turns))
	copy(out, c.turns)
	return out
}

// Send appends text as a user turn, sends it with the prior turns as history
// and appends the reply. The user turn stays in the log when the send fails.
func (c *Conversation) Send(ctx context.Context, sender ChatSender, cfg types.ProviderConfig, text string) (string, error) {
	c.sendMu.Lock()
	defer c.sendMu.Unlock()

	c.mu.Lock()
	history := make([]types.ChatTurn, len(c.turns))
	copy(history, c.turns)
	c.turns = append(c.turns, types.ChatTurn{Role: types.RoleUser, Text: text})
	c.mu.Unlock()

	reply, err := sender.SendChatMessage(ctx, cfg, &types.ChatRequest{
		History: history,
		Message: text,
		System:  c.system,
	})
	if err != nil {
		return "", err
	}

	c.mu.Lock()
	c.turns = append(c.turns, types.ChatTurn{Role: types.RoleAssistant, Text: reply})
	c.mu.Unlock()
	return reply, nil
}

// Reset clears the log.
func (c *Conversation) Reset() {
	c.mu.Lock()
	c.turns = nil
	c.mu.Unlock()
}
