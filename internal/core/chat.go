package core

import (
	"context"
	"errors"
	"strings"

	"github.com/vovakirdan/snapnest-relay/internal/store"
)

func (h *Hub) handleChatMessage(ctx context.Context, c *Client, cmd *Command) {
	if strings.TrimSpace(cmd.Body) == "" {
		h.logger.Debug().Int64("user_id", c.UserID).Msg("empty chat message dropped")
		return
	}
	if h.messages == nil {
		c.send(&Event{Kind: EventDeliveryFailed, ClientRef: cmd.ClientRef, Reason: ReasonPersistFailed})
		return
	}

	msg := &store.Message{
		SenderID:    c.UserID,
		RecipientID: c.PeerID,
		Body:        cmd.Body,
		CreatedAt:   h.now().UTC(),
	}
	pctx, cancel := h.persistContext(ctx)
	err := h.messages.CreateMessage(pctx, msg)
	cancel()
	if err != nil {
		h.logger.Warn().
			Err(err).
			Int64("user_id", c.UserID).
			Int64("peer_id", c.PeerID).
			Msg("persist chat message failed")
		c.send(&Event{Kind: EventDeliveryFailed, ClientRef: cmd.ClientRef, Reason: failureReason(err)})
		return
	}

	relayed := &Message{
		ID:             msg.ID,
		SenderID:       msg.SenderID,
		SenderUsername: c.Username,
		RecipientID:    msg.RecipientID,
		Body:           msg.Body,
		CreatedAt:      msg.CreatedAt,
	}

	h.mu.RLock()
	peer := h.registry.ChatPeer(c.PeerID, c.UserID)
	h.mu.RUnlock()

	c.send(&Event{Kind: EventChatMessage, From: c.UserID, FromUsername: c.Username, To: c.PeerID, ClientRef: cmd.ClientRef, Message: relayed})
	if peer != nil {
		peer.send(&Event{Kind: EventChatMessage, From: c.UserID, FromUsername: c.Username, To: c.PeerID, Message: relayed})
	}
}

func (h *Hub) handleReaction(ctx context.Context, c *Client, cmd *Command) {
	if cmd.MessageID <= 0 {
		h.logger.Debug().Int64("user_id", c.UserID).Msg("reaction without message id dropped")
		return
	}
	if h.messages == nil {
		c.send(&Event{Kind: EventDeliveryFailed, Reason: ReasonPersistFailed})
		return
	}
	emoji := strings.TrimSpace(cmd.Emoji)

	pctx, cancel := h.persistContext(ctx)
	defer cancel()

	msg, err := h.messages.GetMessage(pctx, cmd.MessageID)
	if err != nil && !errors.Is(err, store.ErrNotFound) {
		h.logger.Warn().Err(err).Int64("message_id", cmd.MessageID).Msg("load reaction target failed")
		c.send(&Event{Kind: EventDeliveryFailed, Reason: failureReason(err)})
		return
	}
	if err != nil || !msg.Between(c.UserID, c.PeerID) {
		c.send(ErrorEvent(ErrCodeMessageNotFound, "message not found in this conversation"))
		return
	}

	if err := h.messages.SetReaction(pctx, cmd.MessageID, c.UserID, emoji); err != nil {
		h.logger.Warn().Err(err).Int64("message_id", cmd.MessageID).Msg("persist reaction failed")
		c.send(&Event{Kind: EventDeliveryFailed, Reason: failureReason(err)})
		return
	}

	ev := &Event{
		Kind:     EventChatReaction,
		From:     c.UserID,
		Reaction: &Reaction{MessageID: cmd.MessageID, SenderID: c.UserID, Emoji: emoji},
	}

	h.mu.RLock()
	peer := h.registry.ChatPeer(c.PeerID, c.UserID)
	h.mu.RUnlock()

	c.send(ev)
	if peer != nil {
		peer.send(ev)
	}
}

func (h *Hub) handleTyping(c *Client, cmd *Command) {
	h.mu.Lock()
	defer h.mu.Unlock()

	if !h.liveLocked(c) {
		return
	}
	h.typing.Set(c.conversation(), c.UserID, cmd.Typing)
	if peer := h.registry.ChatPeer(c.PeerID, c.UserID); peer != nil {
		peer.send(&Event{Kind: EventTyping, From: c.UserID, Typing: cmd.Typing})
	}
}
