package http

import (
	"net/http"
	"strconv"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/rs/zerolog"

	"github.com/vovakirdan/snapnest-relay/internal/store"
)

const (
	defaultHistoryLimit = 50
	maxHistoryLimit     = 200
)

// MessageHandlers serves conversation history.
type MessageHandlers struct {
	store store.MessageStore
	log   *zerolog.Logger
}

// NewMessageHandlers creates a new message handlers instance.
func NewMessageHandlers(st store.MessageStore, logger *zerolog.Logger) *MessageHandlers {
	return &MessageHandlers{store: st, log: logger}
}

// ReactionResponse is one user's reaction on a message.
type ReactionResponse struct {
	UserID int64  `json:"user_id"`
	Emoji  string `json:"emoji"`
}

// MessageResponse is a stored message with its reactions.
type MessageResponse struct {
	ID          int64              `json:"id"`
	SenderID    int64              `json:"sender_id"`
	RecipientID int64              `json:"recipient_id"`
	Message     string             `json:"message"`
	IsRead      bool               `json:"is_read"`
	Timestamp   string             `json:"timestamp"`
	Reactions   []ReactionResponse `json:"reactions"`
}

// History returns the conversation with another user, oldest first, and
// marks the messages addressed to the caller as read.
// GET /api/messages/:user_id?limit=50&before=123
func (h *MessageHandlers) History(c *gin.Context) {
	uid, ok := currentUserID(c)
	if !ok {
		c.JSON(http.StatusUnauthorized, ErrorResponse{Error: "unauthorized"})
		return
	}
	peerID, err := strconv.ParseInt(c.Param("user_id"), 10, 64)
	if err != nil || peerID <= 0 {
		c.JSON(http.StatusBadRequest, ErrorResponse{Error: "invalid user id"})
		return
	}

	limit := defaultHistoryLimit
	if raw := c.Query("limit"); raw != "" {
		n, err := strconv.Atoi(raw)
		if err != nil || n <= 0 {
			c.JSON(http.StatusBadRequest, ErrorResponse{Error: "invalid limit"})
			return
		}
		limit = min(n, maxHistoryLimit)
	}
	var before *int64
	if raw := c.Query("before"); raw != "" {
		n, err := strconv.ParseInt(raw, 10, 64)
		if err != nil || n <= 0 {
			c.JSON(http.StatusBadRequest, ErrorResponse{Error: "invalid before"})
			return
		}
		before = &n
	}

	ctx := c.Request.Context()
	messages, err := h.store.ListConversation(ctx, uid, peerID, limit, before)
	if err != nil {
		h.log.Error().Err(err).Int64("user_id", uid).Int64("peer_id", peerID).Msg("failed to list conversation")
		c.JSON(http.StatusInternalServerError, ErrorResponse{Error: "internal server error"})
		return
	}

	ids := make([]int64, 0, len(messages))
	for _, m := range messages {
		ids = append(ids, m.ID)
	}
	reactions, err := h.store.ListReactions(ctx, ids)
	if err != nil {
		h.log.Error().Err(err).Msg("failed to list reactions")
		c.JSON(http.StatusInternalServerError, ErrorResponse{Error: "internal server error"})
		return
	}
	byMessage := make(map[int64][]ReactionResponse, len(reactions))
	for _, r := range reactions {
		byMessage[r.MessageID] = append(byMessage[r.MessageID], ReactionResponse{UserID: r.UserID, Emoji: r.Emoji})
	}

	if err := h.store.MarkRead(ctx, uid, peerID); err != nil {
		h.log.Warn().Err(err).Int64("user_id", uid).Msg("failed to mark messages read")
	}

	response := make([]MessageResponse, 0, len(messages))
	for _, m := range messages {
		rs := byMessage[m.ID]
		if rs == nil {
			rs = []ReactionResponse{}
		}
		response = append(response, MessageResponse{
			ID:          m.ID,
			SenderID:    m.SenderID,
			RecipientID: m.RecipientID,
			Message:     m.Body,
			IsRead:      m.IsRead,
			Timestamp:   m.CreatedAt.UTC().Format(time.RFC3339Nano),
			Reactions:   rs,
		})
	}
	c.JSON(http.StatusOK, response)
}
