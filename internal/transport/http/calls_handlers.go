package http

import (
	"net/http"
	"strconv"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/rs/zerolog"

	"github.com/vovakirdan/snapnest-relay/internal/store"
)

const defaultCallsLimit = 20

// CallsHandlers provides HTTP handlers for call history.
type CallsHandlers struct {
	store store.CallStore
	log   *zerolog.Logger
}

// NewCallsHandlers creates a new calls handlers instance.
func NewCallsHandlers(st store.CallStore, logger *zerolog.Logger) *CallsHandlers {
	return &CallsHandlers{store: st, log: logger}
}

// CallResponse represents a call in API responses.
type CallResponse struct {
	ID          string  `json:"id"`
	InitiatorID int64   `json:"initiator_id"`
	CalleeID    int64   `json:"callee_id"`
	Status      string  `json:"status"`
	EndReason   string  `json:"end_reason,omitempty"`
	CreatedAt   string  `json:"created_at"`
	AnsweredAt  *string `json:"answered_at,omitempty"`
	EndedAt     *string `json:"ended_at,omitempty"`
}

func formatOptionalTime(t *time.Time) *string {
	if t == nil {
		return nil
	}
	s := t.UTC().Format(time.RFC3339)
	return &s
}

// callToResponse converts a store.Call to CallResponse.
func callToResponse(call *store.Call) CallResponse {
	return CallResponse{
		ID:          call.ID,
		InitiatorID: call.InitiatorID,
		CalleeID:    call.CalleeID,
		Status:      string(call.Status),
		EndReason:   call.EndReason,
		CreatedAt:   call.CreatedAt.UTC().Format(time.RFC3339),
		AnsweredAt:  formatOptionalTime(call.AnsweredAt),
		EndedAt:     formatOptionalTime(call.EndedAt),
	}
}

// List returns the caller's most recent calls.
// GET /api/calls?limit=20
func (h *CallsHandlers) List(c *gin.Context) {
	uid, ok := currentUserID(c)
	if !ok {
		c.JSON(http.StatusUnauthorized, ErrorResponse{Error: "unauthorized"})
		return
	}

	limit := defaultCallsLimit
	if raw := c.Query("limit"); raw != "" {
		n, err := strconv.Atoi(raw)
		if err != nil || n <= 0 {
			c.JSON(http.StatusBadRequest, ErrorResponse{Error: "invalid limit"})
			return
		}
		limit = min(n, maxHistoryLimit)
	}

	calls, err := h.store.ListCalls(c.Request.Context(), uid, limit)
	if err != nil {
		h.log.Error().Err(err).Int64("user_id", uid).Msg("failed to list calls")
		c.JSON(http.StatusInternalServerError, ErrorResponse{Error: "internal server error"})
		return
	}

	response := make([]CallResponse, 0, len(calls))
	for _, call := range calls {
		response = append(response, callToResponse(call))
	}
	c.JSON(http.StatusOK, response)
}
