package core

import (
	"context"
	"time"

	"github.com/vovakirdan/snapnest-relay/internal/store"
)

// Notify delivers ev to userID's notification connection. The event is
// dropped when the user has none; there is no offline queue.
func (h *Hub) Notify(userID int64, ev *Event) bool {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return h.notifyLocked(userID, ev)
}

func (h *Hub) notifyLocked(userID int64, ev *Event) bool {
	c := h.registry.Lookup(userID, ChannelNotify)
	if c == nil {
		h.logger.Debug().Int64("user_id", userID).Msg("notification dropped: no notify connection")
		return false
	}
	if !c.send(ev) {
		h.logger.Debug().Int64("user_id", userID).Str("client_id", c.ID).Msg("notification dropped: queue full")
		return false
	}
	return true
}

// callLogOp is a pending write of a call history row.
type callLogOp struct {
	create bool
	call   store.Call
}

func (h *Hub) enqueueCallLog(op callLogOp) {
	if h.logs == nil {
		return
	}
	select {
	case h.logs <- op:
	default:
		h.logger.Warn().Str("call_id", op.call.ID).Msg("call log queue full, record dropped")
	}
}

func (h *Hub) enqueueCallEnd(s *CallSession, reason string) {
	h.enqueueCallLog(callLogOp{call: endedRecord(s, store.CallStatusEnded, reason, h.now())})
}

func (h *Hub) enqueueCallFailed(s *CallSession, reason string) {
	h.enqueueCallLog(callLogOp{call: endedRecord(s, store.CallStatusFailed, reason, h.now())})
}

func endedRecord(s *CallSession, status store.CallStatus, reason string, now time.Time) store.Call {
	rec := store.Call{
		ID:          s.ID,
		InitiatorID: s.InitiatorID,
		CalleeID:    s.CalleeID,
		Status:      status,
		EndReason:   reason,
		CreatedAt:   s.StartedAt,
		EndedAt:     &now,
	}
	if !s.AnsweredAt.IsZero() {
		answered := s.AnsweredAt
		rec.AnsweredAt = &answered
	}
	return rec
}

func (h *Hub) writeCallLog(ctx context.Context, op callLogOp) {
	wctx, cancel := h.persistContext(ctx)
	defer cancel()

	var err error
	if op.create {
		err = h.callLog.CreateCall(wctx, &op.call)
	} else {
		err = h.callLog.UpdateCall(wctx, &op.call)
	}
	if err != nil {
		h.logger.Warn().Err(err).Str("call_id", op.call.ID).Msg("write call log failed")
	}
}

// drainCallLog writes every queued record.
func (h *Hub) drainCallLog(ctx context.Context) {
	for {
		select {
		case op := <-h.logs:
			h.writeCallLog(ctx, op)
		default:
			return
		}
	}
}
