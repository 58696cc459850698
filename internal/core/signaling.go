package core

import (
	"time"

	"github.com/vovakirdan/snapnest-relay/internal/store"
)

// counterpart resolves the other party of a call command. Chat clients
// default to their peer; notify clients must name the target.
func counterpart(c *Client, cmd *Command) int64 {
	if cmd.To != 0 {
		return cmd.To
	}
	if c.Channel == ChannelChat {
		return c.PeerID
	}
	return 0
}

func (h *Hub) handleCallUser(c *Client, cmd *Command) {
	calleeID := counterpart(c, cmd)
	if calleeID == 0 || calleeID == c.UserID {
		c.send(&Event{Kind: EventCallFailed, To: calleeID, Reason: ReasonInvalid})
		return
	}

	h.mu.Lock()
	defer h.mu.Unlock()

	if !h.liveLocked(c) {
		return
	}
	if existing := h.calls.Get(c.UserID, calleeID); existing != nil {
		if !h.resolveGlareLocked(c, existing) {
			return
		}
	}
	if h.busyLocked(c.UserID, calleeID) || h.busyLocked(calleeID, c.UserID) {
		c.send(&Event{Kind: EventCallFailed, To: calleeID, Reason: ReasonBusy})
		return
	}

	s := newCallSession(c, calleeID, cmd.Signal, h.now())
	ev := &Event{
		From:         c.UserID,
		FromUsername: c.Username,
		To:           calleeID,
		CallID:       s.ID,
		Signal:       cmd.Signal,
	}

	if chat := h.registry.ChatPeer(calleeID, c.UserID); chat != nil {
		s.callee = chat
		ev.Kind = EventCallUser
	} else if notify := h.registry.Lookup(calleeID, ChannelNotify); notify != nil {
		s.callee = notify
		ev.Kind = EventIncomingCall
	} else {
		c.send(&Event{Kind: EventCallFailed, To: calleeID, Reason: ReasonUnreachable})
		h.logger.Debug().Int64("user_id", c.UserID).Int64("callee_id", calleeID).Msg("callee unreachable")
		return
	}

	if err := h.calls.Add(s); err != nil {
		c.send(&Event{Kind: EventCallFailed, To: calleeID, Reason: ReasonBusy})
		return
	}
	s.callee.send(ev)
	c.send(&Event{Kind: EventCallRinging, From: calleeID, To: calleeID, CallID: s.ID})
	h.enqueueCallLog(callLogOp{create: true, call: store.Call{
		ID:          s.ID,
		InitiatorID: s.InitiatorID,
		CalleeID:    s.CalleeID,
		Status:      store.CallStatusRinging,
		CreatedAt:   s.StartedAt,
	}})
	h.logger.Info().
		Str("call_id", s.ID).
		Int64("user_id", c.UserID).
		Int64("callee_id", calleeID).
		Str("via", string(s.callee.Channel)).
		Msg("call ringing")
}

// resolveGlareLocked decides what happens when a call_user arrives for a pair
// that already has a session. It returns true when the new attempt may proceed.
// When two users ring each other, the session started by the lower user id wins.
func (h *Hub) resolveGlareLocked(c *Client, existing *CallSession) bool {
	reversed := existing.State == CallRinging && existing.CalleeID == c.UserID
	if !reversed {
		c.send(&Event{Kind: EventCallFailed, To: existing.Other(c.UserID), CallID: existing.ID, Reason: ReasonBusy})
		return false
	}
	if existing.InitiatorID < c.UserID {
		c.send(&Event{Kind: EventCallFailed, To: existing.InitiatorID, CallID: existing.ID, Reason: ReasonGlare})
		return false
	}

	h.calls.Remove(existing.InitiatorID, existing.CalleeID)
	h.deliverCallLocked(existing, existing.InitiatorID, &Event{
		Kind:   EventCallFailed,
		From:   c.UserID,
		To:     c.UserID,
		CallID: existing.ID,
		Reason: ReasonGlare,
	})
	h.enqueueCallFailed(existing, ReasonGlare)
	h.logger.Info().Str("call_id", existing.ID).Msg("call replaced after simultaneous ring")
	return true
}

// busyLocked reports whether userID is in a session with anyone but except.
func (h *Hub) busyLocked(userID, except int64) bool {
	for _, s := range h.calls.Involving(userID) {
		if !s.Has(except) {
			return true
		}
	}
	return false
}

func (h *Hub) handleAnswerCall(c *Client, cmd *Command) {
	otherID := counterpart(c, cmd)

	h.mu.Lock()
	defer h.mu.Unlock()

	if !h.liveLocked(c) {
		return
	}
	s := h.calls.Get(c.UserID, otherID)
	if s == nil {
		c.send(ErrorEvent(ErrCodeCallNotFound, "no ringing call to answer"))
		return
	}
	if err := s.accept(c, cmd.Signal, h.now()); err != nil {
		c.send(ErrorEvent(ErrCodeCallNotFound, "no ringing call to answer"))
		return
	}
	h.deliverCallLocked(s, s.InitiatorID, &Event{
		Kind:         EventCallAccepted,
		From:         c.UserID,
		FromUsername: c.Username,
		To:           s.InitiatorID,
		CallID:       s.ID,
		Signal:       cmd.Signal,
	})
	answered := s.AnsweredAt
	h.enqueueCallLog(callLogOp{call: store.Call{
		ID:          s.ID,
		InitiatorID: s.InitiatorID,
		CalleeID:    s.CalleeID,
		Status:      store.CallStatusActive,
		CreatedAt:   s.StartedAt,
		AnsweredAt:  &answered,
	}})
	h.logger.Info().Str("call_id", s.ID).Int64("user_id", c.UserID).Msg("call accepted")
}

func (h *Hub) handleSignal(c *Client, cmd *Command) {
	otherID := counterpart(c, cmd)
	if len(cmd.Signal) == 0 {
		h.logger.Debug().Int64("user_id", c.UserID).Msg("empty signal dropped")
		return
	}

	h.mu.Lock()
	defer h.mu.Unlock()

	s := h.calls.Get(c.UserID, otherID)
	if s == nil {
		c.send(ErrorEvent(ErrCodeCallNotFound, "no call to signal"))
		return
	}
	if s.State != CallRinging {
		s.relay(cmd.Signal)
	}
	h.deliverCallLocked(s, otherID, &Event{
		Kind:   EventSignal,
		From:   c.UserID,
		To:     otherID,
		CallID: s.ID,
		Signal: cmd.Signal,
	})
}

func (h *Hub) handleDeclineCall(c *Client, cmd *Command) {
	otherID := counterpart(c, cmd)

	h.mu.Lock()
	defer h.mu.Unlock()

	s := h.calls.Get(c.UserID, otherID)
	if s == nil || (s.State != CallRinging && s.State != CallConnecting) {
		c.send(ErrorEvent(ErrCodeCallNotFound, "no pending call to decline"))
		return
	}
	h.calls.Remove(c.UserID, otherID)
	h.deliverCallLocked(s, otherID, &Event{
		Kind:   EventCallDeclined,
		From:   c.UserID,
		To:     otherID,
		CallID: s.ID,
		Reason: ReasonDeclined,
	})
	h.enqueueCallLog(callLogOp{call: endedRecord(s, store.CallStatusDeclined, ReasonDeclined, h.now())})
	h.logger.Info().Str("call_id", s.ID).Int64("user_id", c.UserID).Msg("call declined")
}

func (h *Hub) handleEndCall(c *Client, cmd *Command) {
	otherID := counterpart(c, cmd)

	h.mu.Lock()
	defer h.mu.Unlock()

	s := h.calls.Remove(c.UserID, otherID)
	if s == nil {
		return
	}
	h.deliverCallLocked(s, otherID, &Event{
		Kind:   EventEndCall,
		From:   c.UserID,
		To:     otherID,
		CallID: s.ID,
		Reason: ReasonHangup,
	})
	h.enqueueCallEnd(s, ReasonHangup)
	h.logger.Info().Str("call_id", s.ID).Int64("user_id", c.UserID).Msg("call ended")
}

func (h *Hub) handleToggleMedia(c *Client, cmd *Command) {
	if cmd.Media.Kind != "audio" && cmd.Media.Kind != "video" {
		c.send(ErrorEvent(ErrCodeBadRequest, "kind must be audio or video"))
		return
	}
	otherID := counterpart(c, cmd)

	h.mu.RLock()
	defer h.mu.RUnlock()

	s := h.calls.Get(c.UserID, otherID)
	if s == nil {
		c.send(ErrorEvent(ErrCodeCallNotFound, "no call to update"))
		return
	}
	media := cmd.Media
	h.deliverCallLocked(s, otherID, &Event{
		Kind:   EventToggleMedia,
		From:   c.UserID,
		To:     otherID,
		CallID: s.ID,
		Media:  &media,
	})
}

// sweepRinging expires sessions that rang longer than the ring timeout.
func (h *Hub) sweepRinging(now time.Time) {
	h.mu.Lock()
	defer h.mu.Unlock()

	for _, s := range h.calls.RingingSince(now.Add(-h.ringTimeout)) {
		h.calls.Remove(s.InitiatorID, s.CalleeID)
		h.deliverCallLocked(s, s.InitiatorID, &Event{
			Kind:   EventCallFailed,
			To:     s.CalleeID,
			CallID: s.ID,
			Reason: ReasonNoAnswer,
		})
		h.deliverCallLocked(s, s.CalleeID, &Event{
			Kind:   EventEndCall,
			From:   s.InitiatorID,
			To:     s.CalleeID,
			CallID: s.ID,
			Reason: ReasonNoAnswer,
		})
		h.enqueueCallFailed(s, ReasonNoAnswer)
		h.logger.Info().Str("call_id", s.ID).Msg("call not answered")
	}
}

// deliverCallLocked routes a call event to userID: the client bound to the
// session first, then a chat client paired with the other party, then the
// notification client.
func (h *Hub) deliverCallLocked(s *CallSession, userID int64, ev *Event) bool {
	if c := s.connOf(userID); c != nil {
		if h.registry.Lookup(c.UserID, c.Channel) == c {
			return c.send(ev)
		}
	}
	if c := h.registry.ChatPeer(userID, s.Other(userID)); c != nil {
		return c.send(ev)
	}
	return h.notifyLocked(userID, ev)
}
