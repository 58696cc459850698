package core

import (
	"encoding/json"
	"time"

	"github.com/google/uuid"
)

// CallState is the lifecycle stage of a pairwise call.
type CallState string

const (
	CallRinging    CallState = "ringing"
	CallConnecting CallState = "connecting"
	CallActive     CallState = "active"
	CallEnded      CallState = "ended"
)

// CallSession is one pairwise call attempt. Each party is bound to the
// client that will receive the session's events.
type CallSession struct {
	ID          string
	InitiatorID int64
	CalleeID    int64
	State       CallState
	StartedAt   time.Time
	AnsweredAt  time.Time
	LastSignal  json.RawMessage

	initiator *Client
	callee    *Client
}

func newCallSession(initiator *Client, calleeID int64, signal json.RawMessage, now time.Time) *CallSession {
	return &CallSession{
		ID:          uuid.NewString(),
		InitiatorID: initiator.UserID,
		CalleeID:    calleeID,
		State:       CallRinging,
		StartedAt:   now,
		LastSignal:  signal,
		initiator:   initiator,
	}
}

// Key returns the conversation pair the session belongs to.
func (s *CallSession) Key() ConversationKey {
	return NewConversationKey(s.InitiatorID, s.CalleeID)
}

// Has reports whether userID is a party of the session.
func (s *CallSession) Has(userID int64) bool {
	return s.InitiatorID == userID || s.CalleeID == userID
}

// Other returns the counterpart of userID.
func (s *CallSession) Other(userID int64) int64 {
	if userID == s.InitiatorID {
		return s.CalleeID
	}
	return s.InitiatorID
}

func (s *CallSession) connOf(userID int64) *Client {
	if userID == s.InitiatorID {
		return s.initiator
	}
	return s.callee
}

func (s *CallSession) boundTo(c *Client) bool {
	return s.initiator == c || s.callee == c
}

// accept moves a ringing session to connecting and binds the callee to c.
func (s *CallSession) accept(c *Client, signal json.RawMessage, now time.Time) error {
	if s.State != CallRinging || c.UserID != s.CalleeID {
		return ErrInvalidTransition
	}
	s.State = CallConnecting
	s.AnsweredAt = now
	s.callee = c
	if len(signal) > 0 {
		s.LastSignal = signal
	}
	return nil
}

// relay records a forwarded payload. The first one after answer promotes
// the session to active.
func (s *CallSession) relay(signal json.RawMessage) {
	if s.State == CallConnecting {
		s.State = CallActive
	}
	if len(signal) > 0 {
		s.LastSignal = signal
	}
}

// snapshot copies the exported fields for callers outside the hub lock.
func (s *CallSession) snapshot() CallSession {
	cp := *s
	cp.initiator = nil
	cp.callee = nil
	return cp
}

// CallTable holds at most one session per unordered pair.
// It is not safe for concurrent use; the Hub guards it.
type CallTable struct {
	sessions map[ConversationKey]*CallSession
}

// NewCallTable constructs an empty table.
func NewCallTable() *CallTable {
	return &CallTable{sessions: make(map[ConversationKey]*CallSession)}
}

// Get returns the session for the pair (a, b), if any.
func (t *CallTable) Get(a, b int64) *CallSession {
	return t.sessions[NewConversationKey(a, b)]
}

// Add stores s unless the pair already has a session.
func (t *CallTable) Add(s *CallSession) error {
	key := s.Key()
	if _, exists := t.sessions[key]; exists {
		return ErrCallExists
	}
	t.sessions[key] = s
	return nil
}

// Remove deletes the session for the pair and returns it.
func (t *CallTable) Remove(a, b int64) *CallSession {
	key := NewConversationKey(a, b)
	s := t.sessions[key]
	if s != nil {
		delete(t.sessions, key)
		s.State = CallEnded
	}
	return s
}

// Involving returns every session userID is part of.
func (t *CallTable) Involving(userID int64) []*CallSession {
	var out []*CallSession
	for _, s := range t.sessions {
		if s.Has(userID) {
			out = append(out, s)
		}
	}
	return out
}

// BoundTo returns the sessions whose events are routed to c.
func (t *CallTable) BoundTo(c *Client) []*CallSession {
	var out []*CallSession
	for _, s := range t.sessions {
		if s.boundTo(c) {
			out = append(out, s)
		}
	}
	return out
}

// RingingSince returns ringing sessions started at or before cutoff.
func (t *CallTable) RingingSince(cutoff time.Time) []*CallSession {
	var out []*CallSession
	for _, s := range t.sessions {
		if s.State == CallRinging && !s.StartedAt.After(cutoff) {
			out = append(out, s)
		}
	}
	return out
}

// Len returns the number of live sessions.
func (t *CallTable) Len() int {
	return len(t.sessions)
}
