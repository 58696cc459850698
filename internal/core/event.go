package core

import (
	"encoding/json"
	"time"
)

// EventKind is a notification the core emits to clients.
type EventKind int

const (
	// EventChatMessage delivers a persisted chat message (ack to sender, relay to peer).
	EventChatMessage EventKind = iota
	// EventChatReaction reflects the net reaction of a user on a message.
	EventChatReaction
	// EventTyping relays the peer's typing indicator.
	EventTyping
	// EventUserStatus announces a presence change of the chat peer.
	EventUserStatus
	// EventDeliveryFailed tells the sender a message or reaction was not stored.
	EventDeliveryFailed
	// EventError notifies clients about a soft domain error.
	EventError

	// Call events
	// EventCallUser rings a callee that has the caller's chat open.
	EventCallUser
	// EventIncomingCall rings a callee through the notification channel.
	EventIncomingCall
	// EventCallRinging confirms to the initiator that the callee is being alerted.
	EventCallRinging
	// EventCallAccepted notifies the initiator that the callee answered.
	EventCallAccepted
	// EventSignal relays an opaque signaling payload.
	EventSignal
	// EventCallDeclined notifies the other party the call was declined.
	EventCallDeclined
	// EventEndCall notifies the other party the call has ended.
	EventEndCall
	// EventToggleMedia relays a mute/camera indicator change.
	EventToggleMedia
	// EventCallFailed tells the initiator the call could not be placed.
	EventCallFailed
)

// Reasons attached to call_failed / end_call events.
const (
	ReasonUnreachable  = "unreachable"
	ReasonBusy         = "busy"
	ReasonGlare        = "glare"
	ReasonInvalid      = "invalid"
	ReasonNoAnswer     = "no_answer"
	ReasonDisconnected = "disconnected"
	ReasonHangup       = "hangup"
	ReasonDeclined     = "declined"
)

// Reasons attached to delivery_failed events.
const (
	ReasonPersistFailed = "persist_failed"
	ReasonTimeout       = "timeout"
)

// Event is sent to clients to describe what happened in the system.
type Event struct {
	Kind         EventKind
	From         int64 // acting user (sender, caller, user whose status changed)
	FromUsername string
	To           int64
	CallID       string
	Reason       string
	ClientRef    string
	Typing       bool
	Online       bool
	Signal       json.RawMessage
	Message      *Message
	Reaction     *Reaction
	Media        *MediaToggle
	Error        *CoreError
}

// Message is a chat message as relayed to clients.
type Message struct {
	ID             int64
	SenderID       int64
	SenderUsername string
	RecipientID    int64
	Body           string
	CreatedAt      time.Time
}

// Reaction is the net reaction state of one user on one message.
// An empty Emoji means the reaction was removed.
type Reaction struct {
	MessageID int64
	SenderID  int64
	Emoji     string
}
