package proto

import (
	"bytes"
	"encoding/json"
	"fmt"
	"strconv"
)

// ProtocolVersion is reported by the health endpoint so clients can detect
// incompatible relays.
const ProtocolVersion = 1

// Envelope types. Every frame is a flat JSON object tagged by "type".
const (
	TypeChatMessage     = "chat_message"
	TypeMessageReaction = "message_reaction"
	TypeChatReaction    = "chat_reaction"
	TypeTyping          = "typing"
	TypeUserStatus      = "user_status"
	TypeDeliveryFailed  = "delivery_failed"

	TypeCallUser     = "call_user"
	TypeIncomingCall = "incoming_call"
	TypeCallRinging  = "call_ringing"
	TypeAnswerCall   = "answer_call"
	TypeCallAccepted = "call_accepted"
	TypeSignal       = "signal"
	TypeDeclineCall  = "decline_call"
	TypeCallDeclined = "call_declined"
	TypeEndCall      = "end_call"
	TypeToggleMedia  = "toggle_media"
	TypeCallFailed   = "call_failed"

	TypeError = "error"
)

const (
	StatusOnline  = "online"
	StatusOffline = "offline"
)

// UserID accepts both JSON numbers and numeric strings, since browsers
// often pass ids read from route params.
type UserID int64

func (id *UserID) UnmarshalJSON(data []byte) error {
	data = bytes.TrimSpace(data)
	if bytes.Equal(data, []byte("null")) {
		*id = 0
		return nil
	}
	if len(data) > 0 && data[0] == '"' {
		var s string
		if err := json.Unmarshal(data, &s); err != nil {
			return err
		}
		if s == "" {
			*id = 0
			return nil
		}
		n, err := strconv.ParseInt(s, 10, 64)
		if err != nil {
			return fmt.Errorf("user id %q: %w", s, err)
		}
		*id = UserID(n)
		return nil
	}
	var n int64
	if err := json.Unmarshal(data, &n); err != nil {
		return err
	}
	*id = UserID(n)
	return nil
}

// Inbound is the union of every field a client may send. Which fields are
// meaningful depends on Type.
type Inbound struct {
	Type string `json:"type"`

	// chat_message; "message" is accepted as an alias of "body".
	Body      string `json:"body,omitempty"`
	Message   string `json:"message,omitempty"`
	ClientRef string `json:"client_ref,omitempty"`

	// message_reaction
	MessageID int64   `json:"message_id,omitempty"`
	Emoji     *string `json:"emoji,omitempty"`

	// typing
	IsTyping *bool `json:"is_typing,omitempty"`

	// call signaling
	UserToCall UserID          `json:"userToCall,omitempty"`
	To         UserID          `json:"to,omitempty"`
	SignalData json.RawMessage `json:"signalData,omitempty"`
	Signal     json.RawMessage `json:"signal,omitempty"`

	// toggle_media
	Kind   string `json:"kind,omitempty"`
	Status *bool  `json:"status,omitempty"`
}

// Text returns the message body, falling back to the "message" alias.
func (in Inbound) Text() string {
	if in.Body != "" {
		return in.Body
	}
	return in.Message
}

// ChatMessage is a persisted message relayed to both ends of a chat.
type ChatMessage struct {
	Type           string `json:"type"`
	ID             int64  `json:"id"`
	SenderID       int64  `json:"sender_id"`
	SenderUsername string `json:"sender_username"`
	RecipientID    int64  `json:"recipient_id"`
	Message        string `json:"message"`
	Timestamp      string `json:"timestamp"`
	ClientRef      string `json:"client_ref,omitempty"`
}

// ChatReaction is the net reaction of a user on a message. An empty emoji
// means the reaction was removed.
type ChatReaction struct {
	Type      string `json:"type"`
	MessageID int64  `json:"message_id"`
	SenderID  int64  `json:"sender_id"`
	Emoji     string `json:"emoji"`
}

// Typing relays the peer's typing indicator.
type Typing struct {
	Type     string `json:"type"`
	UserID   int64  `json:"user_id"`
	IsTyping bool   `json:"is_typing"`
}

// UserStatus announces a presence change.
type UserStatus struct {
	Type   string `json:"type"`
	UserID int64  `json:"user_id"`
	Status string `json:"status"`
}

// DeliveryFailed tells the sender a message or reaction was not stored.
type DeliveryFailed struct {
	Type      string `json:"type"`
	ClientRef string `json:"client_ref,omitempty"`
	Reason    string `json:"reason"`
}

// CallInvite rings a callee (call_user on chat, incoming_call on notify).
type CallInvite struct {
	Type         string          `json:"type"`
	CallID       string          `json:"call_id"`
	From         int64           `json:"from"`
	FromUsername string          `json:"from_username"`
	SignalData   json.RawMessage `json:"signalData,omitempty"`
}

// CallSignal carries an opaque payload (call_accepted, signal).
type CallSignal struct {
	Type         string          `json:"type"`
	CallID       string          `json:"call_id"`
	From         int64           `json:"from"`
	FromUsername string          `json:"from_username,omitempty"`
	Signal       json.RawMessage `json:"signal,omitempty"`
}

// CallControl is a payload-free call notice (call_ringing, call_declined,
// end_call, call_failed).
type CallControl struct {
	Type   string `json:"type"`
	CallID string `json:"call_id,omitempty"`
	From   int64  `json:"from,omitempty"`
	To     int64  `json:"to,omitempty"`
	Reason string `json:"reason,omitempty"`
}

// ToggleMedia relays a remote mute/camera change.
type ToggleMedia struct {
	Type   string `json:"type"`
	CallID string `json:"call_id"`
	From   int64  `json:"from"`
	Kind   string `json:"kind"`
	Status bool   `json:"status"`
}

// Error describes a soft protocol-level error.
type Error struct {
	Type    string `json:"type"`
	Code    string `json:"code"`
	Message string `json:"message"`
}
