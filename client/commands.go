package client

import (
	"encoding/json"
	"fmt"

	"github.com/vovakirdan/snapnest-relay/internal/proto"
)

// Frame types re-exported for subscribers.
const (
	TypeChatMessage    = proto.TypeChatMessage
	TypeChatReaction   = proto.TypeChatReaction
	TypeTyping         = proto.TypeTyping
	TypeUserStatus     = proto.TypeUserStatus
	TypeDeliveryFailed = proto.TypeDeliveryFailed
	TypeCallUser       = proto.TypeCallUser
	TypeIncomingCall   = proto.TypeIncomingCall
	TypeCallRinging    = proto.TypeCallRinging
	TypeCallAccepted   = proto.TypeCallAccepted
	TypeSignal         = proto.TypeSignal
	TypeCallDeclined   = proto.TypeCallDeclined
	TypeEndCall        = proto.TypeEndCall
	TypeToggleMedia    = proto.TypeToggleMedia
	TypeCallFailed     = proto.TypeCallFailed
	TypeError          = proto.TypeError
)

// Inbound frame payloads, decoded with Event.Decode.
type (
	ChatMessage    = proto.ChatMessage
	ChatReaction   = proto.ChatReaction
	Typing         = proto.Typing
	UserStatus     = proto.UserStatus
	DeliveryFailed = proto.DeliveryFailed
	CallInvite     = proto.CallInvite
	CallSignal     = proto.CallSignal
	CallControl    = proto.CallControl
	ToggleMedia    = proto.ToggleMedia
	Error          = proto.Error
)

func rawSignal(signal any) (json.RawMessage, error) {
	if signal == nil {
		return nil, nil
	}
	if raw, ok := signal.(json.RawMessage); ok {
		return raw, nil
	}
	data, err := json.Marshal(signal)
	if err != nil {
		return nil, fmt.Errorf("client: marshal signal: %w", err)
	}
	return data, nil
}

// SendMessage sends a chat message on a chat channel. ref is echoed back on
// the sender's acknowledgement.
func (c *Conn) SendMessage(body, ref string) error {
	return c.Send(proto.Inbound{Type: proto.TypeChatMessage, Body: body, ClientRef: ref})
}

// React sets the caller's reaction on a message; an empty emoji removes it.
func (c *Conn) React(messageID int64, emoji string) error {
	return c.Send(proto.Inbound{Type: proto.TypeMessageReaction, MessageID: messageID, Emoji: &emoji})
}

// SetTyping updates the caller's typing indicator in the current chat.
func (c *Conn) SetTyping(typing bool) error {
	return c.Send(proto.Inbound{Type: proto.TypeTyping, IsTyping: &typing})
}

// CallUser rings userID with an opaque offer.
func (c *Conn) CallUser(userID int64, offer any) error {
	raw, err := rawSignal(offer)
	if err != nil {
		return err
	}
	return c.Send(proto.Inbound{Type: proto.TypeCallUser, UserToCall: proto.UserID(userID), SignalData: raw})
}

// AnswerCall accepts the call from userID with an opaque answer.
func (c *Conn) AnswerCall(userID int64, answer any) error {
	raw, err := rawSignal(answer)
	if err != nil {
		return err
	}
	return c.Send(proto.Inbound{Type: proto.TypeAnswerCall, To: proto.UserID(userID), Signal: raw})
}

// Signal relays an opaque negotiation payload to the other party.
func (c *Conn) Signal(userID int64, payload any) error {
	raw, err := rawSignal(payload)
	if err != nil {
		return err
	}
	return c.Send(proto.Inbound{Type: proto.TypeSignal, To: proto.UserID(userID), Signal: raw})
}

// DeclineCall rejects a ringing call from userID.
func (c *Conn) DeclineCall(userID int64) error {
	return c.Send(proto.Inbound{Type: proto.TypeDeclineCall, To: proto.UserID(userID)})
}

// EndCall hangs up the call with userID.
func (c *Conn) EndCall(userID int64) error {
	return c.Send(proto.Inbound{Type: proto.TypeEndCall, To: proto.UserID(userID)})
}

// ToggleMedia announces a local "audio" or "video" change to the other party.
func (c *Conn) ToggleMedia(userID int64, kind string, enabled bool) error {
	return c.Send(proto.Inbound{Type: proto.TypeToggleMedia, To: proto.UserID(userID), Kind: kind, Status: &enabled})
}
