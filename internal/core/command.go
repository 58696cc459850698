package core

import "encoding/json"

// CommandKind describes what the client wants to do.
type CommandKind int

const (
	// CommandChatMessage persists a message and relays it to the peer.
	CommandChatMessage CommandKind = iota
	// CommandReaction sets or clears the sender's reaction on a message.
	CommandReaction
	// CommandTyping relays the typing indicator to the peer.
	CommandTyping

	// CommandCallUser starts ringing the callee.
	CommandCallUser
	// CommandAnswerCall accepts a ringing call.
	CommandAnswerCall
	// CommandSignal relays an opaque ICE/renegotiation payload.
	CommandSignal
	// CommandDeclineCall rejects (or cancels) a pending call.
	CommandDeclineCall
	// CommandEndCall hangs up.
	CommandEndCall
	// CommandToggleMedia announces a local mute/camera change.
	CommandToggleMedia
)

var commandNames = map[CommandKind]string{
	CommandChatMessage: "chat_message",
	CommandReaction:    "message_reaction",
	CommandTyping:      "typing",
	CommandCallUser:    "call_user",
	CommandAnswerCall:  "answer_call",
	CommandSignal:      "signal",
	CommandDeclineCall: "decline_call",
	CommandEndCall:     "end_call",
	CommandToggleMedia: "toggle_media",
}

func (k CommandKind) String() string {
	if name, ok := commandNames[k]; ok {
		return name
	}
	return "unknown"
}

// MediaToggle describes a remote mute/camera indicator change.
type MediaToggle struct {
	Kind    string // "audio" or "video"
	Enabled bool
}

// Command represents an action requested by a client.
type Command struct {
	Kind      CommandKind
	To        int64 // counterpart for call commands; defaults to the chat peer
	Body      string
	ClientRef string
	MessageID int64
	Emoji     string
	Typing    bool
	Signal    json.RawMessage
	Media     MediaToggle
}
