package http

import (
	"errors"
	"time"

	"github.com/vovakirdan/snapnest-relay/internal/core"
	"github.com/vovakirdan/snapnest-relay/internal/proto"
)

// errMalformed marks inbound frames that are dropped without a reply.
var errMalformed = errors.New("malformed inbound frame")

func inboundToCommand(inbound proto.Inbound) (*core.Command, *proto.Error, error) {
	switch inbound.Type {
	case proto.TypeChatMessage:
		text := inbound.Text()
		if text == "" {
			return nil, nil, errMalformed
		}
		return &core.Command{
			Kind:      core.CommandChatMessage,
			Body:      text,
			ClientRef: inbound.ClientRef,
		}, nil, nil
	case proto.TypeMessageReaction:
		if inbound.MessageID <= 0 || inbound.Emoji == nil {
			return nil, nil, errMalformed
		}
		return &core.Command{
			Kind:      core.CommandReaction,
			MessageID: inbound.MessageID,
			Emoji:     *inbound.Emoji,
		}, nil, nil
	case proto.TypeTyping:
		if inbound.IsTyping == nil {
			return nil, nil, errMalformed
		}
		return &core.Command{Kind: core.CommandTyping, Typing: *inbound.IsTyping}, nil, nil
	case proto.TypeCallUser:
		to := inbound.UserToCall
		if to == 0 {
			to = inbound.To
		}
		return &core.Command{
			Kind:   core.CommandCallUser,
			To:     int64(to),
			Signal: inbound.SignalData,
		}, nil, nil
	case proto.TypeAnswerCall:
		return &core.Command{
			Kind:   core.CommandAnswerCall,
			To:     int64(inbound.To),
			Signal: inbound.Signal,
		}, nil, nil
	case proto.TypeSignal:
		if len(inbound.Signal) == 0 {
			return nil, nil, errMalformed
		}
		return &core.Command{
			Kind:   core.CommandSignal,
			To:     int64(inbound.To),
			Signal: inbound.Signal,
		}, nil, nil
	case proto.TypeDeclineCall:
		return &core.Command{Kind: core.CommandDeclineCall, To: int64(inbound.To)}, nil, nil
	case proto.TypeEndCall:
		return &core.Command{Kind: core.CommandEndCall, To: int64(inbound.To)}, nil, nil
	case proto.TypeToggleMedia:
		if inbound.Status == nil {
			return nil, nil, errMalformed
		}
		if inbound.Kind != "audio" && inbound.Kind != "video" {
			return nil, &proto.Error{Type: proto.TypeError, Code: core.ErrCodeBadRequest, Message: "kind must be audio or video"}, nil
		}
		return &core.Command{
			Kind:  core.CommandToggleMedia,
			To:    int64(inbound.To),
			Media: core.MediaToggle{Kind: inbound.Kind, Enabled: *inbound.Status},
		}, nil, nil
	default:
		return nil, nil, errMalformed
	}
}

func timestamp(t time.Time) string {
	return t.UTC().Format(time.RFC3339Nano)
}

func outboundFromEvent(event *core.Event) any {
	switch event.Kind {
	case core.EventChatMessage:
		msg := event.Message
		return proto.ChatMessage{
			Type:           proto.TypeChatMessage,
			ID:             msg.ID,
			SenderID:       msg.SenderID,
			SenderUsername: msg.SenderUsername,
			RecipientID:    msg.RecipientID,
			Message:        msg.Body,
			Timestamp:      timestamp(msg.CreatedAt),
			ClientRef:      event.ClientRef,
		}
	case core.EventChatReaction:
		return proto.ChatReaction{
			Type:      proto.TypeChatReaction,
			MessageID: event.Reaction.MessageID,
			SenderID:  event.Reaction.SenderID,
			Emoji:     event.Reaction.Emoji,
		}
	case core.EventTyping:
		return proto.Typing{Type: proto.TypeTyping, UserID: event.From, IsTyping: event.Typing}
	case core.EventUserStatus:
		status := proto.StatusOffline
		if event.Online {
			status = proto.StatusOnline
		}
		return proto.UserStatus{Type: proto.TypeUserStatus, UserID: event.From, Status: status}
	case core.EventDeliveryFailed:
		return proto.DeliveryFailed{Type: proto.TypeDeliveryFailed, ClientRef: event.ClientRef, Reason: event.Reason}
	case core.EventCallUser, core.EventIncomingCall:
		typ := proto.TypeCallUser
		if event.Kind == core.EventIncomingCall {
			typ = proto.TypeIncomingCall
		}
		return proto.CallInvite{
			Type:         typ,
			CallID:       event.CallID,
			From:         event.From,
			FromUsername: event.FromUsername,
			SignalData:   event.Signal,
		}
	case core.EventCallAccepted, core.EventSignal:
		typ := proto.TypeCallAccepted
		if event.Kind == core.EventSignal {
			typ = proto.TypeSignal
		}
		return proto.CallSignal{
			Type:         typ,
			CallID:       event.CallID,
			From:         event.From,
			FromUsername: event.FromUsername,
			Signal:       event.Signal,
		}
	case core.EventCallRinging:
		return proto.CallControl{Type: proto.TypeCallRinging, CallID: event.CallID, To: event.To}
	case core.EventCallDeclined:
		return proto.CallControl{Type: proto.TypeCallDeclined, CallID: event.CallID, From: event.From, Reason: event.Reason}
	case core.EventEndCall:
		return proto.CallControl{Type: proto.TypeEndCall, CallID: event.CallID, From: event.From, Reason: event.Reason}
	case core.EventCallFailed:
		return proto.CallControl{Type: proto.TypeCallFailed, CallID: event.CallID, To: event.To, Reason: event.Reason}
	case core.EventToggleMedia:
		return proto.ToggleMedia{
			Type:   proto.TypeToggleMedia,
			CallID: event.CallID,
			From:   event.From,
			Kind:   event.Media.Kind,
			Status: event.Media.Enabled,
		}
	case core.EventError:
		if event.Error == nil {
			return proto.Error{Type: proto.TypeError, Code: "unknown", Message: "unknown error"}
		}
		return proto.Error{Type: proto.TypeError, Code: event.Error.Code, Message: event.Error.Message}
	default:
		return proto.Error{Type: proto.TypeError, Code: "unknown", Message: "unknown event"}
	}
}
