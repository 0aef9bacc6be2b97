package http

import (
	"github.com/loomchat/loom-server/internal/core"
	"github.com/loomchat/loom-server/internal/proto"
	"github.com/loomchat/loom-server/internal/store"
)

func attachmentsFromData(in []proto.AttachmentData) []store.Attachment {
	if len(in) == 0 {
		return nil
	}
	out := make([]store.Attachment, 0, len(in))
	for _, a := range in {
		out = append(out, store.Attachment{
			URL:       a.URL,
			StorageID: a.StorageID,
			Kind:      a.Kind,
			Width:     a.Width,
			Height:    a.Height,
			Duration:  a.Duration,
			Name:      a.Name,
		})
	}
	return out
}

func attachmentDataList(in []store.Attachment) []proto.AttachmentData {
	if len(in) == 0 {
		return nil
	}
	out := make([]proto.AttachmentData, 0, len(in))
	for _, a := range in {
		out = append(out, proto.AttachmentData{
			URL:       a.URL,
			StorageID: a.StorageID,
			Kind:      a.Kind,
			Width:     a.Width,
			Height:    a.Height,
			Duration:  a.Duration,
			Name:      a.Name,
		})
	}
	return out
}

func messageData(msg *store.Message) proto.MessageData {
	return proto.MessageData{
		ID:          msg.ID,
		RoomID:      msg.RoomID,
		Sender:      msg.Sender,
		Text:        msg.Text,
		Attachments: attachmentDataList(msg.Attachments),
		TS:          msg.CreatedAt.Unix(),
	}
}

func outboundFromEvent(event *core.Event) proto.Outbound {
	switch event.Kind {
	case core.EventNewMessage:
		return proto.Outbound{
			Type:  proto.OutboundTypeEvent,
			Event: proto.EventNewMessage,
			Data:  messageData(event.Message),
		}
	case core.EventIncomingCall:
		return proto.Outbound{
			Type:  proto.OutboundTypeEvent,
			Event: proto.EventIncomingCall,
			Data: proto.CallUserData{
				RoomID:   event.Room,
				UserID:   event.UserID,
				Username: event.Username,
				TS:       event.TS,
			},
		}
	case core.EventCallAccept:
		return callUserOutbound(proto.EventCallAccept, event)
	case core.EventCallReject:
		return callUserOutbound(proto.EventCallReject, event)
	case core.EventCallEnded:
		return callUserOutbound(proto.EventCallEnded, event)
	case core.EventCallJoined:
		return callUserOutbound(proto.EventCallJoined, event)
	case core.EventCallLeft:
		return callUserOutbound(proto.EventCallLeft, event)
	case core.EventCallParticipants:
		return proto.Outbound{
			Type:  proto.OutboundTypeEvent,
			Event: proto.EventCallParticipants,
			Data: proto.CallParticipantsData{
				RoomID:       event.Room,
				Participants: event.Participants,
			},
		}
	case core.EventWebRTCOffer:
		return signalOutbound(proto.InboundTypeWebRTCOffer, event)
	case core.EventWebRTCAnswer:
		return signalOutbound(proto.InboundTypeWebRTCAnswer, event)
	case core.EventWebRTCICECandidate:
		return signalOutbound(proto.InboundTypeWebRTCICE, event)
	default:
		return proto.Outbound{Type: proto.OutboundTypeEvent}
	}
}

func callUserOutbound(name string, event *core.Event) proto.Outbound {
	return proto.Outbound{
		Type:  proto.OutboundTypeEvent,
		Event: name,
		Data: proto.CallUserData{
			RoomID:   event.Room,
			UserID:   event.UserID,
			Username: event.Username,
		},
	}
}

func signalOutbound(name string, event *core.Event) proto.Outbound {
	return proto.Outbound{
		Type:  proto.OutboundTypeEvent,
		Event: name,
		Data: proto.SignalEventData{
			RoomID:       event.Room,
			FromUserID:   event.Signal.FromUserID,
			TargetUserID: event.Signal.TargetUserID,
			Payload:      event.Signal.Payload,
		},
	}
}
