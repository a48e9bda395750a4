package http

import (
	"encoding/json"

	"github.com/chatrelay/chatrelay-server/internal/core"
	"github.com/chatrelay/chatrelay-server/internal/proto"
)

func channelFromData(client *core.Client, data proto.ChannelData) (core.ChannelRef, *proto.Error) {
	switch {
	case data.RoomID > 0 && data.DMUserID > 0:
		return core.ChannelRef{}, &proto.Error{Code: core.ErrCodeBadRequest, Msg: "room_id and dm_user_id are mutually exclusive"}
	case data.RoomID > 0:
		return core.RoomChannel(data.RoomID), nil
	case data.DMUserID > 0:
		if data.DMUserID == client.Identity.UserID {
			return core.ChannelRef{}, &proto.Error{Code: core.ErrCodeBadRequest, Msg: "cannot open a dm with yourself"}
		}
		return core.DMChannel(client.Identity.UserID, data.DMUserID), nil
	default:
		return core.ChannelRef{}, &proto.Error{Code: core.ErrCodeBadRequest, Msg: "room_id or dm_user_id is required"}
	}
}

func inboundToCommand(client *core.Client, inbound proto.Inbound) (*core.Command, *proto.Error, error) {
	switch inbound.Type {
	case proto.InboundTypeJoin, proto.InboundTypeLeave, proto.InboundTypeTyping, proto.InboundTypeUnsend:
		var data proto.ChannelData
		if err := json.Unmarshal(inbound.Data, &data); err != nil {
			return nil, nil, err
		}
		ref, protoErr := channelFromData(client, data)
		if protoErr != nil {
			return nil, protoErr, nil
		}
		kind := map[string]core.CommandKind{
			proto.InboundTypeJoin:   core.CommandJoinChannel,
			proto.InboundTypeLeave:  core.CommandLeaveChannel,
			proto.InboundTypeTyping: core.CommandTyping,
			proto.InboundTypeUnsend: core.CommandUnsendMessages,
		}[inbound.Type]
		return &core.Command{Kind: kind, Channel: ref}, nil, nil

	case proto.InboundTypeSend:
		var data proto.SendData
		if err := json.Unmarshal(inbound.Data, &data); err != nil {
			return nil, nil, err
		}
		ref, protoErr := channelFromData(client, data.ChannelData)
		if protoErr != nil {
			return nil, protoErr, nil
		}
		if data.TempID == "" {
			return nil, &proto.Error{Code: core.ErrCodeBadRequest, Msg: "temp_id is required"}, nil
		}
		cmd := &core.Command{
			Kind:    core.CommandSendMessage,
			Channel: ref,
			TempID:  data.TempID,
			Text:    data.Text,
		}
		if data.Attachment != nil {
			cmd.Attachment = &core.Attachment{URL: data.Attachment.URL, Kind: data.Attachment.Kind}
		}
		return cmd, nil, nil

	case proto.InboundTypeEdit:
		var data proto.EditData
		if err := json.Unmarshal(inbound.Data, &data); err != nil {
			return nil, nil, err
		}
		if data.MessageID <= 0 {
			return nil, &proto.Error{Code: core.ErrCodeBadRequest, Msg: "message_id is required"}, nil
		}
		return &core.Command{
			Kind:      core.CommandEditMessage,
			MessageID: data.MessageID,
			Text:      data.Text,
		}, nil, nil

	case proto.InboundTypeDelete:
		var data proto.DeleteData
		if err := json.Unmarshal(inbound.Data, &data); err != nil {
			return nil, nil, err
		}
		if data.MessageID <= 0 {
			return nil, &proto.Error{Code: core.ErrCodeBadRequest, Msg: "message_id is required"}, nil
		}
		return &core.Command{
			Kind:      core.CommandDeleteMessage,
			MessageID: data.MessageID,
		}, nil, nil

	case proto.InboundTypeClear:
		var data proto.ClearData
		if err := json.Unmarshal(inbound.Data, &data); err != nil {
			return nil, nil, err
		}
		if data.RoomID <= 0 {
			return nil, &proto.Error{Code: core.ErrCodeBadRequest, Msg: "room_id is required"}, nil
		}
		return &core.Command{
			Kind:    core.CommandClearRoom,
			Channel: core.RoomChannel(data.RoomID),
		}, nil, nil

	default:
		return nil, &proto.Error{Code: "invalid_message", Msg: "unknown message type"}, nil
	}
}

func messagePayload(msg core.Message, pending bool, tempID string) proto.MessagePayload {
	payload := proto.MessagePayload{
		ID:       msg.ID,
		Channel:  msg.Channel.Key(),
		UserID:   msg.AuthorID,
		Username: msg.AuthorName,
		Text:     msg.Text,
		TS:       msg.CreatedAt.Unix(),
		Edited:   msg.Edited,
		Pending:  pending,
		TempID:   tempID,
	}
	if msg.Attachment != nil {
		payload.Attachment = &proto.AttachmentData{URL: msg.Attachment.URL, Kind: msg.Attachment.Kind}
	}
	if msg.EditedAt != nil {
		payload.EditedTS = msg.EditedAt.Unix()
	}
	return payload
}

func outboundFromEvent(event *core.Event) proto.Outbound {
	key := event.Channel.Key()

	switch event.Kind {
	case core.EventHistory:
		messages := make([]proto.MessagePayload, 0, len(event.Messages))
		for _, msg := range event.Messages {
			messages = append(messages, messagePayload(msg, false, ""))
		}
		return proto.Outbound{
			Type:  proto.OutboundTypeEvent,
			Event: proto.EventHistory,
			Data: proto.EventHistoryData{
				Channel:  key,
				Messages: messages,
			},
		}

	case core.EventPresence:
		users := make([]proto.PresenceUser, 0, len(event.Presence))
		for _, entry := range event.Presence {
			users = append(users, proto.PresenceUser{UserID: entry.UserID, Username: entry.Username})
		}
		return proto.Outbound{
			Type:  proto.OutboundTypeEvent,
			Event: proto.EventPresence,
			Data: proto.EventPresenceData{
				Channel: key,
				Users:   users,
			},
		}

	case core.EventMessagePending:
		return proto.Outbound{
			Type:  proto.OutboundTypeEvent,
			Event: proto.EventMessagePending,
			Data:  messagePayload(event.Message, true, event.TempID),
		}

	case core.EventMessageConfirmed:
		return proto.Outbound{
			Type:  proto.OutboundTypeEvent,
			Event: proto.EventMessageConfirmed,
			Data: proto.EventConfirmedData{
				Channel: key,
				TempID:  event.TempID,
				Message: messagePayload(event.Message, false, ""),
			},
		}

	case core.EventSendFailed:
		reason := "message was not saved"
		if event.Error != nil {
			reason = event.Error.Message
		}
		return proto.Outbound{
			Type:  proto.OutboundTypeEvent,
			Event: proto.EventSendFailed,
			Data: proto.EventSendFailedData{
				Channel: key,
				TempID:  event.TempID,
				Reason:  reason,
			},
		}

	case core.EventTyping:
		return proto.Outbound{
			Type:  proto.OutboundTypeEvent,
			Event: proto.EventTyping,
			Data: proto.EventTypingData{
				Channel:  key,
				UserID:   event.UserID,
				Username: event.Username,
			},
		}

	case core.EventMessageEdited:
		return proto.Outbound{
			Type:  proto.OutboundTypeEvent,
			Event: proto.EventMessageEdited,
			Data:  messagePayload(event.Message, false, ""),
		}

	case core.EventMessageDeleted:
		return proto.Outbound{
			Type:  proto.OutboundTypeEvent,
			Event: proto.EventMessageDeleted,
			Data: proto.EventDeletedData{
				Channel:   key,
				MessageID: event.MessageID,
			},
		}

	case core.EventMessagesUnsent:
		return proto.Outbound{
			Type:  proto.OutboundTypeEvent,
			Event: proto.EventMessagesUnsent,
			Data: proto.EventUnsentData{
				Channel: key,
				UserID:  event.UserID,
			},
		}

	case core.EventChatCleared:
		return proto.Outbound{
			Type:  proto.OutboundTypeEvent,
			Event: proto.EventChatCleared,
			Data: proto.EventClearedData{
				Channel: key,
				RoomID:  event.Channel.RoomID,
			},
		}

	case core.EventError:
		if event.Error == nil {
			return proto.Outbound{Type: proto.OutboundTypeError, Error: &proto.Error{Code: "unknown", Msg: "unknown error"}}
		}
		return proto.Outbound{
			Type:  proto.OutboundTypeError,
			Error: &proto.Error{Code: event.Error.Code, Msg: event.Error.Message},
		}

	default:
		return proto.Outbound{Type: proto.OutboundTypeEvent}
	}
}
