package proto

import "encoding/json"

// Inbound is the envelope for messages coming from the client.
type Inbound struct {
	Type string          `json:"type"`
	Data json.RawMessage `json:"data"`
}

const (
	ProtocolVersion = 1

	InboundTypeJoin   = "join"
	InboundTypeLeave  = "leave"
	InboundTypeSend   = "send"
	InboundTypeTyping = "typing"
	InboundTypeEdit   = "edit"
	InboundTypeDelete = "delete"
	InboundTypeUnsend = "unsend"
	InboundTypeClear  = "clear"

	OutboundTypeEvent = "event"
	OutboundTypeError = "error"

	EventHistory          = "history"
	EventPresence         = "presence"
	EventMessagePending   = "message_pending"
	EventMessageConfirmed = "message_confirmed"
	EventSendFailed       = "send_failed"
	EventTyping           = "typing"
	EventMessageEdited    = "message_edited"
	EventMessageDeleted   = "message_deleted"
	EventMessagesUnsent   = "messages_unsent"
	EventChatCleared      = "chat_cleared"
)

// ChannelData addresses a room by id or a DM peer by user id. Exactly one
// of the two fields must be set.
type ChannelData struct {
	RoomID   int64 `json:"room_id,omitempty"`
	DMUserID int64 `json:"dm_user_id,omitempty"`
}

// AttachmentData is a media reference on a message.
type AttachmentData struct {
	URL  string `json:"url"`
	Kind string `json:"kind"`
}

// SendData is a chat message from the client. TempID is the client-chosen
// correlation id echoed back in the confirmation.
type SendData struct {
	ChannelData
	Text       string          `json:"text,omitempty"`
	Attachment *AttachmentData `json:"attachment,omitempty"`
	TempID     string          `json:"temp_id"`
}

// EditData requests replacing the text of an own message.
type EditData struct {
	MessageID int64  `json:"message_id"`
	Text      string `json:"text"`
}

// DeleteData requests removal of a single message.
type DeleteData struct {
	MessageID int64 `json:"message_id"`
}

// ClearData requests wiping all messages in a room.
type ClearData struct {
	RoomID int64 `json:"room_id"`
}

// Outbound is the envelope for messages sent to the client.
type Outbound struct {
	Type  string `json:"type"`
	Event string `json:"event,omitempty"`
	Data  any    `json:"data,omitempty"`
	Error *Error `json:"error,omitempty"`
}

// MessagePayload is the wire shape of a message in events.
type MessagePayload struct {
	ID         int64           `json:"id,omitempty"`
	Channel    string          `json:"channel"`
	UserID     int64           `json:"user_id"`
	Username   string          `json:"username"`
	Text       string          `json:"text,omitempty"`
	Attachment *AttachmentData `json:"attachment,omitempty"`
	TS         int64           `json:"ts"`
	Edited     bool            `json:"edited,omitempty"`
	EditedTS   int64           `json:"edited_ts,omitempty"`
	Pending    bool            `json:"pending,omitempty"`
	TempID     string          `json:"temp_id,omitempty"`
}

// EventHistoryData delivers the backlog to a joining connection.
type EventHistoryData struct {
	Channel  string           `json:"channel"`
	Messages []MessagePayload `json:"messages"`
}

// PresenceUser is one online user in a room presence list.
type PresenceUser struct {
	UserID   int64  `json:"user_id"`
	Username string `json:"username"`
}

// EventPresenceData carries the full online list of a room.
type EventPresenceData struct {
	Channel string         `json:"channel"`
	Users   []PresenceUser `json:"users"`
}

// EventConfirmedData confirms a persisted message to the whole channel.
type EventConfirmedData struct {
	Channel string         `json:"channel"`
	TempID  string         `json:"temp_id,omitempty"`
	Message MessagePayload `json:"message"`
}

// EventSendFailedData tells the sender its message was not persisted.
type EventSendFailedData struct {
	Channel string `json:"channel"`
	TempID  string `json:"temp_id"`
	Reason  string `json:"reason"`
}

// EventTypingData relays a typing signal.
type EventTypingData struct {
	Channel  string `json:"channel"`
	UserID   int64  `json:"user_id"`
	Username string `json:"username"`
}

// EventDeletedData tells clients to purge one message.
type EventDeletedData struct {
	Channel   string `json:"channel"`
	MessageID int64  `json:"message_id"`
}

// EventUnsentData tells clients to purge all messages by one author.
type EventUnsentData struct {
	Channel string `json:"channel"`
	UserID  int64  `json:"user_id"`
}

// EventClearedData tells clients the room history was wiped.
type EventClearedData struct {
	Channel string `json:"channel"`
	RoomID  int64  `json:"room_id,omitempty"`
}

// Error describes a protocol-level error response.
type Error struct {
	Code string `json:"code"`
	Msg  string `json:"msg"`
}
