package core

// CommandKind describes what the client wants to do.
type CommandKind int

const (
	// CommandJoinChannel subscribes the client to a room or DM channel.
	CommandJoinChannel CommandKind = iota
	// CommandLeaveChannel unsubscribes the client from a channel.
	CommandLeaveChannel
	// CommandSendMessage delivers a chat message to channel participants.
	CommandSendMessage
	// CommandTyping relays a typing signal to other channel participants.
	CommandTyping
	// CommandEditMessage replaces the text of an own message.
	CommandEditMessage
	// CommandDeleteMessage removes a single message.
	CommandDeleteMessage
	// CommandUnsendMessages removes every own message in one channel.
	CommandUnsendMessages
	// CommandClearRoom removes every message in a room (creator only).
	CommandClearRoom
)

// Command represents an action requested by a client.
type Command struct {
	Kind    CommandKind
	Channel ChannelRef

	// Send fields.
	TempID     string
	Text       string
	Attachment *Attachment

	// Edit/delete target.
	MessageID int64
}
