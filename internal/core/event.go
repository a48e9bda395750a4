package core

// EventKind is a notification the core emits to clients.
type EventKind int

const (
	// EventHistory delivers message history to a client upon joining a channel.
	EventHistory EventKind = iota
	// EventPresence carries the full online user list of a room.
	EventPresence
	// EventMessagePending is the optimistic broadcast before persistence.
	EventMessagePending
	// EventMessageConfirmed carries the persisted message plus the sender's
	// correlation id, broadcast to the whole channel.
	EventMessageConfirmed
	// EventSendFailed tells the originating client its send was not persisted.
	EventSendFailed
	// EventTyping relays a typing signal from another participant.
	EventTyping
	// EventMessageEdited carries the full updated message.
	EventMessageEdited
	// EventMessageDeleted tells clients to purge one message locally.
	EventMessageDeleted
	// EventMessagesUnsent tells clients to purge all messages by one author.
	EventMessagesUnsent
	// EventChatCleared tells clients the room history was wiped.
	EventChatCleared
	// EventError notifies the requesting client about a domain error.
	EventError
)

// PresenceEntry is one online user in a room's presence list.
type PresenceEntry struct {
	UserID   int64
	Username string
}

// Event is sent to clients to describe what happened in the system.
type Event struct {
	Kind    EventKind
	Channel ChannelRef

	TempID   string
	Message  Message
	Messages []Message // EventHistory

	Presence []PresenceEntry // EventPresence

	UserID   int64  // EventMessagesUnsent
	Username string // EventTyping

	MessageID int64 // EventMessageDeleted

	Error *CoreError
}
