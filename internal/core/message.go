package core

import "time"

// Attachment is a media reference carried by a message.
type Attachment struct {
	URL  string
	Kind string
}

// Message is the domain model for a chat message. A persisted message
// carries at least one of text or attachment.
type Message struct {
	ID         int64
	Channel    ChannelRef
	AuthorID   int64
	AuthorName string
	Text       string
	Attachment *Attachment
	CreatedAt  time.Time
	Edited     bool
	EditedAt   *time.Time
}
