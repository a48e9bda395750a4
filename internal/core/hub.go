package core

import (
	"context"
	"errors"
	"strings"
	"time"

	"github.com/rs/zerolog"

	"github.com/chatrelay/chatrelay-server/internal/metrics"
	"github.com/chatrelay/chatrelay-server/internal/store"
)

const defaultHistoryLimit = 200

// Hub coordinates all connected clients. It owns the registry and runs a
// single dispatch goroutine, so every command runs to completion (store
// calls included) before the next one starts. That serialization is what
// makes broadcast order equal persistence order within a channel.
type Hub struct {
	store    store.Store
	log      *zerolog.Logger
	registry *Registry

	// HistoryLimit caps the backlog delivered on join. Set before Run.
	HistoryLimit int

	register   chan *Client
	unregister chan *Client
	commands   chan clientCommand
}

type clientCommand struct {
	client *Client
	cmd    *Command
}

// NewHub creates a new chat hub. The store may be nil in tests that do not
// exercise persistence.
func NewHub(st store.Store, logger *zerolog.Logger) *Hub {
	if logger == nil {
		nop := zerolog.Nop()
		logger = &nop
	}
	return &Hub{
		store:        st,
		log:          logger,
		registry:     NewRegistry(),
		HistoryLimit: defaultHistoryLimit,
		register:     make(chan *Client),
		unregister:   make(chan *Client),
		commands:     make(chan clientCommand),
	}
}

// RegisterClient hands a new authenticated connection to the hub.
func (h *Hub) RegisterClient(c *Client) {
	h.register <- c
}

// UnregisterClient removes a disconnected client. It closes the command
// channel; the pump drains every command already queued before handing the
// client to the hub for removal, so a command in flight at disconnect can
// never re-insert the client into the registry.
func (h *Hub) UnregisterClient(c *Client) {
	c.Close()
}

// Run processes registrations and commands until the context is cancelled.
func (h *Hub) Run(ctx context.Context) {
	for {
		select {
		case <-ctx.Done():
			return
		case c := <-h.register:
			metrics.ConnectionsActive.Inc()
			metrics.ConnectionsTotal.Inc()
			go h.pump(ctx, c)
		case c := <-h.unregister:
			metrics.ConnectionsActive.Dec()
			h.dropClient(c)
		case cc := <-h.commands:
			h.dispatch(ctx, cc.client, cc.cmd)
		}
	}
}

// pump forwards one client's commands into the hub's single dispatch queue.
// Once the command channel closes it enqueues the unregister itself: the
// commands channel is unbuffered, so by then the hub has dispatched every
// forwarded command and the removal cannot be overtaken by one of them.
func (h *Hub) pump(ctx context.Context, c *Client) {
	for cmd := range c.Commands {
		select {
		case h.commands <- clientCommand{client: c, cmd: cmd}:
		case <-ctx.Done():
			return
		}
	}
	select {
	case h.unregister <- c:
	case <-ctx.Done():
	}
}

func (h *Hub) dispatch(ctx context.Context, c *Client, cmd *Command) {
	switch cmd.Kind {
	case CommandJoinChannel:
		h.handleJoin(ctx, c, cmd.Channel)
	case CommandLeaveChannel:
		h.handleLeave(c, cmd.Channel)
	case CommandSendMessage:
		h.handleSend(ctx, c, cmd)
	case CommandTyping:
		h.handleTyping(c, cmd.Channel)
	case CommandEditMessage:
		h.handleEdit(ctx, c, cmd)
	case CommandDeleteMessage:
		h.handleDelete(ctx, c, cmd)
	case CommandUnsendMessages:
		h.handleUnsend(ctx, c, cmd.Channel)
	case CommandClearRoom:
		h.handleClear(ctx, c, cmd.Channel)
	default:
		h.sendError(c, coreError(ErrCodeBadRequest, "unknown command"))
	}
}

func (h *Hub) handleJoin(ctx context.Context, c *Client, ref ChannelRef) {
	room, cerr := h.resolveChannel(ctx, c, ref)
	if cerr != nil {
		h.sendError(c, cerr)
		return
	}
	if cerr := h.authorizeJoin(ctx, c, ref, room); cerr != nil {
		h.sendError(c, cerr)
		return
	}

	key := ref.Key()
	if !h.registry.Join(c, key) {
		// Already joined: no duplicate membership, no second history.
		return
	}

	h.log.Debug().
		Str("client_id", c.ID).
		Int64("user_id", c.Identity.UserID).
		Str("channel", key).
		Msg("client joined channel")

	// History goes to the joining connection only, before the presence
	// broadcast. Anything persisted after this fetch arrives through the
	// normal pipeline, never through the snapshot.
	h.deliverHistory(ctx, c, ref, room)

	if ref.IsRoom() {
		h.broadcastPresence(key, ref)
	}
}

func (h *Hub) handleLeave(c *Client, ref ChannelRef) {
	key := ref.Key()
	if !h.registry.Leave(c, key) {
		h.sendError(c, coreError(ErrCodeNotInChannel, "not joined to channel"))
		return
	}
	if ref.IsRoom() {
		h.broadcastPresence(key, ref)
	}
}

func (h *Hub) dropClient(c *Client) {
	for _, key := range h.registry.RemoveClient(c) {
		ref, err := ParseChannelKey(key)
		if err != nil {
			h.log.Warn().Err(err).Str("channel", key).Msg("malformed registry key")
			continue
		}
		if ref.IsRoom() {
			h.broadcastPresence(key, ref)
		}
	}
}

func (h *Hub) handleSend(ctx context.Context, c *Client, cmd *Command) {
	text := strings.TrimSpace(cmd.Text)
	if text == "" && cmd.Attachment == nil {
		h.sendError(c, coreError(ErrCodeBadRequest, "message requires text or an attachment"))
		return
	}

	key := cmd.Channel.Key()
	if !h.registry.Joined(c, key) {
		h.sendError(c, coreError(ErrCodeNotInChannel, "not joined to channel"))
		return
	}

	room, cerr := h.resolveChannel(ctx, c, cmd.Channel)
	if cerr != nil {
		h.sendError(c, cerr)
		return
	}

	now := time.Now().UTC()
	msg := Message{
		Channel:    cmd.Channel,
		AuthorID:   c.Identity.UserID,
		AuthorName: c.Identity.Username,
		Text:       text,
		Attachment: cmd.Attachment,
		CreatedAt:  now,
	}

	// Step 1: optimistic broadcast, sender included. Every viewer renders
	// the message immediately; only the sender holds a matching temp id.
	h.broadcast(key, &Event{
		Kind:    EventMessagePending,
		Channel: cmd.Channel,
		TempID:  cmd.TempID,
		Message: msg,
	})

	// Step 2: persist.
	rec := &store.Message{
		RoomID:    room.ID,
		UserID:    c.Identity.UserID,
		Body:      text,
		CreatedAt: now,
	}
	if cmd.Attachment != nil {
		rec.AttachmentURL = cmd.Attachment.URL
		rec.AttachmentKind = cmd.Attachment.Kind
	}

	started := time.Now()
	err := h.store.SaveMessage(ctx, rec)
	metrics.StoreLatency.Observe(time.Since(started).Seconds())
	if err != nil {
		metrics.MessagesFailed.Inc()
		h.log.Error().Err(err).
			Str("channel", key).
			Int64("user_id", c.Identity.UserID).
			Msg("failed to persist message")
		// No confirmation is ever published for a failed send; the sender
		// gets a correlated failure so it can drop its provisional copy.
		h.sendEvent(c, &Event{
			Kind:    EventSendFailed,
			Channel: cmd.Channel,
			TempID:  cmd.TempID,
			Error:   coreError(ErrCodeStoreError, "message was not saved"),
		})
		return
	}

	// Step 3: confirmation to the entire channel. Receivers that never saw
	// the temp id treat the saved message as already delivered.
	msg.ID = rec.ID
	h.broadcast(key, &Event{
		Kind:    EventMessageConfirmed,
		Channel: cmd.Channel,
		TempID:  cmd.TempID,
		Message: msg,
	})

	if cmd.Channel.IsRoom() {
		metrics.MessagesSent.WithLabelValues("room").Inc()
	} else {
		metrics.MessagesSent.WithLabelValues("dm").Inc()
	}
}

func (h *Hub) handleTyping(c *Client, ref ChannelRef) {
	key := ref.Key()
	if !h.registry.Joined(c, key) {
		h.sendError(c, coreError(ErrCodeNotInChannel, "not joined to channel"))
		return
	}
	// Pure relay, no server-side expiry or throttling.
	h.registry.BroadcastExcept(key, c, &Event{
		Kind:     EventTyping,
		Channel:  ref,
		UserID:   c.Identity.UserID,
		Username: c.Identity.Username,
	})
}

func (h *Hub) handleEdit(ctx context.Context, c *Client, cmd *Command) {
	rec, cerr := h.getMessage(ctx, cmd.MessageID)
	if cerr != nil {
		h.sendError(c, cerr)
		return
	}
	if rec.UserID != c.Identity.UserID {
		h.sendError(c, coreError(ErrCodeForbidden, "only the author may edit a message"))
		return
	}
	text := strings.TrimSpace(cmd.Text)
	if text == "" && rec.AttachmentURL == "" {
		h.sendError(c, coreError(ErrCodeBadRequest, "edited text must not be empty"))
		return
	}

	_, ref, cerr := h.channelForRoomID(ctx, rec.RoomID)
	if cerr != nil {
		h.sendError(c, cerr)
		return
	}

	now := time.Now().UTC()
	if err := h.store.UpdateMessageBody(ctx, rec.ID, text, now); err != nil {
		h.log.Error().Err(err).Int64("message_id", rec.ID).Msg("failed to update message")
		h.sendError(c, coreError(ErrCodeStoreError, "message was not updated"))
		return
	}

	rec.Body = text
	rec.Edited = true
	rec.EditedAt = &now
	h.broadcast(ref.Key(), &Event{
		Kind:    EventMessageEdited,
		Channel: ref,
		Message: h.domainMessage(ref, rec),
	})
	metrics.ModerationOps.WithLabelValues("edit").Inc()
}

func (h *Hub) handleDelete(ctx context.Context, c *Client, cmd *Command) {
	rec, cerr := h.getMessage(ctx, cmd.MessageID)
	if cerr != nil {
		h.sendError(c, cerr)
		return
	}
	room, ref, cerr := h.channelForRoomID(ctx, rec.RoomID)
	if cerr != nil {
		h.sendError(c, cerr)
		return
	}

	// Authors remove their own messages; a room's creator moderates any
	// message in that room. DMs have no moderator.
	uid := c.Identity.UserID
	allowed := rec.UserID == uid ||
		(room.Type != store.RoomTypeDirect && room.OwnerID != nil && *room.OwnerID == uid)
	if !allowed {
		h.sendError(c, coreError(ErrCodeForbidden, "not allowed to delete this message"))
		return
	}

	if err := h.store.DeleteMessage(ctx, rec.ID); err != nil {
		h.log.Error().Err(err).Int64("message_id", rec.ID).Msg("failed to delete message")
		h.sendError(c, coreError(ErrCodeStoreError, "message was not deleted"))
		return
	}

	h.broadcast(ref.Key(), &Event{
		Kind:      EventMessageDeleted,
		Channel:   ref,
		MessageID: rec.ID,
	})
	metrics.ModerationOps.WithLabelValues("delete").Inc()
}

func (h *Hub) handleUnsend(ctx context.Context, c *Client, ref ChannelRef) {
	key := ref.Key()
	if !h.registry.Joined(c, key) {
		h.sendError(c, coreError(ErrCodeNotInChannel, "not joined to channel"))
		return
	}
	room, cerr := h.resolveChannel(ctx, c, ref)
	if cerr != nil {
		h.sendError(c, cerr)
		return
	}

	uid := c.Identity.UserID
	removed, err := h.store.DeleteUserMessages(ctx, room.ID, uid)
	if err != nil {
		h.log.Error().Err(err).Str("channel", key).Int64("user_id", uid).Msg("failed to unsend messages")
		h.sendError(c, coreError(ErrCodeStoreError, "messages were not removed"))
		return
	}

	h.log.Info().Str("channel", key).Int64("user_id", uid).Int64("removed", removed).Msg("messages unsent")
	h.broadcast(key, &Event{
		Kind:    EventMessagesUnsent,
		Channel: ref,
		UserID:  uid,
	})
	metrics.ModerationOps.WithLabelValues("unsend").Inc()
}

func (h *Hub) handleClear(ctx context.Context, c *Client, ref ChannelRef) {
	room, err := h.store.GetRoomByID(ctx, ref.RoomID)
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			h.sendError(c, coreError(ErrCodeChannelNotFound, "room not found"))
			return
		}
		h.sendError(c, coreError(ErrCodeStoreError, "failed to load room"))
		return
	}
	if room.OwnerID == nil || *room.OwnerID != c.Identity.UserID {
		h.sendError(c, coreError(ErrCodeForbidden, "only the room creator may clear it"))
		return
	}

	if err := h.store.ClearRoomMessages(ctx, room.ID); err != nil {
		h.log.Error().Err(err).Int64("room_id", room.ID).Msg("failed to clear room")
		h.sendError(c, coreError(ErrCodeStoreError, "room was not cleared"))
		return
	}

	h.broadcast(ref.Key(), &Event{
		Kind:    EventChatCleared,
		Channel: ref,
	})
	metrics.ModerationOps.WithLabelValues("clear").Inc()
}

// resolveChannel maps a channel ref onto its backing room row. DM channels
// are materialized as direct rooms on first use, with both participants as
// members.
func (h *Hub) resolveChannel(ctx context.Context, c *Client, ref ChannelRef) (*store.Room, *CoreError) {
	if ref.IsRoom() {
		room, err := h.store.GetRoomByID(ctx, ref.RoomID)
		if err != nil {
			if errors.Is(err, store.ErrNotFound) {
				return nil, coreError(ErrCodeChannelNotFound, "room not found")
			}
			return nil, coreError(ErrCodeStoreError, "failed to load room")
		}
		return room, nil
	}

	if !ref.Includes(c.Identity.UserID) {
		return nil, coreError(ErrCodeForbidden, "dm pair must include the caller")
	}
	peer := ref.UserA
	if peer == c.Identity.UserID {
		peer = ref.UserB
	}
	if _, err := h.store.GetUserByID(ctx, peer); err != nil {
		if errors.Is(err, store.ErrNotFound) {
			return nil, coreError(ErrCodeUserNotFound, "dm peer not found")
		}
		return nil, coreError(ErrCodeStoreError, "failed to load user")
	}

	key := ref.DirectKey()
	room, err := h.store.GetRoomByDirectKey(ctx, key)
	if err == nil {
		return room, nil
	}
	if !errors.Is(err, store.ErrNotFound) {
		return nil, coreError(ErrCodeStoreError, "failed to load dm room")
	}
	room, err = h.store.CreateDirectRoom(ctx, key, ref.UserA, ref.UserB)
	if err != nil {
		return nil, coreError(ErrCodeStoreError, "failed to create dm room")
	}
	return room, nil
}

// authorizeJoin enforces private-room access: the creator or a listed
// member. A rejected join changes nothing and delivers no history.
func (h *Hub) authorizeJoin(ctx context.Context, c *Client, ref ChannelRef, room *store.Room) *CoreError {
	if !ref.IsRoom() || room.Type != store.RoomTypePrivate {
		return nil
	}
	uid := c.Identity.UserID
	if room.OwnerID != nil && *room.OwnerID == uid {
		return nil
	}
	member, err := h.store.IsMember(ctx, uid, room.ID)
	if err != nil {
		return coreError(ErrCodeStoreError, "failed to check membership")
	}
	if !member {
		return coreError(ErrCodeForbidden, "room is private")
	}
	return nil
}

func (h *Hub) deliverHistory(ctx context.Context, c *Client, ref ChannelRef, room *store.Room) {
	recs, err := h.store.ListMessages(ctx, room.ID, h.HistoryLimit, nil)
	if err != nil {
		h.log.Error().Err(err).Str("channel", ref.Key()).Msg("failed to load history")
		h.sendError(c, coreError(ErrCodeStoreError, "failed to load history"))
		return
	}
	msgs := make([]Message, 0, len(recs))
	for _, rec := range recs {
		msgs = append(msgs, h.domainMessage(ref, rec))
	}
	h.sendEvent(c, &Event{
		Kind:     EventHistory,
		Channel:  ref,
		Messages: msgs,
	})
}

func (h *Hub) channelForRoomID(ctx context.Context, roomID int64) (*store.Room, ChannelRef, *CoreError) {
	room, err := h.store.GetRoomByID(ctx, roomID)
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			return nil, ChannelRef{}, coreError(ErrCodeChannelNotFound, "room not found")
		}
		return nil, ChannelRef{}, coreError(ErrCodeStoreError, "failed to load room")
	}
	if room.Type == store.RoomTypeDirect && room.DirectKey != nil {
		ref, err := ParseDirectKey(*room.DirectKey)
		if err != nil {
			return nil, ChannelRef{}, coreError(ErrCodeStoreError, "malformed dm room")
		}
		return room, ref, nil
	}
	return room, RoomChannel(room.ID), nil
}

func (h *Hub) domainMessage(ref ChannelRef, rec *store.Message) Message {
	msg := Message{
		ID:         rec.ID,
		Channel:    ref,
		AuthorID:   rec.UserID,
		AuthorName: rec.Username,
		Text:       rec.Body,
		CreatedAt:  rec.CreatedAt,
		Edited:     rec.Edited,
		EditedAt:   rec.EditedAt,
	}
	if rec.AttachmentURL != "" {
		msg.Attachment = &Attachment{URL: rec.AttachmentURL, Kind: rec.AttachmentKind}
	}
	return msg
}

func (h *Hub) getMessage(ctx context.Context, id int64) (*store.Message, *CoreError) {
	rec, err := h.store.GetMessage(ctx, id)
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			return nil, coreError(ErrCodeNotFound, "message not found")
		}
		return nil, coreError(ErrCodeStoreError, "failed to load message")
	}
	return rec, nil
}

func (h *Hub) broadcastPresence(key string, ref ChannelRef) {
	h.broadcast(key, &Event{
		Kind:     EventPresence,
		Channel:  ref,
		Presence: h.registry.OnlineUsers(key),
	})
}

func (h *Hub) broadcast(key string, event *Event) {
	h.registry.Broadcast(key, event)
	metrics.EventsBroadcast.Inc()
}

func (h *Hub) sendEvent(c *Client, event *Event) {
	deliver(c, event)
}

func (h *Hub) sendError(c *Client, cerr *CoreError) {
	deliver(c, &Event{Kind: EventError, Error: cerr})
}
