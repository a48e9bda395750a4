package core

import (
	"fmt"
	"strconv"
	"strings"
)

// ChannelKind distinguishes room channels from direct-message channels.
type ChannelKind int

const (
	// ChannelRoom is a many-to-many room channel.
	ChannelRoom ChannelKind = iota
	// ChannelDM is a two-participant direct-message channel.
	ChannelDM
)

// ChannelRef identifies a broadcast scope: a room by id, or a DM pair.
// DM participants are held in canonical order (UserA < UserB) so that a
// conversation between two users resolves to the same ref regardless of
// which side initiates.
type ChannelRef struct {
	Kind   ChannelKind
	RoomID int64
	UserA  int64
	UserB  int64
}

// RoomChannel builds a ref for a room channel.
func RoomChannel(roomID int64) ChannelRef {
	return ChannelRef{Kind: ChannelRoom, RoomID: roomID}
}

// DMChannel builds a canonical ref for a DM pair.
func DMChannel(a, b int64) ChannelRef {
	if a > b {
		a, b = b, a
	}
	return ChannelRef{Kind: ChannelDM, UserA: a, UserB: b}
}

// IsRoom reports whether the ref points at a room channel.
func (c ChannelRef) IsRoom() bool {
	return c.Kind == ChannelRoom
}

// Key returns the registry key for the channel ("room:{id}" or "dm:{a}:{b}").
// The DM form matches the direct_key column in the store.
func (c ChannelRef) Key() string {
	if c.Kind == ChannelDM {
		return fmt.Sprintf("dm:%d:%d", c.UserA, c.UserB)
	}
	return fmt.Sprintf("room:%d", c.RoomID)
}

// DirectKey returns the store direct_key for a DM ref.
func (c ChannelRef) DirectKey() string {
	return fmt.Sprintf("dm:%d:%d", c.UserA, c.UserB)
}

// Includes reports whether the user participates in a DM ref.
func (c ChannelRef) Includes(userID int64) bool {
	return c.UserA == userID || c.UserB == userID
}

// ParseChannelKey recovers a ref from a registry key produced by Key.
func ParseChannelKey(key string) (ChannelRef, error) {
	if strings.HasPrefix(key, "dm:") {
		return ParseDirectKey(key)
	}
	id, ok := strings.CutPrefix(key, "room:")
	if !ok {
		return ChannelRef{}, fmt.Errorf("malformed channel key %q", key)
	}
	roomID, err := strconv.ParseInt(id, 10, 64)
	if err != nil {
		return ChannelRef{}, fmt.Errorf("malformed channel key %q: %w", key, err)
	}
	return RoomChannel(roomID), nil
}

// ParseDirectKey recovers a DM ref from a stored direct_key.
func ParseDirectKey(key string) (ChannelRef, error) {
	parts := strings.Split(key, ":")
	if len(parts) != 3 || parts[0] != "dm" {
		return ChannelRef{}, fmt.Errorf("malformed direct key %q", key)
	}
	a, err := strconv.ParseInt(parts[1], 10, 64)
	if err != nil {
		return ChannelRef{}, fmt.Errorf("malformed direct key %q: %w", key, err)
	}
	b, err := strconv.ParseInt(parts[2], 10, 64)
	if err != nil {
		return ChannelRef{}, fmt.Errorf("malformed direct key %q: %w", key, err)
	}
	return DMChannel(a, b), nil
}
