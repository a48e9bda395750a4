package core

import "sort"

// Registry tracks which clients are subscribed to which channels, plus the
// reverse map. It is owned by the hub goroutine and is never accessed from
// outside it, so no locking is needed. Constructing isolated registries per
// test keeps membership state out of globals.
type Registry struct {
	channels map[string]map[*Client]struct{}
	byClient map[*Client]map[string]struct{}
}

// NewRegistry constructs an empty registry.
func NewRegistry() *Registry {
	return &Registry{
		channels: make(map[string]map[*Client]struct{}),
		byClient: make(map[*Client]map[string]struct{}),
	}
}

// Join inserts a client into a channel. Returns false if the client was
// already a member (join is idempotent; no duplicate entries).
func (r *Registry) Join(c *Client, key string) bool {
	members, ok := r.channels[key]
	if !ok {
		members = make(map[*Client]struct{})
		r.channels[key] = members
	}
	if _, exists := members[c]; exists {
		return false
	}
	members[c] = struct{}{}

	keys, ok := r.byClient[c]
	if !ok {
		keys = make(map[string]struct{})
		r.byClient[c] = keys
	}
	keys[key] = struct{}{}
	return true
}

// Leave removes a client from a channel. Returns false if it was not a member.
func (r *Registry) Leave(c *Client, key string) bool {
	members, ok := r.channels[key]
	if !ok {
		return false
	}
	if _, exists := members[c]; !exists {
		return false
	}
	delete(members, c)
	if len(members) == 0 {
		delete(r.channels, key)
	}
	if keys, ok := r.byClient[c]; ok {
		delete(keys, key)
		if len(keys) == 0 {
			delete(r.byClient, c)
		}
	}
	return true
}

// RemoveClient drops the client from every channel and returns the keys it
// was subscribed to, so the caller can recompute presence for each.
func (r *Registry) RemoveClient(c *Client) []string {
	keys, ok := r.byClient[c]
	if !ok {
		return nil
	}
	left := make([]string, 0, len(keys))
	for key := range keys {
		if members, ok := r.channels[key]; ok {
			delete(members, c)
			if len(members) == 0 {
				delete(r.channels, key)
			}
		}
		left = append(left, key)
	}
	delete(r.byClient, c)
	return left
}

// Joined reports whether the client is subscribed to the channel.
func (r *Registry) Joined(c *Client, key string) bool {
	keys, ok := r.byClient[c]
	if !ok {
		return false
	}
	_, joined := keys[key]
	return joined
}

// OnlineUsers returns the distinct users with at least one live connection
// in the channel, sorted by user id. Multiple connections of the same user
// count once.
func (r *Registry) OnlineUsers(key string) []PresenceEntry {
	seen := make(map[int64]string)
	for c := range r.channels[key] {
		seen[c.Identity.UserID] = c.Identity.Username
	}
	users := make([]PresenceEntry, 0, len(seen))
	for id, name := range seen {
		users = append(users, PresenceEntry{UserID: id, Username: name})
	}
	sort.Slice(users, func(i, j int) bool { return users[i].UserID < users[j].UserID })
	return users
}

// Broadcast sends an event to all clients in the channel.
func (r *Registry) Broadcast(key string, event *Event) {
	for client := range r.channels[key] {
		deliver(client, event)
	}
}

// BroadcastExcept sends an event to all clients in the channel but one.
func (r *Registry) BroadcastExcept(key string, skip *Client, event *Event) {
	for client := range r.channels[key] {
		if client == skip {
			continue
		}
		deliver(client, event)
	}
}

func deliver(client *Client, event *Event) {
	select {
	case client.Events <- event:
	default:
		// Drop if slow consumer.
	}
}
