package core

import "testing"

func TestRegistryJoinLeave(t *testing.T) {
	r := NewRegistry()
	c := NewClient("a", 1, "alice")

	if !r.Join(c, "room:1") {
		t.Fatal("first join must succeed")
	}
	if r.Join(c, "room:1") {
		t.Fatal("second join must report already-member")
	}
	if !r.Joined(c, "room:1") {
		t.Fatal("client must be joined")
	}
	if !r.Leave(c, "room:1") {
		t.Fatal("leave must succeed")
	}
	if r.Leave(c, "room:1") {
		t.Fatal("double leave must report not-member")
	}
	if r.Joined(c, "room:1") {
		t.Fatal("client must not be joined after leave")
	}
}

func TestRegistryRemoveClientReturnsChannels(t *testing.T) {
	r := NewRegistry()
	c := NewClient("a", 1, "alice")
	r.Join(c, "room:1")
	r.Join(c, "dm:1:2")

	keys := r.RemoveClient(c)
	if len(keys) != 2 {
		t.Fatalf("expected 2 affected channels, got %v", keys)
	}
	if r.Joined(c, "room:1") || r.Joined(c, "dm:1:2") {
		t.Fatal("client still joined after removal")
	}
	if got := r.RemoveClient(c); got != nil {
		t.Fatalf("removing an unknown client must return nil, got %v", got)
	}
}

func TestRegistryOnlineUsersDedupes(t *testing.T) {
	r := NewRegistry()
	first := NewClient("a1", 1, "alice")
	second := NewClient("a2", 1, "alice")
	other := NewClient("b", 2, "bob")
	r.Join(first, "room:1")
	r.Join(second, "room:1")
	r.Join(other, "room:1")

	users := r.OnlineUsers("room:1")
	if len(users) != 2 {
		t.Fatalf("expected 2 distinct users, got %+v", users)
	}
	if users[0].UserID != 1 || users[1].UserID != 2 {
		t.Fatalf("expected users sorted by id, got %+v", users)
	}
}

func TestRegistryBroadcastExcept(t *testing.T) {
	r := NewRegistry()
	sender := NewClient("a", 1, "alice")
	receiver := NewClient("b", 2, "bob")
	r.Join(sender, "room:1")
	r.Join(receiver, "room:1")

	r.BroadcastExcept("room:1", sender, &Event{Kind: EventTyping})

	select {
	case ev := <-receiver.Events:
		if ev.Kind != EventTyping {
			t.Fatalf("unexpected event: %+v", ev)
		}
	default:
		t.Fatal("receiver got no event")
	}
	select {
	case ev := <-sender.Events:
		t.Fatalf("sender must be skipped, got %+v", ev)
	default:
	}
}

func TestRegistryDeliverDropsWhenFull(t *testing.T) {
	r := NewRegistry()
	c := NewClient("a", 1, "alice")
	r.Join(c, "room:1")

	for i := 0; i < cap(c.Events)+5; i++ {
		r.Broadcast("room:1", &Event{Kind: EventTyping})
	}
	if len(c.Events) != cap(c.Events) {
		t.Fatalf("expected a full buffer, got %d", len(c.Events))
	}
}
