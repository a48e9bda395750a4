package http

import (
	stdhttp "net/http"
	"strconv"
	"testing"
)

func TestCreateAndListRooms(t *testing.T) {
	env := newTestEnv(t)
	alice := env.registerUser(t, "alice")
	bob := env.registerUser(t, "bob")

	var created RoomResponse
	status := env.doJSON(t, stdhttp.MethodPost, "/api/rooms", alice,
		CreateRoomRequest{Name: "general"}, &created)
	if status != stdhttp.StatusCreated {
		t.Fatalf("create room: status %d", status)
	}
	if created.ID == 0 || created.Name != "general" || created.Type != "public" {
		t.Fatalf("unexpected room: %+v", created)
	}

	var rooms []RoomResponse
	status = env.doJSON(t, stdhttp.MethodGet, "/api/rooms", bob, nil, &rooms)
	if status != stdhttp.StatusOK {
		t.Fatalf("list rooms: status %d", status)
	}
	if len(rooms) != 1 || rooms[0].Name != "general" {
		t.Fatalf("unexpected room list: %+v", rooms)
	}
}

func TestCreateRoomDuplicateNameConflict(t *testing.T) {
	env := newTestEnv(t)
	alice := env.registerUser(t, "alice")

	status := env.doJSON(t, stdhttp.MethodPost, "/api/rooms", alice,
		CreateRoomRequest{Name: "general"}, nil)
	if status != stdhttp.StatusCreated {
		t.Fatalf("create room: status %d", status)
	}

	status = env.doJSON(t, stdhttp.MethodPost, "/api/rooms", alice,
		CreateRoomRequest{Name: "general"}, nil)
	if status != stdhttp.StatusConflict {
		t.Fatalf("expected 409 for duplicate name, got %d", status)
	}
}

func TestPrivateRoomInviteFlow(t *testing.T) {
	env := newTestEnv(t)
	alice := env.registerUser(t, "alice")
	bob := env.registerUser(t, "bob")

	var created RoomResponse
	status := env.doJSON(t, stdhttp.MethodPost, "/api/rooms", alice,
		CreateRoomRequest{Name: "secret", Private: true}, &created)
	if status != stdhttp.StatusCreated {
		t.Fatalf("create private room: status %d", status)
	}
	if created.Type != "private" || created.InviteCode == "" {
		t.Fatalf("expected generated invite code, got %+v", created)
	}

	// The invite code is only visible to the owner.
	var rooms []RoomResponse
	env.doJSON(t, stdhttp.MethodGet, "/api/rooms", alice, nil, &rooms)
	if len(rooms) != 1 || rooms[0].InviteCode != created.InviteCode {
		t.Fatalf("owner must see the invite code, got %+v", rooms)
	}

	// Non-members do not even see the room.
	env.doJSON(t, stdhttp.MethodGet, "/api/rooms", bob, nil, &rooms)
	if len(rooms) != 0 {
		t.Fatalf("non-member must not see the private room, got %+v", rooms)
	}

	// A wrong code is rejected.
	path := "/api/rooms/" + strconv.FormatInt(created.ID, 10) + "/join"
	status = env.doJSON(t, stdhttp.MethodPost, path, bob,
		JoinRoomRequest{InviteCode: "wrong"}, nil)
	if status != stdhttp.StatusForbidden {
		t.Fatalf("expected 403 for wrong code, got %d", status)
	}

	// The right code makes bob a member; the room shows up in his list,
	// still without the invite code.
	status = env.doJSON(t, stdhttp.MethodPost, path, bob,
		JoinRoomRequest{InviteCode: created.InviteCode}, nil)
	if status != stdhttp.StatusOK {
		t.Fatalf("join with invite code: status %d", status)
	}
	env.doJSON(t, stdhttp.MethodGet, "/api/rooms", bob, nil, &rooms)
	if len(rooms) != 1 || rooms[0].InviteCode != "" {
		t.Fatalf("member must see the room without its code, got %+v", rooms)
	}
}

func TestJoinRoomEdgeCases(t *testing.T) {
	env := newTestEnv(t)
	alice := env.registerUser(t, "alice")

	status := env.doJSON(t, stdhttp.MethodPost, "/api/rooms/9999/join", alice,
		JoinRoomRequest{}, nil)
	if status != stdhttp.StatusNotFound {
		t.Fatalf("expected 404 for unknown room, got %d", status)
	}

	status = env.doJSON(t, stdhttp.MethodPost, "/api/rooms/abc/join", alice,
		JoinRoomRequest{}, nil)
	if status != stdhttp.StatusBadRequest {
		t.Fatalf("expected 400 for malformed id, got %d", status)
	}
}

func TestSearchUsers(t *testing.T) {
	env := newTestEnv(t)
	alice := env.registerUser(t, "alice")
	env.registerUser(t, "alicia")
	env.registerUser(t, "bob")

	var users []UserResponse
	status := env.doJSON(t, stdhttp.MethodGet, "/api/users/search?q=ali", alice, nil, &users)
	if status != stdhttp.StatusOK {
		t.Fatalf("search: status %d", status)
	}
	// The caller is excluded from their own results.
	if len(users) != 1 || users[0].Username != "alicia" {
		t.Fatalf("unexpected search results: %+v", users)
	}

	status = env.doJSON(t, stdhttp.MethodGet, "/api/users/search?q=al", alice, nil, nil)
	if status != stdhttp.StatusBadRequest {
		t.Fatalf("expected 400 for a short query, got %d", status)
	}
}
