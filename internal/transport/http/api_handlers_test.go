package http

import (
	stdhttp "net/http"
	"testing"
)

func TestRegisterLoginFlow(t *testing.T) {
	env := newTestEnv(t)

	token := env.registerUser(t, "alice")
	claims, err := env.auth.ValidateToken(token)
	if err != nil {
		t.Fatalf("validate token: %v", err)
	}
	if claims.Username != "alice" {
		t.Fatalf("unexpected claims: %+v", claims)
	}

	var resp AuthResponse
	status := env.doJSON(t, stdhttp.MethodPost, "/api/login", "",
		LoginRequest{Username: "alice", Password: "secret123"}, &resp)
	if status != stdhttp.StatusOK || resp.Token == "" {
		t.Fatalf("login: status %d token %q", status, resp.Token)
	}
}

func TestRegisterDuplicateConflict(t *testing.T) {
	env := newTestEnv(t)
	env.registerUser(t, "alice")

	var resp ErrorResponse
	status := env.doJSON(t, stdhttp.MethodPost, "/api/register", "",
		RegisterRequest{Username: "alice", Password: "secret123"}, &resp)
	if status != stdhttp.StatusConflict {
		t.Fatalf("expected 409, got %d (%+v)", status, resp)
	}
}

func TestRegisterRejectsInvalidBody(t *testing.T) {
	env := newTestEnv(t)

	status := env.doJSON(t, stdhttp.MethodPost, "/api/register", "",
		RegisterRequest{Username: "ab", Password: "secret123"}, nil)
	if status != stdhttp.StatusBadRequest {
		t.Fatalf("expected 400 for short username, got %d", status)
	}

	status = env.doJSON(t, stdhttp.MethodPost, "/api/register", "",
		RegisterRequest{Username: "alice", Password: "short"}, nil)
	if status != stdhttp.StatusBadRequest {
		t.Fatalf("expected 400 for short password, got %d", status)
	}
}

func TestLoginRejectsWrongPassword(t *testing.T) {
	env := newTestEnv(t)
	env.registerUser(t, "alice")

	status := env.doJSON(t, stdhttp.MethodPost, "/api/login", "",
		LoginRequest{Username: "alice", Password: "wrongpass"}, nil)
	if status != stdhttp.StatusUnauthorized {
		t.Fatalf("expected 401, got %d", status)
	}
}

func TestProtectedRoutesRequireToken(t *testing.T) {
	env := newTestEnv(t)

	status := env.doJSON(t, stdhttp.MethodGet, "/api/rooms", "", nil, nil)
	if status != stdhttp.StatusUnauthorized {
		t.Fatalf("expected 401 without token, got %d", status)
	}

	status = env.doJSON(t, stdhttp.MethodGet, "/api/rooms", "garbage-token", nil, nil)
	if status != stdhttp.StatusUnauthorized {
		t.Fatalf("expected 401 with bad token, got %d", status)
	}
}

func TestHealthEndpoint(t *testing.T) {
	env := newTestEnv(t)

	resp, err := env.ts.Client().Get(env.ts.URL + "/health")
	if err != nil {
		t.Fatalf("health request: %v", err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != stdhttp.StatusOK {
		t.Fatalf("expected 200, got %d", resp.StatusCode)
	}
}
