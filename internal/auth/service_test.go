package auth

import (
	"context"
	"database/sql"
	"errors"
	"testing"
	"time"

	"github.com/chatrelay/chatrelay-server/internal/store/sqlite"
)

func newTestService(t *testing.T) *Service {
	t.Helper()
	st, err := sqlite.NewWithSetup(":memory:", func(db *sql.DB) error {
		_, err := db.Exec(sqlite.Schema)
		return err
	})
	if err != nil {
		t.Fatalf("failed to create test store: %v", err)
	}
	t.Cleanup(func() { st.Close() })

	cfg := &JWTConfig{
		Secret:   []byte("test-secret"),
		Issuer:   "chatrelay",
		Audience: "chatrelay",
		TTL:      time.Hour,
	}
	return NewService(st, cfg)
}

func TestRegisterAndLogin(t *testing.T) {
	ctx := context.Background()
	svc := newTestService(t)

	token, err := svc.Register(ctx, "alice", "secret123")
	if err != nil {
		t.Fatalf("register: %v", err)
	}
	claims, err := svc.ValidateToken(token)
	if err != nil {
		t.Fatalf("validate token: %v", err)
	}
	if claims.Username != "alice" || claims.UserID == 0 {
		t.Fatalf("unexpected claims: %+v", claims)
	}

	token, err = svc.Login(ctx, "alice", "secret123")
	if err != nil {
		t.Fatalf("login: %v", err)
	}
	if _, err := svc.ValidateToken(token); err != nil {
		t.Fatalf("validate login token: %v", err)
	}
}

func TestRegisterValidation(t *testing.T) {
	ctx := context.Background()
	svc := newTestService(t)

	tests := []struct {
		name     string
		username string
		password string
		wantErr  error
	}{
		{name: "username too short", username: "ab", password: "secret123", wantErr: ErrInvalidUsername},
		{name: "username too long", username: "aaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaa", password: "secret123", wantErr: ErrInvalidUsername},
		{name: "password too short", username: "alice", password: "short", wantErr: ErrInvalidPassword},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if _, err := svc.Register(ctx, tt.username, tt.password); !errors.Is(err, tt.wantErr) {
				t.Fatalf("expected %v, got %v", tt.wantErr, err)
			}
		})
	}
}

func TestRegisterTrimsAndRejectsDuplicates(t *testing.T) {
	ctx := context.Background()
	svc := newTestService(t)

	if _, err := svc.Register(ctx, "  alice  ", "secret123"); err != nil {
		t.Fatalf("register: %v", err)
	}
	// Trimmed name collides with the existing one.
	if _, err := svc.Register(ctx, "alice", "secret123"); !errors.Is(err, ErrUserExists) {
		t.Fatalf("expected ErrUserExists, got %v", err)
	}
	// Trimmed login works.
	if _, err := svc.Login(ctx, "alice", "secret123"); err != nil {
		t.Fatalf("login after trimmed register: %v", err)
	}
}

func TestLoginRejectsBadCredentials(t *testing.T) {
	ctx := context.Background()
	svc := newTestService(t)

	if _, err := svc.Register(ctx, "alice", "secret123"); err != nil {
		t.Fatalf("register: %v", err)
	}

	if _, err := svc.Login(ctx, "alice", "wrongpass"); !errors.Is(err, ErrInvalidCredentials) {
		t.Fatalf("expected ErrInvalidCredentials, got %v", err)
	}
	if _, err := svc.Login(ctx, "nobody", "secret123"); !errors.Is(err, ErrInvalidCredentials) {
		t.Fatalf("expected ErrInvalidCredentials, got %v", err)
	}
}

func TestValidateTokenRejectsTampering(t *testing.T) {
	ctx := context.Background()
	svc := newTestService(t)

	token, err := svc.Register(ctx, "alice", "secret123")
	if err != nil {
		t.Fatalf("register: %v", err)
	}

	if _, err := svc.ValidateToken(token + "x"); err == nil {
		t.Fatal("expected tampered token to fail validation")
	}
	if _, err := svc.ValidateToken("not-a-token"); err == nil {
		t.Fatal("expected malformed token to fail validation")
	}

	other := &JWTConfig{Secret: []byte("other-secret"), Issuer: "chatrelay", Audience: "chatrelay", TTL: time.Hour}
	foreign, err := GenerateToken(other, 1, "alice")
	if err != nil {
		t.Fatalf("generate token: %v", err)
	}
	if _, err := svc.ValidateToken(foreign); err == nil {
		t.Fatal("expected token signed with a different secret to fail")
	}
}
