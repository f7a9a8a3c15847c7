package auth

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"testing"
	"time"

	gormsqlite "github.com/glebarez/sqlite"
	"gorm.io/gorm"

	"github.com/zhouzirui/crickgenius/internal/model/chat"
)

func newTestService(t *testing.T, lifetime time.Duration) *Service {
	t.Helper()
	dsn := fmt.Sprintf("file:%s?mode=memory&cache=shared", strings.ReplaceAll(t.Name(), "/", "_"))
	db, err := gorm.Open(gormsqlite.Open(dsn), &gorm.Config{})
	if err != nil {
		t.Fatalf("open sqlite: %v", err)
	}
	if err := db.AutoMigrate(&chat.User{}); err != nil {
		t.Fatalf("automigrate: %v", err)
	}
	return NewService(db, "test-secret", lifetime)
}

func TestRegisterThenLogin(t *testing.T) {
	svc := newTestService(t, time.Hour)
	ctx := context.Background()

	profile, err := svc.Register(ctx, chat.Credentials{Username: " alice ", Password: "pw"})
	if err != nil {
		t.Fatalf("Register err: %v", err)
	}
	if profile.Username != "alice" {
		t.Fatalf("username should be trimmed, got %q", profile.Username)
	}

	if _, err := svc.Login(ctx, chat.Credentials{Username: "alice", Password: "pw"}); err != nil {
		t.Fatalf("Login err: %v", err)
	}

	var stored chat.User
	if err := svc.db.First(&stored, "username = ?", "alice").Error; err != nil {
		t.Fatalf("load user: %v", err)
	}
	if stored.PasswordHash == "pw" {
		t.Fatal("password stored in plain text")
	}
}

func TestRegisterRejectsDuplicatesAndBlanks(t *testing.T) {
	svc := newTestService(t, time.Hour)
	ctx := context.Background()

	if _, err := svc.Register(ctx, chat.Credentials{Username: "bob", Password: "pw"}); err != nil {
		t.Fatalf("Register err: %v", err)
	}
	if _, err := svc.Register(ctx, chat.Credentials{Username: "bob", Password: "other"}); !errors.Is(err, ErrUserExists) {
		t.Fatalf("expected ErrUserExists, got %v", err)
	}
	if _, err := svc.Register(ctx, chat.Credentials{Username: "carol", Password: "  "}); !errors.Is(err, ErrCredentialsRequired) {
		t.Fatalf("expected ErrCredentialsRequired, got %v", err)
	}
}

func TestLoginRejectsBadCredentials(t *testing.T) {
	svc := newTestService(t, time.Hour)
	ctx := context.Background()

	if _, err := svc.Register(ctx, chat.Credentials{Username: "dave", Password: "right"}); err != nil {
		t.Fatalf("Register err: %v", err)
	}

	cases := []chat.Credentials{
		{Username: "dave", Password: "wrong"},
		{Username: "nobody", Password: "right"},
	}
	for _, creds := range cases {
		if _, err := svc.Login(ctx, creds); !errors.Is(err, ErrInvalidCredentials) {
			t.Fatalf("Login(%s) expected ErrInvalidCredentials, got %v", creds.Username, err)
		}
	}
}

func TestTokenRoundTrip(t *testing.T) {
	svc := newTestService(t, time.Hour)

	token, expires, err := svc.IssueToken("erin")
	if err != nil {
		t.Fatalf("IssueToken err: %v", err)
	}
	if time.Until(expires) <= 0 {
		t.Fatalf("expiry should be in the future, got %v", expires)
	}

	username, err := svc.ParseToken(token)
	if err != nil {
		t.Fatalf("ParseToken err: %v", err)
	}
	if username != "erin" {
		t.Fatalf("unexpected subject %q", username)
	}
}

func TestParseTokenRejectsTamperedAndExpired(t *testing.T) {
	svc := newTestService(t, time.Hour)

	token, _, err := svc.IssueToken("frank")
	if err != nil {
		t.Fatalf("IssueToken err: %v", err)
	}

	other := NewService(svc.db, "different-secret", time.Hour)
	if _, err := other.ParseToken(token); !errors.Is(err, ErrInvalidToken) {
		t.Fatalf("expected ErrInvalidToken for wrong secret, got %v", err)
	}

	expired := NewService(svc.db, "test-secret", -time.Minute)
	stale, _, err := expired.IssueToken("frank")
	if err != nil {
		t.Fatalf("IssueToken err: %v", err)
	}
	if _, err := svc.ParseToken(stale); !errors.Is(err, ErrInvalidToken) {
		t.Fatalf("expected ErrInvalidToken for expired token, got %v", err)
	}

	if _, err := svc.ParseToken("not-a-token"); !errors.Is(err, ErrInvalidToken) {
		t.Fatalf("expected ErrInvalidToken for garbage, got %v", err)
	}
}
