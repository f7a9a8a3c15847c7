package remote

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/go-chi/chi/v5"

	"github.com/zhouzirui/crickgenius/internal/model/chat"
)

func newTestServer(t *testing.T) *httptest.Server {
	t.Helper()
	r := chi.NewRouter()
	r.Post("/login", func(w http.ResponseWriter, r *http.Request) {
		var creds chat.Credentials
		_ = json.NewDecoder(r.Body).Decode(&creds)
		if creds.Password != "secret" {
			w.WriteHeader(http.StatusUnauthorized)
			_, _ = w.Write([]byte(`{"error":"Invalid credentials"}`))
			return
		}
		http.SetCookie(w, &http.Cookie{Name: "session", Value: "ok", Path: "/"})
		_ = json.NewEncoder(w).Encode(chat.Profile{Username: creds.Username})
	})
	authed := func(next http.HandlerFunc) http.HandlerFunc {
		return func(w http.ResponseWriter, r *http.Request) {
			if c, err := r.Cookie("session"); err != nil || c.Value != "ok" {
				w.WriteHeader(http.StatusUnauthorized)
				_, _ = w.Write([]byte(`{"error":"Unauthorized"}`))
				return
			}
			next(w, r)
		}
	}
	r.Post("/new_chat", authed(func(w http.ResponseWriter, r *http.Request) {
		_ = json.NewEncoder(w).Encode(chat.NewChatResponse{ConversationID: "c1"})
	}))
	r.Post("/chat", authed(func(w http.ResponseWriter, r *http.Request) {
		var req chat.QueryRequest
		_ = json.NewDecoder(r.Body).Decode(&req)
		if req.Query == "boom" {
			w.WriteHeader(http.StatusInternalServerError)
			_, _ = w.Write([]byte(`{"error":"model down"}`))
			return
		}
		_ = json.NewEncoder(w).Encode(chat.QueryResponse{Response: "echo: " + req.Query, ConversationID: "c1"})
	}))
	r.Get("/chat_history", authed(func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte(`{"conversations":[{"id":"c1","first_query":"hi","messages":[{"query":"hi","response":"hello","timestamp":"2025-01-02T03:04:05Z"}]}]}`))
	}))
	r.Post("/logout", func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte(`{"message":"Logged out"}`))
	})

	srv := httptest.NewServer(r)
	t.Cleanup(srv.Close)
	return srv
}

func TestClientCarriesSessionCookie(t *testing.T) {
	srv := newTestServer(t)
	client, err := New(srv.URL, nil)
	if err != nil {
		t.Fatalf("New err: %v", err)
	}
	ctx := context.Background()

	if _, err := client.NewChat(ctx); !errors.Is(err, ErrUnauthorized) {
		t.Fatalf("expected ErrUnauthorized before login, got %v", err)
	}

	profile, err := client.Login(ctx, "sachin", "secret")
	if err != nil {
		t.Fatalf("Login err: %v", err)
	}
	if profile.Username != "sachin" {
		t.Fatalf("unexpected username %q", profile.Username)
	}

	id, err := client.NewChat(ctx)
	if err != nil {
		t.Fatalf("NewChat err: %v", err)
	}
	if id != "c1" {
		t.Fatalf("unexpected conversation id %q", id)
	}

	reply, err := client.Send(ctx, "who scored most runs?")
	if err != nil {
		t.Fatalf("Send err: %v", err)
	}
	if reply.Response != "echo: who scored most runs?" || reply.ConversationID != "c1" {
		t.Fatalf("unexpected reply %+v", reply)
	}

	convs, err := client.History(ctx)
	if err != nil {
		t.Fatalf("History err: %v", err)
	}
	if len(convs) != 1 || len(convs[0].Turns) != 1 || convs[0].Turns[0].Response != "hello" {
		t.Fatalf("unexpected history %+v", convs)
	}
}

func TestClientStatusErrors(t *testing.T) {
	srv := newTestServer(t)
	client, _ := New(srv.URL, nil)
	ctx := context.Background()

	if _, err := client.Login(ctx, "sachin", "wrong"); !errors.Is(err, ErrUnauthorized) {
		t.Fatalf("expected ErrUnauthorized, got %v", err)
	}

	if _, err := client.Login(ctx, "sachin", "secret"); err != nil {
		t.Fatalf("Login err: %v", err)
	}
	_, err := client.Send(ctx, "boom")
	var statusErr *StatusError
	if !errors.As(err, &statusErr) {
		t.Fatalf("expected StatusError, got %v", err)
	}
	if statusErr.Status != http.StatusInternalServerError || statusErr.Message != "model down" {
		t.Fatalf("unexpected status error %+v", statusErr)
	}
	if errors.Is(err, ErrUnauthorized) {
		t.Fatal("500 must not classify as unauthorized")
	}
}

func TestClientLogout(t *testing.T) {
	srv := newTestServer(t)
	client, _ := New(srv.URL, nil)
	if err := client.Logout(context.Background()); err != nil {
		t.Fatalf("Logout err: %v", err)
	}
}

func TestClientUnreachable(t *testing.T) {
	srv := newTestServer(t)
	url := srv.URL
	srv.Close()

	client, _ := New(url, nil)
	_, err := client.History(context.Background())
	if err == nil {
		t.Fatal("expected transport error")
	}
	if errors.Is(err, ErrUnauthorized) {
		t.Fatal("transport error must not classify as unauthorized")
	}
}
