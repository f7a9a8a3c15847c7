package utils

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"
)

func TestDecodeJSON(t *testing.T) {
	var dst struct {
		Query string `json:"query"`
	}

	req := httptest.NewRequest(http.MethodPost, "/chat", strings.NewReader(`{"query":"pitch report?","extra":1}`))
	if err := DecodeJSON(httptest.NewRecorder(), req, &dst); err != nil {
		t.Fatalf("DecodeJSON err: %v", err)
	}
	if dst.Query != "pitch report?" {
		t.Fatalf("unexpected query %q", dst.Query)
	}

	for name, body := range map[string]string{
		"empty":     "",
		"malformed": "{",
		"too large": `{"query":"` + strings.Repeat("a", maxBodyBytes) + `"}`,
	} {
		req := httptest.NewRequest(http.MethodPost, "/chat", strings.NewReader(body))
		if err := DecodeJSON(httptest.NewRecorder(), req, &dst); err == nil {
			t.Errorf("%s: expected error", name)
		}
	}
}

func TestRespondError(t *testing.T) {
	rec := httptest.NewRecorder()
	RespondError(rec, http.StatusUnauthorized, "Unauthorized")

	if rec.Code != http.StatusUnauthorized {
		t.Fatalf("status = %d", rec.Code)
	}
	if ct := rec.Header().Get("Content-Type"); ct != "application/json" {
		t.Fatalf("content type = %q", ct)
	}
	var body ErrorBody
	if err := json.NewDecoder(rec.Body).Decode(&body); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if body.Error != "Unauthorized" {
		t.Fatalf("error = %q", body.Error)
	}
}

func TestCookies(t *testing.T) {
	rec := httptest.NewRecorder()
	SetCookie(rec, "session", "token", time.Now().Add(time.Hour), true)
	ClearCookie(rec, "conversation_id", false)

	cookies := rec.Result().Cookies()
	if len(cookies) != 2 {
		t.Fatalf("expected 2 cookies, got %d", len(cookies))
	}
	if !cookies[0].HttpOnly || !cookies[0].Secure || cookies[0].SameSite != http.SameSiteNoneMode {
		t.Fatalf("unexpected session cookie: %+v", cookies[0])
	}
	if cookies[1].MaxAge >= 0 || cookies[1].SameSite != http.SameSiteLaxMode {
		t.Fatalf("unexpected cleared cookie: %+v", cookies[1])
	}
}
