package slack

import (
	"context"
	"encoding/json"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
)

func TestFormatBookingNotice(t *testing.T) {
	msg := formatBookingNotice("Anna", "anna@example.com", "Tuesday, 01.07. at 13:00")

	checks := []string{
		"New meeting booked",
		"Anna (anna@example.com)",
		"Tuesday, 01.07. at 13:00",
	}
	for _, check := range checks {
		if !strings.Contains(msg, check) {
			t.Errorf("expected message to contain %q", check)
		}
	}
}

func TestFormatBookingNotice_NoName(t *testing.T) {
	msg := formatBookingNotice("", "anna@example.com", "Tuesday, 01.07. at 13:00")

	if strings.Contains(msg, "()") {
		t.Errorf("empty name must not render parens, got %q", msg)
	}
	if !strings.Contains(msg, "anna@example.com") {
		t.Errorf("expected email, got %q", msg)
	}
}

func TestPostBookingNotice_Success(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Header.Get("Authorization") != "Bearer xoxb-test" {
			t.Errorf("expected Bearer xoxb-test, got %q", r.Header.Get("Authorization"))
		}
		body, _ := io.ReadAll(r.Body)
		var payload map[string]any
		if err := json.Unmarshal(body, &payload); err != nil {
			t.Fatalf("invalid payload: %v", err)
		}
		if payload["channel"] != "#bookings" {
			t.Errorf("expected channel #bookings, got %v", payload["channel"])
		}
		w.Write([]byte(`{"ok": true, "ts": "1234.5678"}`))
	}))
	defer server.Close()

	p := NewPoster("xoxb-test", "#bookings", slog.Default())
	p.SetAPIURL(server.URL)

	err := p.PostBookingNotice(context.Background(), "Anna", "anna@example.com", "Tuesday, 01.07. at 13:00")
	if err != nil {
		t.Fatalf("PostBookingNotice failed: %v", err)
	}
}

func TestPostBookingNotice_SlackError(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(`{"ok": false, "error": "channel_not_found"}`))
	}))
	defer server.Close()

	p := NewPoster("xoxb-test", "#missing", slog.Default())
	p.SetAPIURL(server.URL)

	err := p.PostBookingNotice(context.Background(), "Anna", "anna@example.com", "slot")
	if err == nil {
		t.Fatal("expected error")
	}
	if !strings.Contains(err.Error(), "channel_not_found") {
		t.Errorf("expected slack error detail, got %v", err)
	}
}
