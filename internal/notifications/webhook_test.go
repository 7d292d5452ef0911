package notifications

import (
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"
)

func TestSend_NoWebhook(t *testing.T) {
	s := NewSender("", "TestOracle")
	if s.Enabled() {
		t.Fatal("should not be enabled with empty URL")
	}
	// Logs to console without error.
	s.Send("backfill completed for 0xabc")
	t.Log("Send with no webhook: OK (console only)")
}

func TestSend_SlackFormat(t *testing.T) {
	var received map[string]string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		body, _ := io.ReadAll(r.Body)
		json.Unmarshal(body, &received)
		w.WriteHeader(http.StatusOK)
	}))
	defer srv.Close()

	s := NewSender(srv.URL, "TestOracle")
	if !s.Enabled() {
		t.Fatal("should be enabled")
	}

	s.Send("backfill completed for 0xabc on ethereum: 120/120 daily prices stored")

	if received["username"] != "TestOracle" {
		t.Fatalf("username: got %s", received["username"])
	}
	if received["text"] == "" {
		t.Fatal("text should not be empty")
	}
	t.Logf("Slack payload: %+v", received)
}

func TestSend_DiscordFormat(t *testing.T) {
	var received map[string]string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		body, _ := io.ReadAll(r.Body)
		json.Unmarshal(body, &received)
		w.WriteHeader(http.StatusOK)
	}))
	defer srv.Close()

	// URL containing "discord" triggers Discord format.
	s := NewSender(srv.URL+"/discord/webhook", "OracleBot")
	s.Send("backfill failed for 0xdef on polygon: provider quota exhausted")

	if received["content"] == "" {
		t.Fatal("content should not be empty for Discord")
	}
	if received["username"] != "OracleBot" {
		t.Fatalf("username: got %s", received["username"])
	}
	if _, hasText := received["text"]; hasText {
		t.Fatal("Discord payload should not have 'text' field")
	}
	t.Logf("Discord payload: %+v", received)
}

func TestDefaultServiceName(t *testing.T) {
	s := NewSender("", "")
	if s.serviceName != "PriceOracle" {
		t.Fatalf("expected default service name, got %s", s.serviceName)
	}
}
