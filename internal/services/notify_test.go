package services

import (
	"context"
	"errors"
	"expiry-monitor/internal/config"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"go.uber.org/zap/zaptest"
)

type telegramFake struct {
	mu      sync.Mutex
	chatIDs []string
	texts   []string
	paths   []string
	status  map[string]int
}

func (f *telegramFake) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	f.mu.Lock()
	defer f.mu.Unlock()

	chatID := r.URL.Query().Get("chat_id")
	f.chatIDs = append(f.chatIDs, chatID)
	f.texts = append(f.texts, r.URL.Query().Get("text"))
	f.paths = append(f.paths, r.URL.Path)

	if code, ok := f.status[chatID]; ok {
		w.WriteHeader(code)
		return
	}
	w.Write([]byte(`{"ok":true}`))
}

func TestTelegramNotifierDeliversToEveryRecipient(t *testing.T) {
	fake := &telegramFake{status: map[string]int{"200": http.StatusForbidden, "300": http.StatusInternalServerError}}
	srv := httptest.NewServer(fake)
	defer srv.Close()

	cfg := &config.TelegramConfig{
		BotToken: "123:ABC",
		ChatIDs:  config.StringList{"100", "200", " ", "300", "400", "100"},
		APIURL:   srv.URL + "/",
		Timeout:  time.Second,
	}
	n := NewTelegramNotifierWithClient(cfg, srv.Client(), zaptest.NewLogger(t))

	deliveries := n.Send(context.Background(), "report body\nline two")

	if len(deliveries) != 4 {
		t.Fatalf("expected 4 deliveries, got %d", len(deliveries))
	}
	wantOK := map[string]bool{"100": true, "200": false, "300": false, "400": true}
	for _, d := range deliveries {
		if d.OK() != wantOK[d.Recipient] {
			t.Fatalf("recipient %s: ok=%v status=%d", d.Recipient, d.OK(), d.StatusCode)
		}
		if !d.OK() {
			var derr *DeliveryError
			if !errors.As(d.Err, &derr) || derr.StatusCode != d.StatusCode {
				t.Fatalf("expected DeliveryError, got %v", d.Err)
			}
		}
	}

	if got := strings.Join(fake.chatIDs, ","); got != "100,200,300,400" {
		t.Fatalf("unexpected send order %s", got)
	}
	for i, p := range fake.paths {
		if p != "/bot123:ABC/sendMessage" {
			t.Fatalf("unexpected path %q", p)
		}
		if fake.texts[i] != "report body\nline two" {
			t.Fatalf("unexpected text %q", fake.texts[i])
		}
	}
}

func TestTelegramNotifierTransportErrorRedactsToken(t *testing.T) {
	srv := httptest.NewServer(http.NotFoundHandler())
	url := srv.URL
	srv.Close()

	cfg := &config.TelegramConfig{
		BotToken: "secret-token",
		ChatIDs:  config.StringList{"1", "2"},
		APIURL:   url,
		Timeout:  time.Second,
	}
	n := NewTelegramNotifierWithClient(cfg, &http.Client{Timeout: time.Second}, zaptest.NewLogger(t))

	deliveries := n.Send(context.Background(), "hello")
	if len(deliveries) != 2 {
		t.Fatalf("expected both recipients attempted, got %d", len(deliveries))
	}
	for _, d := range deliveries {
		if d.OK() {
			t.Fatalf("expected failure for %s", d.Recipient)
		}
		if strings.Contains(d.Err.Error(), "secret-token") {
			t.Fatalf("token leaked in error: %v", d.Err)
		}
	}
}

func TestNewTelegramNotifierWithProxy(t *testing.T) {
	cfg := &config.TelegramConfig{
		BotToken: "t",
		ChatIDs:  config.StringList{"1"},
		APIURL:   "https://api.telegram.org",
		Proxy:    "127.0.0.1:7890",
		Timeout:  time.Second,
	}

	n, err := NewTelegramNotifier(cfg, zaptest.NewLogger(t))
	if err != nil {
		t.Fatalf("new notifier: %v", err)
	}
	client, ok := n.client.(*http.Client)
	if !ok {
		t.Fatalf("expected *http.Client, got %T", n.client)
	}
	if _, ok := client.Transport.(*http.Transport); !ok {
		t.Fatalf("expected proxied transport, got %T", client.Transport)
	}
}
