package notify

import (
	"context"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"go.uber.org/zap"

	"github.com/carloswaibl/algotrader/internal/backtest"
	"github.com/carloswaibl/algotrader/internal/download"
)

type captured struct {
	path     string
	title    string
	priority string
	tags     string
	auth     string
	body     string
}

func captureServer(t *testing.T, status int) (*httptest.Server, *captured) {
	t.Helper()
	got := &captured{}
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		body, _ := io.ReadAll(r.Body)
		got.path = r.URL.Path
		got.title = r.Header.Get("Title")
		got.priority = r.Header.Get("Priority")
		got.tags = r.Header.Get("Tags")
		got.auth = r.Header.Get("Authorization")
		got.body = string(body)
		w.WriteHeader(status)
	}))
	t.Cleanup(server.Close)
	return server, got
}

func TestSendSuccess(t *testing.T) {
	server, got := captureServer(t, http.StatusOK)
	cfg := &Config{Enabled: true, Server: server.URL + "/", Topic: "algo", Priority: "default", Tags: "package", Token: "tk"}
	client := NewClient(cfg, zap.NewNop())

	result := &download.BatchResult{Total: 2, Success: 2, Rows: 780}
	if err := client.SendSuccess(context.Background(), result, "2024-05-10", 3*time.Second); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if got.path != "/algo" {
		t.Errorf("expected path /algo, got %s", got.path)
	}
	if got.title != "Download Complete: 2024-05-10" {
		t.Errorf("unexpected title %q", got.title)
	}
	if got.auth != "Bearer tk" {
		t.Errorf("expected bearer token, got %q", got.auth)
	}
	if !strings.Contains(got.body, "Rows: 780") {
		t.Errorf("body should include rows, got %q", got.body)
	}
}

func TestSendFailureUsesHighPriority(t *testing.T) {
	server, got := captureServer(t, http.StatusOK)
	client := NewClient(&Config{Enabled: true, Server: server.URL, Topic: "algo", Priority: "low", Tags: "package"}, zap.NewNop())

	result := &download.BatchResult{Total: 5, Failed: 5, Errors: []string{"a", "b", "c", "d", "e"}}
	if err := client.SendFailure(context.Background(), result, "2024-05-10", time.Second, errors.New("boom")); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if got.priority != "high" {
		t.Errorf("expected high priority, got %s", got.priority)
	}
	if !strings.Contains(got.body, "... and 2 more errors") {
		t.Errorf("body should truncate errors, got %q", got.body)
	}
	if !strings.HasSuffix(got.tags, ",x") {
		t.Errorf("expected failure tag, got %s", got.tags)
	}
}

func TestSendBacktest(t *testing.T) {
	server, got := captureServer(t, http.StatusOK)
	client := NewClient(&Config{Enabled: true, Server: server.URL, Topic: "algo", Priority: "default", Tags: "robot"}, zap.NewNop())

	losing := &backtest.Result{StartingCash: 100000, FinalValue: 99000}
	if err := client.SendBacktest(context.Background(), losing, "NDX 2024-05-10"); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if got.title != "Backtest: NDX 2024-05-10" {
		t.Errorf("unexpected title %q", got.title)
	}
	if got.priority != "high" {
		t.Errorf("losing runs should be high priority, got %s", got.priority)
	}
}

func TestSendErrorStatus(t *testing.T) {
	server, _ := captureServer(t, http.StatusForbidden)
	client := NewClient(&Config{Enabled: true, Server: server.URL, Topic: "algo", Priority: "default"}, zap.NewNop())

	err := client.SendSuccess(context.Background(), &download.BatchResult{}, "2024-05-10", 0)
	if err == nil {
		t.Error("expected error for 403 response")
	}
}

func TestNewReturnsNoopWhenDisabled(t *testing.T) {
	n := New(&Config{Enabled: false}, zap.NewNop())
	if _, ok := n.(*NoopNotifier); !ok {
		t.Fatalf("expected NoopNotifier, got %T", n)
	}
	if err := n.SendBacktest(context.Background(), &backtest.Result{}, "x"); err != nil {
		t.Errorf("noop should not fail: %v", err)
	}
}

func TestConfigValidate(t *testing.T) {
	if err := (&Config{Enabled: true, Priority: "default"}).Validate(); err == nil {
		t.Error("expected error for missing topic")
	}
	if err := (&Config{Enabled: true, Topic: "t", Priority: "loud"}).Validate(); err == nil {
		t.Error("expected error for invalid priority")
	}
	if err := (&Config{Enabled: false}).Validate(); err != nil {
		t.Errorf("disabled config should validate, got %v", err)
	}
}
