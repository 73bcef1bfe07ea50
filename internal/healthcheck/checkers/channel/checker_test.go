package channelchecker

import (
	"context"
	"io"
	"log/slog"
	"testing"
	"time"

	"github.com/omnirelay/omni/internal/channel"
)

type fakeConnectionObserver struct {
	items []channel.ConnectionStatus
}

func (f *fakeConnectionObserver) ConnectionStatuses() []channel.ConnectionStatus {
	return f.items
}

func newTestLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func TestCheckerListChecks(t *testing.T) {
	t.Parallel()

	now := time.Now().UTC()
	cases := []struct {
		name   string
		status channel.ConnectionStatus
		want   string
		detail string
	}{
		{name: "running", status: channel.ConnectionStatus{ChannelType: "telegram", Running: true, UpdatedAt: now}, want: "ok"},
		{name: "failed", status: channel.ConnectionStatus{ChannelType: "telegram", LastError: "connect timeout", UpdatedAt: now}, want: "error", detail: "connect timeout"},
		{name: "stopped", status: channel.ConnectionStatus{ChannelType: "telegram", UpdatedAt: now}, want: "error"},
		{name: "pending", status: channel.ConnectionStatus{ChannelType: "telegram"}, want: "unknown"},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			t.Parallel()
			checker := NewChecker(newTestLogger(), &fakeConnectionObserver{items: []channel.ConnectionStatus{tc.status}})
			items := checker.ListChecks(context.Background())
			if len(items) != 1 {
				t.Fatalf("expected 1 check, got %d", len(items))
			}
			if items[0].ID != "channel.connection.telegram" {
				t.Fatalf("unexpected id: %s", items[0].ID)
			}
			if items[0].Status != tc.want {
				t.Fatalf("expected %s, got %s", tc.want, items[0].Status)
			}
			if items[0].Detail != tc.detail {
				t.Fatalf("unexpected detail: %s", items[0].Detail)
			}
		})
	}
}

func TestCheckerNilObserver(t *testing.T) {
	t.Parallel()

	checker := NewChecker(newTestLogger(), nil)
	items := checker.ListChecks(context.Background())
	if len(items) != 1 {
		t.Fatalf("expected service warning check, got %d", len(items))
	}
	if items[0].Status != "warn" {
		t.Fatalf("expected warn status, got %s", items[0].Status)
	}
}

func TestCheckerCanceledContext(t *testing.T) {
	t.Parallel()

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	checker := NewChecker(newTestLogger(), &fakeConnectionObserver{items: []channel.ConnectionStatus{{ChannelType: "telegram", Running: true}}})
	if items := checker.ListChecks(ctx); len(items) != 0 {
		t.Fatalf("expected no checks after cancel, got %d", len(items))
	}
}
