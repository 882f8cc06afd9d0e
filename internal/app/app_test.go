package app

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/samvad-hq/samvad-audio-relay/internal/config"
	"github.com/samvad-hq/samvad-audio-relay/internal/relay"
)

func testConfig() *config.Config {
	return &config.Config{
		AppName:             "samvad-audio-relay",
		TelegramToken:       "123:abc",
		TelegramChannelID:   "@archive",
		TelegramAPIURL:      "http://127.0.0.1:1",
		TelegramPollTimeout: time.Second,
		ExtractorBaseURL:    "http://127.0.0.1:1",
		ExtractorTimeout:    time.Second,
		CleanupTimeout:      time.Second,
		MaxPayloadBytes:     1 << 20,
		ProgressInterval:    time.Second,
		StorageType:         "memory",
	}
}

func TestNewRuntimeRequiresBotSettings(t *testing.T) {
	cfg := testConfig()
	cfg.TelegramToken = ""
	if _, err := NewRuntime(context.Background(), cfg, nil); err == nil {
		t.Fatalf("expected error without telegram token")
	}
	if _, err := NewRuntime(context.Background(), nil, nil); err == nil {
		t.Fatalf("expected error for nil config")
	}
}

func TestNewRuntimeWithoutCatalogs(t *testing.T) {
	rt, err := NewRuntime(context.Background(), testConfig(), nil)
	if err != nil {
		t.Fatalf("NewRuntime: %v", err)
	}
	defer rt.Close()

	if rt.Relayer == nil || rt.Events == nil || rt.Store == nil {
		t.Fatalf("runtime not fully wired: %#v", rt)
	}
	if rt.Events.Size() != 0 {
		t.Fatalf("no publishers file means no publishers")
	}
	if _, err := rt.NewBatcher(nil); !errors.Is(err, ErrCatalogsDisabled) {
		t.Fatalf("expected ErrCatalogsDisabled, got %v", err)
	}
}

func TestNewRuntimeWithCatalogs(t *testing.T) {
	cfg := testConfig()
	cfg.YouTubeAPIKey = "key"
	cfg.YouTubeAPIURL = "http://127.0.0.1:1/"

	rt, err := NewRuntime(context.Background(), cfg, nil)
	if err != nil {
		t.Fatalf("NewRuntime: %v", err)
	}
	defer rt.Close()

	if _, err := rt.NewBatcher(nil); err != nil {
		t.Fatalf("NewBatcher: %v", err)
	}
}

func TestNewRuntimeRejectsBadStorage(t *testing.T) {
	cfg := testConfig()
	cfg.StorageType = "cassandra"
	if _, err := NewRuntime(context.Background(), cfg, nil); err == nil {
		t.Fatalf("expected storage error")
	}
}

func TestRelayBotStopsOnCancelledContext(t *testing.T) {
	cfg := testConfig()
	cfg.AdminAddr = "127.0.0.1:0"

	rb, err := NewRelayBot(context.Background(), cfg, nil)
	if err != nil {
		t.Fatalf("NewRelayBot: %v", err)
	}
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	done := make(chan error, 1)
	go func() { done <- rb.Run(ctx) }()
	select {
	case err := <-done:
		if err != nil {
			t.Fatalf("Run: %v", err)
		}
	case <-time.After(5 * time.Second):
		t.Fatalf("Run did not return after cancel")
	}
}

func TestDisabledBatches(t *testing.T) {
	run, err := disabledBatches{}.Start(relay.BatchRequest{})
	if run != nil || !errors.Is(err, ErrCatalogsDisabled) {
		t.Fatalf("expected ErrCatalogsDisabled, got %v", err)
	}
}
