package server

import (
	"log/slog"
	"testing"
	"time"

	"github.com/example/go-aidetect/internal/config"
)

func TestParseLogLevel(t *testing.T) {
	tests := []struct {
		in      string
		want    slog.Level
		wantErr bool
	}{
		{"", slog.LevelInfo, false},
		{"info", slog.LevelInfo, false},
		{"DEBUG", slog.LevelDebug, false},
		{"warn", slog.LevelWarn, false},
		{"warning", slog.LevelWarn, false},
		{"error", slog.LevelError, false},
		{"verbose", slog.LevelInfo, true},
	}

	for _, tt := range tests {
		got, err := ParseLogLevel(tt.in)
		if (err != nil) != tt.wantErr {
			t.Fatalf("ParseLogLevel(%q) err = %v, wantErr %v", tt.in, err, tt.wantErr)
		}
		if got != tt.want {
			t.Fatalf("ParseLogLevel(%q) = %v, want %v", tt.in, got, tt.want)
		}
	}
}

func TestCORSConfig(t *testing.T) {
	all := corsConfig([]string{"https://a.example", "*"})
	if !all.AllowAllOrigins || len(all.AllowOrigins) != 0 {
		t.Fatalf("wildcard must allow all origins: %+v", all)
	}

	some := corsConfig([]string{"https://a.example"})
	if some.AllowAllOrigins || len(some.AllowOrigins) != 1 || !some.AllowCredentials {
		t.Fatalf("unexpected explicit-origin config: %+v", some)
	}
}

func TestNewUsesConfiguredShutdownTimeout(t *testing.T) {
	cfg := config.DefaultConfig()
	cfg.Server.ShutdownTimeout = 7

	if got := New(cfg, nil).shutdownTimeout; got != 7*time.Second {
		t.Fatalf("shutdownTimeout = %v, want 7s", got)
	}

	cfg.Server.ShutdownTimeout = 0
	if got := New(cfg, nil).shutdownTimeout; got != 30*time.Second {
		t.Fatalf("shutdownTimeout = %v, want 30s default", got)
	}

	if got := New(cfg, nil).WithShutdownTimeout(time.Second).shutdownTimeout; got != time.Second {
		t.Fatalf("WithShutdownTimeout not applied: %v", got)
	}
}

func TestHandlerAppliesConfiguredLimits(t *testing.T) {
	cfg := config.DefaultConfig()
	cfg.Server.GinMode = "test"
	cfg.Server.MaxTextBytes = 3

	h := New(cfg, nil).Handler()
	if h == nil {
		t.Fatal("expected handler")
	}
}
