package logger

import (
	"bytes"
	"context"
	"log/slog"
	"strings"
	"testing"
)

func TestParseLevel(t *testing.T) {
	cases := map[string]slog.Level{
		"debug":   slog.LevelDebug,
		"info":    slog.LevelInfo,
		"warn":    slog.LevelWarn,
		"warning": slog.LevelWarn,
		"error":   slog.LevelError,
		"bogus":   slog.LevelInfo,
		"":        slog.LevelInfo,
	}
	for in, want := range cases {
		if got := ParseLevel(in); got != want {
			t.Fatalf("ParseLevel(%q) = %v, want %v", in, got, want)
		}
	}
}

func TestPrettyHandlerOutput(t *testing.T) {
	var buf bytes.Buffer
	log := Pretty(&buf, slog.LevelDebug)
	log.Info("panel staged", "panel", 3, "width", 64)

	out := buf.String()
	for _, want := range []string{"INFO", "panel staged", "panel=3", "width=64"} {
		if !strings.Contains(out, want) {
			t.Fatalf("output missing %q: %s", want, out)
		}
	}
}

func TestPrettyHandlerLevelFilter(t *testing.T) {
	var buf bytes.Buffer
	log := Pretty(&buf, slog.LevelWarn)
	log.Debug("hidden")
	log.Info("hidden too")
	log.Error("shown")

	out := buf.String()
	if strings.Contains(out, "hidden") {
		t.Fatalf("suppressed record leaked: %s", out)
	}
	if !strings.Contains(out, "shown") {
		t.Fatalf("error record missing: %s", out)
	}
}

func TestWithAttrsCarried(t *testing.T) {
	var buf bytes.Buffer
	log := Pretty(&buf, slog.LevelInfo).With("queue", "h2d")
	log.Info("copy issued")

	if !strings.Contains(buf.String(), "queue=h2d") {
		t.Fatalf("bound attribute missing: %s", buf.String())
	}
}

func TestContextRoundTrip(t *testing.T) {
	l := Discard()
	ctx := WithContext(context.Background(), l)
	if got := FromContext(ctx); got != l {
		t.Fatalf("FromContext returned a different logger")
	}
	if FromContext(context.Background()) == nil {
		t.Fatalf("FromContext must fall back to a usable logger")
	}
}
