// Tests for the log line format, level filtering, attribute grouping,
// [ParseLevel], and [ReadTail].
package logger

import (
	"context"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"
)

func record(level slog.Level, msg string, attrs ...slog.Attr) slog.Record {
	r := slog.NewRecord(time.Date(2026, 2, 14, 9, 30, 0, 0, time.UTC), level, msg, 0)
	r.AddAttrs(attrs...)
	return r
}

func TestHandlerFormat(t *testing.T) {
	var sb strings.Builder
	h := NewHandler(&sb, slog.LevelDebug)

	if err := h.Handle(context.Background(), record(slog.LevelInfo, "session started", slog.String("workspace", "timecord"))); err != nil {
		t.Fatalf("Handle: %v", err)
	}

	got := strings.TrimRight(sb.String(), "\r\n")
	want := "2026-02-14T09:30:00.000Z [INFO] session started | workspace=timecord"
	if got != want {
		t.Errorf("line = %q, want %q", got, want)
	}
}

func TestHandlerLevelFiltering(t *testing.T) {
	var sb strings.Builder
	h := NewHandler(&sb, slog.LevelWarn)

	if h.Enabled(context.Background(), slog.LevelInfo) {
		t.Error("info should be filtered at warn level")
	}
	if !h.Enabled(context.Background(), slog.LevelError) {
		t.Error("error should pass at warn level")
	}
}

func TestHandlerWithAttrsAndGroup(t *testing.T) {
	var sb strings.Builder
	base := NewHandler(&sb, slog.LevelDebug)
	h := base.WithAttrs([]slog.Attr{slog.String("op", "start")}).WithGroup("store")

	if err := h.Handle(context.Background(), record(slog.LevelWarn, "heartbeat dropped", slog.Int("entry", 42))); err != nil {
		t.Fatalf("Handle: %v", err)
	}

	got := sb.String()
	if !strings.Contains(got, "store.op=start") {
		t.Errorf("missing grouped pre-applied attr in %q", got)
	}
	if !strings.Contains(got, "store.entry=42") {
		t.Errorf("missing grouped record attr in %q", got)
	}
}

func TestParseLevel(t *testing.T) {
	tests := []struct {
		in   string
		want slog.Level
	}{
		{"debug", slog.LevelDebug},
		{"INFO", slog.LevelInfo},
		{"Warn", slog.LevelWarn},
		{"error", slog.LevelError},
		{"nonsense", slog.LevelInfo},
		{"", slog.LevelInfo},
	}
	for _, tt := range tests {
		if got := ParseLevel(tt.in); got != tt.want {
			t.Errorf("ParseLevel(%q) = %v, want %v", tt.in, got, tt.want)
		}
	}
}

func TestReadTail(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "daemon.log")

	lines := []string{"one", "two", "three", "four", "five"}
	os.WriteFile(path, []byte(strings.Join(lines, "\n")+"\n"), 0o644)

	got, err := ReadTail(path, 3)
	if err != nil {
		t.Fatalf("ReadTail: %v", err)
	}
	want := "three\nfour\nfive"
	if got != want {
		t.Errorf("ReadTail = %q, want %q", got, want)
	}
}

func TestReadTailShortFile(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "daemon.log")
	os.WriteFile(path, []byte("only\n"), 0o644)

	got, err := ReadTail(path, 10)
	if err != nil {
		t.Fatalf("ReadTail: %v", err)
	}
	if got != "only" {
		t.Errorf("ReadTail = %q, want %q", got, "only")
	}
}

func TestReadTailMissingFile(t *testing.T) {
	_, err := ReadTail(filepath.Join(t.TempDir(), "absent.log"), 5)
	if err == nil {
		t.Fatal("expected error for missing file")
	}
}
