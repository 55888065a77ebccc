package diag

import (
	"bytes"
	"encoding/json"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"
)

func TestRecentLogsRingBuffer(t *testing.T) {
	logs := NewRecentLogs(3, DiscardLogger())

	for i := 0; i < 5; i++ {
		logs.Info("tick", map[string]interface{}{"n": i})
	}

	entries := logs.Entries()
	if len(entries) != 3 {
		t.Fatalf("expected 3 entries, got %d", len(entries))
	}
	if entries[0].Context["n"] != 2 {
		t.Errorf("oldest kept entry n = %v, want 2", entries[0].Context["n"])
	}
	if entries[2].Context["n"] != 4 {
		t.Errorf("newest entry n = %v, want 4", entries[2].Context["n"])
	}
}

func TestRecentLogsStats(t *testing.T) {
	logs := NopLogs()
	logs.Error("e", nil)
	logs.Warn("w", map[string]interface{}{"k": "v"})
	logs.Info("i", nil)
	logs.Debug("d", nil)
	logs.Debug("d", nil)

	stats := logs.Stats()
	want := LogStats{Total: 5, Errors: 1, Warnings: 1, Info: 1, Debug: 2, MaxEntries: 100}
	if stats != want {
		t.Errorf("Stats() = %+v, want %+v", stats, want)
	}
}

func TestRecentLogsMirrorsToSlog(t *testing.T) {
	var buf bytes.Buffer
	out := slog.New(slog.NewJSONHandler(&buf, &slog.HandlerOptions{Level: slog.LevelDebug}))
	logs := NewRecentLogs(10, out)

	logs.Warn("status check failed", map[string]interface{}{"item_id": "42"})

	var line map[string]any
	if err := json.Unmarshal(bytes.TrimSpace(buf.Bytes()), &line); err != nil {
		t.Fatalf("output is not JSON: %v (%q)", err, buf.String())
	}
	if line["level"] != "WARN" {
		t.Errorf("level = %v, want WARN", line["level"])
	}
	if line["msg"] != "status check failed" {
		t.Errorf("msg = %v", line["msg"])
	}
	if line["item_id"] != "42" {
		t.Errorf("item_id = %v, want 42", line["item_id"])
	}
}

func TestNewLogger(t *testing.T) {
	t.Run("writes JSON to file", func(t *testing.T) {
		path := filepath.Join(t.TempDir(), "logs", "jimmy.log")
		logger, closer, err := NewLogger(path, "debug")
		if err != nil {
			t.Fatalf("NewLogger failed: %v", err)
		}
		logger.Debug("hello", "key", "value")
		if err := closer.Close(); err != nil {
			t.Fatalf("Close failed: %v", err)
		}

		content, err := os.ReadFile(path)
		if err != nil {
			t.Fatalf("read log: %v", err)
		}
		if !strings.Contains(string(content), `"msg":"hello"`) {
			t.Errorf("log file missing entry: %s", content)
		}
	})

	t.Run("stderr when no path", func(t *testing.T) {
		logger, closer, err := NewLogger("", "info")
		if err != nil {
			t.Fatalf("NewLogger failed: %v", err)
		}
		if logger == nil || closer == nil {
			t.Fatal("expected logger and closer")
		}
		if err := closer.Close(); err != nil {
			t.Errorf("Close on stderr logger: %v", err)
		}
	})
}

func TestParseLevel(t *testing.T) {
	tests := map[string]slog.Level{
		"debug":   slog.LevelDebug,
		"INFO":    slog.LevelInfo,
		"Warn":    slog.LevelWarn,
		"error":   slog.LevelError,
		"verbose": slog.LevelInfo,
	}
	for in, want := range tests {
		if got := ParseLevel(in); got != want {
			t.Errorf("ParseLevel(%q) = %v, want %v", in, got, want)
		}
	}
}

func TestConnectivityStats(t *testing.T) {
	tracker := NewConnectivityTracker()
	tracker.TrackSuccess("check", "http://jimmy/api/check", 10*time.Millisecond)
	tracker.TrackSuccess("check", "http://jimmy/api/check", 30*time.Millisecond)
	tracker.TrackFailure("check", "http://jimmy/api/check", 50*time.Millisecond, "connection refused")
	tracker.TrackSuccess("question", "http://jimmy/api/question", 5*time.Millisecond)

	stats := tracker.Stats()
	if len(stats) != 2 {
		t.Fatalf("expected 2 endpoints, got %d", len(stats))
	}

	check := stats[0]
	if check.Name != "check" {
		t.Fatalf("stats not sorted by name: %s first", check.Name)
	}
	if check.Total != 3 {
		t.Errorf("Total = %d, want 3", check.Total)
	}
	if check.Status != "unhealthy" {
		t.Errorf("Status = %s, want unhealthy", check.Status)
	}
	if check.P50 != 30*time.Millisecond {
		t.Errorf("P50 = %v, want 30ms", check.P50)
	}
	if len(check.RecentErrors) != 1 || check.RecentErrors[0] != "connection refused" {
		t.Errorf("RecentErrors = %v", check.RecentErrors)
	}

	if stats[1].Status != "healthy" {
		t.Errorf("question Status = %s, want healthy", stats[1].Status)
	}
}

func TestConnectivityPrunesOldCalls(t *testing.T) {
	tracker := NewConnectivityTracker()
	base := time.Date(2026, 1, 1, 12, 0, 0, 0, time.UTC)
	tracker.now = func() time.Time { return base }
	tracker.TrackSuccess("check", "u", time.Millisecond)

	tracker.now = func() time.Time { return base.Add(2 * time.Hour) }
	tracker.TrackFailure("check", "u", time.Millisecond, "boom")

	stats := tracker.Stats()
	if len(stats) != 1 || stats[0].Total != 1 {
		t.Fatalf("expected only the recent call to remain, got %+v", stats)
	}
}

func TestClientInfoUserAgent(t *testing.T) {
	info := DetectClientInfo("jimmy", "1.2.3")
	ua := info.UserAgent()
	if !strings.HasPrefix(ua, "jimmy/1.2.3 (") {
		t.Errorf("UserAgent() = %q", ua)
	}

	empty := ClientInfo{OS: "linux", Arch: "amd64", GoVersion: "go1.25"}
	if got := empty.UserAgent(); got != "jimmy-client/dev (linux/amd64; go1.25)" {
		t.Errorf("UserAgent() = %q", got)
	}
}
