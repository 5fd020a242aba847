package logging

import (
	"bytes"
	"encoding/json"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"
)

func TestParseLevel(t *testing.T) {
	tests := []struct {
		input    string
		expected Level
		hasError bool
	}{
		{"debug", LevelDebug, false},
		{"DEBUG", LevelDebug, false},
		{"info", LevelInfo, false},
		{"warn", LevelWarn, false},
		{"warning", LevelWarn, false},
		{"error", LevelError, false},
		{"ERROR", LevelError, false},
		{"invalid", LevelInfo, true},
		{"", LevelInfo, true},
	}

	for _, test := range tests {
		t.Run(test.input, func(t *testing.T) {
			level, err := ParseLevel(test.input)
			if test.hasError && err == nil {
				t.Error("expected error, got nil")
			}
			if !test.hasError && err != nil {
				t.Errorf("unexpected error: %v", err)
			}
			if !test.hasError && level != test.expected {
				t.Errorf("expected %v, got %v", test.expected, level)
			}
		})
	}
}

func TestLevelString(t *testing.T) {
	for _, lvl := range []Level{LevelDebug, LevelInfo, LevelWarn, LevelError} {
		parsed, err := ParseLevel(LevelString(lvl))
		if err != nil {
			t.Fatalf("round trip of %v failed: %v", lvl, err)
		}
		if parsed != lvl {
			t.Errorf("expected %v, got %v", lvl, parsed)
		}
	}
}

func TestDefaultConfig(t *testing.T) {
	cfg := DefaultConfig()

	if cfg.Level != LevelInfo {
		t.Errorf("expected default level Info, got %v", cfg.Level)
	}
	if cfg.Output != "stderr" {
		t.Errorf("expected default output stderr, got %s", cfg.Output)
	}
	if cfg.Component != "oxygencrate" {
		t.Errorf("expected component oxygencrate, got %s", cfg.Component)
	}
	if cfg.MaxSize <= 0 || cfg.MaxBackups <= 0 || cfg.MaxAge <= 0 {
		t.Errorf("expected positive rotation limits, got %+v", cfg)
	}
}

func TestJSONOutputCarriesComponent(t *testing.T) {
	var buf bytes.Buffer
	cfg := DefaultConfig()
	cfg.Format = FormatJSON
	cfg.Writer = &buf

	logger, err := New(cfg)
	if err != nil {
		t.Fatalf("failed to create logger: %v", err)
	}

	logger.WithComponent("importer").Info("import finished", "path", "/tmp/x")

	var entry map[string]any
	if err := json.Unmarshal(buf.Bytes(), &entry); err != nil {
		t.Fatalf("output is not JSON: %v (%q)", err, buf.String())
	}
	if entry["msg"] != "import finished" {
		t.Errorf("unexpected msg: %v", entry["msg"])
	}
	if entry["component"] != "importer" {
		t.Errorf("expected component importer, got %v", entry["component"])
	}
}

func TestShouldRedact(t *testing.T) {
	tests := []struct {
		key      string
		expected bool
	}{
		{"password", true},
		{"secret", true},
		{"api_key", true},
		{"access_token", true},
		{"credential", true},
		{"cookie", true},
		{"request_token", false},
		{"path", false},
		{"display_name", false},
	}

	for _, test := range tests {
		t.Run(test.key, func(t *testing.T) {
			if got := shouldRedact(test.key); got != test.expected {
				t.Errorf("shouldRedact(%q) = %v, expected %v", test.key, got, test.expected)
			}
		})
	}
}

func TestRedactionInOutput(t *testing.T) {
	var buf bytes.Buffer
	cfg := DefaultConfig()
	cfg.Writer = &buf

	logger, err := New(cfg)
	if err != nil {
		t.Fatalf("failed to create logger: %v", err)
	}
	logger.Info("login", "password", "hunter2")

	if strings.Contains(buf.String(), "hunter2") {
		t.Errorf("password leaked into output: %s", buf.String())
	}
}

func TestFromSettings(t *testing.T) {
	cfg, err := FromSettings(Settings{Level: "debug", Format: "json", Output: "file", MaxSizeMB: 5})
	if err != nil {
		t.Fatalf("FromSettings failed: %v", err)
	}
	if cfg.Level != LevelDebug || cfg.Format != FormatJSON || cfg.Output != "file" || cfg.MaxSize != 5 {
		t.Errorf("unexpected config: %+v", cfg)
	}

	if _, err := FromSettings(Settings{Level: "loud"}); err == nil {
		t.Error("expected error for unknown level")
	}
	if _, err := FromSettings(Settings{Format: "xml"}); err == nil {
		t.Error("expected error for unknown format")
	}
}

func TestFileRotator(t *testing.T) {
	logPath := filepath.Join(t.TempDir(), "nested", "test.log")

	rotator, err := NewFileRotator(&Config{FilePath: logPath, MaxSize: 1, MaxBackups: 3, MaxAge: 7})
	if err != nil {
		t.Fatalf("failed to create rotator: %v", err)
	}
	defer rotator.Close()

	data := []byte("test log line\n")
	n, err := rotator.Write(data)
	if err != nil {
		t.Fatalf("failed to write: %v", err)
	}
	if n != len(data) {
		t.Errorf("expected to write %d bytes, wrote %d", len(data), n)
	}
	if err := rotator.Sync(); err != nil {
		t.Errorf("sync failed: %v", err)
	}
	if _, err := os.Stat(logPath); err != nil {
		t.Errorf("log file was not created: %v", err)
	}
}

func TestFileRotatorRotatesOnDayChange(t *testing.T) {
	logPath := filepath.Join(t.TempDir(), "test.log")

	rotator, err := NewFileRotator(&Config{FilePath: logPath, MaxSize: 1, MaxBackups: 3, MaxAge: 7})
	if err != nil {
		t.Fatalf("failed to create rotator: %v", err)
	}
	defer rotator.Close()

	if _, err := rotator.Write([]byte("day one\n")); err != nil {
		t.Fatalf("write failed: %v", err)
	}

	tomorrow := time.Now().Add(24 * time.Hour)
	rotator.mu.Lock()
	rotator.nowFunc = func() time.Time { return tomorrow }
	rotator.mu.Unlock()

	if _, err := rotator.Write([]byte("day two\n")); err != nil {
		t.Fatalf("write failed: %v", err)
	}

	rolled, err := rotator.Rotated()
	if err != nil {
		t.Fatalf("listing rotated files failed: %v", err)
	}
	if len(rolled) != 1 {
		t.Fatalf("expected one rotated file, got %v", rolled)
	}

	current, err := os.ReadFile(logPath)
	if err != nil {
		t.Fatalf("read current log: %v", err)
	}
	if string(current) != "day two\n" {
		t.Errorf("unexpected current log contents %q", current)
	}
}

func TestCrashHandlerRecover(t *testing.T) {
	var buf bytes.Buffer
	cfg := DefaultConfig()
	cfg.Writer = &buf
	logger, err := New(cfg)
	if err != nil {
		t.Fatalf("failed to create logger: %v", err)
	}

	h := NewCrashHandler(logger)
	var seen any
	h.OnCrash(func(v any, _ []byte) { seen = v })

	if ok := h.Recover("boom", func() { panic("kaboom") }); ok {
		t.Error("Recover reported success for a panicking function")
	}
	if seen != "kaboom" {
		t.Errorf("OnCrash got %v", seen)
	}
	if h.Recovered() != 1 {
		t.Errorf("expected 1 recovered panic, got %d", h.Recovered())
	}
	if !strings.Contains(buf.String(), "recovered panic") {
		t.Errorf("panic was not logged: %s", buf.String())
	}

	if ok := h.Recover("fine", func() {}); !ok {
		t.Error("Recover reported failure for a normal function")
	}
}

func TestSetLevelReachesComponents(t *testing.T) {
	var buf bytes.Buffer
	cfg := DefaultConfig()
	cfg.Writer = &buf
	logger, err := New(cfg)
	if err != nil {
		t.Fatalf("failed to create logger: %v", err)
	}
	child := logger.WithComponent("portal")

	child.Debug("hidden")
	if buf.Len() != 0 {
		t.Fatalf("debug entry written at info level: %s", buf.String())
	}

	logger.SetLevel(LevelDebug)
	if child.Level() != LevelDebug {
		t.Errorf("expected child level debug, got %v", child.Level())
	}
	child.Debug("shown")
	if !strings.Contains(buf.String(), "shown") {
		t.Errorf("debug entry missing after SetLevel: %s", buf.String())
	}
}
