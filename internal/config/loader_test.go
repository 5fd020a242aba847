package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"
)

func writeConfig(t *testing.T, path, body string) {
	t.Helper()
	if err := os.WriteFile(path, []byte(body), 0600); err != nil {
		t.Fatalf("write config: %v", err)
	}
}

func TestLoaderLoad(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.toml")
	writeConfig(t, path, "[input]\nlayout = \"host\"\n")

	l := NewLoader(path)
	defer l.Close()

	cfg, err := l.Load()
	if err != nil {
		t.Fatalf("Load failed: %v", err)
	}
	if cfg.Input.Layout != "host" {
		t.Errorf("expected layout host, got %s", cfg.Input.Layout)
	}
	if l.Config() != cfg {
		t.Error("Config should return the loaded config")
	}
}

func TestLoaderRejectsUnknownKeys(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.toml")
	writeConfig(t, path, "[import]\nrequest_cod = 7\n")

	l := NewLoader(path)
	defer l.Close()

	if _, err := l.Load(); err == nil {
		t.Error("expected schema error for misspelled key")
	}
}

func TestLoaderRejectsInvalidValues(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.toml")
	writeConfig(t, path, "[input]\nlayout = \"colemak\"\n")

	l := NewLoader(path)
	defer l.Close()

	if _, err := l.Load(); err == nil {
		t.Error("expected validation error")
	}
}

func TestLoaderHotReload(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.toml")
	writeConfig(t, path, "[logging]\nlevel = \"info\"\n")

	l := NewLoader(path)
	l.debounce = 10 * time.Millisecond
	defer l.Close()

	if _, err := l.Load(); err != nil {
		t.Fatalf("Load failed: %v", err)
	}

	changed := make(chan *Config, 4)
	l.OnChange(func(c *Config) { changed <- c })
	if err := l.Watch(); err != nil {
		t.Fatalf("Watch failed: %v", err)
	}

	writeConfig(t, path, "[logging]\nlevel = \"debug\"\n")

	select {
	case c := <-changed:
		if c.Logging.Level != "debug" {
			t.Errorf("expected reloaded level debug, got %s", c.Logging.Level)
		}
		if l.Config().Logging.Level != "debug" {
			t.Error("loader did not store the reloaded config")
		}
	case err := <-l.Errors():
		t.Fatalf("reload error: %v", err)
	case <-time.After(5 * time.Second):
		t.Fatal("no reload after config change")
	}
}

func TestLoaderReportsBadReload(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.toml")
	writeConfig(t, path, "[logging]\nlevel = \"info\"\n")

	l := NewLoader(path)
	l.debounce = 10 * time.Millisecond
	defer l.Close()

	if _, err := l.Load(); err != nil {
		t.Fatalf("Load failed: %v", err)
	}
	if err := l.Watch(); err != nil {
		t.Fatalf("Watch failed: %v", err)
	}

	writeConfig(t, path, "[logging]\nlevel = \"shouting\"\n")

	select {
	case err := <-l.Errors():
		if err == nil {
			t.Error("expected a reload error")
		}
	case <-time.After(5 * time.Second):
		t.Fatal("no error reported for invalid config")
	}
	if l.Config().Logging.Level != "info" {
		t.Error("invalid reload must keep the previous config")
	}
}
