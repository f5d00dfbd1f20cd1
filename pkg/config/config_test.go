package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"
)

func TestLoadFromMap(t *testing.T) {
	input := map[string]any{
		"localization": map[string]any{
			"default_locale": "es",
		},
		"push": map[string]any{
			"vapid_public_key": "BASE64URLKEYDATA",
			"ready_timeout":    "2s",
		},
		"relay": map[string]any{
			"focus_policy": "first",
		},
		"store": map[string]any{
			"driver": "memory",
		},
	}

	cfg, err := Load(input)
	if err != nil {
		t.Fatalf("load returned error: %v", err)
	}
	if cfg.Localization.DefaultLocale != "es" {
		t.Fatalf("expected locale es, got %s", cfg.Localization.DefaultLocale)
	}
	if cfg.Push.VapidPublicKey != "BASE64URLKEYDATA" {
		t.Fatalf("unexpected vapid key %q", cfg.Push.VapidPublicKey)
	}
	if cfg.Push.ReadyTimeout != 2*time.Second {
		t.Fatalf("expected ready timeout 2s, got %s", cfg.Push.ReadyTimeout)
	}
	if cfg.Relay.FocusPolicy != FocusFirst {
		t.Fatalf("expected focus policy first, got %s", cfg.Relay.FocusPolicy)
	}
	if cfg.Relay.Icon != "/icon-192.png" {
		t.Fatalf("expected default icon, got %s", cfg.Relay.Icon)
	}
}

func TestLoadFromStruct(t *testing.T) {
	input := Config{
		Localization: LocalizationConfig{DefaultLocale: "fr"},
		Store:        StoreConfig{Driver: StoreSQLite, DSN: "file::memory:"},
		Server:       ServerConfig{PublicURL: "https://relay.example.com/"},
	}

	cfg, err := Load(input)
	if err != nil {
		t.Fatalf("load returned error: %v", err)
	}
	if cfg.Localization.DefaultLocale != "fr" {
		t.Fatalf("expected locale fr, got %s", cfg.Localization.DefaultLocale)
	}
	if cfg.Server.PublicURL != "https://relay.example.com" {
		t.Fatalf("expected trailing slash trimmed, got %s", cfg.Server.PublicURL)
	}
	if cfg.Push.ReadyTimeout != 10*time.Second {
		t.Fatalf("expected default ready timeout, got %s", cfg.Push.ReadyTimeout)
	}
	if cfg.Relay.FocusPolicy != FocusMostRecent {
		t.Fatalf("expected most-recent focus by default, got %s", cfg.Relay.FocusPolicy)
	}
}

func TestValidateRejectsBadValues(t *testing.T) {
	cases := map[string]func(*Config){
		"focus policy": func(c *Config) { c.Relay.FocusPolicy = "last" },
		"store driver": func(c *Config) { c.Store.Driver = "postgres" },
		"sqlite dsn":   func(c *Config) { c.Store.Driver = StoreSQLite },
		"redis addr":   func(c *Config) { c.Store.Driver = StoreRedis },
		"public url":   func(c *Config) { c.Server.PublicURL = "relay.local" },
		"click route":  func(c *Config) { c.Relay.ClickRoute = "events" },
	}
	for name, mutate := range cases {
		cfg := Defaults()
		mutate(&cfg)
		if err := cfg.Validate(); err == nil {
			t.Fatalf("%s: expected validation error", name)
		}
	}
}

func TestLoadRejectsBadDuration(t *testing.T) {
	_, err := Load(map[string]any{"push": map[string]any{"ready_timeout": "soon"}})
	if err == nil {
		t.Fatalf("expected duration parse error")
	}
}

func TestDefaultStorePathIsUnderUserConfigDir(t *testing.T) {
	t.Setenv("XDG_CONFIG_HOME", t.TempDir())

	path := Defaults().Store.Path
	if !filepath.IsAbs(path) {
		t.Fatalf("expected absolute store path, got %q", path)
	}
	if filepath.Base(path) != "kv.json" || filepath.Base(filepath.Dir(path)) != "pushrelay" {
		t.Fatalf("unexpected store path %q", path)
	}
	if dir, err := os.UserConfigDir(); err == nil {
		if want := filepath.Join(dir, "pushrelay", "kv.json"); path != want {
			t.Fatalf("expected %q, got %q", want, path)
		}
	}
}
