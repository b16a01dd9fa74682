package main

import (
	"os"
	"path/filepath"
	"testing"
)

func TestDefaultConfig(t *testing.T) {
	cfg := defaultConfig()
	if len(cfg.Relays) == 0 {
		t.Fatal("defaultConfig has no relays")
	}
	for _, r := range cfg.Relays {
		if r == "" {
			t.Error("defaultConfig has an empty relay URL")
		}
	}
	if cfg.MaxMessages != 500 {
		t.Errorf("MaxMessages = %d, want 500", cfg.MaxMessages)
	}
	if cfg.HistoryLimit != 200 {
		t.Errorf("HistoryLimit = %d, want 200", cfg.HistoryLimit)
	}
	if !cfg.LoggingEnabled() {
		t.Error("LoggingEnabled() = false, want true by default")
	}
}

func TestConfigPath(t *testing.T) {
	t.Run("flag wins", func(t *testing.T) {
		t.Setenv("GREENROOM_CONFIG", "/env/config.toml")
		got := configPath("/flag/config.toml")
		if got != "/flag/config.toml" {
			t.Errorf("configPath = %q, want flag path", got)
		}
	})

	t.Run("env var", func(t *testing.T) {
		t.Setenv("GREENROOM_CONFIG", "/env/config.toml")
		got := configPath("")
		if got != "/env/config.toml" {
			t.Errorf("configPath = %q, want env path", got)
		}
	})

	t.Run("default", func(t *testing.T) {
		t.Setenv("GREENROOM_CONFIG", "")
		home, err := os.UserHomeDir()
		if err != nil {
			t.Skipf("no home dir: %v", err)
		}
		want := filepath.Join(home, ".config", "greenroom", "config.toml")
		if got := configPath(""); got != want {
			t.Errorf("configPath = %q, want %q", got, want)
		}
	})
}

func TestLoadConfig(t *testing.T) {
	t.Run("missing file", func(t *testing.T) {
		path := filepath.Join(t.TempDir(), "config.toml")
		cfg, err := LoadConfig(path)
		if err != nil {
			t.Fatalf("LoadConfig: %v", err)
		}
		if len(cfg.Relays) == 0 {
			t.Error("missing file should keep default relays")
		}
		want := filepath.Join(filepath.Dir(path), "wallet.key")
		if cfg.WalletKeyFile != want {
			t.Errorf("WalletKeyFile = %q, want %q", cfg.WalletKeyFile, want)
		}
	})

	t.Run("full file", func(t *testing.T) {
		path := filepath.Join(t.TempDir(), "config.toml")
		content := `
relays = ["wss://relay.example.com"]
wallet_key_file = "/keys/wallet.key"
channel_id = "abc123"
channel_name = "backstage"
playback_id = "pb-1"
max_messages = 100
history_limit = 50
logging = false
log_dir = "/logs"
`
		if err := os.WriteFile(path, []byte(content), 0644); err != nil {
			t.Fatal(err)
		}

		cfg, err := LoadConfig(path)
		if err != nil {
			t.Fatalf("LoadConfig: %v", err)
		}
		if len(cfg.Relays) != 1 || cfg.Relays[0] != "wss://relay.example.com" {
			t.Errorf("Relays = %v", cfg.Relays)
		}
		if cfg.WalletKeyFile != "/keys/wallet.key" {
			t.Errorf("WalletKeyFile = %q", cfg.WalletKeyFile)
		}
		if cfg.ChannelID != "abc123" {
			t.Errorf("ChannelID = %q", cfg.ChannelID)
		}
		if cfg.ChannelName != "backstage" {
			t.Errorf("ChannelName = %q", cfg.ChannelName)
		}
		if cfg.PlaybackID != "pb-1" {
			t.Errorf("PlaybackID = %q", cfg.PlaybackID)
		}
		if cfg.MaxMessages != 100 {
			t.Errorf("MaxMessages = %d, want 100", cfg.MaxMessages)
		}
		if cfg.HistoryLimit != 50 {
			t.Errorf("HistoryLimit = %d, want 50", cfg.HistoryLimit)
		}
		if cfg.LoggingEnabled() {
			t.Error("LoggingEnabled() = true, want false")
		}
		if cfg.LogDir != "/logs" {
			t.Errorf("LogDir = %q", cfg.LogDir)
		}
	})

	t.Run("zero values fall back", func(t *testing.T) {
		path := filepath.Join(t.TempDir(), "config.toml")
		content := `
relays = []
max_messages = 0
history_limit = 0
`
		if err := os.WriteFile(path, []byte(content), 0644); err != nil {
			t.Fatal(err)
		}

		cfg, err := LoadConfig(path)
		if err != nil {
			t.Fatalf("LoadConfig: %v", err)
		}
		if len(cfg.Relays) == 0 {
			t.Error("empty relays should fall back to defaults")
		}
		if cfg.MaxMessages != 500 {
			t.Errorf("MaxMessages = %d, want 500", cfg.MaxMessages)
		}
		if cfg.HistoryLimit != 200 {
			t.Errorf("HistoryLimit = %d, want 200", cfg.HistoryLimit)
		}
		if cfg.WalletKeyFile == "" {
			t.Error("WalletKeyFile should default next to the config file")
		}
	})

	t.Run("malformed toml", func(t *testing.T) {
		path := filepath.Join(t.TempDir(), "config.toml")
		if err := os.WriteFile(path, []byte("relays = [unclosed"), 0644); err != nil {
			t.Fatal(err)
		}
		if _, err := LoadConfig(path); err == nil {
			t.Error("LoadConfig on malformed TOML should error")
		}
	})
}

func TestLoggingEnabled(t *testing.T) {
	off := false
	on := true
	tests := []struct {
		name    string
		logging *bool
		want    bool
	}{
		{"unset defaults on", nil, true},
		{"explicitly off", &off, false},
		{"explicitly on", &on, true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := Config{Logging: tt.logging}
			if got := cfg.LoggingEnabled(); got != tt.want {
				t.Errorf("LoggingEnabled() = %v, want %v", got, tt.want)
			}
		})
	}
}
