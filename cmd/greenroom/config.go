package main

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/BurntSushi/toml"
)

// Config is the console configuration, loaded from a TOML file.
type Config struct {
	Relays        []string `toml:"relays"`
	WalletKeyFile string   `toml:"wallet_key_file"`

	// ChannelID joins an existing channel. When empty, ChannelName and
	// PlaybackID describe the channel to create instead.
	ChannelID   string `toml:"channel_id"`
	ChannelName string `toml:"channel_name"`
	PlaybackID  string `toml:"playback_id"`

	MaxMessages  int    `toml:"max_messages"`
	HistoryLimit int    `toml:"history_limit"`
	Logging      *bool  `toml:"logging"` // nil = default (true)
	LogDir       string `toml:"log_dir"`
}

// LoggingEnabled returns whether transcript logging is enabled, defaulting
// to true when not set in the config.
func (c *Config) LoggingEnabled() bool {
	return c.Logging == nil || *c.Logging
}

func defaultConfig() Config {
	return Config{
		Relays: []string{
			"wss://relay.offstage.live",
			"wss://relay2.offstage.live",
		},
		MaxMessages:  500,
		HistoryLimit: 200,
	}
}

// configPath resolves the config file location: the -config flag wins, then
// the GREENROOM_CONFIG environment variable, then the default location.
func configPath(flagPath string) string {
	if flagPath != "" {
		return flagPath
	}
	if env := os.Getenv("GREENROOM_CONFIG"); env != "" {
		return env
	}
	home, err := os.UserHomeDir()
	if err != nil {
		return "config.toml"
	}
	return filepath.Join(home, ".config", "greenroom", "config.toml")
}

// LoadConfig reads the TOML config at path. A missing file is not an error;
// defaults apply.
func LoadConfig(path string) (Config, error) {
	cfg := defaultConfig()

	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			cfg.WalletKeyFile = defaultWalletKeyFile(path)
			return cfg, nil
		}
		return cfg, fmt.Errorf("read config %s: %w", path, err)
	}
	if err := toml.Unmarshal(data, &cfg); err != nil {
		return cfg, fmt.Errorf("parse config %s: %w", path, err)
	}

	if cfg.MaxMessages <= 0 {
		cfg.MaxMessages = 500
	}
	if cfg.HistoryLimit <= 0 {
		cfg.HistoryLimit = 200
	}
	if len(cfg.Relays) == 0 {
		cfg.Relays = defaultConfig().Relays
	}
	if cfg.WalletKeyFile == "" {
		cfg.WalletKeyFile = defaultWalletKeyFile(path)
	}
	return cfg, nil
}

// defaultWalletKeyFile keeps the wallet key next to the config file.
func defaultWalletKeyFile(cfgPath string) string {
	return filepath.Join(filepath.Dir(cfgPath), "wallet.key")
}
