package appconfig

import (
	"os"
	"path/filepath"
	"time"

	"pkt.systems/hamsterbridge/internal/heartbeat"
	"pkt.systems/hamsterbridge/schema"
)

// Config is the top-level application configuration.
type Config struct {
	ConfigVersion int           `mapstructure:"config_version" yaml:"config_version"`
	HTTP          HTTPConfig    `mapstructure:"http" yaml:"http"`
	Bridge        BridgeConfig  `mapstructure:"bridge" yaml:"bridge"`
	Game          GameConfig    `mapstructure:"game" yaml:"game"`
	Journal       JournalConfig `mapstructure:"journal" yaml:"journal"`
}

// CurrentConfigVersion marks the supported config version.
const CurrentConfigVersion = 1

// EnvPrefix prefixes environment overrides, e.g. HAMSTERBRIDGE_HTTP_ADDR.
const EnvPrefix = "HAMSTERBRIDGE"

// HTTPConfig configures the host HTTP server.
type HTTPConfig struct {
	Addr          string `mapstructure:"addr" yaml:"addr"`
	BasePath      string `mapstructure:"base_path" yaml:"base_path"`
	StreamHistory int    `mapstructure:"stream_history" yaml:"stream_history"`
}

// BridgeConfig controls correlation timing.
type BridgeConfig struct {
	RequestTimeoutMS     int `mapstructure:"request_timeout_ms" yaml:"request_timeout_ms"`
	ErrorThrottleSeconds int `mapstructure:"error_throttle_seconds" yaml:"error_throttle_seconds"`
	FetchTimeoutMS       int `mapstructure:"fetch_timeout_ms" yaml:"fetch_timeout_ms"`
}

// GameConfig points at the hamster game server.
type GameConfig struct {
	BaseURL        string `mapstructure:"base_url" yaml:"base_url"`
	PollIntervalMS int    `mapstructure:"poll_interval_ms" yaml:"poll_interval_ms"`
	PollTimeoutMS  int    `mapstructure:"poll_timeout_ms" yaml:"poll_timeout_ms"`
}

// JournalConfig controls the message journal.
type JournalConfig struct {
	Enabled bool   `mapstructure:"enabled" yaml:"enabled"`
	Path    string `mapstructure:"path" yaml:"path"`
}

// DefaultConfig returns a config with sensible defaults.
func DefaultConfig() (Config, error) {
	home, err := os.UserHomeDir()
	if err != nil {
		return Config{}, err
	}
	return Config{
		ConfigVersion: CurrentConfigVersion,
		HTTP: HTTPConfig{
			Addr:          "127.0.0.1:8091",
			BasePath:      "",
			StreamHistory: 512,
		},
		Bridge: BridgeConfig{
			RequestTimeoutMS:     int(schema.DefaultRequestTimeout / time.Millisecond),
			ErrorThrottleSeconds: int(schema.DefaultErrorThrottle / time.Second),
			FetchTimeoutMS:       int(schema.DefaultFetchTimeout / time.Millisecond),
		},
		Game: GameConfig{
			BaseURL:        "http://localhost:8080",
			PollIntervalMS: int(heartbeat.DefaultInterval / time.Millisecond),
			PollTimeoutMS:  int(heartbeat.DefaultTimeout / time.Millisecond),
		},
		Journal: JournalConfig{
			Enabled: false,
			Path:    filepath.Join(home, ".hamsterbridge", "journal.db"),
		},
	}, nil
}

// DefaultConfigPath returns the standard config path.
func DefaultConfigPath() (string, error) {
	home, err := os.UserHomeDir()
	if err != nil {
		return "", err
	}
	return filepath.Join(home, ".hamsterbridge", "config.yaml"), nil
}

// BridgeSettings converts the bridge and game sections into core settings.
func (c Config) BridgeSettings() schema.BridgeConfig {
	return schema.BridgeConfig{
		RequestTimeout: time.Duration(c.Bridge.RequestTimeoutMS) * time.Millisecond,
		ErrorThrottle:  time.Duration(c.Bridge.ErrorThrottleSeconds) * time.Second,
		FetchTimeout:   time.Duration(c.Bridge.FetchTimeoutMS) * time.Millisecond,
		GameBaseURL:    c.Game.BaseURL,
	}
}

// PollInterval returns the heartbeat period.
func (c Config) PollInterval() time.Duration {
	return time.Duration(c.Game.PollIntervalMS) * time.Millisecond
}

// PollTimeout returns the heartbeat probe timeout.
func (c Config) PollTimeout() time.Duration {
	return time.Duration(c.Game.PollTimeoutMS) * time.Millisecond
}
