package schema

import (
	"errors"
	"time"
)

// DefaultRequestTimeout is how long a proxied request waits for its response.
const DefaultRequestTimeout = 6000 * time.Millisecond

// DefaultErrorThrottle bounds how often the "no running game" modal is shown.
const DefaultErrorThrottle = 20 * time.Second

// DefaultFetchTimeout bounds a single proxied HTTP call on the host.
const DefaultFetchTimeout = 5 * time.Second

// BridgeConfig defines timing for the host/rendering bridge.
type BridgeConfig struct {
	RequestTimeout time.Duration
	ErrorThrottle  time.Duration
	FetchTimeout   time.Duration
	// GameBaseURL is prefixed to relative request targets.
	GameBaseURL string
}

// NormalizeBridgeConfig applies defaults and validates the config.
func NormalizeBridgeConfig(cfg BridgeConfig) (BridgeConfig, error) {
	if cfg.RequestTimeout == 0 {
		cfg.RequestTimeout = DefaultRequestTimeout
	}
	if cfg.ErrorThrottle == 0 {
		cfg.ErrorThrottle = DefaultErrorThrottle
	}
	if cfg.FetchTimeout == 0 {
		cfg.FetchTimeout = DefaultFetchTimeout
	}
	if cfg.RequestTimeout < 0 || cfg.FetchTimeout < 0 {
		return BridgeConfig{}, errors.New("timeouts must be positive")
	}
	if cfg.ErrorThrottle < 0 {
		return BridgeConfig{}, errors.New("error throttle must not be negative")
	}
	return cfg, nil
}
