package config

import (
	"errors"
	"fmt"
	"net/url"
	"strings"
)

// Validate checks the configuration for errors.
func (c *Config) Validate() error {
	var errs []error

	if err := c.Daemon.Validate(); err != nil {
		errs = append(errs, fmt.Errorf("daemon: %w", err))
	}
	if err := c.Remote.Validate(); err != nil {
		errs = append(errs, fmt.Errorf("remote: %w", err))
	}
	if err := c.Engine.Validate(); err != nil {
		errs = append(errs, fmt.Errorf("engine: %w", err))
	}
	if err := c.Log.Validate(); err != nil {
		errs = append(errs, fmt.Errorf("log: %w", err))
	}

	return errors.Join(errs...)
}

// Validate checks DaemonConfig for errors.
func (c *DaemonConfig) Validate() error {
	if c.PollIntervalMs < 0 {
		return errors.New("poll_interval_ms must be non-negative")
	}
	if c.LikeCooldownMs < 0 {
		return errors.New("like_cooldown_ms must be non-negative")
	}
	if c.SocketPath == "" {
		return errors.New("socket_path must not be empty")
	}
	return nil
}

// Validate checks RemoteConfig for errors.
func (c *RemoteConfig) Validate() error {
	if c.BaseURL != "" {
		u, err := url.Parse(c.BaseURL)
		if err != nil || u.Scheme == "" || u.Host == "" {
			return fmt.Errorf("invalid base_url: %s", c.BaseURL)
		}
	}
	if c.TimeoutMs < 0 {
		return errors.New("timeout_ms must be non-negative")
	}
	for _, seed := range c.Seeds {
		if strings.TrimSpace(seed) == "" {
			return errors.New("seeds must not contain blank entries")
		}
	}
	if !strings.Contains(c.Endpoints.SessionTracks, "%s") {
		return errors.New("endpoints.session_tracks must contain a %s session placeholder")
	}
	if !strings.Contains(c.Endpoints.DownloadInfo, "%s") {
		return errors.New("endpoints.download_info must contain a %s track placeholder")
	}
	return nil
}

// Validate checks EngineConfig for errors.
func (c *EngineConfig) Validate() error {
	if c.Binary == "" {
		return errors.New("binary must not be empty")
	}
	if c.PollIntervalMs < 0 {
		return errors.New("poll_interval_ms must be non-negative")
	}
	return nil
}

// Validate checks LogConfig for errors.
func (c *LogConfig) Validate() error {
	switch c.Level {
	case "", "debug", "info", "warn", "error":
		// valid
	default:
		return fmt.Errorf("invalid log level: %s (must be debug, info, warn, or error)", c.Level)
	}
	return nil
}
