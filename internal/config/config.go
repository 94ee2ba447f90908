package config

import (
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/BurntSushi/toml"
	"github.com/google/uuid"
)

// Load reads configuration from standard locations with environment overrides.
// Search order: $XDG_CONFIG_HOME/wavebridge/config.toml, ~/.config/wavebridge/config.toml
func Load() (*Config, error) {
	cfg := &Config{}

	path := findConfigFile()
	if path != "" {
		if _, err := toml.DecodeFile(path, cfg); err != nil {
			return nil, err
		}
	}

	cfg.ApplyDefaults()
	applyEnvOverrides(cfg)
	applyDeviceDefaults(cfg)

	return cfg, nil
}

// LoadFrom reads configuration from a specific file path.
func LoadFrom(path string) (*Config, error) {
	cfg := &Config{}
	if _, err := toml.DecodeFile(path, cfg); err != nil {
		return nil, err
	}
	cfg.ApplyDefaults()
	applyEnvOverrides(cfg)
	applyDeviceDefaults(cfg)
	return cfg, nil
}

// findConfigFile returns the first existing config file path.
func findConfigFile() string {
	xdgConfig := os.Getenv("XDG_CONFIG_HOME")
	if xdgConfig == "" {
		home, err := os.UserHomeDir()
		if err != nil {
			return ""
		}
		xdgConfig = filepath.Join(home, ".config")
	}

	p := filepath.Join(xdgConfig, "wavebridge", "config.toml")
	if _, err := os.Stat(p); err == nil {
		return p
	}
	return ""
}

// applyEnvOverrides applies environment variable overrides to the config.
func applyEnvOverrides(cfg *Config) {
	if v := os.Getenv("WAVEBRIDGE_OAUTH_TOKEN"); v != "" {
		cfg.Remote.OAuthToken = v
	}
	if v := os.Getenv("WAVEBRIDGE_DEVICE_ID"); v != "" {
		cfg.Remote.DeviceID = v
	}
	if v := os.Getenv("WAVEBRIDGE_BASE_URL"); v != "" {
		cfg.Remote.BaseURL = v
	}
	if v := os.Getenv("WAVEBRIDGE_SOCKET_PATH"); v != "" {
		cfg.Daemon.SocketPath = v
	}
	if v := os.Getenv("WAVEBRIDGE_POLL_INTERVAL_MS"); v != "" {
		if i, err := strconv.Atoi(v); err == nil {
			cfg.Daemon.PollIntervalMs = i
		}
	}
	if v := os.Getenv("WAVEBRIDGE_LOG_LEVEL"); v != "" {
		cfg.Log.Level = v
	}
	if v := os.Getenv("WAVEBRIDGE_LOG_FILE"); v != "" {
		cfg.Log.File = v
	}
}

// applyDeviceDefaults derives a stable device identity when none is
// configured. The ID is pinned to the host's machine-id so the remote
// service sees one device across restarts.
func applyDeviceDefaults(cfg *Config) {
	if cfg.Remote.DeviceID == "" {
		cfg.Remote.DeviceID = defaultDeviceID()
	}
	if cfg.Remote.DeviceHeader == "" {
		cfg.Remote.DeviceHeader = defaultDeviceHeader(cfg.Remote.DeviceID)
	}
}

func defaultDeviceID() string {
	if raw, err := os.ReadFile("/etc/machine-id"); err == nil {
		machineID := strings.TrimSpace(string(raw))
		if machineID != "" {
			return uuid.NewSHA1(uuid.NameSpaceDNS, []byte("wavebridge:"+machineID)).String()
		}
	}
	return uuid.NewString()
}

func defaultDeviceHeader(deviceID string) string {
	compact := strings.ReplaceAll(deviceID, "-", "")
	return "os=Linux; os_version=unknown; manufacturer=Custom; model=wavebridge; " +
		"clid=desktop; uuid=" + compact + "; display_size=0; dpi=96; " +
		"mcc=000; mnc=00; device_id=" + compact
}
