package config

// Config is the root configuration structure.
type Config struct {
	Daemon DaemonConfig `toml:"daemon"`
	Remote RemoteConfig `toml:"remote"`
	Engine EngineConfig `toml:"engine"`
	Waybar WaybarConfig `toml:"waybar"`
	Log    LogConfig    `toml:"log"`
}

// DaemonConfig holds settings for the bridge daemon itself.
type DaemonConfig struct {
	PollIntervalMs int    `toml:"poll_interval_ms"`
	SocketPath     string `toml:"socket_path"`
	MPRISName      string `toml:"mpris_name"`
	Autoplay       bool   `toml:"autoplay"`
	LikeCooldownMs int    `toml:"like_cooldown_ms"`
}

// RemoteConfig holds remote streaming service settings.
type RemoteConfig struct {
	BaseURL        string          `toml:"base_url"`
	OAuthToken     string          `toml:"oauth_token"`
	DeviceID       string          `toml:"device_id"`
	Seeds          []string        `toml:"seeds"`
	UserAgent      string          `toml:"user_agent"`
	AcceptLanguage string          `toml:"accept_language"`
	MusicClient    string          `toml:"music_client"`
	ContentType    string          `toml:"content_type"`
	DeviceHeader   string          `toml:"device_header"`
	TimeoutMs      int             `toml:"timeout_ms"`
	Endpoints      EndpointsConfig `toml:"endpoints"`
}

// EndpointsConfig holds the remote API paths. Paths are configurable but
// their request/response semantics are fixed.
type EndpointsConfig struct {
	SessionNew    string `toml:"session_new"`
	SessionTracks string `toml:"session_tracks"`
	DownloadInfo  string `toml:"download_info"`
	LikesAdd      string `toml:"likes_add"`
	LikesRemove   string `toml:"likes_remove"`
	Plays         string `toml:"plays"`
	AccountAbout  string `toml:"account_about"`
}

// EngineConfig holds local playback engine settings.
type EngineConfig struct {
	Binary         string   `toml:"binary"`
	ExtraArgs      []string `toml:"extra_args"`
	PollIntervalMs int      `toml:"poll_interval_ms"`
}

// WaybarConfig holds settings for the one-shot status bar emitter.
type WaybarConfig struct {
	MaxLength int  `toml:"max_length"`
	Scroll    bool `toml:"scroll"`
}

// LogConfig holds logging settings.
type LogConfig struct {
	Level string `toml:"level"`
	File  string `toml:"file"`
}
