package config

// Default returns a Config populated with sensible defaults.
func Default() *Config {
	return &Config{
		Daemon: DaemonConfig{
			PollIntervalMs: 2000,
			SocketPath:     "/tmp/wavebridge.sock",
			MPRISName:      "wavebridge",
			LikeCooldownMs: 3000,
		},
		Remote: RemoteConfig{
			BaseURL:        "https://api.music.yandex.net",
			Seeds:          []string{"user:onyourwave", "settingDiversity:discover"},
			UserAgent:      "wavebridge/0.1",
			AcceptLanguage: "en",
			MusicClient:    "YandexMusicAndroid/24026072",
			ContentType:    "adult",
			TimeoutMs:      20000,
			Endpoints: EndpointsConfig{
				SessionNew:    "/rotor/session/new",
				SessionTracks: "/rotor/session/%s/tracks",
				DownloadInfo:  "/tracks/%s/download-info",
				LikesAdd:      "/users/%d/likes/tracks/actions/add",
				LikesRemove:   "/users/%d/likes/tracks/actions/remove",
				Plays:         "/plays",
				AccountAbout:  "/account/about",
			},
		},
		Engine: EngineConfig{
			Binary:         "mpv",
			PollIntervalMs: 500,
		},
		Waybar: WaybarConfig{
			MaxLength: 40,
			Scroll:    true,
		},
		Log: LogConfig{
			Level: "info",
		},
	}
}

// ApplyDefaults fills in zero values with sensible defaults.
func (c *Config) ApplyDefaults() {
	d := Default()

	if c.Daemon.PollIntervalMs == 0 {
		c.Daemon.PollIntervalMs = d.Daemon.PollIntervalMs
	}
	if c.Daemon.SocketPath == "" {
		c.Daemon.SocketPath = d.Daemon.SocketPath
	}
	if c.Daemon.MPRISName == "" {
		c.Daemon.MPRISName = d.Daemon.MPRISName
	}
	if c.Daemon.LikeCooldownMs == 0 {
		c.Daemon.LikeCooldownMs = d.Daemon.LikeCooldownMs
	}

	if c.Remote.BaseURL == "" {
		c.Remote.BaseURL = d.Remote.BaseURL
	}
	if len(c.Remote.Seeds) == 0 {
		c.Remote.Seeds = d.Remote.Seeds
	}
	if c.Remote.UserAgent == "" {
		c.Remote.UserAgent = d.Remote.UserAgent
	}
	if c.Remote.AcceptLanguage == "" {
		c.Remote.AcceptLanguage = d.Remote.AcceptLanguage
	}
	if c.Remote.MusicClient == "" {
		c.Remote.MusicClient = d.Remote.MusicClient
	}
	if c.Remote.ContentType == "" {
		c.Remote.ContentType = d.Remote.ContentType
	}
	if c.Remote.TimeoutMs == 0 {
		c.Remote.TimeoutMs = d.Remote.TimeoutMs
	}

	e := &c.Remote.Endpoints
	de := d.Remote.Endpoints
	if e.SessionNew == "" {
		e.SessionNew = de.SessionNew
	}
	if e.SessionTracks == "" {
		e.SessionTracks = de.SessionTracks
	}
	if e.DownloadInfo == "" {
		e.DownloadInfo = de.DownloadInfo
	}
	if e.LikesAdd == "" {
		e.LikesAdd = de.LikesAdd
	}
	if e.LikesRemove == "" {
		e.LikesRemove = de.LikesRemove
	}
	if e.Plays == "" {
		e.Plays = de.Plays
	}
	if e.AccountAbout == "" {
		e.AccountAbout = de.AccountAbout
	}

	if c.Engine.Binary == "" {
		c.Engine.Binary = d.Engine.Binary
	}
	if c.Engine.PollIntervalMs == 0 {
		c.Engine.PollIntervalMs = d.Engine.PollIntervalMs
	}

	if c.Waybar.MaxLength == 0 {
		c.Waybar.MaxLength = d.Waybar.MaxLength
	}

	if c.Log.Level == "" {
		c.Log.Level = d.Log.Level
	}
}
