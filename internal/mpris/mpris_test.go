package mpris

import (
	"testing"

	"github.com/godbus/dbus/v5"

	"wavebridge/internal/core"
)

func TestMicrosecondMapping(t *testing.T) {
	cases := []struct {
		ms   int64
		want int64
	}{
		{0, 0},
		{1, 1000},
		{30000, 30000000},
		{215000, 215000000},
	}
	for _, tc := range cases {
		if got := microseconds(tc.ms); got != tc.want {
			t.Errorf("microseconds(%d) = %d, want %d", tc.ms, got, tc.want)
		}
	}
}

func TestPlaybackStatusMapping(t *testing.T) {
	cases := map[core.Status]string{
		core.StatusPlaying: "Playing",
		core.StatusPaused:  "Paused",
		core.StatusStopped: "Stopped",
		core.StatusIdle:    "Stopped",
	}
	for status, want := range cases {
		if got := playbackStatus(status); got != want {
			t.Errorf("playbackStatus(%s) = %s, want %s", status, got, want)
		}
	}
}

func TestMetadataMapping(t *testing.T) {
	track := &core.Track{
		ID:         "123:456",
		Title:      "Song",
		Artists:    []string{"A", "B"},
		Album:      "Album",
		DurationMs: 187000,
		ArtURL:     "https://img.example/400x400",
	}

	meta := metadataFor("wavebridge", track)

	if got := meta["mpris:length"].Value().(int64); got != 187000000 {
		t.Errorf("length = %d, want 187000000", got)
	}
	if got := meta["xesam:title"].Value().(string); got != "Song" {
		t.Errorf("title = %q", got)
	}
	artists := meta["xesam:artist"].Value().([]string)
	if len(artists) != 2 || artists[0] != "A" {
		t.Errorf("artists = %v", artists)
	}
	if got := meta["xesam:album"].Value().(string); got != "Album" {
		t.Errorf("album = %q", got)
	}
	if got := meta["mpris:artUrl"].Value().(string); got != track.ArtURL {
		t.Errorf("artUrl = %q", got)
	}

	path := meta["mpris:trackid"].Value().(dbus.ObjectPath)
	if !path.IsValid() {
		t.Errorf("trackid %q is not a valid object path", path)
	}
}

func TestMetadataForNoTrack(t *testing.T) {
	meta := metadataFor("wavebridge", nil)
	if _, ok := meta["xesam:title"]; ok {
		t.Error("no-track metadata must not carry a title")
	}
	if _, ok := meta["mpris:trackid"]; !ok {
		t.Error("no-track metadata must still carry a trackid")
	}
}
