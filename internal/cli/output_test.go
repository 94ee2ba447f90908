package cli

import (
	"strings"
	"testing"

	"wavebridge/internal/config"
	"wavebridge/internal/core"
)

func TestFormatDurationMs(t *testing.T) {
	cases := []struct {
		ms   int64
		want string
	}{
		{0, "0:00"},
		{1000, "0:01"},
		{187000, "3:07"},
		{3723000, "1:02:03"},
		{-5, "0:00"},
	}
	for _, tc := range cases {
		if got := FormatDurationMs(tc.ms); got != tc.want {
			t.Errorf("FormatDurationMs(%d) = %q, want %q", tc.ms, got, tc.want)
		}
	}
}

func TestTruncateString(t *testing.T) {
	if got := TruncateString("short", 10); got != "short" {
		t.Errorf("TruncateString(short) = %q", got)
	}
	got := TruncateString("a very long track title", 10)
	if len([]rune(got)) != 10 || !strings.HasSuffix(got, "…") {
		t.Errorf("TruncateString = %q", got)
	}
}

func TestWaybarStatus(t *testing.T) {
	st := &core.PlayerState{
		Status:     core.StatusPlaying,
		PositionMs: 30000,
		DurationMs: 180000,
		Liked:      true,
		Track: &core.Track{
			ID:         "1",
			Title:      "Song",
			Artists:    []string{"Artist"},
			Album:      "Album",
			DurationMs: 180000,
		},
	}

	out := waybarStatus(st, config.WaybarConfig{MaxLength: 60})
	if out.Class != "playing" {
		t.Errorf("class = %q", out.Class)
	}
	if !strings.Contains(out.Text, "Song — Artist") {
		t.Errorf("text = %q", out.Text)
	}
	if !strings.Contains(out.Tooltip, "0:30 / 3:00") {
		t.Errorf("tooltip = %q", out.Tooltip)
	}

	if out := waybarStatus(nil, config.WaybarConfig{MaxLength: 60}); out.Class != "idle" {
		t.Errorf("nil state class = %q", out.Class)
	}

	st.Status = core.StatusPaused
	if out := waybarStatus(st, config.WaybarConfig{MaxLength: 60}); out.Class != "paused" {
		t.Errorf("paused class = %q", out.Class)
	}
}

func TestScrollWindow(t *testing.T) {
	line := "abcdef" // rotates over "abcdef   " (9 runes)
	cases := []struct {
		offset int
		want   string
	}{
		{0, "abcd"},
		{4, "ef  "},
		{8, " abc"},
		{9, "abcd"},
	}
	for _, tc := range cases {
		if got := scrollWindow(line, 4, tc.offset); got != tc.want {
			t.Errorf("scrollWindow(offset=%d) = %q, want %q", tc.offset, got, tc.want)
		}
	}
}
