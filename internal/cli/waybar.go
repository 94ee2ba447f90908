package cli

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"

	"github.com/spf13/cobra"

	"wavebridge/internal/config"
	"wavebridge/internal/core"
	"wavebridge/internal/ctlsock"
)

// waybarOutput is the JSON shape waybar's custom module consumes.
type waybarOutput struct {
	Text    string `json:"text"`
	Tooltip string `json:"tooltip,omitempty"`
	Class   string `json:"class"`
}

var waybarCmd = &cobra.Command{
	Use:   "waybar",
	Short: "Emit one status line in waybar's custom-module format",
	RunE:  runWaybar,
}

func init() {
	rootCmd.AddCommand(waybarCmd)
}

func runWaybar(cmd *cobra.Command, args []string) error {
	out := json.NewEncoder(os.Stdout)

	resp, err := ctlsock.Action(cfg.Daemon.SocketPath, ctlsock.ActionStatus)
	if err != nil {
		// The bar keeps polling; an unreachable daemon is a state, not
		// an error exit.
		return out.Encode(waybarOutput{Text: "", Class: "offline"})
	}
	return out.Encode(waybarStatus(resp.State, cfg.Waybar))
}

func waybarStatus(st *core.PlayerState, wb config.WaybarConfig) waybarOutput {
	if st == nil || !st.HasTrack() {
		return waybarOutput{Text: "", Class: "idle"}
	}

	icon := ""
	class := "playing"
	switch st.Status {
	case core.StatusPaused:
		icon = ""
		class = "paused"
	case core.StatusStopped, core.StatusIdle:
		icon = ""
		class = "stopped"
	}
	if st.Liked {
		icon += " "
	}

	line := fmt.Sprintf("%s — %s", st.Track.Title, st.Track.Artist())
	switch {
	case wb.MaxLength > 0 && wb.Scroll && len([]rune(line)) > wb.MaxLength:
		line = scrollWindow(line, wb.MaxLength, nextScrollOffset(st.Track.ID))
	case wb.MaxLength > 0:
		line = TruncateString(line, wb.MaxLength)
	}

	return waybarOutput{
		Text:  fmt.Sprintf("%s %s", icon, line),
		Class: class,
		Tooltip: fmt.Sprintf("%s\n%s — %s\n%s / %s",
			st.Track.Title, st.Track.Artist(), st.Track.Album,
			FormatDurationMs(st.PositionMs), FormatDurationMs(st.DurationMs)),
	}
}

// scrollWindow returns a maxLen-wide window of line rotated by offset,
// with a short gap appended so the wrap-around point is visible.
func scrollWindow(line string, maxLen, offset int) string {
	runes := append([]rune(line), []rune("   ")...)
	window := make([]rune, maxLen)
	for i := range window {
		window[i] = runes[(offset+i)%len(runes)]
	}
	return string(window)
}

type scrollState struct {
	Key    string `json:"key"`
	Offset int    `json:"offset"`
}

// nextScrollOffset advances the marquee position kept between waybar
// invocations. The offset restarts whenever the track changes.
func nextScrollOffset(key string) int {
	stateFile := filepath.Join(os.TempDir(), "wavebridge-waybar.json")

	var st scrollState
	if data, err := os.ReadFile(stateFile); err == nil {
		_ = json.Unmarshal(data, &st)
	}
	if st.Key != key {
		st = scrollState{Key: key}
	}

	offset := st.Offset
	st.Offset++
	if data, err := json.Marshal(st); err == nil {
		_ = os.WriteFile(stateFile, data, 0o600)
	}
	return offset
}
