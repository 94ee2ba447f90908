package cli

import (
	"encoding/json"
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"wavebridge/internal/core"
	"wavebridge/internal/ctlsock"
)

var statusCmd = &cobra.Command{
	Use:   "status",
	Short: "Show current playback status",
	RunE:  runStatus,
}

func init() {
	rootCmd.AddCommand(statusCmd)
}

func runStatus(cmd *cobra.Command, args []string) error {
	resp, err := ctlsock.Action(cfg.Daemon.SocketPath, ctlsock.ActionStatus)
	if err != nil {
		return formatted(err)
	}
	if !resp.OK {
		return fmt.Errorf("daemon: %s", resp.Error)
	}

	if JSONOutput() {
		return json.NewEncoder(os.Stdout).Encode(resp.State)
	}
	printStatus(resp.State)
	return nil
}

func printStatus(st *core.PlayerState) {
	if st == nil || !st.HasTrack() {
		fmt.Println("No track playing")
		if st != nil && st.Degraded() {
			fmt.Println(errorStyle.Render("⚠ " + st.Err))
		}
		return
	}

	icon := "▶"
	switch st.Status {
	case core.StatusPaused:
		icon = "⏸"
	case core.StatusStopped, core.StatusIdle:
		icon = "⏹"
	}

	liked := ""
	if st.Liked {
		liked = " " + likedStyle.Render("♥")
	}

	fmt.Printf("%s %s%s\n", icon, titleStyle.Render(st.Track.Title), liked)
	fmt.Printf("  %s — %s\n", st.Track.Artist(), st.Track.Album)
	fmt.Printf("  %s %s / %s\n",
		FormatProgress(st.PositionMs, st.DurationMs, 30),
		FormatDurationMs(st.PositionMs),
		FormatDurationMs(st.DurationMs))

	if st.Degraded() {
		fmt.Println(errorStyle.Render("  ⚠ " + st.Err))
	}
	if Verbose() {
		fmt.Println(dimStyle.Render(fmt.Sprintf("  track %s  revision %d  volume %.0f%%",
			st.Track.ID, st.Revision, st.Volume*100)))
	}
}
