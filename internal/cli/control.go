package cli

import (
	"encoding/json"
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"wavebridge/internal/core"
	"wavebridge/internal/ctlsock"
	apperrors "wavebridge/internal/errors"
)

var playCmd = &cobra.Command{
	Use:   "play",
	Short: "Start or resume playback",
	RunE: func(cmd *cobra.Command, args []string) error {
		return socketAction(ctlsock.ActionPlay)
	},
}

var pauseCmd = &cobra.Command{
	Use:   "pause",
	Short: "Pause playback",
	RunE: func(cmd *cobra.Command, args []string) error {
		return socketAction(ctlsock.ActionPause)
	},
}

var toggleCmd = &cobra.Command{
	Use:     "toggle",
	Aliases: []string{"play-pause"},
	Short:   "Toggle between playing and paused",
	RunE: func(cmd *cobra.Command, args []string) error {
		return socketAction(ctlsock.ActionPlayPause)
	},
}

var nextCmd = &cobra.Command{
	Use:   "next",
	Short: "Skip to the next track",
	RunE: func(cmd *cobra.Command, args []string) error {
		return socketAction(ctlsock.ActionNext)
	},
}

var prevCmd = &cobra.Command{
	Use:     "prev",
	Aliases: []string{"previous"},
	Short:   "Go back to the previous track",
	RunE: func(cmd *cobra.Command, args []string) error {
		return socketAction(ctlsock.ActionPrevious)
	},
}

var likeCmd = &cobra.Command{
	Use:   "like",
	Short: "Like the current track",
	RunE: func(cmd *cobra.Command, args []string) error {
		return socketAction(ctlsock.ActionLike)
	},
}

var dislikeCmd = &cobra.Command{
	Use:   "dislike",
	Short: "Remove the like from the current track",
	RunE: func(cmd *cobra.Command, args []string) error {
		return socketAction(ctlsock.ActionDislike)
	},
}

var ctlCmd = &cobra.Command{
	Use:   "ctl <action>",
	Short: "Send a raw action to the daemon's control socket",
	Long: `Sends a raw control action and prints the JSON response. Useful for
scripting against the same protocol the other commands use.`,
	Args: cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		resp, err := ctlsock.Action(cfg.Daemon.SocketPath, args[0])
		if err != nil {
			return formatted(err)
		}
		return json.NewEncoder(os.Stdout).Encode(resp)
	},
}

func init() {
	rootCmd.AddCommand(playCmd, pauseCmd, toggleCmd, nextCmd, prevCmd, likeCmd, dislikeCmd, ctlCmd)
}

func socketAction(action string) error {
	resp, err := ctlsock.Action(cfg.Daemon.SocketPath, action)
	if err != nil {
		return formatted(err)
	}
	if !resp.OK {
		return fmt.Errorf("daemon: %s", resp.Error)
	}

	if JSONOutput() {
		return json.NewEncoder(os.Stdout).Encode(resp.State)
	}
	printNowPlayingLine(resp.State)
	return nil
}

func printNowPlayingLine(st *core.PlayerState) {
	if st == nil || !st.HasTrack() {
		fmt.Println("Nothing playing")
		return
	}

	icon := "▶"
	if st.Status != core.StatusPlaying {
		icon = "⏸"
	}
	liked := ""
	if st.Liked {
		liked = " " + likedStyle.Render("♥")
	}
	fmt.Printf("%s %s — %s%s\n", icon, titleStyle.Render(st.Track.Title), st.Track.Artist(), liked)
}

// formatted attaches the suggestion text, if any, to an error on its way
// to the terminal.
func formatted(err error) error {
	if suggestion := apperrors.GetSuggestion(err); suggestion != "" {
		return fmt.Errorf("%w\n\nSuggestion: %s", err, suggestion)
	}
	return err
}
