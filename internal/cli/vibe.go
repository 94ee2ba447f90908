package cli

import (
	"encoding/json"
	"fmt"
	"os"
	"strings"

	"github.com/charmbracelet/huh"
	"github.com/spf13/cobra"

	"wavebridge/internal/ctlsock"
)

var vibeCmd = &cobra.Command{
	Use:   "vibe",
	Short: "Show or change the wave the daemon is playing",
	RunE:  runVibeShow,
}

var vibeSetCmd = &cobra.Command{
	Use:   "set [seed...]",
	Short: "Reopen the session with new seeds",
	Long: `Sets the wave seeds, e.g. 'user:onyourwave' or 'genre:jazz'. Without
arguments an interactive picker is shown.`,
	RunE: runVibeSet,
}

func init() {
	vibeCmd.AddCommand(vibeSetCmd)
	rootCmd.AddCommand(vibeCmd)
}

func runVibeShow(cmd *cobra.Command, args []string) error {
	resp, err := ctlsock.Action(cfg.Daemon.SocketPath, ctlsock.ActionGetVibe)
	if err != nil {
		return formatted(err)
	}
	if !resp.OK {
		return fmt.Errorf("daemon: %s", resp.Error)
	}

	if JSONOutput() {
		return json.NewEncoder(os.Stdout).Encode(map[string]any{"seeds": resp.Seeds})
	}
	fmt.Printf("Vibe: %s\n", strings.Join(resp.Seeds, ", "))
	return nil
}

func runVibeSet(cmd *cobra.Command, args []string) error {
	seeds := args
	if len(seeds) == 0 {
		var err error
		seeds, err = pickSeeds()
		if err != nil {
			return err
		}
	}
	if len(seeds) == 0 {
		return fmt.Errorf("no seeds selected")
	}

	resp, err := ctlsock.Do(cfg.Daemon.SocketPath, ctlsock.Request{
		Action: ctlsock.ActionSetVibe,
		Seeds:  seeds,
	})
	if err != nil {
		return formatted(err)
	}
	if !resp.OK {
		return fmt.Errorf("daemon: %s", resp.Error)
	}

	fmt.Printf("Vibe set to %s\n", strings.Join(seeds, ", "))
	printNowPlayingLine(resp.State)
	return nil
}

func pickSeeds() ([]string, error) {
	var seeds []string
	var custom string

	form := huh.NewForm(
		huh.NewGroup(
			huh.NewMultiSelect[string]().
				Title("Pick your vibe").
				Options(
					huh.NewOption("On your wave", "user:onyourwave"),
					huh.NewOption("Discoveries", "personal:recent-tracks"),
					huh.NewOption("Favorites", "personal:collection"),
					huh.NewOption("Jazz", "genre:jazz"),
					huh.NewOption("Rock", "genre:rock"),
					huh.NewOption("Electronic", "genre:electronics"),
					huh.NewOption("Classical", "genre:classical"),
					huh.NewOption("Hip-hop", "genre:rap"),
				).
				Value(&seeds),
			huh.NewInput().
				Title("Extra seeds (comma-separated, optional)").
				Placeholder("mood:calm, activity:work").
				Value(&custom),
		),
	)
	if err := form.Run(); err != nil {
		return nil, err
	}

	for _, seed := range strings.Split(custom, ",") {
		if seed = strings.TrimSpace(seed); seed != "" {
			seeds = append(seeds, seed)
		}
	}
	return seeds, nil
}
