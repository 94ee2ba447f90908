package cli

import (
	"context"
	"fmt"
	"io"
	"os"
	"os/exec"
	"time"

	"github.com/charmbracelet/log"
	"github.com/dustin/go-humanize"
	"github.com/godbus/dbus/v5"
	"github.com/spf13/cobra"

	"wavebridge/internal/ctlsock"
	"wavebridge/internal/rotor"
)

var doctorCmd = &cobra.Command{
	Use:   "doctor",
	Short: "Diagnose the local setup",
	Long:  `Checks the configuration, the playback engine, the desktop bus, the daemon socket and the remote credential.`,
	RunE:  runDoctor,
}

func init() {
	rootCmd.AddCommand(doctorCmd)
}

func runDoctor(cmd *cobra.Command, args []string) error {
	failures := 0
	check := func(name string, err error, hint string) {
		if err == nil {
			fmt.Printf("  ✓ %s\n", name)
			return
		}
		failures++
		fmt.Printf("  %s %s: %v\n", errorStyle.Render("✗"), name, err)
		if hint != "" {
			fmt.Println(dimStyle.Render("      " + hint))
		}
	}

	fmt.Println("Checking wavebridge setup...")

	check("configuration", cfg.Validate(), "edit ~/.config/wavebridge/config.toml")

	var tokenErr error
	if cfg.Remote.OAuthToken == "" {
		tokenErr = fmt.Errorf("no OAuth token configured")
	}
	check("credential", tokenErr, "set WAVEBRIDGE_OAUTH_TOKEN or [remote] oauth_token")

	_, engineErr := exec.LookPath(cfg.Engine.Binary)
	check("playback engine ("+cfg.Engine.Binary+")", engineErr, "install mpv")

	busErr := checkSessionBus()
	check("desktop bus", busErr, "media keys need a D-Bus session; socket control still works")

	_, sockErr := ctlsock.Action(cfg.Daemon.SocketPath, ctlsock.ActionStatus)
	check("daemon", sockErr, "start it with 'wavebridge run'")

	if cfg.Remote.OAuthToken != "" {
		ctx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
		defer cancel()
		_, remoteErr := rotor.New(cfg.Remote, log.New(io.Discard)).AccountAbout(ctx)
		check("remote service", remoteErr, "")
	}

	if cfg.Log.File != "" {
		if info, err := os.Stat(cfg.Log.File); err == nil {
			fmt.Printf("  · log file %s (%s)\n", cfg.Log.File, humanize.Bytes(uint64(info.Size())))
		}
	}

	if failures > 0 {
		return fmt.Errorf("%d check(s) failed", failures)
	}
	fmt.Println("All good.")
	return nil
}

func checkSessionBus() error {
	conn, err := dbus.ConnectSessionBus()
	if err != nil {
		return err
	}
	return conn.Close()
}
