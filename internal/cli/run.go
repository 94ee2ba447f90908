package cli

import (
	"context"
	"fmt"
	"io"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/charmbracelet/log"
	"github.com/spf13/cobra"

	"wavebridge/internal/config"
	"wavebridge/internal/controller"
	"wavebridge/internal/core"
	"wavebridge/internal/ctlsock"
	"wavebridge/internal/engine"
	"wavebridge/internal/mpris"
	"wavebridge/internal/rotor"
)

const controllerDrainTimeout = 5 * time.Second

var runCmd = &cobra.Command{
	Use:   "run",
	Short: "Run the bridge daemon",
	Long: `Starts the daemon: opens a radio session, plays it through mpv, exports
MPRIS media controls and serves the control socket until interrupted.`,
	RunE: runDaemon,
}

func init() {
	rootCmd.AddCommand(runCmd)
}

func runDaemon(cmd *cobra.Command, args []string) error {
	logger, cleanup, err := newLogger(cfg.Log)
	if err != nil {
		return err
	}
	defer cleanup()

	store := core.NewStore()
	remote := rotor.New(cfg.Remote, logger)
	eng := engine.New(cfg.Engine, logger)
	ctrl := controller.New(cfg.Daemon, remote, eng, store, logger)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	ctrlDone := make(chan error, 1)
	go func() {
		ctrlDone <- ctrl.Run(ctx)
	}()

	srv := ctlsock.NewServer(cfg.Daemon.SocketPath, ctrl, logger)
	if err := srv.Start(); err != nil {
		return err
	}

	// A missing session bus only costs the media keys, not the daemon.
	exporter := mpris.NewExporter(cfg.Daemon.MPRISName, ctrl, store, logger)
	if err := exporter.Start(); err != nil {
		logger.Warn("media controls unavailable", "err", err)
		exporter = nil
	}

	logger.Info("wavebridge running", "socket", cfg.Daemon.SocketPath)
	<-ctx.Done()
	logger.Info("shutting down")

	// Shutdown order: stop taking requests, let the controller drain
	// (in-flight feedback included), kill the engine, release the bus
	// name. Each step is bounded on its own.
	_ = srv.Close()
	select {
	case <-ctrlDone:
	case <-time.After(controllerDrainTimeout):
		logger.Warn("controller did not drain in time")
	}
	_ = eng.Close()
	if exporter != nil {
		_ = exporter.Close()
	}
	return nil
}

func newLogger(logCfg config.LogConfig) (*log.Logger, func(), error) {
	var out io.Writer = os.Stderr
	cleanup := func() {}

	if logCfg.File != "" {
		f, err := os.OpenFile(logCfg.File, os.O_CREATE|os.O_APPEND|os.O_WRONLY, 0o644)
		if err != nil {
			return nil, nil, fmt.Errorf("open log file: %w", err)
		}
		out = f
		cleanup = func() { _ = f.Close() }
	}

	level, err := log.ParseLevel(logCfg.Level)
	if err != nil {
		level = log.InfoLevel
	}
	if Verbose() {
		level = log.DebugLevel
	}

	logger := log.NewWithOptions(out, log.Options{
		ReportTimestamp: true,
		Level:           level,
	})
	return logger, cleanup, nil
}
