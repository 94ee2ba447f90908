// Package engine drives an out-of-process mpv instance over its JSON-IPC
// socket and surfaces its transport state as a stream of ticks. The
// process is supervised: a crash produces a distinguished unavailable
// tick, then the engine is relaunched and the last load re-issued at the
// last observed position.
package engine

import (
	"context"
	"fmt"
	"os"
	"os/exec"
	"path/filepath"
	"sync"
	"sync/atomic"
	"time"

	"github.com/charmbracelet/log"
	"github.com/google/uuid"

	"wavebridge/internal/config"
	"wavebridge/internal/core"
	apperrors "wavebridge/internal/errors"
)

const (
	tickBuffer      = 16
	relaunchWait    = time.Second
	maxRelaunchWait = 30 * time.Second
)

type loadRequest struct {
	url     string
	startMs int64
	paused  bool
}

// MPV is the bridge to a local mpv process.
type MPV struct {
	binary       string
	extraArgs    []string
	pollInterval time.Duration
	socketPath   string
	log          *log.Logger

	ticks chan core.EngineTick
	eof   atomic.Bool

	mu          sync.Mutex
	conn        *ipcConn
	proc        *exec.Cmd
	lastLoad    *loadRequest
	closing     bool
	relaunching bool
	polling     bool

	done chan struct{}
	wg   sync.WaitGroup
}

// New creates an engine bridge. The process is launched lazily on the
// first Load.
func New(cfg config.EngineConfig, logger *log.Logger) *MPV {
	return &MPV{
		binary:       cfg.Binary,
		extraArgs:    append([]string(nil), cfg.ExtraArgs...),
		pollInterval: time.Duration(cfg.PollIntervalMs) * time.Millisecond,
		socketPath:   filepath.Join(os.TempDir(), fmt.Sprintf("wavebridge-mpv-%s.sock", uuid.NewString()[:8])),
		log:          logger.With("component", "engine"),
		ticks:        make(chan core.EngineTick, tickBuffer),
		done:         make(chan struct{}),
	}
}

// Ticks returns the transport tick stream. The stream survives engine
// crashes; a crash is reported as a tick with Unavailable set.
func (m *MPV) Ticks() <-chan core.EngineTick {
	return m.ticks
}

// Load instructs the engine to play the given stream, superseding any
// currently loaded one.
func (m *MPV) Load(ctx context.Context, url string, startMs int64, paused bool) error {
	conn, err := m.ensureRunning()
	if err != nil {
		return err
	}

	m.mu.Lock()
	m.lastLoad = &loadRequest{url: url, startMs: startMs, paused: paused}
	m.mu.Unlock()
	m.eof.Store(false)

	opts := fmt.Sprintf("start=%.3f,pause=%s", float64(startMs)/1000, yesNo(paused))
	if _, err := conn.command(ctx, "loadfile", url, "replace", opts); err != nil {
		return err
	}
	return nil
}

// Play resumes playback.
func (m *MPV) Play(ctx context.Context) error {
	return m.setProperty(ctx, "pause", false)
}

// Pause suspends playback.
func (m *MPV) Pause(ctx context.Context) error {
	return m.setProperty(ctx, "pause", true)
}

// Toggle flips the pause state.
func (m *MPV) Toggle(ctx context.Context) error {
	conn := m.current()
	if conn == nil {
		return apperrors.ErrEngineUnavailable
	}
	_, err := conn.command(ctx, "cycle", "pause")
	return err
}

// Stop unloads the current stream and returns the engine to idle.
func (m *MPV) Stop(ctx context.Context) error {
	conn := m.current()
	if conn == nil {
		return nil // nothing to stop
	}
	m.mu.Lock()
	m.lastLoad = nil
	m.mu.Unlock()
	_, err := conn.command(ctx, "stop")
	return err
}

// SeekBy seeks relative to the current position.
func (m *MPV) SeekBy(ctx context.Context, deltaMs int64) error {
	conn := m.current()
	if conn == nil {
		return apperrors.ErrEngineUnavailable
	}
	_, err := conn.command(ctx, "seek", float64(deltaMs)/1000, "relative")
	return err
}

// SeekTo seeks to an absolute position.
func (m *MPV) SeekTo(ctx context.Context, positionMs int64) error {
	return m.setProperty(ctx, "time-pos", float64(positionMs)/1000)
}

// SetVolume sets the engine volume from a 0..1 fraction.
func (m *MPV) SetVolume(ctx context.Context, volume float64) error {
	if volume < 0 {
		volume = 0
	}
	if volume > 1 {
		volume = 1
	}
	return m.setProperty(ctx, "volume", volume*100)
}

// Close terminates the engine process and stops the tick stream.
func (m *MPV) Close() error {
	m.mu.Lock()
	if m.closing {
		m.mu.Unlock()
		return nil
	}
	m.closing = true
	conn := m.conn
	proc := m.proc
	m.mu.Unlock()

	close(m.done)
	if conn != nil {
		conn.close()
	}
	if proc != nil && proc.Process != nil {
		// supervise is blocked in Wait on this process and exits once
		// the kill lands.
		_ = proc.Process.Kill()
	}
	m.wg.Wait()
	close(m.ticks)
	_ = os.Remove(m.socketPath)
	return nil
}

func (m *MPV) setProperty(ctx context.Context, name string, value any) error {
	conn := m.current()
	if conn == nil {
		return apperrors.ErrEngineUnavailable
	}
	_, err := conn.command(ctx, "set_property", name, value)
	return err
}

func (m *MPV) current() *ipcConn {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.conn
}

// ensureRunning launches the engine process and its supervision
// goroutines on first use.
func (m *MPV) ensureRunning() (*ipcConn, error) {
	m.mu.Lock()
	if m.closing || m.relaunching {
		m.mu.Unlock()
		return nil, apperrors.ErrEngineUnavailable
	}
	if m.conn != nil {
		conn := m.conn
		m.mu.Unlock()
		return conn, nil
	}
	m.mu.Unlock()

	conn, proc, err := m.launch()
	if err != nil {
		return nil, err
	}

	m.mu.Lock()
	m.conn = conn
	m.proc = proc
	startPoll := !m.polling
	m.polling = true
	m.mu.Unlock()

	if startPoll {
		m.wg.Add(1)
		go m.pollLoop()
	}
	m.wg.Add(1)
	go m.supervise(proc)
	return conn, nil
}

func (m *MPV) launch() (*ipcConn, *exec.Cmd, error) {
	_ = os.Remove(m.socketPath)

	args := append([]string{
		"--idle=yes",
		"--no-terminal",
		"--no-video",
		"--input-ipc-server=" + m.socketPath,
	}, m.extraArgs...)

	proc := exec.Command(m.binary, args...)
	if err := proc.Start(); err != nil {
		return nil, nil, fmt.Errorf("%w: failed to launch %s: %v", apperrors.ErrEngineUnavailable, m.binary, err)
	}

	conn, err := dialIPC(m.socketPath, m.handleEvent)
	if err != nil {
		_ = proc.Process.Kill()
		_ = proc.Wait()
		return nil, nil, err
	}

	m.log.Info("engine launched", "binary", m.binary, "pid", proc.Process.Pid)
	return conn, proc, nil
}

func (m *MPV) handleEvent(msg ipcMessage) {
	if msg.Event == "end-file" && msg.Reason == "eof" {
		m.eof.Store(true)
	}
}

// supervise waits for the engine process to exit and relaunches it,
// re-issuing the last load so playback resumes where it stopped.
func (m *MPV) supervise(proc *exec.Cmd) {
	defer m.wg.Done()

	err := proc.Wait()

	m.mu.Lock()
	if m.closing {
		m.mu.Unlock()
		return
	}
	if m.conn != nil {
		m.conn.close()
		m.conn = nil
	}
	m.relaunching = true
	m.mu.Unlock()

	m.log.Warn("engine process exited", "err", err)
	m.emit(core.EngineTick{Status: core.StatusStopped, Unavailable: true})

	wait := relaunchWait
	for {
		select {
		case <-m.done:
			return
		case <-time.After(wait):
		}

		conn, newProc, err := m.launch()
		if err != nil {
			m.log.Warn("engine relaunch failed", "err", err, "retry_in", wait)
			if wait *= 2; wait > maxRelaunchWait {
				wait = maxRelaunchWait
			}
			continue
		}

		m.mu.Lock()
		m.conn = conn
		m.proc = newProc
		m.relaunching = false
		last := m.lastLoad
		m.mu.Unlock()

		m.wg.Add(1)
		go m.supervise(newProc)

		if last != nil {
			ctx, cancel := context.WithTimeout(context.Background(), requestTimeout)
			opts := fmt.Sprintf("start=%.3f,pause=%s", float64(last.startMs)/1000, yesNo(last.paused))
			if _, err := conn.command(ctx, "loadfile", last.url, "replace", opts); err != nil {
				m.log.Warn("failed to restore playback after relaunch", "err", err)
			}
			cancel()
		}
		return
	}
}

// pollLoop periodically samples the engine's transport properties and
// publishes them as ticks. A poll failure is reported as an unavailable
// tick, not an error: the supervisor handles recovery.
func (m *MPV) pollLoop() {
	defer m.wg.Done()

	ticker := time.NewTicker(m.pollInterval)
	defer ticker.Stop()

	for {
		select {
		case <-m.done:
			return
		case <-ticker.C:
		}

		conn := m.current()
		if conn == nil {
			continue // relaunch in progress, supervisor already emitted a tick
		}

		tick, err := m.sample(conn)
		if err != nil {
			continue
		}
		m.emit(tick)
	}
}

func (m *MPV) sample(conn *ipcConn) (core.EngineTick, error) {
	ctx, cancel := context.WithTimeout(context.Background(), requestTimeout)
	defer cancel()

	paused, err := conn.command(ctx, "get_property", "pause")
	if err != nil {
		return core.EngineTick{}, err
	}
	idle, err := conn.command(ctx, "get_property", "idle-active")
	if err != nil {
		return core.EngineTick{}, err
	}
	// time-pos is unavailable while idle; treat the error as zero.
	pos, _ := conn.command(ctx, "get_property", "time-pos")

	tick := core.EngineTick{
		Status:      core.StatusPlaying,
		PositionMs:  int64(asFloat(pos) * 1000),
		EndOfStream: m.eof.Swap(false),
	}
	// Volume zero is a real value (mute); a failed read is reported as
	// negative so consumers keep their last known volume.
	if volume, err := conn.command(ctx, "get_property", "volume"); err != nil {
		tick.Volume = -1
	} else {
		tick.Volume = asFloat(volume) / 100
	}
	if asBool(idle) {
		tick.Status = core.StatusIdle
		tick.PositionMs = 0
	} else if asBool(paused) {
		tick.Status = core.StatusPaused
	}

	// Remember where playback is so a relaunch resumes close by, in the
	// same pause state the listener last saw.
	if tick.Status == core.StatusPlaying || tick.Status == core.StatusPaused {
		m.mu.Lock()
		if m.lastLoad != nil {
			m.lastLoad.startMs = tick.PositionMs
			m.lastLoad.paused = tick.Status == core.StatusPaused
		}
		m.mu.Unlock()
	}
	return tick, nil
}

// emit delivers a tick without ever blocking the producer: when the
// consumer lags, the oldest buffered tick is dropped in favor of the new
// one. One-shot flags on a dropped tick are folded into the tick being
// enqueued so an end-of-stream or outage is never lost to the overflow.
func (m *MPV) emit(tick core.EngineTick) {
	for {
		select {
		case m.ticks <- tick:
			return
		default:
			select {
			case dropped := <-m.ticks:
				tick.EndOfStream = tick.EndOfStream || dropped.EndOfStream
				tick.Unavailable = tick.Unavailable || dropped.Unavailable
			default:
			}
		}
	}
}

func yesNo(b bool) string {
	if b {
		return "yes"
	}
	return "no"
}

func asFloat(v any) float64 {
	f, _ := v.(float64)
	return f
}

func asBool(v any) bool {
	b, _ := v.(bool)
	return b
}
