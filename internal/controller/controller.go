// Package controller holds the reconciliation loop at the heart of the
// bridge. It merges the remote session's queue with the local engine's
// transport ticks into one published PlayerState, advances the queue,
// and sequences feedback so the remote service's bookkeeping matches
// what was actually heard.
package controller

import (
	"context"
	"errors"
	"time"

	"github.com/charmbracelet/log"

	"wavebridge/internal/config"
	"wavebridge/internal/core"
	apperrors "wavebridge/internal/errors"
)

const shutdownTimeout = 3 * time.Second

// degradedEngineDown is the degraded reason published while the engine is
// down. The first healthy tick clears it; other degraded reasons stick
// until their own recovery paths run.
var degradedEngineDown = apperrors.ErrEngineUnavailable.Error()

// Remote is the remote streaming session as the controller sees it.
type Remote interface {
	Open(ctx context.Context) ([]core.Track, error)
	NextBatch(ctx context.Context) ([]core.Track, error)
	ResolveStream(ctx context.Context, track core.Track) (string, error)
	SubmitFeedback(ctx context.Context, events ...core.FeedbackEvent) ([]core.Track, error)
	SetSeeds(ctx context.Context, seeds []string) ([]core.Track, error)
	Seeds() []string
}

// Engine is the local playback engine as the controller sees it.
type Engine interface {
	Load(ctx context.Context, url string, startMs int64, paused bool) error
	Play(ctx context.Context) error
	Pause(ctx context.Context) error
	Toggle(ctx context.Context) error
	Stop(ctx context.Context) error
	SeekTo(ctx context.Context, positionMs int64) error
	SeekBy(ctx context.Context, deltaMs int64) error
	SetVolume(ctx context.Context, volume float64) error
	Ticks() <-chan core.EngineTick
}

// phase tracks where the current queue entry is in its lifetime.
type phase int

const (
	phaseIdle    phase = iota // nothing loaded
	phaseLoading              // load issued, awaiting the first tick
	phasePlaying
	phasePaused
)

type cmdKind int

const (
	cmdPlay cmdKind = iota
	cmdPause
	cmdPlayPause
	cmdNext
	cmdPrevious
	cmdLike
	cmdDislike
	cmdSeekTo
	cmdSeekBy
	cmdSetVolume
	cmdVibe
	cmdSetVibe
)

type command struct {
	kind   cmdKind
	ms     int64
	volume float64
	seeds  []string
	reply  chan cmdReply
}

type cmdReply struct {
	state core.PlayerState
	seeds []string
	err   error
}

// Controller runs the reconciliation loop. All mutation happens on the
// Run goroutine; external callers talk to it through serialized commands
// so concurrent requests queue instead of racing.
type Controller struct {
	remote Remote
	engine Engine
	store  *core.Store
	seq    *Sequencer
	log    *log.Logger

	poll     time.Duration
	autoplay bool

	cmds    chan command
	stopped chan struct{}

	// Run-goroutine state.
	queue      *trackQueue
	phase      phase
	status     core.Status
	positionMs int64
	volume     float64
	degraded   string
	authFailed bool
}

// New wires a controller. Run must be called before any command method.
func New(cfg config.DaemonConfig, remote Remote, engine Engine, store *core.Store, logger *log.Logger) *Controller {
	return &Controller{
		remote:   remote,
		engine:   engine,
		store:    store,
		seq:      NewSequencer(remote, time.Duration(cfg.LikeCooldownMs)*time.Millisecond, logger),
		log:      logger.With("component", "controller"),
		poll:     time.Duration(cfg.PollIntervalMs) * time.Millisecond,
		autoplay: cfg.Autoplay,
		cmds:     make(chan command),
		stopped:  make(chan struct{}),
		queue:    newQueue(),
		status:   core.StatusIdle,
		volume:   1,
	}
}

// Run drives the reconciliation loop until ctx is cancelled, then shuts
// the engine down. It is the only goroutine that publishes PlayerState.
func (c *Controller) Run(ctx context.Context) error {
	ticker := time.NewTicker(c.poll)
	defer ticker.Stop()

	if c.autoplay {
		c.openSession(ctx)
	}

	ticks := c.engine.Ticks()
	for {
		select {
		case <-ctx.Done():
			return c.shutdown()
		case cmd := <-c.cmds:
			c.handleCommand(ctx, cmd)
		case tick, ok := <-ticks:
			if !ok {
				ticks = nil
				continue
			}
			c.handleTick(ctx, tick)
		case <-ticker.C:
			c.housekeeping(ctx)
		}
	}
}

// shutdown stops the engine with a bounded timeout. New commands were
// already cut off; any in-flight feedback submission completed before we
// got here because feedback runs on this goroutine.
func (c *Controller) shutdown() error {
	close(c.stopped)

	ctx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()
	if err := c.engine.Stop(ctx); err != nil {
		c.log.Warn("engine stop during shutdown", "err", err)
	}

	c.status = core.StatusStopped
	c.publish()
	return nil
}

// --- tick handling -------------------------------------------------------

func (c *Controller) handleTick(ctx context.Context, tick core.EngineTick) {
	if tick.Unavailable {
		c.status = core.StatusStopped
		c.degraded = degradedEngineDown
		c.publish()
		return
	}

	e := c.queue.current()

	if tick.EndOfStream && e != nil && c.phase != phaseIdle {
		c.naturalEnd(ctx)
		return
	}

	switch tick.Status {
	case core.StatusPlaying:
		c.phase = phasePlaying
		if e != nil && !e.StartedSent {
			c.extendQueue(c.seq.Started(ctx, e))
		}
	case core.StatusPaused:
		c.phase = phasePaused
	case core.StatusIdle:
		// The engine reports idle between load and the stream opening;
		// ignore those ticks so the published state does not flap.
		if c.phase == phaseLoading {
			return
		}
	}

	if c.degraded == degradedEngineDown {
		c.degraded = ""
	}

	changed := c.status != tick.Status || c.positionMs != tick.PositionMs
	if tick.Volume >= 0 && c.volume != tick.Volume {
		c.volume = tick.Volume
		changed = true
	}
	c.status = tick.Status
	c.positionMs = tick.PositionMs
	if changed {
		c.publish()
	}
}

// naturalEnd runs the end-of-stream transition: feedback first, in the
// order [play report, finished, started-next], then the cursor advances
// and the next entry is loaded.
func (c *Controller) naturalEnd(ctx context.Context) {
	finished := c.queue.current()
	c.ensureHeadroom(ctx)
	next := c.queue.peekNext()

	c.extendQueue(c.seq.NaturalEnd(ctx, finished, next))

	if next == nil {
		c.phase = phaseIdle
		c.status = core.StatusStopped
		c.publish()
		return
	}
	c.queue.advance()
	c.loadCurrent(ctx, false)
}

// ensureHeadroom refills the queue when the cursor sits on the final
// entry, so advancing never runs dry while the remote is healthy.
func (c *Controller) ensureHeadroom(ctx context.Context) {
	if !c.queue.lowWater() || c.authFailed {
		return
	}
	tracks, err := c.remote.NextBatch(ctx)
	if err != nil {
		c.remoteFailure(err, "queue refill")
		return
	}
	c.clearDegraded()
	c.queue.extend(tracks)
}

// housekeeping runs on the poll ticker: keep the queue topped up and
// retry a session that failed to open.
func (c *Controller) housekeeping(ctx context.Context) {
	if c.authFailed {
		return
	}
	if c.queue.empty() {
		if c.autoplay || c.phase != phaseIdle {
			c.openSession(ctx)
		}
		return
	}
	if c.phase != phaseIdle {
		c.ensureHeadroom(ctx)
	}
}

// --- command handling ----------------------------------------------------

func (c *Controller) handleCommand(ctx context.Context, cmd command) {
	var reply cmdReply

	switch cmd.kind {
	case cmdPlay:
		reply.err = c.startOrResume(ctx)
	case cmdPause:
		reply.err = c.engine.Pause(ctx)
	case cmdPlayPause:
		if c.phase == phaseIdle {
			reply.err = c.startOrResume(ctx)
		} else {
			reply.err = c.engine.Toggle(ctx)
		}
	case cmdNext:
		c.skip(ctx, true)
	case cmdPrevious:
		c.skip(ctx, false)
	case cmdLike:
		c.toggleLike(ctx, true)
	case cmdDislike:
		c.toggleLike(ctx, false)
	case cmdSeekTo:
		reply.err = c.engine.SeekTo(ctx, cmd.ms)
	case cmdSeekBy:
		reply.err = c.engine.SeekBy(ctx, cmd.ms)
	case cmdSetVolume:
		reply.err = c.engine.SetVolume(ctx, cmd.volume)
	case cmdVibe:
		reply.seeds = c.remote.Seeds()
	case cmdSetVibe:
		reply.err = c.setVibe(ctx, cmd.seeds)
	}

	reply.state = c.store.Load()
	cmd.reply <- reply
}

// startOrResume resumes a paused stream or, from idle, opens a session
// and starts the first track.
func (c *Controller) startOrResume(ctx context.Context) error {
	if c.phase != phaseIdle {
		return c.engine.Play(ctx)
	}
	if c.queue.empty() {
		c.openSession(ctx)
		return nil
	}
	c.loadCurrent(ctx, false)
	return nil
}

// skip runs the user-initiated track change: skip feedback for the
// current entry, move the cursor, load the target. The skipped entry
// never gets an end-of-play report.
func (c *Controller) skip(ctx context.Context, forward bool) {
	e := c.queue.current()
	if forward {
		c.ensureHeadroom(ctx)
	}
	if e != nil && c.phase != phaseIdle {
		c.extendQueue(c.seq.Skip(ctx, e, c.positionMs))
	}

	var moved bool
	if forward {
		moved = c.queue.advance()
	} else {
		moved = c.queue.retreat()
	}
	if !moved {
		c.phase = phaseIdle
		c.status = core.StatusStopped
		c.publish()
		return
	}
	c.loadCurrent(ctx, false)
}

// toggleLike delegates to the sequencer and publishes the resulting
// like-state immediately. A rate-limited toggle leaves the state
// unchanged and is not an error.
func (c *Controller) toggleLike(ctx context.Context, like bool) {
	e := c.queue.current()
	if e == nil {
		return
	}
	if c.seq.LikeToggle(ctx, e.Track, like) {
		e.Track.Liked = like
	}
	c.publish()
}

func (c *Controller) setVibe(ctx context.Context, seeds []string) error {
	tracks, err := c.remote.SetSeeds(ctx, seeds)
	if err != nil {
		c.remoteFailure(err, "set vibe")
		return err
	}
	c.clearDegraded()
	c.queue.reset(tracks)
	c.loadCurrent(ctx, false)
	return nil
}

// --- session and loading -------------------------------------------------

func (c *Controller) openSession(ctx context.Context) {
	tracks, err := c.remote.Open(ctx)
	if err != nil {
		c.remoteFailure(err, "open session")
		return
	}
	c.clearDegraded()
	c.queue.reset(tracks)
	c.loadCurrent(ctx, false)
}

// loadCurrent resolves the current entry's stream lazily and hands it to
// the engine. Tracks without a playable stream are skipped over.
func (c *Controller) loadCurrent(ctx context.Context, paused bool) {
	for {
		e := c.queue.current()
		if e == nil {
			c.phase = phaseIdle
			c.status = core.StatusStopped
			c.publish()
			return
		}

		if e.Track.StreamURL == "" {
			url, err := c.remote.ResolveStream(ctx, e.Track)
			if errors.Is(err, apperrors.ErrNotFound) {
				c.log.Warn("no playable stream, skipping", "track", e.Track.ID)
				e.FinishedSent = true // never played, nothing to report
				c.ensureHeadroom(ctx)
				if !c.queue.advance() {
					c.phase = phaseIdle
					c.status = core.StatusStopped
					c.publish()
					return
				}
				continue
			}
			if err != nil {
				c.remoteFailure(err, "resolve stream")
				return
			}
			e.Track.StreamURL = url
		}

		if err := c.engine.Load(ctx, e.Track.StreamURL, 0, paused); err != nil {
			c.log.Error("engine load failed", "track", e.Track.ID, "err", err)
			c.status = core.StatusStopped
			c.degraded = degradedEngineDown
			c.publish()
			return
		}

		c.phase = phaseLoading
		c.status = core.StatusPlaying
		if paused {
			c.status = core.StatusPaused
		}
		c.positionMs = 0
		c.publish()
		return
	}
}

// extendQueue appends tracks the remote attached to a feedback response.
func (c *Controller) extendQueue(tracks []core.Track) {
	if len(tracks) > 0 {
		c.queue.extend(tracks)
	}
}

// --- failure and publishing ----------------------------------------------

// remoteFailure absorbs a remote error into degraded state. Auth errors
// stop further remote calls until the daemon restarts with a fresh
// credential; everything else is retried by the next tick or command.
func (c *Controller) remoteFailure(err error, op string) {
	if errors.Is(err, apperrors.ErrAuth) {
		c.authFailed = true
		c.log.Error("remote credential rejected", "op", op, "err", err)
	} else {
		c.log.Warn("remote call failed", "op", op, "err", err)
	}
	c.degraded = err.Error()
	if c.phase == phaseIdle {
		c.status = core.StatusStopped
	}
	c.publish()
}

func (c *Controller) clearDegraded() {
	if !c.authFailed {
		c.degraded = ""
	}
}

// publish composes the snapshot from run-goroutine state and swaps it
// into the store with the next revision.
func (c *Controller) publish() core.PlayerState {
	st := core.PlayerState{
		Status:     c.status,
		PositionMs: c.positionMs,
		Volume:     c.volume,
		Err:        c.degraded,
	}
	if e := c.queue.current(); e != nil && c.phase != phaseIdle {
		t := e.Track
		st.Track = &t
		st.DurationMs = t.DurationMs
		st.Liked = t.Liked
	}
	return c.store.Publish(st)
}

// --- public command surface ----------------------------------------------

// Status returns the latest published snapshot without touching the run
// goroutine.
func (c *Controller) Status() core.PlayerState {
	return c.store.Load()
}

func (c *Controller) Play(ctx context.Context) (core.PlayerState, error) {
	return c.do(ctx, command{kind: cmdPlay})
}

func (c *Controller) Pause(ctx context.Context) (core.PlayerState, error) {
	return c.do(ctx, command{kind: cmdPause})
}

func (c *Controller) PlayPause(ctx context.Context) (core.PlayerState, error) {
	return c.do(ctx, command{kind: cmdPlayPause})
}

func (c *Controller) Next(ctx context.Context) (core.PlayerState, error) {
	return c.do(ctx, command{kind: cmdNext})
}

func (c *Controller) Previous(ctx context.Context) (core.PlayerState, error) {
	return c.do(ctx, command{kind: cmdPrevious})
}

func (c *Controller) Like(ctx context.Context) (core.PlayerState, error) {
	return c.do(ctx, command{kind: cmdLike})
}

func (c *Controller) Dislike(ctx context.Context) (core.PlayerState, error) {
	return c.do(ctx, command{kind: cmdDislike})
}

func (c *Controller) SeekTo(ctx context.Context, positionMs int64) (core.PlayerState, error) {
	return c.do(ctx, command{kind: cmdSeekTo, ms: positionMs})
}

func (c *Controller) SeekBy(ctx context.Context, deltaMs int64) (core.PlayerState, error) {
	return c.do(ctx, command{kind: cmdSeekBy, ms: deltaMs})
}

func (c *Controller) SetVolume(ctx context.Context, volume float64) (core.PlayerState, error) {
	return c.do(ctx, command{kind: cmdSetVolume, volume: volume})
}

// Vibe returns the seeds of the active wave.
func (c *Controller) Vibe(ctx context.Context) ([]string, error) {
	reply, err := c.dispatch(ctx, command{kind: cmdVibe})
	return reply.seeds, err
}

// SetVibe reopens the session with new seeds and starts its first track.
func (c *Controller) SetVibe(ctx context.Context, seeds []string) (core.PlayerState, error) {
	return c.do(ctx, command{kind: cmdSetVibe, seeds: seeds})
}

func (c *Controller) do(ctx context.Context, cmd command) (core.PlayerState, error) {
	reply, err := c.dispatch(ctx, cmd)
	return reply.state, err
}

func (c *Controller) dispatch(ctx context.Context, cmd command) (cmdReply, error) {
	cmd.reply = make(chan cmdReply, 1)
	select {
	case c.cmds <- cmd:
	case <-c.stopped:
		return cmdReply{state: c.store.Load()}, errors.New("controller is shutting down")
	case <-ctx.Done():
		return cmdReply{}, ctx.Err()
	}
	select {
	case reply := <-cmd.reply:
		return reply, reply.err
	case <-ctx.Done():
		return cmdReply{}, ctx.Err()
	}
}
