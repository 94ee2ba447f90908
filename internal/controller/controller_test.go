package controller

import (
	"context"
	"fmt"
	"io"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/charmbracelet/log"

	"wavebridge/internal/config"
	"wavebridge/internal/core"
	apperrors "wavebridge/internal/errors"
)

// eventLog records the externally observable actions of the fakes in the
// order they happened, so tests can assert feedback/load ordering.
type eventLog struct {
	mu    sync.Mutex
	items []string
}

func (l *eventLog) add(item string) {
	l.mu.Lock()
	l.items = append(l.items, item)
	l.mu.Unlock()
}

func (l *eventLog) snapshot() []string {
	l.mu.Lock()
	defer l.mu.Unlock()
	return append([]string(nil), l.items...)
}

type fakeRemote struct {
	log *eventLog

	mu          sync.Mutex
	openTracks  []core.Track
	batchTracks []core.Track
	openErr     error
	batchErr    error
	feedbackErr error // consumed by the next SubmitFeedback
	missing     map[string]bool
	opens       int
	seeds       []string
}

func (r *fakeRemote) Open(ctx context.Context) ([]core.Track, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.opens++
	if r.openErr != nil {
		return nil, r.openErr
	}
	return append([]core.Track(nil), r.openTracks...), nil
}

func (r *fakeRemote) NextBatch(ctx context.Context) ([]core.Track, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.batchErr != nil {
		return nil, r.batchErr
	}
	tracks := append([]core.Track(nil), r.batchTracks...)
	r.batchTracks = nil
	return tracks, nil
}

func (r *fakeRemote) ResolveStream(ctx context.Context, track core.Track) (string, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.missing[track.ID] {
		return "", fmt.Errorf("%w: track %s", apperrors.ErrNotFound, track.ID)
	}
	return "stream://" + track.ID, nil
}

func (r *fakeRemote) SubmitFeedback(ctx context.Context, events ...core.FeedbackEvent) ([]core.Track, error) {
	for _, ev := range events {
		r.log.add(fmt.Sprintf("feedback:%s:%s", ev.Kind, ev.TrackID))
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.feedbackErr != nil {
		err := r.feedbackErr
		r.feedbackErr = nil
		return nil, err
	}
	return nil, nil
}

func (r *fakeRemote) SetSeeds(ctx context.Context, seeds []string) ([]core.Track, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.seeds = seeds
	return append([]core.Track(nil), r.openTracks...), nil
}

func (r *fakeRemote) Seeds() []string {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.seeds
}

func (r *fakeRemote) openCount() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.opens
}

type fakeEngine struct {
	log   *eventLog
	ticks chan core.EngineTick
}

func newFakeEngine(l *eventLog) *fakeEngine {
	return &fakeEngine{log: l, ticks: make(chan core.EngineTick, 16)}
}

func (e *fakeEngine) Load(ctx context.Context, url string, startMs int64, paused bool) error {
	e.log.add("load:" + url)
	return nil
}

func (e *fakeEngine) Play(ctx context.Context) error                      { return nil }
func (e *fakeEngine) Pause(ctx context.Context) error                     { return nil }
func (e *fakeEngine) Toggle(ctx context.Context) error                    { return nil }
func (e *fakeEngine) Stop(ctx context.Context) error                      { return nil }
func (e *fakeEngine) SeekTo(ctx context.Context, positionMs int64) error  { return nil }
func (e *fakeEngine) SeekBy(ctx context.Context, deltaMs int64) error     { return nil }
func (e *fakeEngine) SetVolume(ctx context.Context, volume float64) error { return nil }
func (e *fakeEngine) Ticks() <-chan core.EngineTick                       { return e.ticks }

func track(id string, durationMs int64) core.Track {
	return core.Track{ID: id, Title: "Track " + id, DurationMs: durationMs, AlbumID: "a" + id}
}

type bridge struct {
	ctrl   *Controller
	engine *fakeEngine
	remote *fakeRemote
	store  *core.Store
	log    *eventLog
}

func newTestBridge(t *testing.T, remoteTracks ...core.Track) *bridge {
	t.Helper()

	events := &eventLog{}
	remote := &fakeRemote{log: events, openTracks: remoteTracks}
	engine := newFakeEngine(events)
	store := core.NewStore()

	cfg := config.DaemonConfig{PollIntervalMs: 20, LikeCooldownMs: 60000, Autoplay: true}
	ctrl := New(cfg, remote, engine, store, log.New(io.Discard))

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})
	go func() {
		_ = ctrl.Run(ctx)
		close(done)
	}()
	t.Cleanup(func() {
		cancel()
		select {
		case <-done:
		case <-time.After(2 * time.Second):
			t.Error("controller did not shut down")
		}
	})

	return &bridge{ctrl: ctrl, engine: engine, remote: remote, store: store, log: events}
}

func waitFor(t *testing.T, what string, cond func() bool) {
	t.Helper()
	deadline := time.Now().Add(2 * time.Second)
	for !cond() {
		if time.Now().After(deadline) {
			t.Fatalf("timed out waiting for %s", what)
		}
		time.Sleep(5 * time.Millisecond)
	}
}

func (b *bridge) waitForEvent(t *testing.T, event string) {
	t.Helper()
	waitFor(t, event, func() bool {
		for _, item := range b.log.snapshot() {
			if item == event {
				return true
			}
		}
		return false
	})
}

func (b *bridge) waitForStatus(t *testing.T, status core.Status) {
	t.Helper()
	waitFor(t, "status "+string(status), func() bool {
		return b.store.Load().Status == status
	})
}

func TestNaturalEndFeedbackOrder(t *testing.T) {
	b := newTestBridge(t, track("1", 30000), track("2", 30000))

	b.waitForEvent(t, "load:stream://1")
	b.engine.ticks <- core.EngineTick{Status: core.StatusPlaying, PositionMs: 10000}
	b.waitForEvent(t, "feedback:trackStarted:1")

	b.engine.ticks <- core.EngineTick{Status: core.StatusIdle, PositionMs: 30000, EndOfStream: true}
	b.waitForEvent(t, "load:stream://2")

	want := []string{
		"load:stream://1",
		"feedback:trackStarted:1",
		"feedback:playComplete:1",
		"feedback:trackFinished:1",
		"feedback:trackStarted:2",
		"load:stream://2",
	}
	got := b.log.snapshot()
	if strings.Join(got, ",") != strings.Join(want, ",") {
		t.Errorf("event order:\n got  %v\n want %v", got, want)
	}
}

func TestSkipAfterStartedSent(t *testing.T) {
	b := newTestBridge(t, track("1", 30000), track("2", 30000))

	b.waitForEvent(t, "load:stream://1")
	b.engine.ticks <- core.EngineTick{Status: core.StatusPlaying, PositionMs: 10000}
	b.waitForEvent(t, "feedback:trackStarted:1")

	if _, err := b.ctrl.Next(context.Background()); err != nil {
		t.Fatalf("Next: %v", err)
	}
	b.waitForEvent(t, "load:stream://2")

	got := b.log.snapshot()
	want := []string{
		"load:stream://1",
		"feedback:trackStarted:1",
		"feedback:skip:1",
		"load:stream://2",
	}
	if strings.Join(got, ",") != strings.Join(want, ",") {
		t.Errorf("event order:\n got  %v\n want %v", got, want)
	}
	for _, item := range got {
		if item == "feedback:playComplete:1" || item == "feedback:trackFinished:1" {
			t.Errorf("skip must not emit %s", item)
		}
	}
}

func TestSkipBeforeFirstTickSendsStarted(t *testing.T) {
	b := newTestBridge(t, track("1", 30000), track("2", 30000))

	b.waitForEvent(t, "load:stream://1")
	if _, err := b.ctrl.Next(context.Background()); err != nil {
		t.Fatalf("Next: %v", err)
	}
	b.waitForEvent(t, "load:stream://2")

	got := b.log.snapshot()
	want := []string{
		"load:stream://1",
		"feedback:trackStarted:1",
		"feedback:skip:1",
		"load:stream://2",
	}
	if strings.Join(got, ",") != strings.Join(want, ",") {
		t.Errorf("event order:\n got  %v\n want %v", got, want)
	}
}

func TestTransientFeedbackFailureStillAdvances(t *testing.T) {
	b := newTestBridge(t, track("1", 30000), track("2", 30000))

	b.waitForEvent(t, "load:stream://1")
	b.engine.ticks <- core.EngineTick{Status: core.StatusPlaying, PositionMs: 1000}
	b.waitForEvent(t, "feedback:trackStarted:1")

	b.remote.mu.Lock()
	b.remote.feedbackErr = apperrors.ErrTransient
	b.remote.mu.Unlock()

	b.engine.ticks <- core.EngineTick{Status: core.StatusIdle, PositionMs: 30000, EndOfStream: true}
	b.waitForEvent(t, "load:stream://2")

	if st := b.store.Load(); st.Err != "" {
		t.Errorf("transient feedback failure must not degrade state, got err %q", st.Err)
	}

	// The terminal event for track 1 was attempted exactly once.
	var finishes int
	for _, item := range b.log.snapshot() {
		if item == "feedback:trackFinished:1" {
			finishes++
		}
	}
	if finishes != 1 {
		t.Errorf("trackFinished attempts = %d, want 1", finishes)
	}
}

func TestEngineUnavailableHoldsStoppedState(t *testing.T) {
	b := newTestBridge(t, track("1", 30000), track("2", 30000))

	b.waitForEvent(t, "load:stream://1")
	b.engine.ticks <- core.EngineTick{Status: core.StatusPlaying, PositionMs: 5000}
	b.waitForStatus(t, core.StatusPlaying)

	b.engine.ticks <- core.EngineTick{Status: core.StatusStopped, Unavailable: true}
	b.waitForStatus(t, core.StatusStopped)

	st := b.store.Load()
	if !st.Degraded() {
		t.Error("expected degraded state while engine is down")
	}
	if !st.HasTrack() || st.Track.ID != "1" {
		t.Errorf("last-known track must be held, got %+v", st.Track)
	}

	// Relaunch confirmed by a fresh tick clears the degradation.
	b.engine.ticks <- core.EngineTick{Status: core.StatusPlaying, PositionMs: 5000}
	b.waitForStatus(t, core.StatusPlaying)
	if st := b.store.Load(); st.Degraded() {
		t.Errorf("degradation not cleared after recovery: %q", st.Err)
	}
}

func TestLikeRateLimited(t *testing.T) {
	b := newTestBridge(t, track("1", 30000), track("2", 30000))

	b.waitForEvent(t, "load:stream://1")
	b.engine.ticks <- core.EngineTick{Status: core.StatusPlaying, PositionMs: 1000}
	b.waitForStatus(t, core.StatusPlaying)

	st, err := b.ctrl.Like(context.Background())
	if err != nil {
		t.Fatalf("Like: %v", err)
	}
	if !st.Liked {
		t.Error("state.Liked = false after like")
	}

	// Second toggle inside the cool-down window: no network call,
	// unchanged state, still a success.
	st, err = b.ctrl.Dislike(context.Background())
	if err != nil {
		t.Fatalf("Dislike: %v", err)
	}
	if !st.Liked {
		t.Error("rate-limited dislike must leave like-state unchanged")
	}

	var likes int
	for _, item := range b.log.snapshot() {
		if strings.HasPrefix(item, "feedback:like:") || strings.HasPrefix(item, "feedback:unlike:") {
			likes++
		}
	}
	if likes != 1 {
		t.Errorf("like submissions = %d, want 1", likes)
	}
}

func TestQueueRefillAtLowWater(t *testing.T) {
	b := newTestBridge(t, track("1", 30000))
	b.remote.mu.Lock()
	b.remote.batchTracks = []core.Track{track("2", 30000)}
	b.remote.mu.Unlock()

	b.waitForEvent(t, "load:stream://1")
	b.engine.ticks <- core.EngineTick{Status: core.StatusPlaying, PositionMs: 1000}
	b.waitForEvent(t, "feedback:trackStarted:1")

	b.engine.ticks <- core.EngineTick{Status: core.StatusIdle, PositionMs: 30000, EndOfStream: true}
	b.waitForEvent(t, "load:stream://2")
}

func TestQueueRefillFailureDegrades(t *testing.T) {
	b := newTestBridge(t, track("1", 30000))
	b.remote.mu.Lock()
	b.remote.batchErr = apperrors.ErrTransient
	b.remote.mu.Unlock()

	b.waitForEvent(t, "load:stream://1")
	b.engine.ticks <- core.EngineTick{Status: core.StatusPlaying, PositionMs: 1000}
	b.waitForEvent(t, "feedback:trackStarted:1")

	b.engine.ticks <- core.EngineTick{Status: core.StatusIdle, PositionMs: 30000, EndOfStream: true}
	b.waitForStatus(t, core.StatusStopped)

	if st := b.store.Load(); !st.Degraded() {
		t.Error("expected degraded state after refill failure")
	}
}

func TestUnresolvableTrackIsSkipped(t *testing.T) {
	b := newTestBridge(t, track("1", 30000), track("2", 30000))
	b.remote.mu.Lock()
	b.remote.missing = map[string]bool{"1": true}
	b.remote.mu.Unlock()

	b.waitForEvent(t, "load:stream://2")

	for _, item := range b.log.snapshot() {
		if item == "load:stream://1" {
			t.Error("unresolvable track must not be loaded")
		}
		if strings.HasPrefix(item, "feedback:") && strings.HasSuffix(item, ":1") {
			t.Errorf("no feedback owed for a track that never played, got %s", item)
		}
	}
}

func TestRevisionStrictlyIncreases(t *testing.T) {
	b := newTestBridge(t, track("1", 30000), track("2", 30000))

	b.waitForEvent(t, "load:stream://1")
	var last uint64
	for i := 0; i < 20; i++ {
		b.engine.ticks <- core.EngineTick{Status: core.StatusPlaying, PositionMs: int64(i) * 100}
		st := b.store.Load()
		if st.Revision < last {
			t.Fatalf("revision decreased: %d after %d", st.Revision, last)
		}
		last = st.Revision
	}
}

func TestMutedVolumeIsPublished(t *testing.T) {
	b := newTestBridge(t, track("1", 30000))

	b.waitForEvent(t, "load:stream://1")
	b.engine.ticks <- core.EngineTick{Status: core.StatusPlaying, PositionMs: 1000, Volume: 0.5}
	waitFor(t, "volume 0.5", func() bool { return b.store.Load().Volume == 0.5 })

	// Volume zero is mute, not absence; it must reach the snapshot.
	b.engine.ticks <- core.EngineTick{Status: core.StatusPlaying, PositionMs: 2000, Volume: 0}
	waitFor(t, "muted volume", func() bool { return b.store.Load().Volume == 0 })

	// A negative volume marks a failed read and keeps the last value.
	b.engine.ticks <- core.EngineTick{Status: core.StatusPlaying, PositionMs: 3000, Volume: -1}
	waitFor(t, "position advance", func() bool { return b.store.Load().PositionMs == 3000 })
	if got := b.store.Load().Volume; got != 0 {
		t.Errorf("volume = %v after unknown-volume tick, want 0", got)
	}
}

func TestAuthFailureStopsRemoteCalls(t *testing.T) {
	events := &eventLog{}
	remote := &fakeRemote{log: events, openErr: apperrors.ErrAuth}
	engine := newFakeEngine(events)
	store := core.NewStore()

	cfg := config.DaemonConfig{PollIntervalMs: 10, LikeCooldownMs: 60000, Autoplay: true}
	ctrl := New(cfg, remote, engine, store, log.New(io.Discard))

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	go func() { _ = ctrl.Run(ctx) }()

	waitFor(t, "degraded state", func() bool {
		st := store.Load()
		return st.Degraded()
	})

	// Let several poll ticks pass; the rejected credential must not be
	// retried.
	time.Sleep(100 * time.Millisecond)
	if n := remote.openCount(); n != 1 {
		t.Errorf("open attempts = %d, want 1 after auth failure", n)
	}
}

func TestSetVibeRestartsQueue(t *testing.T) {
	b := newTestBridge(t, track("1", 30000))

	b.waitForEvent(t, "load:stream://1")

	b.remote.mu.Lock()
	b.remote.openTracks = []core.Track{track("9", 30000)}
	b.remote.mu.Unlock()

	st, err := b.ctrl.SetVibe(context.Background(), []string{"genre:jazz"})
	if err != nil {
		t.Fatalf("SetVibe: %v", err)
	}
	if !st.HasTrack() || st.Track.ID != "9" {
		t.Errorf("state after SetVibe = %+v, want track 9", st.Track)
	}

	seeds, err := b.ctrl.Vibe(context.Background())
	if err != nil {
		t.Fatalf("Vibe: %v", err)
	}
	if len(seeds) != 1 || seeds[0] != "genre:jazz" {
		t.Errorf("seeds = %v", seeds)
	}
}
