package controller

import (
	"context"
	"io"
	"testing"
	"time"

	"github.com/charmbracelet/log"

	"wavebridge/internal/core"
)

type recordingSubmitter struct {
	kinds []core.FeedbackKind
}

func (r *recordingSubmitter) SubmitFeedback(ctx context.Context, events ...core.FeedbackEvent) ([]core.Track, error) {
	for _, ev := range events {
		r.kinds = append(r.kinds, ev.Kind)
	}
	return nil, nil
}

func newTestSequencer() (*Sequencer, *recordingSubmitter) {
	rec := &recordingSubmitter{}
	return NewSequencer(rec, time.Minute, log.New(io.Discard)), rec
}

func TestStartedEmittedOnce(t *testing.T) {
	seq, rec := newTestSequencer()
	e := &entry{Track: track("1", 30000)}

	seq.Started(context.Background(), e)
	seq.Started(context.Background(), e)

	if len(rec.kinds) != 1 || rec.kinds[0] != core.FeedbackStarted {
		t.Errorf("kinds = %v, want single trackStarted", rec.kinds)
	}
	if !e.StartedSent {
		t.Error("StartedSent not set")
	}
}

func TestNaturalEndEmittedOnce(t *testing.T) {
	seq, rec := newTestSequencer()
	cur := &entry{Track: track("1", 30000), StartedSent: true}
	next := &entry{Track: track("2", 30000)}

	seq.NaturalEnd(context.Background(), cur, next)
	seq.NaturalEnd(context.Background(), cur, next)

	want := []core.FeedbackKind{core.FeedbackPlayComplete, core.FeedbackFinished, core.FeedbackStarted}
	if len(rec.kinds) != len(want) {
		t.Fatalf("kinds = %v, want %v", rec.kinds, want)
	}
	for i := range want {
		if rec.kinds[i] != want[i] {
			t.Errorf("kinds[%d] = %s, want %s", i, rec.kinds[i], want[i])
		}
	}
}

func TestSkipAfterTerminalIsNoop(t *testing.T) {
	seq, rec := newTestSequencer()
	e := &entry{Track: track("1", 30000), StartedSent: true, FinishedSent: true}

	seq.Skip(context.Background(), e, 5000)

	if len(rec.kinds) != 0 {
		t.Errorf("kinds = %v, want none after terminal already sent", rec.kinds)
	}
}

func TestLikeCooldownIsPerTrack(t *testing.T) {
	seq, rec := newTestSequencer()

	if !seq.LikeToggle(context.Background(), track("1", 30000), true) {
		t.Error("first toggle for track 1 rejected")
	}
	if seq.LikeToggle(context.Background(), track("1", 30000), false) {
		t.Error("second toggle for track 1 inside cool-down accepted")
	}
	if !seq.LikeToggle(context.Background(), track("2", 30000), true) {
		t.Error("toggle for a different track rejected")
	}
	if len(rec.kinds) != 2 {
		t.Errorf("submissions = %d, want 2", len(rec.kinds))
	}
}
