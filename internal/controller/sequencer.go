package controller

import (
	"context"
	"sync"
	"time"

	"github.com/charmbracelet/log"
	"golang.org/x/time/rate"

	"wavebridge/internal/core"
)

// feedbackSubmitter is the slice of the remote client the sequencer
// needs.
type feedbackSubmitter interface {
	SubmitFeedback(ctx context.Context, events ...core.FeedbackEvent) ([]core.Track, error)
}

// Sequencer turns playback transitions into ordered feedback events. Per
// queue entry it emits at most one started and at most one terminal
// event; the entry's sent flags are set together with the emission
// decision, before any network call, so a failed submission is logged
// and dropped rather than re-sent out of order on the next tick.
type Sequencer struct {
	remote   feedbackSubmitter
	log      *log.Logger
	cooldown time.Duration

	mu       sync.Mutex
	limiters map[string]*rate.Limiter
}

// NewSequencer creates a sequencer. cooldown bounds how often a like
// toggle for the same track is accepted.
func NewSequencer(remote feedbackSubmitter, cooldown time.Duration, logger *log.Logger) *Sequencer {
	return &Sequencer{
		remote:   remote,
		log:      logger.With("component", "feedback"),
		cooldown: cooldown,
		limiters: make(map[string]*rate.Limiter),
	}
}

// Started reports the first playing tick of an entry. Repeated calls for
// the same entry are no-ops.
func (s *Sequencer) Started(ctx context.Context, e *entry) []core.Track {
	if e == nil || e.StartedSent {
		return nil
	}
	e.StartedSent = true
	e.StartedAt = time.Now()

	return s.submit(ctx, core.FeedbackEvent{
		Kind:      core.FeedbackStarted,
		TrackID:   e.Track.ID,
		AlbumID:   e.Track.AlbumID,
		Timestamp: e.StartedAt,
	})
}

// NaturalEnd reports that the current entry played to its end and the
// next entry is about to start. It emits, in order, the end-of-play
// report, the finished event and the next entry's started event.
func (s *Sequencer) NaturalEnd(ctx context.Context, finished, next *entry) []core.Track {
	if finished == nil || finished.FinishedSent {
		return nil
	}
	finished.FinishedSent = true

	now := time.Now()
	events := []core.FeedbackEvent{
		{
			Kind:          core.FeedbackPlayComplete,
			TrackID:       finished.Track.ID,
			AlbumID:       finished.Track.AlbumID,
			TotalPlayedMs: finished.Track.DurationMs,
			TrackLengthMs: finished.Track.DurationMs,
			Timestamp:     now,
			PlayID:        finished.PlayID,
			StartedAt:     finished.StartedAt,
		},
		{
			Kind:          core.FeedbackFinished,
			TrackID:       finished.Track.ID,
			AlbumID:       finished.Track.AlbumID,
			TotalPlayedMs: finished.Track.DurationMs,
			TrackLengthMs: finished.Track.DurationMs,
			Timestamp:     now,
		},
	}
	if next != nil && !next.StartedSent {
		next.StartedSent = true
		next.StartedAt = now
		events = append(events, core.FeedbackEvent{
			Kind:      core.FeedbackStarted,
			TrackID:   next.Track.ID,
			AlbumID:   next.Track.AlbumID,
			Timestamp: now,
		})
	}
	return s.submit(ctx, events...)
}

// Skip reports a user-initiated jump away from an entry that had not
// finished. A started event precedes the skip when none was sent yet; an
// end-of-play report is never emitted for a skipped entry.
func (s *Sequencer) Skip(ctx context.Context, e *entry, positionMs int64) []core.Track {
	if e == nil || e.FinishedSent {
		return nil
	}
	e.FinishedSent = true

	now := time.Now()
	var events []core.FeedbackEvent
	if !e.StartedSent {
		e.StartedSent = true
		e.StartedAt = now
		events = append(events, core.FeedbackEvent{
			Kind:      core.FeedbackStarted,
			TrackID:   e.Track.ID,
			AlbumID:   e.Track.AlbumID,
			Timestamp: now,
		})
	}
	events = append(events, core.FeedbackEvent{
		Kind:          core.FeedbackSkip,
		TrackID:       e.Track.ID,
		AlbumID:       e.Track.AlbumID,
		TotalPlayedMs: positionMs,
		TrackLengthMs: e.Track.DurationMs,
		Timestamp:     now,
	})
	return s.submit(ctx, events...)
}

// LikeToggle submits a like or unlike for a track. Toggles inside the
// per-track cool-down window are rejected locally: no network call is
// made and accepted is false.
func (s *Sequencer) LikeToggle(ctx context.Context, track core.Track, like bool) (accepted bool) {
	if !s.limiter(track.ID).Allow() {
		s.log.Debug("like toggle rate-limited", "track", track.ID)
		return false
	}

	kind := core.FeedbackLike
	if !like {
		kind = core.FeedbackUnlike
	}
	s.submit(ctx, core.FeedbackEvent{
		Kind:      kind,
		TrackID:   track.ID,
		AlbumID:   track.AlbumID,
		Timestamp: time.Now(),
	})
	return true
}

func (s *Sequencer) limiter(trackID string) *rate.Limiter {
	s.mu.Lock()
	defer s.mu.Unlock()
	l, ok := s.limiters[trackID]
	if !ok {
		l = rate.NewLimiter(rate.Every(s.cooldown), 1)
		s.limiters[trackID] = l
	}
	return l
}

// submit hands events to the remote client. Failures are absorbed here:
// the sent flags were already set, so the transition is never replayed.
func (s *Sequencer) submit(ctx context.Context, events ...core.FeedbackEvent) []core.Track {
	if len(events) == 0 {
		return nil
	}
	extension, err := s.remote.SubmitFeedback(ctx, events...)
	if err != nil {
		kinds := make([]string, 0, len(events))
		for _, ev := range events {
			kinds = append(kinds, string(ev.Kind))
		}
		s.log.Warn("feedback submission failed", "kinds", kinds, "err", err)
		return nil
	}
	return extension
}
