package rotor

import (
	"context"
	"fmt"
	"net/http"
	"time"

	"github.com/google/uuid"

	"wavebridge/internal/core"
	apperrors "wavebridge/internal/errors"
)

const timestampLayout = "2006-01-02T15:04:05.000-07:00"

// SubmitFeedback submits feedback events in the exact order given.
// Consecutive radio events (started/finished/skip) are sent in a single
// request so the service sees them as one ordered bundle; like/unlike and
// play-complete events go to their own endpoints in between. The returned
// tracks are any queue extension the service attached to its responses.
//
// An expired session is reopened transparently; events addressed to the
// dead session are dropped rather than replayed against the new one.
func (c *Client) SubmitFeedback(ctx context.Context, events ...core.FeedbackEvent) ([]core.Track, error) {
	session := c.Session()
	if session == nil {
		return nil, fmt.Errorf("%w: no session for feedback", apperrors.ErrSessionExpired)
	}

	var extension []core.Track
	var pending []feedbackEntry

	flush := func() error {
		if len(pending) == 0 {
			return nil
		}
		tracks, err := c.submitRadioFeedback(ctx, session, pending)
		pending = nil
		if err != nil {
			return err
		}
		extension = append(extension, tracks...)
		return nil
	}

	for _, ev := range events {
		switch ev.Kind {
		case core.FeedbackStarted, core.FeedbackFinished, core.FeedbackSkip:
			pending = append(pending, radioEntry(session, ev))

		case core.FeedbackLike, core.FeedbackUnlike:
			if err := flush(); err != nil {
				return extension, err
			}
			if err := c.submitLike(ctx, session, ev); err != nil {
				return extension, err
			}

		case core.FeedbackPlayComplete:
			if err := flush(); err != nil {
				return extension, err
			}
			if err := c.submitPlayReport(ctx, session, ev); err != nil {
				return extension, err
			}

		default:
			return extension, fmt.Errorf("unknown feedback kind: %s", ev.Kind)
		}
	}

	if err := flush(); err != nil {
		return extension, err
	}
	return extension, nil
}

func radioEntry(session *Session, ev core.FeedbackEvent) feedbackEntry {
	batchID := session.BatchID
	if batchID == "" {
		batchID = uuid.NewString() + ".local"
	}

	entry := feedbackEntry{
		BatchID: batchID,
		From:    session.From,
		Event: feedbackEvent{
			Timestamp: ev.Timestamp.Format(timestampLayout),
			TrackID:   ev.TrackID,
			Type:      string(ev.Kind),
		},
	}
	if ev.Terminal() {
		played := roundSeconds(ev.TotalPlayedMs)
		entry.Event.TotalPlayedSeconds = &played
	}
	if ev.Kind == core.FeedbackFinished {
		length := roundSeconds(ev.TrackLengthMs)
		entry.Event.TrackLengthSeconds = &length
	}
	return entry
}

func (c *Client) submitRadioFeedback(ctx context.Context, session *Session, entries []feedbackEntry) ([]core.Track, error) {
	path := fmt.Sprintf(c.cfg.Endpoints.SessionTracks, session.ID)
	body := feedbackRequest{Feedbacks: entries}

	var resp sessionResponse
	err := c.requestJSON(ctx, http.MethodPost, path, body, nil, &resp)
	if isSessionExpired(err) {
		c.log.Warn("session expired during feedback, reopening", "session", session.ID, "dropped", len(entries))
		if _, reopenErr := c.open(ctx, session.Seeds); reopenErr != nil {
			return nil, reopenErr
		}
		return nil, nil
	}
	if err != nil {
		return nil, err
	}

	c.mu.Lock()
	if c.session != nil && c.session.ID == session.ID && resp.Result.BatchID != "" {
		c.session.BatchID = resp.Result.BatchID
	}
	c.mu.Unlock()

	return sequenceToTracks(resp.Result.Sequence), nil
}

// submitLike updates the library like state and reports the matching
// radio feedback event.
func (c *Client) submitLike(ctx context.Context, session *Session, ev core.FeedbackEvent) error {
	uid, err := c.ensureUID(ctx)
	if err != nil {
		return err
	}

	timestamp := ev.Timestamp.Format(timestampLayout)

	var path, trackRef string
	if ev.Kind == core.FeedbackLike {
		path = fmt.Sprintf(c.cfg.Endpoints.LikesAdd, uid)
		t := core.Track{ID: ev.TrackID, AlbumID: ev.AlbumID}
		trackRef = t.QueueRef()
	} else {
		path = fmt.Sprintf(c.cfg.Endpoints.LikesRemove, uid)
		trackRef = ev.TrackID
	}

	body := likesRequest{Tracks: []likeEntry{{ClientTimestamp: timestamp, TrackID: trackRef}}}
	if err := c.requestJSON(ctx, http.MethodPost, path, body, nil, nil); err != nil {
		return err
	}

	_, err = c.submitRadioFeedback(ctx, session, []feedbackEntry{radioEntry(session, ev)})
	return err
}

// submitPlayReport sends the end-of-play report for a naturally finished
// track.
func (c *Client) submitPlayReport(ctx context.Context, session *Session, ev core.FeedbackEvent) error {
	now := time.Now().Format(timestampLayout)
	startedAt := now
	if !ev.StartedAt.IsZero() {
		startedAt = ev.StartedAt.Format(timestampLayout)
	}

	batchID := session.BatchID
	if batchID == "" {
		batchID = uuid.NewString() + ".local"
	}

	length := roundSeconds(ev.TrackLengthMs)
	played := roundSeconds(ev.TotalPlayedMs)
	if played < length {
		played = length
	}

	contextItem := "user:onyourwave"
	if len(session.Seeds) > 0 {
		contextItem = session.Seeds[0]
	}

	report := playReport{
		AlbumID:                    ev.AlbumID,
		AudioAuto:                  "none",
		AudioOutputName:            "Phone",
		AudioOutputType:            "other",
		BatchID:                    batchID,
		ChangeReason:               "finish",
		Context:                    "radio",
		ContextItem:                contextItem,
		EndPositionSeconds:         played,
		ExpectedTrackLengthSeconds: length,
		FadeMode:                   "crossfade",
		From:                       session.From,
		ListenActivity:             "END",
		MaxPlayerStage:             "play",
		NavigationID:               "wavebridge_" + uuid.NewString(),
		PlaybackActionID:           uuid.NewString(),
		RadioSessionID:             session.ID,
		StartPositionSeconds:       0,
		StartTimestamp:             startedAt,
		Timestamp:                  now,
		TotalPlayedSeconds:         played,
		TrackID:                    ev.TrackID,
		TrackLengthSeconds:         length,
		PlayID:                     ev.PlayID,
	}

	body := playsRequest{Plays: []playReport{report}}
	return c.requestJSON(ctx, http.MethodPost, c.cfg.Endpoints.Plays, body, map[string]string{"client-now": now}, nil)
}

func roundSeconds(ms int64) float64 {
	if ms < 0 {
		ms = 0
	}
	return float64(ms) / 1000
}
