package core

import "time"

// FeedbackKind tags a feedback event with the transition it reports.
type FeedbackKind string

const (
	FeedbackStarted      FeedbackKind = "trackStarted"
	FeedbackFinished     FeedbackKind = "trackFinished"
	FeedbackSkip         FeedbackKind = "skip"
	FeedbackPlayComplete FeedbackKind = "playComplete"
	FeedbackLike         FeedbackKind = "like"
	FeedbackUnlike       FeedbackKind = "unlike"
)

// FeedbackEvent tells the remote service what actually happened to a
// track. Events are constructed by the feedback sequencer and consumed by
// the remote client, which stamps them with the session and batch they
// belong to at submission time.
type FeedbackEvent struct {
	Kind          FeedbackKind
	TrackID       string
	AlbumID       string
	TotalPlayedMs int64
	TrackLengthMs int64
	Timestamp     time.Time

	// Play-report fields, set only for FeedbackPlayComplete.
	PlayID    string
	StartedAt time.Time
}

// Terminal returns true for events that end a track's lifetime.
func (e FeedbackEvent) Terminal() bool {
	return e.Kind == FeedbackFinished || e.Kind == FeedbackSkip
}
