package core

// Status is the coarse transport status of the bridge.
type Status string

const (
	StatusPlaying Status = "playing"
	StatusPaused  Status = "paused"
	StatusStopped Status = "stopped"
	StatusIdle    Status = "idle"
)

// PlayerState is the published playback snapshot. It is produced only by
// the controller; every other component receives read-only copies. The
// revision counter strictly increases on every publish so consumers can
// detect staleness.
type PlayerState struct {
	Status     Status  `json:"status"`
	PositionMs int64   `json:"position_ms"`
	DurationMs int64   `json:"duration_ms"`
	Track      *Track  `json:"track"`
	Liked      bool    `json:"liked"`
	Volume     float64 `json:"volume"`
	Err        string  `json:"error,omitempty"`
	Revision   uint64  `json:"revision"`
}

// HasTrack returns true if a track is loaded.
func (s *PlayerState) HasTrack() bool {
	return s != nil && s.Track != nil && s.Track.ID != ""
}

// Degraded returns true when the bridge is serving a last-known state
// because an upstream source is failing.
func (s *PlayerState) Degraded() bool {
	return s != nil && s.Err != ""
}

// EngineTick is a transient transport report from the local playback
// engine. Each tick supersedes the previous one; ticks are never stored.
type EngineTick struct {
	Status     Status
	PositionMs int64

	// Volume is the playback volume in [0, 1]. Negative means the engine
	// could not report it; consumers keep their last known value.
	Volume float64

	EndOfStream bool
	Unavailable bool
}
