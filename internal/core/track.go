package core

import "strings"

// Track represents one playable track handed out by the remote session.
// It is immutable once constructed; the stream URL is resolved lazily and
// filled in by the remote client on first need.
type Track struct {
	ID         string   `json:"id"`
	Title      string   `json:"title"`
	Artists    []string `json:"artists"`
	Album      string   `json:"album"`
	AlbumID    string   `json:"album_id,omitempty"`
	DurationMs int64    `json:"duration_ms"`
	ArtURL     string   `json:"art_url,omitempty"`
	StreamURL  string   `json:"-"`
	Liked      bool     `json:"liked"`
}

// Artist returns the joined artist line for display.
func (t *Track) Artist() string {
	return strings.Join(t.Artists, ", ")
}

// QueueRef returns the "trackID:albumID" reference used by the remote
// likes endpoint, or the bare track ID when the album is unknown.
func (t *Track) QueueRef() string {
	if t.AlbumID == "" {
		return t.ID
	}
	return t.ID + ":" + t.AlbumID
}
