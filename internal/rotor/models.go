package rotor

import (
	"encoding/json"
	"strings"

	"wavebridge/internal/core"
)

// Wire shapes for the remote radio API. Field names follow the service's
// JSON; everything is converted to core types at the package boundary.

type sessionNewRequest struct {
	IncludeTracksInResponse bool     `json:"includeTracksInResponse"`
	IncludeWaveModel        bool     `json:"includeWaveModel"`
	Interactive             bool     `json:"interactive"`
	Seeds                   []string `json:"seeds"`
}

type sessionResponse struct {
	Result struct {
		RadioSessionID string `json:"radioSessionId"`
		BatchID        string `json:"batchId"`
		Wave           struct {
			IDForFrom string `json:"idForFrom"`
		} `json:"wave"`
		Sequence []sequenceItem `json:"sequence"`
	} `json:"result"`
}

type sequenceItem struct {
	Liked bool         `json:"liked"`
	Track trackPayload `json:"track"`
}

type trackPayload struct {
	ID         json.Number     `json:"id"`
	Title      string          `json:"title"`
	DurationMs int64           `json:"durationMs"`
	CoverURI   string          `json:"coverUri"`
	Artists    []artistPayload `json:"artists"`
	Albums     []albumPayload  `json:"albums"`
}

type artistPayload struct {
	Name string `json:"name"`
}

type albumPayload struct {
	ID    json.Number `json:"id"`
	Title string      `json:"title"`
}

func (i sequenceItem) toTrack() core.Track {
	t := core.Track{
		ID:         i.Track.ID.String(),
		Title:      i.Track.Title,
		DurationMs: i.Track.DurationMs,
		Liked:      i.Liked,
	}
	for _, a := range i.Track.Artists {
		if a.Name != "" {
			t.Artists = append(t.Artists, a.Name)
		}
	}
	if len(i.Track.Albums) > 0 {
		t.Album = i.Track.Albums[0].Title
		t.AlbumID = i.Track.Albums[0].ID.String()
	}
	if i.Track.CoverURI != "" {
		t.ArtURL = "https://" + strings.Replace(i.Track.CoverURI, "%%", "400x400", 1)
	}
	return t
}

func sequenceToTracks(seq []sequenceItem) []core.Track {
	tracks := make([]core.Track, 0, len(seq))
	for _, item := range seq {
		if item.Track.ID.String() == "" {
			continue
		}
		tracks = append(tracks, item.toTrack())
	}
	return tracks
}

type downloadInfoResponse struct {
	Result []downloadOption `json:"result"`
}

type downloadOption struct {
	Codec           string `json:"codec"`
	BitrateKbps     int    `json:"bitrateKbps"`
	DownloadInfoURL string `json:"downloadInfoUrl"`
}

type downloadInfoXML struct {
	Host   string `xml:"host"`
	Path   string `xml:"path"`
	TS     string `xml:"ts"`
	Secret string `xml:"s"`
}

type feedbackRequest struct {
	Feedbacks []feedbackEntry `json:"feedbacks,omitempty"`
	Queue     []string        `json:"queue,omitempty"`
}

type feedbackEntry struct {
	BatchID string        `json:"batchId"`
	Event   feedbackEvent `json:"event"`
	From    string        `json:"from"`
}

type feedbackEvent struct {
	Timestamp          string   `json:"timestamp"`
	TrackID            string   `json:"trackId"`
	Type               string   `json:"type"`
	TotalPlayedSeconds *float64 `json:"totalPlayedSeconds,omitempty"`
	TrackLengthSeconds *float64 `json:"trackLengthSeconds,omitempty"`
}

type likesRequest struct {
	Tracks []likeEntry `json:"tracks"`
}

type likeEntry struct {
	ClientTimestamp string `json:"clientTimestamp"`
	TrackID         string `json:"trackId"`
}

type playsRequest struct {
	Plays []playReport `json:"plays"`
}

type playReport struct {
	AlbumID                    string  `json:"albumId"`
	AudioAuto                  string  `json:"audioAuto"`
	AudioOutputName            string  `json:"audioOutputName"`
	AudioOutputType            string  `json:"audioOutputType"`
	IsFromAutoflow             bool    `json:"isFromAutoflow"`
	BatchID                    string  `json:"batchId"`
	ChangeReason               string  `json:"changeReason"`
	Context                    string  `json:"context"`
	ContextItem                string  `json:"contextItem"`
	IsRestored                 bool    `json:"isRestored"`
	EndPositionSeconds         float64 `json:"endPositionSeconds"`
	ExpectedTrackLengthSeconds float64 `json:"expectedTrackLengthSeconds"`
	FadeMode                   string  `json:"fadeMode"`
	From                       string  `json:"from"`
	FromCache                  bool    `json:"fromCache"`
	ListenActivity             string  `json:"listenActivity"`
	MaxPlayerStage             string  `json:"maxPlayerStage"`
	NavigationID               string  `json:"navigationId"`
	IsFromOfflineWave          bool    `json:"isFromOfflineWave"`
	Pause                      bool    `json:"pause"`
	PlaybackActionID           string  `json:"playbackActionId"`
	IsFromPumpkin              bool    `json:"isFromPumpkin"`
	RadioSessionID             string  `json:"radioSessionId"`
	IsRepeated                 bool    `json:"isRepeated"`
	Seek                       bool    `json:"seek"`
	SmartPreview               bool    `json:"smartPreview"`
	StartPositionSeconds       float64 `json:"startPositionSeconds"`
	StartTimestamp             string  `json:"startTimestamp"`
	Timestamp                  string  `json:"timestamp"`
	TotalPlayedSeconds         float64 `json:"totalPlayedSeconds"`
	TrackID                    string  `json:"trackId"`
	TrackLengthSeconds         float64 `json:"trackLengthSeconds"`
	PlayID                     string  `json:"playId"`
}

type accountResponse struct {
	Result Account `json:"result"`
}

// Account is the sanitized account probe result.
type Account struct {
	Login                string `json:"login"`
	PublicName           string `json:"publicName"`
	PublicID             string `json:"publicId"`
	UID                  int64  `json:"uid"`
	HasPlus              bool   `json:"hasPlus"`
	HasMusicSubscription bool   `json:"hasMusicSubscription"`
	ServiceAvailable     bool   `json:"serviceAvailable"`
}
