// Package ctlsock implements the local control protocol: one JSON
// request and one JSON response per connection over a Unix socket. It is
// the integration point for scripts and status bars that do not speak
// the desktop media-control bus.
package ctlsock

import (
	"context"

	"wavebridge/internal/core"
)

// Actions accepted over the control socket.
const (
	ActionStatus    = "status"
	ActionPlay      = "play"
	ActionPause     = "pause"
	ActionPlayPause = "play_pause"
	ActionNext      = "next"
	ActionPrevious  = "previous"
	ActionLike      = "like"
	ActionDislike   = "dislike"
	ActionGetVibe   = "get_vibe"
	ActionSetVibe   = "set_vibe"
)

// Request is the single JSON object a client sends.
type Request struct {
	Action string   `json:"action"`
	Seeds  []string `json:"seeds,omitempty"`
}

// Response is the single JSON object the server answers with.
type Response struct {
	OK    bool              `json:"ok"`
	State *core.PlayerState `json:"state,omitempty"`
	Seeds []string          `json:"seeds,omitempty"`
	Error string            `json:"error,omitempty"`
}

// Commander is the slice of the controller the socket server drives.
type Commander interface {
	Status() core.PlayerState
	Play(ctx context.Context) (core.PlayerState, error)
	Pause(ctx context.Context) (core.PlayerState, error)
	PlayPause(ctx context.Context) (core.PlayerState, error)
	Next(ctx context.Context) (core.PlayerState, error)
	Previous(ctx context.Context) (core.PlayerState, error)
	Like(ctx context.Context) (core.PlayerState, error)
	Dislike(ctx context.Context) (core.PlayerState, error)
	Vibe(ctx context.Context) ([]string, error)
	SetVibe(ctx context.Context, seeds []string) (core.PlayerState, error)
}
