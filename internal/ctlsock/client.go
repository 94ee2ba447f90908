package ctlsock

import (
	"encoding/json"
	"fmt"
	"net"
	"time"

	apperrors "wavebridge/internal/errors"
)

const dialTimeout = 3 * time.Second

// Do performs one request/response exchange against a running daemon.
func Do(socketPath string, req Request) (*Response, error) {
	conn, err := net.DialTimeout("unix", socketPath, dialTimeout)
	if err != nil {
		return nil, apperrors.WithSuggestion(
			fmt.Errorf("daemon not reachable at %s: %w", socketPath, err),
			"start the daemon with 'wavebridge run'",
		)
	}
	defer conn.Close()
	_ = conn.SetDeadline(time.Now().Add(requestTimeout))

	if err := json.NewEncoder(conn).Encode(req); err != nil {
		return nil, fmt.Errorf("send request: %w", err)
	}

	var resp Response
	if err := json.NewDecoder(conn).Decode(&resp); err != nil {
		return nil, fmt.Errorf("read response: %w", err)
	}
	return &resp, nil
}

// Action is shorthand for a request that carries only an action name.
func Action(socketPath, action string) (*Response, error) {
	return Do(socketPath, Request{Action: action})
}
