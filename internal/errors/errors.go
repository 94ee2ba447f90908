package errors

import (
	"errors"
	"fmt"
	"strings"
)

// Error types for common failure scenarios.
var (
	// ErrAuth is fatal: the credential is invalid or expired. The daemon
	// stays up but stops calling the remote service until it changes.
	ErrAuth = errors.New("authentication failed")

	// ErrTransient covers network failures and 5xx responses. Callers
	// retry with backoff; it never corrupts published state.
	ErrTransient = errors.New("transient remote error")

	// ErrSessionExpired means the remote session handle is no longer
	// valid. The remote client reopens transparently.
	ErrSessionExpired = errors.New("session expired")

	// ErrNotFound means a track has no resolvable stream.
	ErrNotFound = errors.New("stream not found")

	// ErrEngineUnavailable means the playback engine process is down or
	// its IPC channel is broken. Relaunch is attempted automatically.
	ErrEngineUnavailable = errors.New("playback engine unavailable")

	// ErrRateLimited is local and non-fatal: a like/dislike arrived
	// inside the cool-down window and was dropped without a network call.
	ErrRateLimited = errors.New("rate limited")

	ErrConfigNotFound = errors.New("config file not found")
	ErrInvalidConfig  = errors.New("invalid configuration")
)

// BridgeError wraps an error with a user-facing suggestion.
type BridgeError struct {
	Err        error
	Suggestion string
}

func (e *BridgeError) Error() string {
	return e.Err.Error()
}

func (e *BridgeError) Unwrap() error {
	return e.Err
}

// WithSuggestion wraps an error with a helpful suggestion.
func WithSuggestion(err error, suggestion string) error {
	return &BridgeError{
		Err:        err,
		Suggestion: suggestion,
	}
}

// Transient reports whether err should be retried by the caller.
func Transient(err error) bool {
	return errors.Is(err, ErrTransient) || errors.Is(err, ErrSessionExpired)
}

// Fatal reports whether err makes further remote calls pointless until
// the operator intervenes.
func Fatal(err error) bool {
	return errors.Is(err, ErrAuth)
}

// GetSuggestion returns a suggestion for the given error.
func GetSuggestion(err error) string {
	if err == nil {
		return ""
	}

	var bridgeErr *BridgeError
	if errors.As(err, &bridgeErr) && bridgeErr.Suggestion != "" {
		return bridgeErr.Suggestion
	}

	errStr := strings.ToLower(err.Error())

	if errors.Is(err, ErrAuth) || strings.Contains(errStr, "401") ||
		strings.Contains(errStr, "unauthorized") {
		return "Set WAVEBRIDGE_OAUTH_TOKEN or the [remote] oauth_token config value"
	}

	if errors.Is(err, ErrEngineUnavailable) || strings.Contains(errStr, "mpv") {
		return "Check that mpv is installed and on PATH ('wavebridge doctor')"
	}

	if errors.Is(err, ErrTransient) || strings.Contains(errStr, "timeout") ||
		strings.Contains(errStr, "connection refused") {
		return "Check your internet connection and try again"
	}

	if strings.Contains(errStr, "daemon socket") || strings.Contains(errStr, "socket not found") {
		return "Start the daemon with 'wavebridge run'"
	}

	if errors.Is(err, ErrConfigNotFound) || errors.Is(err, ErrInvalidConfig) {
		return "Create ~/.config/wavebridge/config.toml (see 'wavebridge doctor')"
	}

	return ""
}

// Format returns a formatted error message with suggestion if available.
func Format(err error) string {
	if err == nil {
		return ""
	}

	suggestion := GetSuggestion(err)
	if suggestion != "" {
		return fmt.Sprintf("Error: %s\n\nSuggestion: %s", err.Error(), suggestion)
	}

	return fmt.Sprintf("Error: %s", err.Error())
}
