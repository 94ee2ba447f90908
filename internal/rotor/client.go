package rotor

import (
	"bytes"
	"context"
	"crypto/md5"
	"encoding/hex"
	"encoding/json"
	"encoding/xml"
	"errors"
	"fmt"
	"io"
	"net/http"
	"sync"
	"time"

	"github.com/charmbracelet/log"
	"github.com/google/uuid"

	"wavebridge/internal/config"
	"wavebridge/internal/core"
	apperrors "wavebridge/internal/errors"
)

// Retry configuration for transient errors.
const (
	maxRetries    = 3
	baseRetryWait = 500 * time.Millisecond
)

// signSalt is the fixed salt used by the signed download URL scheme.
const signSalt = "XGRlBW9FXlekgbPrRHuSiA"

// Client talks to the remote radio service: it owns the session, hands
// out track batches, resolves stream URLs lazily and submits feedback.
type Client struct {
	httpClient *http.Client
	cfg        config.RemoteConfig
	log        *log.Logger

	mu      sync.Mutex
	session *Session
	uid     int64
}

// New creates a remote client from the given configuration.
func New(cfg config.RemoteConfig, logger *log.Logger) *Client {
	return &Client{
		httpClient: &http.Client{Timeout: time.Duration(cfg.TimeoutMs) * time.Millisecond},
		cfg:        cfg,
		log:        logger.With("component", "rotor"),
	}
}

// Session returns a copy of the current session handle, or nil when no
// session is open.
func (c *Client) Session() *Session {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.session == nil {
		return nil
	}
	s := *c.session
	return &s
}

// Seeds returns the seeds the next session will be opened with.
func (c *Client) Seeds() []string {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.session != nil {
		return append([]string(nil), c.session.Seeds...)
	}
	return append([]string(nil), c.cfg.Seeds...)
}

// Open establishes a new session from the configured seeds and returns
// its initial track queue.
func (c *Client) Open(ctx context.Context) ([]core.Track, error) {
	return c.open(ctx, c.Seeds())
}

// SetSeeds discards the current session and opens a fresh one with the
// given seeds, returning the new queue.
func (c *Client) SetSeeds(ctx context.Context, seeds []string) ([]core.Track, error) {
	normalized := make([]string, 0, len(seeds))
	for _, s := range seeds {
		if s != "" {
			normalized = append(normalized, s)
		}
	}
	if len(normalized) == 0 {
		return nil, fmt.Errorf("%w: at least one seed is required", apperrors.ErrInvalidConfig)
	}
	return c.open(ctx, normalized)
}

func (c *Client) open(ctx context.Context, seeds []string) ([]core.Track, error) {
	body := sessionNewRequest{
		IncludeTracksInResponse: true,
		IncludeWaveModel:        true,
		Interactive:             true,
		Seeds:                   seeds,
	}

	var resp sessionResponse
	if err := c.requestJSON(ctx, http.MethodPost, c.cfg.Endpoints.SessionNew, body, nil, &resp); err != nil {
		return nil, err
	}
	if resp.Result.RadioSessionID == "" || len(resp.Result.Sequence) == 0 {
		return nil, fmt.Errorf("%w: session returned empty sequence", apperrors.ErrTransient)
	}

	session := newSession(seeds, &resp)
	c.mu.Lock()
	c.session = session
	c.mu.Unlock()

	c.log.Info("session opened", "session", session.ID, "seeds", seeds, "tracks", len(resp.Result.Sequence))
	return sequenceToTracks(resp.Result.Sequence), nil
}

// NextBatch extends the queue for the current session. An expired session
// is reopened transparently with the same seeds; the fresh queue is
// returned in its place.
func (c *Client) NextBatch(ctx context.Context) ([]core.Track, error) {
	session := c.Session()
	if session == nil {
		return c.Open(ctx)
	}

	var resp sessionResponse
	path := fmt.Sprintf(c.cfg.Endpoints.SessionTracks, session.ID)
	err := c.requestJSON(ctx, http.MethodPost, path, feedbackRequest{}, nil, &resp)
	if isSessionExpired(err) {
		c.log.Warn("session expired, reopening", "session", session.ID)
		return c.open(ctx, session.Seeds)
	}
	if err != nil {
		return nil, err
	}

	c.mu.Lock()
	if c.session != nil && resp.Result.BatchID != "" {
		c.session.BatchID = resp.Result.BatchID
	}
	c.mu.Unlock()

	tracks := sequenceToTracks(resp.Result.Sequence)
	if len(tracks) == 0 {
		return nil, fmt.Errorf("%w: batch returned no tracks", apperrors.ErrTransient)
	}
	return tracks, nil
}

// ResolveStream resolves the playable stream URL for a track. Resolution
// is lazy by design: callers ask only for the track about to be loaded.
func (c *Client) ResolveStream(ctx context.Context, track core.Track) (string, error) {
	var info downloadInfoResponse
	path := fmt.Sprintf(c.cfg.Endpoints.DownloadInfo, track.ID)
	if err := c.requestJSON(ctx, http.MethodGet, path, nil, nil, &info); err != nil {
		if isSessionExpired(err) {
			// A 404 here means the track, not the session.
			return "", fmt.Errorf("%w: track %s", apperrors.ErrNotFound, track.ID)
		}
		return "", err
	}
	if len(info.Result) == 0 {
		return "", fmt.Errorf("%w: no download info for track %s", apperrors.ErrNotFound, track.ID)
	}

	chosen := info.Result[0]
	for _, opt := range info.Result {
		if opt.Codec == "mp3" {
			chosen = opt
			break
		}
	}
	if chosen.DownloadInfoURL == "" {
		return "", fmt.Errorf("%w: downloadInfoUrl missing for track %s", apperrors.ErrNotFound, track.ID)
	}

	return c.signStreamURL(ctx, chosen.DownloadInfoURL)
}

// signStreamURL fetches the download descriptor XML and derives the final
// signed URL from its host, path, timestamp and secret.
func (c *Client) signStreamURL(ctx context.Context, infoURL string) (string, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, infoURL, nil)
	if err != nil {
		return "", err
	}
	c.setHeaders(req)

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return "", fmt.Errorf("%w: %v", apperrors.ErrTransient, err)
	}
	defer func() { _ = resp.Body.Close() }()

	if resp.StatusCode >= 400 {
		return "", fmt.Errorf("%w: download info fetch returned %d", apperrors.ErrTransient, resp.StatusCode)
	}

	raw, err := io.ReadAll(resp.Body)
	if err != nil {
		return "", fmt.Errorf("%w: %v", apperrors.ErrTransient, err)
	}

	var info downloadInfoXML
	if err := xml.Unmarshal(raw, &info); err != nil {
		return "", fmt.Errorf("failed to parse download info XML: %w", err)
	}
	if info.Host == "" || info.Path == "" || info.TS == "" || info.Secret == "" {
		return "", fmt.Errorf("%w: download info XML missing required fields", apperrors.ErrNotFound)
	}

	sum := md5.Sum([]byte(signSalt + info.Path[1:] + info.Secret))
	sign := hex.EncodeToString(sum[:])
	return fmt.Sprintf("https://%s/get-mp3/%s/%s%s", info.Host, sign, info.TS, info.Path), nil
}

// AccountAbout probes the authenticated account.
func (c *Client) AccountAbout(ctx context.Context) (*Account, error) {
	var resp accountResponse
	if err := c.requestJSON(ctx, http.MethodGet, c.cfg.Endpoints.AccountAbout, nil, nil, &resp); err != nil {
		return nil, err
	}
	return &resp.Result, nil
}

// ensureUID resolves and caches the account uid needed by the likes
// endpoints.
func (c *Client) ensureUID(ctx context.Context) (int64, error) {
	c.mu.Lock()
	uid := c.uid
	c.mu.Unlock()
	if uid != 0 {
		return uid, nil
	}

	account, err := c.AccountAbout(ctx)
	if err != nil {
		return 0, err
	}
	if account.UID == 0 {
		return 0, fmt.Errorf("%w: account uid unavailable", apperrors.ErrAuth)
	}

	c.mu.Lock()
	c.uid = account.UID
	c.mu.Unlock()
	return account.UID, nil
}

// apiError is a non-2xx response from the remote API.
type apiError struct {
	Status int
	Body   string
}

func (e *apiError) Error() string {
	return fmt.Sprintf("remote API error: status %d, body: %s", e.Status, e.Body)
}

func (e *apiError) Unwrap() error {
	switch {
	case e.Status == http.StatusUnauthorized || e.Status == http.StatusForbidden:
		return apperrors.ErrAuth
	case e.Status == http.StatusNotFound || e.Status == http.StatusGone:
		return apperrors.ErrSessionExpired
	case e.Status >= 500:
		return apperrors.ErrTransient
	default:
		return nil
	}
}

func isSessionExpired(err error) bool {
	var apiErr *apiError
	if errors.As(err, &apiErr) {
		return apiErr.Status == http.StatusNotFound || apiErr.Status == http.StatusGone
	}
	return false
}

// requestJSON performs one API call with retries on network and 5xx
// failures. 4xx responses are returned immediately so callers can react
// to auth and session-expiry conditions.
func (c *Client) requestJSON(ctx context.Context, method, path string, body any, extraParams map[string]string, result any) error {
	var jsonBody []byte
	if body != nil {
		var err error
		jsonBody, err = json.Marshal(body)
		if err != nil {
			return fmt.Errorf("failed to marshal request body: %w", err)
		}
	}

	fullURL := c.cfg.BaseURL + path

	var lastErr error
	for attempt := 0; attempt <= maxRetries; attempt++ {
		if attempt > 0 {
			wait := baseRetryWait * time.Duration(1<<(attempt-1))
			c.log.Debug("retrying request", "attempt", attempt, "wait", wait, "err", lastErr)
			select {
			case <-ctx.Done():
				return ctx.Err()
			case <-time.After(wait):
			}
		}

		var bodyReader io.Reader
		if jsonBody != nil {
			bodyReader = bytes.NewReader(jsonBody)
		}

		req, err := http.NewRequestWithContext(ctx, method, fullURL, bodyReader)
		if err != nil {
			return fmt.Errorf("failed to create request: %w", err)
		}
		c.setHeaders(req)
		if jsonBody != nil {
			req.Header.Set("Content-Type", "application/json")
		}

		q := req.URL.Query()
		if c.cfg.DeviceID != "" {
			q.Set("device-id", c.cfg.DeviceID)
		}
		for k, v := range extraParams {
			q.Set(k, v)
		}
		req.URL.RawQuery = q.Encode()

		resp, err := c.httpClient.Do(req)
		if err != nil {
			lastErr = fmt.Errorf("%w: %v", apperrors.ErrTransient, err)
			continue
		}

		respBody, err := io.ReadAll(resp.Body)
		_ = resp.Body.Close()
		if err != nil {
			lastErr = fmt.Errorf("%w: failed to read response: %v", apperrors.ErrTransient, err)
			continue
		}

		if resp.StatusCode >= 500 {
			lastErr = &apiError{Status: resp.StatusCode, Body: truncateBody(respBody)}
			continue
		}
		if resp.StatusCode >= 400 {
			return &apiError{Status: resp.StatusCode, Body: truncateBody(respBody)}
		}

		if result != nil && len(respBody) > 0 {
			if err := json.Unmarshal(respBody, result); err != nil {
				return fmt.Errorf("failed to parse response: %w", err)
			}
		}
		return nil
	}

	return fmt.Errorf("request failed after %d retries: %w", maxRetries, lastErr)
}

func (c *Client) setHeaders(req *http.Request) {
	req.Header.Set("Accept", "application/json")
	req.Header.Set("Accept-Language", c.cfg.AcceptLanguage)
	req.Header.Set("User-Agent", c.cfg.UserAgent)
	req.Header.Set("X-Yandex-Music-Client", c.cfg.MusicClient)
	req.Header.Set("X-Yandex-Music-Content-Type", c.cfg.ContentType)
	if c.cfg.DeviceHeader != "" {
		req.Header.Set("X-Yandex-Music-Device", c.cfg.DeviceHeader)
	}
	if c.cfg.OAuthToken != "" {
		req.Header.Set("Authorization", "OAuth "+c.cfg.OAuthToken)
	}
	req.Header.Set("X-Request-Id", uuid.NewString())
	req.Header.Set("X-Yandex-Music-Client-Now", time.Now().Format(time.RFC3339))
}

func truncateBody(b []byte) string {
	const limit = 512
	if len(b) > limit {
		return string(b[:limit]) + "..."
	}
	return string(b)
}
