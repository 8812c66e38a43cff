// Package djapi is the HTTP client for the AI DJ backend. Every call is
// authenticated with the session cookie plus a user-id header; the
// hosting layer that issues those credentials is not this package's
// concern.
package djapi

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"
)

const (
	defaultTimeout    = 30 * time.Second
	sessionCookieName = "spotify_session_id"
	userIDHeader      = "X-User-Id"
	maxErrorBodyBytes = 4096
)

// Feedback kinds accepted by the message-feedback endpoint.
const (
	FeedbackLike    = "like"
	FeedbackDislike = "dislike"
)

// ErrAuthRequired marks responses from a backend that has no session for
// us. Callers fail open to the unauthenticated view without log noise.
var ErrAuthRequired = errors.New("djapi: not authenticated")

// StatusError captures non-2xx responses that carried no structured
// error body.
type StatusError struct {
	StatusCode int
	URL        string
	Body       string
}

func (e *StatusError) Error() string {
	return fmt.Sprintf("djapi: unexpected status %d from %s: %s", e.StatusCode, e.URL, e.Body)
}

// BackendError is a rejection the backend explained in an {error} body.
// Its text is surfaced to the user as an assistant-role error message.
type BackendError struct {
	Message string
}

func (e *BackendError) Error() string {
	return "djapi: backend rejected request: " + e.Message
}

// Client talks to one DJ backend on behalf of one user.
type Client struct {
	baseURL       string
	httpc         *http.Client
	userID        string
	sessionCookie string
}

type Option func(*Client)

func WithHTTPClient(h *http.Client) Option {
	return func(c *Client) {
		if h != nil {
			c.httpc = h
		}
	}
}

func WithSessionCookie(value string) Option {
	return func(c *Client) { c.sessionCookie = strings.TrimSpace(value) }
}

func WithUserID(id string) Option {
	return func(c *Client) { c.userID = strings.TrimSpace(id) }
}

func New(baseURL string, opts ...Option) *Client {
	c := &Client{
		baseURL: strings.TrimRight(strings.TrimSpace(baseURL), "/"),
		httpc:   &http.Client{Timeout: defaultTimeout},
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// History fetches up to limit prior messages, oldest first.
func (c *Client) History(ctx context.Context, limit int) ([]HistoryMessage, error) {
	q := url.Values{"limit": []string{strconv.Itoa(limit)}}
	var out historyResponse
	if err := c.get(ctx, "/api/chat-history", q, &out); err != nil {
		return nil, err
	}
	return out.Messages, nil
}

// LikedTrackIDs fetches the ids of every track the user has liked.
func (c *Client) LikedTrackIDs(ctx context.Context) ([]string, error) {
	var out likedTrackIDsResponse
	if err := c.get(ctx, "/api/liked-tracks", nil, &out); err != nil {
		return nil, err
	}
	return out.TrackIDs, nil
}

// LikedTracks fetches the full rows for the liked songs collection.
func (c *Client) LikedTracks(ctx context.Context) ([]LikedTrackRow, error) {
	var out []LikedTrackRow
	if err := c.get(ctx, "/api/liked-tracks-full", nil, &out); err != nil {
		return nil, err
	}
	return out, nil
}

// Recommend sends a chat message and returns the DJ's reply. A non-2xx
// response with an {error} body becomes a *BackendError so the caller
// can insert its text into the timeline.
func (c *Client) Recommend(ctx context.Context, message string) (Recommendation, error) {
	var out Recommendation
	err := c.post(ctx, "/api/dj-recommend", recommendRequest{Message: message}, &out)
	return out, err
}

// MessageFeedback records a like or dislike for a persisted message.
func (c *Client) MessageFeedback(ctx context.Context, remoteID int64, feedbackType string) error {
	return c.post(ctx, "/api/message-feedback", messageFeedbackRequest{
		MessageID:    remoteID,
		FeedbackType: feedbackType,
	}, nil)
}

// TrackLike toggles a track like and returns the backend's authoritative
// liked state.
func (c *Client) TrackLike(ctx context.Context, req TrackLikeRequest) (bool, error) {
	var out trackLikeResponse
	if err := c.post(ctx, "/api/track-like", req, &out); err != nil {
		return false, err
	}
	return out.Liked, nil
}

// FrequentTerms fetches terms that recur across the user's liked tracks.
func (c *Client) FrequentTerms(ctx context.Context, minOccurrences int) ([]string, error) {
	q := url.Values{"min_occurrences": []string{strconv.Itoa(minOccurrences)}}
	var out frequentTermsResponse
	if err := c.get(ctx, "/api/frequently-liked-terms", q, &out); err != nil {
		return nil, err
	}
	return out.Terms, nil
}

// CheckAuth reports whether the backend has a live Spotify session.
func (c *Client) CheckAuth(ctx context.Context) (AuthStatus, error) {
	var out AuthStatus
	err := c.get(ctx, "/api/spotify-auth", nil, &out)
	if errors.Is(err, ErrAuthRequired) {
		return AuthStatus{Authenticated: false}, nil
	}
	return out, err
}

func (c *Client) get(ctx context.Context, path string, query url.Values, out any) error {
	target := c.baseURL + path
	if len(query) > 0 {
		target += "?" + query.Encode()
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, target, nil)
	if err != nil {
		return fmt.Errorf("djapi: build request for %s: %w", path, err)
	}
	return c.do(req, out)
}

func (c *Client) post(ctx context.Context, path string, body any, out any) error {
	payload, err := json.Marshal(body)
	if err != nil {
		return fmt.Errorf("djapi: encode body for %s: %w", path, err)
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+path, bytes.NewReader(payload))
	if err != nil {
		return fmt.Errorf("djapi: build request for %s: %w", path, err)
	}
	req.Header.Set("Content-Type", "application/json")
	return c.do(req, out)
}

func (c *Client) do(req *http.Request, out any) error {
	if c.sessionCookie != "" {
		req.AddCookie(&http.Cookie{Name: sessionCookieName, Value: c.sessionCookie})
	}
	if c.userID != "" {
		req.Header.Set(userIDHeader, c.userID)
	}

	resp, err := c.httpc.Do(req)
	if err != nil {
		return fmt.Errorf("djapi: %s %s: %w", req.Method, req.URL.Path, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode == http.StatusUnauthorized {
		io.Copy(io.Discard, resp.Body)
		return ErrAuthRequired
	}
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		raw, _ := io.ReadAll(io.LimitReader(resp.Body, maxErrorBodyBytes))
		if msg := decodeErrorBody(raw); msg != "" {
			return &BackendError{Message: msg}
		}
		return &StatusError{
			StatusCode: resp.StatusCode,
			URL:        req.URL.String(),
			Body:       strings.TrimSpace(string(raw)),
		}
	}
	if out == nil {
		io.Copy(io.Discard, resp.Body)
		return nil
	}
	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return fmt.Errorf("djapi: decode %s response: %w", req.URL.Path, err)
	}
	return nil
}

// decodeErrorBody extracts the backend's error text, which may be a
// plain string or an arbitrary JSON value.
func decodeErrorBody(raw []byte) string {
	var envelope struct {
		Error json.RawMessage `json:"error"`
	}
	if err := json.Unmarshal(raw, &envelope); err != nil || len(envelope.Error) == 0 {
		return ""
	}
	var text string
	if err := json.Unmarshal(envelope.Error, &text); err == nil {
		return text
	}
	return string(envelope.Error)
}
