// Package session owns the ordered message timeline and the one-shot
// history hydration that backfills it from the remote store.
package session

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"sync"

	"aidj/internal/djapi"
)

const DefaultHistoryLimit = 50

// HistorySource is the slice of the backend the controller hydrates from.
type HistorySource interface {
	History(ctx context.Context, limit int) ([]djapi.HistoryMessage, error)
	LikedTrackIDs(ctx context.Context) ([]string, error)
}

// Controller produces and maintains the timeline. It is safe for use
// from the UI loop and command goroutines concurrently: every method
// takes the controller lock, and hydration re-validates the guard after
// every await before touching shared state.
type Controller struct {
	api HistorySource
	log *slog.Logger

	mu         sync.Mutex
	timeline   []*Message
	guard      Guard
	limit      int
	loadCancel context.CancelFunc

	// latestAssistant is memoized per timeline version so observers get
	// a stable identity between appends.
	version     uint64
	memoVersion uint64
	memoLatest  *Message
}

func NewController(api HistorySource, limit int, log *slog.Logger) *Controller {
	if limit <= 0 {
		limit = DefaultHistoryLimit
	}
	if log == nil {
		log = slog.New(slog.NewTextHandler(io.Discard, nil))
	}
	return &Controller{api: api, limit: limit, log: log}
}

// StartHistoryLoad hydrates the timeline from the remote store. It runs
// to completion in the calling goroutine and never returns an error:
// auth-less sessions and cancellations are silent, everything else is
// logged and leaves the timeline empty. The guard is consulted before
// each fetch and before the commit; a trip at any point discards the
// in-flight result.
func (c *Controller) StartHistoryLoad(ctx context.Context) {
	c.mu.Lock()
	if c.guard.Tripped() {
		c.mu.Unlock()
		return
	}
	ctx, cancel := context.WithCancel(ctx)
	c.loadCancel = cancel
	c.mu.Unlock()
	defer cancel()

	raw, err := c.api.History(ctx, c.limit)
	if err != nil {
		c.failLoad(ctx, err)
		return
	}
	if c.tripped() {
		return
	}

	loaded := make([]*Message, 0, len(raw))
	for _, row := range raw {
		loaded = append(loaded, newHistoryMessage(row.ID, row.Role, row.Content, TracksFromPayload(row.Tracks)))
	}

	likedIDs, err := c.api.LikedTrackIDs(ctx)
	if err != nil {
		// Liked membership is an enrichment; the messages themselves
		// still commit. Cancellation aborts outright.
		if ctx.Err() != nil {
			return
		}
		if !errors.Is(err, djapi.ErrAuthRequired) {
			c.log.Error("liked track ids fetch failed", "error", err)
		}
		likedIDs = nil
	}
	if c.tripped() {
		return
	}

	liked := make(map[string]struct{}, len(likedIDs))
	for _, id := range likedIDs {
		liked[id] = struct{}{}
	}
	for _, m := range loaded {
		for _, t := range m.Tracks {
			if _, ok := liked[t.ID]; ok {
				m.SetTrackLiked(t.ID, true)
			}
		}
	}

	c.commit(loaded)
}

// failLoad handles history fetch failures. Cancellation means teardown
// pre-empted the load and the window stays as-is; a not-authenticated
// reply is "no history" with no log noise; anything else logs. Either
// way the session settles on an empty timeline with the window closed.
func (c *Controller) failLoad(ctx context.Context, err error) {
	if ctx.Err() != nil || errors.Is(err, context.Canceled) {
		return
	}
	if !errors.Is(err, djapi.ErrAuthRequired) {
		c.log.Error("history fetch failed", "error", err)
	}
	c.commit(nil)
}

func (c *Controller) commit(loaded []*Message) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.guard.Tripped() {
		return
	}
	c.guard.markCommitted()
	if len(c.timeline) > 0 {
		// Existing content is authoritative; the load arrived too late.
		return
	}
	c.timeline = loaded
	c.version++
	if len(loaded) > 0 {
		c.log.Info("history committed", "messages", len(loaded))
	}
}

// CancelHistoryLoad aborts an in-flight hydration. Safe to call when
// nothing is loading; outstanding continuations observe the cancelled
// context and return without committing.
func (c *Controller) CancelHistoryLoad() {
	c.mu.Lock()
	cancel := c.loadCancel
	c.loadCancel = nil
	c.mu.Unlock()
	if cancel != nil {
		cancel()
	}
}

// AppendExchange appends a completed send as one atomic pair and closes
// the hydration window for the rest of the session.
func (c *Controller) AppendExchange(user, assistant *Message) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.guard.markInteracted()
	c.timeline = append(c.timeline, user, assistant)
	c.version++
}

// LatestAssistant returns the newest assistant message with non-empty
// content, or nil. The result is identity-stable between appends so
// observers keyed on it do not re-trigger spuriously.
func (c *Controller) LatestAssistant() *Message {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.memoVersion == c.version && c.memoLatest != nil {
		return c.memoLatest
	}
	c.memoVersion = c.version
	c.memoLatest = nil
	for i := len(c.timeline) - 1; i >= 0; i-- {
		if m := c.timeline[i]; m.Role == RoleAssistant && m.Content != "" {
			c.memoLatest = m
			break
		}
	}
	return c.memoLatest
}

// Snapshot returns the timeline in order. The slice is a copy; the
// entries are the live messages.
func (c *Controller) Snapshot() []*Message {
	c.mu.Lock()
	defer c.mu.Unlock()
	out := make([]*Message, len(c.timeline))
	copy(out, c.timeline)
	return out
}

// Len reports the number of timeline entries.
func (c *Controller) Len() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.timeline)
}

// GuardState returns the current guard flags.
func (c *Controller) GuardState() (hasNewMessages, historyCommitted bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.guard.HasNewMessages(), c.guard.HistoryCommitted()
}

// MutateMessage runs fn on the identified message under the controller
// lock, so read-modify-write on like flags and track sets always sees
// the latest state. Returns false when the message does not exist.
func (c *Controller) MutateMessage(id string, fn func(*Message)) bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	for _, m := range c.timeline {
		if m.ID == id {
			fn(m)
			return true
		}
	}
	return false
}

func (c *Controller) tripped() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.guard.Tripped()
}

// TracksFromPayload maps backend track payloads onto the timeline model.
func TracksFromPayload(payload []djapi.TrackPayload) []Track {
	if len(payload) == 0 {
		return nil
	}
	out := make([]Track, 0, len(payload))
	for _, p := range payload {
		out = append(out, Track{
			Position:         p.Position,
			ID:               p.ID,
			Name:             p.Name,
			Artist:           p.Artist,
			ImageURL:         p.ImageURL(),
			PreviewURL:       p.PreviewURL,
			ExternalURL:      p.ExternalURL,
			DurationMS:       p.DurationMS,
			HighlightedTerms: p.HighlightedTerms,
		})
	}
	return out
}
