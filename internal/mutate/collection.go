package mutate

import (
	"context"
	"io"
	"log/slog"
	"sync"
	"time"

	"aidj/internal/djapi"
	"aidj/internal/session"
)

// DefaultUndoTTL is how long an unliked track can be brought back.
const DefaultUndoTTL = 5 * time.Second

// UndoRecord is the single time-boxed chance to reverse an unlike. The
// expiry timer is owned by the record; replacing the record always stops
// the old timer first.
type UndoRecord struct {
	Track session.Track
	timer *time.Timer
}

// Collection is the standalone liked-songs view: an ordered list with
// contiguous 1-based positions and at most one pending undo.
type Collection struct {
	api FeedbackAPI
	log *slog.Logger

	mu      sync.Mutex
	tracks  []session.Track
	undo    *UndoRecord
	undoTTL time.Duration

	// onUndoExpired fires (off the timer goroutine) when the window
	// lapses without being consumed.
	onUndoExpired func(track session.Track)
}

func NewCollection(api FeedbackAPI, log *slog.Logger) *Collection {
	if log == nil {
		log = slog.New(slog.NewTextHandler(io.Discard, nil))
	}
	return &Collection{api: api, log: log, undoTTL: DefaultUndoTTL}
}

// SetUndoTTL overrides the undo window. Zero or negative keeps the default.
func (c *Collection) SetUndoTTL(ttl time.Duration) {
	if ttl > 0 {
		c.mu.Lock()
		c.undoTTL = ttl
		c.mu.Unlock()
	}
}

// OnUndoExpired registers the expiry notification hook.
func (c *Collection) OnUndoExpired(fn func(track session.Track)) {
	c.mu.Lock()
	c.onUndoExpired = fn
	c.mu.Unlock()
}

// Replace installs a freshly fetched collection, renumbered 1..n.
func (c *Collection) Replace(rows []djapi.LikedTrackRow) {
	tracks := make([]session.Track, 0, len(rows))
	for _, row := range rows {
		tracks = append(tracks, session.Track{
			ID:          row.TrackID,
			Name:        row.TrackName,
			Artist:      row.TrackArtist,
			ImageURL:    row.TrackImageURL,
			PreviewURL:  row.PreviewURL,
			DurationMS:  row.DurationMS,
			ExternalURL: "https://open.spotify.com/track/" + row.TrackID,
		})
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	c.tracks = tracks
	c.renumberLocked()
}

// Tracks returns the collection in display order.
func (c *Collection) Tracks() []session.Track {
	c.mu.Lock()
	defer c.mu.Unlock()
	out := make([]session.Track, len(c.tracks))
	copy(out, c.tracks)
	return out
}

// PendingUndo reports the track waiting in the undo window, if any.
func (c *Collection) PendingUndo() (session.Track, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.undo == nil {
		return session.Track{}, false
	}
	return c.undo.Track, true
}

// Unlike removes the track optimistically, opens the undo window, and
// confirms with the backend. A failed call puts the track back at its
// old position and drops the undo record.
func (c *Collection) Unlike(ctx context.Context, trackID string) error {
	c.mu.Lock()
	idx := c.indexLocked(trackID)
	if idx < 0 {
		c.mu.Unlock()
		return ErrUnknownTrack
	}
	track := c.tracks[idx]
	c.tracks = append(c.tracks[:idx], c.tracks[idx+1:]...)
	c.renumberLocked()
	c.installUndoLocked(track)
	c.mu.Unlock()

	_, err := c.api.TrackLike(ctx, djapi.TrackLikeRequest{
		TrackID:       track.ID,
		TrackName:     track.Name,
		TrackArtist:   track.Artist,
		TrackImageURL: track.ImageURL,
	})
	if err != nil {
		c.mu.Lock()
		c.clearUndoLocked()
		if c.indexLocked(track.ID) < 0 {
			if idx > len(c.tracks) {
				idx = len(c.tracks)
			}
			c.tracks = append(c.tracks[:idx], append([]session.Track{track}, c.tracks[idx:]...)...)
			c.renumberLocked()
		}
		c.mu.Unlock()
		c.log.Error("unlike rejected", "track_id", track.ID, "error", err)
		return err
	}
	return nil
}

// ConsumeUndo re-issues the like for the pending track. Only success
// clears the record and reinserts the track (at the end, renumbered);
// failure keeps the record alive so the user can retry before expiry.
func (c *Collection) ConsumeUndo(ctx context.Context) (restored bool, err error) {
	c.mu.Lock()
	rec := c.undo
	c.mu.Unlock()
	if rec == nil {
		return false, nil
	}
	track := rec.Track

	_, err = c.api.TrackLike(ctx, djapi.TrackLikeRequest{
		TrackID:          track.ID,
		TrackName:        track.Name,
		TrackArtist:      track.Artist,
		TrackImageURL:    track.ImageURL,
		HighlightedTerms: track.HighlightedTerms,
	})
	if err != nil {
		c.log.Error("undo re-like rejected", "track_id", track.ID, "error", err)
		return false, err
	}

	c.mu.Lock()
	defer c.mu.Unlock()
	if c.undo != rec {
		// The window expired or was replaced while the call ran; the
		// backend state says liked, so keep the display consistent.
		if c.indexLocked(track.ID) < 0 {
			c.tracks = append(c.tracks, track)
			c.renumberLocked()
		}
		return true, nil
	}
	rec.timer.Stop()
	c.undo = nil
	if c.indexLocked(track.ID) < 0 {
		c.tracks = append(c.tracks, track)
		c.renumberLocked()
	}
	return true, nil
}

// installUndoLocked replaces any pending record, cancelling its timer.
func (c *Collection) installUndoLocked(track session.Track) {
	c.clearUndoLocked()
	rec := &UndoRecord{Track: track}
	rec.timer = time.AfterFunc(c.undoTTL, func() { c.expire(rec) })
	c.undo = rec
}

func (c *Collection) clearUndoLocked() {
	if c.undo != nil {
		c.undo.timer.Stop()
		c.undo = nil
	}
}

// Close drops any pending undo; used on component teardown.
func (c *Collection) Close() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.clearUndoLocked()
}

func (c *Collection) expire(rec *UndoRecord) {
	c.mu.Lock()
	if c.undo != rec {
		c.mu.Unlock()
		return
	}
	c.undo = nil
	notify := c.onUndoExpired
	c.mu.Unlock()
	if notify != nil {
		notify(rec.Track)
	}
}

func (c *Collection) indexLocked(trackID string) int {
	for i, t := range c.tracks {
		if t.ID == trackID {
			return i
		}
	}
	return -1
}

func (c *Collection) renumberLocked() {
	for i := range c.tracks {
		c.tracks[i].Position = i + 1
	}
}
