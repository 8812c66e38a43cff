// Package mutate applies user-initiated like state changes optimistically
// and reconciles them against the backend, reverting on failure. Mutation
// calls are never aborted mid-flight: they run to completion and revert,
// which is cheaper and safer than partial-cancel semantics for single
// small writes.
package mutate

import (
	"context"
	"errors"
	"io"
	"log/slog"

	"aidj/internal/djapi"
	"aidj/internal/session"
)

// ErrNotPersisted is returned for feedback on a message the backend
// never stored; there is no remote id to attach the feedback to.
var ErrNotPersisted = errors.New("mutate: message not persisted")

// ErrUnknownMessage is returned when the target message left no trace in
// the timeline, which should not happen during a session.
var ErrUnknownMessage = errors.New("mutate: message not found")

// ErrUnknownTrack is returned when the message carries no such track.
var ErrUnknownTrack = errors.New("mutate: track not found")

// FeedbackAPI is the slice of the backend the manager confirms against.
type FeedbackAPI interface {
	MessageFeedback(ctx context.Context, remoteID int64, feedbackType string) error
	TrackLike(ctx context.Context, req djapi.TrackLikeRequest) (bool, error)
}

// Manager mutates timeline entries in place through the session
// controller, which serializes access to the shared state.
type Manager struct {
	api      FeedbackAPI
	timeline *session.Controller
	log      *slog.Logger

	// onTrackLiked fires after every confirmed track-like mutation so
	// the host can refresh derived aggregates. Failures of that refresh
	// never touch like state.
	onTrackLiked func()
}

func NewManager(api FeedbackAPI, timeline *session.Controller, log *slog.Logger) *Manager {
	if log == nil {
		log = slog.New(slog.NewTextHandler(io.Discard, nil))
	}
	return &Manager{api: api, timeline: timeline, log: log}
}

// OnTrackLiked registers the fire-and-forget aggregate refresh hook.
func (m *Manager) OnTrackLiked(fn func()) {
	m.onTrackLiked = fn
}

// SetMessageFeedback flips the message's like/dislike flags immediately
// (mutually exclusive) and confirms with the backend. On failure only
// the flag just set reverts to its prior value; feedback is
// last-write-wins from the user's point of view.
func (m *Manager) SetMessageFeedback(ctx context.Context, messageID, kind string) error {
	var (
		remoteID      int64
		priorLiked    bool
		priorDisliked bool
		persisted     bool
	)
	found := m.timeline.MutateMessage(messageID, func(msg *session.Message) {
		remoteID = msg.RemoteID
		if remoteID == 0 {
			return
		}
		persisted = true
		priorLiked = msg.Liked
		priorDisliked = msg.Disliked
		if kind == djapi.FeedbackLike {
			msg.Liked = true
			msg.Disliked = false
		} else {
			msg.Disliked = true
			msg.Liked = false
		}
	})
	if !found {
		return ErrUnknownMessage
	}
	if !persisted {
		m.log.Warn("feedback on unpersisted message", "message_id", messageID)
		return ErrNotPersisted
	}

	if err := m.api.MessageFeedback(ctx, remoteID, kind); err != nil {
		m.timeline.MutateMessage(messageID, func(msg *session.Message) {
			if kind == djapi.FeedbackLike {
				msg.Liked = priorLiked
			} else {
				msg.Disliked = priorDisliked
			}
		})
		m.log.Error("message feedback rejected", "message_id", messageID, "kind", kind, "error", err)
		return err
	}
	return nil
}

// ToggleTrackLike flips a track's membership in the message's liked set
// before the network call, then reconciles with the backend's
// authoritative liked value. A failed call restores the pre-call
// membership; membership is always re-derived under the timeline lock,
// never from a captured snapshot.
func (m *Manager) ToggleTrackLike(ctx context.Context, messageID, trackID string) (liked bool, err error) {
	var (
		track    session.Track
		wasLiked bool
		haveTrk  bool
	)
	found := m.timeline.MutateMessage(messageID, func(msg *session.Message) {
		track, haveTrk = msg.TrackByID(trackID)
		if !haveTrk {
			return
		}
		wasLiked = msg.TrackLiked(trackID)
		msg.SetTrackLiked(trackID, !wasLiked)
	})
	if !found {
		return false, ErrUnknownMessage
	}
	if !haveTrk {
		return false, ErrUnknownTrack
	}

	req := djapi.TrackLikeRequest{
		TrackID:       trackID,
		TrackName:     track.Name,
		TrackArtist:   track.Artist,
		TrackImageURL: track.ImageURL,
	}
	if !wasLiked {
		// Terms only accompany a like, matching the backend contract.
		req.HighlightedTerms = track.HighlightedTerms
	}

	confirmed, err := m.api.TrackLike(ctx, req)
	if err != nil {
		m.timeline.MutateMessage(messageID, func(msg *session.Message) {
			msg.SetTrackLiked(trackID, wasLiked)
		})
		m.log.Error("track like rejected", "track_id", trackID, "error", err)
		return wasLiked, err
	}

	// The backend value wins over the optimistic flip: a concurrent like
	// from another client converges instead of oscillating.
	m.timeline.MutateMessage(messageID, func(msg *session.Message) {
		msg.SetTrackLiked(trackID, confirmed)
	})
	if m.onTrackLiked != nil {
		m.onTrackLiked()
	}
	return confirmed, nil
}
