package session

import (
	"fmt"

	"github.com/google/uuid"
)

const (
	RoleUser      = "user"
	RoleAssistant = "assistant"
)

// Track is one recommended song attached to an assistant message.
type Track struct {
	Position         int
	ID               string
	Name             string
	Artist           string
	ImageURL         string
	PreviewURL       string
	ExternalURL      string
	DurationMS       int
	HighlightedTerms []string
}

// Message is a single timeline entry. ID, Role, and Content are fixed at
// creation; Liked, Disliked, and LikedTrackIDs are owned by the mutation
// manager and only ever touched through Controller.MutateMessage.
type Message struct {
	ID       string
	RemoteID int64
	Role     string
	Content  string
	Tracks   []Track

	Liked         bool
	Disliked      bool
	LikedTrackIDs map[string]struct{}
}

// NewUserMessage builds a user entry. remoteID is zero when the backend
// did not persist the message (feedback on it stays disabled).
func NewUserMessage(content string, remoteID int64) *Message {
	return &Message{
		ID:       "msg-" + uuid.NewString(),
		RemoteID: remoteID,
		Role:     RoleUser,
		Content:  content,
	}
}

// NewAssistantMessage builds an assistant entry with its track list.
func NewAssistantMessage(content string, tracks []Track, remoteID int64) *Message {
	return &Message{
		ID:            "msg-" + uuid.NewString(),
		RemoteID:      remoteID,
		Role:          RoleAssistant,
		Content:       content,
		Tracks:        tracks,
		LikedTrackIDs: map[string]struct{}{},
	}
}

// newHistoryMessage builds an entry restored from the remote store.
func newHistoryMessage(remoteID int64, role, content string, tracks []Track) *Message {
	m := &Message{
		ID:       fmt.Sprintf("db-%d", remoteID),
		RemoteID: remoteID,
		Role:     role,
		Content:  content,
		Tracks:   tracks,
	}
	if role == RoleAssistant {
		m.LikedTrackIDs = map[string]struct{}{}
	}
	return m
}

// TrackByID returns the track carried by this message, if any.
func (m *Message) TrackByID(trackID string) (Track, bool) {
	for _, t := range m.Tracks {
		if t.ID == trackID {
			return t, true
		}
	}
	return Track{}, false
}

// TrackLiked reports membership in the message's liked set.
func (m *Message) TrackLiked(trackID string) bool {
	if m.LikedTrackIDs == nil {
		return false
	}
	_, ok := m.LikedTrackIDs[trackID]
	return ok
}

// SetTrackLiked rewrites membership in the liked set. Callers must hold
// the controller lock (use Controller.MutateMessage).
func (m *Message) SetTrackLiked(trackID string, liked bool) {
	if m.LikedTrackIDs == nil {
		m.LikedTrackIDs = map[string]struct{}{}
	}
	if liked {
		m.LikedTrackIDs[trackID] = struct{}{}
		return
	}
	delete(m.LikedTrackIDs, trackID)
}
