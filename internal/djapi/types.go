package djapi

// HistoryMessage is one persisted row from GET /api/chat-history.
type HistoryMessage struct {
	ID      int64          `json:"id"`
	Role    string         `json:"role"`
	Content string         `json:"content"`
	Tracks  []TrackPayload `json:"tracks,omitempty"`
}

type historyResponse struct {
	Messages []HistoryMessage `json:"messages"`
}

// TrackPayload mirrors the backend's Spotify track shape. Only the
// fields the client renders or echoes back on like calls are decoded.
type TrackPayload struct {
	Position         int          `json:"position"`
	ID               string       `json:"id"`
	Name             string       `json:"name"`
	Artist           string       `json:"artist"`
	Album            AlbumPayload `json:"album"`
	PreviewURL       string       `json:"preview_url"`
	ExternalURL      string       `json:"external_url"`
	DurationMS       int          `json:"duration_ms"`
	Popularity       int          `json:"popularity"`
	HighlightedTerms []string     `json:"highlighted_terms,omitempty"`
}

type AlbumPayload struct {
	Name   string `json:"name"`
	Images []struct {
		URL string `json:"url"`
	} `json:"images"`
}

// ImageURL returns the first album image, the field like calls echo back.
func (t TrackPayload) ImageURL() string {
	if len(t.Album.Images) == 0 {
		return ""
	}
	return t.Album.Images[0].URL
}

type likedTrackIDsResponse struct {
	TrackIDs []string `json:"track_ids"`
}

// LikedTrackRow is one row from GET /api/liked-tracks-full, feeding the
// liked songs collection view.
type LikedTrackRow struct {
	ID            int64  `json:"id"`
	TrackID       string `json:"track_id"`
	TrackName     string `json:"track_name"`
	TrackArtist   string `json:"track_artist"`
	TrackImageURL string `json:"track_image_url"`
	PreviewURL    string `json:"preview_url"`
	DurationMS    int    `json:"duration_ms"`
	CreatedAt     string `json:"created_at"`
}

// Recommendation is the reply to POST /api/dj-recommend.
type Recommendation struct {
	DJResponse           string         `json:"dj_response"`
	Tracks               []TrackPayload `json:"tracks"`
	Mood                 string         `json:"mood,omitempty"`
	UserMessageDBID      int64          `json:"user_message_db_id"`
	AssistantMessageDBID int64          `json:"assistant_message_db_id"`
}

// TrackLikeRequest is the body of POST /api/track-like. HighlightedTerms
// is only populated when liking, matching the web client.
type TrackLikeRequest struct {
	TrackID          string   `json:"track_id"`
	TrackName        string   `json:"track_name"`
	TrackArtist      string   `json:"track_artist"`
	TrackImageURL    string   `json:"track_image_url,omitempty"`
	HighlightedTerms []string `json:"highlighted_terms,omitempty"`
}

type trackLikeResponse struct {
	Liked bool `json:"liked"`
}

type messageFeedbackRequest struct {
	MessageID    int64  `json:"message_id"`
	FeedbackType string `json:"feedback_type"`
}

type recommendRequest struct {
	Message string `json:"message"`
}

type frequentTermsResponse struct {
	Terms []string `json:"terms"`
}

// AuthStatus is the reply to GET /api/spotify-auth.
type AuthStatus struct {
	Authenticated bool `json:"authenticated"`
	User          *struct {
		ID          string `json:"id"`
		DisplayName string `json:"display_name"`
	} `json:"user,omitempty"`
}
