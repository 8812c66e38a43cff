package djapi

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/require"
)

func newTestClient(t *testing.T, handler http.HandlerFunc) *Client {
	t.Helper()
	srv := httptest.NewServer(handler)
	t.Cleanup(srv.Close)
	return New(srv.URL,
		WithSessionCookie("sess-123"),
		WithUserID("user-9"),
		WithHTTPClient(srv.Client()),
	)
}

func TestRequestCarriesCredentials(t *testing.T) {
	var gotCookie, gotUser string
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		if cookie, err := r.Cookie("spotify_session_id"); err == nil {
			gotCookie = cookie.Value
		}
		gotUser = r.Header.Get("X-User-Id")
		json.NewEncoder(w).Encode(historyResponse{})
	})

	_, err := c.History(context.Background(), 50)
	require.NoError(t, err)
	require.Equal(t, "sess-123", gotCookie)
	require.Equal(t, "user-9", gotUser)
}

func TestHistoryDecodesRows(t *testing.T) {
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		require.Equal(t, "/api/chat-history", r.URL.Path)
		require.Equal(t, "25", r.URL.Query().Get("limit"))
		w.Write([]byte(`{"messages":[
			{"id":1,"role":"user","content":"hello"},
			{"id":2,"role":"assistant","content":"hi","tracks":[
				{"position":1,"id":"t1","name":"Song","artist":"Artist",
				 "album":{"name":"Album","images":[{"url":"http://img/1"}]}}
			]}
		]}`))
	})

	rows, err := c.History(context.Background(), 25)
	require.NoError(t, err)
	require.Len(t, rows, 2)
	require.Equal(t, int64(2), rows[1].ID)
	require.Equal(t, "http://img/1", rows[1].Tracks[0].ImageURL())
}

func TestUnauthorizedBecomesErrAuthRequired(t *testing.T) {
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, `{"error":"no session"}`, http.StatusUnauthorized)
	})

	_, err := c.LikedTrackIDs(context.Background())
	require.ErrorIs(t, err, ErrAuthRequired)
}

func TestErrorBodyBecomesBackendError(t *testing.T) {
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusBadGateway)
		w.Write([]byte(`{"error":"Spotify is unavailable right now"}`))
	})

	_, err := c.Recommend(context.Background(), "play something")
	var backendErr *BackendError
	require.ErrorAs(t, err, &backendErr)
	require.Equal(t, "Spotify is unavailable right now", backendErr.Message)
}

func TestUnstructuredErrorBecomesStatusError(t *testing.T) {
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "gateway timeout", http.StatusGatewayTimeout)
	})

	_, err := c.Recommend(context.Background(), "play something")
	var statusErr *StatusError
	require.ErrorAs(t, err, &statusErr)
	require.Equal(t, http.StatusGatewayTimeout, statusErr.StatusCode)
	require.Equal(t, "gateway timeout", statusErr.Body)
}

func TestTrackLikeReturnsConfirmedValue(t *testing.T) {
	var got TrackLikeRequest
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		require.Equal(t, "/api/track-like", r.URL.Path)
		require.NoError(t, json.NewDecoder(r.Body).Decode(&got))
		w.Write([]byte(`{"liked":true}`))
	})

	liked, err := c.TrackLike(context.Background(), TrackLikeRequest{
		TrackID:          "t1",
		TrackName:        "Song",
		TrackArtist:      "Artist",
		HighlightedTerms: []string{"synth"},
	})
	require.NoError(t, err)
	require.True(t, liked)
	require.Equal(t, "t1", got.TrackID)
	require.Equal(t, []string{"synth"}, got.HighlightedTerms)
}

func TestMessageFeedbackPostsBody(t *testing.T) {
	var got messageFeedbackRequest
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		require.Equal(t, "/api/message-feedback", r.URL.Path)
		require.NoError(t, json.NewDecoder(r.Body).Decode(&got))
		w.Write([]byte(`{"status":"ok"}`))
	})

	require.NoError(t, c.MessageFeedback(context.Background(), 42, FeedbackDislike))
	require.Equal(t, int64(42), got.MessageID)
	require.Equal(t, FeedbackDislike, got.FeedbackType)
}

func TestCheckAuthMapsUnauthorized(t *testing.T) {
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusUnauthorized)
	})

	status, err := c.CheckAuth(context.Background())
	require.NoError(t, err)
	require.False(t, status.Authenticated)
}

func TestCheckAuthDecodesUser(t *testing.T) {
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(`{"authenticated":true,"user":{"id":"u1","display_name":"DJ Fan"}}`))
	})

	status, err := c.CheckAuth(context.Background())
	require.NoError(t, err)
	require.True(t, status.Authenticated)
	require.NotNil(t, status.User)
	require.Equal(t, "DJ Fan", status.User.DisplayName)
}

func TestFrequentTerms(t *testing.T) {
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		require.Equal(t, "/api/frequently-liked-terms", r.URL.Path)
		require.Equal(t, "2", r.URL.Query().Get("min_occurrences"))
		w.Write([]byte(`{"terms":["synth","dream"]}`))
	})

	terms, err := c.FrequentTerms(context.Background(), 2)
	require.NoError(t, err)
	require.Equal(t, []string{"synth", "dream"}, terms)
}

func TestDecodeErrorBodyShapes(t *testing.T) {
	require.Equal(t, "bad", decodeErrorBody([]byte(`{"error":"bad"}`)))
	require.Equal(t, `{"code":7}`, decodeErrorBody([]byte(`{"error":{"code":7}}`)))
	require.Empty(t, decodeErrorBody([]byte(`not json`)))
	require.Empty(t, decodeErrorBody([]byte(`{}`)))
}
