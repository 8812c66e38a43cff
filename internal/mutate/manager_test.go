package mutate

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/require"

	"aidj/internal/djapi"
	"aidj/internal/session"
)

type fakeAPI struct {
	feedbackErr   error
	feedbackCalls []string

	likeConfirmed bool
	likeErr       error
	likeRequests  []djapi.TrackLikeRequest
}

func (f *fakeAPI) MessageFeedback(ctx context.Context, remoteID int64, feedbackType string) error {
	f.feedbackCalls = append(f.feedbackCalls, feedbackType)
	return f.feedbackErr
}

func (f *fakeAPI) TrackLike(ctx context.Context, req djapi.TrackLikeRequest) (bool, error) {
	f.likeRequests = append(f.likeRequests, req)
	if f.likeErr != nil {
		return false, f.likeErr
	}
	return f.likeConfirmed, nil
}

func newTimeline(t *testing.T, assistant *session.Message) *session.Controller {
	t.Helper()
	c := session.NewController(nil, 10, nil)
	c.AppendExchange(session.NewUserMessage("play something", 1), assistant)
	return c
}

func assistantWithTracks(remoteID int64) *session.Message {
	return session.NewAssistantMessage("here you go", []session.Track{
		{Position: 1, ID: "t1", Name: "Track One", Artist: "Artist A", HighlightedTerms: []string{"synth"}},
		{Position: 2, ID: "t2", Name: "Track Two", Artist: "Artist B"},
	}, remoteID)
}

func TestFeedbackLikeThenDislike(t *testing.T) {
	api := &fakeAPI{}
	msg := assistantWithTracks(7)
	mgr := NewManager(api, newTimeline(t, msg), nil)

	require.NoError(t, mgr.SetMessageFeedback(context.Background(), msg.ID, djapi.FeedbackLike))
	require.True(t, msg.Liked)
	require.False(t, msg.Disliked)

	require.NoError(t, mgr.SetMessageFeedback(context.Background(), msg.ID, djapi.FeedbackDislike))
	require.False(t, msg.Liked)
	require.True(t, msg.Disliked)
	require.Equal(t, []string{djapi.FeedbackLike, djapi.FeedbackDislike}, api.feedbackCalls)
}

func TestFeedbackFailureRevertsOnlySetFlag(t *testing.T) {
	api := &fakeAPI{}
	msg := assistantWithTracks(7)
	mgr := NewManager(api, newTimeline(t, msg), nil)

	require.NoError(t, mgr.SetMessageFeedback(context.Background(), msg.ID, djapi.FeedbackLike))

	// The dislike clears Liked optimistically; when the call fails only
	// Disliked reverts, so the cleared Liked stays cleared.
	api.feedbackErr = errors.New("backend down")
	err := mgr.SetMessageFeedback(context.Background(), msg.ID, djapi.FeedbackDislike)
	require.Error(t, err)
	require.False(t, msg.Disliked)
	require.False(t, msg.Liked)
}

func TestFeedbackUnpersistedMessage(t *testing.T) {
	api := &fakeAPI{}
	msg := assistantWithTracks(0)
	mgr := NewManager(api, newTimeline(t, msg), nil)

	err := mgr.SetMessageFeedback(context.Background(), msg.ID, djapi.FeedbackLike)
	require.ErrorIs(t, err, ErrNotPersisted)
	require.False(t, msg.Liked)
	require.Empty(t, api.feedbackCalls)
}

func TestFeedbackUnknownMessage(t *testing.T) {
	mgr := NewManager(&fakeAPI{}, newTimeline(t, assistantWithTracks(7)), nil)
	err := mgr.SetMessageFeedback(context.Background(), "msg-nope", djapi.FeedbackLike)
	require.ErrorIs(t, err, ErrUnknownMessage)
}

func TestTrackLikeConfirmed(t *testing.T) {
	api := &fakeAPI{likeConfirmed: true}
	msg := assistantWithTracks(7)
	mgr := NewManager(api, newTimeline(t, msg), nil)

	refreshed := 0
	mgr.OnTrackLiked(func() { refreshed++ })

	liked, err := mgr.ToggleTrackLike(context.Background(), msg.ID, "t1")
	require.NoError(t, err)
	require.True(t, liked)
	require.True(t, msg.TrackLiked("t1"))
	require.Equal(t, 1, refreshed)

	require.Len(t, api.likeRequests, 1)
	require.Equal(t, "t1", api.likeRequests[0].TrackID)
	require.Equal(t, []string{"synth"}, api.likeRequests[0].HighlightedTerms)
}

func TestTrackUnlikeOmitsTerms(t *testing.T) {
	api := &fakeAPI{likeConfirmed: true}
	msg := assistantWithTracks(7)
	mgr := NewManager(api, newTimeline(t, msg), nil)
	_, err := mgr.ToggleTrackLike(context.Background(), msg.ID, "t1")
	require.NoError(t, err)

	api.likeConfirmed = false
	liked, err := mgr.ToggleTrackLike(context.Background(), msg.ID, "t1")
	require.NoError(t, err)
	require.False(t, liked)
	require.False(t, msg.TrackLiked("t1"))
	require.Nil(t, api.likeRequests[1].HighlightedTerms)
}

func TestTrackLikeFailureRestoresMembership(t *testing.T) {
	api := &fakeAPI{likeErr: errors.New("backend down")}
	msg := assistantWithTracks(7)
	mgr := NewManager(api, newTimeline(t, msg), nil)

	refreshed := 0
	mgr.OnTrackLiked(func() { refreshed++ })

	liked, err := mgr.ToggleTrackLike(context.Background(), msg.ID, "t1")
	require.Error(t, err)
	require.False(t, liked)
	require.False(t, msg.TrackLiked("t1"))
	require.Zero(t, refreshed)
}

func TestTrackLikeBackendValueWins(t *testing.T) {
	// Backend reports not-liked even though the optimistic flip set it;
	// the confirmed value replaces the guess.
	api := &fakeAPI{likeConfirmed: false}
	msg := assistantWithTracks(7)
	mgr := NewManager(api, newTimeline(t, msg), nil)

	liked, err := mgr.ToggleTrackLike(context.Background(), msg.ID, "t1")
	require.NoError(t, err)
	require.False(t, liked)
	require.False(t, msg.TrackLiked("t1"))
}

func TestTrackLikeUnknownTrack(t *testing.T) {
	msg := assistantWithTracks(7)
	mgr := NewManager(&fakeAPI{}, newTimeline(t, msg), nil)

	_, err := mgr.ToggleTrackLike(context.Background(), msg.ID, "t404")
	require.ErrorIs(t, err, ErrUnknownTrack)

	_, err = mgr.ToggleTrackLike(context.Background(), "msg-nope", "t1")
	require.ErrorIs(t, err, ErrUnknownMessage)
}
