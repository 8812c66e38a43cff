// Package ui hosts the terminal front end: a bubbletea program with a
// chat tab, a liked songs tab, and help. All session, mutation, and
// speech logic lives in the internal packages this model drives.
package ui

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strconv"
	"strings"
	"time"

	"github.com/charmbracelet/bubbles/spinner"
	"github.com/charmbracelet/bubbles/textinput"
	"github.com/charmbracelet/bubbles/viewport"
	tea "github.com/charmbracelet/bubbletea"

	"aidj/internal/config"
	"aidj/internal/djapi"
	"aidj/internal/mutate"
	"aidj/internal/session"
	"aidj/internal/speech"
)

const (
	minTermOccurrences = 2
	maxLogLines        = 120
	eventBuffer        = 16
)

type tabID int

const (
	tabChat tabID = iota
	tabLiked
	tabHelp
)

// Model is the bubbletea model for the whole client.
type Model struct {
	cfg config.Config
	api *djapi.Client
	log *slog.Logger

	timeline   *session.Controller
	manager    *mutate.Manager
	collection *mutate.Collection
	voice      *speech.Coordinator

	loadCtx    context.Context
	loadCancel context.CancelFunc

	events chan tea.Msg

	loadingHistory bool
	submitting     bool
	authenticated  bool
	authName       string
	terms          map[string]struct{}

	activeTab  tabID
	likedIndex int
	statusLine string
	logs       []string
	width      int
	height     int

	input    textinput.Model
	chatView viewport.Model
	spinner  spinner.Model
	theme    uiTheme
}

type historyLoadedMsg struct{}

type authMsg struct {
	status djapi.AuthStatus
	err    error
}

type sendDoneMsg struct {
	userText string
	rec      djapi.Recommendation
	err      error
}

type feedbackDoneMsg struct {
	messageID string
	kind      string
	err       error
}

type trackLikeDoneMsg struct {
	messageID string
	trackID   string
	liked     bool
	err       error
}

type termsMsg struct {
	terms []string
	err   error
}

type likedTracksMsg struct {
	rows []djapi.LikedTrackRow
	err  error
}

type unlikeDoneMsg struct {
	trackName string
	err       error
}

type undoDoneMsg struct {
	restored bool
	err      error
}

type undoExpiredMsg struct {
	trackName string
}

type speechStateMsg struct{}

type speechDoneMsg struct{}

type refreshTermsMsg struct{}

// New wires the components together and returns the ready model.
func New(cfg config.Config, api *djapi.Client, log *slog.Logger) Model {
	input := textinput.New()
	input.Prompt = "❯ "
	input.CharLimit = 2000
	input.Placeholder = "Ask your DJ for music. /help lists commands."
	input.Focus()

	sp := spinner.New()
	sp.Spinner = spinner.Points
	sp.Style = accentSpinnerStyle()

	chatView := viewport.New(0, 0)
	chatView.MouseWheelEnabled = true
	chatView.MouseWheelDelta = 3

	timeline := session.NewController(api, cfg.HistoryLimit, log)
	manager := mutate.NewManager(api, timeline, log)
	collection := mutate.NewCollection(api, log)
	collection.SetUndoTTL(time.Duration(cfg.UndoSeconds) * time.Second)

	providers := []speech.Provider{
		speech.NewElevenLabs(cfg.Speech.ElevenAPIKey, log,
			speech.WithVoice(cfg.Speech.VoiceID),
			speech.WithModel(cfg.Speech.ModelID),
			speech.WithPlayer(cfg.Speech.Player),
		),
		speech.NewCommandProvider(cfg.Speech.LocalCommand, cfg.Speech.LocalVoice),
	}
	voice := speech.NewCoordinator(providers, log)
	voice.SetBubbleTTL(time.Duration(cfg.Speech.BubbleSeconds) * time.Second)
	if cfg.Speech.Muted {
		voice.ToggleMute()
	}

	events := make(chan tea.Msg, eventBuffer)
	push := func(msg tea.Msg) {
		select {
		case events <- msg:
		default:
		}
	}
	manager.OnTrackLiked(func() { push(refreshTermsMsg{}) })
	collection.OnUndoExpired(func(track session.Track) { push(undoExpiredMsg{trackName: track.Name}) })
	voice.Notify(func() { push(speechStateMsg{}) })
	voice.OnEnd(func() { push(speechDoneMsg{}) })

	loadCtx, loadCancel := context.WithCancel(context.Background())

	return Model{
		cfg:            cfg,
		api:            api,
		log:            log,
		timeline:       timeline,
		manager:        manager,
		collection:     collection,
		voice:          voice,
		loadCtx:        loadCtx,
		loadCancel:     loadCancel,
		events:         events,
		loadingHistory: true,
		terms:          map[string]struct{}{},
		statusLine:     "loading chat history...",
		logs:           []string{},
		input:          input,
		chatView:       chatView,
		spinner:        sp,
		theme:          newTheme(),
	}
}

func (m Model) Init() tea.Cmd {
	return tea.Batch(
		m.spinner.Tick,
		m.historyCmd(),
		m.authCmd(),
		waitEvent(m.events),
	)
}

// waitEvent bridges async component callbacks into the update loop.
func waitEvent(ch <-chan tea.Msg) tea.Cmd {
	return func() tea.Msg {
		return <-ch
	}
}

func (m Model) historyCmd() tea.Cmd {
	ctrl := m.timeline
	ctx := m.loadCtx
	return func() tea.Msg {
		ctrl.StartHistoryLoad(ctx)
		return historyLoadedMsg{}
	}
}

func (m Model) authCmd() tea.Cmd {
	api := m.api
	return func() tea.Msg {
		ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		status, err := api.CheckAuth(ctx)
		return authMsg{status: status, err: err}
	}
}

func (m Model) sendCmd(text string) tea.Cmd {
	api := m.api
	return func() tea.Msg {
		ctx, cancel := context.WithTimeout(context.Background(), 90*time.Second)
		defer cancel()
		rec, err := api.Recommend(ctx, text)
		return sendDoneMsg{userText: text, rec: rec, err: err}
	}
}

func (m Model) feedbackCmd(messageID, kind string) tea.Cmd {
	mgr := m.manager
	return func() tea.Msg {
		ctx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
		defer cancel()
		err := mgr.SetMessageFeedback(ctx, messageID, kind)
		return feedbackDoneMsg{messageID: messageID, kind: kind, err: err}
	}
}

func (m Model) trackLikeCmd(messageID, trackID string) tea.Cmd {
	mgr := m.manager
	return func() tea.Msg {
		ctx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
		defer cancel()
		liked, err := mgr.ToggleTrackLike(ctx, messageID, trackID)
		return trackLikeDoneMsg{messageID: messageID, trackID: trackID, liked: liked, err: err}
	}
}

func (m Model) termsCmd() tea.Cmd {
	api := m.api
	return func() tea.Msg {
		ctx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
		defer cancel()
		terms, err := api.FrequentTerms(ctx, minTermOccurrences)
		return termsMsg{terms: terms, err: err}
	}
}

func (m Model) likedTracksCmd() tea.Cmd {
	api := m.api
	return func() tea.Msg {
		ctx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
		defer cancel()
		rows, err := api.LikedTracks(ctx)
		return likedTracksMsg{rows: rows, err: err}
	}
}

func (m Model) unlikeCmd(trackID, trackName string) tea.Cmd {
	coll := m.collection
	return func() tea.Msg {
		ctx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
		defer cancel()
		err := coll.Unlike(ctx, trackID)
		return unlikeDoneMsg{trackName: trackName, err: err}
	}
}

func (m Model) undoCmd() tea.Cmd {
	coll := m.collection
	return func() tea.Msg {
		ctx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
		defer cancel()
		restored, err := coll.ConsumeUndo(ctx)
		return undoDoneMsg{restored: restored, err: err}
	}
}

func (m Model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	var cmds []tea.Cmd
	switch msg := msg.(type) {
	case historyLoadedMsg:
		m.loadingHistory = false
		if n := m.timeline.Len(); n > 0 {
			m.statusLine = fmt.Sprintf("restored %d messages", n)
		} else {
			m.statusLine = "ready"
		}
		m.syncChatView(true)
		cmds = append(cmds, m.termsCmd(), m.likedTracksCmd())
	case authMsg:
		if msg.err != nil {
			m.logError(msg.err)
			break
		}
		m.authenticated = msg.status.Authenticated
		if msg.status.User != nil {
			m.authName = msg.status.User.DisplayName
		}
		if !m.authenticated {
			m.statusLine = "not connected to Spotify · recommendations need a signed-in backend session"
		}
	case sendDoneMsg:
		m.submitting = false
		cmds = append(cmds, m.finishSend(msg)...)
	case feedbackDoneMsg:
		if msg.err != nil {
			m.logError(msg.err)
			if errors.Is(msg.err, mutate.ErrNotPersisted) {
				m.statusLine = "feedback unavailable for this message"
			} else {
				m.statusLine = "feedback not saved"
			}
		} else {
			m.statusLine = "feedback saved: " + msg.kind
		}
		m.syncChatView(false)
	case trackLikeDoneMsg:
		if msg.err != nil {
			m.logError(msg.err)
			m.statusLine = "track like not saved"
		} else if msg.liked {
			m.statusLine = "track liked"
		} else {
			m.statusLine = "track unliked"
		}
		m.syncChatView(false)
	case refreshTermsMsg:
		cmds = append(cmds, m.termsCmd(), waitEvent(m.events))
	case termsMsg:
		if msg.err != nil {
			m.logError(msg.err)
			break
		}
		m.terms = map[string]struct{}{}
		for _, term := range msg.terms {
			m.terms[strings.ToLower(term)] = struct{}{}
		}
		m.syncChatView(false)
	case likedTracksMsg:
		if msg.err != nil {
			if !errors.Is(msg.err, djapi.ErrAuthRequired) {
				m.logError(msg.err)
			}
			break
		}
		m.collection.Replace(msg.rows)
		m.clampLikedIndex()
	case unlikeDoneMsg:
		if msg.err != nil {
			m.logError(msg.err)
			m.statusLine = "could not unlike " + msg.trackName
		} else {
			m.statusLine = fmt.Sprintf("removed %q · /undo within %ds", msg.trackName, m.cfg.UndoSeconds)
		}
		m.clampLikedIndex()
	case undoDoneMsg:
		if msg.err != nil {
			m.logError(msg.err)
			m.statusLine = "undo failed · try again before it expires"
		} else if msg.restored {
			m.statusLine = "track restored"
		} else {
			m.statusLine = "nothing to undo"
		}
		m.clampLikedIndex()
	case undoExpiredMsg:
		m.statusLine = fmt.Sprintf("undo window for %q expired", msg.trackName)
		cmds = append(cmds, waitEvent(m.events))
	case speechStateMsg:
		cmds = append(cmds, waitEvent(m.events))
	case speechDoneMsg:
		m.statusLine = "done speaking"
		cmds = append(cmds, waitEvent(m.events))
	case tea.WindowSizeMsg:
		m.width = msg.Width
		m.height = msg.Height
		m.resize()
		m.syncChatView(false)
	case spinner.TickMsg:
		var cmd tea.Cmd
		m.spinner, cmd = m.spinner.Update(msg)
		cmds = append(cmds, cmd)
	case tea.MouseMsg:
		if m.activeTab == tabChat {
			var cmd tea.Cmd
			m.chatView, cmd = m.chatView.Update(msg)
			cmds = append(cmds, cmd)
		}
	case tea.KeyMsg:
		newModel, cmd, handled := m.handleKey(msg)
		if handled {
			if cmd != nil {
				cmds = append(cmds, cmd)
			}
			return newModel, tea.Batch(cmds...)
		}
		m = newModel
	}

	if m.activeTab == tabChat {
		var cmd tea.Cmd
		m.input, cmd = m.input.Update(msg)
		cmds = append(cmds, cmd)
	}
	return m, tea.Batch(cmds...)
}

// finishSend reconciles a completed send: success and backend-rejected
// sends both append an atomic user/assistant pair, the latter carrying
// the backend's error text as the assistant reply.
func (m *Model) finishSend(msg sendDoneMsg) []tea.Cmd {
	var user, assistant *session.Message
	if msg.err != nil {
		text := "Sorry, I'm having trouble connecting. Please make sure the backend is running."
		var backendErr *djapi.BackendError
		if errors.As(msg.err, &backendErr) {
			text = backendErr.Message
		} else if errors.Is(msg.err, djapi.ErrAuthRequired) {
			text = "Please connect your Spotify account before asking for music."
		} else {
			m.logError(msg.err)
		}
		user = session.NewUserMessage(msg.userText, 0)
		assistant = session.NewAssistantMessage(text, nil, 0)
		m.statusLine = "send failed"
	} else {
		content := msg.rec.DJResponse
		if content == "" {
			content = "I'm ready to help you discover music!"
		}
		user = session.NewUserMessage(msg.userText, msg.rec.UserMessageDBID)
		assistant = session.NewAssistantMessage(content, session.TracksFromPayload(msg.rec.Tracks), msg.rec.AssistantMessageDBID)
		m.statusLine = fmt.Sprintf("%d tracks recommended", len(msg.rec.Tracks))
	}

	m.timeline.AppendExchange(user, assistant)
	m.syncChatView(true)

	if latest := m.timeline.LatestAssistant(); latest != nil {
		m.voice.ObserveLatest(latest.ID, latest.Content)
	}
	return nil
}

// handleKey routes keys. The bool result reports whether the key was
// consumed; unconsumed keys fall through to the text input.
func (m Model) handleKey(msg tea.KeyMsg) (Model, tea.Cmd, bool) {
	key := msg.String()
	if key == "ctrl+c" {
		return m, m.teardown(), true
	}
	if key == "tab" {
		m.activeTab = (m.activeTab + 1) % 3
		m.syncFocus()
		return m, nil, true
	}

	switch m.activeTab {
	case tabLiked:
		return m.handleLikedKey(key)
	case tabHelp:
		if key == "esc" || key == "q" {
			m.activeTab = tabChat
			m.syncFocus()
		}
		return m, nil, true
	}

	// Chat tab: enter submits either a slash command or a message.
	if key == "enter" {
		raw := strings.TrimSpace(m.input.Value())
		if raw == "" {
			return m, nil, true
		}
		if strings.HasPrefix(raw, "/") {
			m.input.SetValue("")
			return m.handleSlash(raw)
		}
		if m.submitting {
			m.statusLine = "still thinking about the last one..."
			return m, nil, true
		}
		m.input.SetValue("")
		m.submitting = true
		m.statusLine = "mixing up something good..."
		return m, m.sendCmd(raw), true
	}
	return m, nil, false
}

func (m Model) handleLikedKey(key string) (Model, tea.Cmd, bool) {
	tracks := m.collection.Tracks()
	switch key {
	case "esc":
		m.activeTab = tabChat
		m.syncFocus()
	case "up", "k":
		if m.likedIndex > 0 {
			m.likedIndex--
		}
	case "down", "j":
		if m.likedIndex < len(tracks)-1 {
			m.likedIndex++
		}
	case "r":
		return m, m.likedTracksCmd(), true
	case "d":
		if m.likedIndex >= 0 && m.likedIndex < len(tracks) {
			track := tracks[m.likedIndex]
			return m, m.unlikeCmd(track.ID, track.Name), true
		}
	case "u":
		if _, ok := m.collection.PendingUndo(); ok {
			return m, m.undoCmd(), true
		}
		m.statusLine = "nothing to undo"
	}
	return m, nil, true
}

// handleSlash implements the chat-tab command palette.
func (m Model) handleSlash(raw string) (Model, tea.Cmd, bool) {
	parts := strings.Fields(raw)
	switch parts[0] {
	case "/help":
		m.activeTab = tabHelp
		m.syncFocus()
	case "/liked":
		m.activeTab = tabLiked
		m.syncFocus()
		return m, m.likedTracksCmd(), true
	case "/like", "/dislike":
		latest := m.timeline.LatestAssistant()
		if latest == nil {
			m.statusLine = "no reply to rate yet"
			return m, nil, true
		}
		kind := djapi.FeedbackLike
		if parts[0] == "/dislike" {
			kind = djapi.FeedbackDislike
		}
		return m, m.feedbackCmd(latest.ID, kind), true
	case "/track":
		if len(parts) < 2 {
			m.statusLine = "usage: /track <number>"
			return m, nil, true
		}
		latest := m.timeline.LatestAssistant()
		if latest == nil || len(latest.Tracks) == 0 {
			m.statusLine = "no tracks to like yet"
			return m, nil, true
		}
		n, err := strconv.Atoi(parts[1])
		if err != nil || n < 1 || n > len(latest.Tracks) {
			m.statusLine = fmt.Sprintf("pick a track between 1 and %d", len(latest.Tracks))
			return m, nil, true
		}
		return m, m.trackLikeCmd(latest.ID, latest.Tracks[n-1].ID), true
	case "/mute":
		if m.voice.ToggleMute() {
			m.statusLine = "muted"
		} else {
			m.statusLine = "unmuted"
		}
	case "/speak":
		if latest := m.timeline.LatestAssistant(); latest != nil {
			m.voice.Speak(latest.Content)
			m.statusLine = "speaking"
		} else {
			m.statusLine = "nothing to speak yet"
		}
	case "/quit":
		return m, m.teardown(), true
	default:
		m.statusLine = "unknown command: " + parts[0]
	}
	return m, nil, true
}

// teardown cancels hydration and releases speech before quitting.
func (m Model) teardown() tea.Cmd {
	m.loadCancel()
	m.timeline.CancelHistoryLoad()
	m.voice.Close()
	m.collection.Close()
	return tea.Quit
}

func (m *Model) syncFocus() {
	if m.activeTab == tabChat {
		m.input.Focus()
	} else {
		m.input.Blur()
	}
}

func (m *Model) clampLikedIndex() {
	n := len(m.collection.Tracks())
	if m.likedIndex >= n {
		m.likedIndex = n - 1
	}
	if m.likedIndex < 0 {
		m.likedIndex = 0
	}
}

func (m *Model) logError(err error) {
	if err == nil {
		return
	}
	m.log.Error("ui error", "error", err)
	m.appendLog(compactSingleLine(err.Error(), 160))
}

func (m *Model) appendLog(line string) {
	m.logs = append(m.logs, time.Now().Format("15:04:05")+" "+line)
	if len(m.logs) > maxLogLines {
		m.logs = m.logs[len(m.logs)-maxLogLines:]
	}
}
