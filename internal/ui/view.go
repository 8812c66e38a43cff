package ui

import (
	"fmt"
	"strings"

	"github.com/charmbracelet/lipgloss"

	"aidj/internal/session"
)

type uiTheme struct {
	header     lipgloss.Style
	tab        lipgloss.Style
	tabActive  lipgloss.Style
	userMsg    lipgloss.Style
	djMsg      lipgloss.Style
	trackLine  lipgloss.Style
	trackLiked lipgloss.Style
	termHit    lipgloss.Style
	feedback   lipgloss.Style
	bubble     lipgloss.Style
	status     lipgloss.Style
	errLine    lipgloss.Style
	dim        lipgloss.Style
	inputBox   lipgloss.Style
	selected   lipgloss.Style
}

func newTheme() uiTheme {
	accent := lipgloss.Color("170")
	green := lipgloss.Color("78")
	return uiTheme{
		header:     lipgloss.NewStyle().Bold(true).Foreground(accent),
		tab:        lipgloss.NewStyle().Foreground(lipgloss.Color("244")).Padding(0, 1),
		tabActive:  lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("231")).Background(accent).Padding(0, 1),
		userMsg:    lipgloss.NewStyle().Foreground(lipgloss.Color("81")),
		djMsg:      lipgloss.NewStyle().Foreground(lipgloss.Color("252")),
		trackLine:  lipgloss.NewStyle().Foreground(lipgloss.Color("249")),
		trackLiked: lipgloss.NewStyle().Foreground(green),
		termHit:    lipgloss.NewStyle().Bold(true).Foreground(green),
		feedback:   lipgloss.NewStyle().Foreground(lipgloss.Color("215")),
		bubble: lipgloss.NewStyle().Border(lipgloss.RoundedBorder()).
			BorderForeground(accent).Padding(0, 1),
		status:   lipgloss.NewStyle().Foreground(lipgloss.Color("114")),
		errLine:  lipgloss.NewStyle().Foreground(lipgloss.Color("203")),
		dim:      lipgloss.NewStyle().Foreground(lipgloss.Color("241")),
		inputBox: lipgloss.NewStyle().Border(lipgloss.NormalBorder(), true, false, false, false).BorderForeground(lipgloss.Color("238")),
		selected: lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("231")).Background(lipgloss.Color("62")),
	}
}

func accentSpinnerStyle() lipgloss.Style {
	return lipgloss.NewStyle().Foreground(lipgloss.Color("170"))
}

func (m *Model) resize() {
	if m.width <= 0 || m.height <= 0 {
		return
	}
	m.input.Width = m.width - 6
	m.chatView.Width = m.width
	// header + tabs + input + status rows
	h := m.height - 6
	if h < 3 {
		h = 3
	}
	m.chatView.Height = h
}

func (m *Model) syncChatView(toBottom bool) {
	m.chatView.SetContent(m.renderTimeline())
	if toBottom {
		m.chatView.GotoBottom()
	}
}

func (m Model) View() string {
	var b strings.Builder
	b.WriteString(m.renderHeader())
	b.WriteString("\n")
	switch m.activeTab {
	case tabChat:
		b.WriteString(m.chatView.View())
		b.WriteString("\n")
		b.WriteString(m.theme.inputBox.Width(max(m.width, 1)).Render(m.input.View()))
	case tabLiked:
		b.WriteString(m.renderLiked())
	case tabHelp:
		b.WriteString(m.renderHelp())
	}
	b.WriteString("\n")
	b.WriteString(m.renderStatus())
	return b.String()
}

func (m Model) renderHeader() string {
	names := []string{"chat", "liked songs", "help"}
	var tabs []string
	for i, name := range names {
		style := m.theme.tab
		if tabID(i) == m.activeTab {
			style = m.theme.tabActive
		}
		tabs = append(tabs, style.Render(name))
	}
	badge := m.theme.errLine.Render("○ spotify")
	if m.authenticated {
		label := "● spotify"
		if m.authName != "" {
			label = "● " + m.authName
		}
		badge = m.theme.status.Render(label)
	}
	voice := ""
	if m.voice.Muted() {
		voice = m.theme.dim.Render("  muted")
	} else if m.voice.Speaking() {
		voice = m.theme.status.Render("  ♪ speaking")
	}
	return m.theme.header.Render("aidj") + "  " + strings.Join(tabs, " ") + "  " + badge + voice
}

func (m Model) renderTimeline() string {
	messages := m.timeline.Snapshot()
	width := max(m.chatView.Width-2, 20)

	var b strings.Builder
	if m.loadingHistory {
		b.WriteString(m.theme.dim.Render(m.spinner.View() + " loading chat history..."))
		b.WriteString("\n")
	}
	if len(messages) == 0 && !m.loadingHistory {
		b.WriteString(m.theme.dim.Render("Ask for a vibe, a mood, or an artist to get started."))
		b.WriteString("\n")
	}
	for _, msg := range messages {
		b.WriteString(m.renderMessage(msg, width))
		b.WriteString("\n")
	}
	if m.submitting {
		b.WriteString(m.theme.dim.Render(m.spinner.View() + " thinking..."))
		b.WriteString("\n")
	}
	if text, visible := m.voice.Bubble(); visible {
		b.WriteString(m.theme.bubble.Width(min(width, 60)).Render("♪ " + compactSingleLine(text, 200)))
		b.WriteString("\n")
	}
	return b.String()
}

func (m Model) renderMessage(msg *session.Message, width int) string {
	var b strings.Builder
	if msg.Role == session.RoleUser {
		b.WriteString(m.theme.userMsg.Render("you · " + wrapText(msg.Content, width-6)))
		return b.String()
	}

	b.WriteString(m.theme.djMsg.Render("dj  · " + wrapText(msg.Content, width-6)))
	if mark := m.feedbackMark(msg); mark != "" {
		b.WriteString("  " + m.theme.feedback.Render(mark))
	}
	for i, track := range msg.Tracks {
		b.WriteString("\n")
		line := fmt.Sprintf("   %d. %s — %s", i+1, m.highlightTerms(track.Name), track.Artist)
		if msg.TrackLiked(track.ID) {
			b.WriteString(m.theme.trackLiked.Render(line + " ♥"))
		} else {
			b.WriteString(m.theme.trackLine.Render(line))
		}
	}
	return b.String()
}

func (m Model) feedbackMark(msg *session.Message) string {
	switch {
	case msg.Liked:
		return "▲ liked"
	case msg.Disliked:
		return "▼ disliked"
	}
	return ""
}

// highlightTerms bolds words that show up often in the user's liked
// tracks, so recurring tastes stand out in new recommendations.
func (m Model) highlightTerms(name string) string {
	if len(m.terms) == 0 {
		return name
	}
	words := strings.Fields(name)
	hit := false
	for i, word := range words {
		if _, ok := m.terms[strings.ToLower(strings.Trim(word, ".,!?()"))]; ok {
			words[i] = m.theme.termHit.Render(word)
			hit = true
		}
	}
	if !hit {
		return name
	}
	return strings.Join(words, " ")
}

func (m Model) renderLiked() string {
	tracks := m.collection.Tracks()
	var b strings.Builder
	b.WriteString(m.theme.dim.Render("j/k move · d remove · u undo · r refresh · esc back"))
	b.WriteString("\n\n")
	if len(tracks) == 0 {
		b.WriteString(m.theme.dim.Render("No liked songs yet. Like tracks from the chat with /track <n>."))
		b.WriteString("\n")
	}
	for i, track := range tracks {
		line := fmt.Sprintf(" %3d. %s — %s", track.Position, track.Name, track.Artist)
		if i == m.likedIndex {
			b.WriteString(m.theme.selected.Render(line))
		} else {
			b.WriteString(m.theme.trackLine.Render(line))
		}
		b.WriteString("\n")
	}
	if track, ok := m.collection.PendingUndo(); ok {
		b.WriteString("\n")
		b.WriteString(m.theme.feedback.Render(fmt.Sprintf("removed %q · press u to undo", track.Name)))
		b.WriteString("\n")
	}
	return b.String()
}

func (m Model) renderHelp() string {
	lines := []string{
		"",
		"  enter            send a message to the DJ",
		"  /like /dislike   rate the latest reply",
		"  /track <n>       toggle like on track n of the latest reply",
		"  /liked           open the liked songs tab",
		"  /speak           replay the latest reply out loud",
		"  /mute            toggle speech",
		"  /quit, ctrl+c    exit",
		"  tab              cycle tabs",
		"",
	}
	return m.theme.dim.Render(strings.Join(lines, "\n"))
}

func (m Model) renderStatus() string {
	status := m.statusLine
	if m.submitting {
		status = m.spinner.View() + " " + status
	}
	line := m.theme.status.Render(status)
	if len(m.logs) > 0 {
		line += "  " + m.theme.errLine.Render(m.logs[len(m.logs)-1])
	}
	return line
}

// wrapText hard-wraps at word boundaries for the viewport width.
func wrapText(text string, width int) string {
	if width < 10 {
		width = 10
	}
	var out []string
	for _, para := range strings.Split(text, "\n") {
		words := strings.Fields(para)
		if len(words) == 0 {
			out = append(out, "")
			continue
		}
		line := words[0]
		for _, word := range words[1:] {
			if len(line)+1+len(word) > width {
				out = append(out, line)
				line = word
				continue
			}
			line += " " + word
		}
		out = append(out, line)
	}
	return strings.Join(out, "\n      ")
}

func compactSingleLine(text string, limit int) string {
	text = strings.Join(strings.Fields(text), " ")
	if limit > 0 && len(text) > limit {
		return text[:limit-1] + "…"
	}
	return text
}
