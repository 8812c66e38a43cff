package session

// Guard keeps stale history loads from clobbering live interaction. Both
// flags are write-once within a session: once either is set, every
// in-flight hydration continuation must discard its result.
type Guard struct {
	hasNewMessages   bool
	historyCommitted bool
}

// Tripped reports whether hydration is no longer allowed to write.
func (g *Guard) Tripped() bool {
	return g.hasNewMessages || g.historyCommitted
}

// markInteracted is called when the user produces a new exchange. It
// closes the hydration window permanently.
func (g *Guard) markInteracted() {
	g.hasNewMessages = true
	g.historyCommitted = true
}

// markCommitted records that hydration finished (with or without rows).
func (g *Guard) markCommitted() {
	g.historyCommitted = true
}

// HasNewMessages reports whether the user has sent anything this session.
func (g *Guard) HasNewMessages() bool {
	return g.hasNewMessages
}

// HistoryCommitted reports whether the hydration window is closed.
func (g *Guard) HistoryCommitted() bool {
	return g.historyCommitted
}
