// Package speech serializes voice output: at most one utterance is
// active system-wide, tied to the newest assistant reply, resolved
// through an ordered provider chain.
package speech

import (
	"context"
	"io"
	"log/slog"
	"sync"
	"time"
)

// DefaultBubbleTTL is how long the caption bubble stays up after a new
// assistant reply unless another one arrives first.
const DefaultBubbleTTL = 30 * time.Second

// Provider is one synthesis backend. Speak blocks until playback ends
// or the context is cancelled; a nil return means natural completion.
// Unavailable providers are skipped without counting as failures.
type Provider interface {
	Name() string
	Available() bool
	Speak(ctx context.Context, text string) error
}

// Coordinator owns the single active utterance handle. Starting a new
// utterance, muting, or cancelling always releases the previous one, and
// a released utterance never fires OnEnd.
type Coordinator struct {
	providers []Provider
	log       *slog.Logger

	mu           sync.Mutex
	muted        bool
	speaking     bool
	lastSpokenID string
	gen          uint64
	cancelActive context.CancelFunc

	bubbleTTL     time.Duration
	bubbleText    string
	bubbleVisible bool
	bubbleTimer   *time.Timer

	onEnd  func()
	notify func()
}

func NewCoordinator(providers []Provider, log *slog.Logger) *Coordinator {
	if log == nil {
		log = slog.New(slog.NewTextHandler(io.Discard, nil))
	}
	return &Coordinator{
		providers: providers,
		log:       log,
		bubbleTTL: DefaultBubbleTTL,
	}
}

// OnEnd registers the callback fired exactly once per utterance that
// completes naturally. Cancelled or superseded utterances never fire it.
func (c *Coordinator) OnEnd(fn func()) {
	c.mu.Lock()
	c.onEnd = fn
	c.mu.Unlock()
}

// Notify registers a hook fired off-loop whenever speaking or bubble
// state changes asynchronously, so a host event loop can repaint.
func (c *Coordinator) Notify(fn func()) {
	c.mu.Lock()
	c.notify = fn
	c.mu.Unlock()
}

// SetBubbleTTL overrides the caption window. Zero or negative keeps the
// default.
func (c *Coordinator) SetBubbleTTL(ttl time.Duration) {
	if ttl > 0 {
		c.mu.Lock()
		c.bubbleTTL = ttl
		c.mu.Unlock()
	}
}

// ObserveLatest is called whenever the timeline's latest qualifying
// entry changes identity, with that entry's id and content. Re-observing
// the same entry is a no-op, so unrelated repaints never restart speech.
func (c *Coordinator) ObserveLatest(id, text string) {
	if id == "" {
		return
	}
	c.mu.Lock()
	if id == c.lastSpokenID {
		c.mu.Unlock()
		return
	}
	c.lastSpokenID = id
	c.stopActiveLocked()
	c.showBubbleLocked(text)
	if !c.muted && text != "" {
		c.startUtteranceLocked(text)
	}
	c.mu.Unlock()
}

// Speak cancels any current utterance and speaks text through the
// provider chain. Muted coordinators stay silent.
func (c *Coordinator) Speak(text string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.stopActiveLocked()
	if c.muted || text == "" {
		return
	}
	c.startUtteranceLocked(text)
}

// Cancel stops any in-flight synthesis and playback. Safe to call when
// nothing is active.
func (c *Coordinator) Cancel() {
	c.mu.Lock()
	c.stopActiveLocked()
	c.mu.Unlock()
}

// ToggleMute flips mute state; muting silences the active utterance.
func (c *Coordinator) ToggleMute() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.muted = !c.muted
	if c.muted {
		c.stopActiveLocked()
	}
	return c.muted
}

// Muted reports the mute flag.
func (c *Coordinator) Muted() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.muted
}

// Speaking reports whether an utterance is active.
func (c *Coordinator) Speaking() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.speaking
}

// Bubble returns the caption text and whether it is visible.
func (c *Coordinator) Bubble() (string, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.bubbleText, c.bubbleVisible
}

// Close releases the active utterance and the bubble timer.
func (c *Coordinator) Close() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.stopActiveLocked()
	if c.bubbleTimer != nil {
		c.bubbleTimer.Stop()
		c.bubbleTimer = nil
	}
	c.bubbleVisible = false
}

// stopActiveLocked releases the current utterance handle. Bumping the
// generation makes any in-flight run's completion a stale no-op, which
// is what keeps OnEnd from firing for cancelled utterances.
func (c *Coordinator) stopActiveLocked() {
	c.gen++
	if c.cancelActive != nil {
		c.cancelActive()
		c.cancelActive = nil
	}
	c.speaking = false
}

func (c *Coordinator) startUtteranceLocked(text string) {
	ctx, cancel := context.WithCancel(context.Background())
	c.cancelActive = cancel
	c.speaking = true
	gen := c.gen
	go c.run(ctx, gen, text)
}

// run walks the provider chain until one finishes the utterance. Only
// the run matching the current generation may report completion.
func (c *Coordinator) run(ctx context.Context, gen uint64, text string) {
	for _, p := range c.providers {
		if !p.Available() {
			continue
		}
		err := p.Speak(ctx, text)
		if err == nil {
			c.finish(gen, true)
			return
		}
		if ctx.Err() != nil {
			c.finish(gen, false)
			return
		}
		c.log.Warn("synthesis provider failed", "provider", p.Name(), "error", err)
	}
	c.finish(gen, false)
}

func (c *Coordinator) finish(gen uint64, completed bool) {
	c.mu.Lock()
	if gen != c.gen {
		c.mu.Unlock()
		return
	}
	c.speaking = false
	if c.cancelActive != nil {
		c.cancelActive()
		c.cancelActive = nil
	}
	onEnd := c.onEnd
	notify := c.notify
	c.mu.Unlock()

	if completed && onEnd != nil {
		onEnd()
	}
	if notify != nil {
		notify()
	}
}

func (c *Coordinator) showBubbleLocked(text string) {
	if c.bubbleTimer != nil {
		c.bubbleTimer.Stop()
	}
	c.bubbleText = text
	c.bubbleVisible = text != ""
	if !c.bubbleVisible {
		return
	}
	c.bubbleTimer = time.AfterFunc(c.bubbleTTL, func() {
		c.mu.Lock()
		if c.bubbleText != text {
			c.mu.Unlock()
			return
		}
		c.bubbleVisible = false
		notify := c.notify
		c.mu.Unlock()
		if notify != nil {
			notify()
		}
	})
}
