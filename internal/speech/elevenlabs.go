package speech

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"os"
	"os/exec"
	"strings"
	"time"
)

const (
	elevenLabsBaseURL = "https://api.elevenlabs.io/v1"
	// Rachel, the voice the web client defaults to.
	DefaultVoiceID    = "21m00Tcm4TlvDq8ikWAM"
	DefaultModelID    = "eleven_multilingual_v2"
	synthesizeTimeout = 20 * time.Second
)

// playerCandidates are tried in order when no player is configured.
var playerCandidates = [][]string{
	{"afplay"},
	{"mpv", "--no-video", "--really-quiet"},
	{"ffplay", "-nodisp", "-autoexit", "-loglevel", "quiet"},
}

// ElevenLabs synthesizes remotely and plays the returned audio through a
// local player process. Unconfigured (no API key) it reports itself
// unavailable so the chain falls through without an error.
type ElevenLabs struct {
	apiKey  string
	voiceID string
	modelID string
	baseURL string
	player  []string
	httpc   *http.Client
	log     *slog.Logger
}

type ElevenLabsOption func(*ElevenLabs)

func WithVoice(voiceID string) ElevenLabsOption {
	return func(p *ElevenLabs) {
		if voiceID != "" {
			p.voiceID = voiceID
		}
	}
}

func WithModel(modelID string) ElevenLabsOption {
	return func(p *ElevenLabs) {
		if modelID != "" {
			p.modelID = modelID
		}
	}
}

// WithPlayer overrides the audio player command line.
func WithPlayer(command []string) ElevenLabsOption {
	return func(p *ElevenLabs) {
		if len(command) > 0 {
			p.player = command
		}
	}
}

func WithBaseURL(baseURL string) ElevenLabsOption {
	return func(p *ElevenLabs) {
		if baseURL != "" {
			p.baseURL = strings.TrimRight(baseURL, "/")
		}
	}
}

func WithElevenHTTPClient(h *http.Client) ElevenLabsOption {
	return func(p *ElevenLabs) {
		if h != nil {
			p.httpc = h
		}
	}
}

func NewElevenLabs(apiKey string, log *slog.Logger, opts ...ElevenLabsOption) *ElevenLabs {
	if log == nil {
		log = slog.New(slog.NewTextHandler(io.Discard, nil))
	}
	p := &ElevenLabs{
		apiKey:  strings.TrimSpace(apiKey),
		voiceID: DefaultVoiceID,
		modelID: DefaultModelID,
		baseURL: elevenLabsBaseURL,
		httpc:   &http.Client{Timeout: synthesizeTimeout},
		log:     log,
	}
	for _, opt := range opts {
		opt(p)
	}
	return p
}

func (p *ElevenLabs) Name() string { return "elevenlabs" }

// Available requires an API key and a playable player command.
func (p *ElevenLabs) Available() bool {
	if p.apiKey == "" {
		return false
	}
	return p.resolvePlayer() != nil
}

func (p *ElevenLabs) Speak(ctx context.Context, text string) error {
	audio, err := p.synthesize(ctx, text)
	if err != nil {
		return err
	}
	return p.play(ctx, audio)
}

func (p *ElevenLabs) synthesize(ctx context.Context, text string) ([]byte, error) {
	body, err := json.Marshal(map[string]string{
		"text":     strings.TrimSpace(text),
		"model_id": p.modelID,
	})
	if err != nil {
		return nil, fmt.Errorf("speech: encode synthesize request: %w", err)
	}
	url := p.baseURL + "/text-to-speech/" + p.voiceID
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(body))
	if err != nil {
		return nil, fmt.Errorf("speech: build synthesize request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("xi-api-key", p.apiKey)

	resp, err := p.httpc.Do(req)
	if err != nil {
		return nil, fmt.Errorf("speech: synthesize call: %w", err)
	}
	defer resp.Body.Close()
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		io.Copy(io.Discard, resp.Body)
		return nil, fmt.Errorf("speech: synthesize returned status %d", resp.StatusCode)
	}
	audio, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("speech: read audio: %w", err)
	}
	if len(audio) == 0 {
		return nil, fmt.Errorf("speech: synthesize returned empty audio")
	}
	return audio, nil
}

// play writes the audio to a temp file and hands it to the player
// process; the context tears the process down on cancellation.
func (p *ElevenLabs) play(ctx context.Context, audio []byte) error {
	player := p.resolvePlayer()
	if player == nil {
		return fmt.Errorf("speech: no audio player found")
	}

	f, err := os.CreateTemp("", "aidj-tts-*.mp3")
	if err != nil {
		return fmt.Errorf("speech: temp audio file: %w", err)
	}
	path := f.Name()
	defer os.Remove(path)
	if _, err := f.Write(audio); err != nil {
		f.Close()
		return fmt.Errorf("speech: write audio file: %w", err)
	}
	if err := f.Close(); err != nil {
		return fmt.Errorf("speech: close audio file: %w", err)
	}

	args := append(append([]string{}, player[1:]...), path)
	cmd := exec.CommandContext(ctx, player[0], args...)
	if err := cmd.Run(); err != nil {
		if ctx.Err() != nil {
			return ctx.Err()
		}
		return fmt.Errorf("speech: player %s: %w", player[0], err)
	}
	return nil
}

func (p *ElevenLabs) resolvePlayer() []string {
	if len(p.player) > 0 {
		if _, err := exec.LookPath(p.player[0]); err == nil {
			return p.player
		}
		return nil
	}
	for _, candidate := range playerCandidates {
		if _, err := exec.LookPath(candidate[0]); err == nil {
			return candidate
		}
	}
	return nil
}
