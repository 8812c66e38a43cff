// Package config loads runtime configuration from an optional YAML file
// with environment-variable overrides on top.
package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"gopkg.in/yaml.v3"
)

// Config is everything the client needs to reach the backend and drive
// speech output.
type Config struct {
	BackendURL    string `yaml:"backend_url"`
	UserID        string `yaml:"user_id"`
	SessionCookie string `yaml:"session_cookie"`
	HistoryLimit  int    `yaml:"history_limit"`

	Speech SpeechConfig `yaml:"speech"`
	Log    LogConfig    `yaml:"log"`

	UndoSeconds int `yaml:"undo_seconds"`
}

type SpeechConfig struct {
	ElevenAPIKey  string   `yaml:"eleven_api_key"`
	VoiceID       string   `yaml:"voice_id"`
	ModelID       string   `yaml:"model_id"`
	Player        []string `yaml:"player"`
	LocalCommand  string   `yaml:"local_command"`
	LocalVoice    string   `yaml:"local_voice"`
	BubbleSeconds int      `yaml:"bubble_seconds"`
	Muted         bool     `yaml:"muted"`
}

type LogConfig struct {
	Dir   string `yaml:"dir"`
	Level string `yaml:"level"`
}

func defaults() Config {
	return Config{
		BackendURL:   "http://127.0.0.1:5001",
		HistoryLimit: 50,
		UndoSeconds:  5,
		Speech: SpeechConfig{
			BubbleSeconds: 30,
		},
		Log: LogConfig{Level: "info"},
	}
}

// Load reads path (optional) and applies environment overrides. A
// relative log dir is resolved against the config file's directory.
func Load(path string) (Config, error) {
	cfg := defaults()

	if path != "" {
		absPath, err := filepath.Abs(path)
		if err != nil {
			return cfg, fmt.Errorf("resolve config path: %w", err)
		}
		raw, err := os.ReadFile(absPath)
		if err != nil {
			if !os.IsNotExist(err) {
				return cfg, fmt.Errorf("read config %s: %w", absPath, err)
			}
		} else {
			if err := yaml.Unmarshal(raw, &cfg); err != nil {
				return cfg, fmt.Errorf("decode config %s: %w", absPath, err)
			}
			if cfg.Log.Dir != "" && !filepath.IsAbs(cfg.Log.Dir) {
				cfg.Log.Dir = filepath.Join(filepath.Dir(absPath), cfg.Log.Dir)
			}
		}
	}

	applyEnv(&cfg)

	cfg.BackendURL = strings.TrimRight(strings.TrimSpace(cfg.BackendURL), "/")
	if cfg.BackendURL == "" {
		return cfg, fmt.Errorf("backend_url must be configured")
	}
	if cfg.HistoryLimit <= 0 {
		cfg.HistoryLimit = 50
	}
	if cfg.UndoSeconds <= 0 {
		cfg.UndoSeconds = 5
	}
	if cfg.Speech.BubbleSeconds <= 0 {
		cfg.Speech.BubbleSeconds = 30
	}
	return cfg, nil
}

func applyEnv(cfg *Config) {
	cfg.BackendURL = envOr("AIDJ_BACKEND_URL", cfg.BackendURL)
	cfg.UserID = envOr("AIDJ_USER_ID", cfg.UserID)
	cfg.SessionCookie = envOr("AIDJ_SESSION", cfg.SessionCookie)
	cfg.HistoryLimit = envOrInt("AIDJ_HISTORY_LIMIT", cfg.HistoryLimit)
	cfg.UndoSeconds = envOrInt("AIDJ_UNDO_SECONDS", cfg.UndoSeconds)
	cfg.Speech.ElevenAPIKey = envOr("ELEVENLABS_API_KEY", cfg.Speech.ElevenAPIKey)
	cfg.Speech.VoiceID = envOr("AIDJ_VOICE_ID", cfg.Speech.VoiceID)
	cfg.Speech.ModelID = envOr("AIDJ_MODEL_ID", cfg.Speech.ModelID)
	cfg.Speech.LocalCommand = envOr("AIDJ_SPEECH_COMMAND", cfg.Speech.LocalCommand)
	cfg.Speech.LocalVoice = envOr("AIDJ_SPEECH_VOICE", cfg.Speech.LocalVoice)
	cfg.Speech.BubbleSeconds = envOrInt("AIDJ_BUBBLE_SECONDS", cfg.Speech.BubbleSeconds)
	cfg.Speech.Muted = envOrBool("AIDJ_MUTED", cfg.Speech.Muted)
	cfg.Log.Dir = envOr("AIDJ_LOG_DIR", cfg.Log.Dir)
	cfg.Log.Level = envOr("AIDJ_LOG_LEVEL", cfg.Log.Level)
}

func envOr(key, fallback string) string {
	if value, ok := os.LookupEnv(key); ok && strings.TrimSpace(value) != "" {
		return strings.TrimSpace(value)
	}
	return fallback
}

func envOrInt(key string, fallback int) int {
	if value, ok := os.LookupEnv(key); ok {
		if parsed, err := strconv.Atoi(strings.TrimSpace(value)); err == nil {
			return parsed
		}
	}
	return fallback
}

func envOrBool(key string, fallback bool) bool {
	if value, ok := os.LookupEnv(key); ok {
		if parsed, err := strconv.ParseBool(strings.TrimSpace(value)); err == nil {
			return parsed
		}
	}
	return fallback
}
