package main

import (
	"flag"
	"fmt"
	"os"

	tea "github.com/charmbracelet/bubbletea"

	"aidj/internal/config"
	"aidj/internal/djapi"
	"aidj/internal/logging"
	"aidj/internal/ui"
)

type appFlags struct {
	configPath string
	backendURL string
	userID     string
	session    string
	altScreen  bool
}

func parseFlags() appFlags {
	var f appFlags
	flag.StringVar(&f.configPath, "config", os.Getenv("AIDJ_CONFIG"), "Path to aidj config file (YAML)")
	flag.StringVar(&f.backendURL, "backend", "", "Backend base URL (overrides config)")
	flag.StringVar(&f.userID, "user", "", "User id sent as X-User-Id (overrides config)")
	flag.StringVar(&f.session, "session", "", "Spotify session cookie value (overrides config)")
	flag.BoolVar(&f.altScreen, "alt-screen", true, "Run in the terminal alternate screen")
	flag.Parse()
	return f
}

func main() {
	flags := parseFlags()

	cfg, err := config.Load(flags.configPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "aidj: %v\n", err)
		os.Exit(1)
	}
	if flags.backendURL != "" {
		cfg.BackendURL = flags.backendURL
	}
	if flags.userID != "" {
		cfg.UserID = flags.userID
	}
	if flags.session != "" {
		cfg.SessionCookie = flags.session
	}

	logger := logging.New(logging.Config{
		Dir:     cfg.Log.Dir,
		Level:   cfg.Log.Level,
		Service: "aidj",
	})
	defer logger.Close()

	api := djapi.New(cfg.BackendURL,
		djapi.WithUserID(cfg.UserID),
		djapi.WithSessionCookie(cfg.SessionCookie),
	)

	opts := []tea.ProgramOption{tea.WithMouseCellMotion()}
	if flags.altScreen {
		opts = append(opts, tea.WithAltScreen())
	}
	p := tea.NewProgram(ui.New(cfg, api, logger.Logger), opts...)
	if _, err := p.Run(); err != nil {
		logger.Error("fatal", "error", err)
		fmt.Fprintf(os.Stderr, "aidj fatal error: %v\n", err)
		os.Exit(1)
	}
}
