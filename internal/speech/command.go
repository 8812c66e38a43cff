package speech

import (
	"context"
	"fmt"
	"os/exec"
	"runtime"
)

// CommandProvider is the on-device terminal fallback: it shells out to
// the system speech synthesizer (`say` on macOS, `espeak` elsewhere).
type CommandProvider struct {
	command string
	voice   string
}

// NewCommandProvider builds the fallback provider. An empty command
// picks the platform default; voice is passed through when set.
func NewCommandProvider(command, voice string) *CommandProvider {
	if command == "" {
		if runtime.GOOS == "darwin" {
			command = "say"
		} else {
			command = "espeak"
		}
	}
	return &CommandProvider{command: command, voice: voice}
}

func (p *CommandProvider) Name() string { return p.command }

func (p *CommandProvider) Available() bool {
	_, err := exec.LookPath(p.command)
	return err == nil
}

func (p *CommandProvider) Speak(ctx context.Context, text string) error {
	args := []string{}
	if p.voice != "" {
		args = append(args, "-v", p.voice)
	}
	args = append(args, text)
	cmd := exec.CommandContext(ctx, p.command, args...)
	if err := cmd.Run(); err != nil {
		if ctx.Err() != nil {
			return ctx.Err()
		}
		return fmt.Errorf("speech: %s: %w", p.command, err)
	}
	return nil
}
