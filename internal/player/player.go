// Package player hands HLS streams to an external video player.
package player

import (
	"context"
	"fmt"
	"io"
	"os/exec"

	"github.com/charmbracelet/log"
	"github.com/desertthunder/igloo/internal/shared"
	"golang.org/x/oauth2"
)

// Player launches the configured player command.
type Player struct {
	command    string
	args       []string
	headerFlag string
	tokens     oauth2.TokenSource
	logger     *log.Logger
}

// New creates a player from configuration. tokens supplies the bearer header passed to the player.
func New(cfg shared.PlayerConfig, tokens oauth2.TokenSource, logger *log.Logger) *Player {
	if logger == nil {
		logger = shared.NewLogger(io.Discard)
	}
	return &Player{
		command:    cfg.Command,
		args:       cfg.Args,
		headerFlag: cfg.HeaderFlag,
		tokens:     tokens,
		logger:     logger,
	}
}

// Command builds the player process for streamURL without starting it.
func (p *Player) Command(ctx context.Context, streamURL string) (*exec.Cmd, error) {
	if p.command == "" {
		return nil, fmt.Errorf("%w: no player configured", shared.ErrPlaybackFailed)
	}

	path, err := exec.LookPath(p.command)
	if err != nil {
		return nil, fmt.Errorf("%w: %s not found", shared.ErrPlaybackFailed, p.command)
	}

	args := append([]string(nil), p.args...)
	if p.headerFlag != "" && p.tokens != nil {
		if tok, err := p.tokens.Token(); err == nil && tok.AccessToken != "" {
			args = append(args, fmt.Sprintf("%s=Authorization: %s %s", p.headerFlag, tok.Type(), tok.AccessToken))
		}
	}
	args = append(args, streamURL)

	return exec.CommandContext(ctx, path, args...), nil
}

// Play runs the player until it exits.
func (p *Player) Play(ctx context.Context, streamURL string) error {
	cmd, err := p.Command(ctx, streamURL)
	if err != nil {
		return err
	}

	p.logger.Info("starting player", "command", p.command, "url", streamURL)
	out, err := cmd.CombinedOutput()
	if err != nil {
		p.logger.Debug("player output", "output", string(out))
	}
	return Failed(err)
}

// Failed wraps a player exit error in [shared.ErrPlaybackFailed]. It returns nil for nil.
func Failed(err error) error {
	if err == nil {
		return nil
	}
	return fmt.Errorf("%w: %v", shared.ErrPlaybackFailed, err)
}
