package pane

import (
	"context"
	"fmt"
	"os"
	"os/exec"
	"strings"
)

const DefaultSplitSize = "40%"

// Tmux drives tmux through its CLI. It is available only from inside a tmux
// client.
type Tmux struct {
	Runner    Runner
	Binary    string
	SplitSize string

	getenv   func(string) string
	lookPath func(string) (string, error)
}

func NewTmux(r Runner, splitSize string) *Tmux {
	if r == nil {
		r = ExecRunner{}
	}
	if splitSize == "" {
		splitSize = DefaultSplitSize
	}
	return &Tmux{
		Runner:    r,
		Binary:    "tmux",
		SplitSize: splitSize,
		getenv:    os.Getenv,
		lookPath:  exec.LookPath,
	}
}

func (t *Tmux) Kind() Kind { return KindTmux }

func (t *Tmux) Available(context.Context) bool {
	if t.getenv("TMUX") == "" {
		return false
	}
	_, err := t.lookPath(t.Binary)
	return err == nil
}

func (t *Tmux) Alive(ctx context.Context, id string) bool {
	if id == "" {
		return false
	}
	out, err := t.Runner.Run(ctx, t.Binary, "display-message", "-p", "-t", id, "#{pane_id}")
	return err == nil && strings.TrimSpace(string(out)) != ""
}

func (t *Tmux) CreateSplit(ctx context.Context, command string) (string, error) {
	out, err := t.Runner.Run(ctx, t.Binary, "split-window", "-h", "-l", t.SplitSize, "-P", "-F", "#{pane_id}", command)
	if err != nil {
		return "", fmt.Errorf("tmux split-window: %w", err)
	}
	id := strings.TrimSpace(string(out))
	if id == "" {
		return "", fmt.Errorf("tmux split-window: no pane id returned")
	}
	return id, nil
}

func (t *Tmux) Interrupt(ctx context.Context, id string) error {
	_, err := t.Runner.Run(ctx, t.Binary, "send-keys", "-t", id, "C-c")
	return err
}

func (t *Tmux) SendKeys(ctx context.Context, id, text string) error {
	_, err := t.Runner.Run(ctx, t.Binary, "send-keys", "-t", id, text, "Enter")
	return err
}

func (t *Tmux) Destroy(ctx context.Context, id string) error {
	_, err := t.Runner.Run(ctx, t.Binary, "kill-pane", "-t", id)
	return err
}
