// Package pane decides whether a canvas is started in a fresh terminal split
// or replaces the one already on screen.
package pane

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"os/exec"
	"strings"
)

// Kind names a multiplexer.
type Kind string

const (
	KindTmux   Kind = "tmux"
	KindITerm2 Kind = "iterm2"
)

var ErrNoMultiplexer = errors.New("no supported terminal multiplexer (run inside tmux or iTerm2)")

// Multiplexer is the set of primitives the Manager needs from a terminal
// multiplexer. Ids are opaque to the caller.
type Multiplexer interface {
	Kind() Kind
	Available(ctx context.Context) bool
	Alive(ctx context.Context, id string) bool
	CreateSplit(ctx context.Context, command string) (string, error)
	Interrupt(ctx context.Context, id string) error
	SendKeys(ctx context.Context, id, text string) error
	Destroy(ctx context.Context, id string) error
}

// Runner runs an external program and returns its stdout.
type Runner interface {
	Run(ctx context.Context, name string, args ...string) ([]byte, error)
}

// ExecRunner runs programs with os/exec.
type ExecRunner struct{}

func (ExecRunner) Run(ctx context.Context, name string, args ...string) ([]byte, error) {
	cmd := exec.CommandContext(ctx, name, args...)
	var stderr bytes.Buffer
	cmd.Stderr = &stderr
	out, err := cmd.Output()
	if err != nil {
		if msg := strings.TrimSpace(stderr.String()); msg != "" {
			return out, fmt.Errorf("%s %s: %w: %s", name, strings.Join(args, " "), err, msg)
		}
		return out, fmt.Errorf("%s %s: %w", name, strings.Join(args, " "), err)
	}
	return out, nil
}

// Detect returns the first available multiplexer.
func Detect(ctx context.Context, muxes ...Multiplexer) (Multiplexer, error) {
	for _, m := range muxes {
		if m != nil && m.Available(ctx) {
			return m, nil
		}
	}
	return nil, ErrNoMultiplexer
}

// ByKind picks the multiplexer that created a record.
func ByKind(kind Kind, muxes ...Multiplexer) (Multiplexer, bool) {
	for _, m := range muxes {
		if m != nil && m.Kind() == kind {
			return m, true
		}
	}
	return nil, false
}
