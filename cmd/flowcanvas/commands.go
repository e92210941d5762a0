package main

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/bytedance/sonic"
	"github.com/google/uuid"
	"github.com/kballard/go-shellquote"
	"github.com/spf13/cobra"

	"github.com/jask/flowcanvas/internal/flow"
	"github.com/jask/flowcanvas/internal/pane"
	"github.com/jask/flowcanvas/internal/protocol"
	"github.com/jask/flowcanvas/internal/tui"
)

func (a *app) runShow(cmd *cobra.Command, _ []string) error {
	id := canvasID(cmd)
	cfg, err := loadFlowchart(cmd)
	if err != nil {
		return err
	}

	keys := tui.NewKeyRegistry()
	if err := keys.ApplyKeybindingConfig(a.cfg.Keys); err != nil {
		return err
	}

	return tui.Run(cmd.Context(), cfg, tui.Options{
		SocketPath: a.socketPath(cmd, id),
		Keys:       keys,
		ShowHelp:   a.cfg.UI.ShowHelp,
		Log:        a.log.With().Str("canvas", id).Logger(),
	})
}

type spawnOutput struct {
	ID     string    `json:"id"`
	Socket string    `json:"socket"`
	Pane   string    `json:"pane"`
	Kind   pane.Kind `json:"kind"`
	Reused bool      `json:"reused"`
}

func (a *app) runSpawn(cmd *cobra.Command, _ []string) error {
	id := canvasID(cmd)
	socket := a.socketPath(cmd, id)

	args := []string{"show", "--id", id, "--socket", socket}
	cfg, err := loadFlowchart(cmd)
	if err != nil {
		return err
	}
	if len(cfg.Nodes) > 0 || cfg.Annotations != nil || cfg.Title != "" {
		path, err := writeFlowchart(os.TempDir(), id, cfg)
		if err != nil {
			return err
		}
		args = append(args, "--config-file", path)
	}
	command, err := spawnCommand(args)
	if err != nil {
		return err
	}

	registry, closeRegistry, err := a.openRegistry(cmd.Context())
	if err != nil {
		return err
	}
	defer closeRegistry()

	ctx, cancel := context.WithTimeout(cmd.Context(), a.timeout)
	defer cancel()
	res, err := a.paneManager(registry).Spawn(ctx, command)
	if err != nil {
		return err
	}

	out, err := sonic.ConfigStd.Marshal(spawnOutput{
		ID:     id,
		Socket: socket,
		Pane:   res.Record.ID,
		Kind:   res.Record.Kind,
		Reused: res.Reused,
	})
	if err != nil {
		return err
	}
	fmt.Fprintln(cmd.OutOrStdout(), string(out))
	return nil
}

func (a *app) runUpdate(cmd *cobra.Command, args []string) error {
	cfg, err := loadFlowchart(cmd)
	if err != nil {
		return err
	}
	return a.oneShot(cmd, args[0], true, func(ctx context.Context, c *protocol.Client) error {
		return c.Send(protocol.Inbound{Type: protocol.TypeUpdate, Config: &cfg})
	})
}

func (a *app) runClose(cmd *cobra.Command, _ []string) error {
	if id, _ := cmd.Flags().GetString("id"); id != "" {
		err := a.oneShot(cmd, id, false, func(ctx context.Context, c *protocol.Client) error {
			return c.Send(protocol.Inbound{Type: protocol.TypeClose})
		})
		if err != nil {
			a.log.Debug().Err(err).Str("canvas", id).Msg("close over socket")
		}
	}

	registry, closeRegistry, err := a.openRegistry(cmd.Context())
	if err != nil {
		return err
	}
	defer closeRegistry()

	ctx, cancel := context.WithTimeout(cmd.Context(), a.timeout)
	defer cancel()
	return a.paneManager(registry).Close(ctx)
}

func (a *app) runComments(cmd *cobra.Command, args []string) error {
	return a.oneShot(cmd, args[0], true, func(ctx context.Context, c *protocol.Client) error {
		if err := c.Send(protocol.Inbound{Type: protocol.TypeGetComments}); err != nil {
			return err
		}
		msg, err := c.Await(ctx, protocol.TypeComments)
		if err != nil {
			return err
		}
		data, err := msg.Data.MarshalJSON()
		if err != nil {
			return err
		}
		fmt.Fprintln(cmd.OutOrStdout(), string(data))
		return nil
	})
}

func (a *app) runPing(cmd *cobra.Command, args []string) error {
	return a.oneShot(cmd, args[0], true, func(ctx context.Context, c *protocol.Client) error {
		if err := c.Send(protocol.Inbound{Type: protocol.TypePing}); err != nil {
			return err
		}
		if _, err := c.Await(ctx, protocol.TypePong); err != nil {
			return err
		}
		fmt.Fprintln(cmd.OutOrStdout(), "pong")
		return nil
	})
}

const dialInterval = 50 * time.Millisecond

// oneShot connects to canvas id, waits for ready and runs fn. With retry it
// keeps dialing until the canvas listens or the timeout expires.
func (a *app) oneShot(cmd *cobra.Command, id string, retry bool, fn func(context.Context, *protocol.Client) error) error {
	ctx, cancel := context.WithTimeout(cmd.Context(), a.timeout)
	defer cancel()

	path := a.socketPath(cmd, id)
	var (
		c   *protocol.Client
		err error
	)
	if retry {
		c, err = protocol.DialRetry(ctx, path, dialInterval)
	} else {
		c, err = protocol.Dial(ctx, path)
	}
	if err != nil {
		return err
	}
	defer c.Close()

	if _, err := c.Await(ctx, protocol.TypeReady); err != nil {
		return fmt.Errorf("wait for ready: %w", err)
	}
	return fn(ctx, c)
}

func (a *app) socketPath(cmd *cobra.Command, id string) string {
	if s, _ := cmd.Flags().GetString("socket"); s != "" {
		return s
	}
	return protocol.SocketPath(a.cfg.Socket.PathTemplate, id)
}

func (a *app) openRegistry(ctx context.Context) (pane.Registry, func(), error) {
	p := a.cfg.Pane
	switch p.Registry {
	case "sqlite":
		r, err := pane.OpenSQLiteRegistry(p.DBPath)
		if err != nil {
			return nil, nil, err
		}
		return r, func() { _ = r.Close() }, nil
	case "redis":
		r, err := pane.NewRedisRegistry(ctx, p.RedisURL, p.RedisKey)
		if err != nil {
			return nil, nil, err
		}
		return r, func() { _ = r.Close() }, nil
	default:
		return pane.FileRegistry{Path: p.StateFile}, func() {}, nil
	}
}

func (a *app) paneManager(reg pane.Registry) *pane.Manager {
	return pane.NewManager(reg, a.cfg.Pane.Settle, a.log,
		pane.NewTmux(pane.ExecRunner{}, a.cfg.Pane.SplitSize),
		pane.NewITerm2(pane.ExecRunner{}),
	)
}

func canvasID(cmd *cobra.Command) string {
	if id, _ := cmd.Flags().GetString("id"); strings.TrimSpace(id) != "" {
		return strings.TrimSpace(id)
	}
	return "flow-" + uuid.NewString()[:8]
}

// loadFlowchart reads --config (JSON) or --config-file. With neither it
// returns an empty flowchart.
func loadFlowchart(cmd *cobra.Command) (flow.Config, error) {
	inline, _ := cmd.Flags().GetString("config")
	file, _ := cmd.Flags().GetString("config-file")
	switch {
	case inline != "" && file != "":
		return flow.Config{}, errors.New("--config and --config-file are mutually exclusive")
	case inline != "":
		return flow.Decode([]byte(inline))
	case file != "":
		return flow.LoadFile(file)
	}
	return flow.Config{}, nil
}

// writeFlowchart stores cfg where a spawned canvas can read it, so no JSON
// travels through the shell.
func writeFlowchart(dir, id string, cfg flow.Config) (string, error) {
	data, err := flow.Encode(cfg)
	if err != nil {
		return "", err
	}
	path := filepath.Join(dir, "flowcanvas-config-"+id+".json")
	if err := os.WriteFile(path, data, 0o600); err != nil {
		return "", fmt.Errorf("write flowchart: %w", err)
	}
	return path, nil
}

// spawnCommand builds the shell line that re-runs this binary.
func spawnCommand(args []string) (string, error) {
	exe, err := os.Executable()
	if err != nil {
		return "", fmt.Errorf("locate executable: %w", err)
	}
	return shellquote.Join(append([]string{exe}, args...)...), nil
}
