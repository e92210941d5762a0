package main

import (
	"context"
	"fmt"
	"io"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/rs/zerolog"
	"github.com/spf13/cobra"

	"github.com/jask/flowcanvas/internal/config"
	"github.com/jask/flowcanvas/internal/logger"
)

type app struct {
	cfg      config.Config
	log      zerolog.Logger
	logClose io.Closer
	timeout  time.Duration
}

func main() {
	a := &app{}

	rootCmd := &cobra.Command{
		Use:           "flowcanvas",
		Short:         "Interactive flowchart canvas for terminal panes",
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, _ []string) error {
			return a.setup(cmd.Name() == "show")
		},
	}
	rootCmd.PersistentFlags().DurationVar(&a.timeout, "timeout", 5*time.Second, "Timeout for socket and multiplexer operations")

	showCmd := &cobra.Command{
		Use:   "show",
		Short: "Run the canvas in this terminal and serve its socket",
		Args:  cobra.NoArgs,
		RunE:  a.runShow,
	}
	addCanvasFlags(showCmd)
	showCmd.Flags().String("config-file", "", "Flowchart file (.json, .yaml, .toml)")

	spawnCmd := &cobra.Command{
		Use:   "spawn",
		Short: "Show a canvas in a split pane, reusing the previous one when it is still open",
		Args:  cobra.NoArgs,
		RunE:  a.runSpawn,
	}
	addCanvasFlags(spawnCmd)
	spawnCmd.Flags().String("config-file", "", "Flowchart file (.json, .yaml, .toml)")

	updateCmd := &cobra.Command{
		Use:   "update <id>",
		Short: "Replace the flowchart shown by a running canvas",
		Args:  cobra.ExactArgs(1),
		RunE:  a.runUpdate,
	}
	updateCmd.Flags().String("config", "", "Flowchart as JSON")
	updateCmd.Flags().String("config-file", "", "Flowchart file (.json, .yaml, .toml)")
	updateCmd.Flags().String("socket", "", "Socket path (default from socket.path_template)")

	closeCmd := &cobra.Command{
		Use:   "close",
		Short: "Close the recorded canvas pane",
		Args:  cobra.NoArgs,
		RunE:  a.runClose,
	}
	closeCmd.Flags().String("id", "", "Also ask this canvas to exit over its socket")
	closeCmd.Flags().String("socket", "", "Socket path (default from socket.path_template)")

	commentsCmd := &cobra.Command{
		Use:   "comments <id>",
		Short: "Print the annotations of a running canvas as JSON",
		Args:  cobra.ExactArgs(1),
		RunE:  a.runComments,
	}
	commentsCmd.Flags().String("socket", "", "Socket path (default from socket.path_template)")

	pingCmd := &cobra.Command{
		Use:   "ping <id>",
		Short: "Check that a canvas is running",
		Args:  cobra.ExactArgs(1),
		RunE:  a.runPing,
	}
	pingCmd.Flags().String("socket", "", "Socket path (default from socket.path_template)")

	rootCmd.AddCommand(showCmd, spawnCmd, updateCmd, closeCmd, commentsCmd, pingCmd)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	err := rootCmd.ExecuteContext(ctx)
	stop()
	if a.logClose != nil {
		_ = a.logClose.Close()
	}
	if err != nil {
		fmt.Fprintln(os.Stderr, "flowcanvas:", err)
		os.Exit(1)
	}
}

func addCanvasFlags(cmd *cobra.Command) {
	cmd.Flags().String("id", "", "Canvas id (default: generated)")
	cmd.Flags().String("config", "", "Flowchart as JSON")
	cmd.Flags().String("socket", "", "Socket path (default from socket.path_template)")
}

// setup loads configuration and the logger. The canvas owns the terminal,
// so its logs go to a file unless configured otherwise.
func (a *app) setup(canvas bool) error {
	cfg, err := config.Load()
	if err != nil {
		return err
	}
	if canvas && cfg.Log.Output == "stderr" {
		cfg.Log.Output = "file"
	}
	l, closer, err := logger.Init(cfg.Log)
	if err != nil {
		return err
	}
	a.cfg, a.log, a.logClose = cfg, l, closer
	return nil
}
