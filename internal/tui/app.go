// Package tui runs the canvas: a bubbletea program whose state is a
// session.Session, fed by the keyboard and by the protocol server.
package tui

import (
	"context"
	"errors"
	"fmt"

	"github.com/charmbracelet/bubbles/help"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/rs/zerolog"

	"github.com/jask/flowcanvas/internal/flow"
	"github.com/jask/flowcanvas/internal/protocol"
	"github.com/jask/flowcanvas/internal/session"
)

// InboundMsg carries a driver message into the event loop.
type InboundMsg struct {
	Msg protocol.Inbound
}

// Sender delivers outbound messages to the driver.
type Sender interface {
	Send(protocol.Outbound) error
}

// Model adapts a session to bubbletea.
type Model struct {
	session  session.Session
	keys     *KeyRegistry
	sender   Sender
	log      zerolog.Logger
	help     help.Model
	showHelp bool

	width, height int
	quitting      bool
}

func New(s session.Session, keys *KeyRegistry, sender Sender, log zerolog.Logger, showHelp bool) Model {
	if keys == nil {
		keys = NewKeyRegistry()
	}
	h := help.New()
	h.Styles.ShortKey = promptStyle
	h.Styles.ShortDesc = statusStyle
	h.Styles.ShortSeparator = connectorStyle
	return Model{
		session:  s,
		keys:     keys,
		sender:   sender,
		log:      log,
		help:     h,
		showHelp: showHelp,
	}
}

func (m Model) Session() session.Session { return m.session }

func (m Model) Init() tea.Cmd { return nil }

func (m Model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.WindowSizeMsg:
		m.width, m.height = msg.Width, msg.Height
		m.help.Width = msg.Width
	case tea.KeyMsg:
		ev := m.keys.Translate(msg, m.scope())
		if ev.Key == session.KeyNone {
			return m, nil
		}
		return m.apply(ev)
	case InboundMsg:
		m.log.Debug().Str("type", string(msg.Msg.Type)).Msg("handling driver message")
		return m.apply(session.MessageEvent{Msg: msg.Msg})
	}
	return m, nil
}

func (m Model) apply(ev session.Event) (tea.Model, tea.Cmd) {
	next, fx := m.session.Handle(ev)
	m.session = next
	for _, out := range fx.Outbound {
		if m.sender == nil {
			break
		}
		if err := m.sender.Send(out); err != nil {
			m.log.Warn().Err(err).Str("type", string(out.Type)).Msg("send to driver")
		}
	}
	if fx.Quit {
		m.quitting = true
		return m, tea.Quit
	}
	return m, nil
}

func (m Model) scope() string {
	if _, ok := m.session.Editing(); ok {
		return scopeEdit
	}
	if _, ok := m.session.Finding(); ok {
		return scopeFind
	}
	if m.session.Mode() == session.ModeAnnotations {
		return scopeAnnotations
	}
	return scopeGraph
}

// Options configures Run.
type Options struct {
	SocketPath string
	Keys       *KeyRegistry
	ShowHelp   bool
	Log        zerolog.Logger

	// ProgramOptions are passed to tea.NewProgram after the defaults.
	ProgramOptions []tea.ProgramOption
}

// Run shows cfg in the terminal and serves the driver socket until the user
// quits or the driver sends close.
func Run(ctx context.Context, cfg flow.Config, opts Options) error {
	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	var prog *tea.Program
	srv, err := protocol.Listen(opts.SocketPath, func(in protocol.Inbound) {
		prog.Send(InboundMsg{Msg: in})
	}, opts.Log)
	if err != nil {
		return err
	}
	defer srv.Close()

	model := New(session.New(cfg), opts.Keys, srv, opts.Log, opts.ShowHelp)
	popts := append([]tea.ProgramOption{tea.WithAltScreen(), tea.WithContext(ctx)}, opts.ProgramOptions...)
	prog = tea.NewProgram(model, popts...)

	served := make(chan error, 1)
	go func() { served <- srv.Serve(ctx) }()
	opts.Log.Info().Str("socket", srv.Path()).Msg("canvas listening")

	_, runErr := prog.Run()
	cancel()
	_ = srv.Close()
	if err := <-served; err != nil && !errors.Is(err, protocol.ErrServerClosed) {
		opts.Log.Warn().Err(err).Msg("socket server")
	}
	if runErr != nil && !errors.Is(runErr, tea.ErrProgramKilled) {
		return fmt.Errorf("run canvas: %w", runErr)
	}
	return nil
}
