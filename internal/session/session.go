// Package session is the canvas state machine. Keyboard input and protocol
// messages are both Events; Handle folds one event into the state and
// returns the next state plus the messages to send back to the driver.
// Handle never performs I/O.
package session

import (
	"unicode/utf8"

	"github.com/jask/flowcanvas/internal/annotation"
	"github.com/jask/flowcanvas/internal/flow"
	"github.com/jask/flowcanvas/internal/protocol"
)

// Mode selects which list the cursor walks.
type Mode int

const (
	ModeGraph Mode = iota
	ModeAnnotations
)

func (m Mode) String() string {
	if m == ModeAnnotations {
		return "annotations"
	}
	return "graph"
}

// Key is a logical key, already decoded from the terminal.
type Key int

const (
	KeyNone Key = iota
	KeyUp
	KeyDown
	KeyConfirm
	KeyCancel
	KeyTab
	KeyText
	KeyBackspace
	KeyFind
	KeyQuit
)

// Event is either a KeyEvent or a MessageEvent.
type Event interface {
	event()
}

// KeyEvent carries Text only for KeyText.
type KeyEvent struct {
	Key  Key
	Text string
}

type MessageEvent struct {
	Msg protocol.Inbound
}

func (KeyEvent) event()     {}
func (MessageEvent) event() {}

// Effects are the side effects requested by one transition.
type Effects struct {
	Outbound []protocol.Outbound
	Quit     bool
}

func (e *Effects) send(msg protocol.Outbound) {
	e.Outbound = append(e.Outbound, msg)
}

// Session is a value; every transition returns a new one. The layout and
// store it holds are never mutated in place, so old values stay valid.
type Session struct {
	config flow.Config
	graph  flow.Graph
	layout flow.Layout
	store  annotation.Store

	mode        Mode
	graphCursor Cursor
	noteCursor  Cursor

	editing bool
	editKey string
	buffer  string

	finding    bool
	query      string
	matches    []int
	matchIndex Cursor
}

// New starts a session in graph mode on the first item.
func New(cfg flow.Config) Session {
	return Session{}.apply(cfg.Normalize())
}

// apply replaces the flowchart. Annotations are replaced only when cfg
// carries them.
func (s Session) apply(cfg flow.Config) Session {
	s.config = cfg
	s.graph = cfg.Graph()
	s.layout = flow.Linearize(s.graph)
	if cfg.Annotations != nil {
		s.store = *cfg.Annotations
	}
	if s.finding {
		s.matches = Rank(s.layout.Items, s.query)
		s.matchIndex = s.matchIndex.Clamp(len(s.matches))
	}
	return s.clamp()
}

func (s Session) clamp() Session {
	s.graphCursor = s.graphCursor.Clamp(len(s.layout.Items))
	s.noteCursor = s.noteCursor.Clamp(len(s.store.NonEmpty()))
	return s
}

// Handle applies ev and returns the resulting session and effects.
func (s Session) Handle(ev Event) (Session, Effects) {
	switch ev := ev.(type) {
	case MessageEvent:
		return s.handleMessage(ev.Msg)
	case KeyEvent:
		return s.handleKey(ev)
	}
	return s, Effects{}
}

func (s Session) handleMessage(msg protocol.Inbound) (Session, Effects) {
	var fx Effects
	switch msg.Type {
	case protocol.TypeUpdate:
		if msg.Config != nil {
			s = s.apply(msg.Config.Normalize())
		}
	case protocol.TypeClose:
		fx.Quit = true
	case protocol.TypeGetComments:
		fx.send(protocol.Comments(s.store))
	case protocol.TypePing:
		fx.send(protocol.Pong())
	}
	return s, fx
}

func (s Session) handleKey(ev KeyEvent) (Session, Effects) {
	var fx Effects
	if ev.Key == KeyQuit {
		fx.send(protocol.Cancelled())
		fx.Quit = true
		return s, fx
	}

	switch {
	case s.editing:
		return s.handleEditKey(ev)
	case s.finding:
		return s.handleFindKey(ev), fx
	}

	switch ev.Key {
	case KeyUp:
		if s.mode == ModeGraph {
			s.graphCursor = s.graphCursor.Up()
		} else {
			s.noteCursor = s.noteCursor.Up()
		}
	case KeyDown:
		if s.mode == ModeGraph {
			s.graphCursor = s.graphCursor.Down(len(s.layout.Items))
		} else {
			s.noteCursor = s.noteCursor.Down(len(s.store.NonEmpty()))
		}
	case KeyTab:
		s = s.toggleMode()
	case KeyConfirm:
		if key := s.SelectedKey(); key != "" {
			s.editing = true
			s.editKey = key
			s.buffer, _ = s.store.Get(key)
		}
	case KeyFind:
		if s.mode == ModeGraph {
			s.finding = true
			s.query = ""
			s.matches = Rank(s.layout.Items, "")
			s.matchIndex = Cursor{}
		}
	case KeyCancel:
		if s.mode == ModeAnnotations {
			s = s.toggleMode()
			break
		}
		fx.send(protocol.Cancelled())
		fx.Quit = true
	}
	return s, fx
}

func (s Session) toggleMode() Session {
	if s.mode == ModeGraph {
		s.mode = ModeAnnotations
	} else {
		s.mode = ModeGraph
	}
	s.noteCursor = Cursor{}
	return s
}

func (s Session) handleEditKey(ev KeyEvent) (Session, Effects) {
	var fx Effects
	switch ev.Key {
	case KeyText:
		s.buffer += ev.Text
	case KeyBackspace:
		s.buffer = dropLastRune(s.buffer)
	case KeyConfirm:
		s.store = s.store.Set(s.editKey, s.buffer)
		fx.send(protocol.Comment(s.editKey, s.buffer))
		s = s.endEdit().clamp()
	case KeyCancel:
		s = s.endEdit()
	}
	return s, fx
}

func (s Session) endEdit() Session {
	s.editing = false
	s.editKey = ""
	s.buffer = ""
	return s
}

func (s Session) handleFindKey(ev KeyEvent) Session {
	switch ev.Key {
	case KeyText:
		s.query += ev.Text
	case KeyBackspace:
		s.query = dropLastRune(s.query)
	case KeyUp:
		s.matchIndex = s.matchIndex.Up()
		return s
	case KeyDown:
		s.matchIndex = s.matchIndex.Down(len(s.matches))
		return s
	case KeyConfirm:
		if i, ok := s.Match(); ok {
			s.graphCursor = Cursor{Index: i}.Clamp(len(s.layout.Items))
		}
		return s.endFind()
	case KeyCancel:
		return s.endFind()
	default:
		return s
	}
	s.matches = Rank(s.layout.Items, s.query)
	s.matchIndex = Cursor{}
	return s
}

func (s Session) endFind() Session {
	s.finding = false
	s.query = ""
	s.matches = nil
	s.matchIndex = Cursor{}
	return s
}

func dropLastRune(str string) string {
	if str == "" {
		return str
	}
	_, size := utf8.DecodeLastRuneInString(str)
	return str[:len(str)-size]
}

// SelectionKind tells which field of a Selection is set.
type SelectionKind int

const (
	SelectNone SelectionKind = iota
	SelectItem
	SelectEntry
)

// Selection is the thing under the cursor in the current mode.
type Selection struct {
	Kind  SelectionKind
	Item  flow.Item
	Entry annotation.Entry
}

// Key is the annotation key of the selection, or "" when nothing is
// selected.
func (sel Selection) Key() string {
	switch sel.Kind {
	case SelectItem:
		return sel.Item.Key
	case SelectEntry:
		return sel.Entry.Key
	}
	return ""
}

// Current returns the selection for the active mode.
func (s Session) Current() Selection {
	if s.mode == ModeAnnotations {
		notes := s.store.NonEmpty()
		if len(notes) == 0 {
			return Selection{}
		}
		return Selection{Kind: SelectEntry, Entry: notes[s.noteCursor.Clamp(len(notes)).Index]}
	}
	if len(s.layout.Items) == 0 {
		return Selection{}
	}
	return Selection{Kind: SelectItem, Item: s.layout.Items[s.graphCursor.Clamp(len(s.layout.Items)).Index]}
}

func (s Session) SelectedKey() string { return s.Current().Key() }

// Match returns the item index highlighted by the finder.
func (s Session) Match() (int, bool) {
	if !s.finding || len(s.matches) == 0 {
		return 0, false
	}
	return s.matches[s.matchIndex.Clamp(len(s.matches)).Index], true
}

func (s Session) Mode() Mode                    { return s.mode }
func (s Session) Title() string                 { return s.config.Title }
func (s Session) Config() flow.Config           { return s.config }
func (s Session) Graph() flow.Graph             { return s.graph }
func (s Session) Layout() flow.Layout           { return s.layout }
func (s Session) Annotations() annotation.Store { return s.store }
func (s Session) Notes() []annotation.Entry     { return s.store.NonEmpty() }
func (s Session) GraphIndex() int               { return s.graphCursor.Index }
func (s Session) NoteIndex() int                { return s.noteCursor.Index }

// Editing reports whether an annotation is being composed, and for which key.
func (s Session) Editing() (key string, ok bool) { return s.editKey, s.editing }
func (s Session) Buffer() string                  { return s.buffer }

// Finding reports whether the finder is open, with its query.
func (s Session) Finding() (query string, ok bool) { return s.query, s.finding }
func (s Session) Matches() []int                   { return s.matches }
