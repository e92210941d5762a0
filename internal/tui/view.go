package tui

import (
	"fmt"
	"strings"

	"github.com/charmbracelet/lipgloss"

	"github.com/jask/flowcanvas/internal/flow"
	"github.com/jask/flowcanvas/internal/session"
)

const cursorGlyph = "▌"

func (m Model) View() string {
	if m.quitting {
		return ""
	}
	s := m.session

	header := titleStyle.Render(titleOr(s.Title(), "flowchart")) + "  " +
		statusStyle.Render(fmt.Sprintf("%s · %d items · %d notes", s.Mode(), len(s.Layout().Items), len(s.Notes())))

	var bottom []string
	if p := m.renderPrompt(); p != "" {
		bottom = append(bottom, p)
	} else if d := m.renderDetail(); d != "" {
		bottom = append(bottom, d)
	}
	if m.showHelp {
		bottom = append(bottom, m.help.ShortHelpView(m.keys.HelpBindings(m.scope())))
	}
	footer := strings.Join(bottom, "\n")

	var body []string
	if s.Mode() == session.ModeAnnotations {
		body = m.renderNotes()
	} else {
		body = m.renderGraph()
	}
	if m.height > 0 {
		avail := m.height - 2 - lipgloss.Height(footer)
		body = window(body, m.focusLine(), avail)
	}

	parts := []string{header, "", strings.Join(body, "\n")}
	if footer != "" {
		parts = append(parts, "", footer)
	}
	return strings.Join(parts, "\n")
}

func titleOr(s, fallback string) string {
	if strings.TrimSpace(s) == "" {
		return fallback
	}
	return s
}

func (m Model) renderGraph() []string {
	s := m.session
	layout := s.Layout()
	if len(layout.Lines) == 0 {
		return []string{emptyStyle.Render("empty flowchart")}
	}

	selected := -1
	if cur := s.Current(); cur.Kind == session.SelectItem {
		selected = cur.Item.Line
	}
	match := -1
	if i, ok := s.Match(); ok {
		match = layout.Items[i].Line
	}
	store := s.Annotations()

	out := make([]string, len(layout.Lines))
	for i, l := range layout.Lines {
		var noted bool
		if l.Item >= 0 {
			text, _ := store.Get(layout.Items[l.Item].Key)
			noted = text != ""
		}
		out[i] = renderLine(l, i == selected, i == match, noted)
	}
	return out
}

func renderLine(l flow.Line, selected, match, noted bool) string {
	lead := connectorStyle.Render(l.Prefix + l.Branch)
	if l.Kind == flow.LineConnector {
		return lead
	}

	label := l.Label
	glyph := lipgloss.NewStyle().Foreground(KindColor(l.NodeKind)).Render(flow.Glyph(l.NodeKind))
	if l.Kind == flow.LineBackRef {
		glyph = backRefStyle.Render(flow.GlyphBackRef)
	}

	switch {
	case selected:
		label = selectedStyle.Render(" " + label + " ")
	case match:
		label = labelStyle.Underline(true).Render(label)
	case l.Kind == flow.LineBackRef:
		label = backRefStyle.Render(label)
	default:
		label = labelStyle.Render(label)
	}

	line := lead + glyph + " " + label
	if noted {
		line += noteMarkStyle.Render(" ✎")
	}
	return line
}

func (m Model) renderNotes() []string {
	notes := m.session.Notes()
	if len(notes) == 0 {
		return []string{emptyStyle.Render("no annotations yet")}
	}
	sel := m.session.NoteIndex()
	out := make([]string, len(notes))
	for i, n := range notes {
		key := noteKeyStyle.Render(n.Key)
		if i == sel {
			key = selectedStyle.Render(" " + n.Key + " ")
		}
		out[i] = key + "  " + noteTextStyle.Render(n.Text)
	}
	return out
}

func (m Model) renderDetail() string {
	cur := m.session.Current()
	if cur.Kind != session.SelectItem {
		return ""
	}
	text, _ := m.session.Annotations().Get(cur.Item.Key)
	if text == "" {
		return ""
	}
	return m.panel(noteKeyStyle.Render(cur.Item.Key) + "\n" + noteTextStyle.Render(text))
}

func (m Model) renderPrompt() string {
	s := m.session
	if key, ok := s.Editing(); ok {
		return m.panel(promptStyle.Render("✎ "+key) + "\n" + s.Buffer() + cursorGlyph)
	}
	if q, ok := s.Finding(); ok {
		return promptStyle.Render("/ ") + q + cursorGlyph +
			statusStyle.Render(fmt.Sprintf("  %d matches", len(s.Matches())))
	}
	return ""
}

func (m Model) panel(content string) string {
	style := panelStyle
	if m.width > 4 {
		style = style.Width(m.width - 4)
	}
	return style.Render(content)
}

// focusLine is the body line that must stay visible.
func (m Model) focusLine() int {
	s := m.session
	if s.Mode() == session.ModeAnnotations {
		return s.NoteIndex()
	}
	if i, ok := s.Match(); ok {
		return s.Layout().Items[i].Line
	}
	if cur := s.Current(); cur.Kind == session.SelectItem {
		return cur.Item.Line
	}
	return 0
}

// window returns at most height lines of lines, scrolled so focus is
// roughly centred.
func window(lines []string, focus, height int) []string {
	if height <= 0 || len(lines) <= height {
		return lines
	}
	start := focus - height/2
	if start < 0 {
		start = 0
	}
	if start+height > len(lines) {
		start = len(lines) - height
	}
	return lines[start : start+height]
}
