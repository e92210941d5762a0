package flow

import "strings"

// PathSeparator joins labels in the annotation key of a back-reference.
const PathSeparator = " → "

// Branch and continuation glyphs.
const (
	BranchTee    = "├─▶ "
	BranchLast   = "└─▶ "
	BranchPipe   = "│"
	indentPipe   = "│   "
	indentBlank  = "    "
	GlyphBackRef = "↩"
)

// LineKind tells the renderer how to draw a line.
type LineKind int

const (
	LineNode LineKind = iota
	LineConnector
	LineBackRef
)

// Line is one row of the linearized flowchart.
type Line struct {
	Prefix   string
	Branch   string
	Kind     LineKind
	NodeID   string
	Label    string
	NodeKind Kind
	Depth    int
	// Item indexes Layout.Items, or -1 for connector lines.
	Item int
}

// String renders the line as plain text.
func (l Line) String() string {
	switch l.Kind {
	case LineConnector:
		return l.Prefix + l.Branch
	case LineBackRef:
		return l.Prefix + l.Branch + GlyphBackRef + " " + l.Label
	default:
		return l.Prefix + l.Branch + Glyph(l.NodeKind) + " " + l.Label
	}
}

// Item is one selectable occurrence of a node. Key is the node id for the
// first occurrence and the root-to-node label path for back-references.
type Item struct {
	NodeID  string
	Label   string
	Key     string
	BackRef bool
	Line    int
}

// Layout is the output of Linearize.
type Layout struct {
	Lines []Line
	Items []Item
}

// Glyph returns the marker drawn in front of a node label.
func Glyph(k Kind) string {
	switch k {
	case KindStart:
		return "◉"
	case KindDecision:
		return "◇"
	case KindEnd:
		return "■"
	default:
		return "□"
	}
}

// Linearize walks g depth first from each root, in root order, and returns
// the flattened lines plus the selectable items. A node reached a second
// time becomes a back-reference and its children are not walked again.
// Nodes not reachable from any root (cycles without an entry point) are
// walked afterwards as extra entries in node-list order.
func Linearize(g Graph) Layout {
	w := walker{g: g, visited: make(map[string]bool, g.Len())}
	for _, id := range g.Roots {
		w.visit(id, "", "", "", 0, nil)
	}
	for _, n := range g.Nodes {
		if !w.visited[n.ID] {
			w.visit(n.ID, "", "", "", 0, nil)
		}
	}
	return w.out
}

type walker struct {
	g       Graph
	visited map[string]bool
	out     Layout
}

func (w *walker) visit(id, prefix, branch, childPrefix string, depth int, path []string) {
	node, _ := w.g.Node(id)
	path = append(path[:len(path):len(path)], node.Label)

	if w.visited[id] {
		w.emit(Line{
			Prefix: prefix, Branch: branch, Kind: LineBackRef,
			NodeID: id, Label: node.Label, NodeKind: node.Kind, Depth: depth,
		}, Item{NodeID: id, Label: node.Label, Key: strings.Join(path, PathSeparator), BackRef: true})
		return
	}
	w.visited[id] = true
	w.emit(Line{
		Prefix: prefix, Branch: branch, Kind: LineNode,
		NodeID: id, Label: node.Label, NodeKind: node.Kind, Depth: depth,
	}, Item{NodeID: id, Label: node.Label, Key: id})

	children := w.g.Children[id]
	switch len(children) {
	case 0:
	case 1:
		w.out.Lines = append(w.out.Lines, Line{
			Prefix: childPrefix, Branch: BranchPipe, Kind: LineConnector,
			NodeID: id, Depth: depth + 1, Item: -1,
		})
		w.visit(children[0], childPrefix, BranchLast, childPrefix+indentBlank, depth+1, path)
	default:
		last := len(children) - 1
		for i, child := range children {
			if i == last {
				w.visit(child, childPrefix, BranchLast, childPrefix+indentBlank, depth+1, path)
			} else {
				w.visit(child, childPrefix, BranchTee, childPrefix+indentPipe, depth+1, path)
			}
		}
	}
}

func (w *walker) emit(l Line, it Item) {
	it.Line = len(w.out.Lines)
	l.Item = len(w.out.Items)
	w.out.Lines = append(w.out.Lines, l)
	w.out.Items = append(w.out.Items, it)
}

// Text renders every line as plain text.
func (l Layout) Text() []string {
	out := make([]string, len(l.Lines))
	for i, line := range l.Lines {
		out[i] = line.String()
	}
	return out
}
