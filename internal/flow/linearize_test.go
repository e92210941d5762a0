package flow

import (
	"reflect"
	"strings"
	"testing"
)

func nodes(ids ...string) []Node {
	out := make([]Node, len(ids))
	for i, id := range ids {
		out[i] = Node{ID: id, Label: id}
	}
	return out
}

func TestBuildDropsDanglingEdges(t *testing.T) {
	g := Build(nodes("a", "b"), []Edge{{"a", "b"}, {"a", "ghost"}, {"ghost", "b"}})

	if got := g.Children["a"]; !reflect.DeepEqual(got, []string{"b"}) {
		t.Fatalf("children[a] = %v, want [b]", got)
	}
	if got := g.Parents["b"]; !reflect.DeepEqual(got, []string{"a"}) {
		t.Fatalf("parents[b] = %v, want [a]", got)
	}
	if g.Has("ghost") {
		t.Fatalf("dangling edge created a node")
	}
}

func TestBuildRootsKeepNodeOrder(t *testing.T) {
	g := Build(nodes("z", "child", "a"), []Edge{{"a", "child"}})
	if want := []string{"z", "a"}; !reflect.DeepEqual(g.Roots, want) {
		t.Fatalf("roots = %v, want %v", g.Roots, want)
	}
}

func TestBuildKeepsDuplicateEdges(t *testing.T) {
	g := Build(nodes("a", "b"), []Edge{{"a", "b"}, {"a", "b"}})
	if len(g.Children["a"]) != 2 {
		t.Fatalf("children[a] = %v, want two entries", g.Children["a"])
	}
}

func TestBuildFirstDuplicateIDWins(t *testing.T) {
	g := Build([]Node{{ID: "a", Label: "first"}, {ID: "a", Label: "second"}}, nil)
	if len(g.Nodes) != 1 {
		t.Fatalf("nodes = %v, want one", g.Nodes)
	}
	if n, _ := g.Node("a"); n.Label != "first" {
		t.Fatalf("label = %q, want first", n.Label)
	}
}

func TestLinearizeChain(t *testing.T) {
	ids := []string{"n1", "n2", "n3", "n4", "n5"}
	var edges []Edge
	for i := 0; i+1 < len(ids); i++ {
		edges = append(edges, Edge{ids[i], ids[i+1]})
	}
	layout := Linearize(Build(nodes(ids...), edges))

	if len(layout.Items) != len(ids) {
		t.Fatalf("items = %d, want %d", len(layout.Items), len(ids))
	}
	for i, it := range layout.Items {
		if it.BackRef {
			t.Fatalf("item %d is a back-reference", i)
		}
		if it.Key != ids[i] || it.NodeID != ids[i] {
			t.Fatalf("item %d = %+v, want key %q", i, it, ids[i])
		}
	}
}

func TestLinearizeDiamond(t *testing.T) {
	g := Build(nodes("A", "B", "C", "D"), []Edge{{"A", "B"}, {"A", "C"}, {"B", "D"}, {"C", "D"}})
	layout := Linearize(g)

	var keys []string
	var dLines int
	for _, it := range layout.Items {
		keys = append(keys, it.Key)
	}
	for _, l := range layout.Lines {
		if l.NodeID == "D" && l.Kind != LineConnector {
			dLines++
		}
	}
	if dLines != 2 {
		t.Fatalf("D drawn %d times, want 2", dLines)
	}
	want := []string{"A", "B", "D", "C", "A → C → D"}
	if !reflect.DeepEqual(keys, want) {
		t.Fatalf("keys = %v, want %v", keys, want)
	}
	if !layout.Items[4].BackRef || layout.Items[2].BackRef {
		t.Fatalf("back-reference flags wrong: %+v", layout.Items)
	}
}

func TestLinearizeDiamondSecondBranchPath(t *testing.T) {
	g := Build(nodes("A", "B", "C", "D"), []Edge{{"A", "C"}, {"A", "B"}, {"B", "D"}, {"C", "D"}})
	layout := Linearize(g)
	last := layout.Items[len(layout.Items)-1]
	if last.Key != "A → B → D" || !last.BackRef {
		t.Fatalf("last item = %+v, want back-reference A → B → D", last)
	}
}

func TestLinearizeRendersBranches(t *testing.T) {
	g := Build(
		[]Node{{ID: "s", Label: "Start", Kind: KindStart}, {ID: "q", Label: "Ok?", Kind: KindDecision}, {ID: "y", Label: "Yes"}, {ID: "n", Label: "No", Kind: KindEnd}},
		[]Edge{{"s", "q"}, {"q", "y"}, {"q", "n"}},
	)
	got := strings.Join(Linearize(g).Text(), "\n")
	want := strings.Join([]string{
		"◉ Start",
		"│",
		"└─▶ ◇ Ok?",
		"    ├─▶ □ Yes",
		"    └─▶ ■ No",
	}, "\n")
	if got != want {
		t.Fatalf("layout:\n%s\nwant:\n%s", got, want)
	}
}

func TestLinearizeContinuationPrefix(t *testing.T) {
	g := Build(nodes("r", "a", "b", "a1"), []Edge{{"r", "a"}, {"r", "b"}, {"a", "a1"}})
	got := Linearize(g).Text()
	want := []string{
		"□ r",
		"├─▶ □ a",
		"│   │",
		"│   └─▶ □ a1",
		"└─▶ □ b",
	}
	if !reflect.DeepEqual(got, want) {
		t.Fatalf("layout = %q, want %q", got, want)
	}
}

func TestLinearizeCycleTerminates(t *testing.T) {
	g := Build(nodes("a", "b"), []Edge{{"a", "b"}, {"b", "a"}})
	if len(g.Roots) != 0 {
		t.Fatalf("roots = %v, want none", g.Roots)
	}
	layout := Linearize(g)
	keys := make([]string, len(layout.Items))
	for i, it := range layout.Items {
		keys[i] = it.Key
	}
	if want := []string{"a", "b", "a → b → a"}; !reflect.DeepEqual(keys, want) {
		t.Fatalf("keys = %v, want %v", keys, want)
	}
}

func TestLinearizeReachesDetachedCycle(t *testing.T) {
	g := Build(nodes("root", "x", "y"), []Edge{{"x", "y"}, {"y", "x"}})
	layout := Linearize(g)
	seen := map[string]bool{}
	for _, it := range layout.Items {
		if !it.BackRef {
			seen[it.NodeID] = true
		}
	}
	for _, id := range []string{"root", "x", "y"} {
		if !seen[id] {
			t.Fatalf("node %q never drawn as a primary occurrence", id)
		}
	}
}

func TestLinearizeVisitsEveryNodeOnceInDAG(t *testing.T) {
	// two roots sharing descendants
	g := Build(nodes("r1", "r2", "m", "x", "y"), []Edge{
		{"r1", "m"}, {"r2", "m"}, {"m", "x"}, {"m", "y"}, {"r1", "y"},
	})
	layout := Linearize(g)

	primary := map[string]int{}
	backrefs := map[string]int{}
	for _, it := range layout.Items {
		if it.BackRef {
			backrefs[it.NodeID]++
		} else {
			primary[it.NodeID]++
		}
	}
	for _, n := range g.Nodes {
		if primary[n.ID] != 1 {
			t.Fatalf("node %q primary count = %d, want 1", n.ID, primary[n.ID])
		}
		if in := len(g.Parents[n.ID]); in > 0 && backrefs[n.ID] != in-1 {
			t.Fatalf("node %q back-references = %d, want %d", n.ID, backrefs[n.ID], in-1)
		}
	}
}

func TestLinearizeIsIdempotent(t *testing.T) {
	g := Build(nodes("A", "B", "C", "D"), []Edge{{"A", "B"}, {"A", "C"}, {"B", "D"}, {"C", "D"}})
	first, second := Linearize(g), Linearize(g)
	if !reflect.DeepEqual(first, second) {
		t.Fatalf("linearize not idempotent")
	}
}

func TestLinearizeItemLineLinks(t *testing.T) {
	g := Build(nodes("a", "b"), []Edge{{"a", "b"}})
	layout := Linearize(g)
	for i, it := range layout.Items {
		if layout.Lines[it.Line].Item != i {
			t.Fatalf("item %d points at line %d which points back at %d", i, it.Line, layout.Lines[it.Line].Item)
		}
	}
}

func TestLinearizeEmpty(t *testing.T) {
	layout := Linearize(Build(nil, nil))
	if len(layout.Lines) != 0 || len(layout.Items) != 0 {
		t.Fatalf("expected empty layout, got %+v", layout)
	}
}
