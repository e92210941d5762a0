package flow

// Graph is the adjacency derived from a node list and an edge list.
// Children and Parents keep edge order; Roots keeps node-list order.
type Graph struct {
	Nodes    []Node
	Children map[string][]string
	Parents  map[string][]string
	Roots    []string

	index map[string]int
}

// Build derives a Graph. Edges that name an unknown node are dropped; they
// never create nodes.
func Build(nodes []Node, edges []Edge) Graph {
	g := Graph{
		Nodes:    make([]Node, 0, len(nodes)),
		Children: make(map[string][]string, len(nodes)),
		Parents:  make(map[string][]string, len(nodes)),
		index:    make(map[string]int, len(nodes)),
	}
	for _, n := range nodes {
		if _, dup := g.index[n.ID]; dup {
			continue
		}
		g.index[n.ID] = len(g.Nodes)
		g.Nodes = append(g.Nodes, n)
	}

	for _, e := range edges {
		if !g.Has(e.From()) || !g.Has(e.To()) {
			continue
		}
		g.Children[e.From()] = append(g.Children[e.From()], e.To())
		g.Parents[e.To()] = append(g.Parents[e.To()], e.From())
	}

	for _, n := range g.Nodes {
		if len(g.Parents[n.ID]) == 0 {
			g.Roots = append(g.Roots, n.ID)
		}
	}
	return g
}

// Has reports whether id names a node.
func (g Graph) Has(id string) bool {
	_, ok := g.index[id]
	return ok
}

// Node looks up a node by id.
func (g Graph) Node(id string) (Node, bool) {
	i, ok := g.index[id]
	if !ok {
		return Node{}, false
	}
	return g.Nodes[i], true
}

// Len is the number of distinct nodes.
func (g Graph) Len() int { return len(g.Nodes) }
