// Package flow holds the flowchart model: the configuration pushed by the
// driver, the derived graph, and the linearized view of that graph.
package flow

import (
	"github.com/jask/flowcanvas/internal/annotation"
)

// Kind selects the glyph used for a node.
type Kind string

const (
	KindStart    Kind = "start"
	KindProcess  Kind = "process"
	KindDecision Kind = "decision"
	KindEnd      Kind = "end"
)

// Node is one flowchart step. IDs are expected to be unique; later
// duplicates are ignored when the graph is built.
type Node struct {
	ID    string `json:"id" yaml:"id" toml:"id"`
	Label string `json:"label" yaml:"label" toml:"label"`
	Kind  Kind   `json:"kind,omitempty" yaml:"kind,omitempty" toml:"kind,omitempty"`

	// Type is the older spelling of Kind, still sent by some drivers.
	Type Kind `json:"type,omitempty" yaml:"type,omitempty" toml:"type,omitempty"`
}

// Edge is an ordered (from, to) pair, encoded as a two element array.
type Edge [2]string

// From returns the source node id.
func (e Edge) From() string { return e[0] }

// To returns the target node id.
func (e Edge) To() string { return e[1] }

// Config is a full flowchart description. Annotations is nil when the
// sender did not include an annotation map, which is different from an
// empty map.
type Config struct {
	Title       string            `json:"title,omitempty" yaml:"title,omitempty"`
	Nodes       []Node            `json:"nodes" yaml:"nodes"`
	Edges       []Edge            `json:"edges" yaml:"edges"`
	Annotations *annotation.Store `json:"annotations,omitempty" yaml:"annotations,omitempty"`

	// Comments is accepted as an alias for Annotations.
	Comments *annotation.Store `json:"comments,omitempty" yaml:"comments,omitempty"`
}

// Normalize folds the alias fields into their canonical spelling.
func (c Config) Normalize() Config {
	if c.Annotations == nil && c.Comments != nil {
		c.Annotations = c.Comments
	}
	c.Comments = nil
	if len(c.Nodes) > 0 {
		nodes := make([]Node, len(c.Nodes))
		for i, n := range c.Nodes {
			if n.Kind == "" {
				n.Kind = n.Type
			}
			n.Type = ""
			nodes[i] = n
		}
		c.Nodes = nodes
	}
	return c
}

// Graph builds the adjacency for the configured nodes and edges.
func (c Config) Graph() Graph {
	return Build(c.Nodes, c.Edges)
}
