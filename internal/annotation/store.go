// Package annotation holds the free-text commentary attached to flowchart items.
//
// A Store is an ordered, immutable map. Every write returns a new Store so a
// snapshot handed to the renderer or to the protocol layer never changes
// underneath it.
package annotation

import (
	"bytes"
	"fmt"
	"sort"

	"github.com/bytedance/sonic"
	"github.com/bytedance/sonic/ast"
	"gopkg.in/yaml.v3"
)

// Entry is one annotation in insertion order.
type Entry struct {
	Key  string
	Text string
}

// Store maps annotation keys to text, remembering insertion order.
// The zero value is an empty store.
type Store struct {
	keys []string
	text map[string]string
}

// New builds a store from entries. A repeated key keeps its first position
// and its last text.
func New(entries ...Entry) Store {
	s := Store{text: make(map[string]string, len(entries))}
	for _, e := range entries {
		if _, ok := s.text[e.Key]; !ok {
			s.keys = append(s.keys, e.Key)
		}
		s.text[e.Key] = e.Text
	}
	return s
}

// FromMap builds a store from an unordered map. Keys are sorted so the
// result is deterministic.
func FromMap(m map[string]string) Store {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	entries := make([]Entry, 0, len(keys))
	for _, k := range keys {
		entries = append(entries, Entry{Key: k, Text: m[k]})
	}
	return New(entries...)
}

// Get returns the text stored under key.
func (s Store) Get(key string) (string, bool) {
	t, ok := s.text[key]
	return t, ok
}

// Set returns a copy of s with key set to text. An existing key keeps its
// position.
func (s Store) Set(key, text string) Store {
	next := Store{text: make(map[string]string, len(s.text)+1)}
	for k, v := range s.text {
		next.text[k] = v
	}
	next.keys = make([]string, len(s.keys), len(s.keys)+1)
	copy(next.keys, s.keys)
	if _, ok := s.text[key]; !ok {
		next.keys = append(next.keys, key)
	}
	next.text[key] = text
	return next
}

// Len reports the number of keys, including keys with empty text.
func (s Store) Len() int { return len(s.keys) }

// Entries returns every entry in insertion order.
func (s Store) Entries() []Entry {
	out := make([]Entry, 0, len(s.keys))
	for _, k := range s.keys {
		out = append(out, Entry{Key: k, Text: s.text[k]})
	}
	return out
}

// NonEmpty returns the entries whose text is not empty, in insertion order.
func (s Store) NonEmpty() []Entry {
	out := make([]Entry, 0, len(s.keys))
	for _, k := range s.keys {
		if t := s.text[k]; t != "" {
			out = append(out, Entry{Key: k, Text: t})
		}
	}
	return out
}

// Compact returns a store holding only the non-empty entries.
func (s Store) Compact() Store {
	return New(s.NonEmpty()...)
}

// MarshalJSON writes the store as a JSON object in insertion order.
func (s Store) MarshalJSON() ([]byte, error) {
	var buf bytes.Buffer
	buf.WriteByte('{')
	for i, k := range s.keys {
		if i > 0 {
			buf.WriteByte(',')
		}
		kb, err := sonic.Marshal(k)
		if err != nil {
			return nil, err
		}
		vb, err := sonic.Marshal(s.text[k])
		if err != nil {
			return nil, err
		}
		buf.Write(kb)
		buf.WriteByte(':')
		buf.Write(vb)
	}
	buf.WriteByte('}')
	return buf.Bytes(), nil
}

// UnmarshalJSON reads a JSON object keeping document order.
func (s *Store) UnmarshalJSON(data []byte) error {
	root, err := sonic.Get(data)
	if err != nil {
		return fmt.Errorf("annotations: %w", err)
	}
	switch root.TypeSafe() {
	case ast.V_NULL:
		*s = Store{}
		return nil
	case ast.V_OBJECT:
	default:
		return fmt.Errorf("annotations: expected an object")
	}

	var (
		entries []Entry
		walkErr error
	)
	err = root.ForEach(func(path ast.Sequence, node *ast.Node) bool {
		if path.Key == nil {
			return true
		}
		if node.TypeSafe() == ast.V_NULL {
			entries = append(entries, Entry{Key: *path.Key})
			return true
		}
		text, err := node.String()
		if err != nil {
			walkErr = fmt.Errorf("annotations[%q]: %w", *path.Key, err)
			return false
		}
		entries = append(entries, Entry{Key: *path.Key, Text: text})
		return true
	})
	if err != nil {
		return fmt.Errorf("annotations: %w", err)
	}
	if walkErr != nil {
		return walkErr
	}
	*s = New(entries...)
	return nil
}

// UnmarshalYAML reads a YAML mapping keeping document order.
func (s *Store) UnmarshalYAML(node *yaml.Node) error {
	if node.Kind != yaml.MappingNode {
		return fmt.Errorf("annotations: expected a mapping, line %d", node.Line)
	}
	entries := make([]Entry, 0, len(node.Content)/2)
	for i := 0; i+1 < len(node.Content); i += 2 {
		var key, text string
		if err := node.Content[i].Decode(&key); err != nil {
			return fmt.Errorf("annotations key, line %d: %w", node.Content[i].Line, err)
		}
		if err := node.Content[i+1].Decode(&text); err != nil {
			return fmt.Errorf("annotations[%q]: %w", key, err)
		}
		entries = append(entries, Entry{Key: key, Text: text})
	}
	*s = New(entries...)
	return nil
}
