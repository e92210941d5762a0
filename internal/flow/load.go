package flow

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/BurntSushi/toml"
	"github.com/bytedance/sonic"
	"gopkg.in/yaml.v3"

	"github.com/jask/flowcanvas/internal/annotation"
)

// Decode parses a JSON flowchart config.
func Decode(data []byte) (Config, error) {
	var c Config
	if err := sonic.ConfigStd.Unmarshal(data, &c); err != nil {
		return Config{}, fmt.Errorf("decode flowchart: %w", err)
	}
	return c.Normalize(), nil
}

// Encode writes c as JSON.
func Encode(c Config) ([]byte, error) {
	data, err := sonic.ConfigStd.Marshal(c.Normalize())
	if err != nil {
		return nil, fmt.Errorf("encode flowchart: %w", err)
	}
	return data, nil
}

// LoadFile reads a flowchart from disk. The format follows the extension:
// .yaml/.yml, .toml, anything else is JSON.
func LoadFile(path string) (Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return Config{}, fmt.Errorf("read flowchart: %w", err)
	}
	switch strings.ToLower(filepath.Ext(path)) {
	case ".yaml", ".yml":
		return decodeYAML(data)
	case ".toml":
		return decodeTOML(data)
	default:
		return Decode(data)
	}
}

func decodeYAML(data []byte) (Config, error) {
	var c Config
	if err := yaml.Unmarshal(data, &c); err != nil {
		return Config{}, fmt.Errorf("decode flowchart yaml: %w", err)
	}
	return c.Normalize(), nil
}

// tomlConfig mirrors Config; TOML tables carry no key order so annotation
// maps are sorted by key.
type tomlConfig struct {
	Title       string            `toml:"title"`
	Nodes       []Node            `toml:"nodes"`
	Edges       [][]string        `toml:"edges"`
	Annotations map[string]string `toml:"annotations"`
	Comments    map[string]string `toml:"comments"`
}

func decodeTOML(data []byte) (Config, error) {
	var tc tomlConfig
	md, err := toml.Decode(string(data), &tc)
	if err != nil {
		return Config{}, fmt.Errorf("decode flowchart toml: %w", err)
	}
	c := Config{Title: tc.Title, Nodes: tc.Nodes}
	for _, e := range tc.Edges {
		if len(e) < 2 {
			continue
		}
		c.Edges = append(c.Edges, Edge{e[0], e[1]})
	}
	if md.IsDefined("annotations") {
		s := annotation.FromMap(tc.Annotations)
		c.Annotations = &s
	}
	if md.IsDefined("comments") {
		s := annotation.FromMap(tc.Comments)
		c.Comments = &s
	}
	return c.Normalize(), nil
}
