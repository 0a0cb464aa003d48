package datasource

import (
	"bytes"
	"fmt"
	"os"
	"path/filepath"

	json "github.com/goccy/go-json"
	"gopkg.in/yaml.v3"

	"github.com/vanderheijden86/arbor/pkg/model"
)

// Document is the on-disk shape of a tree file. A file may also hold a bare
// array of nodes.
type Document struct {
	Title string        `json:"title,omitempty" yaml:"title,omitempty"`
	Nodes []*model.Node `json:"nodes" yaml:"nodes"`
}

// LoadFile reads a JSON or YAML tree file.
func LoadFile(path string, t SourceType) (Document, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return Document{}, fmt.Errorf("reading tree file: %w", err)
	}
	doc, err := Decode(data, t)
	if err != nil {
		return Document{}, fmt.Errorf("parsing %s: %w", filepath.Base(path), err)
	}
	return doc, nil
}

// Decode parses tree file contents of the given type.
func Decode(data []byte, t SourceType) (Document, error) {
	var doc Document
	switch t {
	case SourceTypeJSON:
		trimmed := bytes.TrimSpace(data)
		if len(trimmed) > 0 && trimmed[0] == '[' {
			if err := json.Unmarshal(trimmed, &doc.Nodes); err != nil {
				return Document{}, err
			}
			break
		}
		if err := json.Unmarshal(data, &doc); err != nil {
			return Document{}, err
		}
	case SourceTypeYAML:
		var probe yaml.Node
		if err := yaml.Unmarshal(data, &probe); err != nil {
			return Document{}, err
		}
		if len(probe.Content) > 0 && probe.Content[0].Kind == yaml.SequenceNode {
			if err := probe.Decode(&doc.Nodes); err != nil {
				return Document{}, err
			}
			break
		}
		if err := probe.Decode(&doc); err != nil {
			return Document{}, err
		}
	default:
		return Document{}, fmt.Errorf("%s is not a file format: %w", t, ErrUnknownFormat)
	}
	doc.Nodes = compact(doc.Nodes)
	return doc, nil
}

// compact drops null entries so the engine never sees nil siblings.
func compact(nodes []*model.Node) []*model.Node {
	out := nodes[:0]
	for _, n := range nodes {
		if n == nil {
			continue
		}
		if len(n.Children) > 0 {
			n.Children = compact(n.Children)
		}
		out = append(out, n)
	}
	return out
}

// Encode serializes a document in the given format.
func Encode(doc Document, t SourceType) ([]byte, error) {
	switch t {
	case SourceTypeJSON:
		data, err := json.MarshalIndent(doc, "", "  ")
		if err != nil {
			return nil, err
		}
		return append(data, '\n'), nil
	case SourceTypeYAML:
		return yaml.Marshal(doc)
	default:
		return nil, fmt.Errorf("%s: %w", t, ErrReadOnly)
	}
}

// SaveFile writes a document atomically (temp file + rename). Lazy nodes are
// written without children.
func SaveFile(path string, t SourceType, doc Document) error {
	data, err := Encode(doc, t)
	if err != nil {
		return fmt.Errorf("encoding tree: %w", err)
	}

	dir := filepath.Dir(path)
	tmp, err := os.CreateTemp(dir, ".arbor-*")
	if err != nil {
		return fmt.Errorf("creating temp file: %w", err)
	}
	tmpName := tmp.Name()
	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		os.Remove(tmpName)
		return fmt.Errorf("writing tree: %w", err)
	}
	if err := tmp.Close(); err != nil {
		os.Remove(tmpName)
		return fmt.Errorf("writing tree: %w", err)
	}
	if err := os.Rename(tmpName, path); err != nil {
		os.Remove(tmpName)
		return fmt.Errorf("replacing %s: %w", filepath.Base(path), err)
	}
	return nil
}
