package config

import (
	"bytes"
	"os"
	"path/filepath"
	"strings"

	"github.com/cockroachdb/errors"
	"gopkg.in/yaml.v3"
)

// SetValue sets a dotted key such as "watch.debounce" in the config file.
// Comments and formatting of other sections are preserved by editing the
// yaml.Node tree. Missing intermediate mappings are created. The value is
// written as a plain scalar, so YAML resolves its type on the next load.
func SetValue(configPath, dottedKey, value string) error {
	path := strings.Split(dottedKey, ".")
	for _, p := range path {
		if p == "" {
			return errors.Newf("invalid config key %q", dottedKey)
		}
	}

	data, err := os.ReadFile(configPath)
	if err != nil && !os.IsNotExist(err) {
		return errors.Wrap(err, "reading config")
	}

	var doc yaml.Node
	if len(data) > 0 {
		if err := yaml.Unmarshal(data, &doc); err != nil {
			return errors.Wrap(err, "parsing config")
		}
	}
	if doc.Kind == 0 {
		doc = yaml.Node{
			Kind:    yaml.DocumentNode,
			Content: []*yaml.Node{{Kind: yaml.MappingNode}},
		}
	}
	if doc.Kind != yaml.DocumentNode || len(doc.Content) == 0 || doc.Content[0].Kind != yaml.MappingNode {
		return errors.New("config root must be a mapping")
	}

	node := doc.Content[0]
	for i, p := range path {
		last := i == len(path)-1
		child := lookup(node, p)
		switch {
		case child == nil && last:
			node.Content = append(node.Content,
				&yaml.Node{Kind: yaml.ScalarNode, Value: p},
				&yaml.Node{Kind: yaml.ScalarNode, Value: value},
			)
		case child == nil:
			child = &yaml.Node{Kind: yaml.MappingNode}
			node.Content = append(node.Content, &yaml.Node{Kind: yaml.ScalarNode, Value: p}, child)
			node = child
		case last:
			if child.Kind != yaml.ScalarNode {
				return errors.Newf("config key %q is not a scalar", dottedKey)
			}
			child.Value = value
			child.Tag = ""
			child.Style = 0
		default:
			if child.Kind != yaml.MappingNode {
				return errors.Newf("config key %q is not a mapping", strings.Join(path[:i+1], "."))
			}
			node = child
		}
	}

	var buf bytes.Buffer
	encoder := yaml.NewEncoder(&buf)
	encoder.SetIndent(2)
	if err := encoder.Encode(&doc); err != nil {
		return errors.Wrap(err, "marshaling config")
	}
	_ = encoder.Close()

	return writeAtomic(configPath, buf.Bytes())
}

// lookup returns the value node for key in a mapping node.
func lookup(mapping *yaml.Node, key string) *yaml.Node {
	for i := 0; i+1 < len(mapping.Content); i += 2 {
		if mapping.Content[i].Value == key {
			return mapping.Content[i+1]
		}
	}
	return nil
}

// writeAtomic writes to a temp file next to path, then renames it.
func writeAtomic(path string, data []byte) error {
	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0o750); err != nil {
		return errors.Wrap(err, "creating config directory")
	}

	temp, err := os.CreateTemp(dir, ".keystone.yaml.tmp.*")
	if err != nil {
		return errors.Wrap(err, "creating temp file")
	}
	tempPath := temp.Name()

	if _, err := temp.Write(data); err != nil {
		_ = temp.Close()
		_ = os.Remove(tempPath)
		return errors.Wrap(err, "writing temp file")
	}
	if err := temp.Close(); err != nil {
		_ = os.Remove(tempPath)
		return errors.Wrap(err, "closing temp file")
	}

	if err := os.Rename(tempPath, path); err != nil {
		_ = os.Remove(tempPath)
		return errors.Wrap(err, "renaming temp file")
	}
	return nil
}
