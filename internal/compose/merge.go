// Copyright (c) 2025 ManuGH
// Licensed under the PolyForm Noncommercial License 1.0.0
// Since v2.0.0, this software is restricted to non-commercial use only.

package compose

import (
	"bytes"
	"errors"
	"fmt"
	"io"
	"slices"

	"gopkg.in/yaml.v3"
)

// Merge folds override into base and returns the result; neither input is
// modified. Keys of override win. When both values are mappings the merge
// recurses; sequences and scalars are replaced. New keys are appended in
// override order, and base key order and comments are kept. A nil, empty or
// null override returns base unchanged.
func Merge(base, override *yaml.Node) *yaml.Node {
	if isEmpty(override) {
		return base
	}
	if isEmpty(base) {
		return override
	}
	if base.Kind == yaml.DocumentNode {
		out := *base
		out.Content = []*yaml.Node{mergeNode(base.Content[0], unwrap(override))}
		return &out
	}
	return mergeNode(base, unwrap(override))
}

func mergeNode(base, override *yaml.Node) *yaml.Node {
	if base.Kind != yaml.MappingNode || override.Kind != yaml.MappingNode {
		return override
	}

	out := *base
	out.Content = slices.Clone(base.Content)
	for i := 0; i+1 < len(override.Content); i += 2 {
		key, value := override.Content[i], override.Content[i+1]
		if j := keyIndex(&out, key.Value); j >= 0 {
			out.Content[j+1] = mergeNode(out.Content[j+1], value)
			continue
		}
		out.Content = append(out.Content, key, value)
	}
	return &out
}

func keyIndex(m *yaml.Node, key string) int {
	for i := 0; i+1 < len(m.Content); i += 2 {
		if m.Content[i].Value == key {
			return i
		}
	}
	return -1
}

func unwrap(n *yaml.Node) *yaml.Node {
	if n.Kind == yaml.DocumentNode && len(n.Content) > 0 {
		return n.Content[0]
	}
	return n
}

func isEmpty(n *yaml.Node) bool {
	if n == nil {
		return true
	}
	if n.Kind == yaml.DocumentNode {
		if len(n.Content) == 0 {
			return true
		}
		n = n.Content[0]
	}
	return n.Kind == 0 || (n.Kind == yaml.ScalarNode && n.ShortTag() == "!!null")
}

// decode parses one YAML document. Empty input yields nil.
func decode(data []byte) (*yaml.Node, error) {
	var doc yaml.Node
	if err := yaml.NewDecoder(bytes.NewReader(data)).Decode(&doc); err != nil {
		if errors.Is(err, io.EOF) {
			return nil, nil
		}
		return nil, err
	}
	return &doc, nil
}

// MergeBytes merges two compose documents and renders the result with a
// two-space indent.
func MergeBytes(base, override []byte) ([]byte, error) {
	baseDoc, err := decode(base)
	if err != nil {
		return nil, fmt.Errorf("parse %s: %w", BaseFile, err)
	}
	overrideDoc, err := decode(override)
	if err != nil {
		return nil, fmt.Errorf("parse %s: %w", OverrideFile, err)
	}

	merged := Merge(baseDoc, overrideDoc)
	if merged == nil {
		return []byte{}, nil
	}

	var buf bytes.Buffer
	enc := yaml.NewEncoder(&buf)
	enc.SetIndent(2)
	if err := enc.Encode(merged); err != nil {
		return nil, fmt.Errorf("encode merged compose file: %w", err)
	}
	if err := enc.Close(); err != nil {
		return nil, fmt.Errorf("encode merged compose file: %w", err)
	}
	return buf.Bytes(), nil
}
