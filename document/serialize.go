// Copyright (c) 2026 Z5Labs and Contributors
//
// This software is released under the MIT License.
// https://opensource.org/licenses/MIT

package document

import (
	"bytes"
	"encoding/json"

	"gopkg.in/yaml.v3"
)

// Serialize renders n in the given format. Mapping keys are written in
// their stored order.
func (n *Node) Serialize(format Format) ([]byte, error) {
	switch format {
	case YAML:
		return n.serializeYAML()
	case JSON:
		return n.serializeJSON()
	default:
		return nil, UnknownFormatError{Format: format}
	}
}

func (n *Node) serializeYAML() ([]byte, error) {
	y, err := n.toYAML()
	if err != nil {
		return nil, err
	}

	var buf bytes.Buffer
	enc := yaml.NewEncoder(&buf)
	enc.SetIndent(2)

	err = enc.Encode(y)
	if err != nil {
		return nil, err
	}
	// Close flushes anything the emitter is still holding.
	err = enc.Close()
	if err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

func (n *Node) toYAML() (*yaml.Node, error) {
	switch {
	case n.IsMapping():
		y := &yaml.Node{Kind: yaml.MappingNode, Tag: "!!map"}
		for _, k := range n.keys {
			v, err := n.fields[k].toYAML()
			if err != nil {
				return nil, err
			}
			y.Content = append(y.Content,
				&yaml.Node{Kind: yaml.ScalarNode, Tag: "!!str", Value: k},
				v,
			)
		}
		return y, nil
	case n.IsSequence():
		y := &yaml.Node{Kind: yaml.SequenceNode, Tag: "!!seq"}
		for _, item := range n.items {
			v, err := item.toYAML()
			if err != nil {
				return nil, err
			}
			y.Content = append(y.Content, v)
		}
		return y, nil
	default:
		// Encoding through yaml.Node picks the right tag and quoting, so a
		// string like "42" stays a string after a round trip.
		var y yaml.Node
		err := y.Encode(n.Scalar())
		if err != nil {
			return nil, err
		}
		return &y, nil
	}
}

func (n *Node) serializeJSON() ([]byte, error) {
	var buf bytes.Buffer
	err := n.writeJSON(&buf)
	if err != nil {
		return nil, err
	}

	var out bytes.Buffer
	err = json.Indent(&out, buf.Bytes(), "", "  ")
	if err != nil {
		return nil, err
	}
	out.WriteByte('\n')
	return out.Bytes(), nil
}

// MarshalJSON implements the [json.Marshaler] interface.
func (n *Node) MarshalJSON() ([]byte, error) {
	var buf bytes.Buffer
	err := n.writeJSON(&buf)
	if err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

func (n *Node) writeJSON(buf *bytes.Buffer) error {
	switch {
	case n.IsMapping():
		buf.WriteByte('{')
		for i, k := range n.keys {
			if i > 0 {
				buf.WriteByte(',')
			}
			b, err := json.Marshal(k)
			if err != nil {
				return err
			}
			buf.Write(b)
			buf.WriteByte(':')
			err = n.fields[k].writeJSON(buf)
			if err != nil {
				return err
			}
		}
		buf.WriteByte('}')
		return nil
	case n.IsSequence():
		buf.WriteByte('[')
		for i, item := range n.items {
			if i > 0 {
				buf.WriteByte(',')
			}
			err := item.writeJSON(buf)
			if err != nil {
				return err
			}
		}
		buf.WriteByte(']')
		return nil
	default:
		b, err := json.Marshal(n.Scalar())
		if err != nil {
			return err
		}
		buf.Write(b)
		return nil
	}
}
