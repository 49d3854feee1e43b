// Copyright (c) 2026 Z5Labs and Contributors
//
// This software is released under the MIT License.
// https://opensource.org/licenses/MIT

package document

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"path/filepath"
	"regexp"
	"strconv"
	"strings"

	"github.com/z5labs/atk/internal/try"

	"github.com/tidwall/jsonc"
	"gopkg.in/yaml.v3"
)

// Format is a serialization format for documents.
type Format string

const (
	YAML Format = "yaml"
	JSON Format = "json"
)

// FormatOf infers the Format of a file from its extension. Anything
// other than ".json" is treated as YAML.
func FormatOf(path string) Format {
	if strings.EqualFold(filepath.Ext(path), ".json") {
		return JSON
	}
	return YAML
}

// FormatError occurs when a document cannot be parsed. Line and Column
// are 1-based and zero when the parser could not report a position.
type FormatError struct {
	Format Format
	Line   int
	Column int
	Cause  error
}

// Error implements the error interface.
func (e *FormatError) Error() string {
	switch {
	case e.Line > 0 && e.Column > 0:
		return fmt.Sprintf("invalid %s at line %d, column %d: %s", e.Format, e.Line, e.Column, e.Cause)
	case e.Line > 0:
		return fmt.Sprintf("invalid %s at line %d: %s", e.Format, e.Line, e.Cause)
	default:
		return fmt.Sprintf("invalid %s: %s", e.Format, e.Cause)
	}
}

// Unwrap implements the implicit interface used by errors.Is and errors.As.
func (e *FormatError) Unwrap() error {
	return e.Cause
}

// UnknownFormatError occurs when a Format other than [YAML] or [JSON] is requested.
type UnknownFormatError struct {
	Format Format
}

// Error implements the error interface.
func (e UnknownFormatError) Error() string {
	return fmt.Sprintf("unknown document format: %q", string(e.Format))
}

// Parse parses text in the given format. Empty input parses to an empty
// Mapping. On failure no partial document is returned.
func Parse(text []byte, format Format) (*Node, error) {
	switch format {
	case YAML:
		return parseYAML(text)
	case JSON:
		return parseJSON(text)
	default:
		return nil, UnknownFormatError{Format: format}
	}
}

var yamlLinePattern = regexp.MustCompile(`line (\d+)`)

func parseYAML(text []byte) (*Node, error) {
	var root yaml.Node
	err := yaml.Unmarshal(text, &root)
	if err != nil {
		ferr := &FormatError{Format: YAML, Cause: err}
		if m := yamlLinePattern.FindStringSubmatch(err.Error()); m != nil {
			ferr.Line, _ = strconv.Atoi(m[1])
		}
		return nil, ferr
	}
	if root.Kind == 0 || len(root.Content) == 0 {
		return NewMapping(), nil
	}
	return fromYAML(root.Content[0], 0)
}

// maxAliasDepth bounds alias expansion so self-referencing anchors fail
// instead of recursing forever.
const maxAliasDepth = 64

func fromYAML(y *yaml.Node, depth int) (*Node, error) {
	if depth > maxAliasDepth {
		return nil, yamlError(y, errors.New("alias nesting is too deep"))
	}

	switch y.Kind {
	case yaml.DocumentNode:
		if len(y.Content) == 0 {
			return NewMapping(), nil
		}
		return fromYAML(y.Content[0], depth)
	case yaml.AliasNode:
		return fromYAML(y.Alias, depth+1)
	case yaml.SequenceNode:
		n := NewSequence()
		for _, item := range y.Content {
			v, err := fromYAML(item, depth)
			if err != nil {
				return nil, err
			}
			n.items = append(n.items, v)
		}
		return n, nil
	case yaml.MappingNode:
		return fromYAMLMapping(y, depth)
	case yaml.ScalarNode:
		var v any
		err := y.Decode(&v)
		if err != nil {
			return nil, yamlError(y, err)
		}
		return NewScalar(v), nil
	default:
		return nil, yamlError(y, fmt.Errorf("unsupported yaml node kind: %d", y.Kind))
	}
}

func fromYAMLMapping(y *yaml.Node, depth int) (*Node, error) {
	n := NewMapping()
	var merged []*Node
	for i := 0; i+1 < len(y.Content); i += 2 {
		k, v := y.Content[i], y.Content[i+1]
		if k.Kind != yaml.ScalarNode {
			return nil, yamlError(k, errors.New("mapping keys must be scalars"))
		}

		if k.ShortTag() == "!!merge" {
			sources, err := mergeSources(v, depth)
			if err != nil {
				return nil, err
			}
			merged = append(merged, sources...)
			continue
		}

		if _, exists := n.fields[k.Value]; exists {
			return nil, yamlError(k, fmt.Errorf("mapping key %q already defined", k.Value))
		}

		value, err := fromYAML(v, depth)
		if err != nil {
			return nil, err
		}
		n.Put(k.Value, value)
	}

	// Explicit keys always win over keys pulled in with "<<".
	for _, src := range merged {
		for _, k := range src.keys {
			if _, exists := n.fields[k]; exists {
				continue
			}
			n.Put(k, src.fields[k])
		}
	}
	return n, nil
}

func mergeSources(v *yaml.Node, depth int) ([]*Node, error) {
	if v.Kind == yaml.SequenceNode {
		var sources []*Node
		for _, item := range v.Content {
			src, err := mergeSources(item, depth)
			if err != nil {
				return nil, err
			}
			sources = append(sources, src...)
		}
		return sources, nil
	}

	src, err := fromYAML(v, depth+1)
	if err != nil {
		return nil, err
	}
	if !src.IsMapping() {
		return nil, yamlError(v, errors.New("merge key value must be a mapping"))
	}
	return []*Node{src}, nil
}

func yamlError(y *yaml.Node, err error) *FormatError {
	return &FormatError{
		Format: YAML,
		Line:   y.Line,
		Column: y.Column,
		Cause:  err,
	}
}

func parseJSON(text []byte) (*Node, error) {
	// jsonc blanks out comments and trailing commas without shifting
	// offsets, so error positions still point into the original text.
	clean := jsonc.ToJSON(text)
	if len(bytes.TrimSpace(clean)) == 0 {
		return NewMapping(), nil
	}

	dec := json.NewDecoder(bytes.NewReader(clean))
	dec.UseNumber()

	n, err := decodeJSON(dec)
	if err != nil {
		return nil, jsonError(clean, dec, err)
	}

	_, err = dec.Token()
	if err != io.EOF {
		if err == nil {
			err = errors.New("unexpected data after top-level value")
		}
		return nil, jsonError(clean, dec, err)
	}
	return n, nil
}

func decodeJSON(dec *json.Decoder) (*Node, error) {
	tok, err := dec.Token()
	if err != nil {
		if err == io.EOF {
			return nil, io.ErrUnexpectedEOF
		}
		return nil, err
	}

	switch t := tok.(type) {
	case json.Delim:
		switch t {
		case '{':
			return decodeJSONObject(dec)
		case '[':
			return decodeJSONArray(dec)
		default:
			return nil, fmt.Errorf("unexpected delimiter: %s", t)
		}
	case json.Number:
		if i, err := t.Int64(); err == nil {
			return NewScalar(i), nil
		}
		f, err := t.Float64()
		if err != nil {
			return nil, err
		}
		return NewScalar(f), nil
	default:
		return NewScalar(t), nil
	}
}

func decodeJSONObject(dec *json.Decoder) (*Node, error) {
	n := NewMapping()
	for dec.More() {
		tok, err := dec.Token()
		if err != nil {
			return nil, err
		}
		k, ok := tok.(string)
		if !ok {
			return nil, fmt.Errorf("object keys must be strings, got: %v", tok)
		}
		if _, exists := n.fields[k]; exists {
			return nil, fmt.Errorf("mapping key %q already defined", k)
		}

		v, err := decodeJSON(dec)
		if err != nil {
			return nil, err
		}
		n.Put(k, v)
	}
	_, err := dec.Token()
	if err != nil {
		return nil, err
	}
	return n, nil
}

func decodeJSONArray(dec *json.Decoder) (*Node, error) {
	n := NewSequence()
	for dec.More() {
		v, err := decodeJSON(dec)
		if err != nil {
			return nil, err
		}
		n.items = append(n.items, v)
	}
	_, err := dec.Token()
	if err != nil {
		return nil, err
	}
	return n, nil
}

func jsonError(text []byte, dec *json.Decoder, err error) *FormatError {
	offset := dec.InputOffset()
	var serr *json.SyntaxError
	if errors.As(err, &serr) {
		offset = serr.Offset
	}
	line, col := position(text, offset)
	return &FormatError{
		Format: JSON,
		Line:   line,
		Column: col,
		Cause:  err,
	}
}

func position(text []byte, offset int64) (line, col int) {
	if offset > int64(len(text)) {
		offset = int64(len(text))
	}
	line, col = 1, 1
	for _, b := range text[:offset] {
		if b == '\n' {
			line++
			col = 1
			continue
		}
		col++
	}
	return line, col
}

// Read parses everything read from r. If r is also an [io.Closer] it is
// closed once reading finishes.
func Read(r io.Reader, format Format) (_ *Node, err error) {
	defer try.Close(&err, r)

	b, err := io.ReadAll(r)
	if err != nil {
		return nil, err
	}
	return Parse(b, format)
}
