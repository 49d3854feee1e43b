// Copyright (c) 2026 Z5Labs and Contributors
//
// This software is released under the MIT License.
// https://opensource.org/licenses/MIT

// Package attribute declares the custom attributes a config file may carry
// in addition to the compose file format itself.
//
// Attributes are registered on a [Schema] and resolved against a parsed
// document in a single pass that reports every problem it finds.
package attribute

import (
	"fmt"

	"github.com/z5labs/atk/document"
	"github.com/z5labs/atk/key"
)

// Type is the expected shape of an attribute value.
type Type int

const (
	String Type = iota
	Int
	Bool
	Mapping
	Sequence
)

// String implements the [fmt.Stringer] interface.
func (t Type) String() string {
	switch t {
	case String:
		return "string"
	case Int:
		return "int"
	case Bool:
		return "bool"
	case Mapping:
		return "mapping"
	case Sequence:
		return "sequence"
	default:
		return fmt.Sprintf("type(%d)", int(t))
	}
}

// Matches reports whether n has the shape described by t.
func (t Type) Matches(n *document.Node) bool {
	switch t {
	case String:
		_, ok := n.Scalar().(string)
		return ok
	case Int:
		_, ok := n.Scalar().(int)
		return ok
	case Bool:
		_, ok := n.Scalar().(bool)
		return ok
	case Mapping:
		return n.IsMapping()
	case Sequence:
		return n.IsSequence()
	default:
		return false
	}
}

// describe names the shape of n for error messages.
func describe(n *document.Node) string {
	switch x := n.Scalar().(type) {
	case nil:
		if n.IsNull() {
			return "null"
		}
		return n.Kind().String()
	case string:
		return String.String()
	case int:
		return Int.String()
	case bool:
		return Bool.String()
	case float64:
		return "float"
	default:
		return fmt.Sprintf("%T", x)
	}
}

// Spec describes a single custom attribute.
type Spec struct {
	Path    key.Chain
	Type    Type
	Default *document.Node

	// Required is true when no Default was given.
	Required bool

	// DeleteAfterParse removes the top-level key Path[0] from the document
	// once every attribute resolved successfully.
	DeleteAfterParse bool

	// Dest is the name the resolved value is stored under.
	Dest string
}

// Option customizes a Spec as it is registered.
type Option func(*Spec)

// Default makes the attribute optional and uses v when it is absent.
// v is converted with [document.FromValue].
func Default(v any) Option {
	return func(s *Spec) {
		s.Default = document.FromValue(v)
	}
}

// Dest overrides the name the resolved value is stored under. By default
// it is the last key of the attribute path.
func Dest(name string) Option {
	return func(s *Spec) {
		s.Dest = name
	}
}

// Keep leaves the attribute in the document after it has been resolved.
func Keep() Option {
	return func(s *Spec) {
		s.DeleteAfterParse = false
	}
}

// Schema is an ordered set of attribute Specs. The zero value is ready to use.
type Schema struct {
	specs []Spec
	dests map[string]int
}

// Register adds an attribute at path. Registering a second attribute with
// the same Dest replaces the first one in place, which lets callers
// override built-in attributes.
func (s *Schema) Register(path key.Chain, typ Type, opts ...Option) {
	spec := Spec{
		Path:             path,
		Type:             typ,
		DeleteAfterParse: true,
	}
	if last, ok := path.Last(); ok {
		spec.Dest = last.Key()
	}
	for _, opt := range opts {
		opt(&spec)
	}
	spec.Required = spec.Default == nil

	if s.dests == nil {
		s.dests = make(map[string]int)
	}
	if i, exists := s.dests[spec.Dest]; exists {
		s.specs[i] = spec
		return
	}
	s.dests[spec.Dest] = len(s.specs)
	s.specs = append(s.specs, spec)
}

// Specs returns the registered Specs in registration order.
func (s *Schema) Specs() []Spec {
	specs := make([]Spec, len(s.specs))
	copy(specs, s.specs)
	return specs
}
