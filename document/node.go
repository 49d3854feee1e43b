// Copyright (c) 2026 Z5Labs and Contributors
//
// This software is released under the MIT License.
// https://opensource.org/licenses/MIT

// Package document provides an ordered key/value tree representing a parsed
// YAML or JSON configuration file.
//
// A document is built from [Node]s. Each Node is one of:
//   - a Mapping of unique string keys to Nodes, in insertion order
//   - a Sequence of Nodes
//   - a Scalar holding a string, int, float64, bool or nil
//
// Nodes are mutable and owned by whoever built them. Values moved between
// documents should be copied with [Node.Clone].
package document

import (
	"fmt"
	"math"
	"sort"
	"strconv"
)

// Kind identifies the shape of a [Node].
type Kind int

const (
	Scalar Kind = iota
	Sequence
	Mapping
)

// String implements the [fmt.Stringer] interface.
func (k Kind) String() string {
	switch k {
	case Scalar:
		return "scalar"
	case Sequence:
		return "sequence"
	case Mapping:
		return "mapping"
	default:
		return fmt.Sprintf("kind(%d)", int(k))
	}
}

// Node is a single element of a document tree.
type Node struct {
	kind Kind

	// scalar
	value any

	// mapping
	keys   []string
	fields map[string]*Node

	// sequence
	items []*Node
}

// NewMapping returns an empty Mapping.
func NewMapping() *Node {
	return &Node{
		kind:   Mapping,
		fields: make(map[string]*Node),
	}
}

// NewSequence returns a Sequence containing the given items.
func NewSequence(items ...*Node) *Node {
	n := &Node{kind: Sequence}
	n.items = append(n.items, items...)
	return n
}

// NewScalar returns a Scalar holding v. Integer types are normalized to int
// and floating point types to float64. Any other non-primitive value is
// stored using its fmt representation.
func NewScalar(v any) *Node {
	return &Node{kind: Scalar, value: normalizeScalar(v)}
}

// Null returns a Scalar holding nil.
func Null() *Node {
	return &Node{kind: Scalar}
}

func normalizeScalar(v any) any {
	switch x := v.(type) {
	case nil, string, bool, int, float64:
		return x
	case int8:
		return int(x)
	case int16:
		return int(x)
	case int32:
		return int(x)
	case int64:
		if x > math.MaxInt || x < math.MinInt {
			return float64(x)
		}
		return int(x)
	case uint:
		if uint64(x) > math.MaxInt {
			return float64(x)
		}
		return int(x)
	case uint8:
		return int(x)
	case uint16:
		return int(x)
	case uint32:
		return int(x)
	case uint64:
		if x > math.MaxInt {
			return float64(x)
		}
		return int(x)
	case float32:
		return float64(x)
	case fmt.Stringer:
		return x.String()
	default:
		return fmt.Sprint(x)
	}
}

// FromValue converts plain Go values into a Node. Maps with string keys
// become Mappings with their keys sorted, since Go maps carry no order.
// Slices become Sequences and everything else becomes a Scalar.
func FromValue(v any) *Node {
	switch x := v.(type) {
	case *Node:
		return x.Clone()
	case map[string]any:
		n := NewMapping()
		keys := make([]string, 0, len(x))
		for k := range x {
			keys = append(keys, k)
		}
		sort.Strings(keys)
		for _, k := range keys {
			n.Put(k, FromValue(x[k]))
		}
		return n
	case map[string]string:
		m := make(map[string]any, len(x))
		for k, s := range x {
			m[k] = s
		}
		return FromValue(m)
	case []any:
		n := NewSequence()
		for _, item := range x {
			n.items = append(n.items, FromValue(item))
		}
		return n
	case []string:
		n := NewSequence()
		for _, item := range x {
			n.items = append(n.items, NewScalar(item))
		}
		return n
	case []int:
		n := NewSequence()
		for _, item := range x {
			n.items = append(n.items, NewScalar(item))
		}
		return n
	default:
		return NewScalar(x)
	}
}

// Kind returns the shape of the Node. A nil Node is a null Scalar.
func (n *Node) Kind() Kind {
	if n == nil {
		return Scalar
	}
	return n.kind
}

// IsMapping reports whether n is a non-nil Mapping.
func (n *Node) IsMapping() bool {
	return n != nil && n.kind == Mapping
}

// IsSequence reports whether n is a non-nil Sequence.
func (n *Node) IsSequence() bool {
	return n != nil && n.kind == Sequence
}

// IsScalar reports whether n is a non-nil Scalar.
func (n *Node) IsScalar() bool {
	return n != nil && n.kind == Scalar
}

// IsNull reports whether n is nil or a Scalar holding nil.
func (n *Node) IsNull() bool {
	return n == nil || (n.kind == Scalar && n.value == nil)
}

// Scalar returns the value held by a Scalar, or nil for other kinds.
func (n *Node) Scalar() any {
	if !n.IsScalar() {
		return nil
	}
	return n.value
}

// AsString returns the string held by a Scalar and whether it held one.
func (n *Node) AsString() (string, bool) {
	s, ok := n.Scalar().(string)
	return s, ok
}

// Text returns the string form of a Scalar. Null is the empty string.
// Mappings and Sequences have no string form and return the empty string.
func (n *Node) Text() string {
	switch x := n.Scalar().(type) {
	case nil:
		return ""
	case string:
		return x
	case bool:
		return strconv.FormatBool(x)
	case int:
		return strconv.Itoa(x)
	case float64:
		return strconv.FormatFloat(x, 'g', -1, 64)
	default:
		return fmt.Sprint(x)
	}
}

// SetScalar replaces the value held by a Scalar. It panics if n is not a Scalar.
func (n *Node) SetScalar(v any) {
	n.mustBe(Scalar)
	n.value = normalizeScalar(v)
}

// Len returns the number of keys in a Mapping or items in a Sequence.
func (n *Node) Len() int {
	switch {
	case n.IsMapping():
		return len(n.keys)
	case n.IsSequence():
		return len(n.items)
	default:
		return 0
	}
}

// Keys returns the keys of a Mapping in order.
func (n *Node) Keys() []string {
	if !n.IsMapping() {
		return nil
	}
	keys := make([]string, len(n.keys))
	copy(keys, n.keys)
	return keys
}

// Lookup returns the value stored under k in a Mapping.
func (n *Node) Lookup(k string) (*Node, bool) {
	if !n.IsMapping() {
		return nil, false
	}
	v, ok := n.fields[k]
	return v, ok
}

// Put stores v under k in a Mapping. An existing key keeps its position,
// a new key is appended. Put panics if n is not a Mapping.
func (n *Node) Put(k string, v *Node) {
	n.mustBe(Mapping)
	if v == nil {
		v = Null()
	}
	if _, ok := n.fields[k]; !ok {
		n.keys = append(n.keys, k)
	}
	n.fields[k] = v
}

// Remove deletes k from a Mapping and reports whether it was present.
func (n *Node) Remove(k string) bool {
	if !n.IsMapping() {
		return false
	}
	if _, ok := n.fields[k]; !ok {
		return false
	}
	delete(n.fields, k)
	for i, key := range n.keys {
		if key == k {
			n.keys = append(n.keys[:i], n.keys[i+1:]...)
			break
		}
	}
	return true
}

// rename moves the value stored under from to to, keeping its position.
// Any other value already stored under to is dropped so keys stay unique.
func (n *Node) rename(from, to string) {
	if from == to {
		return
	}
	v := n.fields[from]
	if _, exists := n.fields[to]; exists {
		n.Remove(to)
	}
	delete(n.fields, from)
	for i, key := range n.keys {
		if key == from {
			n.keys[i] = to
			break
		}
	}
	n.fields[to] = v
}

// Items returns the items of a Sequence.
func (n *Node) Items() []*Node {
	if !n.IsSequence() {
		return nil
	}
	items := make([]*Node, len(n.items))
	copy(items, n.items)
	return items
}

// Append adds items to the end of a Sequence. Append panics if n is not a Sequence.
func (n *Node) Append(items ...*Node) {
	n.mustBe(Sequence)
	n.items = append(n.items, items...)
}

// Clone returns a deep copy of n.
func (n *Node) Clone() *Node {
	if n == nil {
		return nil
	}
	switch n.kind {
	case Mapping:
		c := NewMapping()
		for _, k := range n.keys {
			c.Put(k, n.fields[k].Clone())
		}
		return c
	case Sequence:
		c := &Node{kind: Sequence, items: make([]*Node, len(n.items))}
		for i, item := range n.items {
			c.items[i] = item.Clone()
		}
		return c
	default:
		return &Node{kind: Scalar, value: n.value}
	}
}

// Value converts n into plain Go values: map[string]any, []any or a scalar.
func (n *Node) Value() any {
	if n == nil {
		return nil
	}
	switch n.kind {
	case Mapping:
		m := make(map[string]any, len(n.keys))
		for _, k := range n.keys {
			m[k] = n.fields[k].Value()
		}
		return m
	case Sequence:
		s := make([]any, len(n.items))
		for i, item := range n.items {
			s[i] = item.Value()
		}
		return s
	default:
		return n.value
	}
}

// Equal reports whether a and b are structurally equal. Mapping key order
// is not significant. An int and a float64 holding the same number are equal.
func Equal(a, b *Node) bool {
	if a == nil || b == nil {
		return a.IsNull() && b.IsNull()
	}
	if a.kind != b.kind {
		return false
	}
	switch a.kind {
	case Mapping:
		if len(a.keys) != len(b.keys) {
			return false
		}
		for _, k := range a.keys {
			bv, ok := b.fields[k]
			if !ok || !Equal(a.fields[k], bv) {
				return false
			}
		}
		return true
	case Sequence:
		if len(a.items) != len(b.items) {
			return false
		}
		for i := range a.items {
			if !Equal(a.items[i], b.items[i]) {
				return false
			}
		}
		return true
	default:
		return scalarEqual(a.value, b.value)
	}
}

func scalarEqual(a, b any) bool {
	switch x := a.(type) {
	case int:
		if y, ok := b.(float64); ok {
			return float64(x) == y
		}
	case float64:
		if y, ok := b.(int); ok {
			return x == float64(y)
		}
	}
	return a == b
}

func (n *Node) mustBe(k Kind) {
	if n == nil || n.kind != k {
		panic(fmt.Sprintf("document: expected a %s node", k))
	}
}
