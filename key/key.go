// Copyright (c) 2026 Z5Labs and Contributors
//
// This software is released under the MIT License.
// https://opensource.org/licenses/MIT

// Package key provides types for addressing values nested inside a document.
package key

import (
	"strings"
)

// Keyer is a common interface all document key types must implement.
type Keyer interface {
	Key() string
}

// Name represents a single mapping key.
type Name string

// Key implements the [Keyer] interface.
func (k Name) Key() string {
	return string(k)
}

// Chain represents a path of nested mapping keys, outermost first.
// The empty Chain addresses the document root.
type Chain []Name

// Of builds a Chain from the given key names.
func Of(names ...string) Chain {
	c := make(Chain, len(names))
	for i, name := range names {
		c[i] = Name(name)
	}
	return c
}

// Parse splits a dotted path, e.g. "user.uid", into a Chain.
// The empty string parses to the root Chain.
func Parse(s string) Chain {
	if s == "" {
		return Chain{}
	}
	return Of(strings.Split(s, ".")...)
}

// Key implements the [Keyer] interface.
func (k Chain) Key() string {
	ss := make([]string, len(k))
	for i := range k {
		ss[i] = k[i].Key()
	}
	return strings.Join(ss, ".")
}

// String implements the [fmt.Stringer] interface.
func (k Chain) String() string {
	return k.Key()
}

// Append returns a new Chain with the given names appended. The receiver
// is never modified so Chains may be shared safely.
func (k Chain) Append(names ...Name) Chain {
	c := make(Chain, 0, len(k)+len(names))
	c = append(c, k...)
	return append(c, names...)
}

// Last returns the innermost key of the Chain and whether it exists.
func (k Chain) Last() (Name, bool) {
	if len(k) == 0 {
		return "", false
	}
	return k[len(k)-1], true
}

// Parent returns the Chain without its innermost key.
func (k Chain) Parent() Chain {
	if len(k) == 0 {
		return Chain{}
	}
	return k[:len(k)-1:len(k)-1]
}
