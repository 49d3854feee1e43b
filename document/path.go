// Copyright (c) 2026 Z5Labs and Contributors
//
// This software is released under the MIT License.
// https://opensource.org/licenses/MIT

package document

import (
	"fmt"

	"github.com/z5labs/atk/key"
)

// NotFoundError occurs when a path does not address a value, either because
// a key is missing or because a non-mapping value was indexed.
type NotFoundError struct {
	Path key.Chain
}

// Error implements the error interface.
func (e *NotFoundError) Error() string {
	return fmt.Sprintf("no value found at path: %s", e.Path)
}

// Get descends through nested Mappings following path. The empty path
// returns n itself.
func (n *Node) Get(path key.Chain) (*Node, error) {
	cur := n
	for _, name := range path {
		next, ok := cur.Lookup(name.Key())
		if !ok {
			return nil, &NotFoundError{Path: path}
		}
		cur = next
	}
	return cur, nil
}

// Contains reports whether path addresses a value in n.
func (n *Node) Contains(path key.Chain) bool {
	_, err := n.Get(path)
	return err == nil
}

// Set stores value at path, creating the final key if it does not exist.
// Every intermediate key must already exist and hold a Mapping.
//
// If renameKey is true, the final key of path is renamed to the string
// form of value instead. The value it held, and its position, are kept.
// Renaming requires the final key to exist.
func (n *Node) Set(path key.Chain, value *Node, renameKey bool) error {
	last, ok := path.Last()
	if !ok {
		return &NotFoundError{Path: path}
	}

	parent, err := n.Get(path.Parent())
	if err != nil {
		return &NotFoundError{Path: path}
	}
	if !parent.IsMapping() {
		return &NotFoundError{Path: path}
	}

	if !renameKey {
		parent.Put(last.Key(), value)
		return nil
	}

	if _, exists := parent.Lookup(last.Key()); !exists {
		return &NotFoundError{Path: path}
	}
	parent.rename(last.Key(), value.Text())
	return nil
}

// Delete removes a top-level key from a Mapping. It is a no-op if the key
// is absent or n is not a Mapping.
func (n *Node) Delete(k string) {
	n.Remove(k)
}
