// Copyright (c) 2026 Z5Labs and Contributors
//
// This software is released under the MIT License.
// https://opensource.org/licenses/MIT

// Package merge deep merges documents.
package merge

import (
	"fmt"

	"github.com/z5labs/atk/document"
	"github.com/z5labs/atk/key"
)

// ListPolicy controls how a Sequence in the source is combined with a
// Sequence already present in the destination.
type ListPolicy int

const (
	// Extend appends source items after the destination's items.
	Extend ListPolicy = iota

	// Overwrite replaces the destination's Sequence.
	Overwrite
)

// String implements the [fmt.Stringer] interface.
func (p ListPolicy) String() string {
	switch p {
	case Extend:
		return "extend"
	case Overwrite:
		return "overwrite"
	default:
		return fmt.Sprintf("policy(%d)", int(p))
	}
}

// PolicyFor returns [Overwrite] if overwrite is true and [Extend] otherwise.
func PolicyFor(overwrite bool) ListPolicy {
	if overwrite {
		return Overwrite
	}
	return Extend
}

// Error occurs when the source and destination disagree on the shape of a
// value in a way merging cannot reconcile, e.g. a Mapping merged into an
// existing Sequence.
type Error struct {
	Path        key.Chain
	Source      document.Kind
	Destination document.Kind
}

// Error implements the error interface.
func (e *Error) Error() string {
	path := e.Path.Key()
	if path == "" {
		path = "<root>"
	}
	return fmt.Sprintf("cannot merge %s into %s at: %s", e.Source, e.Destination, path)
}

// Merge merges src into dst and returns dst, which is modified in place.
//
// For every key in src:
//   - a Mapping is merged recursively into dst[key], which is created as an
//     empty Mapping if absent or null
//   - under [Extend], a value merged into an existing Sequence is appended,
//     item by item when it is itself a Sequence
//   - anything else overwrites dst[key]
//
// Scalars from src always win. Values taken from src are copied so dst
// never shares nodes with src. Both src and dst must be Mappings.
func Merge(src, dst *document.Node, policy ListPolicy) (*document.Node, error) {
	if !src.IsMapping() || !dst.IsMapping() {
		return nil, &Error{
			Path:        key.Chain{},
			Source:      src.Kind(),
			Destination: dst.Kind(),
		}
	}
	err := mergeMapping(key.Chain{}, src, dst, policy)
	if err != nil {
		return nil, err
	}
	return dst, nil
}

func mergeMapping(path key.Chain, src, dst *document.Node, policy ListPolicy) error {
	for _, k := range src.Keys() {
		sv, _ := src.Lookup(k)
		dv, exists := dst.Lookup(k)
		p := path.Append(key.Name(k))

		switch {
		case sv.IsMapping():
			if !exists || dv.IsNull() {
				dv = document.NewMapping()
				dst.Put(k, dv)
			}
			if !dv.IsMapping() {
				return &Error{Path: p, Source: sv.Kind(), Destination: dv.Kind()}
			}
			err := mergeMapping(p, sv, dv, policy)
			if err != nil {
				return err
			}
		case policy == Extend && exists && dv.IsSequence():
			if sv.IsSequence() {
				for _, item := range sv.Items() {
					dv.Append(item.Clone())
				}
				continue
			}
			dv.Append(sv.Clone())
		default:
			dst.Put(k, sv.Clone())
		}
	}
	return nil
}
