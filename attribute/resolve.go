// Copyright (c) 2026 Z5Labs and Contributors
//
// This software is released under the MIT License.
// https://opensource.org/licenses/MIT

package attribute

import (
	"github.com/z5labs/atk/document"
	"github.com/z5labs/atk/interpolate"
)

// Resolve looks up every registered attribute in doc, in registration order.
//
// Absent or null required attributes and values of the wrong type are all
// collected into a single [*ValidationError]; nothing is returned and doc
// is left untouched in that case. On success the top-level keys of
// attributes marked DeleteAfterParse are removed from doc, each at most once.
//
// String values may refer to attributes resolved before them using
// [interpolate] references, e.g. a default of "@project".
func (s *Schema) Resolve(doc *document.Node) (*Resolved, error) {
	if !doc.IsMapping() {
		return nil, &ValidationError{
			Errors: []error{&TypeMismatchError{Expected: Mapping, Actual: describe(doc)}},
		}
	}

	r := &Resolved{
		values: make(map[string]*document.Node, len(s.specs)),
	}
	var errs []error
	var deletions []string
	deleted := make(map[string]bool)
	for _, spec := range s.specs {
		v, err := doc.Get(spec.Path)
		switch {
		case err != nil || v.IsNull():
			if spec.Required {
				errs = append(errs, &MissingAttributeError{Path: spec.Path})
				continue
			}
			v = spec.Default
		case !spec.Type.Matches(v):
			errs = append(errs, &TypeMismatchError{
				Path:     spec.Path,
				Expected: spec.Type,
				Actual:   describe(v),
			})
			continue
		}

		r.set(spec.Dest, v.Clone())

		if !spec.DeleteAfterParse || len(spec.Path) == 0 {
			continue
		}
		top := spec.Path[0].Key()
		if !deleted[top] {
			deleted[top] = true
			deletions = append(deletions, top)
		}
	}
	if len(errs) > 0 {
		return nil, &ValidationError{Errors: errs}
	}

	err := r.expand()
	if err != nil {
		return nil, err
	}

	for _, k := range deletions {
		doc.Delete(k)
	}
	return r, nil
}

// Resolved holds attribute values by their Dest name, in registration order.
type Resolved struct {
	names  []string
	values map[string]*document.Node
	ns     interpolate.Namespace
}

func (r *Resolved) set(name string, v *document.Node) {
	if _, exists := r.values[name]; !exists {
		r.names = append(r.names, name)
	}
	r.values[name] = v
}

// expand resolves references between scalar attributes and builds the
// namespace exposed to document interpolation.
func (r *Resolved) expand() error {
	entries := make([]interpolate.Entry, 0, len(r.names))
	for _, name := range r.names {
		v := r.values[name]
		if !v.IsScalar() || v.IsNull() {
			continue
		}
		entries = append(entries, interpolate.Entry{Name: name, Value: v.Text()})
	}

	ns, err := interpolate.Resolve(entries...)
	if err != nil {
		return err
	}
	for _, name := range r.names {
		v := r.values[name]
		if _, ok := v.AsString(); ok {
			v.SetScalar(ns[name])
		}
	}
	r.ns = ns
	return nil
}

// Names returns the Dest names of every resolved attribute.
func (r *Resolved) Names() []string {
	names := make([]string, len(r.names))
	copy(names, r.names)
	return names
}

// Get returns the value resolved for name.
func (r *Resolved) Get(name string) (*document.Node, bool) {
	v, ok := r.values[name]
	return v, ok
}

// String returns the string value resolved for name, or "".
func (r *Resolved) String(name string) string {
	s, _ := r.values[name].AsString()
	return s
}

// Int returns the int value resolved for name, or 0.
func (r *Resolved) Int(name string) int {
	i, _ := r.values[name].Scalar().(int)
	return i
}

// Bool returns the bool value resolved for name, or false.
func (r *Resolved) Bool(name string) bool {
	b, _ := r.values[name].Scalar().(bool)
	return b
}

// Namespace returns the scalar attributes as interpolation variables.
// The returned map is a copy.
func (r *Resolved) Namespace() interpolate.Namespace {
	ns := make(interpolate.Namespace, len(r.ns))
	for k, v := range r.ns {
		ns[k] = v
	}
	return ns
}
