// Copyright (c) 2026 Z5Labs and Contributors
//
// This software is released under the MIT License.
// https://opensource.org/licenses/MIT

// Package interpolate substitutes "@" variable references in strings and
// documents.
//
// The supported forms are:
//
//	@@                 a literal "@"
//	@NAME, @{NAME}     the value of NAME, left as is when NAME is unset
//	@{NAME:-default}   NAME if set and non-empty, otherwise default
//	@{NAME-default}    NAME if set, even when empty, otherwise default
//	@{NAME:?message}   NAME if set and non-empty, otherwise an [*Error]
//	@{NAME?message}    NAME if set, otherwise an [*Error]
//
// NAME must match [_a-zA-Z][_a-zA-Z0-9]*. "@" is used instead of "$" so
// references never collide with the substitution done by compose tools.
//
// Substitution is a single pass. Replaced text is never scanned again, so a
// value containing "@NAME" is inserted literally.
package interpolate

import (
	"fmt"
	"regexp"
	"strings"

	"github.com/z5labs/atk/document"
)

// Namespace maps variable names to their values.
type Namespace map[string]string

// Error occurs when a "?" or ":?" reference names an unset variable.
type Error struct {
	Name    string
	Message string
}

// Error implements the error interface.
func (e *Error) Error() string {
	if e.Message == "" {
		return fmt.Sprintf("variable is not set: %s", e.Name)
	}
	return e.Message
}

var reference = regexp.MustCompile(`@(?:(@)|([_a-zA-Z][_a-zA-Z0-9]*)|\{([_a-zA-Z][_a-zA-Z0-9]*)(?:(:?[-?])([^}]*))?\})`)

// String substitutes every reference in s using ns.
func String(s string, ns Namespace) (string, error) {
	matches := reference.FindAllStringSubmatchIndex(s, -1)
	if len(matches) == 0 {
		return s, nil
	}

	var sb strings.Builder
	last := 0
	for _, m := range matches {
		sb.WriteString(s[last:m[0]])
		last = m[1]

		v, err := expand(s, m, ns)
		if err != nil {
			return "", err
		}
		sb.WriteString(v)
	}
	sb.WriteString(s[last:])
	return sb.String(), nil
}

// expand resolves a single match. The submatch groups are:
// 1 escaped "@", 2 bare name, 3 braced name, 4 operator, 5 operand.
func expand(s string, m []int, ns Namespace) (string, error) {
	group := func(i int) (string, bool) {
		if m[2*i] < 0 {
			return "", false
		}
		return s[m[2*i]:m[2*i+1]], true
	}

	if _, ok := group(1); ok {
		return "@", nil
	}
	if name, ok := group(2); ok {
		if v, set := ns[name]; set {
			return v, nil
		}
		return s[m[0]:m[1]], nil
	}

	name, _ := group(3)
	v, set := ns[name]
	op, _ := group(4)
	arg, _ := group(5)
	switch op {
	case "":
		if set {
			return v, nil
		}
		return s[m[0]:m[1]], nil
	case ":-":
		if set && v != "" {
			return v, nil
		}
		return arg, nil
	case "-":
		if set {
			return v, nil
		}
		return arg, nil
	case ":?":
		if set && v != "" {
			return v, nil
		}
		return "", &Error{Name: name, Message: arg}
	default:
		if set {
			return v, nil
		}
		return "", &Error{Name: name, Message: arg}
	}
}

// Node substitutes references in every string Scalar of n, in place.
// Mapping keys and non-string Scalars are left untouched. The first
// failure aborts the walk and is returned.
func Node(n *document.Node, ns Namespace) error {
	switch {
	case n.IsMapping():
		for _, k := range n.Keys() {
			v, _ := n.Lookup(k)
			err := Node(v, ns)
			if err != nil {
				return err
			}
		}
	case n.IsSequence():
		for _, item := range n.Items() {
			err := Node(item, ns)
			if err != nil {
				return err
			}
		}
	case n.IsScalar():
		s, ok := n.AsString()
		if !ok {
			return nil
		}
		v, err := String(s, ns)
		if err != nil {
			return err
		}
		n.SetScalar(v)
	}
	return nil
}

// Entry is a single named value given to [Resolve].
type Entry struct {
	Name  string
	Value string
}

// Resolve builds a Namespace from ordered entries. Each value is
// interpolated against the entries before it, so a default such as
// "@project" can refer to an earlier attribute. References to later or
// unknown names use their own default clause or are left as is.
func Resolve(entries ...Entry) (Namespace, error) {
	ns := make(Namespace, len(entries))
	for _, e := range entries {
		v, err := String(e.Value, ns)
		if err != nil {
			return nil, err
		}
		ns[e.Name] = v
	}
	return ns, nil
}
