// Copyright (c) 2026 Z5Labs and Contributors
//
// This software is released under the MIT License.
// https://opensource.org/licenses/MIT

package attribute

import (
	"fmt"
	"strings"

	"github.com/z5labs/atk/key"
)

// MissingAttributeError occurs when a required attribute is absent or null.
type MissingAttributeError struct {
	Path key.Chain
}

// Error implements the error interface.
func (e *MissingAttributeError) Error() string {
	return fmt.Sprintf("missing required attribute: %s", e.Path)
}

// TypeMismatchError occurs when an attribute value has the wrong shape.
type TypeMismatchError struct {
	Path     key.Chain
	Expected Type
	Actual   string
}

// Error implements the error interface.
func (e *TypeMismatchError) Error() string {
	return fmt.Sprintf("attribute %s must be a %s, got: %s", e.Path, e.Expected, e.Actual)
}

// ValidationError aggregates every attribute problem found while resolving
// a document.
type ValidationError struct {
	Errors []error
}

// Error implements the error interface.
func (e *ValidationError) Error() string {
	msgs := make([]string, len(e.Errors))
	for i, err := range e.Errors {
		msgs[i] = err.Error()
	}
	return fmt.Sprintf("invalid config attributes: %s", strings.Join(msgs, "; "))
}

// Unwrap implements the implicit interface used by errors.Is and errors.As.
func (e *ValidationError) Unwrap() []error {
	return e.Errors
}
