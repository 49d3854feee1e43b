// Copyright (c) 2026 Z5Labs and Contributors
//
// This software is released under the MIT License.
// https://opensource.org/licenses/MIT

// Package overlay applies conditional config fragments to services.
//
// An overlay maps service selectors to payload documents. A selector is a
// service name, "all", or a glob such as "ros-*". When the overlay's
// condition holds, each payload is merged into every service it selects.
package overlay

import (
	"fmt"
	"io"
	"log/slog"

	"github.com/z5labs/atk/document"
	"github.com/z5labs/atk/internal/slogfield"
	"github.com/z5labs/atk/merge"

	"github.com/bmatcuk/doublestar/v4"
)

// AllServices selects every service.
const AllServices = "all"

// Error occurs when an overlay is malformed.
type Error struct {
	Overlay string
	Reason  string
}

// Error implements the error interface.
func (e *Error) Error() string {
	return fmt.Sprintf("invalid overlay %s: %s", e.Overlay, e.Reason)
}

// Match reports whether selector selects the service called name.
func Match(selector, name string) bool {
	if selector == AllServices || selector == name {
		return true
	}
	ok, err := doublestar.Match(selector, name)
	return err == nil && ok
}

type target struct {
	selector string
	payload  *document.Node
}

// targets splits an overlay mapping into its service selectors. Keys in
// reserved are not selectors and are skipped.
func targets(overlay string, m *document.Node, reserved ...string) ([]target, error) {
	var ts []target
	for _, k := range m.Keys() {
		if contains(reserved, k) {
			continue
		}
		if !doublestar.ValidatePattern(k) {
			return nil, &Error{Overlay: overlay, Reason: fmt.Sprintf("invalid service selector: %q", k)}
		}
		v, _ := m.Lookup(k)
		if !v.IsMapping() {
			return nil, &Error{Overlay: overlay, Reason: fmt.Sprintf("payload for %q must be a mapping, got: %s", k, v.Kind())}
		}
		ts = append(ts, target{selector: k, payload: v})
	}
	return ts, nil
}

// apply merges every payload into the services it selects.
func apply(log *slog.Logger, overlay string, ts []target, services *document.Node) error {
	for _, t := range ts {
		matched := false
		for _, name := range services.Keys() {
			if !Match(t.selector, name) {
				continue
			}
			matched = true

			svc, _ := services.Lookup(name)
			if svc.IsNull() {
				svc = document.NewMapping()
				services.Put(name, svc)
			}
			_, err := merge.Merge(t.payload, svc, merge.Extend)
			if err != nil {
				return err
			}
			log.Debug("applied overlay",
				slogfield.Overlay(overlay),
				slogfield.Service(name),
			)
		}
		if !matched {
			log.Debug("overlay selector matched no services",
				slogfield.Overlay(overlay),
				slogfield.String("selector", t.selector),
			)
		}
	}
	return nil
}

func contains(ss []string, s string) bool {
	for _, x := range ss {
		if x == s {
			return true
		}
	}
	return false
}

func discardLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}
