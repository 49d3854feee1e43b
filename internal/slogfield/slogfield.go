// Copyright (c) 2026 Z5Labs and Contributors
//
// This software is released under the MIT License.
// https://opensource.org/licenses/MIT

// Package slogfield provides consistently named slog attributes.
package slogfield

import (
	"fmt"
	"log/slog"
	"strings"
)

// Any returns an slog.Attr for the supplied value.
func Any(key string, value any) slog.Attr {
	return slog.Any(key, value)
}

// Bool returns an slog.Attr for a bool.
func Bool(key string, value bool) slog.Attr {
	return slog.Bool(key, value)
}

// Error returns an slog.Attr for a error.
func Error(err error) slog.Attr {
	return slog.Any("error", err)
}

// String returns an slog.Attr for a string.
func String(key, value string) slog.Attr {
	return slog.String(key, value)
}

// Strings returns an slog.Attr for a slice of strings.
func Strings(key string, values []string) slog.Attr {
	return slog.Any(key, values)
}

// Int returns an slog.Attr for a int.
func Int(key string, n int) slog.Attr {
	return slog.Int(key, n)
}

// Service names the compose service a record is about.
func Service(name string) slog.Attr {
	return slog.String("service", name)
}

// Services names the compose services a record is about.
func Services(names []string) slog.Attr {
	return slog.Any("services", names)
}

// Path returns an slog.Attr for a filesystem path.
func Path(path string) slog.Attr {
	return slog.String("path", path)
}

// Overlay names the overlay a record is about.
func Overlay(name string) slog.Attr {
	return slog.String("overlay", name)
}

// State records a pipeline state.
func State(s fmt.Stringer) slog.Attr {
	return slog.String("state", s.String())
}

// Command records an external command line.
func Command(args []string) slog.Attr {
	return slog.String("command", strings.Join(args, " "))
}
