// Copyright (c) 2026 Z5Labs and Contributors
//
// This software is released under the MIT License.
// https://opensource.org/licenses/MIT

// Package atk generates compose documents for containerized development
// environments and drives the container runtimes which consume them.
//
// The command line itself is assembled from an [AppBuilder] per command:
// settings are decoded from a [Settings] source, the builder turns them
// into an [App] and [Run] runs it.
package atk

import (
	"context"
	"fmt"

	"github.com/go-viper/mapstructure/v2"
)

// App represents a single invocation of an atk command.
type App interface {
	Run(context.Context) error
}

// AppBuilder represents anything which can initialize an [App] from its
// settings.
type AppBuilder[T any] interface {
	Build(ctx context.Context, cfg T) (App, error)
}

// AppBuilderFunc is a functional implementation of
// the AppBuilder interface.
type AppBuilderFunc[T any] func(context.Context, T) (App, error)

// Build implements the [AppBuilder] interface.
func (f AppBuilderFunc[T]) Build(ctx context.Context, cfg T) (App, error) {
	return f(ctx, cfg)
}

// Settings is a flat source of settings keyed by name, e.g. a
// [github.com/spf13/viper.Viper] with its flags and environment bound.
type Settings interface {
	AllSettings() map[string]any
}

// Decode unmarshals src into a T using the "mapstructure" struct tags of T.
// Values are weakly typed since flags and environment variables are
// often only available as strings.
func Decode[T any](src Settings) (T, error) {
	var cfg T
	dec, err := mapstructure.NewDecoder(&mapstructure.DecoderConfig{
		Result:           &cfg,
		WeaklyTypedInput: true,
		DecodeHook: mapstructure.ComposeDecodeHookFunc(
			mapstructure.StringToSliceHookFunc(","),
			mapstructure.StringToTimeDurationHookFunc(),
		),
	})
	if err != nil {
		return cfg, err
	}
	err = dec.Decode(src.AllSettings())
	return cfg, err
}

// Run executes the application. It's responsible for decoding the
// provided settings into the generic config type, using the config and
// builder to build the [App] and, lastly, running the returned [App].
func Run[T any](ctx context.Context, builder AppBuilder[T], src Settings) error {
	cfg, err := Decode[T](src)
	if err != nil {
		return ConfigUnmarshalError{Cause: err}
	}

	app, err := builder.Build(ctx, cfg)
	if err != nil {
		return AppBuildError{Cause: err}
	}

	err = app.Run(ctx)
	if err != nil {
		return AppRunError{Cause: err}
	}
	return nil
}

// ConfigUnmarshalError occurs when settings can not be decoded into the
// config type of an [AppBuilder].
type ConfigUnmarshalError struct {
	Cause error
}

// Error implements the error interface.
func (e ConfigUnmarshalError) Error() string {
	return fmt.Sprintf("failed to unmarshal settings into custom type: %s", e.Cause)
}

// Unwrap implements the implicit interface used by errors.Is and errors.As.
func (e ConfigUnmarshalError) Unwrap() error {
	return e.Cause
}

// AppBuildError
type AppBuildError struct {
	Cause error
}

// Error implements the error interface.
func (e AppBuildError) Error() string {
	return fmt.Sprintf("failed to build app: %s", e.Cause)
}

// Unwrap implements the implicit interface used by errors.Is and errors.As.
func (e AppBuildError) Unwrap() error {
	return e.Cause
}

// AppRunError
type AppRunError struct {
	Cause error
}

// Error implements the error interface.
func (e AppRunError) Error() string {
	return fmt.Sprintf("failed to run app: %s", e.Cause)
}

// Unwrap implements the implicit interface used by errors.Is and errors.As.
func (e AppRunError) Unwrap() error {
	return e.Cause
}
