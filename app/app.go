// Copyright (c) 2026 Z5Labs and Contributors
//
// This software is released under the MIT License.
// https://opensource.org/licenses/MIT

// Package app provides helpers for common atk.App implementation patterns.
package app

import (
	"context"
	"errors"
	"os"
	"os/signal"

	"github.com/z5labs/atk"
	"github.com/z5labs/atk/internal/try"
)

// Func is a functional implementation of the [atk.App] interface.
type Func func(context.Context) error

// Run implements the [atk.App] interface.
func (f Func) Run(ctx context.Context) error {
	return f(ctx)
}

// Recover will wrap the given [atk.App] with panic recovery.
// If the recovered panic value implements [error] then it can be
// unwrapped from the returned error. Otherwise a [try.PanicError]
// carrying the value is returned.
func Recover(app atk.App) atk.App {
	return Func(func(ctx context.Context) (err error) {
		defer try.Recover(&err)

		return app.Run(ctx)
	})
}

// WithSignalNotifications wraps a given [atk.App] in an implementation
// that cancels the [context.Context] that's passed to app.Run if an [os.Signal]
// is received by the running process.
func WithSignalNotifications(app atk.App, signals ...os.Signal) atk.App {
	return Func(func(ctx context.Context) error {
		sigCtx, cancel := signal.NotifyContext(ctx, signals...)
		defer cancel()

		return app.Run(sigCtx)
	})
}

// LifecycleHook represents functionality that needs to be performed
// at a specific "time" relative to the execution of [atk.App.Run].
type LifecycleHook interface {
	Run(context.Context) error
}

// LifecycleHookFunc is a convenient helper type for implementing a [LifecycleHook]
// from just a regular func.
type LifecycleHookFunc func(context.Context) error

// Run implements the [LifecycleHook] interface.
func (f LifecycleHookFunc) Run(ctx context.Context) error {
	return f(ctx)
}

// ComposeLifecycleHooks combines multiple [LifecycleHook]s into a single hook.
// Each hook is called sequentially, whether or not a previous hook returned
// an error. Any and all errors are then returned after all hooks have run.
func ComposeLifecycleHooks(hooks ...LifecycleHook) LifecycleHook {
	return LifecycleHookFunc(func(ctx context.Context) error {
		errs := make([]error, 0, len(hooks))
		for _, hook := range hooks {
			if hook == nil {
				continue
			}
			err := hook.Run(ctx)
			if err == nil {
				continue
			}
			errs = append(errs, err)
		}
		return errors.Join(errs...)
	})
}

// Lifecycle holds the hooks run around an [atk.App].
type Lifecycle struct {
	// PreRun is executed before the underlying [atk.App]. If it fails,
	// the app is not run but PostRun still is.
	PreRun LifecycleHook

	// PostRun is always executed regardless if the underlying [atk.App]
	// returns an error or panics.
	PostRun LifecycleHook
}

// WithLifecycleHooks wraps a given [atk.App] in an implementation
// that runs [LifecycleHook]s around the execution of app.Run.
func WithLifecycleHooks(app atk.App, lifecycle Lifecycle) atk.App {
	return Func(func(ctx context.Context) (err error) {
		// Always run PostRun hook regardless if app returns an error or panics.
		defer runPostRunHook(ctx, lifecycle.PostRun, &err)

		if lifecycle.PreRun != nil {
			err = lifecycle.PreRun.Run(ctx)
			if err != nil {
				return err
			}
		}

		return app.Run(ctx)
	})
}

func runPostRunHook(ctx context.Context, hook LifecycleHook, err *error) {
	if hook == nil {
		return
	}

	// A cancelled ctx must not prevent clean up.
	hookErr := hook.Run(context.WithoutCancel(ctx))

	// errors.Join will not return an error if both
	// *err and hookErr are nil.
	*err = errors.Join(*err, hookErr)
}
