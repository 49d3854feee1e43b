// Copyright (c) 2026 Z5Labs and Contributors
//
// This software is released under the MIT License.
// https://opensource.org/licenses/MIT

package appbuilder

import (
	"context"
	"errors"

	"github.com/z5labs/atk"
	"github.com/z5labs/atk/app"
	"github.com/z5labs/atk/internal/tracing"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/trace"
)

// OTel is an [atk.AppBuilder] middleware which installs the tracer provider
// created by the config, if any, as the global one. It also ensures that the
// provider is shutdown, flushing its spans, when the built [atk.App]
// stops running.
func OTel[T tracing.Initializer](builder atk.AppBuilder[T]) atk.AppBuilder[T] {
	return atk.AppBuilderFunc[T](func(ctx context.Context, cfg T) (atk.App, error) {
		if ctx.Err() != nil {
			return nil, ctx.Err()
		}

		tp, err := cfg.Init(ctx)
		if err != nil {
			return nil, err
		}
		if tp != nil {
			otel.SetTracerProvider(tp)
		}

		onPostRun := tryShutdown(tp)

		base, err := builder.Build(ctx, cfg)
		if err != nil {
			shutdownErr := onPostRun.Run(ctx)
			return nil, errors.Join(err, shutdownErr)
		}

		return app.WithLifecycleHooks(base, app.Lifecycle{
			PostRun: onPostRun,
		}), nil
	})
}

type shutdowner interface {
	Shutdown(context.Context) error
}

func tryShutdown(tp trace.TracerProvider) app.LifecycleHookFunc {
	return func(ctx context.Context) error {
		s, ok := tp.(shutdowner)
		if !ok {
			return nil
		}
		return s.Shutdown(ctx)
	}
}
