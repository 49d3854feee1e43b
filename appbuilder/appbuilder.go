// Copyright (c) 2026 Z5Labs and Contributors
//
// This software is released under the MIT License.
// https://opensource.org/licenses/MIT

// Package appbuilder provides middleware for [atk.AppBuilder]s.
package appbuilder

import (
	"context"

	"github.com/z5labs/atk"
	"github.com/z5labs/atk/internal/try"
)

// Recover will wrap the given [atk.AppBuilder] with panic recovery.
func Recover[T any](builder atk.AppBuilder[T]) atk.AppBuilder[T] {
	return atk.AppBuilderFunc[T](func(ctx context.Context, cfg T) (_ atk.App, err error) {
		defer try.Recover(&err)

		return builder.Build(ctx, cfg)
	})
}

// FromSettings returns an [atk.AppBuilder] which decodes the given
// [atk.AppBuilder]s input type, T, from [atk.Settings].
func FromSettings[T any](builder atk.AppBuilder[T]) atk.AppBuilder[atk.Settings] {
	return atk.AppBuilderFunc[atk.Settings](func(ctx context.Context, src atk.Settings) (atk.App, error) {
		cfg, err := atk.Decode[T](src)
		if err != nil {
			return nil, err
		}

		return builder.Build(ctx, cfg)
	})
}
