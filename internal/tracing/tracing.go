// Copyright (c) 2026 Z5Labs and Contributors
//
// This software is released under the MIT License.
// https://opensource.org/licenses/MIT

// Package tracing configures the OpenTelemetry tracer provider of atk.
package tracing

import (
	"context"
	"errors"
	"io"
	"os"

	"go.opentelemetry.io/otel/exporters/stdout/stdouttrace"
	"go.opentelemetry.io/otel/sdk/resource"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	semconv "go.opentelemetry.io/otel/semconv/v1.21.0"
	"go.opentelemetry.io/otel/trace"
)

// Initializer creates a tracer provider. A nil provider means the global
// provider is kept.
type Initializer interface {
	Init(context.Context) (trace.TracerProvider, error)
}

// Noop keeps the global tracer provider, which records nothing unless it
// was replaced.
var Noop = noopInitializer{}

type noopInitializer struct{}

// Init implements the [Initializer] interface.
func (noopInitializer) Init(context.Context) (trace.TracerProvider, error) {
	return nil, nil
}

// LocalConfig configures a tracer provider which writes spans as JSON.
type LocalConfig struct {
	ServiceName string
	Out         io.Writer
}

// LocalOption customizes a LocalConfig.
type LocalOption func(*LocalConfig)

// ServiceName sets the service.name resource attribute.
func ServiceName(name string) LocalOption {
	return func(cfg *LocalConfig) {
		cfg.ServiceName = name
	}
}

// Local returns an Initializer for a tracer provider which writes every
// span to out.
func Local(out io.Writer, opts ...LocalOption) Initializer {
	cfg := LocalConfig{
		ServiceName: "atk",
		Out:         out,
	}
	for _, opt := range opts {
		opt(&cfg)
	}
	return cfg
}

// Init implements the [Initializer] interface.
func (cfg LocalConfig) Init(ctx context.Context) (trace.TracerProvider, error) {
	return cfg.provider(ctx)
}

func (cfg LocalConfig) provider(ctx context.Context) (*sdktrace.TracerProvider, error) {
	exporter, err := stdouttrace.New(
		stdouttrace.WithWriter(cfg.Out),
	)
	if err != nil {
		return nil, err
	}

	res, err := resource.New(
		ctx,
		resource.WithTelemetrySDK(),
		resource.WithAttributes(
			semconv.ServiceName(cfg.ServiceName),
		),
	)
	if err != nil {
		return nil, err
	}

	// Spans are exported synchronously since atk is short lived.
	tp := sdktrace.NewTracerProvider(
		sdktrace.WithSyncer(exporter),
		sdktrace.WithResource(res),
	)
	return tp, nil
}

// FileConfig configures a tracer provider which writes spans as JSON to a
// file. The file is truncated when the provider is created and closed when
// it is shutdown.
type FileConfig struct {
	Path string
	opts []LocalOption
}

// File returns an Initializer for a tracer provider which writes every
// span to the file at path.
func File(path string, opts ...LocalOption) Initializer {
	return FileConfig{Path: path, opts: opts}
}

// Init implements the [Initializer] interface.
func (cfg FileConfig) Init(ctx context.Context) (trace.TracerProvider, error) {
	f, err := os.Create(cfg.Path)
	if err != nil {
		return nil, err
	}

	tp, err := Local(f, cfg.opts...).(LocalConfig).provider(ctx)
	if err != nil {
		return nil, errors.Join(err, f.Close())
	}
	return &fileTracerProvider{TracerProvider: tp, f: f}, nil
}

type fileTracerProvider struct {
	*sdktrace.TracerProvider
	f io.Closer
}

func (tp *fileTracerProvider) Shutdown(ctx context.Context) error {
	err := tp.TracerProvider.Shutdown(ctx)
	return errors.Join(err, tp.f.Close())
}
