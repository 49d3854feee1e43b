// Copyright (c) 2026 Z5Labs and Contributors
//
// This software is released under the MIT License.
// https://opensource.org/licenses/MIT

// Package compose generates a compose document from an atk config file.
//
// A config file is a compose document plus a set of custom attributes. An
// [Orchestrator] validates those attributes, merges the document into the
// shipped defaults, limits it to the requested services, applies overlays
// and expands variables before serializing the result.
package compose

import (
	"context"
	"io"
	"log/slog"

	"github.com/z5labs/atk/attribute"
	"github.com/z5labs/atk/document"
	"github.com/z5labs/atk/host"
	"github.com/z5labs/atk/internal/slogfield"
	"github.com/z5labs/atk/interpolate"
	"github.com/z5labs/atk/key"
	"github.com/z5labs/atk/overlay"

	"github.com/spf13/pflag"
	"go.opentelemetry.io/otel"
	otelattribute "go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
)

type options struct {
	inFormat  document.Format
	outFormat document.Format
	root      string
	id        host.Identity
	services  []string
	tokens    []string
	known     *pflag.FlagSet
	rules     []TranslationRule
	adapters  []Adapter
	overrides Config
	log       *slog.Logger
	defaults  []byte
	schema    []func(*attribute.Schema)
}

// Option configures an [Orchestrator].
type Option func(*options)

// InputFormat sets the format of the config file. The default is YAML.
func InputFormat(f document.Format) Option {
	return func(o *options) {
		o.inFormat = f
	}
}

// OutputFormat sets the format of the generated document. The default is YAML.
func OutputFormat(f document.Format) Option {
	return func(o *options) {
		o.outFormat = f
	}
}

// ProjectRoot sets the default of the project_root attribute, usually the
// directory holding the config file.
func ProjectRoot(dir string) Option {
	return func(o *options) {
		o.root = dir
	}
}

// Identity sets the host identity used for the user attribute defaults and
// for matching hardware specific attributes.
func Identity(id host.Identity) Option {
	return func(o *options) {
		o.id = id
	}
}

// RequestServices limits the generated document to the named services
// instead of the default_containers or default_services attributes.
func RequestServices(names ...string) Option {
	return func(o *options) {
		o.services = names
	}
}

// Arguments sets the command line tokens custom CLI arguments are parsed
// from. Flags in known are handled by the caller and skipped.
func Arguments(tokens []string, known *pflag.FlagSet) Option {
	return func(o *options) {
		o.tokens = tokens
		o.known = known
	}
}

// TranslationRules are applied, in order, before any overlay.
func TranslationRules(rules ...TranslationRule) Option {
	return func(o *options) {
		o.rules = append(o.rules, rules...)
	}
}

// Adapters are applied, in order, after every overlay.
func Adapters(adapters ...Adapter) Option {
	return func(o *options) {
		o.adapters = append(o.adapters, adapters...)
	}
}

// Overrides sets built-in attribute values which win over the config file.
// Only non-zero fields of cfg are applied.
func Overrides(cfg Config) Option {
	return func(o *options) {
		o.overrides = cfg
	}
}

// Logger sets the logger used for warnings and debug records.
func Logger(log *slog.Logger) Option {
	return func(o *options) {
		o.log = log
	}
}

// Defaults replaces the shipped default document. It is always YAML.
func Defaults(template []byte) Option {
	return func(o *options) {
		o.defaults = template
	}
}

// Schema registers additional attributes. Registering a built-in Dest
// replaces the built-in attribute.
func Schema(f func(*attribute.Schema)) Option {
	return func(o *options) {
		o.schema = append(o.schema, f)
	}
}

// Orchestrator drives a single config generation through its States.
// It is not safe for concurrent use.
type Orchestrator struct {
	source []byte
	opts   options

	state    State
	doc      *document.Node
	attrs    *attribute.Resolved
	cfg      Config
	args     *overlay.Arguments
	hardware []overlay.Hardware
	services key.Chain
	ns       interpolate.Namespace
	result   *Result
}

// New returns an Orchestrator for the config file contents in source.
func New(source []byte, opts ...Option) *Orchestrator {
	o := options{
		inFormat:  document.YAML,
		outFormat: document.YAML,
		root:      ".",
		log:       slog.New(slog.NewTextHandler(io.Discard, nil)),
		defaults:  defaultTemplate,
	}
	for _, opt := range opts {
		opt(&o)
	}
	return &Orchestrator{
		source: source,
		opts:   o,
	}
}

// State returns the current state.
func (o *Orchestrator) State() State {
	return o.state
}

// Reset discards any progress so the config can be generated again.
func (o *Orchestrator) Reset() {
	*o = Orchestrator{
		source: o.source,
		opts:   o.opts,
	}
}

// Generate runs every transition from Raw to Final.
func (o *Orchestrator) Generate(ctx context.Context) (*Result, error) {
	spanCtx, span := otel.Tracer("compose").Start(ctx, "Orchestrator.Generate")
	defer span.End()

	steps := []func(context.Context) error{
		o.Validate,
		o.Merge,
		o.Filter,
		o.Overlay,
		o.Interpolate,
		o.Finalize,
	}
	for _, step := range steps {
		err := step(spanCtx)
		if err != nil {
			span.RecordError(err)
			span.SetStatus(codes.Error, err.Error())
			return nil, err
		}
	}
	return o.result, nil
}

// transition runs f if the orchestrator is in state from, moving it to to
// on success and to Failed otherwise.
func (o *Orchestrator) transition(ctx context.Context, from, to State, f func(context.Context) error) error {
	if o.state != from {
		return &TransitionError{
			From:  o.state,
			To:    to,
			Cause: &StateError{Current: o.state, Expected: from},
		}
	}

	spanCtx, span := otel.Tracer("compose").Start(ctx, "Orchestrator."+to.String(), trace.WithAttributes(
		otelattribute.String("compose.state.from", from.String()),
		otelattribute.String("compose.state.to", to.String()),
	))
	defer span.End()

	err := ctx.Err()
	if err == nil {
		err = f(spanCtx)
	}
	if err != nil {
		o.state = Failed
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		return &TransitionError{From: from, To: to, Cause: err}
	}

	o.state = to
	o.opts.log.DebugContext(spanCtx, "config transitioned", slogfield.State(to))
	return nil
}
