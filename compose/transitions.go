// Copyright (c) 2026 Z5Labs and Contributors
//
// This software is released under the MIT License.
// https://opensource.org/licenses/MIT

package compose

import (
	"context"
	"fmt"

	"github.com/z5labs/atk/document"
	"github.com/z5labs/atk/internal/slogfield"
	"github.com/z5labs/atk/interpolate"
	"github.com/z5labs/atk/key"
	"github.com/z5labs/atk/merge"
	"github.com/z5labs/atk/overlay"
)

// Validate parses the config file and resolves its attributes. The
// attributes are removed from the document and decoded into a [Config].
func (o *Orchestrator) Validate(ctx context.Context) error {
	return o.transition(ctx, Raw, Validated, func(ctx context.Context) error {
		doc, err := document.Parse(o.source, o.opts.inFormat)
		if err != nil {
			return err
		}

		schema := builtinSchema(o.opts.id, o.opts.root)
		for _, f := range o.opts.schema {
			f(schema)
		}
		attrs, err := schema.Resolve(doc)
		if err != nil {
			return err
		}

		cfg, err := decodeConfig(attrs, o.opts.overrides)
		if err != nil {
			return err
		}

		spec, _ := attrs.Get(CustomCLIArgumentsAttr)
		args, err := overlay.ParseArguments(
			spec,
			o.opts.tokens,
			overlay.Logger(o.opts.log),
			overlay.KnownFlags(o.opts.known),
		)
		if err != nil {
			return err
		}

		spec, _ = attrs.Get(HardwareAttributesAttr)
		hws, err := overlay.ParseHardware(spec)
		if err != nil {
			return err
		}

		o.doc = doc
		o.attrs = attrs
		o.cfg = cfg
		o.args = args
		o.hardware = hws
		return nil
	})
}

// Merge merges what remains of the config file into the default document.
// Values from the config file win. Lists are extended unless the
// overwrite_lists attribute is set.
func (o *Orchestrator) Merge(ctx context.Context) error {
	return o.transition(ctx, Validated, Merged, func(ctx context.Context) error {
		defaults, err := document.Parse(o.opts.defaults, document.YAML)
		if err != nil {
			return err
		}

		policy := merge.PolicyFor(o.cfg.OverwriteLists)
		doc, err := merge.Merge(o.doc, defaults, policy)
		if err != nil {
			return err
		}
		o.opts.log.DebugContext(ctx, "merged config into defaults", slogfield.String("list_policy", policy.String()))

		if services, ok := doc.Lookup(ServicesAttr); !ok || services.IsNull() {
			doc.Put(ServicesAttr, document.NewMapping())
		}
		o.doc = doc
		return nil
	})
}

// Filter removes every service which was not requested. Requesting "all",
// or nothing at all, keeps every service. Requested services which do not
// exist are logged and otherwise ignored.
func (o *Orchestrator) Filter(ctx context.Context) error {
	return o.transition(ctx, Merged, Filtered, func(ctx context.Context) error {
		services, _ := o.doc.Lookup(ServicesAttr)
		if !services.IsMapping() {
			return &merge.Error{
				Path:        key.Of(ServicesAttr),
				Source:      document.Mapping,
				Destination: services.Kind(),
			}
		}

		requested := o.opts.services
		if len(requested) == 0 {
			requested = o.cfg.Requested()
		}
		if len(requested) == 0 || contains(requested, overlay.AllServices) {
			return nil
		}

		for _, name := range requested {
			if _, ok := services.Lookup(name); !ok {
				o.opts.log.WarnContext(ctx, "requested service does not exist", slogfield.Service(name))
			}
		}
		for _, name := range services.Keys() {
			if contains(requested, name) {
				continue
			}
			services.Remove(name)
			o.opts.log.DebugContext(ctx, "filtered out service", slogfield.Service(name))
		}
		return nil
	})
}

// Overlay applies, in order, the translation rules, the custom CLI
// argument overlays, the hardware specific overlays and the adapters.
func (o *Orchestrator) Overlay(ctx context.Context) error {
	return o.transition(ctx, Filtered, Overlaid, func(ctx context.Context) error {
		path := key.Of(ServicesAttr)
		for _, rule := range o.opts.rules {
			err := rule.Apply(o.doc)
			if err != nil {
				return err
			}
			path = rule.rewrite(path)
		}

		services, err := o.doc.Get(path)
		if err != nil {
			return err
		}

		err = o.args.Apply(services)
		if err != nil {
			return err
		}

		err = overlay.ApplyHardware(o.hardware, o.opts.id, services, overlay.Logger(o.opts.log))
		if err != nil {
			return err
		}

		for _, a := range o.opts.adapters {
			err = a.Adapt(ctx, o.doc, path)
			if err != nil {
				return err
			}
		}
		o.services = path
		return nil
	})
}

// Interpolate expands variable references throughout the document. The
// variables are the custom CLI argument values and the scalar attributes.
// An attribute wins over an argument with the same name.
func (o *Orchestrator) Interpolate(ctx context.Context) error {
	return o.transition(ctx, Overlaid, Interpolated, func(ctx context.Context) error {
		ns := o.args.Namespace()
		for name, value := range o.attrs.Namespace() {
			if _, exists := ns[name]; exists {
				o.opts.log.WarnContext(ctx,
					"custom argument is shadowed by an attribute of the same name",
					slogfield.String("name", name),
				)
			}
			ns[name] = value
		}

		err := interpolate.Node(o.doc, ns)
		if err != nil {
			return err
		}
		o.ns = ns
		return nil
	})
}

// Finalize serializes the document. Adapters which implement [Finalizer]
// see the document first.
func (o *Orchestrator) Finalize(ctx context.Context) error {
	return o.transition(ctx, Interpolated, Final, func(ctx context.Context) error {
		var attachments []Attachment
		for _, a := range o.opts.adapters {
			f, ok := a.(Finalizer)
			if !ok {
				continue
			}
			as, err := f.Finalize(ctx, o.doc, o.services)
			if err != nil {
				return err
			}
			attachments = append(attachments, as...)
		}

		b, err := o.doc.Serialize(o.opts.outFormat)
		if err != nil {
			return err
		}

		services, err := o.doc.Get(o.services)
		if err != nil {
			return fmt.Errorf("services moved by finalizer: %w", err)
		}

		o.result = &Result{
			final:        true,
			doc:          o.doc.Clone(),
			bytes:        b,
			format:       o.opts.outFormat,
			cfg:          o.cfg,
			services:     services.Keys(),
			servicesPath: o.services,
			ns:           o.ns,
			attachments:  attachments,
		}
		return nil
	})
}

func contains(ss []string, s string) bool {
	for _, x := range ss {
		if x == s {
			return true
		}
	}
	return false
}
