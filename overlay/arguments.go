// Copyright (c) 2026 Z5Labs and Contributors
//
// This software is released under the MIT License.
// https://opensource.org/licenses/MIT

package overlay

import (
	"fmt"
	"io"
	"log/slog"
	"strconv"
	"strings"

	"github.com/z5labs/atk/document"
	"github.com/z5labs/atk/interpolate"
	"github.com/z5labs/atk/internal/slogfield"

	"github.com/spf13/pflag"
)

// ParserKey is the reserved key of a custom CLI argument describing how
// the argument is parsed.
const ParserKey = "argparse"

// Option configures how overlays are parsed and applied.
type Option func(*options)

type options struct {
	log   *slog.Logger
	known *pflag.FlagSet
}

func newOptions(opts []Option) options {
	o := options{log: discardLogger()}
	for _, opt := range opts {
		opt(&o)
	}
	return o
}

// Logger sets the logger warnings and debug records are written to.
func Logger(log *slog.Logger) Option {
	return func(o *options) {
		o.log = log
	}
}

// KnownFlags declares flags which are handled elsewhere, e.g. by the
// command line itself. They are skipped while parsing custom arguments
// and may not be redefined by them. fs is never modified.
func KnownFlags(fs *pflag.FlagSet) Option {
	return func(o *options) {
		o.known = fs
	}
}

// Argument is a single custom CLI argument.
type Argument struct {
	// Flag is the argument as written on the command line, e.g. "--gpus".
	Flag string

	// Dest is the interpolation variable the argument value is exposed as.
	Dest string

	// Action is "store_true" for flags without a value and "store" otherwise.
	Action string

	// Type is the value type of a "store" argument: "str", "int" or "bool".
	Type string

	Help string

	targets []target
}

// Arguments are the custom CLI arguments declared by a config file, parsed
// against the command line tokens given to atk.
type Arguments struct {
	args    []Argument
	fs      *pflag.FlagSet
	unknown []string
	log     *slog.Logger
}

// ParseArguments parses spec, the custom_cli_arguments section of a config
// file, and then parses tokens with the flags it declares.
//
// spec maps each argument, which must begin with "--", to its service
// selectors and an optional "argparse" mapping with the keys action, type,
// default, dest and help. Tokens naming flags that are neither declared by
// spec nor known are recorded, logged and otherwise ignored.
func ParseArguments(spec *document.Node, tokens []string, opts ...Option) (*Arguments, error) {
	o := newOptions(opts)

	fs := pflag.NewFlagSet("custom arguments", pflag.ContinueOnError)
	fs.ParseErrorsWhitelist.UnknownFlags = true
	fs.SetOutput(io.Discard)
	if o.known != nil {
		o.known.VisitAll(func(f *pflag.Flag) {
			fs.AddFlag(&pflag.Flag{
				Name:        f.Name,
				Shorthand:   f.Shorthand,
				Usage:       f.Usage,
				Value:       shadowValue(f.Value.Type()),
				NoOptDefVal: f.NoOptDefVal,
			})
		})
	}

	a := &Arguments{
		fs:  fs,
		log: o.log,
	}
	if spec.IsNull() {
		spec = document.NewMapping()
	}
	if !spec.IsMapping() {
		return nil, &Error{Overlay: "custom_cli_arguments", Reason: fmt.Sprintf("must be a mapping, got: %s", spec.Kind())}
	}
	for _, name := range spec.Keys() {
		v, _ := spec.Lookup(name)
		arg, err := parseArgument(name, v)
		if err != nil {
			return nil, err
		}
		err = a.define(arg, v)
		if err != nil {
			return nil, err
		}
		a.args = append(a.args, arg)
	}

	a.unknown = unknownFlags(fs, tokens)
	for _, tok := range a.unknown {
		o.log.Warn("ignoring unknown argument", slogfield.String("argument", tok))
	}

	// Invalid values are ignored one flag at a time so later arguments
	// still apply.
	err := fs.ParseAll(tokens, func(f *pflag.Flag, value string) error {
		prev := f.Value.String()
		err := fs.Set(f.Name, value)
		if err != nil {
			// pflag stores the zero value when parsing fails.
			f.Value.Set(prev)
			o.log.Warn(
				"ignoring invalid custom argument",
				slogfield.String("argument", "--"+f.Name),
				slogfield.Error(err),
			)
		}
		return nil
	})
	if err != nil {
		o.log.Warn("failed to parse custom arguments", slogfield.Error(err))
	}
	return a, nil
}

func parseArgument(name string, v *document.Node) (Argument, error) {
	if !strings.HasPrefix(name, "--") || len(name) < 3 {
		return Argument{}, &Error{Overlay: name, Reason: "argument must begin with '--'"}
	}
	if !v.IsMapping() {
		return Argument{}, &Error{Overlay: name, Reason: fmt.Sprintf("must be a mapping, got: %s", v.Kind())}
	}

	arg := Argument{
		Flag:   name,
		Dest:   strings.ReplaceAll(name[2:], "-", "_"),
		Action: "store",
		Type:   "str",
	}

	ts, err := targets(name, v, ParserKey)
	if err != nil {
		return Argument{}, err
	}
	arg.targets = ts

	parser, ok := v.Lookup(ParserKey)
	if !ok || parser.IsNull() {
		return arg, nil
	}
	if !parser.IsMapping() {
		return Argument{}, &Error{Overlay: name, Reason: "argparse must be a mapping"}
	}
	for _, k := range parser.Keys() {
		pv, _ := parser.Lookup(k)
		switch k {
		case "action":
			arg.Action = pv.Text()
		case "type":
			arg.Type = pv.Text()
		case "dest":
			arg.Dest = pv.Text()
		case "help":
			arg.Help = pv.Text()
		case "default":
		default:
			return Argument{}, &Error{Overlay: name, Reason: fmt.Sprintf("unsupported argparse option: %s", k)}
		}
	}
	switch arg.Action {
	case "store_true":
		arg.Type = "bool"
	case "store":
		if arg.Type != "str" && arg.Type != "int" && arg.Type != "bool" {
			return Argument{}, &Error{Overlay: name, Reason: fmt.Sprintf("unsupported argparse type: %s", arg.Type)}
		}
	default:
		return Argument{}, &Error{Overlay: name, Reason: fmt.Sprintf("unsupported argparse action: %s", arg.Action)}
	}
	if arg.Dest == "" {
		return Argument{}, &Error{Overlay: name, Reason: "argparse dest must not be empty"}
	}
	return arg, nil
}

// define registers arg on the flag set along with its default value.
func (a *Arguments) define(arg Argument, spec *document.Node) error {
	name := arg.Flag[2:]
	if a.fs.Lookup(name) != nil {
		return &Error{Overlay: arg.Flag, Reason: "argument is already defined"}
	}

	var def *document.Node
	if parser, ok := spec.Lookup(ParserKey); ok {
		def, _ = parser.Lookup("default")
	}

	switch arg.Type {
	case "bool":
		b := false
		if !def.IsNull() {
			v, ok := def.Scalar().(bool)
			if !ok {
				return &Error{Overlay: arg.Flag, Reason: "default must be a bool"}
			}
			b = v
		}
		a.fs.Bool(name, b, arg.Help)
		if arg.Action == "store" {
			// A "store" bool always takes an explicit value.
			a.fs.Lookup(name).NoOptDefVal = ""
		}
	case "int":
		i := 0
		if !def.IsNull() {
			v, ok := def.Scalar().(int)
			if !ok {
				return &Error{Overlay: arg.Flag, Reason: "default must be an int"}
			}
			i = v
		}
		a.fs.Int(name, i, arg.Help)
	default:
		a.fs.String(name, def.Text(), arg.Help)
	}
	return nil
}

func unknownFlags(fs *pflag.FlagSet, tokens []string) []string {
	var unknown []string
	for _, tok := range tokens {
		if tok == "--" {
			break
		}
		if len(tok) < 2 || tok[0] != '-' {
			continue
		}
		if strings.HasPrefix(tok, "--") {
			name, _, _ := strings.Cut(tok[2:], "=")
			if fs.Lookup(name) == nil {
				unknown = append(unknown, tok)
			}
			continue
		}
		if _, err := strconv.ParseFloat(tok, 64); err == nil {
			continue
		}
		if fs.ShorthandLookup(tok[1:2]) == nil {
			unknown = append(unknown, tok)
		}
	}
	return unknown
}

// Unknown returns the tokens which named undeclared flags.
func (a *Arguments) Unknown() []string {
	return a.unknown
}

// List returns the declared arguments in declaration order.
func (a *Arguments) List() []Argument {
	args := make([]Argument, len(a.args))
	copy(args, a.args)
	return args
}

// Given reports whether the argument with the given Flag was on the
// command line.
func (a *Arguments) Given(flag string) bool {
	f := a.fs.Lookup(strings.TrimPrefix(flag, "--"))
	return f != nil && f.Changed
}

// Active reports whether the overlay for flag applies: the argument was
// given and its value is truthy.
func (a *Arguments) Active(flag string) bool {
	f := a.fs.Lookup(strings.TrimPrefix(flag, "--"))
	if f == nil || !f.Changed {
		return false
	}
	switch f.Value.Type() {
	case "bool":
		return f.Value.String() == "true"
	case "int":
		return f.Value.String() != "0"
	default:
		return f.Value.String() != ""
	}
}

// Namespace exposes every declared argument's value, given or default,
// under its Dest.
func (a *Arguments) Namespace() interpolate.Namespace {
	ns := make(interpolate.Namespace, len(a.args))
	for _, arg := range a.args {
		ns[arg.Dest] = a.fs.Lookup(arg.Flag[2:]).Value.String()
	}
	return ns
}

// Apply merges the payloads of every active argument into the services
// they select. services is the mapping of service name to service.
func (a *Arguments) Apply(services *document.Node) error {
	if !services.IsMapping() {
		return &Error{Overlay: "custom_cli_arguments", Reason: "services must be a mapping"}
	}
	for _, arg := range a.args {
		if !a.Active(arg.Flag) {
			continue
		}
		err := apply(a.log, arg.Flag, arg.targets, services)
		if err != nil {
			return err
		}
	}
	return nil
}

// shadowValue stands in for a known flag so its tokens, including any
// value, are consumed without touching the real flag.
type shadowValue string

func (v shadowValue) String() string   { return "" }
func (v shadowValue) Set(string) error { return nil }
func (v shadowValue) Type() string     { return string(v) }
