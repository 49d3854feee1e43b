// Copyright (c) 2026 Z5Labs and Contributors
//
// This software is released under the MIT License.
// https://opensource.org/licenses/MIT

// Package cli implements the atk command line.
package cli

import (
	"os"

	"github.com/z5labs/atk/compose"
	"github.com/z5labs/atk/host"
	"github.com/z5labs/atk/runtime"
	"github.com/z5labs/atk/usercount"

	"github.com/spf13/afero"
	"github.com/spf13/cobra"
)

// UsageError occurs when a command is invoked with conflicting or
// insufficient arguments.
type UsageError struct {
	Command string
	Reason  string
}

// Error implements the error interface.
func (e UsageError) Error() string {
	return e.Command + ": " + e.Reason
}

type options struct {
	fs        afero.Fs
	args      []string
	version   string
	getwd     func() (string, error)
	identity  func() (host.Identity, error)
	exec      runtime.Executor
	terminal  func() bool
	userCount []usercount.Option
}

// Option configures the root command.
type Option func(*options)

// WithFs sets the filesystem config files are read from and generated
// files are written to.
func WithFs(fs afero.Fs) Option {
	return func(o *options) {
		o.fs = fs
	}
}

// WithArgs sets the command line, without the program name. The default
// is os.Args[1:].
func WithArgs(args ...string) Option {
	return func(o *options) {
		o.args = args
	}
}

// WithVersion sets the version reported by --version.
func WithVersion(v string) Option {
	return func(o *options) {
		o.version = v
	}
}

// WithWorkingDir sets how the directory to search for the config file is
// found.
func WithWorkingDir(getwd func() (string, error)) Option {
	return func(o *options) {
		o.getwd = getwd
	}
}

// WithIdentity sets how the identity of the host user is looked up.
func WithIdentity(lookup func() (host.Identity, error)) Option {
	return func(o *options) {
		o.identity = lookup
	}
}

// WithExecutor sets how container runtime commands are run. --dry-run
// always wins.
func WithExecutor(e runtime.Executor) Option {
	return func(o *options) {
		o.exec = e
	}
}

// WithTerminal overrides whether stdin is treated as a terminal.
func WithTerminal(isTerminal func() bool) Option {
	return func(o *options) {
		o.terminal = isTerminal
	}
}

// WithUserCountOptions configures the shared session counter.
func WithUserCountOptions(opts ...usercount.Option) Option {
	return func(o *options) {
		o.userCount = append(o.userCount, opts...)
	}
}

// New returns the root atk command.
func New(opts ...Option) *cobra.Command {
	o := &options{
		fs:       afero.NewOsFs(),
		args:     os.Args[1:],
		version:  "dev",
		getwd:    os.Getwd,
		identity: host.Lookup,
	}
	for _, opt := range opts {
		opt(o)
	}

	root := &cobra.Command{
		Use:           "atk",
		Short:         "Manage containerized development environments",
		Version:       o.version,
		SilenceUsage:  true,
		SilenceErrors: false,
	}
	root.SetArgs(o.args)

	pf := root.PersistentFlags()
	pf.CountP("verbose", "v", "Level of verbosity")
	pf.Bool("log-json", false, "Write logs as JSON")
	pf.String("trace-file", "", "Write OpenTelemetry spans to this file")
	pf.Bool("dry-run", false, "Print the container runtime commands instead of running them")
	pf.String("container-runtime", runtime.DockerName, "The container runtime to use, docker or singularity")

	root.AddCommand(
		devCommand(o),
		runCommand(o),
		configCommand(o),
	)
	return root
}

// addConfigFlags adds the flags every command generating a compose
// document shares.
func addConfigFlags(cmd *cobra.Command) {
	fs := cmd.Flags()
	fs.StringP("file", "f", compose.DefaultFilename, "The atk config file, searched for upwards from the working directory")
	fs.StringSliceP("services", "s", nil, "The services to use, 'all' selects every service")
	fs.Bool("overwrite-lists", false, "Replace lists from the defaults instead of extending them")

	// Flags declared by custom_cli_arguments are only known once the config
	// file is read.
	cmd.FParseErrWhitelist = cobra.FParseErrWhitelist{UnknownFlags: true}
}

// passthrough returns the positional arguments given after "--".
func passthrough(cmd *cobra.Command, args []string) []string {
	dash := cmd.ArgsLenAtDash()
	if dash < 0 {
		return nil
	}
	return args[dash:]
}
