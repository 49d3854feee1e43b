// Copyright (c) 2026 Z5Labs and Contributors
//
// This software is released under the MIT License.
// https://opensource.org/licenses/MIT

package runtime

import (
	"bytes"
	"context"
	"errors"
	"strings"

	"github.com/z5labs/atk/compose"
	"github.com/z5labs/atk/internal/slogfield"
)

// Docker drives Docker Compose v2.
type Docker struct {
	opts options
}

// NewDocker returns a Docker backend.
func NewDocker(opts ...Option) *Docker {
	return &Docker{opts: newOptions(opts)}
}

// Name implements the [Backend] interface.
func (d *Docker) Name() string {
	return DockerName
}

// TranslationRules implements the [Backend] interface. Docker consumes
// the compose file format as is.
func (d *Docker) TranslationRules() []compose.TranslationRule {
	return nil
}

// Adapters implements the [Backend] interface.
func (d *Docker) Adapters() []compose.Adapter {
	return nil
}

func (d *Docker) command(p Project, args ...string) Command {
	return Command{
		Args:   append([]string{"docker", "compose", "-f", p.File, "-p", p.Name}, args...),
		Env:    []string{"COMPOSE_IGNORE_ORPHANS=true"},
		Stdin:  d.opts.stdin,
		Stdout: d.opts.stdout,
		Stderr: d.opts.stderr,
	}
}

func (d *Docker) run(ctx context.Context, p Project, sub string, services []string, args []string, extra ...string) error {
	cmdArgs := append([]string{sub}, extra...)
	cmdArgs = append(cmdArgs, args...)
	cmdArgs = append(cmdArgs, services...)
	return d.opts.exec.Execute(ctx, d.command(p, cmdArgs...))
}

// Build implements the [Backend] interface.
func (d *Docker) Build(ctx context.Context, p Project, services []string, args ...string) error {
	return d.run(ctx, p, "build", services, args)
}

// Up implements the [Backend] interface.
func (d *Docker) Up(ctx context.Context, p Project, services []string, args ...string) error {
	return d.run(ctx, p, "up", services, args, "-d")
}

// Down implements the [Backend] interface.
func (d *Docker) Down(ctx context.Context, p Project, services []string, args ...string) error {
	return d.run(ctx, p, "down", services, args)
}

// Running implements the [Backend] interface.
func (d *Docker) Running(ctx context.Context, p Project, services []string) ([]string, error) {
	var out bytes.Buffer
	cmd := d.command(p, append([]string{"ps", "--services", "--filter", "status=running"}, services...)...)
	cmd.Stdin = nil
	cmd.Stdout = &out
	cmd.Stderr = nil

	err := d.opts.exec.Execute(ctx, cmd)
	if err != nil {
		var cerr *CommandError
		if errors.As(err, &cerr) && strings.Contains(cerr.Stderr, "no such service") {
			return nil, nil
		}
		return nil, err
	}
	return strings.Fields(out.String()), nil
}

// Run implements the [Backend] interface.
func (d *Docker) Run(ctx context.Context, p Project, service string, args ...string) error {
	cmdArgs := append([]string{"run", "--service-ports", "--rm", service}, args...)
	return d.opts.exec.Execute(ctx, d.command(p, cmdArgs...))
}

// Shell implements the [Backend] interface.
func (d *Docker) Shell(ctx context.Context, p Project, service string, args ...string) error {
	var env bytes.Buffer
	cmd := d.command(p, "exec", "-T", service, "env")
	cmd.Stdin = nil
	cmd.Stdout = &env
	cmd.Stderr = nil
	err := d.opts.exec.Execute(ctx, cmd)
	if err != nil {
		return notRunning(service, err)
	}

	shell, err := shellCommand(service, env.Bytes())
	if err != nil {
		return err
	}
	d.opts.log.DebugContext(ctx, "attaching to service", slogfield.Service(service), slogfield.Command(shell))

	cmdArgs := []string{"exec"}
	if !d.opts.isTerminal() {
		cmdArgs = append(cmdArgs, "-T")
	}
	cmdArgs = append(cmdArgs, args...)
	cmdArgs = append(cmdArgs, service)
	cmdArgs = append(cmdArgs, shell...)
	return d.opts.exec.Execute(ctx, d.command(p, cmdArgs...))
}

// RunCommand implements the [Backend] interface.
func (d *Docker) RunCommand(ctx context.Context, p Project, args ...string) error {
	return d.opts.exec.Execute(ctx, d.command(p, args...))
}
