// Copyright (c) 2026 Z5Labs and Contributors
//
// This software is released under the MIT License.
// https://opensource.org/licenses/MIT

package runtime

import (
	"bytes"
	"context"
	"fmt"
	"strings"

	"github.com/z5labs/atk/compose"
	"github.com/z5labs/atk/document"
	"github.com/z5labs/atk/internal/slogfield"
	"github.com/z5labs/atk/key"
	"github.com/z5labs/atk/merge"

	"github.com/joho/godotenv"
)

// SingularityEnvMount is where the generated environment file of a service
// is bound inside its instance. Singularity sources every script in this
// directory when an instance starts.
const SingularityEnvMount = "/.singularity.d/env/atk.sh"

// SingularityEnvFile returns the name of the environment file generated
// for service, relative to the compose document.
func SingularityEnvFile(service string) string {
	return ".atk-singularity-" + service + ".env"
}

// Singularity drives singularity-compose.
type Singularity struct {
	opts options
}

// NewSingularity returns a Singularity backend.
func NewSingularity(opts ...Option) *Singularity {
	return &Singularity{opts: newOptions(opts)}
}

// Name implements the [Backend] interface.
func (s *Singularity) Name() string {
	return SingularityName
}

// TranslationRules implements the [Backend] interface. singularity-compose
// calls services instances.
func (s *Singularity) TranslationRules() []compose.TranslationRule {
	return []compose.TranslationRule{
		{Path: key.Chain{}, From: "services", To: "instances"},
	}
}

// Adapters implements the [Backend] interface.
func (s *Singularity) Adapters() []compose.Adapter {
	return []compose.Adapter{&singularityAdapter{s: s}}
}

func (s *Singularity) command(p Project, args ...string) Command {
	return Command{
		Args:   append([]string{"singularity-compose", "-p", p.Name, "-f", p.File}, args...),
		Stdin:  s.opts.stdin,
		Stdout: s.opts.stdout,
		Stderr: s.opts.stderr,
	}
}

func (s *Singularity) exec(instance string, args ...string) Command {
	return Command{
		Args:   append([]string{"singularity", "exec"}, append(args[:len(args):len(args)], "instance://"+instance)...),
		Stdin:  s.opts.stdin,
		Stdout: s.opts.stdout,
		Stderr: s.opts.stderr,
	}
}

func (s *Singularity) run(ctx context.Context, p Project, sub string, services []string, args []string) error {
	cmdArgs := append([]string{sub}, args...)
	cmdArgs = append(cmdArgs, services...)
	return s.opts.exec.Execute(ctx, s.command(p, cmdArgs...))
}

// Build implements the [Backend] interface.
func (s *Singularity) Build(ctx context.Context, p Project, services []string, args ...string) error {
	return s.run(ctx, p, "build", services, args)
}

// Up implements the [Backend] interface. Instances do not get the resolv.conf
// of the host unless args contain "--resolv".
func (s *Singularity) Up(ctx context.Context, p Project, services []string, args ...string) error {
	upArgs := make([]string, 0, len(args)+1)
	resolv := false
	for _, arg := range args {
		if arg == "--resolv" {
			resolv = true
			continue
		}
		upArgs = append(upArgs, arg)
	}
	if !resolv {
		upArgs = append(upArgs, "--no-resolv")
	}
	return s.run(ctx, p, "up", services, upArgs)
}

// Down implements the [Backend] interface.
func (s *Singularity) Down(ctx context.Context, p Project, services []string, args ...string) error {
	return s.run(ctx, p, "down", services, args)
}

// Running implements the [Backend] interface.
func (s *Singularity) Running(ctx context.Context, p Project, services []string) ([]string, error) {
	var out bytes.Buffer
	cmd := s.command(p, append([]string{"ps"}, services...)...)
	cmd.Stdin = nil
	cmd.Stdout = &out
	cmd.Stderr = nil
	err := s.opts.exec.Execute(ctx, cmd)
	if err != nil {
		return nil, err
	}

	listed := make(map[string]bool)
	for _, field := range strings.Fields(out.String()) {
		listed[field] = true
	}
	var running []string
	for _, service := range services {
		if listed[service] {
			running = append(running, service)
		}
	}
	return running, nil
}

// Run implements the [Backend] interface. singularity-compose has no run
// command so the instance is brought up and args run in its working_dir.
func (s *Singularity) Run(ctx context.Context, p Project, service string, args ...string) error {
	running, err := s.Running(ctx, p, []string{service})
	if err != nil {
		return err
	}
	if len(running) > 0 {
		s.opts.log.WarnContext(ctx, "service is already up, it may need to be brought down first", slogfield.Service(service))
	}

	err = s.Up(ctx, p, []string{service})
	if err != nil {
		return err
	}
	cmd := s.exec(service, "--pwd="+p.WorkingDir(service))
	cmd.Args = append(cmd.Args, args...)
	return s.opts.exec.Execute(ctx, cmd)
}

// Shell implements the [Backend] interface.
func (s *Singularity) Shell(ctx context.Context, p Project, service string, args ...string) error {
	var env bytes.Buffer
	cmd := s.exec(service)
	cmd.Args = append(cmd.Args, "env")
	cmd.Stdin = nil
	cmd.Stdout = &env
	cmd.Stderr = nil
	err := s.opts.exec.Execute(ctx, cmd)
	if err != nil {
		return notRunning(service, err)
	}

	shell, err := shellCommand(service, env.Bytes())
	if err != nil {
		return err
	}

	cmd = s.exec(service, append([]string{"--pwd=" + p.WorkingDir(service)}, args...)...)
	cmd.Args = append(cmd.Args, shell...)
	return s.opts.exec.Execute(ctx, cmd)
}

// RunCommand implements the [Backend] interface.
func (s *Singularity) RunCommand(ctx context.Context, p Project, args ...string) error {
	return s.opts.exec.Execute(ctx, s.command(p, args...))
}

// singularityAdapter rewrites compose services into singularity-compose
// instances which behave like their Docker counterparts.
type singularityAdapter struct {
	s *Singularity
}

var noHome = document.FromValue(map[string]any{"options": []string{"no-home"}})

// Adapt implements the [compose.Adapter] interface.
func (a *singularityAdapter) Adapt(ctx context.Context, doc *document.Node, servicesPath key.Chain) error {
	services, err := doc.Get(servicesPath)
	if err != nil {
		return err
	}

	for _, name := range services.Keys() {
		svc, _ := services.Lookup(name)
		if svc.IsNull() {
			svc = document.NewMapping()
			services.Put(name, svc)
		}
		if !svc.IsMapping() {
			return fmt.Errorf("service %s must be a mapping, got: %s", name, svc.Kind())
		}

		start, ok := svc.Lookup("start")
		if !ok || start.IsNull() {
			start = document.NewMapping()
			svc.Put("start", start)
		}
		if !hasItem(start, "options", "no-home") {
			_, err = merge.Merge(noHome, start, merge.Extend)
			if err != nil {
				return err
			}
		}

		if _, ok := svc.Lookup("network"); !ok {
			svc.Put("network", document.FromValue(map[string]any{"enable": false}))
		}

		// Binding ports requires root. Instances share the host network.
		svc.Remove("ports")

		build, ok := svc.Lookup("build")
		if !ok || !build.IsMapping() {
			continue
		}
		build.Put("options", document.FromValue([]string{"fakeroot", "fix-perms"}))
		if dockerfile, ok := build.Lookup("dockerfile"); ok {
			err = build.Set(key.Of("dockerfile"), document.NewScalar("recipe"), true)
			if err != nil {
				return err
			}
			build.Put("recipe", document.NewScalar(strings.ReplaceAll(dockerfile.Text(), "dockerfile", "singularity")))
		}
		if build.Remove("args") {
			a.s.opts.log.WarnContext(ctx, "singularity recipes do not support build args, ignoring them", slogfield.Service(name))
		}
	}
	return nil
}

// Finalize implements the [compose.Finalizer] interface. The environment of
// every service is written to a file which is bound into its instance.
func (a *singularityAdapter) Finalize(ctx context.Context, doc *document.Node, servicesPath key.Chain) ([]compose.Attachment, error) {
	services, err := doc.Get(servicesPath)
	if err != nil {
		return nil, err
	}

	var attachments []compose.Attachment
	for _, name := range services.Keys() {
		svc, _ := services.Lookup(name)
		env, ok := svc.Lookup("environment")
		if !ok || env.IsNull() {
			continue
		}

		vars, err := environment(env)
		if err != nil {
			return nil, fmt.Errorf("invalid environment of service %s: %w", name, err)
		}
		data, err := exportScript(vars)
		if err != nil {
			return nil, err
		}

		file := SingularityEnvFile(name)
		attachments = append(attachments, compose.Attachment{Name: file, Data: data})

		bind := document.NewScalar("./" + file + ":" + SingularityEnvMount)
		volumes, ok := svc.Lookup("volumes")
		if !ok || volumes.IsNull() {
			svc.Put("volumes", document.NewSequence(bind))
			continue
		}
		if !volumes.IsSequence() {
			return nil, fmt.Errorf("volumes of service %s must be a sequence, got: %s", name, volumes.Kind())
		}
		volumes.Append(bind)
	}
	return attachments, nil
}

// environment reads a compose environment, either a sequence of KEY=VALUE
// items or a mapping. Items without a value are skipped.
func environment(env *document.Node) (map[string]string, error) {
	vars := make(map[string]string)
	switch {
	case env.IsMapping():
		for _, k := range env.Keys() {
			v, _ := env.Lookup(k)
			vars[k] = v.Text()
		}
	case env.IsSequence():
		for _, item := range env.Items() {
			k, v, ok := strings.Cut(item.Text(), "=")
			if !ok {
				continue
			}
			vars[k] = v
		}
	default:
		return nil, fmt.Errorf("must be a sequence or mapping, got: %s", env.Kind())
	}
	return vars, nil
}

// exportScript renders vars as a shell script exporting each of them.
func exportScript(vars map[string]string) ([]byte, error) {
	if len(vars) == 0 {
		return nil, nil
	}
	s, err := godotenv.Marshal(vars)
	if err != nil {
		return nil, err
	}

	var buf bytes.Buffer
	for _, line := range strings.Split(s, "\n") {
		buf.WriteString("export ")
		buf.WriteString(line)
		buf.WriteByte('\n')
	}
	return buf.Bytes(), nil
}

func hasItem(m *document.Node, k, item string) bool {
	seq, ok := m.Lookup(k)
	if !ok || !seq.IsSequence() {
		return false
	}
	for _, v := range seq.Items() {
		if v.Text() == item {
			return true
		}
	}
	return false
}
