// Copyright (c) 2026 Z5Labs and Contributors
//
// This software is released under the MIT License.
// https://opensource.org/licenses/MIT

package runtime

import (
	"bytes"
	"context"
	"io"
	"strings"
	"testing"

	"github.com/z5labs/atk/compose"
	"github.com/z5labs/atk/document"
	"github.com/z5labs/atk/host"
	"github.com/z5labs/atk/key"

	"github.com/stretchr/testify/assert"
)

// recorder is an Executor which records every command and answers with
// canned stdout or errors keyed by the joined command arguments.
type recorder struct {
	cmds    []Command
	outputs map[string]string
	errs    map[string]error
}

func (r *recorder) Execute(ctx context.Context, cmd Command) error {
	r.cmds = append(r.cmds, cmd)
	line := strings.Join(cmd.Args, " ")
	if out, ok := r.outputs[line]; ok && cmd.Stdout != nil {
		io.WriteString(cmd.Stdout, out)
	}
	return r.errs[line]
}

func (r *recorder) args() []string {
	lines := make([]string, len(r.cmds))
	for i, cmd := range r.cmds {
		lines[i] = strings.Join(cmd.Args, " ")
	}
	return lines
}

func testProject(t *testing.T, doc string) Project {
	t.Helper()
	n, err := document.Parse([]byte(doc), document.YAML)
	if err != nil {
		t.Fatalf("failed to parse test document: %s", err)
	}
	return Project{
		Name:         "demo",
		File:         ".atk-compose.yml",
		Document:     n,
		ServicesPath: key.Of("services"),
	}
}

func testOptions(r *recorder, tty bool) []Option {
	return []Option{
		WithExecutor(r),
		WithStdio(strings.NewReader(""), io.Discard, io.Discard),
		WithTerminal(func() bool { return tty }),
	}
}

func TestNew(t *testing.T) {
	testCases := []struct {
		Name    string
		Backend string
	}{
		{Name: "", Backend: DockerName},
		{Name: DockerName, Backend: DockerName},
		{Name: SingularityName, Backend: SingularityName},
	}

	for _, testCase := range testCases {
		t.Run("will select "+testCase.Backend+" for "+testCase.Name, func(t *testing.T) {
			b, err := New(testCase.Name)
			if !assert.Nil(t, err) {
				return
			}
			if !assert.Equal(t, testCase.Backend, b.Name()) {
				return
			}
		})
	}

	t.Run("will return an error", func(t *testing.T) {
		t.Run("if the runtime is unknown", func(t *testing.T) {
			_, err := New("podman")

			var uerr UnknownBackendError
			if !assert.ErrorAs(t, err, &uerr) {
				return
			}
			if !assert.Equal(t, "podman", uerr.Name) {
				return
			}
		})
	})
}

func TestProject_WorkingDir(t *testing.T) {
	p := testProject(t, `services: {dev: {working_dir: /home/demo}, vnc: {}}`)

	if !assert.Equal(t, "/home/demo", p.WorkingDir("dev")) {
		return
	}
	if !assert.Equal(t, "/", p.WorkingDir("vnc")) {
		return
	}
	if !assert.Equal(t, "/", p.WorkingDir("ghost")) {
		return
	}
}

func TestDocker(t *testing.T) {
	ctx := context.Background()
	p := testProject(t, `services: {dev: {}}`)
	prefix := "docker compose -f .atk-compose.yml -p demo "

	t.Run("will run compose subcommands", func(t *testing.T) {
		r := &recorder{}
		d := NewDocker(testOptions(r, true)...)

		err := d.Build(ctx, p, []string{"dev"}, "--no-cache")
		if !assert.Nil(t, err) {
			return
		}
		err = d.Up(ctx, p, []string{"dev", "vnc"})
		if !assert.Nil(t, err) {
			return
		}
		err = d.Down(ctx, p, nil)
		if !assert.Nil(t, err) {
			return
		}
		err = d.Run(ctx, p, "dev", "make", "test")
		if !assert.Nil(t, err) {
			return
		}
		err = d.RunCommand(ctx, p, "logs", "dev")
		if !assert.Nil(t, err) {
			return
		}

		want := []string{
			prefix + "build --no-cache dev",
			prefix + "up -d dev vnc",
			prefix + "down",
			prefix + "run --service-ports --rm dev make test",
			prefix + "logs dev",
		}
		if !assert.Equal(t, want, r.args()) {
			return
		}
		if !assert.Equal(t, []string{"COMPOSE_IGNORE_ORPHANS=true"}, r.cmds[0].Env) {
			return
		}
	})

	t.Run("will report running services", func(t *testing.T) {
		r := &recorder{
			outputs: map[string]string{
				prefix + "ps --services --filter status=running dev vnc": "dev\n",
			},
		}
		d := NewDocker(testOptions(r, true)...)

		running, err := d.Running(ctx, p, []string{"dev", "vnc"})
		if !assert.Nil(t, err) {
			return
		}
		if !assert.Equal(t, []string{"dev"}, running) {
			return
		}
	})

	t.Run("will attach with the shell of the service", func(t *testing.T) {
		r := &recorder{
			outputs: map[string]string{
				prefix + "exec -T dev env": "PATH=/usr/bin\nUSERSHELLPATH=/bin/bash\nUSERSHELLPROFILE=/home/demo/.bashrc\n",
			},
		}
		d := NewDocker(testOptions(r, true)...)

		err := d.Shell(ctx, p, "dev")
		if !assert.Nil(t, err) {
			return
		}
		if !assert.Equal(t, prefix+"exec dev /bin/bash --rcfile /home/demo/.bashrc", r.args()[1]) {
			return
		}
	})

	t.Run("will read the shell from an environment with exported functions", func(t *testing.T) {
		env := "BASH_FUNC_module%%=() {  eval `/usr/bin/modulecmd bash $*`\n}\n" +
			"USERSHELLPATH=/bin/bash\n" +
			"LS_COLORS=rs=0:di=01;34\n"
		r := &recorder{
			outputs: map[string]string{
				prefix + "exec -T dev env": env,
			},
		}
		d := NewDocker(testOptions(r, true)...)

		err := d.Shell(ctx, p, "dev")
		if !assert.Nil(t, err) {
			return
		}
		if !assert.Equal(t, prefix+"exec dev /bin/bash", r.args()[1]) {
			return
		}
	})

	t.Run("will not allocate a tty without a terminal", func(t *testing.T) {
		r := &recorder{
			outputs: map[string]string{
				prefix + "exec -T dev env": "USERSHELLPATH=/usr/bin/env zsh\n",
			},
		}
		d := NewDocker(testOptions(r, false)...)

		err := d.Shell(ctx, p, "dev")
		if !assert.Nil(t, err) {
			return
		}
		if !assert.Equal(t, prefix+"exec -T dev /usr/bin/env zsh", r.args()[1]) {
			return
		}
	})

	t.Run("will return an error", func(t *testing.T) {
		t.Run("if the service defines no shell", func(t *testing.T) {
			r := &recorder{
				outputs: map[string]string{
					prefix + "exec -T dev env": "PATH=/usr/bin\n",
				},
			}
			d := NewDocker(testOptions(r, true)...)

			err := d.Shell(ctx, p, "dev")

			var serr *ShellNotFoundError
			if !assert.ErrorAs(t, err, &serr) {
				return
			}
			if !assert.Equal(t, "dev", serr.Service) {
				return
			}
		})

		t.Run("if the service is not running", func(t *testing.T) {
			r := &recorder{
				errs: map[string]error{
					prefix + "exec -T dev env": &CommandError{ExitCode: 1, Stderr: "service \"dev\" is not running"},
				},
			}
			d := NewDocker(testOptions(r, true)...)

			err := d.Shell(ctx, p, "dev")

			var nerr *NotRunningError
			if !assert.ErrorAs(t, err, &nerr) {
				return
			}
			var cerr *CommandError
			if !assert.ErrorAs(t, err, &cerr) {
				return
			}
		})
	})
}

func TestSingularity(t *testing.T) {
	ctx := context.Background()
	p := Project{
		Name:         "demo",
		File:         ".atk-compose.yml",
		ServicesPath: key.Of("instances"),
	}
	n, err := document.Parse([]byte(`instances: {dev: {working_dir: /home/demo}}`), document.YAML)
	if !assert.Nil(t, err) {
		return
	}
	p.Document = n
	prefix := "singularity-compose -p demo -f .atk-compose.yml "

	t.Run("will bring instances up without the host resolv.conf", func(t *testing.T) {
		r := &recorder{}
		s := NewSingularity(testOptions(r, true)...)

		err := s.Up(ctx, p, []string{"dev"})
		if !assert.Nil(t, err) {
			return
		}
		err = s.Up(ctx, p, []string{"dev"}, "--resolv")
		if !assert.Nil(t, err) {
			return
		}

		want := []string{
			prefix + "up --no-resolv dev",
			prefix + "up dev",
		}
		if !assert.Equal(t, want, r.args()) {
			return
		}
	})

	t.Run("will run commands in the working directory of the instance", func(t *testing.T) {
		r := &recorder{}
		s := NewSingularity(testOptions(r, true)...)

		err := s.Run(ctx, p, "dev", "make", "test")
		if !assert.Nil(t, err) {
			return
		}

		want := []string{
			prefix + "ps dev",
			prefix + "up --no-resolv dev",
			"singularity exec --pwd=/home/demo instance://dev make test",
		}
		if !assert.Equal(t, want, r.args()) {
			return
		}
	})

	t.Run("will attach with the shell of the instance", func(t *testing.T) {
		r := &recorder{
			outputs: map[string]string{
				"singularity exec instance://dev env": "USERSHELLPATH=/bin/bash\n",
			},
		}
		s := NewSingularity(testOptions(r, true)...)

		err := s.Shell(ctx, p, "dev")
		if !assert.Nil(t, err) {
			return
		}
		if !assert.Equal(t, "singularity exec --pwd=/home/demo instance://dev /bin/bash", r.args()[1]) {
			return
		}
	})

	t.Run("will report running instances", func(t *testing.T) {
		r := &recorder{
			outputs: map[string]string{
				prefix + "ps dev vnc": "INSTANCES  NAME PID     IP\n1  dev	1234	10.0.0.2\n",
			},
		}
		s := NewSingularity(testOptions(r, true)...)

		running, err := s.Running(ctx, p, []string{"dev", "vnc"})
		if !assert.Nil(t, err) {
			return
		}
		if !assert.Equal(t, []string{"dev"}, running) {
			return
		}
	})
}

func TestSingularity_Adapters(t *testing.T) {
	t.Run("will rewrite services into instances", func(t *testing.T) {
		s := NewSingularity()

		res, err := compose.New([]byte(`
project: demo
services:
  dev:
    ports: ["8080:8080"]
    environment:
      - DISPLAY=:1
  vnc:
    network: {enable: true}
    start: {options: [no-home]}
    environment: {PORT: 5900}
    volumes: [/tmp:/tmp]
default_services: [all]
`),
			compose.Identity(host.Identity{Username: "alice", UID: 1000, GID: 1000}),
			compose.ProjectRoot("/work/demo"),
			compose.TranslationRules(s.TranslationRules()...),
			compose.Adapters(s.Adapters()...),
		).Generate(context.Background())
		if !assert.Nil(t, err) {
			return
		}

		doc := res.Document()
		if !assert.Equal(t, key.Of("instances"), res.ServicesPath()) {
			return
		}

		dev, err := doc.Get(key.Of("instances", "dev"))
		if !assert.Nil(t, err) {
			return
		}
		if !assert.False(t, dev.Contains(key.Of("ports"))) {
			return
		}
		want, err := document.Parse([]byte(`{options: [no-home]}`), document.YAML)
		if !assert.Nil(t, err) {
			return
		}
		start, _ := dev.Lookup("start")
		if !assert.True(t, document.Equal(want, start)) {
			return
		}
		network, err := dev.Get(key.Of("network", "enable"))
		if !assert.Nil(t, err) {
			return
		}
		if !assert.Equal(t, false, network.Scalar()) {
			return
		}

		build, err := dev.Get(key.Of("build"))
		if !assert.Nil(t, err) {
			return
		}
		if !assert.False(t, build.Contains(key.Of("dockerfile"))) {
			return
		}
		if !assert.False(t, build.Contains(key.Of("args"))) {
			return
		}
		recipe, _ := build.Lookup("recipe")
		if !assert.Equal(t, "Dockerfile", recipe.Scalar()) {
			return
		}

		vncStart, err := doc.Get(key.Of("instances", "vnc", "start", "options"))
		if !assert.Nil(t, err) {
			return
		}
		if !assert.Equal(t, 1, vncStart.Len()) {
			return
		}
		vncVolumes, err := doc.Get(key.Of("instances", "vnc", "volumes"))
		if !assert.Nil(t, err) {
			return
		}
		if !assert.Equal(t, []any{"/tmp:/tmp", "./.atk-singularity-vnc.env:/.singularity.d/env/atk.sh"}, vncVolumes.Value()) {
			return
		}

		attachments := res.Attachments()
		if !assert.Len(t, attachments, 2) {
			return
		}
		if !assert.Equal(t, ".atk-singularity-dev.env", attachments[0].Name) {
			return
		}
		if !assert.True(t, bytes.Contains(attachments[0].Data, []byte(`export DISPLAY=":1"`))) {
			return
		}
		if !assert.True(t, bytes.Contains(attachments[0].Data, []byte(`export USERSHELLPATH="/bin/bash"`))) {
			return
		}
		if !assert.Equal(t, "export PORT=5900\n", string(attachments[1].Data)) {
			return
		}
	})
}
