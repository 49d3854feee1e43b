// Copyright (c) 2026 Z5Labs and Contributors
//
// This software is released under the MIT License.
// https://opensource.org/licenses/MIT

package cli

import (
	"bytes"
	"context"
	"io"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/z5labs/atk/compose"
	"github.com/z5labs/atk/document"
	"github.com/z5labs/atk/host"
	"github.com/z5labs/atk/key"
	"github.com/z5labs/atk/runtime"
	"github.com/z5labs/atk/usercount"

	"github.com/spf13/afero"
	"github.com/stretchr/testify/assert"
)

const (
	configPath  = "/work/demo/atk.yml"
	outputPath  = "/work/demo/.atk-compose.yml"
	counterPath = "/work/demo/.atk.user_count"
	prefix      = "docker compose -f " + outputPath + " -p demo "
)

var testIdentity = host.Identity{
	Username: "alice",
	UID:      1000,
	GID:      1000,
}

// recorder is an Executor which records every command and answers with
// canned stdout or errors keyed by the joined command arguments.
type recorder struct {
	mu      sync.Mutex
	lines   []string
	outputs map[string]string
	errs    map[string]error
}

func (r *recorder) Execute(ctx context.Context, cmd runtime.Command) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	line := strings.Join(cmd.Args, " ")
	r.lines = append(r.lines, line)
	if out, ok := r.outputs[line]; ok && cmd.Stdout != nil {
		io.WriteString(cmd.Stdout, out)
	}
	return r.errs[line]
}

type nopLocker struct{}

func (nopLocker) TryLockContext(ctx context.Context, retryDelay time.Duration) (bool, error) {
	return true, nil
}

func (nopLocker) Unlock() error {
	return nil
}

type harness struct {
	fs     afero.Fs
	rec    *recorder
	stdout bytes.Buffer
	stderr bytes.Buffer
}

func newHarness(t *testing.T, config string) *harness {
	t.Helper()

	// Keep the environment of the host out of the tests.
	for _, env := range []string{"ATK_CONTAINER_RUNTIME", "ATK_FILENAME", "ATK_FILE", "ATK_LOG_JSON", "ATK_DRY_RUN", "ATK_SERVICES"} {
		t.Setenv(env, "")
	}

	h := &harness{
		fs: afero.NewMemMapFs(),
		rec: &recorder{
			outputs: map[string]string{
				prefix + "exec -T dev env": "USERSHELLPATH=/bin/bash\nUSERSHELLPROFILE=/home/demo/.bashrc\n",
			},
			errs: map[string]error{},
		},
	}
	err := h.fs.MkdirAll("/work/demo/src", 0o755)
	if err != nil {
		t.Fatalf("failed to create working dir: %s", err)
	}
	err = afero.WriteFile(h.fs, configPath, []byte(config), 0o644)
	if err != nil {
		t.Fatalf("failed to write config file: %s", err)
	}
	return h
}

func (h *harness) run(args ...string) error {
	cmd := New(
		WithFs(h.fs),
		WithArgs(args...),
		WithWorkingDir(func() (string, error) {
			return "/work/demo/src", nil
		}),
		WithIdentity(func() (host.Identity, error) {
			return testIdentity, nil
		}),
		WithExecutor(h.rec),
		WithTerminal(func() bool { return false }),
		WithUserCountOptions(usercount.WithLocker(nopLocker{})),
	)
	cmd.SetIn(strings.NewReader(""))
	cmd.SetOut(&h.stdout)
	cmd.SetErr(&h.stderr)
	return cmd.ExecuteContext(context.Background())
}

func (h *harness) exists(t *testing.T, path string) bool {
	t.Helper()
	ok, err := afero.Exists(h.fs, path)
	if err != nil {
		t.Fatalf("failed to stat %s: %s", path, err)
	}
	return ok
}

func (h *harness) document(t *testing.T, format document.Format) *document.Node {
	t.Helper()
	doc, err := document.Parse(h.stdout.Bytes(), format)
	if err != nil {
		t.Fatalf("failed to parse output: %s\n%s", err, h.stdout.String())
	}
	return doc
}

func scalar(t *testing.T, doc *document.Node, path ...string) any {
	t.Helper()
	v, err := doc.Get(key.Of(path...))
	if err != nil {
		t.Fatalf("failed to get %v: %s", path, err)
	}
	return v.Scalar()
}

func TestConfigCommand(t *testing.T) {
	t.Run("will print the generated document", func(t *testing.T) {
		h := newHarness(t, "project: demo\n")

		err := h.run("config")
		if !assert.Nil(t, err) {
			return
		}

		doc := h.document(t, document.YAML)
		if !assert.Equal(t, "demo:dev", scalar(t, doc, "services", "dev", "image")) {
			return
		}
		if !assert.Equal(t, "/work/demo", scalar(t, doc, "services", "dev", "build", "context")) {
			return
		}
		if !assert.Equal(t, "/home/demo/demo", scalar(t, doc, "services", "dev", "working_dir")) {
			return
		}
		if !assert.False(t, h.exists(t, outputPath)) {
			return
		}
		if !assert.Empty(t, h.rec.lines) {
			return
		}
	})

	t.Run("will print JSON", func(t *testing.T) {
		h := newHarness(t, "project: demo\n")

		err := h.run("config", "--format", "json")
		if !assert.Nil(t, err) {
			return
		}

		doc := h.document(t, document.JSON)
		if !assert.Equal(t, "demo-dev", scalar(t, doc, "services", "dev", "container_name")) {
			return
		}
	})

	t.Run("will apply custom arguments", func(t *testing.T) {
		h := newHarness(t, `
project: demo
custom_cli_arguments:
  --gpus:
    argparse: {action: store_true}
    dev:
      runtime: nvidia
`)

		err := h.run("config", "--gpus")
		if !assert.Nil(t, err) {
			return
		}

		doc := h.document(t, document.YAML)
		if !assert.Equal(t, "nvidia", scalar(t, doc, "services", "dev", "runtime")) {
			return
		}
	})

	t.Run("will read the container runtime from the environment", func(t *testing.T) {
		h := newHarness(t, "project: demo\n")
		t.Setenv("ATK_CONTAINER_RUNTIME", runtime.SingularityName)

		err := h.run("config")
		if !assert.Nil(t, err) {
			return
		}

		doc := h.document(t, document.YAML)
		if !assert.Equal(t, "demo:dev", scalar(t, doc, "instances", "dev", "image")) {
			return
		}
		if !assert.Equal(t, false, scalar(t, doc, "instances", "dev", "network", "enable")) {
			return
		}
	})

	t.Run("will only include the requested services", func(t *testing.T) {
		h := newHarness(t, `
project: demo
services:
  db:
    image: postgres
`)

		err := h.run("config", "-s", "db")
		if !assert.Nil(t, err) {
			return
		}

		doc := h.document(t, document.YAML)
		services, err := doc.Get(key.Of("services"))
		if !assert.Nil(t, err) {
			return
		}
		if !assert.Equal(t, []string{"db"}, services.Keys()) {
			return
		}
	})

	t.Run("will return an error", func(t *testing.T) {
		t.Run("if no config file is found", func(t *testing.T) {
			h := newHarness(t, "project: demo\n")

			err := h.run("config", "-f", "missing.yml")

			var nerr compose.ConfigNotFoundError
			if !assert.ErrorAs(t, err, &nerr) {
				return
			}
			if !assert.Equal(t, "missing.yml", nerr.Filename) {
				return
			}
		})

		t.Run("if the format is unknown", func(t *testing.T) {
			h := newHarness(t, "project: demo\n")

			err := h.run("config", "--format", "toml")

			var ferr document.UnknownFormatError
			if !assert.ErrorAs(t, err, &ferr) {
				return
			}
		})

		t.Run("if the container runtime is unknown", func(t *testing.T) {
			h := newHarness(t, "project: demo\n")

			err := h.run("config", "--container-runtime", "podman")

			var rerr runtime.UnknownBackendError
			if !assert.ErrorAs(t, err, &rerr) {
				return
			}
		})

		t.Run("if the project has capital letters", func(t *testing.T) {
			h := newHarness(t, "project: Demo\n")

			err := h.run("config")

			var terr *compose.TransitionError
			if !assert.ErrorAs(t, err, &terr) {
				return
			}
		})
	})
}

func TestDevCommand(t *testing.T) {
	t.Run("will spin up and attach without any commands", func(t *testing.T) {
		h := newHarness(t, "project: demo\n")

		err := h.run("dev")
		if !assert.Nil(t, err) {
			return
		}

		expected := []string{
			prefix + "ps --services --filter status=running dev",
			prefix + "up -d dev",
			prefix + "exec -T dev env",
			prefix + "exec -T dev /bin/bash --rcfile /home/demo/.bashrc",
		}
		if !assert.Equal(t, expected, h.rec.lines) {
			return
		}
		if !assert.False(t, h.exists(t, outputPath)) {
			return
		}
		if !assert.False(t, h.exists(t, counterPath)) {
			return
		}
	})

	t.Run("will not spin up services which are already running", func(t *testing.T) {
		h := newHarness(t, "project: demo\n")
		h.rec.outputs[prefix+"ps --services --filter status=running dev"] = "dev\n"

		err := h.run("dev", "--up")
		if !assert.Nil(t, err) {
			return
		}
		if !assert.Equal(t, []string{prefix + "ps --services --filter status=running dev"}, h.rec.lines) {
			return
		}
	})

	t.Run("will build before spinning up", func(t *testing.T) {
		h := newHarness(t, "project: demo\n")

		err := h.run("dev", "-b", "-u", "--", "--pull")
		if !assert.Nil(t, err) {
			return
		}

		expected := []string{
			prefix + "ps --services --filter status=running dev",
			prefix + "build --pull dev",
			prefix + "up -d --pull dev",
		}
		if !assert.Equal(t, expected, h.rec.lines) {
			return
		}
	})

	t.Run("will run a command in a single service", func(t *testing.T) {
		h := newHarness(t, "project: demo\n")

		err := h.run("dev", "--run", "--", "make", "test")
		if !assert.Nil(t, err) {
			return
		}
		if !assert.Equal(t, []string{prefix + "run --service-ports --rm dev make test"}, h.rec.lines) {
			return
		}
	})

	t.Run("will keep the generated document", func(t *testing.T) {
		t.Run("if --keep-yml is set", func(t *testing.T) {
			h := newHarness(t, "project: demo\n")

			err := h.run("dev", "--up", "--keep-yml")
			if !assert.Nil(t, err) {
				return
			}
			if !assert.True(t, h.exists(t, outputPath)) {
				return
			}
			if !assert.False(t, h.exists(t, counterPath)) {
				return
			}
		})

		t.Run("if other sessions still use it", func(t *testing.T) {
			h := newHarness(t, "project: demo\n")
			err := afero.WriteFile(h.fs, counterPath, []byte("1"), 0o644)
			if !assert.Nil(t, err) {
				return
			}

			err = h.run("dev", "--up")
			if !assert.Nil(t, err) {
				return
			}
			if !assert.True(t, h.exists(t, outputPath)) {
				return
			}

			b, err := afero.ReadFile(h.fs, counterPath)
			if !assert.Nil(t, err) {
				return
			}
			if !assert.Equal(t, "1", string(b)) {
				return
			}
		})
	})

	t.Run("will clean up on --down even if other sessions exist", func(t *testing.T) {
		h := newHarness(t, "project: demo\n")
		err := afero.WriteFile(h.fs, counterPath, []byte("2"), 0o644)
		if !assert.Nil(t, err) {
			return
		}

		err = h.run("dev", "--down")
		if !assert.Nil(t, err) {
			return
		}
		if !assert.Equal(t, []string{prefix + "down"}, h.rec.lines) {
			return
		}
		if !assert.False(t, h.exists(t, outputPath)) {
			return
		}
		if !assert.False(t, h.exists(t, counterPath)) {
			return
		}
	})

	t.Run("will not touch anything on a dry run", func(t *testing.T) {
		h := newHarness(t, "project: demo\n")

		err := h.run("dev", "--dry-run")
		if !assert.Nil(t, err) {
			return
		}
		if !assert.Empty(t, h.rec.lines) {
			return
		}
		if !assert.False(t, h.exists(t, outputPath)) {
			return
		}
		if !assert.Contains(t, h.stderr.String(), "dry run") {
			return
		}
	})

	t.Run("will clean up if the container runtime fails", func(t *testing.T) {
		h := newHarness(t, "project: demo\n")
		h.rec.errs[prefix+"up -d dev"] = &runtime.CommandError{Args: []string{"docker"}, ExitCode: 1}

		err := h.run("dev", "--up")

		var cerr *runtime.CommandError
		if !assert.ErrorAs(t, err, &cerr) {
			return
		}
		if !assert.False(t, h.exists(t, outputPath)) {
			return
		}
	})

	t.Run("will return a UsageError", func(t *testing.T) {
		testCases := []struct {
			Name   string
			Config string
			Args   []string
		}{
			{
				Name:   "if --run is combined with other commands",
				Config: "project: demo\n",
				Args:   []string{"dev", "--run", "--build"},
			},
			{
				Name:   "if --run is given more than one service",
				Config: "{project: demo, services: {db: {image: postgres}}}",
				Args:   []string{"dev", "--run", "-s", "dev,db"},
			},
			{
				Name:   "if --attach is given several services without dev",
				Config: "{project: demo, services: {db: {image: postgres}, web: {image: nginx}}}",
				Args:   []string{"dev", "--attach", "-s", "db,web"},
			},
			{
				Name:   "if positional arguments are not after --",
				Config: "project: demo\n",
				Args:   []string{"dev", "make"},
			},
		}

		for _, testCase := range testCases {
			t.Run(testCase.Name, func(t *testing.T) {
				h := newHarness(t, testCase.Config)

				err := h.run(testCase.Args...)

				var uerr UsageError
				if !assert.ErrorAs(t, err, &uerr) {
					return
				}
				if !assert.Empty(t, h.rec.lines) {
					return
				}
			})
		}
	})
}

func TestRunCommand(t *testing.T) {
	t.Run("will infer the service", func(t *testing.T) {
		t.Run("if the config file declares exactly one", func(t *testing.T) {
			h := newHarness(t, `
project: demo
services:
  tool:
    image: alpine
`)

			err := h.run("run", "--", "echo", "hi")
			if !assert.Nil(t, err) {
				return
			}
			if !assert.Equal(t, []string{prefix + "run --service-ports --rm tool echo hi"}, h.rec.lines) {
				return
			}
			if !assert.False(t, h.exists(t, outputPath)) {
				return
			}
		})
	})

	t.Run("will run the requested service", func(t *testing.T) {
		h := newHarness(t, `
project: demo
services:
  tool:
    image: alpine
  db:
    image: postgres
`)

		err := h.run("run", "-s", "db")
		if !assert.Nil(t, err) {
			return
		}
		if !assert.Equal(t, []string{prefix + "run --service-ports --rm db"}, h.rec.lines) {
			return
		}
	})

	t.Run("will return a UsageError", func(t *testing.T) {
		t.Run("if more than one service is selected", func(t *testing.T) {
			h := newHarness(t, `
project: demo
default_services: [all]
services:
  tool:
    image: alpine
  db:
    image: postgres
`)

			err := h.run("run")

			var uerr UsageError
			if !assert.ErrorAs(t, err, &uerr) {
				return
			}
		})
	})
}
