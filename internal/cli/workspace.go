// Copyright (c) 2026 Z5Labs and Contributors
//
// This software is released under the MIT License.
// https://opensource.org/licenses/MIT

package cli

import (
	"context"
	"log/slog"
	"path/filepath"

	"github.com/z5labs/atk/compose"
	"github.com/z5labs/atk/document"
	"github.com/z5labs/atk/internal/slogfield"
	"github.com/z5labs/atk/runtime"
	"github.com/z5labs/atk/usercount"

	"github.com/spf13/afero"
	"github.com/spf13/cobra"
)

// workspace is a compose document generated from a config file along with
// where it is written.
type workspace struct {
	config  string
	output  string
	result  *compose.Result
	project runtime.Project
}

// files returns the paths of the generated document and its attachments.
func (w *workspace) files() []string {
	files := []string{w.output}
	dir := filepath.Dir(w.output)
	for _, a := range w.result.Attachments() {
		files = append(files, filepath.Join(dir, a.Name))
	}
	return files
}

func (o *options) newBackend(cmd *cobra.Command, log *slog.Logger, s Settings) (runtime.Backend, error) {
	opts := []runtime.Option{
		runtime.WithLogger(log),
		runtime.WithStdio(cmd.InOrStdin(), cmd.OutOrStdout(), cmd.ErrOrStderr()),
	}
	if o.exec != nil {
		opts = append(opts, runtime.WithExecutor(o.exec))
	}
	if s.DryRun {
		opts = append(opts, runtime.WithExecutor(runtime.NewDryRunExecutor(log)))
	}
	if o.terminal != nil {
		opts = append(opts, runtime.WithTerminal(o.terminal))
	}
	return runtime.New(s.ContainerRuntime, opts...)
}

func (o *options) locate(file string) (string, error) {
	if filepath.IsAbs(file) {
		return file, nil
	}
	wd, err := o.getwd()
	if err != nil {
		return "", err
	}
	return compose.Locate(o.fs, wd, file)
}

// configFile is a located config file and its contents.
type configFile struct {
	path string
	data []byte
}

func (o *options) load(ctx context.Context, log *slog.Logger, s Settings) (configFile, error) {
	path, err := o.locate(s.File)
	if err != nil {
		return configFile{}, err
	}
	log.DebugContext(ctx, "found config file", slogfield.Path(path))

	data, err := afero.ReadFile(o.fs, path)
	if err != nil {
		return configFile{}, err
	}
	return configFile{path: path, data: data}, nil
}

// declaredServices returns the names of the services declared by the config
// file itself, ignoring the defaults.
func (f configFile) declaredServices() []string {
	doc, err := document.Parse(f.data, document.FormatOf(f.path))
	if err != nil {
		return nil
	}
	services, ok := doc.Lookup("services")
	if !ok || !services.IsMapping() {
		return nil
	}
	return services.Keys()
}

func (o *options) generate(ctx context.Context, cmd *cobra.Command, log *slog.Logger, s Settings, backend runtime.Backend, f configFile, extra ...compose.Option) (*workspace, error) {
	id, err := o.identity()
	if err != nil {
		return nil, err
	}

	path := f.path
	opts := []compose.Option{
		compose.InputFormat(document.FormatOf(path)),
		compose.ProjectRoot(filepath.Dir(path)),
		compose.Identity(id),
		compose.Logger(log),
		compose.Arguments(o.args, cmd.Flags()),
		compose.TranslationRules(backend.TranslationRules()...),
		compose.Adapters(backend.Adapters()...),
		compose.Overrides(compose.Config{OverwriteLists: s.OverwriteLists}),
	}
	if len(s.Services) > 0 {
		opts = append(opts, compose.RequestServices(s.Services...))
	}

	res, err := compose.New(f.data, append(opts, extra...)...).Generate(ctx)
	if err != nil {
		return nil, err
	}

	output := compose.OutputPath(path)
	return &workspace{
		config:  path,
		output:  output,
		result:  res,
		project: runtime.NewProject(output, res),
	}, nil
}

// session writes the generated document for as long as at least one atk
// process uses it.
type session struct {
	log     *slog.Logger
	fs      afero.Fs
	ws      *workspace
	counter *usercount.Counter
	dryRun  bool

	// keep leaves the generated files in place when the session ends.
	keep bool

	// teardown ends the session for every user.
	teardown bool

	joined bool
}

func (o *options) newSession(log *slog.Logger, ws *workspace, dryRun bool) *session {
	return &session{
		log:     log,
		fs:      o.fs,
		ws:      ws,
		counter: usercount.New(o.fs, filepath.Dir(ws.config), o.userCount...),
		dryRun:  dryRun,
	}
}

// Open writes the generated files and joins the session.
func (s *session) Open(ctx context.Context) error {
	if s.dryRun {
		s.log.InfoContext(ctx, "dry run, not writing compose document", slogfield.Path(s.ws.output))
		return nil
	}

	err := compose.WriteFile(s.fs, s.ws.output, s.ws.result)
	if err != nil {
		return err
	}
	n, err := s.counter.Add(ctx, 1)
	if err != nil {
		return err
	}
	s.joined = true
	s.log.DebugContext(ctx, "joined session", slogfield.Path(s.ws.output), slogfield.Int("users", n))
	return nil
}

// Close leaves the session. The last one out removes the generated files.
func (s *session) Close(ctx context.Context) error {
	if !s.joined {
		return nil
	}
	s.joined = false

	n, err := s.counter.Add(ctx, -1)
	if err != nil {
		return err
	}
	if n > 0 && !s.teardown {
		s.log.DebugContext(ctx, "leaving generated files for remaining users", slogfield.Int("users", n))
		return nil
	}

	var files []string
	if !s.keep {
		files = s.ws.files()
	}
	s.log.DebugContext(ctx, "cleaning up generated files", slogfield.Strings("files", files))
	return s.counter.Cleanup(files...)
}
