// Copyright (c) 2026 Z5Labs and Contributors
//
// This software is released under the MIT License.
// https://opensource.org/licenses/MIT

package cli

import (
	"context"
	"log/slog"
	"os"
	"slices"
	"syscall"

	"github.com/z5labs/atk"
	"github.com/z5labs/atk/app"
	"github.com/z5labs/atk/appbuilder"
	"github.com/z5labs/atk/internal/slogfield"
	"github.com/z5labs/atk/runtime"

	"github.com/spf13/cobra"
)

// DevService is the service attached to when several are running.
const DevService = "dev"

type devSettings struct {
	Settings `mapstructure:",squash"`

	Build   bool `mapstructure:"build"`
	Up      bool `mapstructure:"up"`
	Down    bool `mapstructure:"down"`
	Attach  bool `mapstructure:"attach"`
	Run     bool `mapstructure:"run"`
	KeepYML bool `mapstructure:"keep-yml"`
}

func devCommand(o *options) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "dev [flags] [-- runtime args]",
		Short: "Work with the development environment",
		Long: `Build, spin up, attach to and tear down the development environment.

Without any of --build, --up, --down, --attach or --run, dev is the same
as "atk dev --up --attach". Arguments after "--" are passed to the
container runtime.`,
		Args: onlyAfterDash,
		RunE: func(cmd *cobra.Command, args []string) error {
			v, err := newViper(cmd)
			if err != nil {
				return err
			}
			builder := devBuilder(o, cmd, passthrough(cmd, args))
			return atk.Run(cmd.Context(), appbuilder.Recover(appbuilder.OTel(builder)), v)
		},
	}

	fs := cmd.Flags()
	fs.BoolP("build", "b", false, "Build the environment")
	fs.BoolP("up", "u", false, "Spin up the environment")
	fs.BoolP("down", "d", false, "Tear down the environment")
	fs.BoolP("attach", "a", false, "Attach to the environment")
	fs.BoolP("run", "r", false, "Run a command in a single service, may not be combined with other commands")
	fs.Bool("keep-yml", false, "Don't delete the generated compose file")
	addConfigFlags(cmd)
	return cmd
}

func devBuilder(o *options, cmd *cobra.Command, args []string) atk.AppBuilder[devSettings] {
	return atk.AppBuilderFunc[devSettings](func(ctx context.Context, cfg devSettings) (atk.App, error) {
		log := newLogger(cmd.ErrOrStderr(), cfg.Settings)

		if !cfg.Build && !cfg.Up && !cfg.Down && !cfg.Attach && !cfg.Run {
			log.DebugContext(ctx, "no commands given, defaulting to --up --attach")
			cfg.Up = true
			cfg.Attach = true
		}
		if cfg.Run && (cfg.Build || cfg.Up || cfg.Down || cfg.Attach) {
			return nil, UsageError{Command: "dev", Reason: "--run can not be combined with other commands"}
		}

		backend, err := o.newBackend(cmd, log, cfg.Settings)
		if err != nil {
			return nil, err
		}
		f, err := o.load(ctx, log, cfg.Settings)
		if err != nil {
			return nil, err
		}
		ws, err := o.generate(ctx, cmd, log, cfg.Settings, backend, f)
		if err != nil {
			return nil, err
		}

		services := ws.result.Services()
		if cfg.Run && len(services) != 1 {
			return nil, UsageError{Command: "dev", Reason: "--run requires exactly one service"}
		}
		var target string
		if cfg.Attach {
			target, err = attachTarget(services)
			if err != nil {
				return nil, err
			}
		}

		s := o.newSession(log, ws, cfg.DryRun)
		s.keep = cfg.KeepYML
		s.teardown = cfg.Down

		base := &devApp{
			log:      log,
			backend:  backend,
			project:  ws.project,
			services: services,
			target:   target,
			cfg:      cfg,
			args:     args,
		}
		a := app.WithLifecycleHooks(base, app.Lifecycle{
			PreRun:  app.LifecycleHookFunc(s.Open),
			PostRun: app.LifecycleHookFunc(s.Close),
		})
		return app.WithSignalNotifications(a, os.Interrupt, syscall.SIGTERM), nil
	})
}

// attachTarget picks the service to attach to. The dev service wins unless
// exactly one other service was selected.
func attachTarget(services []string) (string, error) {
	if slices.Contains(services, DevService) || len(services) == 0 {
		return DevService, nil
	}
	if len(services) > 1 {
		return "", UsageError{
			Command: "dev",
			Reason:  "--attach requires a single service or the " + DevService + " service",
		}
	}
	return services[0], nil
}

type devApp struct {
	log      *slog.Logger
	backend  runtime.Backend
	project  runtime.Project
	services []string
	target   string
	cfg      devSettings
	args     []string
}

// Run implements the [atk.App] interface.
func (a *devApp) Run(ctx context.Context) error {
	up := a.cfg.Up
	if up && !a.cfg.Down {
		running, err := a.backend.Running(ctx, a.project, a.services)
		if err != nil {
			return err
		}
		if len(running) > 0 && len(running) == len(a.services) {
			a.log.WarnContext(ctx, "services are already running, skipping --up", slogfield.Services(running))
			up = false
		}
	}

	if a.cfg.Down {
		a.log.InfoContext(ctx, "tearing down")
		err := a.backend.Down(ctx, a.project, nil, a.args...)
		if err != nil {
			return err
		}
	}
	if a.cfg.Build {
		a.log.InfoContext(ctx, "building", slogfield.Services(a.services))
		err := a.backend.Build(ctx, a.project, a.services, a.args...)
		if err != nil {
			return err
		}
	}
	if up {
		a.log.InfoContext(ctx, "spinning up", slogfield.Services(a.services))
		err := a.backend.Up(ctx, a.project, a.services, a.args...)
		if err != nil {
			return err
		}
	}
	if a.cfg.Attach && a.cfg.DryRun {
		// The shell is read from the running container.
		a.log.InfoContext(ctx, "dry run, not attaching", slogfield.Service(a.target))
	}
	if a.cfg.Attach && !a.cfg.DryRun {
		a.log.InfoContext(ctx, "attaching", slogfield.Service(a.target))
		err := a.backend.Shell(ctx, a.project, a.target, a.args...)
		if err != nil {
			return err
		}
	}
	if a.cfg.Run {
		a.log.InfoContext(ctx, "running", slogfield.Service(a.services[0]))
		return a.backend.Run(ctx, a.project, a.services[0], a.args...)
	}
	return nil
}

// onlyAfterDash rejects positional arguments which are not separated from
// the flags by "--".
func onlyAfterDash(cmd *cobra.Command, args []string) error {
	dash := cmd.ArgsLenAtDash()
	if dash < 0 {
		dash = len(args)
	}
	if dash > 0 {
		return UsageError{
			Command: cmd.Name(),
			Reason:  "unexpected argument " + args[0] + ", runtime arguments must follow '--'",
		}
	}
	return nil
}
