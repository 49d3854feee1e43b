// Copyright (c) 2026 Z5Labs and Contributors
//
// This software is released under the MIT License.
// https://opensource.org/licenses/MIT

package cli

import (
	"context"
	"os"
	"syscall"

	"github.com/z5labs/atk"
	"github.com/z5labs/atk/app"
	"github.com/z5labs/atk/appbuilder"
	"github.com/z5labs/atk/compose"
	"github.com/z5labs/atk/internal/slogfield"

	"github.com/spf13/cobra"
)

type runSettings struct {
	Settings `mapstructure:",squash"`

	KeepYML bool `mapstructure:"keep-yml"`
}

func runCommand(o *options) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "run [flags] [-- command]",
		Short: "Run a command in a fresh container of a service",
		Long: `Run a command in a fresh container of a single service which is removed
once the command exits. If the config file defines exactly one service,
--services may be omitted.`,
		Args: onlyAfterDash,
		RunE: func(cmd *cobra.Command, args []string) error {
			v, err := newViper(cmd)
			if err != nil {
				return err
			}
			builder := runBuilder(o, cmd, passthrough(cmd, args))
			return atk.Run(cmd.Context(), appbuilder.Recover(appbuilder.OTel(builder)), v)
		},
	}

	cmd.Flags().Bool("keep-yml", false, "Don't delete the generated compose file")
	addConfigFlags(cmd)
	return cmd
}

func runBuilder(o *options, cmd *cobra.Command, args []string) atk.AppBuilder[runSettings] {
	return atk.AppBuilderFunc[runSettings](func(ctx context.Context, cfg runSettings) (atk.App, error) {
		log := newLogger(cmd.ErrOrStderr(), cfg.Settings)

		if len(cfg.Services) > 1 {
			return nil, UsageError{Command: "run", Reason: "exactly one service is required"}
		}

		backend, err := o.newBackend(cmd, log, cfg.Settings)
		if err != nil {
			return nil, err
		}

		f, err := o.load(ctx, log, cfg.Settings)
		if err != nil {
			return nil, err
		}

		// A config file declaring a single service needs no --services.
		var extra []compose.Option
		if declared := f.declaredServices(); len(cfg.Services) == 0 && len(declared) == 1 {
			log.DebugContext(ctx, "inferred service to run", slogfield.Service(declared[0]))
			extra = append(extra, compose.RequestServices(declared[0]))
		}
		ws, err := o.generate(ctx, cmd, log, cfg.Settings, backend, f, extra...)
		if err != nil {
			return nil, err
		}

		services := ws.result.Services()
		if len(services) != 1 {
			return nil, UsageError{Command: "run", Reason: "exactly one service is required"}
		}
		service := services[0]

		s := o.newSession(log, ws, cfg.DryRun)
		s.keep = cfg.KeepYML

		base := app.Func(func(ctx context.Context) error {
			log.InfoContext(ctx, "running", slogfield.Service(service))
			return backend.Run(ctx, ws.project, service, args...)
		})
		a := app.WithLifecycleHooks(base, app.Lifecycle{
			PreRun:  app.LifecycleHookFunc(s.Open),
			PostRun: app.LifecycleHookFunc(s.Close),
		})
		return app.WithSignalNotifications(a, os.Interrupt, syscall.SIGTERM), nil
	})
}
