// Copyright (c) 2026 Z5Labs and Contributors
//
// This software is released under the MIT License.
// https://opensource.org/licenses/MIT

package cli

import (
	"context"

	"github.com/z5labs/atk"
	"github.com/z5labs/atk/app"
	"github.com/z5labs/atk/appbuilder"
	"github.com/z5labs/atk/compose"
	"github.com/z5labs/atk/document"

	"github.com/spf13/cobra"
)

type configSettings struct {
	Settings `mapstructure:",squash"`

	Format string `mapstructure:"format"`
}

func configCommand(o *options) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "config",
		Short: "Print the generated compose document",
		Long: `Print the compose document generated from the config file for the
selected container runtime. Nothing is written and no container runtime
command is run.`,
		Args: onlyAfterDash,
		RunE: func(cmd *cobra.Command, args []string) error {
			v, err := newViper(cmd)
			if err != nil {
				return err
			}
			builder := configBuilder(o, cmd)
			return atk.Run(cmd.Context(), appbuilder.Recover(appbuilder.OTel(builder)), v)
		},
	}

	cmd.Flags().String("format", string(document.YAML), "The format of the document, yaml or json")
	addConfigFlags(cmd)
	return cmd
}

func configBuilder(o *options, cmd *cobra.Command) atk.AppBuilder[configSettings] {
	return atk.AppBuilderFunc[configSettings](func(ctx context.Context, cfg configSettings) (atk.App, error) {
		log := newLogger(cmd.ErrOrStderr(), cfg.Settings)

		format := document.Format(cfg.Format)
		if format != document.YAML && format != document.JSON {
			return nil, document.UnknownFormatError{Format: format}
		}

		backend, err := o.newBackend(cmd, log, cfg.Settings)
		if err != nil {
			return nil, err
		}
		f, err := o.load(ctx, log, cfg.Settings)
		if err != nil {
			return nil, err
		}
		ws, err := o.generate(ctx, cmd, log, cfg.Settings, backend, f, compose.OutputFormat(format))
		if err != nil {
			return nil, err
		}

		return app.Func(func(ctx context.Context) error {
			_, err := cmd.OutOrStdout().Write(ws.result.Bytes())
			return err
		}), nil
	})
}
