// Copyright (c) 2026 Z5Labs and Contributors
//
// This software is released under the MIT License.
// https://opensource.org/licenses/MIT

package cli

import (
	"context"
	"io"
	"log/slog"
	"strings"

	"github.com/z5labs/atk/internal/tracing"

	charmlog "github.com/charmbracelet/log"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"
	"go.opentelemetry.io/otel/trace"
)

// Settings are shared by every command. Each is set by a flag of the same
// name or an ATK_ prefixed environment variable, e.g. ATK_LOG_JSON.
type Settings struct {
	Verbose          int    `mapstructure:"verbose"`
	LogJSON          bool   `mapstructure:"log-json"`
	TraceFile        string `mapstructure:"trace-file"`
	DryRun           bool   `mapstructure:"dry-run"`
	ContainerRuntime string `mapstructure:"container-runtime"`

	// File is also read from ATK_FILENAME.
	File           string   `mapstructure:"file"`
	Services       []string `mapstructure:"services"`
	OverwriteLists bool     `mapstructure:"overwrite-lists"`
}

// Init implements the [tracing.Initializer] interface.
func (s Settings) Init(ctx context.Context) (trace.TracerProvider, error) {
	if s.TraceFile == "" {
		return tracing.Noop.Init(ctx)
	}
	return tracing.File(s.TraceFile).Init(ctx)
}

func newViper(cmd *cobra.Command) (*viper.Viper, error) {
	v := viper.New()
	v.SetEnvPrefix("atk")
	v.SetEnvKeyReplacer(strings.NewReplacer("-", "_"))
	v.AutomaticEnv()

	err := v.BindEnv("file", "ATK_FILENAME", "ATK_FILE")
	if err != nil {
		return nil, err
	}
	err = v.BindPFlags(cmd.Flags())
	if err != nil {
		return nil, err
	}
	return v, nil
}

func newLogger(w io.Writer, s Settings) *slog.Logger {
	level := charmlog.InfoLevel
	if s.Verbose > 0 {
		level = charmlog.DebugLevel
	}

	l := charmlog.NewWithOptions(w, charmlog.Options{
		ReportTimestamp: true,
		ReportCaller:    s.Verbose > 1,
		TimeFormat:      "15:04:05",
		Level:           level,
		Prefix:          "atk",
	})
	if s.LogJSON {
		l.SetFormatter(charmlog.JSONFormatter)
	}
	return slog.New(l)
}
