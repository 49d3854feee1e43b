// Copyright (c) 2026 Z5Labs and Contributors
//
// This software is released under the MIT License.
// https://opensource.org/licenses/MIT

package appbuilder

import (
	"context"
	"fmt"

	"github.com/z5labs/atk"
)

func ExampleRecover() {
	type MyConfig struct{}

	builder := atk.AppBuilderFunc[MyConfig](func(ctx context.Context, cfg MyConfig) (atk.App, error) {
		panic("hello world")
	})

	_, err := Recover(builder).Build(context.Background(), MyConfig{})
	fmt.Println(err)
	// Output: recovered from panic: hello world
}

func ExampleFromSettings() {
	type MyConfig struct {
		ContainerRuntime string `mapstructure:"container-runtime"`
	}

	builder := atk.AppBuilderFunc[MyConfig](func(ctx context.Context, cfg MyConfig) (atk.App, error) {
		fmt.Println(cfg.ContainerRuntime)
		return nil, nil
	})

	src := settingsMap{"container-runtime": "singularity"}
	_, err := FromSettings(builder).Build(context.Background(), src)
	if err != nil {
		fmt.Println(err)
		return
	}
	// Output: singularity
}
