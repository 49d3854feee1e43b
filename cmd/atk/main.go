// Copyright (c) 2026 Z5Labs and Contributors
//
// This software is released under the MIT License.
// https://opensource.org/licenses/MIT

package main

import (
	"context"
	"os"

	"github.com/z5labs/atk/internal/cli"
)

var version = "dev"

func main() {
	err := cli.New(cli.WithVersion(version)).ExecuteContext(context.Background())
	if err != nil {
		os.Exit(1)
	}
}
