// Copyright (c) 2026 Z5Labs and Contributors
//
// This software is released under the MIT License.
// https://opensource.org/licenses/MIT

package runtime

import (
	"errors"
	"fmt"
	"strings"

	"github.com/google/shlex"
	"github.com/joho/godotenv"
)

// Variables a service must define to be attached to.
const (
	ShellPathVar    = "USERSHELLPATH"
	ShellProfileVar = "USERSHELLPROFILE"
)

// ShellNotFoundError occurs when a service does not define USERSHELLPATH.
type ShellNotFoundError struct {
	Service string
}

// Error implements the error interface.
func (e *ShellNotFoundError) Error() string {
	return fmt.Sprintf("service %s must define the %s environment variable to be attached to", e.Service, ShellPathVar)
}

// NotRunningError occurs when attaching to a service which is not running.
type NotRunningError struct {
	Service string
	Cause   error
}

// Error implements the error interface.
func (e *NotRunningError) Error() string {
	return fmt.Sprintf("service %s is not running, bring it up first: %s", e.Service, e.Cause)
}

// Unwrap implements the implicit interface used by errors.Is and errors.As.
func (e *NotRunningError) Unwrap() error {
	return e.Cause
}

// shellCommand builds the shell invocation for service from the output of
// running env inside it. Only the shell variables are read since env also
// prints values, such as exported bash functions, which are not dotenv.
func shellCommand(service string, env []byte) ([]string, error) {
	var lines []string
	for _, line := range strings.Split(string(env), "\n") {
		if strings.HasPrefix(line, ShellPathVar+"=") || strings.HasPrefix(line, ShellProfileVar+"=") {
			lines = append(lines, line)
		}
	}
	vars, err := godotenv.Unmarshal(strings.Join(lines, "\n"))
	if err != nil {
		return nil, fmt.Errorf("failed to read environment of service %s: %w", service, err)
	}

	path := strings.TrimSpace(vars[ShellPathVar])
	if path == "" {
		return nil, &ShellNotFoundError{Service: service}
	}
	shell, err := shlex.Split(path)
	if err != nil {
		return nil, fmt.Errorf("failed to split %s of service %s: %w", ShellPathVar, service, err)
	}
	if profile := strings.TrimSpace(vars[ShellProfileVar]); profile != "" {
		shell = append(shell, "--rcfile", profile)
	}
	return shell, nil
}

// notRunning wraps err in a [NotRunningError] if it reports that service
// has no running container.
func notRunning(service string, err error) error {
	var cerr *CommandError
	if !errors.As(err, &cerr) {
		return err
	}
	for _, msg := range []string{"is not running", "No such container", "no such instance", "not found"} {
		if strings.Contains(cerr.Stderr, msg) {
			return &NotRunningError{Service: service, Cause: err}
		}
	}
	return err
}
