// Copyright (c) 2026 Z5Labs and Contributors
//
// This software is released under the MIT License.
// https://opensource.org/licenses/MIT

// Package usercount tracks how many atk sessions share a generated compose
// document so the last one out can clean it up.
package usercount

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/z5labs/atk/internal/try"

	"github.com/gofrs/flock"
	"github.com/spf13/afero"
)

// Filename is the name of the counter file, relative to the directory of
// the config file.
const Filename = ".atk.user_count"

// Locker guards the counter file across processes.
type Locker interface {
	TryLockContext(ctx context.Context, retryDelay time.Duration) (bool, error)
	Unlock() error
}

// CorruptError occurs when the counter file does not hold a number.
type CorruptError struct {
	Path  string
	Cause error
}

// Error implements the error interface.
func (e CorruptError) Error() string {
	return fmt.Sprintf("corrupt user count file %s: %s", e.Path, e.Cause)
}

// Unwrap implements the implicit interface used by errors.Is and errors.As.
func (e CorruptError) Unwrap() error {
	return e.Cause
}

// LockError occurs when the counter file could not be locked.
type LockError struct {
	Path  string
	Cause error
}

// Error implements the error interface.
func (e LockError) Error() string {
	return fmt.Sprintf("failed to lock %s: %s", e.Path, e.Cause)
}

// Unwrap implements the implicit interface used by errors.Is and errors.As.
func (e LockError) Unwrap() error {
	return e.Cause
}

// Option configures a [Counter].
type Option func(*Counter)

// WithLocker replaces the advisory file lock guarding the counter.
func WithLocker(l Locker) Option {
	return func(c *Counter) {
		c.lock = l
	}
}

// Counter is a session count persisted in a file.
type Counter struct {
	fs       afero.Fs
	path     string
	lockPath string
	lock     Locker
}

// New returns the Counter kept in dir. Unless replaced with [WithLocker],
// updates are guarded by an advisory lock on a sibling ".lock" file.
func New(fsys afero.Fs, dir string, opts ...Option) *Counter {
	path := filepath.Join(dir, Filename)
	c := &Counter{
		fs:       fsys,
		path:     path,
		lockPath: path + ".lock",
	}
	c.lock = flock.New(c.lockPath)
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// Path returns the path of the counter file.
func (c *Counter) Path() string {
	return c.path
}

const retryDelay = 50 * time.Millisecond

// Add adds delta to the count and returns the new count, which never
// drops below zero.
func (c *Counter) Add(ctx context.Context, delta int) (n int, err error) {
	locked, err := c.lock.TryLockContext(ctx, retryDelay)
	if err != nil {
		return 0, LockError{Path: c.path, Cause: err}
	}
	if !locked {
		return 0, LockError{Path: c.path, Cause: errors.New("lock is held elsewhere")}
	}
	defer try.Do(&err, c.lock.Unlock)

	n, err = c.read()
	if err != nil {
		return 0, err
	}
	n = max(n+delta, 0)

	err = afero.WriteFile(c.fs, c.path, []byte(strconv.Itoa(n)), 0o644)
	if err != nil {
		return 0, err
	}
	return n, nil
}

// Count returns the current count without modifying it.
func (c *Counter) Count() (int, error) {
	return c.read()
}

func (c *Counter) read() (int, error) {
	b, err := afero.ReadFile(c.fs, c.path)
	if errors.Is(err, fs.ErrNotExist) {
		return 0, nil
	}
	if err != nil {
		return 0, err
	}

	s := strings.TrimSpace(string(b))
	if s == "" {
		return 0, nil
	}
	n, err := strconv.Atoi(s)
	if err != nil {
		return 0, CorruptError{Path: c.path, Cause: err}
	}
	return n, nil
}

// Cleanup removes the counter file and its lock file along with files,
// typically the generated compose document and its attachments. Missing
// files are ignored.
func (c *Counter) Cleanup(files ...string) error {
	var errs []error
	for _, path := range append(files, c.path, c.lockPath) {
		err := c.fs.Remove(path)
		if err != nil && !errors.Is(err, fs.ErrNotExist) {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}
