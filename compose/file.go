// Copyright (c) 2026 Z5Labs and Contributors
//
// This software is released under the MIT License.
// https://opensource.org/licenses/MIT

package compose

import (
	"errors"
	"fmt"
	"io/fs"
	"path/filepath"

	"github.com/z5labs/atk/internal/try"

	"github.com/spf13/afero"
)

// Well known file names, all relative to the directory of the config file.
const (
	DefaultFilename = "atk.yml"
	OutputFilename  = ".atk-compose.yml"
)

// NotFinalError occurs when writing a [Result] which did not reach the
// Final state.
type NotFinalError struct{}

// Error implements the error interface.
func (NotFinalError) Error() string {
	return "config generation has not been finalized"
}

// ConfigNotFoundError occurs when [Locate] finds no config file.
type ConfigNotFoundError struct {
	Dir      string
	Filename string
}

// Error implements the error interface.
func (e ConfigNotFoundError) Error() string {
	return fmt.Sprintf("no %s found in %s or any of its parent directories", e.Filename, e.Dir)
}

// Locate searches dir and then each of its parents for filename and returns
// the first path found.
func Locate(fsys afero.Fs, dir, filename string) (string, error) {
	dir = filepath.Clean(dir)
	for {
		path := filepath.Join(dir, filename)
		info, err := fsys.Stat(path)
		if err == nil && !info.IsDir() {
			return path, nil
		}
		if err != nil && !errors.Is(err, fs.ErrNotExist) {
			return "", err
		}

		parent := filepath.Dir(dir)
		if parent == dir {
			return "", ConfigNotFoundError{Dir: dir, Filename: filename}
		}
		dir = parent
	}
}

// OutputPath returns where the generated document for the config file at
// configPath is written.
func OutputPath(configPath string) string {
	return filepath.Join(filepath.Dir(configPath), OutputFilename)
}

// WriteFile writes the serialized document of res to path and every
// attachment next to it. Each file is written to a temporary file first
// and then renamed so readers never observe a partial file.
func WriteFile(fsys afero.Fs, path string, res *Result) error {
	if res == nil || !res.final {
		return NotFinalError{}
	}

	dir := filepath.Dir(path)
	written := make([]string, 0, len(res.attachments))
	err := func() error {
		for _, a := range res.attachments {
			name := filepath.Join(dir, a.Name)
			err := writeAtomic(fsys, name, a.Data)
			if err != nil {
				return err
			}
			written = append(written, name)
		}
		return writeAtomic(fsys, path, res.bytes)
	}()
	if err == nil {
		return nil
	}

	// No attachment outlives a failed document write.
	errs := []error{err}
	for _, name := range written {
		rerr := fsys.Remove(name)
		if rerr != nil && !errors.Is(rerr, fs.ErrNotExist) {
			errs = append(errs, rerr)
		}
	}
	return errors.Join(errs...)
}

func writeAtomic(fsys afero.Fs, path string, b []byte) (err error) {
	f, err := afero.TempFile(fsys, filepath.Dir(path), "."+filepath.Base(path)+".*")
	if err != nil {
		return err
	}
	tmp := f.Name()
	defer func() {
		if err != nil {
			fsys.Remove(tmp)
		}
	}()

	err = func() (err error) {
		defer try.Close(&err, f)
		_, err = f.Write(b)
		return err
	}()
	if err != nil {
		return err
	}
	return fsys.Rename(tmp, path)
}
