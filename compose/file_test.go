// Copyright (c) 2026 Z5Labs and Contributors
//
// This software is released under the MIT License.
// https://opensource.org/licenses/MIT

package compose

import (
	"context"
	"errors"
	"path/filepath"
	"testing"

	"github.com/spf13/afero"
	"github.com/stretchr/testify/assert"
)

func TestLocate(t *testing.T) {
	t.Run("will find the config file in a parent directory", func(t *testing.T) {
		fs := afero.NewMemMapFs()
		err := afero.WriteFile(fs, "/work/demo/atk.yml", []byte("project: demo"), 0o644)
		if !assert.Nil(t, err) {
			return
		}
		err = fs.MkdirAll("/work/demo/src/pkg", 0o755)
		if !assert.Nil(t, err) {
			return
		}

		path, err := Locate(fs, "/work/demo/src/pkg", DefaultFilename)
		if !assert.Nil(t, err) {
			return
		}
		if !assert.Equal(t, filepath.FromSlash("/work/demo/atk.yml"), path) {
			return
		}
	})

	t.Run("will return an error", func(t *testing.T) {
		t.Run("if no directory holds the config file", func(t *testing.T) {
			fs := afero.NewMemMapFs()
			err := fs.MkdirAll("/work/demo", 0o755)
			if !assert.Nil(t, err) {
				return
			}

			_, err = Locate(fs, "/work/demo", DefaultFilename)

			var nerr ConfigNotFoundError
			if !assert.ErrorAs(t, err, &nerr) {
				return
			}
			if !assert.Equal(t, DefaultFilename, nerr.Filename) {
				return
			}
		})
	})
}

func TestOutputPath(t *testing.T) {
	path := OutputPath(filepath.FromSlash("/work/demo/atk.yml"))
	if !assert.Equal(t, filepath.FromSlash("/work/demo/.atk-compose.yml"), path) {
		return
	}
}

type failingRenameFs struct {
	afero.Fs
	target string
	err    error
}

func (fs failingRenameFs) Rename(oldname, newname string) error {
	if newname == fs.target {
		return fs.err
	}
	return fs.Fs.Rename(oldname, newname)
}

func TestWriteFile(t *testing.T) {
	t.Run("will return an error", func(t *testing.T) {
		t.Run("and remove written attachments if the document cannot be written", func(t *testing.T) {
			res, err := generate(t, `project: demo`, Adapters(&recordingAdapter{}))
			if !assert.Nil(t, err) {
				return
			}

			renameErr := errors.New("disk full")
			mem := afero.NewMemMapFs()
			err = mem.MkdirAll("/work", 0o755)
			if !assert.Nil(t, err) {
				return
			}
			fs := failingRenameFs{Fs: mem, target: "/work/.atk-compose.yml", err: renameErr}

			err = WriteFile(fs, "/work/.atk-compose.yml", res)
			if !assert.ErrorIs(t, err, renameErr) {
				return
			}

			infos, err := afero.ReadDir(mem, "/work")
			if !assert.Nil(t, err) {
				return
			}
			if !assert.Empty(t, infos) {
				return
			}
		})

		t.Run("if the result is nil", func(t *testing.T) {
			err := WriteFile(afero.NewMemMapFs(), "/work/.atk-compose.yml", nil)

			var nerr NotFinalError
			if !assert.ErrorAs(t, err, &nerr) {
				return
			}
		})

		t.Run("if the result was not finalized", func(t *testing.T) {
			fs := afero.NewMemMapFs()
			err := WriteFile(fs, "/work/.atk-compose.yml", &Result{})

			var nerr NotFinalError
			if !assert.ErrorAs(t, err, &nerr) {
				return
			}
			exists, err := afero.Exists(fs, "/work/.atk-compose.yml")
			if !assert.Nil(t, err) {
				return
			}
			if !assert.False(t, exists) {
				return
			}
		})
	})

	t.Run("will write the document and its attachments", func(t *testing.T) {
		res, err := generate(t, `project: demo`, Adapters(&recordingAdapter{}))
		if !assert.Nil(t, err) {
			return
		}

		fs := afero.NewMemMapFs()
		err = fs.MkdirAll("/work", 0o755)
		if !assert.Nil(t, err) {
			return
		}
		err = WriteFile(fs, "/work/.atk-compose.yml", res)
		if !assert.Nil(t, err) {
			return
		}

		b, err := afero.ReadFile(fs, "/work/.atk-compose.yml")
		if !assert.Nil(t, err) {
			return
		}
		if !assert.Equal(t, res.Bytes(), b) {
			return
		}
		env, err := afero.ReadFile(fs, "/work/dev.env")
		if !assert.Nil(t, err) {
			return
		}
		if !assert.Equal(t, "export A=1\n", string(env)) {
			return
		}

		infos, err := afero.ReadDir(fs, "/work")
		if !assert.Nil(t, err) {
			return
		}
		if !assert.Len(t, infos, 2) {
			return
		}
	})

	t.Run("will replace an existing document", func(t *testing.T) {
		fs := afero.NewMemMapFs()
		err := afero.WriteFile(fs, "/work/.atk-compose.yml", []byte("old"), 0o644)
		if !assert.Nil(t, err) {
			return
		}

		res, err := New([]byte(`project: demo`), Identity(testIdentity)).Generate(context.Background())
		if !assert.Nil(t, err) {
			return
		}
		err = WriteFile(fs, "/work/.atk-compose.yml", res)
		if !assert.Nil(t, err) {
			return
		}

		b, err := afero.ReadFile(fs, "/work/.atk-compose.yml")
		if !assert.Nil(t, err) {
			return
		}
		if !assert.Equal(t, res.Bytes(), b) {
			return
		}
	})
}
