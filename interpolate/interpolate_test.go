// Copyright (c) 2026 Z5Labs and Contributors
//
// This software is released under the MIT License.
// https://opensource.org/licenses/MIT

package interpolate

import (
	"testing"

	"github.com/z5labs/atk/document"

	"github.com/stretchr/testify/assert"
)

func TestString(t *testing.T) {
	ns := Namespace{
		"project": "demo",
		"empty":   "",
		"inject":  "@project",
	}

	testCases := []struct {
		Name string
		In   string
		Out  string
	}{
		{Name: "escaped sigil", In: "user@@host", Out: "user@host"},
		{Name: "bare name", In: "@project-dev", Out: "demo-dev"},
		{Name: "braced name", In: "@{project}_dev", Out: "demo_dev"},
		{Name: "unset bare name", In: "@missing/x", Out: "@missing/x"},
		{Name: "unset braced name", In: "@{missing}", Out: "@{missing}"},
		{Name: "colon dash with empty value", In: "@{empty:-9}", Out: "9"},
		{Name: "colon dash with unset value", In: "@{missing:-9}", Out: "9"},
		{Name: "colon dash with value", In: "@{project:-9}", Out: "demo"},
		{Name: "dash with empty value", In: "@{empty-9}", Out: ""},
		{Name: "dash with unset value", In: "@{missing-9}", Out: "9"},
		{Name: "question with empty value", In: "@{empty?unset}", Out: ""},
		{Name: "empty default", In: "a@{missing:-}b", Out: "ab"},
		{Name: "unterminated brace", In: "@{project", Out: "@{project"},
		{Name: "invalid name", In: "@1abc", Out: "@1abc"},
		{Name: "no references", In: "plain text", Out: "plain text"},
		{Name: "substituted text is not rescanned", In: "@inject", Out: "@project"},
		{Name: "sigil escape before name", In: "@@project", Out: "@project"},
	}

	for _, testCase := range testCases {
		t.Run("will substitute "+testCase.Name, func(t *testing.T) {
			out, err := String(testCase.In, ns)
			if !assert.Nil(t, err) {
				return
			}
			if !assert.Equal(t, testCase.Out, out) {
				return
			}
		})
	}

	t.Run("will return an error", func(t *testing.T) {
		t.Run("if a question reference is unset", func(t *testing.T) {
			_, err := String("@{Y?missing}", Namespace{})

			var ierr *Error
			if !assert.ErrorAs(t, err, &ierr) {
				return
			}
			if !assert.Equal(t, "Y", ierr.Name) {
				return
			}
			if !assert.Equal(t, "missing", ierr.Error()) {
				return
			}
		})

		t.Run("if a colon question reference is empty", func(t *testing.T) {
			_, err := String("@{empty:?must not be empty}", ns)

			var ierr *Error
			if !assert.ErrorAs(t, err, &ierr) {
				return
			}
			if !assert.Equal(t, "must not be empty", ierr.Message) {
				return
			}
		})

		t.Run("if the reference has no message", func(t *testing.T) {
			_, err := String("@{missing?}", ns)

			var ierr *Error
			if !assert.ErrorAs(t, err, &ierr) {
				return
			}
			if !assert.Contains(t, ierr.Error(), "missing") {
				return
			}
		})
	})
}

func TestNode(t *testing.T) {
	t.Run("will substitute every string scalar", func(t *testing.T) {
		doc, err := document.Parse([]byte(`a: "@{X:-9}/@{Y?missing}"`), document.YAML)
		if !assert.Nil(t, err) {
			return
		}

		err = Node(doc, Namespace{"X": "", "Y": "z"})
		if !assert.Nil(t, err) {
			return
		}

		want, _ := document.Parse([]byte(`a: 9/z`), document.YAML)
		if !assert.True(t, document.Equal(want, doc)) {
			return
		}
	})

	t.Run("will descend into sequences and leave other scalars alone", func(t *testing.T) {
		doc, err := document.Parse([]byte(`
services:
  "@project":
    environment: ["NAME=@project", 42, true]
`), document.YAML)
		if !assert.Nil(t, err) {
			return
		}

		err = Node(doc, Namespace{"project": "demo"})
		if !assert.Nil(t, err) {
			return
		}

		want, _ := document.Parse([]byte(`
services:
  "@project":
    environment: ["NAME=demo", 42, true]
`), document.YAML)
		if !assert.True(t, document.Equal(want, doc)) {
			return
		}
	})

	t.Run("will return an error", func(t *testing.T) {
		t.Run("if any leaf fails", func(t *testing.T) {
			doc, err := document.Parse([]byte(`a: "@{Y?missing}"`), document.YAML)
			if !assert.Nil(t, err) {
				return
			}

			err = Node(doc, Namespace{})

			var ierr *Error
			if !assert.ErrorAs(t, err, &ierr) {
				return
			}
			if !assert.Equal(t, "missing", ierr.Message) {
				return
			}
		})
	})
}

func TestResolve(t *testing.T) {
	t.Run("will resolve references to earlier entries", func(t *testing.T) {
		ns, err := Resolve(
			Entry{Name: "project", Value: "demo"},
			Entry{Name: "container_username", Value: "@project"},
		)
		if !assert.Nil(t, err) {
			return
		}
		if !assert.Equal(t, "demo", ns["container_username"]) {
			return
		}
	})

	t.Run("will not resolve references to later entries", func(t *testing.T) {
		ns, err := Resolve(
			Entry{Name: "a", Value: "@{b:-fallback}"},
			Entry{Name: "b", Value: "@a"},
		)
		if !assert.Nil(t, err) {
			return
		}
		if !assert.Equal(t, "fallback", ns["a"]) {
			return
		}
		if !assert.Equal(t, "fallback", ns["b"]) {
			return
		}
	})

	t.Run("will return an error", func(t *testing.T) {
		t.Run("if an entry requires an unset variable", func(t *testing.T) {
			_, err := Resolve(Entry{Name: "a", Value: "@{b?b is required}"})

			var ierr *Error
			if !assert.ErrorAs(t, err, &ierr) {
				return
			}
		})
	})
}
