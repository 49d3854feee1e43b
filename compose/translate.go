// Copyright (c) 2026 Z5Labs and Contributors
//
// This software is released under the MIT License.
// https://opensource.org/licenses/MIT

package compose

import (
	"context"

	"github.com/z5labs/atk/document"
	"github.com/z5labs/atk/key"
)

// TranslationRule renames the key From, found in the mapping at Path, to To.
// Backends use rules for vocabulary differences, e.g. Singularity compose
// calls services "instances".
type TranslationRule struct {
	Path key.Chain
	From string
	To   string
}

// Apply renames the key in doc in place. It is a no-op if From is absent.
func (r TranslationRule) Apply(doc *document.Node) error {
	from := r.Path.Append(key.Name(r.From))
	if !doc.Contains(from) {
		return nil
	}
	return doc.Set(from, document.NewScalar(r.To), true)
}

// rewrite returns where path lives after r has been applied.
func (r TranslationRule) rewrite(path key.Chain) key.Chain {
	from := r.Path.Append(key.Name(r.From))
	if len(path) < len(from) || from.Key() != path[:len(from)].Key() {
		return path
	}
	return r.Path.Append(key.Name(r.To)).Append(path[len(from):]...)
}

// Adapter rewrites a document for a specific backend once every overlay
// has been applied. servicesPath addresses the mapping of services.
type Adapter interface {
	Adapt(ctx context.Context, doc *document.Node, servicesPath key.Chain) error
}

// AdapterFunc is a func type which implements the [Adapter] interface.
type AdapterFunc func(context.Context, *document.Node, key.Chain) error

// Adapt implements the [Adapter] interface.
func (f AdapterFunc) Adapt(ctx context.Context, doc *document.Node, servicesPath key.Chain) error {
	return f(ctx, doc, servicesPath)
}

// Attachment is a file generated alongside the compose document, e.g. an
// environment file. Name is relative to the directory of the document.
type Attachment struct {
	Name string
	Data []byte
}

// Finalizer is implemented by Adapters which also need to see the document
// after interpolation, just before it is serialized. Any attachments they
// return are carried by the [Result].
type Finalizer interface {
	Finalize(ctx context.Context, doc *document.Node, servicesPath key.Chain) ([]Attachment, error)
}
