// Copyright (c) 2026 Z5Labs and Contributors
//
// This software is released under the MIT License.
// https://opensource.org/licenses/MIT

package compose

import (
	"github.com/z5labs/atk/document"
	"github.com/z5labs/atk/interpolate"
	"github.com/z5labs/atk/key"
)

// Result is the outcome of a successful generation.
type Result struct {
	final        bool
	doc          *document.Node
	bytes        []byte
	format       document.Format
	cfg          Config
	services     []string
	servicesPath key.Chain
	ns           interpolate.Namespace
	attachments  []Attachment
}

// Document returns a copy of the generated document.
func (r *Result) Document() *document.Node {
	return r.doc.Clone()
}

// Bytes returns the serialized document.
func (r *Result) Bytes() []byte {
	return r.bytes
}

// Format returns the format Bytes is serialized in.
func (r *Result) Format() document.Format {
	return r.format
}

// Config returns the built-in attributes of the config file.
func (r *Result) Config() Config {
	return r.cfg
}

// Services returns the names of the generated services in order.
func (r *Result) Services() []string {
	services := make([]string, len(r.services))
	copy(services, r.services)
	return services
}

// ServicesPath addresses the mapping of services in the document.
func (r *Result) ServicesPath() key.Chain {
	return r.servicesPath
}

// Namespace returns the variables the document was interpolated with.
func (r *Result) Namespace() interpolate.Namespace {
	ns := make(interpolate.Namespace, len(r.ns))
	for k, v := range r.ns {
		ns[k] = v
	}
	return ns
}

// Attachments returns the files generated alongside the document.
func (r *Result) Attachments() []Attachment {
	return r.attachments
}
