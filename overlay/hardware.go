// Copyright (c) 2026 Z5Labs and Contributors
//
// This software is released under the MIT License.
// https://opensource.org/licenses/MIT

package overlay

import (
	"fmt"
	"strconv"

	"github.com/z5labs/atk/document"
	"github.com/z5labs/atk/host"
	"github.com/z5labs/atk/internal/slogfield"
)

// Hardware predicate keys. Every other key of a hardware entry is a
// service selector.
const (
	MACAddressKey = "mac_address"
	UserKey       = "user"
)

// Hardware is a single hardware specific overlay. It applies when every
// predicate it sets matches the host.
type Hardware struct {
	MACAddress string
	User       string

	name    string
	targets []target
}

// Matches reports whether h applies to the host identified by id.
func (h Hardware) Matches(id host.Identity) bool {
	if h.MACAddress != "" && !id.HasMAC(h.MACAddress) {
		return false
	}
	if h.User != "" && h.User != id.Username {
		return false
	}
	return true
}

// ParseHardware parses spec, the hardware_specific_attributes section of a
// config file: a sequence of mappings with optional mac_address and user
// predicates plus service selectors. An entry must set at least one predicate.
func ParseHardware(spec *document.Node) ([]Hardware, error) {
	if spec.IsNull() {
		return nil, nil
	}
	if !spec.IsSequence() {
		return nil, &Error{Overlay: "hardware_specific_attributes", Reason: fmt.Sprintf("must be a sequence, got: %s", spec.Kind())}
	}

	var hws []Hardware
	for i, entry := range spec.Items() {
		name := "hardware_specific_attributes[" + strconv.Itoa(i) + "]"
		if !entry.IsMapping() {
			return nil, &Error{Overlay: name, Reason: fmt.Sprintf("must be a mapping, got: %s", entry.Kind())}
		}

		hw := Hardware{name: name}
		for _, k := range []string{MACAddressKey, UserKey} {
			v, ok := entry.Lookup(k)
			if !ok {
				continue
			}
			s, ok := v.AsString()
			if !ok || s == "" {
				return nil, &Error{Overlay: name, Reason: fmt.Sprintf("%s must be a non-empty string", k)}
			}
			if k == MACAddressKey {
				hw.MACAddress = s
				continue
			}
			hw.User = s
		}
		if hw.MACAddress == "" && hw.User == "" {
			return nil, &Error{Overlay: name, Reason: "must set mac_address or user"}
		}

		ts, err := targets(name, entry, MACAddressKey, UserKey)
		if err != nil {
			return nil, err
		}
		hw.targets = ts
		hws = append(hws, hw)
	}
	return hws, nil
}

// ApplyHardware merges the payloads of every entry in hws matching id into
// the services they select.
func ApplyHardware(hws []Hardware, id host.Identity, services *document.Node, opts ...Option) error {
	o := newOptions(opts)
	if !services.IsMapping() {
		return &Error{Overlay: "hardware_specific_attributes", Reason: "services must be a mapping"}
	}
	for _, hw := range hws {
		if !hw.Matches(id) {
			o.log.Debug("hardware overlay does not match host", slogfield.Overlay(hw.name))
			continue
		}
		err := apply(o.log, hw.name, hw.targets, services)
		if err != nil {
			return err
		}
	}
	return nil
}
