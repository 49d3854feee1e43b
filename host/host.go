// Copyright (c) 2026 Z5Labs and Contributors
//
// This software is released under the MIT License.
// https://opensource.org/licenses/MIT

// Package host describes the machine and user running atk.
package host

import (
	"fmt"
	"net"
	"os/user"
	"strconv"
	"strings"
)

// Identity is the live identity hardware specific overlays are matched
// against and the source of default user attributes.
type Identity struct {
	Username     string
	UID          int
	GID          int
	MACAddresses []string
}

// HasMAC reports whether addr is one of the hardware addresses of the
// host. Comparison ignores case and accepts "-" as a separator.
func (id Identity) HasMAC(addr string) bool {
	want := normalizeMAC(addr)
	if want == "" {
		return false
	}
	for _, mac := range id.MACAddresses {
		if normalizeMAC(mac) == want {
			return true
		}
	}
	return false
}

func normalizeMAC(addr string) string {
	hw, err := net.ParseMAC(strings.TrimSpace(addr))
	if err != nil {
		return strings.ToLower(strings.TrimSpace(addr))
	}
	return hw.String()
}

// LookupError occurs when part of the host identity cannot be determined.
type LookupError struct {
	What  string
	Cause error
}

// Error implements the error interface.
func (e LookupError) Error() string {
	return fmt.Sprintf("failed to look up host %s: %s", e.What, e.Cause)
}

// Unwrap implements the implicit interface used by errors.Is and errors.As.
func (e LookupError) Unwrap() error {
	return e.Cause
}

// Lookup determines the identity of the current user and host.
func Lookup() (Identity, error) {
	u, err := user.Current()
	if err != nil {
		return Identity{}, LookupError{What: "user", Cause: err}
	}

	uid, err := strconv.Atoi(u.Uid)
	if err != nil {
		return Identity{}, LookupError{What: "uid", Cause: err}
	}
	gid, err := strconv.Atoi(u.Gid)
	if err != nil {
		return Identity{}, LookupError{What: "gid", Cause: err}
	}

	macs, err := macAddresses()
	if err != nil {
		return Identity{}, LookupError{What: "hardware addresses", Cause: err}
	}

	id := Identity{
		Username:     u.Username,
		UID:          uid,
		GID:          gid,
		MACAddresses: macs,
	}
	return id, nil
}

func macAddresses() ([]string, error) {
	ifaces, err := net.Interfaces()
	if err != nil {
		return nil, err
	}

	var macs []string
	for _, iface := range ifaces {
		if iface.Flags&net.FlagLoopback != 0 || len(iface.HardwareAddr) == 0 {
			continue
		}
		macs = append(macs, iface.HardwareAddr.String())
	}
	return macs, nil
}
