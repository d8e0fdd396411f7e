// Copyright 2025 Marc-Antoine Ruel. All rights reserved.
// Use of this source code is governed under the Apache License, Version 2.0
// that can be found in the LICENSE file.

package reqvcr

import (
	"fmt"
	"strings"

	"github.com/maruel/reqvcr/cassette"
	"github.com/maruel/reqvcr/fingerprint"
)

// CassetteMissError is returned when no cassette entry matches a request and
// the record mode forbids recording. It surfaces as a test failure.
type CassetteMissError struct {
	// Stub is the name of the installed stub.
	Stub string
	// Cassette is the file path of the cassette.
	Cassette string
	// Request is the canonicalized identity of the request that missed.
	Request *fingerprint.Request
	// Unmatched holds the first few entries that were still unconsumed, for
	// diagnostics.
	Unmatched []*cassette.Entry
}

func (e *CassetteMissError) Error() string {
	var b strings.Builder
	fmt.Fprintf(&b, "stub %q: no entry in %s matched %s", e.Stub, e.Cassette, e.Request.Identity())
	if len(e.Unmatched) == 0 {
		b.WriteString("; the cassette has no unconsumed entries")
		return b.String()
	}
	b.WriteString("; next unconsumed entries:")
	for _, u := range e.Unmatched {
		fmt.Fprintf(&b, "\n  %s %s (body %s)", u.Req.Method, u.Req.URL, u.Req.BodyHash)
	}
	return b.String()
}

// ConfigError is an invalid configuration detected at install time: an
// unknown record mode or matcher tag, or a misconfigured codec backend.
type ConfigError struct {
	Setting string
	Value   string
	Err     error
}

func (e *ConfigError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("invalid %s %q: %v", e.Setting, e.Value, e.Err)
	}
	return fmt.Sprintf("invalid %s %q", e.Setting, e.Value)
}

func (e *ConfigError) Unwrap() error {
	return e.Err
}
