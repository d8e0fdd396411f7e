// Copyright 2025 Marc-Antoine Ruel. All rights reserved.
// Use of this source code is governed under the Apache License, Version 2.0
// that can be found in the LICENSE file.

// Package redact scrubs secrets from exchanges before they reach disk.
//
// It runs only on the write path. Canonicalization stays pure and the
// on-disk form is the contract: cassettes are never redacted at read time.
package redact

import (
	"net/http"
	"strings"

	"github.com/maruel/reqvcr/cassette"
	"github.com/maruel/reqvcr/fingerprint"
)

// Placeholder replaces secret request header values on disk.
const Placeholder = "<REDACTED>"

// volatileResponseHeaders vary between otherwise equivalent responses and
// are dropped before save.
var volatileResponseHeaders = map[string]struct{}{
	"date":             {},
	"set-cookie":       {},
	"x-request-id":     {},
	"x-amz-request-id": {},
	"x-amz-trace-id":   {},
}

// RequestHeaders lowercases names and folds multi-valued headers, replacing
// secret header values with Placeholder. The header's presence is preserved.
func RequestHeaders(hdr http.Header) map[string]string {
	out := make(map[string]string, len(hdr))
	for name, values := range hdr {
		n := strings.ToLower(name)
		if fingerprint.IsSecretHeader(n) {
			out[n] = Placeholder
			continue
		}
		out[n] = strings.Join(values, ", ")
	}
	return out
}

// ResponseHeaders lowercases names and drops volatile headers. Values are
// kept verbatim.
func ResponseHeaders(hdr http.Header) map[string]cassette.HeaderValue {
	out := make(map[string]cassette.HeaderValue, len(hdr))
	for name, values := range hdr {
		n := strings.ToLower(name)
		if _, ok := volatileResponseHeaders[n]; ok {
			continue
		}
		out[n] = cassette.HeaderValue(append([]string(nil), values...))
	}
	return out
}
