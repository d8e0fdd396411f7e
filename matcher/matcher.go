// Copyright 2025 Marc-Antoine Ruel. All rights reserved.
// Use of this source code is governed under the Apache License, Version 2.0
// that can be found in the LICENSE file.

// Package matcher decides whether a cassette entry satisfies a request.
//
// A match_on tag list composes into one predicate, ANDing the named
// matchers. Built-in tags compare pieces of the request fingerprint; custom
// tags come from a process-wide registry and should be registered during
// test setup, not while requests are in flight.
package matcher

import (
	"fmt"
	"log/slog"
	"strings"
	"sync"
	"sync/atomic"

	"github.com/maruel/reqvcr/cassette"
	"github.com/maruel/reqvcr/fingerprint"
)

// Func is a predicate reporting whether a recorded entry satisfies a request.
type Func func(req *fingerprint.Request, e *cassette.Entry) bool

// Built-in tags.
const (
	TagMethod  = "method"
	TagHost    = "host"
	TagPath    = "path"
	TagURI     = "uri"
	TagHeaders = "headers"
	TagBody    = "body"
)

// DefaultTags is the match_on list used when none is given.
var DefaultTags = []string{TagMethod, TagURI}

var builtins = map[string]Func{
	TagMethod:  matchMethod,
	TagHost:    matchHost,
	TagPath:    matchPath,
	TagURI:     matchURI,
	TagHeaders: matchHeaders,
	TagBody:    matchBody,
}

var (
	mu     sync.RWMutex
	custom = map[string]Func{}
)

// Register adds a custom matcher under tag, replacing any previous one.
// Built-in tags cannot be shadowed.
func Register(tag string, fn Func) {
	mu.Lock()
	custom[tag] = fn
	mu.Unlock()
}

// Clear empties the custom matcher table.
func Clear() {
	mu.Lock()
	custom = map[string]Func{}
	mu.Unlock()
}

// Known reports whether tag names a built-in or currently registered matcher.
func Known(tag string) bool {
	if _, ok := builtins[tag]; ok {
		return true
	}
	mu.RLock()
	_, ok := custom[tag]
	mu.RUnlock()
	return ok
}

// Compose builds the AND of the named matchers. Unknown tags fail now;
// a custom tag that disappears later (ClearMatchers after install) logs a
// warning at match time and the predicate returns false.
func Compose(tags []string) (Func, error) {
	fns := make([]Func, 0, len(tags))
	for _, tag := range tags {
		if fn, ok := builtins[tag]; ok {
			fns = append(fns, fn)
			continue
		}
		if !Known(tag) {
			return nil, fmt.Errorf("unknown matcher tag %q", tag)
		}
		fns = append(fns, customTag(tag))
	}
	return func(req *fingerprint.Request, e *cassette.Entry) bool {
		for _, fn := range fns {
			if !fn(req, e) {
				return false
			}
		}
		return true
	}, nil
}

// customTag resolves the registry at match time so registrations stay live.
func customTag(tag string) Func {
	var warned atomic.Bool
	return func(req *fingerprint.Request, e *cassette.Entry) bool {
		mu.RLock()
		fn, ok := custom[tag]
		mu.RUnlock()
		if !ok {
			if !warned.Swap(true) {
				slog.Warn("reqvcr: matcher tag is no longer registered", "tag", tag)
			}
			return false
		}
		return fn(req, e)
	}
}

func matchMethod(req *fingerprint.Request, e *cassette.Entry) bool {
	return strings.EqualFold(req.Method, e.Req.Method)
}

func matchHost(req *fingerprint.Request, e *cassette.Entry) bool {
	u, err := fingerprint.ParseURL(e.Req.URL)
	if err != nil {
		return false
	}
	return req.URL.Host == u.Host
}

func matchPath(req *fingerprint.Request, e *cassette.Entry) bool {
	u, err := fingerprint.ParseURL(e.Req.URL)
	if err != nil {
		return false
	}
	return req.URL.Path == u.Path
}

// matchURI compares the full canonical URL: scheme, host, port, path and the
// sorted non-auth query pairs. The entry URL is re-canonicalized so
// hand-edited cassettes still match.
func matchURI(req *fingerprint.Request, e *cassette.Entry) bool {
	u, err := fingerprint.ParseURL(e.Req.URL)
	if err != nil {
		return false
	}
	return req.URL.String() == u.String()
}

// matchHeaders is subset containment: every header recorded in the entry must
// be carried by the request with the same value.
func matchHeaders(req *fingerprint.Request, e *cassette.Entry) bool {
	for name, want := range e.Req.Headers {
		if fingerprint.IsSecretHeader(name) {
			// Recorded as the redaction placeholder; absent from the
			// fingerprint.
			continue
		}
		if req.HeaderValue(name) != want {
			return false
		}
	}
	return true
}

func matchBody(req *fingerprint.Request, e *cassette.Entry) bool {
	return req.BodyHash == e.Req.BodyHash
}
