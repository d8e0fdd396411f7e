// Copyright 2025 Marc-Antoine Ruel. All rights reserved.
// Use of this source code is governed under the Apache License, Version 2.0
// that can be found in the LICENSE file.

// Package reqvcr records and replays HTTP exchanges for deterministic,
// offline tests of code that talks to external HTTP APIs.
//
// A test installs a named stub bound to a cassette file and a record mode.
// The stub is an http.RoundTripper: hand it (or Stub.Client) to the code
// under test. Each request is canonicalized, matched against the next
// unconsumed cassette entry and either replayed from disk, forwarded to the
// real network and appended, or failed, depending on the mode.
//
// Check out the package examples for a quick start.
package reqvcr

import (
	"errors"
	"fmt"
	"net/http"
	"os"
	"path/filepath"
	"sync"

	"github.com/maruel/reqvcr/cassette"
	"github.com/maruel/reqvcr/codec"
	"github.com/maruel/reqvcr/matcher"
	"github.com/maruel/reqvcr/recorder"
)

// DefaultRoot is the cassette root directory used when neither WithRoot nor
// REQVCR_CASSETTE_ROOT is set.
const DefaultRoot = "test/support/cassettes"

// Option configures Install.
type Option func(*config)

type config struct {
	matchOn   []string
	root      string
	transport http.RoundTripper
}

// WithMatchOn sets the matcher tags composed into the stub's predicate. The
// default is [method, uri].
func WithMatchOn(tags ...string) Option {
	return func(c *config) {
		c.matchOn = tags
	}
}

// WithRoot overrides the cassette root directory for this stub.
func WithRoot(dir string) Option {
	return func(c *config) {
		c.root = dir
	}
}

// WithTransport sets the unstubbed transport used for upstream calls when
// recording.
func WithTransport(t http.RoundTripper) Option {
	return func(c *config) {
		c.transport = t
	}
}

var (
	stubsMu sync.Mutex
	stubs   = map[string]*Stub{}
)

// Install binds a stub to a cassette for the current test.
//
// The cassette file is <root>/<cassetteName>.jsonl; forward slashes in the
// name become subdirectories. The file is loaded if it exists and the replay
// cursor starts at the first entry. The REQVCR_MODE environment variable,
// when set, overrides the mode argument; this is how a recording session
// forces "all" without touching test code.
//
// The returned stub lives for one test. Call Stub.Uninstall at teardown;
// installing the same name again replaces the previous registration.
func Install(name, cassetteName string, mode Mode, opts ...Option) (*Stub, error) {
	cfg := config{}
	for _, o := range opts {
		o(&cfg)
	}
	if v := os.Getenv("REQVCR_MODE"); v != "" {
		m, err := ParseMode(v)
		if err != nil {
			return nil, &ConfigError{Setting: "REQVCR_MODE", Value: v, Err: err}
		}
		mode = m
	}
	if mode < ModeOnce || mode > ModeNone {
		return nil, &ConfigError{Setting: "mode", Value: mode.String()}
	}
	if _, err := codec.Encode(nil); errors.Is(err, codec.ErrNoBackend) {
		return nil, &ConfigError{Setting: "REQVCR_CODEC", Value: os.Getenv("REQVCR_CODEC"), Err: err}
	}
	root := cfg.root
	if root == "" {
		root = os.Getenv("REQVCR_CASSETTE_ROOT")
	}
	if root == "" {
		root = DefaultRoot
	}
	path := filepath.Join(root, filepath.FromSlash(cassetteName)+".jsonl")

	tags := cfg.matchOn
	if len(tags) == 0 {
		tags = matcher.DefaultTags
	}
	match, err := matcher.Compose(tags)
	if err != nil {
		return nil, &ConfigError{Setting: "match_on", Value: fmt.Sprintf("%v", tags), Err: err}
	}

	_, statErr := os.Stat(path)
	isNew := os.IsNotExist(statErr)
	entries, err := cassette.Load(path)
	if err != nil {
		return nil, err
	}

	s := &Stub{
		name:    name,
		path:    path,
		mode:    mode,
		match:   match,
		rec:     recorder.New(cfg.transport),
		isNew:   isNew,
		entries: entries,
	}
	stubsMu.Lock()
	stubs[name] = s
	stubsMu.Unlock()
	return s, nil
}

// Installed looks up a stub by name.
func Installed(name string) (*Stub, bool) {
	stubsMu.Lock()
	defer stubsMu.Unlock()
	s, ok := stubs[name]
	return s, ok
}

// RegisterMatcher adds a custom matcher to the process-wide registry. The
// predicate receives the canonicalized request and a candidate entry.
// Register during test setup; registration during active request handling is
// undefined.
func RegisterMatcher(tag string, fn matcher.Func) {
	matcher.Register(tag, fn)
}

// ClearMatchers empties the custom matcher table.
func ClearMatchers() {
	matcher.Clear()
}
