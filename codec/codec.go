// Copyright 2025 Marc-Antoine Ruel. All rights reserved.
// Use of this source code is governed under the Apache License, Version 2.0
// that can be found in the LICENSE file.

// Package codec is a thin facade over a pluggable JSON backend.
//
// Backends are registered by name and selected with Use or the REQVCR_CODEC
// environment variable. The built-in backends, "json" (encoding/json) and
// "goccy" (github.com/goccy/go-json), are interchangeable.
package codec

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"sync"

	gojson "github.com/goccy/go-json"
)

// ErrNoBackend is returned when the configured backend is not registered.
var ErrNoBackend = errors.New("no JSON codec backend available")

// Codec encodes and decodes JSON values.
type Codec interface {
	Encode(v any) ([]byte, error)
	Decode(data []byte, v any) error
}

// Error wraps a failure from the active backend.
type Error struct {
	Backend string
	Err     error
}

func (e *Error) Error() string {
	return fmt.Sprintf("codec %q: %v", e.Backend, e.Err)
}

func (e *Error) Unwrap() error {
	return e.Err
}

var (
	mu       sync.RWMutex
	backends = map[string]Codec{
		"json":  stdCodec{},
		"goccy": goccyCodec{},
	}
	active = defaultBackend()
)

func defaultBackend() string {
	if v := os.Getenv("REQVCR_CODEC"); v != "" {
		return v
	}
	return "json"
}

// Register adds a backend under the given name, replacing any previous one.
func Register(name string, c Codec) {
	mu.Lock()
	backends[name] = c
	mu.Unlock()
}

// Use selects the active backend. It fails with ErrNoBackend when no backend
// is registered under that name.
func Use(name string) error {
	mu.Lock()
	defer mu.Unlock()
	if _, ok := backends[name]; !ok {
		return fmt.Errorf("%w: %q is not registered", ErrNoBackend, name)
	}
	active = name
	return nil
}

func current() (string, Codec, error) {
	mu.RLock()
	defer mu.RUnlock()
	c, ok := backends[active]
	if !ok {
		return active, nil, fmt.Errorf("%w: %q is not registered", ErrNoBackend, active)
	}
	return active, c, nil
}

// Encode encodes v with the active backend.
func Encode(v any) ([]byte, error) {
	name, c, err := current()
	if err != nil {
		return nil, err
	}
	data, err := c.Encode(v)
	if err != nil {
		return nil, &Error{Backend: name, Err: err}
	}
	return data, nil
}

// Decode decodes data into v with the active backend.
func Decode(data []byte, v any) error {
	name, c, err := current()
	if err != nil {
		return err
	}
	if err := c.Decode(data, v); err != nil {
		return &Error{Backend: name, Err: err}
	}
	return nil
}

type stdCodec struct{}

// Encode does not escape HTML characters: redaction placeholders like
// "<REDACTED>" are stored literally.
func (stdCodec) Encode(v any) ([]byte, error) {
	var buf bytes.Buffer
	e := json.NewEncoder(&buf)
	e.SetEscapeHTML(false)
	if err := e.Encode(v); err != nil {
		return nil, err
	}
	return bytes.TrimRight(buf.Bytes(), "\n"), nil
}

func (stdCodec) Decode(data []byte, v any) error {
	return json.Unmarshal(data, v)
}

type goccyCodec struct{}

func (goccyCodec) Encode(v any) ([]byte, error) {
	return gojson.MarshalWithOption(v, gojson.DisableHTMLEscape())
}

func (goccyCodec) Decode(data []byte, v any) error {
	return gojson.Unmarshal(data, v)
}
