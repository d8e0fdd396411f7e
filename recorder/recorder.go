// Copyright 2025 Marc-Antoine Ruel. All rights reserved.
// Use of this source code is governed under the Apache License, Version 2.0
// that can be found in the LICENSE file.

// Package recorder performs the one real upstream call of a recording.
//
// It does not retry: a flaky upstream must be visible in the test, not
// papered over in the cassette.
package recorder

import (
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"os"

	"github.com/maruel/roundtrippers"
)

// Error is an upstream transport failure during recording. Nothing was
// appended to the cassette.
type Error struct {
	Err error
}

func (e *Error) Error() string {
	return fmt.Sprintf("recording upstream call failed: %v", e.Err)
}

func (e *Error) Unwrap() error {
	return e.Err
}

// Response is a fully read upstream response.
type Response struct {
	Status  int
	Headers http.Header
	Body    []byte
}

// Recorder forwards requests to their real destination.
type Recorder struct {
	transport http.RoundTripper
}

// New returns a Recorder using the given transport, or the default stack
// when nil. Setting REQVCR_DEBUG=1 logs every upstream exchange.
func New(t http.RoundTripper) *Recorder {
	if t == nil {
		t = &roundtrippers.RequestID{Transport: http.DefaultTransport}
	}
	if os.Getenv("REQVCR_DEBUG") == "1" {
		t = &roundtrippers.Log{Transport: t, Logger: slog.Default(), Level: slog.LevelDebug}
	}
	return &Recorder{transport: t}
}

// Do performs the upstream call and reads the full response body. A
// cancelled context or transport failure surfaces as *Error without
// anything having been written.
func (r *Recorder) Do(req *http.Request) (*Response, error) {
	if err := req.Context().Err(); err != nil {
		return nil, &Error{Err: err}
	}
	resp, err := r.transport.RoundTrip(req)
	if err != nil {
		return nil, &Error{Err: err}
	}
	body, err := io.ReadAll(resp.Body)
	_ = resp.Body.Close()
	if err != nil {
		return nil, &Error{Err: err}
	}
	return &Response{Status: resp.StatusCode, Headers: resp.Header, Body: body}, nil
}
