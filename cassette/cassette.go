// Copyright 2025 Marc-Antoine Ruel. All rights reserved.
// Use of this source code is governed under the Apache License, Version 2.0
// that can be found in the LICENSE file.

// Package cassette is the persistent log of recorded HTTP exchanges.
//
// A cassette is a JSON Lines file: one entry per line, each entry an
// immutable request/response pair. The file order is the replay order.
package cassette

import (
	"bytes"
	"encoding/base64"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
)

// Entry is one recorded HTTP exchange.
type Entry struct {
	Req  Request  `json:"req"`
	Resp Response `json:"resp"`
}

// Request is the canonicalized, redacted request half of an entry.
type Request struct {
	Method string `json:"method"`
	// URL is the canonical form: query pairs sorted, default ports omitted,
	// auth parameters stripped.
	URL string `json:"url"`
	// Headers has lowercased names. Secret headers hold the redaction
	// placeholder, never the original value.
	Headers map[string]string `json:"headers"`
	// BodyHash is "-" or the 64-char lowercase hex sha256 of the body.
	BodyHash string `json:"body_hash"`
}

// Response is the verbatim response half of an entry. The body is stored
// base64-encoded and is never re-encoded on replay.
type Response struct {
	Status  int                    `json:"status"`
	Headers map[string]HeaderValue `json:"headers"`
	BodyB64 string                 `json:"body_b64"`
}

// HeaderValue is a response header value. A single value marshals as a JSON
// string, several as a JSON array.
type HeaderValue []string

func (h HeaderValue) MarshalJSON() ([]byte, error) {
	if len(h) == 1 {
		return json.Marshal(h[0])
	}
	return json.Marshal([]string(h))
}

func (h *HeaderValue) UnmarshalJSON(b []byte) error {
	if len(b) > 0 && b[0] == '"' {
		var s string
		if err := json.Unmarshal(b, &s); err != nil {
			return err
		}
		*h = HeaderValue{s}
		return nil
	}
	var l []string
	if err := json.Unmarshal(b, &l); err != nil {
		return err
	}
	*h = HeaderValue(l)
	return nil
}

// Body decodes the recorded response body into its raw bytes.
func (r *Response) Body() ([]byte, error) {
	if r.BodyB64 == "" {
		return nil, nil
	}
	return base64.StdEncoding.DecodeString(r.BodyB64)
}

// SetBody stores raw response bytes.
func (r *Response) SetBody(b []byte) {
	r.BodyB64 = base64.StdEncoding.EncodeToString(b)
}

// HTTPResponse reconstructs an http.Response from the recorded exchange. The
// body bytes are returned as recorded; content-type decoding is left to the
// client.
func (e *Entry) HTTPResponse() (*http.Response, error) {
	body, err := e.Resp.Body()
	if err != nil {
		return nil, fmt.Errorf("entry for %s %s: %w", e.Req.Method, e.Req.URL, err)
	}
	hdr := http.Header{}
	for name, values := range e.Resp.Headers {
		for _, v := range values {
			hdr.Add(name, v)
		}
	}
	return &http.Response{
		Status:        fmt.Sprintf("%d %s", e.Resp.Status, http.StatusText(e.Resp.Status)),
		StatusCode:    e.Resp.Status,
		Proto:         "HTTP/1.1",
		ProtoMajor:    1,
		ProtoMinor:    1,
		Header:        hdr,
		Body:          io.NopCloser(bytes.NewReader(body)),
		ContentLength: int64(len(body)),
		Close:         true,
	}, nil
}
