// Copyright 2025 Marc-Antoine Ruel. All rights reserved.
// Use of this source code is governed under the Apache License, Version 2.0
// that can be found in the LICENSE file.

package matcher

import (
	"net/http"
	"net/url"
	"testing"

	"github.com/maruel/reqvcr/cassette"
	"github.com/maruel/reqvcr/fingerprint"
)

func fp(t *testing.T, method, raw string, hdr http.Header, body []byte) *fingerprint.Request {
	t.Helper()
	u, err := url.Parse(raw)
	if err != nil {
		t.Fatal(err)
	}
	return fingerprint.From(method, u, hdr, body)
}

func entry(method, rawURL string) *cassette.Entry {
	return &cassette.Entry{
		Req: cassette.Request{
			Method:   method,
			URL:      rawURL,
			Headers:  map[string]string{},
			BodyHash: fingerprint.EmptyBodyHash,
		},
	}
}

func TestBuiltins(t *testing.T) {
	tests := []struct {
		name  string
		tags  []string
		req   *fingerprint.Request
		entry *cassette.Entry
		want  bool
	}{
		{
			name:  "method case-insensitive",
			tags:  []string{TagMethod},
			req:   fp(t, "get", "https://h/p", nil, nil),
			entry: entry("GET", "https://h/p"),
			want:  true,
		},
		{
			name:  "method mismatch",
			tags:  []string{TagMethod},
			req:   fp(t, "POST", "https://h/p", nil, nil),
			entry: entry("GET", "https://h/p"),
			want:  false,
		},
		{
			name:  "host only",
			tags:  []string{TagHost},
			req:   fp(t, "GET", "https://api.example.com/x", nil, nil),
			entry: entry("GET", "https://api.example.com/y"),
			want:  true,
		},
		{
			name:  "path only",
			tags:  []string{TagPath},
			req:   fp(t, "GET", "https://a.example.com/x", nil, nil),
			entry: entry("GET", "https://b.example.com/x"),
			want:  true,
		},
		{
			name:  "uri ignores query order",
			tags:  []string{TagURI},
			req:   fp(t, "GET", "https://h/p?a=1&b=2", nil, nil),
			entry: entry("GET", "https://h/p?b=2&a=1"),
			want:  true,
		},
		{
			name:  "uri ignores default port",
			tags:  []string{TagURI},
			req:   fp(t, "GET", "https://h:443/p", nil, nil),
			entry: entry("GET", "https://h/p"),
			want:  true,
		},
		{
			name:  "uri ignores auth parameters",
			tags:  []string{TagURI},
			req:   fp(t, "GET", "https://h/p?access_token=zzz&a=1", nil, nil),
			entry: entry("GET", "https://h/p?a=1"),
			want:  true,
		},
		{
			name:  "uri differs on path",
			tags:  []string{TagURI},
			req:   fp(t, "GET", "https://h/p2", nil, nil),
			entry: entry("GET", "https://h/p"),
			want:  false,
		},
		{
			name: "body distinguishes payloads",
			tags: []string{TagBody},
			req:  fp(t, "POST", "https://h/p", nil, []byte(`{"name":"Alice"}`)),
			entry: &cassette.Entry{Req: cassette.Request{
				Method:   "POST",
				URL:      "https://h/p",
				BodyHash: fingerprint.HashBody([]byte(`{"name":"Bob"}`)),
			}},
			want: false,
		},
		{
			name: "body matches equal payloads",
			tags: []string{TagBody},
			req:  fp(t, "POST", "https://h/p", nil, []byte(`{"name":"Alice"}`)),
			entry: &cassette.Entry{Req: cassette.Request{
				Method:   "POST",
				URL:      "https://h/p",
				BodyHash: fingerprint.HashBody([]byte(`{"name":"Alice"}`)),
			}},
			want: true,
		},
		{
			name: "headers subset containment",
			tags: []string{TagHeaders},
			req:  fp(t, "GET", "https://h/p", http.Header{"X-Version": {"v2"}, "Accept": {"*/*"}}, nil),
			entry: &cassette.Entry{Req: cassette.Request{
				Method:  "GET",
				URL:     "https://h/p",
				Headers: map[string]string{"x-version": "v2"},
			}},
			want: true,
		},
		{
			name: "headers value mismatch",
			tags: []string{TagHeaders},
			req:  fp(t, "GET", "https://h/p", http.Header{"X-Version": {"v1"}}, nil),
			entry: &cassette.Entry{Req: cassette.Request{
				Method:  "GET",
				URL:     "https://h/p",
				Headers: map[string]string{"x-version": "v2"},
			}},
			want: false,
		},
		{
			name: "headers skip redacted secrets",
			tags: []string{TagHeaders},
			req:  fp(t, "GET", "https://h/p", http.Header{"Authorization": {"Bearer live"}}, nil),
			entry: &cassette.Entry{Req: cassette.Request{
				Method:  "GET",
				URL:     "https://h/p",
				Headers: map[string]string{"authorization": "<REDACTED>"},
			}},
			want: true,
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			m, err := Compose(tt.tags)
			if err != nil {
				t.Fatal(err)
			}
			if got := m(tt.req, tt.entry); got != tt.want {
				t.Errorf("Compose(%v) = %t, want %t", tt.tags, got, tt.want)
			}
		})
	}
}

func TestComposeUnknownTag(t *testing.T) {
	if _, err := Compose([]string{TagMethod, "nope"}); err == nil {
		t.Error("Compose() with unknown tag did not fail")
	}
}

func TestCustomMatcher(t *testing.T) {
	defer Clear()
	Register("api_version", func(req *fingerprint.Request, e *cassette.Entry) bool {
		return req.HeaderValue("x-version") == e.Req.Headers["x-version"]
	})
	if !Known("api_version") {
		t.Fatal("Known(api_version) = false after Register")
	}
	m, err := Compose([]string{TagMethod, "api_version"})
	if err != nil {
		t.Fatal(err)
	}
	e := &cassette.Entry{Req: cassette.Request{
		Method:  "GET",
		URL:     "https://h/p",
		Headers: map[string]string{"x-version": "v2"},
	}}
	if !m(fp(t, "GET", "https://h/p", http.Header{"X-Version": {"v2"}}, nil), e) {
		t.Error("custom matcher rejected matching version")
	}
	if m(fp(t, "GET", "https://h/p", http.Header{"X-Version": {"v1"}}, nil), e) {
		t.Error("custom matcher accepted mismatched version")
	}

	// Clearing after compose makes the predicate return false, not crash.
	Clear()
	if m(fp(t, "GET", "https://h/p", http.Header{"X-Version": {"v2"}}, nil), e) {
		t.Error("cleared custom matcher still matched")
	}
}
