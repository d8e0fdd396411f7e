// Copyright 2025 Marc-Antoine Ruel. All rights reserved.
// Use of this source code is governed under the Apache License, Version 2.0
// that can be found in the LICENSE file.

// Package fingerprint canonicalizes the identity of an outbound HTTP request.
//
// Two requests that differ only in noise (default ports, query parameter
// order, auth query parameters, secret headers) canonicalize to the same fingerprint,
// which is what the matchers compare against recorded cassette entries.
package fingerprint

import (
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"net/http"
	"net/url"
	"sort"
	"strings"
)

// EmptyBodyHash is the body hash of a request with no body.
const EmptyBodyHash = "-"

// authParams are query parameter names that carry credentials. They are
// stripped from the canonical URL and never participate in matching.
var authParams = map[string]struct{}{
	"access_token":  {},
	"token":         {},
	"api_key":       {},
	"apikey":        {},
	"auth":          {},
	"authorization": {},
	"signature":     {},
	"sig":           {},
	"key":           {},
}

// secretHeaders are request headers that carry credentials. They are dropped
// from the fingerprint; the write path replaces them with a placeholder.
var secretHeaders = map[string]struct{}{
	"authorization":       {},
	"cookie":              {},
	"proxy-authorization": {},
	"x-api-key":           {},
	"x-auth-token":        {},
}

// IsAuthParam reports whether a query parameter name carries credentials.
// The comparison is case-insensitive.
func IsAuthParam(name string) bool {
	_, ok := authParams[strings.ToLower(name)]
	return ok
}

// IsSecretHeader reports whether a request header name carries credentials.
// The comparison is case-insensitive.
func IsSecretHeader(name string) bool {
	_, ok := secretHeaders[strings.ToLower(name)]
	return ok
}

// Pair is one query parameter.
type Pair struct {
	Name  string
	Value string
}

// URL is the canonical decomposition of a request URL.
type URL struct {
	Scheme string
	Host   string
	// Port is empty when it is the default for the scheme (80 for http, 443
	// for https).
	Port string
	Path string
	// Query is sorted lexicographically by (Name, Value) with auth
	// parameters removed.
	Query []Pair
}

// ParseURL canonicalizes a raw URL.
func ParseURL(raw string) (*URL, error) {
	u, err := url.Parse(raw)
	if err != nil {
		return nil, err
	}
	return FromURL(u), nil
}

// FromURL canonicalizes an already parsed URL.
func FromURL(u *url.URL) *URL {
	c := &URL{
		Scheme: strings.ToLower(u.Scheme),
		Host:   strings.TrimSuffix(strings.ToLower(u.Hostname()), "."),
		Port:   u.Port(),
		Path:   u.EscapedPath(),
	}
	if c.Port == defaultPort(c.Scheme) {
		c.Port = ""
	}
	c.Query = canonicalQuery(u.RawQuery)
	return c
}

func defaultPort(scheme string) string {
	switch scheme {
	case "http":
		return "80"
	case "https":
		return "443"
	}
	return ""
}

func canonicalQuery(rawQuery string) []Pair {
	if rawQuery == "" {
		return nil
	}
	var pairs []Pair
	for part := range strings.SplitSeq(rawQuery, "&") {
		if part == "" {
			continue
		}
		name, value, _ := strings.Cut(part, "=")
		n, err := url.QueryUnescape(name)
		if err != nil {
			n = name
		}
		if IsAuthParam(n) {
			continue
		}
		v, err := url.QueryUnescape(value)
		if err != nil {
			v = value
		}
		pairs = append(pairs, Pair{Name: n, Value: v})
	}
	sort.Slice(pairs, func(i, j int) bool {
		if pairs[i].Name != pairs[j].Name {
			return pairs[i].Name < pairs[j].Name
		}
		return pairs[i].Value < pairs[j].Value
	})
	return pairs
}

// String renders the canonical URL form. Parsing the result yields an equal
// URL value.
func (u *URL) String() string {
	var b strings.Builder
	b.WriteString(u.Scheme)
	b.WriteString("://")
	b.WriteString(u.Host)
	if u.Port != "" {
		b.WriteString(":")
		b.WriteString(u.Port)
	}
	b.WriteString(u.Path)
	for i, p := range u.Query {
		if i == 0 {
			b.WriteString("?")
		} else {
			b.WriteString("&")
		}
		b.WriteString(url.QueryEscape(p.Name))
		b.WriteString("=")
		b.WriteString(url.QueryEscape(p.Value))
	}
	return b.String()
}

// Request is the canonicalized view of an outbound request used for matching.
type Request struct {
	// Method is uppercased.
	Method string
	URL    URL
	// Headers has lowercased names. Secret request headers are absent.
	Headers map[string][]string
	// BodyHash is the lowercase hex SHA-256 of the raw body bytes, or
	// EmptyBodyHash when there is no body.
	BodyHash string
}

// From builds the fingerprint of a request. body is the raw request body,
// possibly nil.
func From(method string, u *url.URL, hdr http.Header, body []byte) *Request {
	return &Request{
		Method:   strings.ToUpper(method),
		URL:      *FromURL(u),
		Headers:  Headers(hdr),
		BodyHash: HashBody(body),
	}
}

// Headers canonicalizes request headers: names are lowercased, value order is
// preserved, secret headers are dropped.
func Headers(hdr http.Header) map[string][]string {
	out := make(map[string][]string, len(hdr))
	for name, values := range hdr {
		n := strings.ToLower(name)
		if _, ok := secretHeaders[n]; ok {
			continue
		}
		out[n] = append(out[n], values...)
	}
	return out
}

// HeaderValue returns the combined value of a canonicalized header, folding
// multiple values with ", " per the HTTP field combining rule. Returns ""
// when the header is absent.
func (r *Request) HeaderValue(name string) string {
	return strings.Join(r.Headers[strings.ToLower(name)], ", ")
}

// HashBody hashes raw body bytes. An empty or absent body hashes to
// EmptyBodyHash.
func HashBody(body []byte) string {
	if len(body) == 0 {
		return EmptyBodyHash
	}
	h := sha256.Sum256(body)
	return hex.EncodeToString(h[:])
}

// Identity is a compact one-line description used in failure messages.
func (r *Request) Identity() string {
	return fmt.Sprintf("%s %s (body %s)", r.Method, r.URL.String(), r.BodyHash)
}
