// Copyright 2025 Marc-Antoine Ruel. All rights reserved.
// Use of this source code is governed under the Apache License, Version 2.0
// that can be found in the LICENSE file.

package reqvcr

import (
	"bytes"
	"fmt"
	"io"
	"net/http"
	"sync"

	"github.com/maruel/reqvcr/cassette"
	"github.com/maruel/reqvcr/fingerprint"
	"github.com/maruel/reqvcr/matcher"
	"github.com/maruel/reqvcr/recorder"
	"github.com/maruel/reqvcr/redact"
)

// Stub is a named interception binding installed for one test.
//
// It implements http.RoundTripper. A stub owns its replay cursor; the
// cassette file may be shared for read across concurrent stubs, writes are
// serialized per path by the store.
type Stub struct {
	name  string
	path  string
	mode  Mode
	match matcher.Func
	rec   *recorder.Recorder
	isNew bool

	mu      sync.Mutex
	entries []*cassette.Entry
	cursor  int
	played  int
}

// Name returns the stub name.
func (s *Stub) Name() string {
	return s.name
}

// CassettePath returns the resolved cassette file path.
func (s *Stub) CassettePath() string {
	return s.path
}

// IsNewCassette reports whether the cassette file was absent at install
// time.
func (s *Stub) IsNewCassette() bool {
	return s.isNew
}

// Played returns how many entries were replayed so far.
func (s *Stub) Played() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.played
}

// Client returns an http.Client using the stub as its transport.
func (s *Stub) Client() *http.Client {
	return &http.Client{Transport: s}
}

// Uninstall removes the stub from the process-wide table. Call it at test
// teardown; state never leaks across tests.
func (s *Stub) Uninstall() {
	stubsMu.Lock()
	if stubs[s.name] == s {
		delete(stubs, s.name)
	}
	stubsMu.Unlock()
}

// RoundTrip dispatches one intercepted request among replay, record and
// miss according to the record mode.
func (s *Stub) RoundTrip(req *http.Request) (*http.Response, error) {
	body, err := readBody(req)
	if err != nil {
		return nil, err
	}
	fp := fingerprint.From(req.Method, req.URL, req.Header, body)

	if s.mode == ModeAll {
		return s.record(req, fp, body)
	}
	if e := s.next(fp); e != nil {
		resp, err := e.HTTPResponse()
		if err == nil {
			resp.Request = req
		}
		return resp, err
	}
	switch {
	case s.mode == ModeNewEpisodes:
		return s.record(req, fp, body)
	case s.mode == ModeOnce && s.isNew:
		return s.record(req, fp, body)
	}
	return nil, s.missError(fp)
}

// readBody drains the request body and replaces it with an equivalent
// reader, so the request stays forwardable.
func readBody(req *http.Request) ([]byte, error) {
	if req.Body == nil || req.Body == http.NoBody {
		return nil, nil
	}
	b, err := io.ReadAll(req.Body)
	_ = req.Body.Close()
	if err != nil {
		return nil, err
	}
	req.Body = io.NopCloser(bytes.NewReader(b))
	return b, nil
}

// next finds the first entry satisfying the predicate, scanning from the
// cursor first. A hit there consumes the entry and advances the cursor. When
// nothing at or after the cursor matches, a fallback pass over the already
// consumed prefix lets idempotent requests replay again without moving the
// cursor.
func (s *Stub) next(fp *fingerprint.Request) *cassette.Entry {
	s.mu.Lock()
	defer s.mu.Unlock()
	for i := s.cursor; i < len(s.entries); i++ {
		if s.match(fp, s.entries[i]) {
			s.cursor = i + 1
			s.played++
			return s.entries[i]
		}
	}
	for i := 0; i < s.cursor && i < len(s.entries); i++ {
		if s.match(fp, s.entries[i]) {
			s.played++
			return s.entries[i]
		}
	}
	return nil
}

// record forwards the request upstream, appends the redacted exchange to the
// cassette and returns the live response. On transport failure nothing is
// appended.
func (s *Stub) record(req *http.Request, fp *fingerprint.Request, body []byte) (*http.Response, error) {
	out := req.Clone(req.Context())
	if body != nil {
		out.Body = io.NopCloser(bytes.NewReader(body))
	}
	resp, err := s.rec.Do(out)
	if err != nil {
		return nil, err
	}
	e := &cassette.Entry{
		Req: cassette.Request{
			Method:   fp.Method,
			URL:      fp.URL.String(),
			Headers:  redact.RequestHeaders(req.Header),
			BodyHash: fp.BodyHash,
		},
		Resp: cassette.Response{
			Status:  resp.Status,
			Headers: redact.ResponseHeaders(resp.Headers),
		},
	}
	e.Resp.SetBody(resp.Body)
	if err := cassette.Append(s.path, e); err != nil {
		return nil, err
	}
	s.mu.Lock()
	s.entries = append(s.entries, e)
	s.mu.Unlock()
	return liveResponse(req, resp), nil
}

// liveResponse rebuilds an http.Response for the caller from the fully read
// upstream response.
func liveResponse(req *http.Request, resp *recorder.Response) *http.Response {
	return &http.Response{
		Status:        fmt.Sprintf("%d %s", resp.Status, http.StatusText(resp.Status)),
		StatusCode:    resp.Status,
		Proto:         "HTTP/1.1",
		ProtoMajor:    1,
		ProtoMinor:    1,
		Header:        resp.Headers.Clone(),
		Body:          io.NopCloser(bytes.NewReader(resp.Body)),
		ContentLength: int64(len(resp.Body)),
		Request:       req,
	}
}

// missError snapshots up to 3 unconsumed entries for the diagnostic dump.
func (s *Stub) missError(fp *fingerprint.Request) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	var unmatched []*cassette.Entry
	for i := s.cursor; i < len(s.entries) && len(unmatched) < 3; i++ {
		unmatched = append(unmatched, s.entries[i])
	}
	return &CassetteMissError{
		Stub:      s.name,
		Cassette:  s.path,
		Request:   fp,
		Unmatched: unmatched,
	}
}
