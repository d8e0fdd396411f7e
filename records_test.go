// Copyright 2025 Marc-Antoine Ruel. All rights reserved.
// Use of this source code is governed under the Apache License, Version 2.0
// that can be found in the LICENSE file.

package reqvcr_test

import (
	"strings"
	"testing"

	"github.com/maruel/reqvcr"
)

func TestRecordsOrphanDetection(t *testing.T) {
	root := t.TempDir()
	prerecorded(t, root, "used", "GET", "https://api.example.com/u", 200, []byte("ok"), nil)
	prerecorded(t, root, "stale/old", "GET", "https://api.example.com/o", 200, []byte("ok"), nil)

	r, err := reqvcr.ScanRecords(root)
	if err != nil {
		t.Fatal(err)
	}
	s, err := r.Install("used", "used", reqvcr.ModeNone)
	if err != nil {
		t.Fatal(err)
	}
	defer s.Uninstall()

	err = r.Close()
	if err == nil {
		t.Fatal("Close() = nil, want orphan error")
	}
	if !strings.Contains(err.Error(), "stale/old.jsonl") {
		t.Errorf("Close() = %q, want mention of stale/old.jsonl", err)
	}
	if strings.Contains(err.Error(), "used.jsonl") {
		t.Errorf("Close() = %q, flags the used cassette", err)
	}
}

func TestRecordsMissingRoot(t *testing.T) {
	r, err := reqvcr.ScanRecords(t.TempDir() + "/never-created")
	if err != nil {
		t.Fatal(err)
	}
	if err := r.Close(); err != nil {
		t.Errorf("Close() = %v, want nil", err)
	}
}
