// Copyright 2025 Marc-Antoine Ruel. All rights reserved.
// Use of this source code is governed under the Apache License, Version 2.0
// that can be found in the LICENSE file.

package reqvcr

import (
	"fmt"
	"io/fs"
	"maps"
	"os"
	"path/filepath"
	"slices"
	"strings"
	"sync"
)

// Records tracks every cassette under a root across a whole test suite, so
// recordings that no test installs anymore get flagged instead of rotting in
// the tree.
type Records struct {
	root        string
	mu          sync.Mutex
	preexisting map[string]struct{}
	used        map[string]struct{}
}

// ScanRecords inventories the cassette files currently under root. A missing
// root is an empty inventory.
func ScanRecords(root string) (*Records, error) {
	r := &Records{root: root, preexisting: map[string]struct{}{}, used: map[string]struct{}{}}
	err := filepath.WalkDir(root, func(path string, d fs.DirEntry, err error) error {
		if err == nil && !d.IsDir() && strings.HasSuffix(path, ".jsonl") {
			r.preexisting[path[len(root)+1:]] = struct{}{}
		}
		return err
	})
	if os.IsNotExist(err) {
		return r, nil
	}
	return r, err
}

// Install is like the package-level Install rooted at the inventory root,
// marking the cassette as used.
func (r *Records) Install(name, cassetteName string, mode Mode, opts ...Option) (*Stub, error) {
	r.mu.Lock()
	r.used[filepath.FromSlash(cassetteName)+".jsonl"] = struct{}{}
	r.mu.Unlock()
	return Install(name, cassetteName, mode, append([]Option{WithRoot(r.root)}, opts...)...)
}

// Close fails when cassettes remain that no test used.
func (r *Records) Close() error {
	r.mu.Lock()
	defer r.mu.Unlock()
	for f := range r.used {
		delete(r.preexisting, f)
	}
	if len(r.preexisting) != 0 {
		return &orphanedError{root: r.root, names: slices.Sorted(maps.Keys(r.preexisting))}
	}
	return nil
}

type orphanedError struct {
	root  string
	names []string
}

func (e *orphanedError) Error() string {
	return fmt.Sprintf("found orphaned cassettes in %s:\n- %s", e.root, strings.Join(e.names, "\n- "))
}
