// Copyright 2025 Marc-Antoine Ruel. All rights reserved.
// Use of this source code is governed under the Apache License, Version 2.0
// that can be found in the LICENSE file.

package cassette

import "github.com/invopop/jsonschema"

// Schema returns the JSON schema of one cassette line. External tooling
// (recording servers, cassette linters) validates against it.
func Schema() *jsonschema.Schema {
	r := jsonschema.Reflector{Anonymous: true, DoNotReference: true}
	return r.Reflect(&Entry{})
}

// JSONSchema describes a header value as stored: a string for one value, an
// array of strings for several.
func (HeaderValue) JSONSchema() *jsonschema.Schema {
	return &jsonschema.Schema{OneOf: []*jsonschema.Schema{
		{Type: "string"},
		{Type: "array", Items: &jsonschema.Schema{Type: "string"}},
	}}
}
