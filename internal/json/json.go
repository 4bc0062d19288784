// Copyright 2025 The Go MCP SDK Authors. All rights reserved.
// Use of this source code is governed by the license
// that can be found in the LICENSE file.

// Package json centralizes the JSON codec used across the module, so that
// every package serializes and parses wire data the same way.
package json

import (
	segjson "github.com/segmentio/encoding/json"
)

// Marshal marshals v using the module-wide codec.
func Marshal(v any) ([]byte, error) {
	return segjson.Marshal(v)
}

// Unmarshal parses data into v using the module-wide codec.
//
// segmentio/encoding/json is a drop-in, allocation-lighter replacement for
// encoding/json; semantics (struct tags, omitempty, interface hooks) match
// the standard library, which lets wire types keep ordinary
// MarshalJSON/UnmarshalJSON methods.
func Unmarshal(data []byte, v any) error {
	return segjson.Unmarshal(data, v)
}

// RawMessage is an alias so callers don't need to import both this package
// and encoding/json just to hold an undecoded JSON value.
type RawMessage = segjson.RawMessage
