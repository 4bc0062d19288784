// Copyright 2025 The Go MCP SDK Authors. All rights reserved.
// Use of this source code is governed by an MIT-style
// license that can be found in the LICENSE file.

package jsonrpc

import (
	"fmt"

	"github.com/modelcontextprotocol/go-mcp-core/internal/json"
)

// An ID is a JSON-RPC 2.0 request identifier: either a string or a signed
// 64-bit integer. The zero ID is invalid; use [Int64ID] or [StringID] to
// construct one, or check [ID.IsValid].
//
// The integer 7 and the string "7" are distinct IDs, matching the wire
// semantics required by the JSON-RPC 2.0 spec.
type ID struct {
	str    string
	num    int64
	hasStr bool
	valid  bool
}

// Int64ID returns an ID holding the integer n.
func Int64ID(n int64) ID { return ID{num: n, valid: true} }

// StringID returns an ID holding the string s.
func StringID(s string) ID { return ID{str: s, hasStr: true, valid: true} }

// IsValid reports whether id was constructed by [Int64ID] or [StringID]
// (as opposed to the zero value).
func (id ID) IsValid() bool { return id.valid }

// IsString reports whether id holds a string value.
func (id ID) IsString() bool { return id.valid && id.hasStr }

// Raw returns the underlying value: a string, an int64, or nil for an
// invalid ID.
func (id ID) Raw() any {
	switch {
	case !id.valid:
		return nil
	case id.hasStr:
		return id.str
	default:
		return id.num
	}
}

// String renders the ID for logging. It is not the wire representation.
func (id ID) String() string {
	switch {
	case !id.valid:
		return "<invalid>"
	case id.hasStr:
		return fmt.Sprintf("%q", id.str)
	default:
		return fmt.Sprintf("%d", id.num)
	}
}

// MarshalJSON implements json.Marshaler. Integer IDs are written without a
// decimal point; string IDs are written as JSON strings.
func (id ID) MarshalJSON() ([]byte, error) {
	switch {
	case !id.valid:
		return []byte("null"), nil
	case id.hasStr:
		return json.Marshal(id.str)
	default:
		return json.Marshal(id.num)
	}
}

// UnmarshalJSON implements json.Unmarshaler, accepting a JSON string,
// a JSON integer, or null.
func (id *ID) UnmarshalJSON(data []byte) error {
	if string(data) == "null" {
		*id = ID{}
		return nil
	}
	var s string
	if err := json.Unmarshal(data, &s); err == nil {
		*id = StringID(s)
		return nil
	}
	var n int64
	if err := json.Unmarshal(data, &n); err != nil {
		return fmt.Errorf("jsonrpc: id must be a string, integer, or null: %w", err)
	}
	*id = Int64ID(n)
	return nil
}

// Equal reports whether id and other refer to the same ID. Equality is
// exact per-kind: Int64ID(7) does not equal StringID("7").
func (id ID) Equal(other ID) bool {
	if id.valid != other.valid {
		return false
	}
	if !id.valid {
		return true
	}
	if id.hasStr != other.hasStr {
		return false
	}
	if id.hasStr {
		return id.str == other.str
	}
	return id.num == other.num
}
