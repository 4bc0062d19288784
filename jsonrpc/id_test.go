// Copyright 2025 The Go MCP SDK Authors. All rights reserved.
// Use of this source code is governed by an MIT-style
// license that can be found in the LICENSE file.

package jsonrpc

import (
	"testing"

	"github.com/google/go-cmp/cmp"
)

func TestID_RoundTrip(t *testing.T) {
	tests := []struct {
		name string
		id   ID
		want string
	}{
		{"int", Int64ID(7), `7`},
		{"string", StringID("7"), `"7"`},
		{"zero", ID{}, `null`},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			data, err := tt.id.MarshalJSON()
			if err != nil {
				t.Fatalf("MarshalJSON() error: %v", err)
			}
			if string(data) != tt.want {
				t.Fatalf("MarshalJSON() = %s, want %s", data, tt.want)
			}
			var got ID
			if err := got.UnmarshalJSON(data); err != nil {
				t.Fatalf("UnmarshalJSON() error: %v", err)
			}
			if !got.Equal(tt.id) {
				t.Fatalf("round-tripped ID = %v, want %v", got, tt.id)
			}
		})
	}
}

func TestID_IntAndStringAreDistinct(t *testing.T) {
	intID := Int64ID(7)
	strID := StringID("7")
	if intID.Equal(strID) {
		t.Fatal("Int64ID(7) must not equal StringID(\"7\")")
	}
	if diff := cmp.Diff(intID.Raw(), any(int64(7))); diff != "" {
		t.Errorf("Int64ID(7).Raw() mismatch (-got +want):\n%s", diff)
	}
	if diff := cmp.Diff(strID.Raw(), any("7")); diff != "" {
		t.Errorf("StringID(\"7\").Raw() mismatch (-got +want):\n%s", diff)
	}
}

func TestID_ZeroValueIsInvalid(t *testing.T) {
	var id ID
	if id.IsValid() {
		t.Fatal("zero ID must be invalid")
	}
	if Int64ID(0).IsValid() == false {
		t.Fatal("Int64ID(0) must be valid despite holding the zero integer")
	}
}

func TestID_UnmarshalRejectsObject(t *testing.T) {
	var id ID
	if err := id.UnmarshalJSON([]byte(`{}`)); err == nil {
		t.Fatal("UnmarshalJSON(object) should fail: an id must be a string, integer, or null")
	}
}
