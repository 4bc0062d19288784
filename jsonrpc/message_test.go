// Copyright 2025 The Go MCP SDK Authors. All rights reserved.
// Use of this source code is governed by an MIT-style
// license that can be found in the LICENSE file.

package jsonrpc

import (
	"testing"

	"github.com/google/go-cmp/cmp"
	"github.com/google/go-cmp/cmp/cmpopts"

	"github.com/modelcontextprotocol/go-mcp-core/internal/json"
)

func TestEncodeDecodeMessage_Request(t *testing.T) {
	req := &Request{ID: Int64ID(1), Method: "ping", Params: json.RawMessage(`{"a":1}`)}
	data, err := EncodeMessage(req)
	if err != nil {
		t.Fatalf("EncodeMessage() error: %v", err)
	}
	got, err := DecodeMessage(data)
	if err != nil {
		t.Fatalf("DecodeMessage() error: %v", err)
	}
	gotReq, ok := got.(*Request)
	if !ok {
		t.Fatalf("DecodeMessage() returned %T, want *Request", got)
	}
	if diff := cmp.Diff(req, gotReq, cmpopts.IgnoreUnexported(ID{})); diff != "" {
		t.Errorf("round-tripped Request mismatch (-want +got):\n%s", diff)
	}
	if !gotReq.ID.Equal(req.ID) {
		t.Errorf("round-tripped ID = %v, want %v", gotReq.ID, req.ID)
	}
}

func TestEncodeDecodeMessage_Notification(t *testing.T) {
	n := &Notification{Method: "notifications/progress", Params: json.RawMessage(`{"progress":1}`)}
	data, err := EncodeMessage(n)
	if err != nil {
		t.Fatalf("EncodeMessage() error: %v", err)
	}
	got, err := DecodeMessage(data)
	if err != nil {
		t.Fatalf("DecodeMessage() error: %v", err)
	}
	gotN, ok := got.(*Notification)
	if !ok {
		t.Fatalf("DecodeMessage() returned %T, want *Notification", got)
	}
	if gotN.Method != n.Method || string(gotN.Params) != string(n.Params) {
		t.Fatalf("round-tripped Notification = %+v, want %+v", gotN, n)
	}
}

func TestEncodeDecodeMessage_Response(t *testing.T) {
	resp := &Response{ID: StringID("abc"), Result: json.RawMessage(`{"ok":true}`)}
	data, err := EncodeMessage(resp)
	if err != nil {
		t.Fatalf("EncodeMessage() error: %v", err)
	}
	got, err := DecodeMessage(data)
	if err != nil {
		t.Fatalf("DecodeMessage() error: %v", err)
	}
	gotResp, ok := got.(*Response)
	if !ok {
		t.Fatalf("DecodeMessage() returned %T, want *Response", got)
	}
	if !gotResp.ID.Equal(resp.ID) || string(gotResp.Result) != string(resp.Result) {
		t.Fatalf("round-tripped Response = %+v, want %+v", gotResp, resp)
	}
}

func TestEncodeDecodeMessage_Error(t *testing.T) {
	errMsg := &Error{ID: Int64ID(3), Error: ErrorValue{Code: CodeInvalidParams, Message: "bad params"}}
	data, err := EncodeMessage(errMsg)
	if err != nil {
		t.Fatalf("EncodeMessage() error: %v", err)
	}
	got, err := DecodeMessage(data)
	if err != nil {
		t.Fatalf("DecodeMessage() error: %v", err)
	}
	gotErr, ok := got.(*Error)
	if !ok {
		t.Fatalf("DecodeMessage() returned %T, want *Error", got)
	}
	if !gotErr.ID.Equal(errMsg.ID) || gotErr.Error.Code != errMsg.Error.Code || gotErr.Error.Message != errMsg.Error.Message {
		t.Fatalf("round-tripped Error = %+v, want %+v", gotErr, errMsg)
	}
}

func TestDecodeMessage_RejectsMessageWithNeitherMethodNorID(t *testing.T) {
	if _, err := DecodeMessage([]byte(`{"jsonrpc":"2.0"}`)); err == nil {
		t.Fatal("DecodeMessage() should reject a message with neither method nor id")
	}
}

func TestReadBatch_SingleMessage(t *testing.T) {
	data := []byte(`{"jsonrpc":"2.0","id":1,"method":"ping"}`)
	msgs, err := ReadBatch(data)
	if err != nil {
		t.Fatalf("ReadBatch() error: %v", err)
	}
	if len(msgs) != 1 {
		t.Fatalf("ReadBatch() returned %d messages, want 1", len(msgs))
	}
	if _, ok := msgs[0].(*Request); !ok {
		t.Fatalf("ReadBatch()[0] = %T, want *Request", msgs[0])
	}
}

func TestReadBatch_Array(t *testing.T) {
	data := []byte(`[
		{"jsonrpc":"2.0","id":1,"method":"ping"},
		{"jsonrpc":"2.0","method":"notifications/progress"}
	]`)
	msgs, err := ReadBatch(data)
	if err != nil {
		t.Fatalf("ReadBatch() error: %v", err)
	}
	if len(msgs) != 2 {
		t.Fatalf("ReadBatch() returned %d messages, want 2", len(msgs))
	}
	if _, ok := msgs[0].(*Request); !ok {
		t.Errorf("ReadBatch()[0] = %T, want *Request", msgs[0])
	}
	if _, ok := msgs[1].(*Notification); !ok {
		t.Errorf("ReadBatch()[1] = %T, want *Notification", msgs[1])
	}
}

func TestReadBatch_EmptyBodyIsError(t *testing.T) {
	if _, err := ReadBatch([]byte("   ")); err == nil {
		t.Fatal("ReadBatch() on an empty body should return an error")
	}
}

func TestReadBatch_InvalidBatchElement(t *testing.T) {
	data := []byte(`[{"jsonrpc":"2.0"}]`)
	if _, err := ReadBatch(data); err == nil {
		t.Fatal("ReadBatch() should reject a batch element with neither method nor id")
	}
}
