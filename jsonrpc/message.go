// Copyright 2025 The Go MCP SDK Authors. All rights reserved.
// Use of this source code is governed by an MIT-style
// license that can be found in the LICENSE file.

// Package jsonrpc implements the JSON-RPC 2.0 message algebra and wire
// codec shared by every transport: a Message is one of Request, Response,
// Error, or Notification, matching the tagged union in the MCP core spec.
package jsonrpc

import (
	"fmt"

	"github.com/modelcontextprotocol/go-mcp-core/internal/json"
)

// ProtocolVersion is the JSON-RPC version string carried by every message.
const ProtocolVersion = "2.0"

// A Message is one of *Request, *Response, *Error, or *Notification.
//
// The interface is sealed (isMessage is unexported) so that external
// packages can switch over the four concrete types exhaustively.
type Message interface {
	isMessage()
}

// A Request is a call that expects a Response or Error carrying the same ID.
type Request struct {
	ID     ID              `json:"id"`
	Method string          `json:"method"`
	Params json.RawMessage `json:"params,omitempty"`
}

func (*Request) isMessage() {}

// A Response is a successful reply to a Request.
type Response struct {
	ID     ID              `json:"id"`
	Result json.RawMessage `json:"result"`
}

func (*Response) isMessage() {}

// An Error is a failed reply to a Request. ID is null only when the
// originating request's ID itself could not be parsed.
type Error struct {
	ID    ID         `json:"id"`
	Error ErrorValue `json:"error"`
}

func (*Error) isMessage() {}

// An ErrorValue is the JSON-RPC error object nested inside an [Error]
// message.
type ErrorValue struct {
	Code    int32           `json:"code"`
	Message string          `json:"message"`
	Data    json.RawMessage `json:"data,omitempty"`
}

func (e *ErrorValue) Error() string {
	return fmt.Sprintf("jsonrpc error %d: %s", e.Code, e.Message)
}

// A Notification is a one-way message: it carries no ID and expects no
// reply.
type Notification struct {
	Method string          `json:"method"`
	Params json.RawMessage `json:"params,omitempty"`
}

func (*Notification) isMessage() {}

// Standard JSON-RPC 2.0 error codes, plus the MCP-reserved range used by
// the session engine.
const (
	CodeParseError     int32 = -32700
	CodeInvalidRequest int32 = -32600
	CodeMethodNotFound int32 = -32601
	CodeInvalidParams  int32 = -32602
	CodeInternalError  int32 = -32603

	// CodeCancelled is reserved for a request cancelled by the peer before
	// it produced a reply. Nothing in this module sends or returns it: no
	// reply is sent for a successfully cancelled incoming request.
	CodeCancelled int32 = -32800

	// CodeServerNotInitialized is returned for a request received before
	// the "initialize"/"initialized" handshake has completed (other than
	// the initialize call itself), per the LSP convention the core spec
	// also follows.
	CodeServerNotInitialized int32 = -32002
)

// wireMessage is the union of every field any of the four message kinds
// may carry. Decoding into this struct and then switching on which fields
// are present is how EncodeMessage/DecodeMessage implement the tagged
// union without a discriminator field, matching the JSON-RPC 2.0 wire
// format (which has none).
type wireMessage struct {
	JSONRPC string          `json:"jsonrpc"`
	ID      *ID             `json:"id,omitempty"`
	Method  string          `json:"method,omitempty"`
	Params  json.RawMessage `json:"params,omitempty"`
	Result  json.RawMessage `json:"result,omitempty"`
	Error   *ErrorValue     `json:"error,omitempty"`
}

// EncodeMessage serializes msg to its canonical JSON-RPC 2.0 wire form.
func EncodeMessage(msg Message) ([]byte, error) {
	var w wireMessage
	w.JSONRPC = ProtocolVersion
	switch m := msg.(type) {
	case *Request:
		w.ID = &m.ID
		w.Method = m.Method
		w.Params = m.Params
	case *Response:
		w.ID = &m.ID
		w.Result = m.Result
		if w.Result == nil {
			w.Result = json.RawMessage("null")
		}
	case *Error:
		w.ID = &m.ID
		w.Error = &m.Error
	case *Notification:
		w.Method = m.Method
		w.Params = m.Params
	default:
		return nil, fmt.Errorf("jsonrpc: unknown message type %T", msg)
	}
	return json.Marshal(&w)
}

// DecodeMessage parses data into the concrete Message it represents.
func DecodeMessage(data []byte) (Message, error) {
	var w wireMessage
	if err := json.Unmarshal(data, &w); err != nil {
		return nil, fmt.Errorf("jsonrpc: invalid message: %w", err)
	}
	switch {
	case w.Error != nil:
		var id ID
		if w.ID != nil {
			id = *w.ID
		}
		return &Error{ID: id, Error: *w.Error}, nil
	case w.Method != "" && w.ID != nil:
		return &Request{ID: *w.ID, Method: w.Method, Params: w.Params}, nil
	case w.Method != "":
		return &Notification{Method: w.Method, Params: w.Params}, nil
	case w.ID != nil:
		return &Response{ID: *w.ID, Result: w.Result}, nil
	default:
		return nil, fmt.Errorf("jsonrpc: message has neither method nor id")
	}
}

// ReadBatch parses data as either a single JSON-RPC message or a JSON
// array of messages (a "batch", per the JSON-RPC 2.0 spec), returning the
// messages in wire order. A batch MUST be dispatched as if each element
// had arrived individually, in order; ReadBatch only parses, leaving
// dispatch to the caller.
func ReadBatch(data []byte) ([]Message, error) {
	trimmed := skipSpace(data)
	if len(trimmed) == 0 {
		return nil, fmt.Errorf("jsonrpc: empty message body")
	}
	if trimmed[0] != '[' {
		msg, err := DecodeMessage(data)
		if err != nil {
			return nil, err
		}
		return []Message{msg}, nil
	}
	var raw []json.RawMessage
	if err := json.Unmarshal(data, &raw); err != nil {
		return nil, fmt.Errorf("jsonrpc: invalid batch: %w", err)
	}
	msgs := make([]Message, len(raw))
	for i, r := range raw {
		msg, err := DecodeMessage(r)
		if err != nil {
			return nil, fmt.Errorf("jsonrpc: invalid batch element %d: %w", i, err)
		}
		msgs[i] = msg
	}
	return msgs, nil
}

func skipSpace(b []byte) []byte {
	i := 0
	for i < len(b) {
		switch b[i] {
		case ' ', '\t', '\n', '\r':
			i++
		default:
			return b[i:]
		}
	}
	return nil
}
