// Copyright 2025 The Go MCP SDK Authors. All rights reserved.
// Use of this source code is governed by an MIT-style
// license that can be found in the LICENSE file.

package mcp

import (
	"sync/atomic"

	"github.com/modelcontextprotocol/go-mcp-core/internal/jsonrpc2"
	"github.com/modelcontextprotocol/go-mcp-core/jsonrpc"
)

// sessionState is the disposal state machine every [ServerSession] and
// [ClientSession] drives through exactly once, in order. Transitions are
// monotonic: a session never moves backward.
type sessionState int32

const (
	stateCreated sessionState = iota
	stateConnecting
	stateHandshakePending
	stateReady
	stateDisposing
	stateDisposed
)

// lifecycle tracks a session's position in the disposal state machine and
// makes disposal idempotent: only the goroutine that wins the
// stateDisposing transition actually tears the session down.
type lifecycle struct {
	state atomic.Int32
}

func (l *lifecycle) get() sessionState {
	return sessionState(l.state.Load())
}

// advance moves the state forward to to. It never moves the state
// backward: if the session is already at or past to (a repeated
// initialize, or a notification handled after disposal began), advance
// does nothing.
func (l *lifecycle) advance(to sessionState) {
	for {
		cur := l.state.Load()
		if sessionState(cur) >= to {
			return
		}
		if l.state.CompareAndSwap(cur, int32(to)) {
			return
		}
	}
}

// beginDispose reports whether the caller won the race to dispose the
// session; only one caller, ever, receives true.
func (l *lifecycle) beginDispose() bool {
	for {
		cur := l.state.Load()
		if sessionState(cur) >= stateDisposing {
			return false
		}
		if l.state.CompareAndSwap(cur, int32(stateDisposing)) {
			return true
		}
	}
}

func (l *lifecycle) finishDispose() {
	l.state.Store(int32(stateDisposed))
}

// requireReady enforces the core spec's invariant that, aside from the
// initialize reply itself, no request handler replies before the
// handshake has completed.
func (l *lifecycle) requireReady() error {
	if l.get() != stateReady {
		return &jsonrpc2.RemoteError{
			Code:    jsonrpc.CodeServerNotInitialized,
			Message: "session has not completed the initialize handshake",
		}
	}
	return nil
}
