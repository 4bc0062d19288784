// Copyright 2025 The Go MCP SDK Authors. All rights reserved.
// Use of this source code is governed by an MIT-style
// license that can be found in the LICENSE file.

package mcp

import (
	"context"
	"errors"
	"sync"
)

var ErrNoProgressToken = errors.New("no progress token")

// progressTracker correlates incoming progress notifications with the
// outgoing call that requested them, by the token minted for that call.
// One exists per session; it is consulted by the session's
// notifications/progress handler.
type progressTracker struct {
	mu       sync.Mutex
	handlers map[string]func(*ProgressNotificationParams)
}

func newProgressTracker() *progressTracker {
	return &progressTracker{handlers: make(map[string]func(*ProgressNotificationParams))}
}

// register installs a callback for token and returns a function that
// removes it; callers must call the removal function once the
// correlated call completes, successfully or not, so the map does not
// grow unboundedly across a long-lived session.
func (t *progressTracker) register(token string, h func(*ProgressNotificationParams)) (unregister func()) {
	t.mu.Lock()
	t.handlers[token] = h
	t.mu.Unlock()
	return func() {
		t.mu.Lock()
		delete(t.handlers, token)
		t.mu.Unlock()
	}
}

// dispatch invokes the handler registered for p's token, if any.
//
// Only string tokens are ever registered, since register's caller always
// mints one via randText(); an inbound progressToken encoded as a JSON
// number (the wire format also allows int, per the core spec) has
// nothing to correlate against and is dropped here.
func (t *progressTracker) dispatch(p *ProgressNotificationParams) {
	token, ok := p.ProgressToken.(string)
	if !ok {
		return
	}
	t.mu.Lock()
	h := t.handlers[token]
	t.mu.Unlock()
	if h != nil {
		h(p)
	}
}

// Progress reports progress on the current request.
//
// An error is returned if sending progress failed. If there was no progress
// token, this error is ErrNoProgressToken.
func (r *ServerRequest[P]) Progress(ctx context.Context, msg string, progress, total float64) error {
	m := r.Params.GetMeta()
	token, ok := m[progressTokenKey]
	if !ok {
		return ErrNoProgressToken
	}
	params := &ProgressNotificationParams{
		Message:       msg,
		ProgressToken: token,
		Progress:      progress,
		Total:         total,
	}
	return r.Session.NotifyProgress(ctx, params)
}
