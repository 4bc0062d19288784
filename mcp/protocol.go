// Copyright 2025 The Go MCP SDK Authors. All rights reserved.
// Use of this source code is governed by an MIT-style
// license that can be found in the LICENSE file.

package mcp

// Protocol types for the MCP base protocol: handshake, capability
// negotiation, progress, cancellation, ping, and logging-level control.
// Tool/prompt/resource/sampling/elicitation catalogue types are out of
// scope; see the package doc comment.

import (
	"maps"
)

// Meta carries the protocol-reserved "_meta" object present on every
// params and result type. Keys are opaque to the engine except for
// progressTokenKey, which the engine itself reads and writes.
type Meta map[string]any

// GetMeta returns m itself, satisfying the metaGetter interface embedded
// by every Params/Result type's promoted Meta field.
func (m Meta) GetMeta() Meta { return m }

// progressTokenKey is the well-known _meta key the core spec's progress
// component (4.G) uses to correlate progress notifications with the
// request that requested them.
const progressTokenKey = "progressToken"

type metaGetter interface {
	GetMeta() Meta
}

type metaSetter interface {
	metaGetter
	setMeta(Meta)
}

func getProgressToken(p metaGetter) (any, bool) {
	m := p.GetMeta()
	if m == nil {
		return nil, false
	}
	t, ok := m[progressTokenKey]
	return t, ok
}

func setProgressToken(p metaSetter, token any) {
	m := p.GetMeta()
	if m == nil {
		m = make(Meta)
		p.setMeta(m)
	}
	m[progressTokenKey] = token
}

// Params is implemented by every request and notification parameter
// type. The interface is sealed (isParams is unexported): callers outside
// this package cannot manufacture new params kinds, matching the core
// spec's closed message algebra.
type Params interface {
	isParams()
	GetMeta() Meta
}

// ProgressParams is implemented by Params types that carry a progress
// token, letting the session engine inject one without a type switch over
// every concrete params type.
type ProgressParams interface {
	Params
	GetProgressToken() any
	SetProgressToken(any)
}

// Result is implemented by every request result type. Sealed like Params.
type Result interface {
	isResult()
}

// Role identifies the sender or recipient of a message in a conversation.
type Role string

const (
	RoleUser      Role = "user"
	RoleAssistant Role = "assistant"
)

// Implementation describes the name and version of an MCP client or
// server.
type Implementation struct {
	Name    string `json:"name"`
	Title   string `json:"title,omitempty"`
	Version string `json:"version"`
}

// RootCapabilities describes a client's support for roots.
type RootCapabilities struct {
	ListChanged bool `json:"listChanged,omitempty"`
}

// SamplingCapabilities describes a client's support for sampling.
type SamplingCapabilities struct{}

// ElicitationCapabilities describes a client's support for elicitation.
type ElicitationCapabilities struct{}

// ClientCapabilities describes the capabilities a client supports. This
// is not a closed set: any client may advertise additional capabilities
// through Experimental and Extensions.
type ClientCapabilities struct {
	// Experimental reports non-standard capabilities the client supports.
	// Callers should not modify the map after assigning it.
	Experimental map[string]any `json:"experimental,omitempty"`
	// Extensions reports extensions the client supports, keyed by
	// "{vendor-prefix}/{extension-name}". Use [ClientCapabilities.AddExtension]
	// to normalize nil settings to an empty object.
	Extensions  map[string]any           `json:"extensions,omitempty"`
	Roots       *RootCapabilities        `json:"roots,omitempty"`
	Sampling    *SamplingCapabilities    `json:"sampling,omitempty"`
	Elicitation *ElicitationCapabilities `json:"elicitation,omitempty"`
}

// AddExtension adds an extension with the given name and settings. A nil
// settings map is normalized to an empty object, since the wire format
// requires an object rather than null.
func (c *ClientCapabilities) AddExtension(name string, settings map[string]any) {
	if c.Extensions == nil {
		c.Extensions = make(map[string]any)
	}
	if settings == nil {
		settings = map[string]any{}
	}
	c.Extensions[name] = settings
}

// clone returns a shallow copy of c; Experimental and Extensions are
// shallow-copied maps, and pointer-typed capability fields are
// shallow-copied structs. Used when handing capabilities to a caller
// after negotiation so they cannot mutate session-owned state.
func (c *ClientCapabilities) clone() *ClientCapabilities {
	if c == nil {
		return nil
	}
	cp := *c
	cp.Experimental = maps.Clone(c.Experimental)
	cp.Extensions = maps.Clone(c.Extensions)
	cp.Roots = shallowClone(c.Roots)
	cp.Sampling = shallowClone(c.Sampling)
	cp.Elicitation = shallowClone(c.Elicitation)
	return &cp
}

func shallowClone[T any](p *T) *T {
	if p == nil {
		return nil
	}
	x := *p
	return &x
}

// LoggingCapabilities describes a server's support for sending log
// messages to the client.
type LoggingCapabilities struct{}

// ServerCapabilities describes the capabilities a server supports. Not a
// closed set, as with [ClientCapabilities].
type ServerCapabilities struct {
	Experimental map[string]any       `json:"experimental,omitempty"`
	Extensions   map[string]any       `json:"extensions,omitempty"`
	Logging      *LoggingCapabilities `json:"logging,omitempty"`
}

// AddExtension adds an extension with the given name and settings, with
// the same nil-settings normalization as [ClientCapabilities.AddExtension].
func (c *ServerCapabilities) AddExtension(name string, settings map[string]any) {
	if c.Extensions == nil {
		c.Extensions = make(map[string]any)
	}
	if settings == nil {
		settings = map[string]any{}
	}
	c.Extensions[name] = settings
}

func (c *ServerCapabilities) clone() *ServerCapabilities {
	if c == nil {
		return nil
	}
	cp := *c
	cp.Experimental = maps.Clone(c.Experimental)
	cp.Extensions = maps.Clone(c.Extensions)
	cp.Logging = shallowClone(c.Logging)
	return &cp
}

// InitializeParams is sent by the client to begin the handshake.
type InitializeParams struct {
	Meta            `json:"_meta,omitempty"`
	Capabilities    *ClientCapabilities `json:"capabilities"`
	ClientInfo      *Implementation     `json:"clientInfo"`
	ProtocolVersion string              `json:"protocolVersion"`
}

func (p *InitializeParams) isParams()              {}
func (p *InitializeParams) GetProgressToken() any  { t, _ := getProgressToken(p); return t }
func (p *InitializeParams) SetProgressToken(t any) { setProgressToken(p, t) }
func (p *InitializeParams) setMeta(m Meta)         { p.Meta = m }

// InitializeResult is the server's reply completing the handshake's first
// step.
type InitializeResult struct {
	Meta            `json:"_meta,omitempty"`
	Capabilities    *ServerCapabilities `json:"capabilities"`
	Instructions    string              `json:"instructions,omitempty"`
	ProtocolVersion string              `json:"protocolVersion"`
	ServerInfo      *Implementation     `json:"serverInfo"`
}

func (*InitializeResult) isResult() {}

// InitializedParams is sent by the client as the handshake's second step,
// once it has processed the InitializeResult.
type InitializedParams struct {
	Meta `json:"_meta,omitempty"`
}

func (p *InitializedParams) isParams()              {}
func (p *InitializedParams) GetProgressToken() any  { t, _ := getProgressToken(p); return t }
func (p *InitializedParams) SetProgressToken(t any) { setProgressToken(p, t) }
func (p *InitializedParams) setMeta(m Meta)         { p.Meta = m }

// PingParams carries no payload; a Ping round-trip only exercises request
// ID correlation and session liveness.
type PingParams struct {
	Meta `json:"_meta,omitempty"`
}

func (p *PingParams) isParams()              {}
func (p *PingParams) GetProgressToken() any  { t, _ := getProgressToken(p); return t }
func (p *PingParams) SetProgressToken(t any) { setProgressToken(p, t) }
func (p *PingParams) setMeta(m Meta)         { p.Meta = m }

// PingResult is the empty reply to a ping request.
type PingResult struct {
	Meta `json:"_meta,omitempty"`
}

func (*PingResult) isResult() {}

// ProgressNotificationParams reports incremental progress on a
// long-running request, correlated by ProgressToken.
type ProgressNotificationParams struct {
	Meta          `json:"_meta,omitempty"`
	ProgressToken any     `json:"progressToken"`
	Message       string  `json:"message,omitempty"`
	Progress      float64 `json:"progress"`
	// Total is the total amount of work, if known; zero means unknown.
	Total float64 `json:"total,omitempty"`
}

func (p *ProgressNotificationParams) isParams()      {}
func (p *ProgressNotificationParams) setMeta(m Meta) { p.Meta = m }

// CancelledParams is the payload of a cancellation notification: it names
// the request being cancelled, in whichever direction it was originally
// sent.
type CancelledParams struct {
	Meta      `json:"_meta,omitempty"`
	RequestID any    `json:"requestId"`
	Reason    string `json:"reason,omitempty"`
}

func (p *CancelledParams) isParams()      {}
func (p *CancelledParams) setMeta(m Meta) { p.Meta = m }

// LoggingLevel is a syslog-style severity, per RFC 5424 section 6.2.1.
type LoggingLevel string

const (
	LevelDebug     LoggingLevel = "debug"
	LevelInfo      LoggingLevel = "info"
	LevelNotice    LoggingLevel = "notice"
	LevelWarning   LoggingLevel = "warning"
	LevelError     LoggingLevel = "error"
	LevelCritical  LoggingLevel = "critical"
	LevelAlert     LoggingLevel = "alert"
	LevelEmergency LoggingLevel = "emergency"
)

var levelOrder = map[LoggingLevel]int{
	LevelDebug: 0, LevelInfo: 1, LevelNotice: 2, LevelWarning: 3,
	LevelError: 4, LevelCritical: 5, LevelAlert: 6, LevelEmergency: 7,
}

// atLeast reports whether level is at least as severe as min.
func (level LoggingLevel) atLeast(min LoggingLevel) bool {
	return levelOrder[level] >= levelOrder[min]
}

// SetLoggingLevelParams requests that the server only forward log
// messages at or above Level.
type SetLoggingLevelParams struct {
	Meta  `json:"_meta,omitempty"`
	Level LoggingLevel `json:"level"`
}

func (p *SetLoggingLevelParams) isParams()              {}
func (p *SetLoggingLevelParams) GetProgressToken() any  { t, _ := getProgressToken(p); return t }
func (p *SetLoggingLevelParams) SetProgressToken(t any) { setProgressToken(p, t) }
func (p *SetLoggingLevelParams) setMeta(m Meta)         { p.Meta = m }

// SetLoggingLevelResult is the empty reply to a SetLoggingLevelParams
// request.
type SetLoggingLevelResult struct {
	Meta `json:"_meta,omitempty"`
}

func (*SetLoggingLevelResult) isResult() {}

// LoggingMessageParams is a log record forwarded from the server to the
// client, gated by the level set with SetLoggingLevelParams.
type LoggingMessageParams struct {
	Meta   `json:"_meta,omitempty"`
	Data   any          `json:"data"`
	Level  LoggingLevel `json:"level"`
	Logger string       `json:"logger,omitempty"`
}

func (p *LoggingMessageParams) isParams()      {}
func (p *LoggingMessageParams) setMeta(m Meta) { p.Meta = m }

// Method and notification names on the wire. Unexported: callers use the
// typed request/session methods, not raw method strings.
const (
	methodInitialize      = "initialize"
	notificationInitialized = "notifications/initialized"
	methodPing            = "ping"
	notificationProgress  = "notifications/progress"

	// notificationCancelled is the wire method this implementation sends
	// for cancellation. It matches the real MCP base protocol's method
	// name.
	notificationCancelled = "notifications/cancelled"

	// notificationCancelledAlias is accepted on ingress as equivalent to
	// notificationCancelled, for compatibility with peers built against
	// an older pre-standardization draft. It is never sent.
	notificationCancelledAlias = "$/cancelled"

	methodSetLevel             = "logging/setLevel"
	notificationLoggingMessage = "notifications/message"
)
