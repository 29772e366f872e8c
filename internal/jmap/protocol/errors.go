package protocol

import (
	"encoding/json"
	"errors"
	"fmt"
)

// Expected-resource-missing sentinels.
var (
	// ErrNoAccount is returned when the session lists no accounts.
	ErrNoAccount = errors.New("jmap: no account available")

	// ErrNoDraftsMailbox is returned when no mailbox has the drafts role.
	ErrNoDraftsMailbox = errors.New("jmap: no mailbox with role drafts")

	// ErrNotFound is returned when a requested entity does not exist.
	ErrNotFound = errors.New("jmap: not found")

	// ErrNoIdentity is returned when the account has no sending identity.
	ErrNoIdentity = errors.New("jmap: no sending identity")
)

// TransportError reports a non-2xx HTTP response. It is never retried by
// the transport itself.
type TransportError struct {
	StatusCode int
	Body       string
}

func (e *TransportError) Error() string {
	return fmt.Sprintf("jmap: http status %d: %s", e.StatusCode, e.Body)
}

// SessionError reports a malformed or unreachable session resource.
type SessionError struct {
	Reason string
	Err    error
}

func (e *SessionError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("jmap: session %s: %v", e.Reason, e.Err)
	}
	return "jmap: session " + e.Reason
}

func (e *SessionError) Unwrap() error { return e.Err }

// ProtocolError reports a malformed response envelope, such as a missing
// methodResponses array or an uncorrelatable call ID.
type ProtocolError struct {
	Reason string
}

func (e *ProtocolError) Error() string {
	return "jmap: protocol error: " + e.Reason
}

// MethodError is a server-reported method-level error: a response entry
// whose method name is the "error" sentinel. Raw carries the original
// server payload for diagnostics.
type MethodError struct {
	CallId      string          `json:"-"`
	Type        string          `json:"type"`
	Description string          `json:"description,omitempty"`
	Raw         json.RawMessage `json:"-"`
}

func (e *MethodError) Error() string {
	if e.Description != "" {
		return fmt.Sprintf("jmap: method error %q: %s (call %s)", e.Type, e.Description, e.CallId)
	}
	return fmt.Sprintf("jmap: method error %q (call %s)", e.Type, e.CallId)
}
