// Package protocol provides JMAP method request/response handling.
package protocol

import (
	"encoding/json"
	"fmt"
)

// Request represents a JMAP API request.
// See RFC 8620 Section 3.2.
type Request struct {
	// Using contains the capability URIs used in this request. It must
	// be a superset of the capabilities required by the method calls;
	// the client does not validate this locally, the server rejects
	// envelopes that violate it.
	Using []string `json:"using"`

	// MethodCalls contains the method invocations, in order. Order is
	// significant: back-references resolve against earlier calls in the
	// same envelope.
	MethodCalls []MethodCall `json:"methodCalls"`

	// CreatedIds maps creation IDs to server-assigned IDs.
	CreatedIds map[Id]Id `json:"createdIds,omitempty"`
}

// Response represents a JMAP API response.
type Response struct {
	// MethodResponses contains the method responses.
	MethodResponses []MethodResponse `json:"methodResponses"`

	// CreatedIds maps creation IDs to server-assigned IDs.
	CreatedIds map[Id]Id `json:"createdIds,omitempty"`

	// SessionState is the new session state if changed.
	SessionState string `json:"sessionState,omitempty"`
}

// Get returns the method response with the given call ID. Responses are
// correlated by call ID rather than by position; a server may in
// principle reorder them.
func (r *Response) Get(callId string) (*MethodResponse, bool) {
	for i := range r.MethodResponses {
		if r.MethodResponses[i].CallId == callId {
			return &r.MethodResponses[i], true
		}
	}
	return nil, false
}

// MethodCall represents a single method invocation.
// Format: [name, arguments, methodCallId]
type MethodCall struct {
	Name      string
	Arguments interface{}
	CallId    string
}

// MarshalJSON implements custom JSON marshaling for MethodCall.
func (m MethodCall) MarshalJSON() ([]byte, error) {
	return json.Marshal([]interface{}{m.Name, m.Arguments, m.CallId})
}

// UnmarshalJSON implements custom JSON unmarshaling for MethodCall.
func (m *MethodCall) UnmarshalJSON(data []byte) error {
	var raw []json.RawMessage
	if err := json.Unmarshal(data, &raw); err != nil {
		return err
	}
	if len(raw) != 3 {
		return fmt.Errorf("method call has %d elements, want 3", len(raw))
	}
	if err := json.Unmarshal(raw[0], &m.Name); err != nil {
		return err
	}
	m.Arguments = raw[1] // Keep as raw JSON
	if err := json.Unmarshal(raw[2], &m.CallId); err != nil {
		return err
	}
	return nil
}

// MethodResponse represents a single method response.
// Format: [name, arguments, methodCallId]
type MethodResponse struct {
	Name      string
	Arguments json.RawMessage
	CallId    string
}

// UnmarshalJSON implements custom JSON unmarshaling for MethodResponse.
func (m *MethodResponse) UnmarshalJSON(data []byte) error {
	var raw []json.RawMessage
	if err := json.Unmarshal(data, &raw); err != nil {
		return err
	}
	if len(raw) != 3 {
		return fmt.Errorf("method response has %d elements, want 3", len(raw))
	}
	if err := json.Unmarshal(raw[0], &m.Name); err != nil {
		return err
	}
	m.Arguments = raw[1]
	if err := json.Unmarshal(raw[2], &m.CallId); err != nil {
		return err
	}
	return nil
}

// IsError reports whether the response carries the method-level error
// sentinel name.
func (m *MethodResponse) IsError() bool {
	return m.Name == ErrorMethodName
}

// AsMethodError parses the response arguments as a method-level error.
// The returned error carries the server error type and description.
func (m *MethodResponse) AsMethodError() *MethodError {
	me := &MethodError{CallId: m.CallId, Raw: m.Arguments}
	// Best effort: a malformed error body still yields a usable error.
	_ = json.Unmarshal(m.Arguments, me)
	return me
}

// ErrorMethodName is the sentinel method name used by servers to report
// method-level errors.
const ErrorMethodName = "error"

// Common capability URIs.
const (
	CoreCapability       = "urn:ietf:params:jmap:core"
	MailCapability       = "urn:ietf:params:jmap:mail"
	SubmissionCapability = "urn:ietf:params:jmap:submission"
)

// Common method names.
const (
	MethodMailboxGet         = "Mailbox/get"
	MethodMailboxQuery       = "Mailbox/query"
	MethodEmailGet           = "Email/get"
	MethodEmailQuery         = "Email/query"
	MethodEmailSet           = "Email/set"
	MethodThreadGet          = "Thread/get"
	MethodIdentityGet        = "Identity/get"
	MethodEmailSubmissionSet = "EmailSubmission/set"
)

// ResultReference is a back-reference to the result of an earlier call
// in the same envelope. It is encoded under a "#"-prefixed argument key
// and resolved server-side; the client's only obligation is to preserve
// call order.
type ResultReference struct {
	ResultOf string `json:"resultOf"`
	Name     string `json:"name"`
	Path     string `json:"path"`
}

// CreationReference returns the "#"-prefixed token referring to an
// object created under the given creation ID earlier in the envelope.
func CreationReference(creationId Id) string {
	return "#" + string(creationId)
}

// GetRequest creates arguments for a /get method.
type GetRequest struct {
	AccountId  Id       `json:"accountId"`
	Ids        []Id     `json:"ids,omitempty"`
	Properties []string `json:"properties,omitempty"`
}

// EmailGetRequest creates arguments for Email/get. Properties should
// always be an explicit allowlist; requesting all properties by default
// wastes bandwidth on large mailboxes.
type EmailGetRequest struct {
	AccountId           Id       `json:"accountId"`
	Ids                 []Id     `json:"ids,omitempty"`
	Properties          []string `json:"properties,omitempty"`
	BodyProperties      []string `json:"bodyProperties,omitempty"`
	FetchTextBodyValues bool     `json:"fetchTextBodyValues,omitempty"`
	FetchHTMLBodyValues bool     `json:"fetchHTMLBodyValues,omitempty"`
	MaxBodyValueBytes   uint32   `json:"maxBodyValueBytes,omitempty"`
}

// MaxBodyValueBytes caps fetched body values to bound response size.
const MaxBodyValueBytes = 1024 * 1024

// QueryRequest creates arguments for a /query method.
type QueryRequest struct {
	AccountId      Id          `json:"accountId"`
	Filter         interface{} `json:"filter,omitempty"`
	Sort           []SortOrder `json:"sort,omitempty"`
	Position       uint32      `json:"position,omitempty"`
	Anchor         *Id         `json:"anchor,omitempty"`
	AnchorOffset   int32       `json:"anchorOffset,omitempty"`
	Limit          *uint32     `json:"limit,omitempty"`
	CalculateTotal bool        `json:"calculateTotal,omitempty"`
}

// SortOrder specifies how to sort results.
type SortOrder struct {
	Property    string `json:"property"`
	IsAscending bool   `json:"isAscending"`
}

// SortReceivedAtDesc is the default email sort: newest first.
func SortReceivedAtDesc() []SortOrder {
	return []SortOrder{{Property: "receivedAt", IsAscending: false}}
}

// SetRequest creates arguments for a */set method.
type SetRequest struct {
	AccountId Id                            `json:"accountId"`
	Create    map[Id]interface{}            `json:"create,omitempty"`
	Update    map[Id]map[string]interface{} `json:"update,omitempty"`
	Destroy   []Id                          `json:"destroy,omitempty"`
}

// SubmissionSetRequest creates arguments for EmailSubmission/set. The
// OnSuccessDestroyEmail list names creation-reference tokens of
// submissions whose emails should be destroyed once sending succeeds.
type SubmissionSetRequest struct {
	AccountId             Id                 `json:"accountId"`
	Create                map[Id]interface{} `json:"create,omitempty"`
	OnSuccessDestroyEmail []string           `json:"onSuccessDestroyEmail,omitempty"`
}

// EmailSubmission is the creation shape for EmailSubmission/set.
type EmailSubmission struct {
	IdentityId Id     `json:"identityId"`
	EmailId    string `json:"emailId"`
}

// ParseMailboxGetResponse parses a Mailbox/get response.
func ParseMailboxGetResponse(resp *MethodResponse) (*GetMailboxesResponse, error) {
	var result GetMailboxesResponse
	if err := json.Unmarshal(resp.Arguments, &result); err != nil {
		return nil, err
	}
	return &result, nil
}

// ParseEmailQueryResponse parses an Email/query response.
func ParseEmailQueryResponse(resp *MethodResponse) (*QueryEmailsResponse, error) {
	var result QueryEmailsResponse
	if err := json.Unmarshal(resp.Arguments, &result); err != nil {
		return nil, err
	}
	return &result, nil
}

// ParseEmailGetResponse parses an Email/get response.
func ParseEmailGetResponse(resp *MethodResponse) (*GetEmailsResponse, error) {
	var result GetEmailsResponse
	if err := json.Unmarshal(resp.Arguments, &result); err != nil {
		return nil, err
	}
	return &result, nil
}

// ParseThreadGetResponse parses a Thread/get response.
func ParseThreadGetResponse(resp *MethodResponse) (*GetThreadsResponse, error) {
	var result GetThreadsResponse
	if err := json.Unmarshal(resp.Arguments, &result); err != nil {
		return nil, err
	}
	return &result, nil
}

// ParseIdentityGetResponse parses an Identity/get response.
func ParseIdentityGetResponse(resp *MethodResponse) (*GetIdentitiesResponse, error) {
	var result GetIdentitiesResponse
	if err := json.Unmarshal(resp.Arguments, &result); err != nil {
		return nil, err
	}
	return &result, nil
}

// ParseSetResponse parses a */set response.
func ParseSetResponse(resp *MethodResponse) (*SetResponse, error) {
	var result SetResponse
	if err := json.Unmarshal(resp.Arguments, &result); err != nil {
		return nil, err
	}
	return &result, nil
}
