// Package protocol provides JMAP session management utilities.
package protocol

import (
	"encoding/json"
	"sort"
	"strings"
)

// WellKnownPath is the well-known path for JMAP autodiscovery.
const WellKnownPath = "/.well-known/jmap"

// DiscoveryURL returns the JMAP discovery URL for a hostname.
func DiscoveryURL(hostname string) string {
	// Ensure no trailing slash
	hostname = strings.TrimSuffix(hostname, "/")
	// Ensure https scheme
	if !strings.HasPrefix(hostname, "http://") && !strings.HasPrefix(hostname, "https://") {
		hostname = "https://" + hostname
	}
	return hostname + WellKnownPath
}

// ParseSession parses a JMAP session from JSON.
func ParseSession(data []byte) (*Session, error) {
	var session Session
	if err := json.Unmarshal(data, &session); err != nil {
		return nil, &SessionError{Reason: "parse failed", Err: err}
	}
	return &session, nil
}

// Validate checks if the session has the required fields.
func (s *Session) Validate() error {
	if s.APIURL == "" {
		return &SessionError{Reason: "missing apiUrl"}
	}
	if len(s.Capabilities) == 0 {
		return &SessionError{Reason: "missing capabilities"}
	}
	if !s.HasCapability(CoreCapability) {
		return &SessionError{Reason: "missing core capability"}
	}
	return nil
}

// HasCapability checks if the server supports a capability.
func (s *Session) HasCapability(uri string) bool {
	_, ok := s.Capabilities[uri]
	return ok
}

// HasMailCapability checks if the server supports JMAP Mail.
func (s *Session) HasMailCapability() bool {
	return s.HasCapability(MailCapability)
}

// HasSubmissionCapability checks if the server supports JMAP Submission.
func (s *Session) HasSubmissionCapability() bool {
	return s.HasCapability(SubmissionCapability)
}

// PrimaryAccountId resolves the account to operate on: the primary mail
// account if the server declares one, otherwise the first account by
// sorted ID. The fallback is a deliberate lenience for servers that omit
// the primaryAccounts mapping. Returns ErrNoAccount when the session has
// no accounts at all.
func (s *Session) PrimaryAccountId() (Id, error) {
	if id, ok := s.PrimaryAccounts[MailCapability]; ok {
		return id, nil
	}
	if len(s.Accounts) == 0 {
		return "", ErrNoAccount
	}
	ids := make([]string, 0, len(s.Accounts))
	for id := range s.Accounts {
		ids = append(ids, string(id))
	}
	sort.Strings(ids)
	return Id(ids[0]), nil
}

// GetCapabilityNames returns the list of capability URIs.
func (s *Session) GetCapabilityNames() []string {
	var names []string
	for name := range s.Capabilities {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}
