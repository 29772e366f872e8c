package protocol

import (
	"time"
)

// UTCDate is a timestamp serialized in the UTCDate form JMAP filters
// expect: RFC 3339 in UTC with second precision and a trailing Z.
type UTCDate time.Time

// MarshalJSON implements json.Marshaler.
func (d UTCDate) MarshalJSON() ([]byte, error) {
	return []byte(`"` + time.Time(d).UTC().Format(time.RFC3339) + `"`), nil
}

// UnmarshalJSON implements json.Unmarshaler.
func (d *UTCDate) UnmarshalJSON(data []byte) error {
	var t time.Time
	if err := t.UnmarshalJSON(data); err != nil {
		return err
	}
	*d = UTCDate(t)
	return nil
}

// EmailFilter is a conjunction of optional Email/query predicates. Zero
// fields are omitted from the wire form. The before/after boundary
// semantics are whatever the server defines; callers must not rely on
// inclusivity either way.
type EmailFilter struct {
	// InMailbox restricts matches to emails in the given mailbox.
	InMailbox Id `json:"inMailbox,omitempty"`

	// Before matches emails received before this time.
	Before *UTCDate `json:"before,omitempty"`

	// After matches emails received after this time.
	After *UTCDate `json:"after,omitempty"`

	// From matches a substring of the From header.
	From string `json:"from,omitempty"`

	// To matches a substring of the To header.
	To string `json:"to,omitempty"`

	// Subject matches a substring of the Subject header.
	Subject string `json:"subject,omitempty"`

	// Text matches anywhere in the message (full text).
	Text string `json:"text,omitempty"`

	// HasAttachment matches on attachment presence.
	HasAttachment *bool `json:"hasAttachment,omitempty"`

	// HasKeyword matches emails carrying the keyword.
	HasKeyword string `json:"hasKeyword,omitempty"`

	// NotKeyword matches emails not carrying the keyword.
	NotKeyword string `json:"notKeyword,omitempty"`
}

// UnreadOnly restricts the filter to emails without the $seen keyword.
func (f *EmailFilter) UnreadOnly() *EmailFilter {
	f.NotKeyword = KeywordSeen
	return f
}

// FlaggedOnly restricts the filter to emails with the $flagged keyword.
func (f *EmailFilter) FlaggedOnly() *EmailFilter {
	f.HasKeyword = KeywordFlagged
	return f
}

// ReceivedAfter sets the after predicate.
func (f *EmailFilter) ReceivedAfter(t time.Time) *EmailFilter {
	d := UTCDate(t)
	f.After = &d
	return f
}

// ReceivedBefore sets the before predicate.
func (f *EmailFilter) ReceivedBefore(t time.Time) *EmailFilter {
	d := UTCDate(t)
	f.Before = &d
	return f
}
