// Package protocol provides JMAP protocol types and utilities.
package protocol

import (
	"encoding/json"
	"time"
)

// Id represents a JMAP identifier string.
type Id string

// Session represents a JMAP session resource.
// See RFC 8620 Section 2.
type Session struct {
	// Capabilities contains the capabilities of the server.
	Capabilities map[string]json.RawMessage `json:"capabilities"`

	// Accounts contains information about the accounts available.
	Accounts map[Id]Account `json:"accounts"`

	// PrimaryAccounts maps data type URIs to the primary account ID.
	PrimaryAccounts map[string]Id `json:"primaryAccounts"`

	// Username is the username associated with the session.
	Username string `json:"username"`

	// APIURL is the URL for JMAP API requests.
	APIURL string `json:"apiUrl"`

	// DownloadURL is the URL template for downloading blobs. It contains
	// the placeholders {accountId}, {blobId}, {name} and {type}.
	DownloadURL string `json:"downloadUrl"`

	// UploadURL is the URL for uploading blobs.
	UploadURL string `json:"uploadUrl"`

	// EventSourceURL is the URL for push notifications.
	EventSourceURL string `json:"eventSourceUrl"`

	// State is an opaque string representing the current state.
	State string `json:"state"`
}

// Account represents a JMAP account.
type Account struct {
	// Name is a human-readable name for the account.
	Name string `json:"name"`

	// IsPersonal indicates if this is the user's personal account.
	IsPersonal bool `json:"isPersonal"`

	// IsReadOnly indicates if the account is read-only.
	IsReadOnly bool `json:"isReadOnly"`

	// AccountCapabilities contains account-specific capability data.
	AccountCapabilities map[string]json.RawMessage `json:"accountCapabilities"`
}

// Mailbox represents a JMAP mailbox.
type Mailbox struct {
	// Id is the unique identifier for the mailbox.
	Id Id `json:"id"`

	// Name is the user-visible name of the mailbox.
	Name string `json:"name"`

	// ParentId is the ID of the parent mailbox, or null for top-level.
	ParentId *Id `json:"parentId"`

	// Role is the mailbox role (inbox, drafts, sent, trash, etc.).
	Role *string `json:"role"`

	// SortOrder is the sort order for display.
	SortOrder uint32 `json:"sortOrder"`

	// TotalEmails is the total number of emails in the mailbox.
	TotalEmails uint32 `json:"totalEmails"`

	// UnreadEmails is the number of unread emails.
	UnreadEmails uint32 `json:"unreadEmails"`
}

// Mailbox roles defined by RFC 8621 that this client resolves by.
const (
	RoleInbox  = "inbox"
	RoleDrafts = "drafts"
	RoleSent   = "sent"
	RoleTrash  = "trash"
)

// HasRole reports whether the mailbox carries the given role.
func (m *Mailbox) HasRole(role string) bool {
	return m.Role != nil && *m.Role == role
}

// Common email keywords (flags). Presence of a keyword in the Keywords
// map means the flag is set; the mapped value is always true on the wire.
const (
	KeywordSeen     = "$seen"
	KeywordFlagged  = "$flagged"
	KeywordDraft    = "$draft"
	KeywordAnswered = "$answered"
)

// Email represents a JMAP email object.
type Email struct {
	// Id is the unique identifier for the email.
	Id Id `json:"id"`

	// BlobId is the identifier for the raw email blob.
	BlobId Id `json:"blobId,omitempty"`

	// ThreadId is the identifier of the thread.
	ThreadId Id `json:"threadId,omitempty"`

	// MailboxIds maps mailbox IDs to true for each mailbox containing
	// this email. While the email exists this map is never empty.
	MailboxIds map[Id]bool `json:"mailboxIds,omitempty"`

	// Keywords contains the email's keywords/flags.
	Keywords map[string]bool `json:"keywords,omitempty"`

	// Size is the size of the raw email in bytes.
	Size uint32 `json:"size,omitempty"`

	// ReceivedAt is when the email was received.
	ReceivedAt time.Time `json:"receivedAt,omitzero"`

	// MessageId contains the Message-ID header values.
	MessageId []string `json:"messageId,omitempty"`

	// InReplyTo contains the In-Reply-To header values.
	InReplyTo []string `json:"inReplyTo,omitempty"`

	// References contains the References header values.
	References []string `json:"references,omitempty"`

	// From contains the From header addresses.
	From []EmailAddress `json:"from,omitempty"`

	// To contains the To header addresses.
	To []EmailAddress `json:"to,omitempty"`

	// Cc contains the Cc header addresses.
	Cc []EmailAddress `json:"cc,omitempty"`

	// Bcc contains the Bcc header addresses.
	Bcc []EmailAddress `json:"bcc,omitempty"`

	// ReplyTo contains the Reply-To header addresses.
	ReplyTo []EmailAddress `json:"replyTo,omitempty"`

	// Subject is the email subject.
	Subject string `json:"subject,omitempty"`

	// SentAt is when the email was sent.
	SentAt string `json:"sentAt,omitempty"`

	// Preview is a short plaintext preview of the email.
	Preview string `json:"preview,omitempty"`

	// HasAttachment indicates if there are attachments.
	HasAttachment bool `json:"hasAttachment,omitempty"`

	// TextBody lists the parts to render as plain text body.
	TextBody []BodyPart `json:"textBody,omitempty"`

	// HTMLBody lists the parts to render as HTML body.
	HTMLBody []BodyPart `json:"htmlBody,omitempty"`

	// BodyValues maps part IDs to their fetched content.
	BodyValues map[string]BodyValue `json:"bodyValues,omitempty"`

	// Attachments lists the attachment body parts in order.
	Attachments []Attachment `json:"attachments,omitempty"`
}

// IsRead reports whether the $seen keyword is set.
func (e *Email) IsRead() bool { return e.Keywords[KeywordSeen] }

// IsFlagged reports whether the $flagged keyword is set.
func (e *Email) IsFlagged() bool { return e.Keywords[KeywordFlagged] }

// EmailAddress represents an email address with optional name.
type EmailAddress struct {
	Name  string `json:"name,omitempty"`
	Email string `json:"email"`
}

// BodyPart identifies a part of the email body.
type BodyPart struct {
	PartId string `json:"partId"`
	Type   string `json:"type"`
}

// BodyValue contains fetched body content for a part.
type BodyValue struct {
	Value             string `json:"value"`
	IsTruncated       bool   `json:"isTruncated,omitempty"`
	IsEncodingProblem bool   `json:"isEncodingProblem,omitempty"`
}

// Attachment describes an attachment body part of an email.
type Attachment struct {
	PartId      string  `json:"partId,omitempty"`
	BlobId      Id      `json:"blobId"`
	Name        string  `json:"name,omitempty"`
	Type        string  `json:"type,omitempty"`
	Size        uint32  `json:"size,omitempty"`
	Disposition string  `json:"disposition,omitempty"`
	Cid         *string `json:"cid,omitempty"`
}

// IsInline reports whether the attachment is an inline part, either by
// content disposition or by carrying a Content-ID referenced from the
// HTML body.
func (a *Attachment) IsInline() bool {
	return a.Disposition == "inline" || a.Cid != nil
}

// Identity represents a JMAP sending identity.
type Identity struct {
	Id    Id     `json:"id"`
	Name  string `json:"name,omitempty"`
	Email string `json:"email"`
}

// Thread represents a JMAP thread: an ordered list of email IDs.
type Thread struct {
	Id       Id   `json:"id"`
	EmailIds []Id `json:"emailIds"`
}

// GetMailboxesResponse represents the response from Mailbox/get.
type GetMailboxesResponse struct {
	AccountId Id        `json:"accountId"`
	State     string    `json:"state"`
	List      []Mailbox `json:"list"`
	NotFound  []Id      `json:"notFound"`
}

// QueryEmailsResponse represents the response from Email/query.
type QueryEmailsResponse struct {
	AccountId           Id     `json:"accountId"`
	QueryState          string `json:"queryState"`
	CanCalculateChanges bool   `json:"canCalculateChanges"`
	Position            uint32 `json:"position"`
	Total               uint32 `json:"total"`
	Ids                 []Id   `json:"ids"`
}

// GetEmailsResponse represents the response from Email/get.
type GetEmailsResponse struct {
	AccountId Id      `json:"accountId"`
	State     string  `json:"state"`
	List      []Email `json:"list"`
	NotFound  []Id    `json:"notFound"`
}

// GetThreadsResponse represents the response from Thread/get.
type GetThreadsResponse struct {
	AccountId Id       `json:"accountId"`
	State     string   `json:"state"`
	List      []Thread `json:"list"`
	NotFound  []Id     `json:"notFound"`
}

// GetIdentitiesResponse represents the response from Identity/get.
type GetIdentitiesResponse struct {
	AccountId Id         `json:"accountId"`
	State     string     `json:"state"`
	List      []Identity `json:"list"`
	NotFound  []Id       `json:"notFound"`
}

// SetError describes why a create/update/destroy entry was rejected.
type SetError struct {
	Type        string `json:"type"`
	Description string `json:"description,omitempty"`
}

// SetResponse represents the response from a */set method.
type SetResponse struct {
	AccountId    Id                     `json:"accountId"`
	OldState     string                 `json:"oldState,omitempty"`
	NewState     string                 `json:"newState,omitempty"`
	Created      map[Id]json.RawMessage `json:"created,omitempty"`
	Updated      map[Id]json.RawMessage `json:"updated,omitempty"`
	Destroyed    []Id                   `json:"destroyed,omitempty"`
	NotCreated   map[Id]SetError        `json:"notCreated,omitempty"`
	NotUpdated   map[Id]SetError        `json:"notUpdated,omitempty"`
	NotDestroyed map[Id]SetError        `json:"notDestroyed,omitempty"`
}

// CreatedId extracts the server-assigned ID for a creation ID from a
// SetResponse, if present.
func (r *SetResponse) CreatedId(creationId Id) (Id, bool) {
	raw, ok := r.Created[creationId]
	if !ok {
		return "", false
	}
	var obj struct {
		Id Id `json:"id"`
	}
	if err := json.Unmarshal(raw, &obj); err != nil || obj.Id == "" {
		return "", false
	}
	return obj.Id, true
}
