package client

import (
	"context"
	"errors"
	"fmt"
	"net/mail"
	"strings"

	"github.com/google/uuid"

	"jmapmail/internal/jmap/protocol"
)

var usingSend = []string{
	protocol.CoreCapability,
	protocol.MailCapability,
	protocol.SubmissionCapability,
}

// Message describes an outgoing email. Address fields accept either
// bare addresses or "Name <addr>" forms.
type Message struct {
	From    string
	To      []string
	Cc      []string
	Bcc     []string
	ReplyTo []string

	Subject  string
	TextBody string
	HTMLBody string

	// Threading headers, normally set by Reply.
	InReplyTo  []string
	References []string
}

// SendFailedError reports a submission rejected after the draft was
// already created. The draft is left undeleted in the Drafts mailbox;
// DraftId identifies it for cleanup or diagnosis.
type SendFailedError struct {
	DraftId protocol.Id
	Err     error
}

func (e *SendFailedError) Error() string {
	return fmt.Sprintf("jmap: submission failed, draft %s left undeleted: %v", e.DraftId, e.Err)
}

func (e *SendFailedError) Unwrap() error { return e.Err }

// emailCreate is the Email/set creation shape for drafts.
type emailCreate struct {
	MailboxIds map[protocol.Id]bool          `json:"mailboxIds"`
	Keywords   map[string]bool               `json:"keywords"`
	From       []protocol.EmailAddress       `json:"from,omitempty"`
	To         []protocol.EmailAddress       `json:"to,omitempty"`
	Cc         []protocol.EmailAddress       `json:"cc,omitempty"`
	Bcc        []protocol.EmailAddress       `json:"bcc,omitempty"`
	ReplyTo    []protocol.EmailAddress       `json:"replyTo,omitempty"`
	Subject    string                        `json:"subject,omitempty"`
	InReplyTo  []string                      `json:"inReplyTo,omitempty"`
	References []string                      `json:"references,omitempty"`
	BodyValues map[string]protocol.BodyValue `json:"bodyValues,omitempty"`
	TextBody   []protocol.BodyPart           `json:"textBody,omitempty"`
	HTMLBody   []protocol.BodyPart           `json:"htmlBody,omitempty"`
}

// parseAddress accepts "Name <addr>" or a bare address. Unparseable
// input is passed through as a bare address; the server validates.
func parseAddress(s string) protocol.EmailAddress {
	addr, err := mail.ParseAddress(s)
	if err != nil {
		return protocol.EmailAddress{Email: strings.TrimSpace(s)}
	}
	return protocol.EmailAddress{Name: addr.Name, Email: addr.Address}
}

func parseAddresses(in []string) []protocol.EmailAddress {
	if len(in) == 0 {
		return nil
	}
	out := make([]protocol.EmailAddress, 0, len(in))
	for _, s := range in {
		out = append(out, parseAddress(s))
	}
	return out
}

// buildDraft assembles the Email/set creation object for a message,
// tagged $draft and placed in the given Drafts mailbox.
func buildDraft(msg Message, from protocol.EmailAddress, draftsId protocol.Id) *emailCreate {
	draft := &emailCreate{
		MailboxIds: map[protocol.Id]bool{draftsId: true},
		Keywords:   map[string]bool{protocol.KeywordDraft: true},
		From:       []protocol.EmailAddress{from},
		To:         parseAddresses(msg.To),
		Cc:         parseAddresses(msg.Cc),
		Bcc:        parseAddresses(msg.Bcc),
		ReplyTo:    parseAddresses(msg.ReplyTo),
		Subject:    msg.Subject,
		InReplyTo:  msg.InReplyTo,
		References: msg.References,
		BodyValues: make(map[string]protocol.BodyValue),
	}
	if msg.TextBody != "" {
		draft.BodyValues["text"] = protocol.BodyValue{Value: msg.TextBody}
		draft.TextBody = []protocol.BodyPart{{PartId: "text", Type: "text/plain"}}
	}
	if msg.HTMLBody != "" {
		draft.BodyValues["html"] = protocol.BodyValue{Value: msg.HTMLBody}
		draft.HTMLBody = []protocol.BodyPart{{PartId: "html", Type: "text/html"}}
	}
	return draft
}

// draftsMailbox resolves the Drafts mailbox by role. Its absence is
// ErrNoDraftsMailbox; transport failures pass through unchanged.
func (c *Client) draftsMailbox(ctx context.Context) (*protocol.Mailbox, error) {
	drafts, err := c.MailboxByRole(ctx, protocol.RoleDrafts)
	if err != nil {
		if errors.Is(err, protocol.ErrNotFound) {
			return nil, protocol.ErrNoDraftsMailbox
		}
		return nil, err
	}
	return drafts, nil
}

// sender resolves the identity and from-address for a message. The
// message's From falls back to the identity's address when empty.
func (c *Client) sender(ctx context.Context, msg Message) (*protocol.Identity, protocol.EmailAddress, error) {
	identity, err := c.identityFor(ctx, fromAddressOf(msg))
	if err != nil {
		return nil, protocol.EmailAddress{}, err
	}
	if msg.From == "" {
		return identity, protocol.EmailAddress{Name: identity.Name, Email: identity.Email}, nil
	}
	return identity, parseAddress(msg.From), nil
}

func fromAddressOf(msg Message) string {
	if msg.From == "" {
		return ""
	}
	return parseAddress(msg.From).Email
}

// SendEmail creates a draft and submits it in a single two-call
// envelope; the draft is destroyed once the server accepts the
// submission. The Drafts mailbox is resolved before anything is sent,
// so a missing Drafts role fails without a mutating call. A submission
// rejection after draft creation surfaces as *SendFailedError.
func (c *Client) SendEmail(ctx context.Context, msg Message) (protocol.Id, error) {
	drafts, err := c.draftsMailbox(ctx)
	if err != nil {
		return "", err
	}
	identity, from, err := c.sender(ctx, msg)
	if err != nil {
		return "", err
	}
	accountId, err := c.PrimaryAccountID(ctx)
	if err != nil {
		return "", err
	}

	draftId := protocol.Id("draft-" + uuid.NewString())
	subId := protocol.Id("sub-" + uuid.NewString())

	resp, err := c.Call(ctx, usingSend,
		protocol.MethodCall{
			Name: protocol.MethodEmailSet,
			Arguments: protocol.SetRequest{
				AccountId: accountId,
				Create:    map[protocol.Id]interface{}{draftId: buildDraft(msg, from, drafts.Id)},
			},
			CallId: "c0",
		},
		protocol.MethodCall{
			Name: protocol.MethodEmailSubmissionSet,
			Arguments: protocol.SubmissionSetRequest{
				AccountId: accountId,
				Create: map[protocol.Id]interface{}{subId: protocol.EmailSubmission{
					IdentityId: identity.Id,
					EmailId:    protocol.CreationReference(draftId),
				}},
				OnSuccessDestroyEmail: []string{protocol.CreationReference(subId)},
			},
			CallId: "c1",
		},
	)
	if err != nil {
		return "", err
	}

	emailId, err := createdEmail(resp, "c0", draftId)
	if err != nil {
		return "", fmt.Errorf("failed to create draft: %w", err)
	}

	if _, err := submissionResult(resp, "c1", subId); err != nil {
		return "", &SendFailedError{DraftId: emailId, Err: err}
	}
	return emailId, nil
}

// SaveDraft creates a draft without submitting it.
func (c *Client) SaveDraft(ctx context.Context, msg Message) (protocol.Id, error) {
	drafts, err := c.draftsMailbox(ctx)
	if err != nil {
		return "", err
	}
	_, from, err := c.sender(ctx, msg)
	if err != nil {
		return "", err
	}
	accountId, err := c.PrimaryAccountID(ctx)
	if err != nil {
		return "", err
	}

	draftId := protocol.Id("draft-" + uuid.NewString())
	resp, err := c.Call(ctx, usingMail, protocol.MethodCall{
		Name: protocol.MethodEmailSet,
		Arguments: protocol.SetRequest{
			AccountId: accountId,
			Create:    map[protocol.Id]interface{}{draftId: buildDraft(msg, from, drafts.Id)},
		},
		CallId: "c0",
	})
	if err != nil {
		return "", err
	}

	emailId, err := createdEmail(resp, "c0", draftId)
	if err != nil {
		return "", fmt.Errorf("failed to create draft: %w", err)
	}
	return emailId, nil
}

// Reply builds a reply to an existing email and sends it. Recipients
// default to the original's Reply-To, falling back to From; threading
// headers are copied from the original.
func (c *Client) Reply(ctx context.Context, originalId protocol.Id, msg Message) (protocol.Id, error) {
	original, err := c.GetEmail(ctx, originalId, GetOptions{Properties: []string{
		"id", "threadId", "from", "replyTo", "subject", "messageId", "references",
	}})
	if err != nil {
		return "", err
	}

	if len(msg.To) == 0 {
		recipients := original.ReplyTo
		if len(recipients) == 0 {
			recipients = original.From
		}
		for _, a := range recipients {
			msg.To = append(msg.To, a.Email)
		}
	}
	if msg.Subject == "" {
		msg.Subject = replySubject(original.Subject)
	}
	msg.InReplyTo = original.MessageId
	msg.References = append(append([]string{}, original.References...), original.MessageId...)

	return c.SendEmail(ctx, msg)
}

// replySubject prefixes "Re: " unless the subject already carries it.
func replySubject(subject string) string {
	if strings.HasPrefix(strings.ToLower(strings.TrimSpace(subject)), "re:") {
		return subject
	}
	return "Re: " + subject
}

// createdEmail extracts the server-assigned ID of a created email from
// a set response within an envelope.
func createdEmail(resp *protocol.Response, callId string, creationId protocol.Id) (protocol.Id, error) {
	mr, err := result(resp, callId)
	if err != nil {
		return "", err
	}
	set, err := protocol.ParseSetResponse(mr)
	if err != nil {
		return "", err
	}
	if se, ok := set.NotCreated[creationId]; ok {
		return "", fmt.Errorf("server rejected create: %s (%s)", se.Type, se.Description)
	}
	id, ok := set.CreatedId(creationId)
	if !ok {
		return "", &protocol.ProtocolError{Reason: "set response missing created id"}
	}
	return id, nil
}

// submissionResult checks the EmailSubmission/set entry of an envelope.
func submissionResult(resp *protocol.Response, callId string, creationId protocol.Id) (*protocol.SetResponse, error) {
	mr, err := result(resp, callId)
	if err != nil {
		return nil, err
	}
	set, err := protocol.ParseSetResponse(mr)
	if err != nil {
		return nil, err
	}
	if se, ok := set.NotCreated[creationId]; ok {
		return nil, fmt.Errorf("server rejected submission: %s (%s)", se.Type, se.Description)
	}
	return set, nil
}
