package client

import (
	"context"
	"fmt"
	"strings"

	"jmapmail/internal/jmap/protocol"
)

// mailboxProperties is the Mailbox/get allowlist.
var mailboxProperties = []string{
	"id", "name", "parentId", "role", "sortOrder", "totalEmails", "unreadEmails",
}

var usingMail = []string{protocol.CoreCapability, protocol.MailCapability}

// Mailboxes fetches the full mailbox list. The list is small; lookups
// scan it rather than maintaining an index.
func (c *Client) Mailboxes(ctx context.Context) ([]protocol.Mailbox, error) {
	accountId, err := c.PrimaryAccountID(ctx)
	if err != nil {
		return nil, err
	}

	mr, err := c.callOne(ctx, usingMail, protocol.MethodMailboxGet, protocol.GetRequest{
		AccountId:  accountId,
		Properties: mailboxProperties,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to list mailboxes: %w", err)
	}

	parsed, err := protocol.ParseMailboxGetResponse(mr)
	if err != nil {
		return nil, fmt.Errorf("failed to parse mailbox list: %w", err)
	}
	return parsed.List, nil
}

// MailboxByRole returns the mailbox carrying the given role, or
// ErrNotFound if none does.
func (c *Client) MailboxByRole(ctx context.Context, role string) (*protocol.Mailbox, error) {
	mailboxes, err := c.Mailboxes(ctx)
	if err != nil {
		return nil, err
	}
	for i := range mailboxes {
		if mailboxes[i].HasRole(role) {
			return &mailboxes[i], nil
		}
	}
	return nil, fmt.Errorf("mailbox with role %q: %w", role, protocol.ErrNotFound)
}

// MailboxByName returns the mailbox with the given name,
// case-insensitively, or ErrNotFound.
func (c *Client) MailboxByName(ctx context.Context, name string) (*protocol.Mailbox, error) {
	mailboxes, err := c.Mailboxes(ctx)
	if err != nil {
		return nil, err
	}
	for i := range mailboxes {
		if strings.EqualFold(mailboxes[i].Name, name) {
			return &mailboxes[i], nil
		}
	}
	return nil, fmt.Errorf("mailbox %q: %w", name, protocol.ErrNotFound)
}

// ResolveMailboxID resolves a user-supplied mailbox reference that may
// be an ID, a role, or a name, in that order of preference.
func (c *Client) ResolveMailboxID(ctx context.Context, ref string) (protocol.Id, error) {
	mailboxes, err := c.Mailboxes(ctx)
	if err != nil {
		return "", err
	}
	for i := range mailboxes {
		if string(mailboxes[i].Id) == ref {
			return mailboxes[i].Id, nil
		}
	}
	for i := range mailboxes {
		if mailboxes[i].HasRole(strings.ToLower(ref)) {
			return mailboxes[i].Id, nil
		}
	}
	for i := range mailboxes {
		if strings.EqualFold(mailboxes[i].Name, ref) {
			return mailboxes[i].Id, nil
		}
	}
	return "", fmt.Errorf("mailbox %q: %w", ref, protocol.ErrNotFound)
}
