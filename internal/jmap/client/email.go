package client

import (
	"context"
	"fmt"
	"sort"

	"jmapmail/internal/jmap/protocol"
)

// MetadataProperties is the default Email/get allowlist. All properties
// is never requested by default; large mailboxes make that expensive.
var MetadataProperties = []string{
	"id", "blobId", "threadId", "mailboxIds", "keywords", "size",
	"receivedAt", "sentAt", "messageId", "inReplyTo", "references",
	"from", "to", "cc", "bcc", "replyTo", "subject", "preview",
	"hasAttachment",
}

// bodyProperties are added to the allowlist when body fetching is on.
var bodyProperties = []string{"bodyValues", "textBody", "htmlBody"}

// QueryOptions configures an Email/query call.
type QueryOptions struct {
	// Filter restricts the result set; nil matches everything.
	Filter *protocol.EmailFilter

	// Sort orders the result IDs. Nil means receivedAt descending.
	Sort []protocol.SortOrder

	// Limit caps the number of returned IDs; zero leaves the cap to the
	// server.
	Limit uint32

	// Position is the zero-based offset into the full result list.
	Position uint32
}

// QueryEmails runs a single Email/query and returns the matching IDs
// with the total count.
func (c *Client) QueryEmails(ctx context.Context, opts QueryOptions) (*protocol.QueryEmailsResponse, error) {
	accountId, err := c.PrimaryAccountID(ctx)
	if err != nil {
		return nil, err
	}

	args := protocol.QueryRequest{
		AccountId:      accountId,
		Sort:           opts.Sort,
		Position:       opts.Position,
		CalculateTotal: true,
	}
	if opts.Filter != nil {
		args.Filter = opts.Filter
	}
	if args.Sort == nil {
		args.Sort = protocol.SortReceivedAtDesc()
	}
	if opts.Limit > 0 {
		limit := opts.Limit
		args.Limit = &limit
	}

	mr, err := c.callOne(ctx, usingMail, protocol.MethodEmailQuery, args)
	if err != nil {
		return nil, fmt.Errorf("failed to query emails: %w", err)
	}

	parsed, err := protocol.ParseEmailQueryResponse(mr)
	if err != nil {
		return nil, fmt.Errorf("failed to parse email query: %w", err)
	}
	return parsed, nil
}

// GetOptions configures an Email/get call.
type GetOptions struct {
	// Properties overrides the default metadata allowlist.
	Properties []string

	// FetchTextBody and FetchHTMLBody request body values, capped at
	// MaxBodyValueBytes per value.
	FetchTextBody bool
	FetchHTMLBody bool
}

// getArgs builds the Email/get arguments for a set of IDs.
func getArgs(accountId protocol.Id, ids []protocol.Id, opts GetOptions) protocol.EmailGetRequest {
	props := opts.Properties
	if props == nil {
		props = MetadataProperties
	}
	args := protocol.EmailGetRequest{
		AccountId:  accountId,
		Ids:        ids,
		Properties: props,
	}
	if opts.FetchTextBody || opts.FetchHTMLBody {
		args.Properties = append(append([]string{}, props...), bodyProperties...)
		args.FetchTextBodyValues = opts.FetchTextBody
		args.FetchHTMLBodyValues = opts.FetchHTMLBody
		args.MaxBodyValueBytes = protocol.MaxBodyValueBytes
	}
	return args
}

// GetEmails fetches full records for the given IDs. Unknown IDs land in
// the response's NotFound list rather than failing the call.
func (c *Client) GetEmails(ctx context.Context, ids []protocol.Id, opts GetOptions) (*protocol.GetEmailsResponse, error) {
	accountId, err := c.PrimaryAccountID(ctx)
	if err != nil {
		return nil, err
	}

	mr, err := c.callOne(ctx, usingMail, protocol.MethodEmailGet, getArgs(accountId, ids, opts))
	if err != nil {
		return nil, fmt.Errorf("failed to get emails: %w", err)
	}

	parsed, err := protocol.ParseEmailGetResponse(mr)
	if err != nil {
		return nil, fmt.Errorf("failed to parse email get: %w", err)
	}
	return parsed, nil
}

// GetEmail fetches a single email. An unknown ID is an explicit
// ErrNotFound here, unlike the collection form.
func (c *Client) GetEmail(ctx context.Context, id protocol.Id, opts GetOptions) (*protocol.Email, error) {
	parsed, err := c.GetEmails(ctx, []protocol.Id{id}, opts)
	if err != nil {
		return nil, err
	}
	if len(parsed.List) == 0 {
		return nil, fmt.Errorf("email %s: %w", id, protocol.ErrNotFound)
	}
	return &parsed.List[0], nil
}

// BulkResult reports per-input outcomes of a bulk mutation. A failing
// input never aborts its siblings.
type BulkResult struct {
	Succeeded []protocol.Id
	Failed    map[protocol.Id]protocol.SetError
}

// emailSet runs a single Email/set and parses the result.
func (c *Client) emailSet(ctx context.Context, args protocol.SetRequest) (*protocol.SetResponse, error) {
	mr, err := c.callOne(ctx, usingMail, protocol.MethodEmailSet, args)
	if err != nil {
		return nil, err
	}
	return protocol.ParseSetResponse(mr)
}

// UpdateEmails applies the same patch to every given email in one
// Email/set. Per-email rejections are reported in the BulkResult.
func (c *Client) UpdateEmails(ctx context.Context, ids []protocol.Id, ops []protocol.PatchOp) (*BulkResult, error) {
	accountId, err := c.PrimaryAccountID(ctx)
	if err != nil {
		return nil, err
	}

	patch := protocol.BuildPatch(ops)
	update := make(map[protocol.Id]map[string]interface{}, len(ids))
	for _, id := range ids {
		update[id] = patch
	}

	set, err := c.emailSet(ctx, protocol.SetRequest{AccountId: accountId, Update: update})
	if err != nil {
		return nil, fmt.Errorf("failed to update emails: %w", err)
	}

	res := &BulkResult{Failed: set.NotUpdated}
	for id := range set.Updated {
		res.Succeeded = append(res.Succeeded, id)
	}
	return res, nil
}

// UpdateEmail applies a patch to one email, failing if the server
// rejects it.
func (c *Client) UpdateEmail(ctx context.Context, id protocol.Id, ops []protocol.PatchOp) error {
	res, err := c.UpdateEmails(ctx, []protocol.Id{id}, ops)
	if err != nil {
		return err
	}
	if se, ok := res.Failed[id]; ok {
		return fmt.Errorf("failed to update email %s: %s (%s)", id, se.Type, se.Description)
	}
	return nil
}

// MarkRead sets or clears the $seen keyword.
func (c *Client) MarkRead(ctx context.Context, id protocol.Id, read bool) error {
	return c.UpdateEmail(ctx, id, []protocol.PatchOp{protocol.SetKeyword(protocol.KeywordSeen, read)})
}

// SetFlagged sets or clears the $flagged keyword.
func (c *Client) SetFlagged(ctx context.Context, id protocol.Id, flagged bool) error {
	return c.UpdateEmail(ctx, id, []protocol.PatchOp{protocol.SetKeyword(protocol.KeywordFlagged, flagged)})
}

// AddLabel adds the email to a mailbox without leaving its others.
func (c *Client) AddLabel(ctx context.Context, id, mailboxId protocol.Id) error {
	return c.UpdateEmail(ctx, id, []protocol.PatchOp{protocol.AddMailbox(mailboxId)})
}

// RemoveLabel removes the email from a mailbox.
func (c *Client) RemoveLabel(ctx context.Context, id, mailboxId protocol.Id) error {
	return c.UpdateEmail(ctx, id, []protocol.PatchOp{protocol.RemoveMailbox(mailboxId)})
}

// MoveEmail replaces the email's entire mailbox membership with a
// single target.
func (c *Client) MoveEmail(ctx context.Context, id, target protocol.Id) error {
	return c.UpdateEmail(ctx, id, []protocol.PatchOp{protocol.ReplaceMailboxes(target)})
}

// DeleteEmails destroys the given emails in one Email/set. Per-email
// rejections are reported in the BulkResult.
func (c *Client) DeleteEmails(ctx context.Context, ids []protocol.Id) (*BulkResult, error) {
	accountId, err := c.PrimaryAccountID(ctx)
	if err != nil {
		return nil, err
	}

	set, err := c.emailSet(ctx, protocol.SetRequest{AccountId: accountId, Destroy: ids})
	if err != nil {
		return nil, fmt.Errorf("failed to delete emails: %w", err)
	}

	return &BulkResult{Succeeded: set.Destroyed, Failed: set.NotDestroyed}, nil
}

// Label is one mailbox an email belongs to. Name and Role are nil when
// the mailbox ID could not be resolved against the mailbox list; the
// operation tolerates partial resolution rather than failing.
type Label struct {
	Id   protocol.Id `json:"id"`
	Name *string     `json:"name"`
	Role *string     `json:"role"`
}

// Labels fetches the email's mailbox membership and resolves each ID
// against the full mailbox list.
func (c *Client) Labels(ctx context.Context, id protocol.Id) ([]Label, error) {
	email, err := c.GetEmail(ctx, id, GetOptions{Properties: []string{"id", "mailboxIds"}})
	if err != nil {
		return nil, err
	}

	mailboxes, err := c.Mailboxes(ctx)
	if err != nil {
		return nil, err
	}
	byId := make(map[protocol.Id]*protocol.Mailbox, len(mailboxes))
	for i := range mailboxes {
		byId[mailboxes[i].Id] = &mailboxes[i]
	}

	labels := make([]Label, 0, len(email.MailboxIds))
	for mailboxId := range email.MailboxIds {
		label := Label{Id: mailboxId}
		if mb, ok := byId[mailboxId]; ok {
			name := mb.Name
			label.Name = &name
			label.Role = mb.Role
		}
		labels = append(labels, label)
	}
	sort.Slice(labels, func(i, j int) bool { return labels[i].Id < labels[j].Id })
	return labels, nil
}
