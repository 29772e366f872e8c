package client

import (
	"context"
	"fmt"

	"jmapmail/internal/jmap/protocol"
)

// Thread fetches the ordered email IDs of a thread. An unknown thread
// ID is an explicit ErrNotFound.
func (c *Client) Thread(ctx context.Context, threadId protocol.Id) (*protocol.Thread, error) {
	accountId, err := c.PrimaryAccountID(ctx)
	if err != nil {
		return nil, err
	}

	mr, err := c.callOne(ctx, usingMail, protocol.MethodThreadGet, protocol.GetRequest{
		AccountId: accountId,
		Ids:       []protocol.Id{threadId},
	})
	if err != nil {
		return nil, fmt.Errorf("failed to get thread: %w", err)
	}

	parsed, err := protocol.ParseThreadGetResponse(mr)
	if err != nil {
		return nil, fmt.Errorf("failed to parse thread get: %w", err)
	}
	if len(parsed.List) == 0 {
		return nil, fmt.Errorf("thread %s: %w", threadId, protocol.ErrNotFound)
	}
	return &parsed.List[0], nil
}

// ThreadEmails fetches every email in a thread in thread order, using a
// two-call envelope with a back-reference so the server resolves the ID
// list itself.
func (c *Client) ThreadEmails(ctx context.Context, threadId protocol.Id, opts GetOptions) ([]protocol.Email, error) {
	accountId, err := c.PrimaryAccountID(ctx)
	if err != nil {
		return nil, err
	}

	emailArgs := getArgs(accountId, nil, opts)
	resp, err := c.Call(ctx, usingMail,
		protocol.MethodCall{
			Name:      protocol.MethodThreadGet,
			Arguments: protocol.GetRequest{AccountId: accountId, Ids: []protocol.Id{threadId}},
			CallId:    "c0",
		},
		protocol.MethodCall{
			Name: protocol.MethodEmailGet,
			Arguments: map[string]interface{}{
				"accountId": accountId,
				"#ids": protocol.ResultReference{
					ResultOf: "c0",
					Name:     protocol.MethodThreadGet,
					Path:     "/list/*/emailIds",
				},
				"properties":          emailArgs.Properties,
				"fetchTextBodyValues": emailArgs.FetchTextBodyValues,
				"fetchHTMLBodyValues": emailArgs.FetchHTMLBodyValues,
				"maxBodyValueBytes":   emailArgs.MaxBodyValueBytes,
			},
			CallId: "c1",
		},
	)
	if err != nil {
		return nil, err
	}

	threadResp, err := result(resp, "c0")
	if err != nil {
		return nil, fmt.Errorf("failed to get thread: %w", err)
	}
	threads, err := protocol.ParseThreadGetResponse(threadResp)
	if err != nil {
		return nil, fmt.Errorf("failed to parse thread get: %w", err)
	}
	if len(threads.List) == 0 {
		return nil, fmt.Errorf("thread %s: %w", threadId, protocol.ErrNotFound)
	}

	emailResp, err := result(resp, "c1")
	if err != nil {
		return nil, fmt.Errorf("failed to get thread emails: %w", err)
	}
	emails, err := protocol.ParseEmailGetResponse(emailResp)
	if err != nil {
		return nil, fmt.Errorf("failed to parse thread emails: %w", err)
	}
	return emails.List, nil
}
