package client

import (
	"context"
	"fmt"
	"strings"

	"jmapmail/internal/jmap/protocol"
)

var usingSubmission = []string{protocol.CoreCapability, protocol.SubmissionCapability}

// Identities fetches the account's sending identities.
func (c *Client) Identities(ctx context.Context) ([]protocol.Identity, error) {
	accountId, err := c.PrimaryAccountID(ctx)
	if err != nil {
		return nil, err
	}

	mr, err := c.callOne(ctx, usingSubmission, protocol.MethodIdentityGet, protocol.GetRequest{
		AccountId: accountId,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to list identities: %w", err)
	}

	parsed, err := protocol.ParseIdentityGetResponse(mr)
	if err != nil {
		return nil, fmt.Errorf("failed to parse identity list: %w", err)
	}
	return parsed.List, nil
}

// identityFor picks the identity whose address matches from, falling
// back to the first identity when no address matches or from is empty.
// Returns ErrNoIdentity when the account has none.
func (c *Client) identityFor(ctx context.Context, from string) (*protocol.Identity, error) {
	identities, err := c.Identities(ctx)
	if err != nil {
		return nil, err
	}
	if len(identities) == 0 {
		return nil, protocol.ErrNoIdentity
	}
	for i := range identities {
		if strings.EqualFold(identities[i].Email, from) {
			return &identities[i], nil
		}
	}
	return &identities[0], nil
}
