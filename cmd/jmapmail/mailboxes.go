package main

import (
	"context"
	"fmt"
	"log/slog"

	"jmapmail/internal/common/logger"
	"jmapmail/internal/jmap/protocol"
)

// listMailboxes retrieves and displays the list of mailboxes.
func listMailboxes(ctx context.Context, config *Config, slogLogger *slog.Logger) error {
	c, err := newClient(ctx, config, slogLogger)
	if err != nil {
		return err
	}

	mailboxes, err := c.Mailboxes(ctx)
	if err != nil {
		logger.LogError(slogLogger, "Failed to get mailboxes",
			"error", err,
			"host", config.Host)
		return err
	}

	if config.JSONOutput {
		return printJSON(mailboxes)
	}

	fmt.Printf("Found %d mailboxes:\n", len(mailboxes))
	fmt.Println("  Name                              Role            Total   Unread")
	fmt.Println("  ----                              ----            -----   ------")
	for _, mb := range mailboxes {
		role := "-"
		if mb.Role != nil && *mb.Role != "" {
			role = *mb.Role
		}
		fmt.Printf("  %-34s %-14s %6d   %6d\n", mb.Name, role, mb.TotalEmails, mb.UnreadEmails)
	}

	logger.LogInfo(slogLogger, "Get mailboxes completed",
		"host", config.Host,
		"mailbox_count", len(mailboxes))
	return nil
}

// listIdentities retrieves and displays the sending identities.
func listIdentities(ctx context.Context, config *Config, slogLogger *slog.Logger) error {
	c, err := newClient(ctx, config, slogLogger)
	if err != nil {
		return err
	}

	identities, err := c.Identities(ctx)
	if err != nil {
		logger.LogError(slogLogger, "Failed to get identities",
			"error", err,
			"host", config.Host)
		return err
	}

	if config.JSONOutput {
		return printJSON(identities)
	}

	fmt.Printf("Found %d identities:\n", len(identities))
	for _, identity := range identities {
		fmt.Printf("  %s: %s <%s>\n", identity.Id, identity.Name, identity.Email)
	}

	logger.LogInfo(slogLogger, "Get identities completed",
		"host", config.Host,
		"identity_count", len(identities))
	return nil
}

// getLabels shows the mailboxes an email belongs to, tolerating
// unresolved mailbox IDs.
func getLabels(ctx context.Context, config *Config, slogLogger *slog.Logger) error {
	c, err := newClient(ctx, config, slogLogger)
	if err != nil {
		return err
	}

	labels, err := c.Labels(ctx, protocol.Id(config.EmailID))
	if err != nil {
		logger.LogError(slogLogger, "Failed to get labels",
			"error", err,
			"email", config.EmailID)
		return err
	}

	if config.JSONOutput {
		return printJSON(labels)
	}

	fmt.Printf("Email %s is in %d mailboxes:\n", config.EmailID, len(labels))
	for _, label := range labels {
		name, role := "(unresolved)", "-"
		if label.Name != nil {
			name = *label.Name
		}
		if label.Role != nil && *label.Role != "" {
			role = *label.Role
		}
		fmt.Printf("  %-26s %-20s %s\n", label.Id, name, role)
	}
	return nil
}
