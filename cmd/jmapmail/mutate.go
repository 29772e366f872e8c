package main

import (
	"context"
	"fmt"
	"log/slog"

	"jmapmail/internal/common/logger"
	"jmapmail/internal/jmap/protocol"
)

// moveEmail replaces the email's mailbox membership with one target.
func moveEmail(ctx context.Context, config *Config, slogLogger *slog.Logger) error {
	c, err := newClient(ctx, config, slogLogger)
	if err != nil {
		return err
	}

	target, err := c.ResolveMailboxID(ctx, config.Mailbox)
	if err != nil {
		return err
	}

	if err := c.MoveEmail(ctx, protocol.Id(config.EmailID), target); err != nil {
		logger.LogError(slogLogger, "Move failed",
			"error", err,
			"email", config.EmailID,
			"mailbox", config.Mailbox)
		return err
	}

	fmt.Printf("✓ Email %s moved to %s\n", config.EmailID, config.Mailbox)
	logger.LogInfo(slogLogger, "Email moved", "email", config.EmailID, "mailbox", target)
	return nil
}

// markRead sets or clears the $seen keyword.
func markRead(ctx context.Context, config *Config, slogLogger *slog.Logger) error {
	c, err := newClient(ctx, config, slogLogger)
	if err != nil {
		return err
	}

	if err := c.MarkRead(ctx, protocol.Id(config.EmailID), config.SetValue); err != nil {
		logger.LogError(slogLogger, "Mark read failed",
			"error", err,
			"email", config.EmailID)
		return err
	}

	state := "read"
	if !config.SetValue {
		state = "unread"
	}
	fmt.Printf("✓ Email %s marked %s\n", config.EmailID, state)
	return nil
}

// setFlag sets or clears the $flagged keyword.
func setFlag(ctx context.Context, config *Config, slogLogger *slog.Logger) error {
	c, err := newClient(ctx, config, slogLogger)
	if err != nil {
		return err
	}

	if err := c.SetFlagged(ctx, protocol.Id(config.EmailID), config.SetValue); err != nil {
		logger.LogError(slogLogger, "Flag failed",
			"error", err,
			"email", config.EmailID)
		return err
	}

	state := "flagged"
	if !config.SetValue {
		state = "unflagged"
	}
	fmt.Printf("✓ Email %s %s\n", config.EmailID, state)
	return nil
}

// deleteEmails destroys the given emails, reporting per-email failures
// without aborting siblings.
func deleteEmails(ctx context.Context, config *Config, slogLogger *slog.Logger) error {
	c, err := newClient(ctx, config, slogLogger)
	if err != nil {
		return err
	}

	var ids []protocol.Id
	for _, id := range splitList(config.EmailID) {
		ids = append(ids, protocol.Id(id))
	}

	res, err := c.DeleteEmails(ctx, ids)
	if err != nil {
		logger.LogError(slogLogger, "Delete failed", "error", err)
		return err
	}

	for _, id := range res.Succeeded {
		fmt.Printf("✓ Deleted %s\n", id)
	}
	for id, se := range res.Failed {
		fmt.Printf("✗ Failed to delete %s: %s (%s)\n", id, se.Type, se.Description)
	}

	logger.LogInfo(slogLogger, "Delete completed",
		"deleted", len(res.Succeeded), "failed", len(res.Failed))
	if len(res.Failed) > 0 {
		return fmt.Errorf("%d of %d emails could not be deleted", len(res.Failed), len(ids))
	}
	return nil
}
