package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"jmapmail/internal/common/logger"
	"jmapmail/internal/jmap/client"
	"jmapmail/internal/jmap/protocol"
)

// messageFromConfig assembles the outgoing message from flags.
func messageFromConfig(config *Config) client.Message {
	return client.Message{
		From:     config.From,
		To:       splitList(config.To),
		Cc:       splitList(config.Cc),
		Bcc:      splitList(config.Bcc),
		Subject:  config.Subject,
		TextBody: config.Body,
		HTMLBody: config.HTMLBody,
	}
}

// sendEmail sends an email via draft + submission in one envelope.
func sendEmail(ctx context.Context, config *Config, slogLogger *slog.Logger) error {
	c, err := newClient(ctx, config, slogLogger)
	if err != nil {
		return err
	}

	id, err := c.SendEmail(ctx, messageFromConfig(config))
	if err != nil {
		var sendErr *client.SendFailedError
		if errors.As(err, &sendErr) {
			// The draft survived the failed submission; report it so the
			// user can clean up or resubmit.
			logger.LogError(slogLogger, "Submission failed, draft left undeleted",
				"draft", sendErr.DraftId, "error", sendErr.Err)
			return err
		}
		logger.LogError(slogLogger, "Send failed", "error", err)
		return err
	}

	fmt.Printf("✓ Email sent (id %s)\n", id)
	logger.LogInfo(slogLogger, "Email sent", "email", id, "to", config.To)
	return nil
}

// saveDraft stores a draft without submitting it.
func saveDraft(ctx context.Context, config *Config, slogLogger *slog.Logger) error {
	c, err := newClient(ctx, config, slogLogger)
	if err != nil {
		return err
	}

	id, err := c.SaveDraft(ctx, messageFromConfig(config))
	if err != nil {
		logger.LogError(slogLogger, "Failed to save draft", "error", err)
		return err
	}

	fmt.Printf("✓ Draft saved (id %s)\n", id)
	logger.LogInfo(slogLogger, "Draft saved", "email", id)
	return nil
}

// replyEmail replies to an existing email.
func replyEmail(ctx context.Context, config *Config, slogLogger *slog.Logger) error {
	c, err := newClient(ctx, config, slogLogger)
	if err != nil {
		return err
	}

	id, err := c.Reply(ctx, protocol.Id(config.EmailID), messageFromConfig(config))
	if err != nil {
		logger.LogError(slogLogger, "Reply failed",
			"error", err,
			"email", config.EmailID)
		return err
	}

	fmt.Printf("✓ Reply sent (id %s)\n", id)
	logger.LogInfo(slogLogger, "Reply sent", "email", id, "in_reply_to", config.EmailID)
	return nil
}
