package main

import (
	"context"
	"fmt"
	"log/slog"

	"jmapmail/internal/common/logger"
	"jmapmail/internal/jmap/client"
	"jmapmail/internal/jmap/protocol"
)

// buildFilter assembles the query filter from flags.
func buildFilter(ctx context.Context, c *client.Client, config *Config) (*protocol.EmailFilter, error) {
	filter := &protocol.EmailFilter{}
	if config.Mailbox != "" {
		mailboxId, err := c.ResolveMailboxID(ctx, config.Mailbox)
		if err != nil {
			return nil, err
		}
		filter.InMailbox = mailboxId
	}
	if config.Unread {
		filter.UnreadOnly()
	}
	if config.Flagged {
		filter.FlaggedOnly()
	}
	filter.Text = config.Search
	return filter, nil
}

// queryEmails searches emails and prints a summary listing.
func queryEmails(ctx context.Context, config *Config, slogLogger *slog.Logger) error {
	c, err := newClient(ctx, config, slogLogger)
	if err != nil {
		return err
	}

	filter, err := buildFilter(ctx, c, config)
	if err != nil {
		return err
	}

	query, err := c.QueryEmails(ctx, client.QueryOptions{
		Filter: filter,
		Limit:  uint32(config.Limit),
	})
	if err != nil {
		logger.LogError(slogLogger, "Email query failed", "error", err)
		return err
	}

	if len(query.Ids) == 0 {
		fmt.Println("No emails matched.")
		return nil
	}

	fetched, err := c.GetEmails(ctx, query.Ids, client.GetOptions{})
	if err != nil {
		return err
	}

	if config.JSONOutput {
		return printJSON(fetched.List)
	}

	fmt.Printf("Found %d of %d emails:\n", len(fetched.List), query.Total)
	for _, email := range fetched.List {
		from := "-"
		if len(email.From) > 0 {
			from = email.From[0].Email
		}
		flags := ""
		if !email.IsRead() {
			flags += "N"
		}
		if email.IsFlagged() {
			flags += "F"
		}
		if email.HasAttachment {
			flags += "A"
		}
		fmt.Printf("  %-26s %-3s %-19s %-28s %s\n",
			email.Id, flags, email.ReceivedAt.Format("2006-01-02 15:04:05"), from, email.Subject)
	}

	logger.LogInfo(slogLogger, "Email query completed",
		"matched", query.Total, "fetched", len(fetched.List))
	return nil
}

// getEmail fetches one email with its bodies.
func getEmail(ctx context.Context, config *Config, slogLogger *slog.Logger) error {
	c, err := newClient(ctx, config, slogLogger)
	if err != nil {
		return err
	}

	email, err := c.GetEmail(ctx, protocol.Id(config.EmailID), client.GetOptions{
		FetchTextBody: true,
		FetchHTMLBody: true,
	})
	if err != nil {
		logger.LogError(slogLogger, "Failed to get email",
			"error", err,
			"email", config.EmailID)
		return err
	}

	if config.JSONOutput {
		return printJSON(email)
	}

	printAddresses := func(label string, addrs []protocol.EmailAddress) {
		if len(addrs) == 0 {
			return
		}
		fmt.Printf("%s:", label)
		for _, a := range addrs {
			if a.Name != "" {
				fmt.Printf(" %s <%s>", a.Name, a.Email)
			} else {
				fmt.Printf(" %s", a.Email)
			}
		}
		fmt.Println()
	}

	fmt.Printf("Id:       %s\n", email.Id)
	fmt.Printf("Thread:   %s\n", email.ThreadId)
	printAddresses("From", email.From)
	printAddresses("To", email.To)
	printAddresses("Cc", email.Cc)
	fmt.Printf("Date:     %s\n", email.ReceivedAt.Format("2006-01-02 15:04:05"))
	fmt.Printf("Subject:  %s\n", email.Subject)

	for _, part := range email.TextBody {
		if bv, ok := email.BodyValues[part.PartId]; ok {
			fmt.Printf("\n%s\n", bv.Value)
			if bv.IsTruncated {
				fmt.Println("[body truncated]")
			}
		}
	}
	return nil
}

// getThread fetches every email in a thread, in thread order.
func getThread(ctx context.Context, config *Config, slogLogger *slog.Logger) error {
	c, err := newClient(ctx, config, slogLogger)
	if err != nil {
		return err
	}

	emails, err := c.ThreadEmails(ctx, protocol.Id(config.ThreadID), client.GetOptions{})
	if err != nil {
		logger.LogError(slogLogger, "Failed to get thread",
			"error", err,
			"thread", config.ThreadID)
		return err
	}

	if config.JSONOutput {
		return printJSON(emails)
	}

	fmt.Printf("Thread %s has %d emails:\n", config.ThreadID, len(emails))
	for _, email := range emails {
		from := "-"
		if len(email.From) > 0 {
			from = email.From[0].Email
		}
		fmt.Printf("  %-26s %-19s %-28s %s\n",
			email.Id, email.ReceivedAt.Format("2006-01-02 15:04:05"), from, email.Subject)
	}
	return nil
}
