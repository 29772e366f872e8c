package main

import (
	"context"
	"fmt"
	"log/slog"

	"jmapmail/internal/common/logger"
	"jmapmail/internal/common/security"
)

// testAuth verifies credentials by resolving the session and the
// primary account with authentication applied.
func testAuth(ctx context.Context, config *Config, slogLogger *slog.Logger) error {
	fmt.Printf("Testing JMAP authentication to %s...\n", config.Host)
	fmt.Printf("Auth method: %s\n", config.AuthMethod)
	if config.Username != "" {
		fmt.Printf("Username: %s\n", security.MaskUsername(config.Username))
	}

	c, err := newClient(ctx, config, slogLogger)
	if err != nil {
		return err
	}

	session, err := c.Session(ctx)
	if err != nil {
		logger.LogError(slogLogger, "JMAP authentication failed",
			"error", err,
			"host", config.Host,
			"auth_method", config.AuthMethod)
		return fmt.Errorf("authentication failed: %w", err)
	}

	accountId, err := c.PrimaryAccountID(ctx)
	if err != nil {
		return fmt.Errorf("no usable account: %w", err)
	}

	fmt.Println("✓ Authentication successful")
	fmt.Printf("\n  Session username: %s\n", session.Username)
	fmt.Printf("  Primary account:  %s\n", accountId)
	fmt.Printf("  Mail capability:  %v\n", session.HasMailCapability())
	fmt.Printf("  Submission:       %v\n", session.HasSubmissionCapability())

	logger.LogInfo(slogLogger, "JMAP authentication test completed",
		"host", config.Host,
		"auth_method", config.AuthMethod,
		"account", accountId)

	fmt.Println("\n✓ JMAP authentication test completed")
	return nil
}
