package main

import (
	"context"
	"fmt"
	"log/slog"

	"jmapmail/internal/common/logger"
	"jmapmail/internal/jmap/protocol"
)

// testConnect tests JMAP server connectivity by discovering the session.
func testConnect(ctx context.Context, config *Config, slogLogger *slog.Logger) error {
	discoveryURL := protocol.DiscoveryURL(config.Host)
	fmt.Printf("Testing JMAP connectivity to %s...\n", config.Host)
	fmt.Printf("Discovery URL: %s\n", discoveryURL)

	c, err := newClient(ctx, config, slogLogger)
	if err != nil {
		return err
	}

	session, err := c.Session(ctx)
	if err != nil {
		logger.LogError(slogLogger, "JMAP discovery failed",
			"error", err,
			"host", config.Host)
		return fmt.Errorf("JMAP discovery failed: %w", err)
	}

	fmt.Println("✓ JMAP session discovered successfully")
	fmt.Printf("\nSession Information:\n")
	fmt.Printf("  API URL:      %s\n", session.APIURL)
	fmt.Printf("  Username:     %s\n", session.Username)
	fmt.Printf("  Accounts:     %d\n", len(session.Accounts))

	// Display capabilities
	caps := session.GetCapabilityNames()
	fmt.Printf("  Capabilities: %d\n", len(caps))
	for _, cap := range caps {
		fmt.Printf("    - %s\n", cap)
	}

	// Display accounts
	if len(session.Accounts) > 0 {
		fmt.Printf("\nAccounts:\n")
		for id, account := range session.Accounts {
			fmt.Printf("  %s: %s\n", id, account.Name)
		}
	}

	logger.LogInfo(slogLogger, "JMAP connectivity test completed",
		"host", config.Host,
		"api_url", session.APIURL,
		"capabilities", len(caps),
		"accounts", len(session.Accounts))

	fmt.Println("\n✓ JMAP connectivity test completed")
	return nil
}
