package main

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"os"

	"golang.org/x/oauth2/clientcredentials"

	"jmapmail/internal/common/logger"
	"jmapmail/internal/common/security"
	"jmapmail/internal/jmap/client"
	"jmapmail/internal/jmap/transport"
)

// executeAction dispatches to the appropriate handler based on action.
func executeAction(ctx context.Context, config *Config, slogLogger *slog.Logger) error {
	switch config.Action {
	case "testconnect":
		return testConnect(ctx, config, slogLogger)
	case "testauth":
		return testAuth(ctx, config, slogLogger)
	case "mailboxes":
		return listMailboxes(ctx, config, slogLogger)
	case "identities":
		return listIdentities(ctx, config, slogLogger)
	case "query":
		return queryEmails(ctx, config, slogLogger)
	case "get":
		return getEmail(ctx, config, slogLogger)
	case "thread":
		return getThread(ctx, config, slogLogger)
	case "labels":
		return getLabels(ctx, config, slogLogger)
	case "send":
		return sendEmail(ctx, config, slogLogger)
	case "draft":
		return saveDraft(ctx, config, slogLogger)
	case "reply":
		return replyEmail(ctx, config, slogLogger)
	case "move":
		return moveEmail(ctx, config, slogLogger)
	case "markread":
		return markRead(ctx, config, slogLogger)
	case "flag":
		return setFlag(ctx, config, slogLogger)
	case "delete":
		return deleteEmails(ctx, config, slogLogger)
	case "attachments":
		return downloadAttachments(ctx, config, slogLogger)
	case "raw":
		return inspectRaw(ctx, config, slogLogger)
	case "poll":
		return runPoll(ctx, config, slogLogger)
	default:
		return fmt.Errorf("unknown action: %s", config.Action)
	}
}

// buildCredentials maps the configured auth method onto transport
// credentials.
func buildCredentials(ctx context.Context, config *Config, slogLogger *slog.Logger) (transport.Credentials, error) {
	switch config.AuthMethod {
	case "basic":
		return transport.Credentials{
			Method:   transport.AuthBasic,
			Username: config.Username,
			Password: config.Password,
		}, nil
	case "bearer":
		return transport.Credentials{
			Method:      transport.AuthBearer,
			AccessToken: config.AccessToken,
		}, nil
	case "oauth2":
		cc := &clientcredentials.Config{
			ClientID:     config.ClientID,
			ClientSecret: config.ClientSecret,
			TokenURL:     config.TokenURL,
			Scopes:       splitList(config.Scopes),
		}
		logger.LogDebug(slogLogger, "OAuth2 client credentials configured",
			"token_url", config.TokenURL,
			"client_id", config.ClientID,
			"client_secret", security.MaskSecret(config.ClientSecret))
		return transport.Credentials{
			Method:      transport.AuthOAuth2,
			TokenSource: cc.TokenSource(ctx),
		}, nil
	default:
		return transport.Credentials{}, fmt.Errorf("unknown auth method: %s", config.AuthMethod)
	}
}

// newClient builds the transport and JMAP client for an action.
func newClient(ctx context.Context, config *Config, slogLogger *slog.Logger) (*client.Client, error) {
	creds, err := buildCredentials(ctx, config, slogLogger)
	if err != nil {
		return nil, err
	}

	tr, err := transport.New(creds, transport.Options{
		SkipVerify:  config.SkipVerify,
		PFXPath:     config.PFXPath,
		PFXPassword: config.PFXPassword,
		RateLimit:   config.RateLimit,
		Logger:      slogLogger,
	})
	if err != nil {
		return nil, err
	}

	return client.New(tr, config.Host, slogLogger), nil
}

// printJSON pretty-prints a result to stdout.
func printJSON(v interface{}) error {
	enc := json.NewEncoder(os.Stdout)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}
