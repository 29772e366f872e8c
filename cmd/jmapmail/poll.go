package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/BurntSushi/toml"

	"jmapmail/internal/common/logger"
	"jmapmail/internal/common/retry"
	"jmapmail/internal/jmap/poller"
)

// duration lets TOML carry Go duration strings like "90s".
type duration time.Duration

func (d *duration) UnmarshalText(text []byte) error {
	parsed, err := time.ParseDuration(string(text))
	if err != nil {
		return err
	}
	*d = duration(parsed)
	return nil
}

// PollSettings is the trigger configuration for the poll action, read
// from a TOML file.
type PollSettings struct {
	Mailbox            string   `toml:"mailbox"`
	StateKey           string   `toml:"state_key"`
	Simple             bool     `toml:"simple"`
	IncludeAttachments bool     `toml:"include_attachments"`
	PageSize           uint32   `toml:"page_size"`
	Interval           duration `toml:"interval"`
	MaxCycles          int      `toml:"max_cycles"`
	Retries            int      `toml:"retries"`
}

// loadPollSettings reads the TOML trigger file, falling back to
// defaults and the -mailbox flag when no file is given.
func loadPollSettings(config *Config) (*PollSettings, error) {
	settings := &PollSettings{
		Simple:   true,
		Interval: duration(60 * time.Second),
		Retries:  2,
	}
	if config.PollConfigPath != "" {
		if _, err := toml.DecodeFile(config.PollConfigPath, settings); err != nil {
			return nil, fmt.Errorf("failed to read poll config: %w", err)
		}
	}
	if settings.Mailbox == "" {
		settings.Mailbox = config.Mailbox
	}
	if settings.Interval <= 0 {
		settings.Interval = duration(60 * time.Second)
	}
	return settings, nil
}

// runPoll runs the incremental polling loop until interrupted or
// max_cycles is reached. Each emitted batch is printed as one JSON
// document.
func runPoll(ctx context.Context, config *Config, slogLogger *slog.Logger) error {
	settings, err := loadPollSettings(config)
	if err != nil {
		return err
	}

	c, err := newClient(ctx, config, slogLogger)
	if err != nil {
		return err
	}

	store, err := poller.OpenSQLStore(config.StateDB)
	if err != nil {
		return err
	}
	defer store.Close()

	opts := poller.Options{
		StateKey:           settings.StateKey,
		Simple:             settings.Simple,
		IncludeAttachments: settings.IncludeAttachments,
		PageSize:           settings.PageSize,
	}
	if settings.Mailbox != "" {
		mailboxId, err := c.ResolveMailboxID(ctx, settings.Mailbox)
		if err != nil {
			return err
		}
		opts.Mailbox = mailboxId
	}

	p := poller.New(c, store, opts, slogLogger)
	interval := time.Duration(settings.Interval)

	logger.LogInfo(slogLogger, "Polling started",
		"mailbox", settings.Mailbox,
		"interval", interval,
		"state_db", config.StateDB)

	for cycle := 1; ; cycle++ {
		var result *poller.Result
		err := retry.RetryWithBackoff(ctx, settings.Retries, 2*time.Second, func() error {
			var cycleErr error
			result, cycleErr = p.Cycle(ctx)
			return cycleErr
		})
		if err != nil {
			if errors.Is(err, context.Canceled) {
				return nil
			}
			logger.LogError(slogLogger, "Poll cycle failed", "cycle", cycle, "error", err)
			return err
		}

		if result.NoData {
			logger.LogDebug(slogLogger, "Poll cycle produced no data", "cycle", cycle)
		} else if settings.Simple {
			if err := printJSON(result.Records); err != nil {
				return err
			}
		} else {
			if err := printJSON(result.Emails); err != nil {
				return err
			}
		}

		if settings.MaxCycles > 0 && cycle >= settings.MaxCycles {
			logger.LogInfo(slogLogger, "Polling finished", "cycles", cycle)
			return nil
		}

		select {
		case <-ctx.Done():
			return nil
		case <-time.After(interval):
		}
	}
}
