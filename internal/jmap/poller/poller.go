// Package poller implements the incremental new-mail polling state
// machine. Each cycle queries for emails past a persisted watermark,
// re-filters the fetched set by strict receivedAt comparison to absorb
// server-defined boundary semantics, and advances the watermark only
// when something genuinely new was seen.
package poller

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"jmapmail/internal/common/logger"
	"jmapmail/internal/jmap/client"
	"jmapmail/internal/jmap/protocol"
)

// defaultPageSize caps the IDs fetched per cycle.
const defaultPageSize = 100

// defaultStateKey names the watermark entry in the state store.
const defaultStateKey = "watermark"

// Options configures what a poll cycle queries and emits.
type Options struct {
	// Mailbox optionally scopes the query to one mailbox.
	Mailbox protocol.Id

	// StateKey names the watermark entry in the state store. Empty
	// means "watermark". Distinct pollers over one store need distinct
	// keys.
	StateKey string

	// Simple emits the reduced Record projection instead of full email
	// records.
	Simple bool

	// IncludeAttachments adds attachment descriptors to fetched
	// records.
	IncludeAttachments bool

	// PageSize caps each query; zero or anything above 100 falls
	// back to 100.
	PageSize uint32
}

// Record is the simplified projection emitted in simple mode.
type Record struct {
	Id            protocol.Id             `json:"id"`
	ThreadId      protocol.Id             `json:"threadId"`
	From          []protocol.EmailAddress `json:"from"`
	To            []protocol.EmailAddress `json:"to"`
	Cc            []protocol.EmailAddress `json:"cc,omitempty"`
	Subject       string                  `json:"subject"`
	Preview       string                  `json:"preview"`
	ReceivedAt    time.Time               `json:"receivedAt"`
	HasAttachment bool                    `json:"hasAttachment"`
	IsRead        bool                    `json:"isRead"`
	IsFlagged     bool                    `json:"isFlagged"`
}

// Result is the outcome of one poll cycle: either no data (watermark
// untouched) or one batch with the watermark it advanced to.
type Result struct {
	NoData    bool
	Watermark time.Time

	// Emails holds full records; Records holds simple projections. At
	// most one of the two is populated, per Options.Simple.
	Emails  []protocol.Email
	Records []Record
}

// simpleProperties is the Email/get allowlist for the Record
// projection.
var simpleProperties = []string{
	"id", "threadId", "from", "to", "cc", "subject", "preview",
	"receivedAt", "hasAttachment", "keywords",
}

// Poller runs poll cycles against a JMAP client, carrying state only
// through the injected store.
type Poller struct {
	client *client.Client
	store  StateStore
	opts   Options
	logger *slog.Logger
}

// New creates a poller. The store holds the watermark between cycles.
func New(c *client.Client, store StateStore, opts Options, log *slog.Logger) *Poller {
	if opts.StateKey == "" {
		opts.StateKey = defaultStateKey
	}
	if opts.PageSize == 0 || opts.PageSize > defaultPageSize {
		opts.PageSize = defaultPageSize
	}
	return &Poller{client: c, store: store, opts: opts, logger: log}
}

// Cycle runs one poll: query, fetch, deduplicate, emit. It returns no
// data without touching the watermark when nothing strictly newer than
// the watermark was found.
func (p *Poller) Cycle(ctx context.Context) (*Result, error) {
	watermark, err := p.loadWatermark(ctx)
	if err != nil {
		return nil, err
	}

	filter := &protocol.EmailFilter{InMailbox: p.opts.Mailbox}
	if !watermark.IsZero() {
		filter.ReceivedAfter(watermark)
	}

	query, err := p.client.QueryEmails(ctx, client.QueryOptions{
		Filter: filter,
		Sort:   protocol.SortReceivedAtDesc(),
		Limit:  p.opts.PageSize,
	})
	if err != nil {
		return nil, fmt.Errorf("poll query failed: %w", err)
	}
	if len(query.Ids) == 0 {
		logger.LogDebug(p.logger, "Poll cycle found no candidates", "watermark", watermark)
		return &Result{NoData: true, Watermark: watermark}, nil
	}

	fetched, err := p.client.GetEmails(ctx, query.Ids, client.GetOptions{
		Properties: p.properties(),
	})
	if err != nil {
		return nil, fmt.Errorf("poll fetch failed: %w", err)
	}
	if len(fetched.List) == 0 {
		return &Result{NoData: true, Watermark: watermark}, nil
	}

	// The after-filter boundary is server-defined and may be inclusive;
	// only emails strictly past the watermark are new. The watermark
	// still advances to the maximum over the whole fetched set, so a
	// cycle that drops boundary duplicates moves past the newest entry
	// it saw.
	var maxReceived time.Time
	var fresh []protocol.Email
	for _, email := range fetched.List {
		if email.ReceivedAt.After(maxReceived) {
			maxReceived = email.ReceivedAt
		}
		if watermark.IsZero() || email.ReceivedAt.After(watermark) {
			fresh = append(fresh, email)
		}
	}

	if len(fresh) == 0 {
		logger.LogDebug(p.logger, "Poll cycle found only boundary duplicates",
			"watermark", watermark, "fetched", len(fetched.List))
		return &Result{NoData: true, Watermark: watermark}, nil
	}

	if maxReceived.After(watermark) {
		if err := p.store.Set(ctx, p.opts.StateKey, maxReceived.Format(time.RFC3339Nano)); err != nil {
			return nil, fmt.Errorf("failed to persist watermark: %w", err)
		}
		watermark = maxReceived
	}

	logger.LogInfo(p.logger, "Poll cycle emitted batch",
		"emails", len(fresh), "watermark", watermark)

	result := &Result{Watermark: watermark}
	if p.opts.Simple {
		result.Records = project(fresh)
	} else {
		result.Emails = fresh
	}
	return result, nil
}

func (p *Poller) properties() []string {
	props := client.MetadataProperties
	if p.opts.Simple {
		props = simpleProperties
	}
	if p.opts.IncludeAttachments {
		props = append(append([]string{}, props...), "attachments")
	}
	return props
}

func (p *Poller) loadWatermark(ctx context.Context) (time.Time, error) {
	value, err := p.store.Get(ctx, p.opts.StateKey)
	if err != nil {
		return time.Time{}, fmt.Errorf("failed to load watermark: %w", err)
	}
	if value == "" {
		return time.Time{}, nil
	}
	t, err := time.Parse(time.RFC3339Nano, value)
	if err != nil {
		return time.Time{}, fmt.Errorf("malformed watermark %q: %w", value, err)
	}
	return t, nil
}

func project(emails []protocol.Email) []Record {
	records := make([]Record, 0, len(emails))
	for i := range emails {
		e := &emails[i]
		records = append(records, Record{
			Id:            e.Id,
			ThreadId:      e.ThreadId,
			From:          e.From,
			To:            e.To,
			Cc:            e.Cc,
			Subject:       e.Subject,
			Preview:       e.Preview,
			ReceivedAt:    e.ReceivedAt,
			HasAttachment: e.HasAttachment,
			IsRead:        e.IsRead(),
			IsFlagged:     e.IsFlagged(),
		})
	}
	return records
}
