// Package attach implements the attachment retrieval pipeline:
// metadata listing, inline/MIME-type selection, and blob download.
package attach

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"strings"

	"jmapmail/internal/common/logger"
	"jmapmail/internal/jmap/client"
	"jmapmail/internal/jmap/protocol"
)

// Selection is the attachment filtering policy.
type Selection struct {
	// IncludeInline keeps parts with inline disposition or a Content-ID.
	IncludeInline bool

	// MIMETypes is an allowlist of exact types ("application/pdf") or
	// type/* wildcards ("image/*"), case-insensitive. Empty means all
	// types pass.
	MIMETypes []string
}

// MatchesMIME reports whether a MIME type passes one filter entry.
func MatchesMIME(mimeType, filter string) bool {
	mimeType = strings.ToLower(strings.TrimSpace(mimeType))
	filter = strings.ToLower(strings.TrimSpace(filter))
	if prefix, ok := strings.CutSuffix(filter, "/*"); ok {
		return strings.HasPrefix(mimeType, prefix+"/")
	}
	return mimeType == filter
}

// Select applies the selection policy to an attachment list, preserving
// order.
func Select(attachments []protocol.Attachment, sel Selection) []protocol.Attachment {
	var out []protocol.Attachment
	for _, att := range attachments {
		if att.IsInline() && !sel.IncludeInline {
			continue
		}
		if len(sel.MIMETypes) > 0 {
			matched := false
			for _, filter := range sel.MIMETypes {
				if MatchesMIME(att.Type, filter) {
					matched = true
					break
				}
			}
			if !matched {
				continue
			}
		}
		out = append(out, att)
	}
	return out
}

// File pairs attachment metadata with its downloaded content.
type File struct {
	Meta protocol.Attachment
	Data []byte
}

// Pipeline fetches attachment metadata and blob content for emails.
type Pipeline struct {
	client *client.Client
	logger *slog.Logger
}

// NewPipeline creates an attachment pipeline over a JMAP client.
func NewPipeline(c *client.Client, log *slog.Logger) *Pipeline {
	return &Pipeline{client: c, logger: log}
}

// List fetches the attachment descriptors of one email. Only the
// attachments property is requested.
func (p *Pipeline) List(ctx context.Context, emailId protocol.Id) ([]protocol.Attachment, error) {
	email, err := p.client.GetEmail(ctx, emailId, client.GetOptions{
		Properties: []string{"id", "attachments"},
	})
	if err != nil {
		return nil, err
	}
	return email.Attachments, nil
}

// Download fetches one attachment's blob content.
func (p *Pipeline) Download(ctx context.Context, att protocol.Attachment) ([]byte, error) {
	name := att.Name
	if name == "" {
		name = "attachment"
	}

	rc, err := p.client.DownloadBlob(ctx, att.BlobId, name, att.Type)
	if err != nil {
		return nil, fmt.Errorf("failed to download blob %s: %w", att.BlobId, err)
	}
	defer rc.Close()

	data, err := io.ReadAll(rc)
	if err != nil {
		return nil, fmt.Errorf("failed to read blob %s: %w", att.BlobId, err)
	}

	logger.LogDebug(p.logger, "Downloaded attachment",
		"blobId", att.BlobId, "name", name, "bytes", len(data))
	return data, nil
}

// DownloadAll lists, selects and downloads the email's attachments,
// sequentially and in order. A failure on any attachment fails the
// whole call; callers needing partial tolerance wrap Download
// individually.
func (p *Pipeline) DownloadAll(ctx context.Context, emailId protocol.Id, sel Selection) ([]File, error) {
	attachments, err := p.List(ctx, emailId)
	if err != nil {
		return nil, err
	}

	selected := Select(attachments, sel)
	files := make([]File, 0, len(selected))
	for _, att := range selected {
		data, err := p.Download(ctx, att)
		if err != nil {
			return nil, fmt.Errorf("email %s: %w", emailId, err)
		}
		files = append(files, File{Meta: att, Data: data})
	}
	return files, nil
}
