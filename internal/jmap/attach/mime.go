package attach

import (
	"bytes"
	"context"
	"fmt"
	"io"

	"github.com/emersion/go-message/mail"

	"jmapmail/internal/jmap/client"
	"jmapmail/internal/jmap/protocol"
)

// RawPart describes one MIME part of a raw RFC 5322 message.
type RawPart struct {
	Filename string
	Type     string
	Size     int64
	Inline   bool
}

// DownloadRaw fetches the full raw message blob for an email.
func (p *Pipeline) DownloadRaw(ctx context.Context, emailId protocol.Id) ([]byte, error) {
	email, err := p.client.GetEmail(ctx, emailId, client.GetOptions{
		Properties: []string{"id", "blobId", "size"},
	})
	if err != nil {
		return nil, err
	}

	rc, err := p.client.DownloadBlob(ctx, email.BlobId, "message.eml", "message/rfc822")
	if err != nil {
		return nil, fmt.Errorf("failed to download raw message %s: %w", emailId, err)
	}
	defer rc.Close()

	return io.ReadAll(rc)
}

// InspectRaw parses a raw message and lists its MIME parts. Useful when
// the server's attachment metadata is incomplete, e.g. for nested
// message/rfc822 parts.
func InspectRaw(raw []byte) ([]RawPart, error) {
	mr, err := mail.CreateReader(bytes.NewReader(raw))
	if err != nil {
		return nil, fmt.Errorf("failed to parse message: %w", err)
	}
	defer mr.Close()

	var parts []RawPart
	for {
		part, err := mr.NextPart()
		if err == io.EOF {
			break
		}
		if err != nil {
			return nil, fmt.Errorf("failed to read part: %w", err)
		}

		body, err := io.ReadAll(part.Body)
		if err != nil {
			return nil, fmt.Errorf("failed to read part body: %w", err)
		}

		switch h := part.Header.(type) {
		case *mail.InlineHeader:
			contentType, _, _ := h.ContentType()
			parts = append(parts, RawPart{
				Type:   contentType,
				Size:   int64(len(body)),
				Inline: true,
			})
		case *mail.AttachmentHeader:
			filename, _ := h.Filename()
			contentType, _, _ := h.ContentType()
			parts = append(parts, RawPart{
				Filename: filename,
				Type:     contentType,
				Size:     int64(len(body)),
			})
		}
	}
	return parts, nil
}
