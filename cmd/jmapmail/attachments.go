package main

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"

	"jmapmail/internal/common/logger"
	"jmapmail/internal/jmap/attach"
	"jmapmail/internal/jmap/protocol"
)

// downloadAttachments fetches an email's attachments to the output
// directory, applying the inline/MIME selection policy.
func downloadAttachments(ctx context.Context, config *Config, slogLogger *slog.Logger) error {
	c, err := newClient(ctx, config, slogLogger)
	if err != nil {
		return err
	}
	pipeline := attach.NewPipeline(c, slogLogger)

	files, err := pipeline.DownloadAll(ctx, protocol.Id(config.EmailID), attach.Selection{
		IncludeInline: config.IncludeInline,
		MIMETypes:     splitList(config.MIMETypes),
	})
	if err != nil {
		logger.LogError(slogLogger, "Attachment download failed",
			"error", err,
			"email", config.EmailID)
		return err
	}

	if len(files) == 0 {
		fmt.Println("No attachments matched.")
		return nil
	}

	if err := os.MkdirAll(config.OutDir, 0o755); err != nil {
		return fmt.Errorf("failed to create output directory: %w", err)
	}

	for _, file := range files {
		name := file.Meta.Name
		if name == "" {
			name = "attachment-" + string(file.Meta.BlobId)
		}
		path := filepath.Join(config.OutDir, filepath.Base(name))
		if err := os.WriteFile(path, file.Data, 0o644); err != nil {
			return fmt.Errorf("failed to write %s: %w", path, err)
		}
		fmt.Printf("✓ %s (%s, %d bytes)\n", path, file.Meta.Type, len(file.Data))
	}

	logger.LogInfo(slogLogger, "Attachments downloaded",
		"email", config.EmailID, "count", len(files))
	return nil
}

// inspectRaw downloads the raw message and lists its MIME parts.
func inspectRaw(ctx context.Context, config *Config, slogLogger *slog.Logger) error {
	c, err := newClient(ctx, config, slogLogger)
	if err != nil {
		return err
	}
	pipeline := attach.NewPipeline(c, slogLogger)

	raw, err := pipeline.DownloadRaw(ctx, protocol.Id(config.EmailID))
	if err != nil {
		logger.LogError(slogLogger, "Raw download failed",
			"error", err,
			"email", config.EmailID)
		return err
	}

	parts, err := attach.InspectRaw(raw)
	if err != nil {
		return fmt.Errorf("failed to inspect message: %w", err)
	}

	if config.JSONOutput {
		return printJSON(parts)
	}

	fmt.Printf("Message %s: %d bytes, %d MIME parts\n", config.EmailID, len(raw), len(parts))
	for i, part := range parts {
		kind := "attachment"
		if part.Inline {
			kind = "inline"
		}
		name := part.Filename
		if name == "" {
			name = "-"
		}
		fmt.Printf("  %d. %-10s %-26s %8d  %s\n", i+1, kind, part.Type, part.Size, name)
	}
	return nil
}
