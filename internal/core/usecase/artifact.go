package usecase

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"path/filepath"
	"strings"

	"github.com/liliganster/tp-companion/internal/core/domain"
	"github.com/liliganster/tp-companion/internal/core/ports"
)

// minTextLayerChars is the shortest text layer worth sending instead of the
// raw bytes. Scanned PDFs usually carry no or only a few characters.
const minTextLayerChars = 40

// loadArtifact reads a stored object and prepares it for the AI service.
// PDFs and spreadsheets are sent as their text layer when one exists.
func loadArtifact(ctx context.Context, storage ports.ObjectStorage, text ports.TextLayerExtractor, key, mimeType string) (ports.Artifact, error) {
	rc, err := storage.Open(ctx, key)
	if err != nil {
		return ports.Artifact{}, fmt.Errorf("open artifact: %w", err)
	}
	defer rc.Close()

	data, err := io.ReadAll(io.LimitReader(rc, domain.MaxArtifactBytes+1))
	if err != nil {
		return ports.Artifact{}, fmt.Errorf("read artifact: %w", err)
	}
	if int64(len(data)) > domain.MaxArtifactBytes {
		return ports.Artifact{}, domain.WrapError(domain.ErrTooLarge, "read artifact", fmt.Errorf("object %s exceeds %d bytes", key, domain.MaxArtifactBytes))
	}

	artifact := ports.Artifact{MimeType: domain.NormalizeMimeType(mimeType), Data: data}
	switch artifact.MimeType {
	case domain.MimePDF, domain.MimeXLSX:
	default:
		return artifact, nil
	}
	if text == nil {
		if artifact.MimeType == domain.MimeXLSX {
			return ports.Artifact{}, domain.WrapError(domain.ErrConfiguration, "read artifact", errors.New("spreadsheet reader not configured"))
		}
		return artifact, nil
	}

	layer, err := text.ExtractText(ctx, artifact.MimeType, data)
	if err != nil {
		if artifact.MimeType == domain.MimeXLSX {
			return ports.Artifact{}, fmt.Errorf("read spreadsheet: %w", err)
		}
		slog.Warn("text_layer_failed", "key", key, "error", err)
		return artifact, nil
	}
	if len(strings.TrimSpace(layer)) >= minTextLayerChars || artifact.MimeType == domain.MimeXLSX {
		artifact.Text = layer
	}
	return artifact, nil
}

func sanitizeFilename(name string) string {
	base := filepath.Base(strings.ReplaceAll(name, "\\", "/"))
	base = strings.ReplaceAll(base, " ", "_")
	base = strings.Map(func(r rune) rune {
		switch {
		case r >= 'a' && r <= 'z':
			return r
		case r >= 'A' && r <= 'Z':
			return r
		case r >= '0' && r <= '9':
			return r
		case r == '.', r == '-', r == '_':
			return r
		default:
			return '_'
		}
	}, base)
	if base == "" || base == "." || base == "/" {
		return "callsheet.bin"
	}
	return base
}

// ownsKey reports whether a storage key lives under the user's prefix.
func ownsKey(userID, key string) bool {
	clean := filepath.ToSlash(filepath.Clean(key))
	return userID != "" && strings.HasPrefix(clean, userID+"/") && !strings.Contains(clean, "..")
}
