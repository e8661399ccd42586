// Package assets turns image references from quiz documents into public
// URLs, optionally through the hashed WebP manifest written by the image
// build step.
package assets

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io/fs"
	"log/slog"
	"os"

	"github.com/DoctorPlant/DrPlantTelegramApp/core/logger"
)

// Manifest maps "<dir>/<name>.webp" to the hashed file name produced for it,
// for example "symptoms/spots.webp" -> "spots.3f9a1c2b.webp".
type Manifest map[string]string

// LoadManifest reads the manifest at path. A missing file is not an error:
// it yields an empty manifest and a warning, and original paths are served.
func LoadManifest(ctx context.Context, path string) (Manifest, error) {
	if path == "" {
		return Manifest{}, nil
	}
	data, err := os.ReadFile(path)
	if errors.Is(err, fs.ErrNotExist) {
		logger.Warn(ctx, logger.ComponentAssets, "manifest.missing",
			slog.String("path", path),
		)
		return Manifest{}, nil
	}
	if err != nil {
		return nil, fmt.Errorf("assets: read manifest: %w", err)
	}
	m, err := ParseManifest(data)
	if err != nil {
		return nil, fmt.Errorf("assets: %s: %w", path, err)
	}
	logger.Info(ctx, logger.ComponentAssets, "manifest.loaded",
		slog.String("path", path),
		slog.Int("entries", len(m)),
	)
	return m, nil
}

// ParseManifest decodes a manifest document.
func ParseManifest(data []byte) (Manifest, error) {
	m := Manifest{}
	if err := json.Unmarshal(data, &m); err != nil {
		return nil, fmt.Errorf("decode manifest: %w", err)
	}
	return m, nil
}
