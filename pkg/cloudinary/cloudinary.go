// Package cloudinary archives generated certificate decks as raw Cloudinary assets.
package cloudinary

import (
	"context"
	"fmt"
	"io"
	"path"
	"strings"
	"time"

	"github.com/cloudinary/cloudinary-go/v2"
	"github.com/cloudinary/cloudinary-go/v2/api"
	"github.com/cloudinary/cloudinary-go/v2/api/uploader"
	"github.com/rs/zerolog"
)

const archiveTag = "certificate-deck"

// Config contains credentials required to talk to Cloudinary.
type Config struct {
	CloudName string
	APIKey    string
	APISecret string
	Folder    string
}

// DeckArchive stores decks under a folder and returns their secure URL.
type DeckArchive struct {
	client *cloudinary.Cloudinary
	folder string
	logger zerolog.Logger
	now    func() time.Time
}

// New constructs a deck archive.
func New(cfg Config, logger zerolog.Logger) (*DeckArchive, error) {
	if cfg.CloudName == "" || cfg.APIKey == "" || cfg.APISecret == "" {
		return nil, fmt.Errorf("cloudinary credentials must be provided")
	}

	cld, err := cloudinary.NewFromParams(cfg.CloudName, cfg.APIKey, cfg.APISecret)
	if err != nil {
		return nil, fmt.Errorf("failed to initialize cloudinary: %w", err)
	}

	return &DeckArchive{
		client: cld,
		folder: strings.Trim(cfg.Folder, "/"),
		logger: logger.With().Str("component", "deck_archive").Logger(),
		now:    time.Now,
	}, nil
}

// Upload stores the deck as a raw asset. Raw public ids keep their extension,
// otherwise the asset downloads without one.
func (a *DeckArchive) Upload(ctx context.Context, name string, reader io.Reader) (string, error) {
	publicID := buildPublicID(name, a.now())

	result, err := a.client.Upload.Upload(ctx, reader, uploader.UploadParams{
		Folder:         a.folder,
		PublicID:       publicID,
		ResourceType:   "raw",
		Tags:           api.CldAPIArray{archiveTag},
		UniqueFilename: api.Bool(false),
		Overwrite:      api.Bool(false),
	})
	if err != nil {
		return "", fmt.Errorf("failed to archive deck: %w", err)
	}
	if result.Error.Message != "" {
		return "", fmt.Errorf("failed to archive deck: %s", result.Error.Message)
	}

	a.logger.Info().Str("public_id", result.PublicID).Int("bytes", result.Bytes).Msg("deck archived")
	return result.SecureURL, nil
}

// buildPublicID turns a file name into a timestamped, URL-safe public id.
func buildPublicID(name string, at time.Time) string {
	ext := strings.ToLower(path.Ext(name))
	base := strings.TrimSuffix(path.Base(name), path.Ext(name))
	base = strings.Map(func(r rune) rune {
		if (r >= 'a' && r <= 'z') || (r >= 'A' && r <= 'Z') || (r >= '0' && r <= '9') || r == '_' {
			return r
		}
		return '-'
	}, base)

	base = strings.Trim(base, "-")
	if base == "" {
		base = "deck"
	}
	if ext == "" || ext == "." {
		ext = ".pptx"
	}

	return fmt.Sprintf("%s-%s%s", base, at.UTC().Format("20060102T150405"), ext)
}
