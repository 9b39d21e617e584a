// Package convert adapts the Mistral API client to the batch controller's
// Converter interface, one adapter per media type.
package convert

import (
	"context"
	"encoding/base64"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/rs/zerolog"

	"github.com/docscribe/docscribe/internal/batch"
	"github.com/docscribe/docscribe/internal/markdown"
	"github.com/docscribe/docscribe/internal/mistral"
)

// Document converts PDFs through the OCR endpoint. The API returns one
// markdown chunk per page; pages are joined with a blank line, and optionally
// flattened to plain text.
type Document struct {
	Client        *mistral.Client
	Model         string
	PlainText     bool
	ExtractImages bool
	Log           zerolog.Logger
}

func (d *Document) Convert(ctx context.Context, sourcePath string) (*batch.Output, error) {
	result, err := d.Client.ProcessDocument(ctx, sourcePath, d.Model, d.ExtractImages)
	if err != nil {
		return nil, err
	}

	if d.ExtractImages {
		d.writeImages(sourcePath, result)
	}

	pages := make([]string, 0, len(result.Pages))
	for _, p := range result.Pages {
		pages = append(pages, p.Markdown)
	}
	content := strings.Join(pages, "\n\n")
	if d.PlainText {
		content = markdown.ToText(content)
	}

	units := len(result.Pages)
	if result.Usage.PagesProcessed > 0 {
		units = result.Usage.PagesProcessed
	}

	return &batch.Output{Content: content, Units: units}, nil
}

// writeImages saves embedded images next to the source file as
// <stem>_<image-id>. Image failures are logged, not fatal; the text output
// is the point of the run.
func (d *Document) writeImages(sourcePath string, result *mistral.OCRResult) {
	dir := filepath.Dir(sourcePath)
	stem := strings.TrimSuffix(filepath.Base(sourcePath), filepath.Ext(sourcePath))

	for _, page := range result.Pages {
		for _, img := range page.Images {
			if img.Base64 == "" {
				continue
			}
			data, err := base64.StdEncoding.DecodeString(img.Base64)
			if err != nil {
				d.Log.Warn().Str("image", img.ID).Err(err).Msg("image decode failed")
				continue
			}
			name := fmt.Sprintf("%s_%s", stem, img.ID)
			if filepath.Ext(name) == "" {
				name += ".png"
			}
			imgPath := filepath.Join(dir, name)
			if err := os.WriteFile(imgPath, data, 0644); err != nil {
				d.Log.Warn().Str("image", imgPath).Err(err).Msg("image write failed")
				continue
			}
			d.Log.Info().Str("image", name).Msg("extracted image")
		}
	}
}

// Audio converts audio files through the transcription endpoint. The API
// bills transcription per file, so the unit count is always 1.
type Audio struct {
	Client *mistral.Client
	Model  string
}

func (a *Audio) Convert(ctx context.Context, sourcePath string) (*batch.Output, error) {
	result, err := a.Client.Transcribe(ctx, sourcePath, a.Model)
	if err != nil {
		return nil, err
	}
	return &batch.Output{Content: result.Text, Units: 1}, nil
}
