// Package imaging normalises uploaded receipt photos before they are stored.
package imaging

import (
	"bytes"
	"fmt"
	"image"
	"image/jpeg"
	_ "image/png"

	"github.com/disintegration/imaging"
	_ "golang.org/x/image/webp"
)

// Config for receipt processing
type Config struct {
	MaxWidth  int // default 1600
	MaxHeight int // default 1600
	Quality   int // JPEG quality 1-100 (default 85)
}

// DefaultConfig returns default processing config
func DefaultConfig() Config {
	return Config{
		MaxWidth:  1600,
		MaxHeight: 1600,
		Quality:   85,
	}
}

// Processor downscales receipt images and re-encodes them as JPEG.
type Processor struct {
	config Config
}

// NewProcessor creates image processor
func NewProcessor(config Config) *Processor {
	def := DefaultConfig()
	if config.MaxWidth <= 0 {
		config.MaxWidth = def.MaxWidth
	}
	if config.MaxHeight <= 0 {
		config.MaxHeight = def.MaxHeight
	}
	if config.Quality <= 0 || config.Quality > 100 {
		config.Quality = def.Quality
	}
	return &Processor{config: config}
}

// Result is a normalised image.
type Result struct {
	Data        []byte
	ContentType string
	Width       int
	Height      int
}

// Normalize decodes data, applies EXIF orientation, fits it inside the configured
// bounds and encodes it as JPEG.
func (p *Processor) Normalize(data []byte) (*Result, error) {
	img, err := imaging.Decode(bytes.NewReader(data), imaging.AutoOrientation(true))
	if err != nil {
		return nil, fmt.Errorf("failed to decode image: %w", err)
	}

	b := img.Bounds()
	if b.Dx() > p.config.MaxWidth || b.Dy() > p.config.MaxHeight {
		img = imaging.Fit(img, p.config.MaxWidth, p.config.MaxHeight, imaging.Lanczos)
	}

	// JPEG has no alpha channel; transparent pixels become white.
	bg := imaging.New(img.Bounds().Dx(), img.Bounds().Dy(), image.White)
	flat := imaging.Overlay(bg, img, image.Pt(0, 0), 1.0)

	var buf bytes.Buffer
	if err := jpeg.Encode(&buf, flat, &jpeg.Options{Quality: p.config.Quality}); err != nil {
		return nil, fmt.Errorf("failed to encode image: %w", err)
	}

	return &Result{
		Data:        buf.Bytes(),
		ContentType: "image/jpeg",
		Width:       flat.Bounds().Dx(),
		Height:      flat.Bounds().Dy(),
	}, nil
}

// IsImage reports whether mimeType is handled by Normalize.
func IsImage(mimeType string) bool {
	switch mimeType {
	case "image/jpeg", "image/png", "image/webp":
		return true
	}
	return false
}
