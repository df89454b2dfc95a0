package processor

import (
	"bytes"
	"context"
	"fmt"
	"image"
	"image/jpeg"
	_ "image/png" // PNG format support

	"github.com/disintegration/imaging"
	"github.com/genricoloni/nowplayingd/internal/domain"
	"go.uber.org/zap"
)

const (
	defaultBlurRadius = 15.0
	defaultCardSize   = 512
	coverSizeRatio    = 0.70 // Cover edge as a fraction of the card edge
	jpegQuality       = 90
)

// ProcessorConfig holds configuration for image processing
type ProcessorConfig struct {
	Size             int
	BlurRadius       float64
	CoverSizePercent float64 // Cover edge as a fraction of the card edge (0.0-1.0)
}

// BlurProcessor renders square cover cards: the artwork blurred to fill the
// card with a sharp copy centred on top
type BlurProcessor struct {
	logger *zap.Logger
	config ProcessorConfig
}

var _ domain.ImageProcessor = (*BlurProcessor)(nil)

// NewBlurProcessor creates a processor producing size x size cards
func NewBlurProcessor(logger *zap.Logger, size int) *BlurProcessor {
	if size <= 0 {
		size = defaultCardSize
	}
	return &BlurProcessor{
		logger: logger,
		config: ProcessorConfig{
			Size:             size,
			BlurRadius:       defaultBlurRadius,
			CoverSizePercent: coverSizeRatio,
		},
	}
}

// Process decodes imageData and returns the rendered card as JPEG
func (p *BlurProcessor) Process(ctx context.Context, imageData []byte) ([]byte, error) {
	img, _, err := image.Decode(bytes.NewReader(imageData))
	if err != nil {
		return nil, fmt.Errorf("failed to decode image: %w", err)
	}

	// Validate image dimensions to prevent division by zero
	bounds := img.Bounds()
	if bounds.Dy() == 0 || bounds.Dx() == 0 {
		return nil, fmt.Errorf("invalid image dimensions: %dx%d", bounds.Dx(), bounds.Dy())
	}

	size := p.config.Size

	p.logger.Debug("Creating blurred background", zap.Int("size", size))
	background := imaging.Fill(img, size, size, imaging.Center, imaging.Lanczos)
	background = imaging.Blur(background, p.config.BlurRadius)

	// Fit the sharp cover in a square box, keeping its aspect ratio
	box := int(float64(size) * p.config.CoverSizePercent)
	if box < 1 {
		box = 1
	}
	cover := imaging.Fit(img, box, box, imaging.Lanczos)
	if cover.Bounds().Dx() < box && cover.Bounds().Dy() < box {
		// Fit never upscales
		cover = imaging.Resize(img, box, 0, imaging.Lanczos)
		if cover.Bounds().Dy() > box {
			cover = imaging.Resize(img, 0, box, imaging.Lanczos)
		}
	}

	cb := cover.Bounds()
	result := imaging.Paste(background, cover, image.Pt((size-cb.Dx())/2, (size-cb.Dy())/2))

	buf := new(bytes.Buffer)
	if err := jpeg.Encode(buf, result, &jpeg.Options{Quality: jpegQuality}); err != nil {
		return nil, fmt.Errorf("failed to encode result: %w", err)
	}

	p.logger.Debug("Cover card rendered", zap.Int("bytes", buf.Len()))
	return buf.Bytes(), nil
}
