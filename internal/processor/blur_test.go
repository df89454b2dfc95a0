package processor

import (
	"bytes"
	"context"
	"image"
	"image/color"
	"image/jpeg"
	"strings"
	"testing"

	"go.uber.org/zap"
)

func TestBlurProcessor_Process(t *testing.T) {
	tests := []struct {
		name          string
		imageData     []byte
		size          int
		expectedSize  int
		expectedError string
	}{
		{
			name:         "Success - Square Cover",
			imageData:    createTestJPEG(100, 100, color.RGBA{R: 255, G: 0, B: 0, A: 255}),
			size:         512,
			expectedSize: 512,
		},
		{
			name:         "Success - Wide Cover",
			imageData:    createTestJPEG(200, 150, color.RGBA{R: 0, G: 255, B: 0, A: 255}),
			size:         300,
			expectedSize: 300,
		},
		{
			name:         "Success - Default Size",
			imageData:    createTestJPEG(64, 64, color.RGBA{R: 0, G: 0, B: 255, A: 255}),
			size:         0,
			expectedSize: defaultCardSize,
		},
		{
			name:         "Edge Case - Very Small Image",
			imageData:    createTestJPEG(1, 1, color.RGBA{R: 128, G: 128, B: 128, A: 255}),
			size:         256,
			expectedSize: 256,
		},
		{
			name:          "Error - Invalid Image Data",
			imageData:     []byte("not-an-image"),
			size:          512,
			expectedError: "failed to decode image",
		},
		{
			name:          "Error - Empty Data",
			imageData:     []byte{},
			size:          512,
			expectedError: "failed to decode image",
		},
		{
			name:          "Error - Corrupted JPEG",
			imageData:     []byte{0xFF, 0xD8, 0xFF, 0x00, 0x00},
			size:          512,
			expectedError: "failed to decode image",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			processor := NewBlurProcessor(zap.NewNop(), tt.size)
			result, err := processor.Process(context.Background(), tt.imageData)

			if tt.expectedError != "" {
				if err == nil {
					t.Fatalf("expected error containing '%s', got nil", tt.expectedError)
				}
				if !strings.Contains(err.Error(), tt.expectedError) {
					t.Errorf("expected error '%s' to contain '%s'", err.Error(), tt.expectedError)
				}
				return
			}
			if err != nil {
				t.Fatalf("unexpected error: %v", err)
			}

			img, _, err := image.Decode(bytes.NewReader(result))
			if err != nil {
				t.Fatalf("result is not a valid image: %v", err)
			}
			bounds := img.Bounds()
			if bounds.Dx() != tt.expectedSize || bounds.Dy() != tt.expectedSize {
				t.Errorf("expected %dx%d, got %dx%d", tt.expectedSize, tt.expectedSize, bounds.Dx(), bounds.Dy())
			}
		})
	}
}

// TestBlurProcessor_CentreIsSharpCover checks that the centre pixel comes from the cover, not the blur
func TestBlurProcessor_CentreIsSharpCover(t *testing.T) {
	img := image.NewRGBA(image.Rect(0, 0, 100, 100))
	for y := 0; y < 100; y++ {
		for x := 0; x < 100; x++ {
			if x < 50 {
				img.Set(x, y, color.RGBA{R: 255, A: 255})
			} else {
				img.Set(x, y, color.RGBA{B: 255, A: 255})
			}
		}
	}
	buf := new(bytes.Buffer)
	if err := jpeg.Encode(buf, img, &jpeg.Options{Quality: 95}); err != nil {
		t.Fatalf("encode: %v", err)
	}

	result, err := NewBlurProcessor(zap.NewNop(), 200).Process(context.Background(), buf.Bytes())
	if err != nil {
		t.Fatalf("Process: %v", err)
	}
	out, _, err := image.Decode(bytes.NewReader(result))
	if err != nil {
		t.Fatalf("decode: %v", err)
	}

	// A point well inside the left half of the cover is clearly red
	r, _, b, _ := out.At(60, 100).RGBA()
	if r>>8 < 200 || b>>8 > 60 {
		t.Errorf("expected sharp red inside cover, got r=%d b=%d", r>>8, b>>8)
	}
}

// createTestJPEG generates a simple JPEG image for testing
func createTestJPEG(width, height int, col color.Color) []byte {
	img := image.NewRGBA(image.Rect(0, 0, width, height))
	for y := 0; y < height; y++ {
		for x := 0; x < width; x++ {
			img.Set(x, y, col)
		}
	}

	buf := new(bytes.Buffer)
	err := jpeg.Encode(buf, img, &jpeg.Options{Quality: 80})
	if err != nil {
		panic("failed to create test JPEG: " + err.Error())
	}
	return buf.Bytes()
}
