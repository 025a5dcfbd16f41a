package storage

import (
	"context"
	"fmt"
	"path/filepath"
	"strings"

	"github.com/disintegration/imaging"
)

// ThumbnailWidth is the width of generated thumbnails in pixels.
const ThumbnailWidth = 320

// Thumbnailer renders a small JPEG preview next to a stored image.
type Thumbnailer struct {
	Width int
}

func NewThumbnailer() *Thumbnailer {
	return &Thumbnailer{Width: ThumbnailWidth}
}

// ThumbnailName derives the preview name of a stored file.
func ThumbnailName(name string) string {
	base := strings.TrimSuffix(filepath.Base(name), filepath.Ext(name))
	return base + "_thumb.jpg"
}

// Generate decodes src and writes a resized JPEG next to it, returning the
// preview path. Formats the decoder does not know (HEIC, WEBP) fail.
func (t *Thumbnailer) Generate(ctx context.Context, src string) (string, error) {
	if err := ctx.Err(); err != nil {
		return "", err
	}
	img, err := imaging.Open(src, imaging.AutoOrientation(true))
	if err != nil {
		return "", fmt.Errorf("decode %s: %w", src, err)
	}

	width := t.Width
	if width <= 0 {
		width = ThumbnailWidth
	}
	if img.Bounds().Dx() > width {
		img = imaging.Resize(img, width, 0, imaging.Lanczos)
	}

	dst := filepath.Join(filepath.Dir(src), ThumbnailName(src))
	if err := imaging.Save(img, dst, imaging.JPEGQuality(80)); err != nil {
		return "", fmt.Errorf("save thumbnail %s: %w", dst, err)
	}
	return dst, nil
}
