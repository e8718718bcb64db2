package camera

import (
	"fmt"
	"image"
	"image/draw"
	"image/jpeg"
	"image/png"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"github.com/nfnt/resize"
)

// OverlayQuality is the JPEG quality of composited photos.
const OverlayQuality = 95

// overlayCache keeps the last scaled overlay so consecutive photos of the
// same size skip decoding and resampling.
type overlayCache struct {
	mu      sync.Mutex
	path    string
	modTime time.Time
	size    image.Point
	scaled  image.Image
}

func (c *overlayCache) get(overlayPath string, size image.Point) (image.Image, error) {
	info, err := os.Stat(overlayPath)
	if err != nil {
		return nil, fmt.Errorf("overlay: %w", err)
	}

	c.mu.Lock()
	defer c.mu.Unlock()
	if c.scaled != nil && c.path == overlayPath && c.size == size && c.modTime.Equal(info.ModTime()) {
		return c.scaled, nil
	}

	f, err := os.Open(overlayPath)
	if err != nil {
		return nil, fmt.Errorf("open overlay: %w", err)
	}
	defer f.Close()
	src, err := png.Decode(f)
	if err != nil {
		return nil, fmt.Errorf("decode overlay: %w", err)
	}

	scaled := src
	if src.Bounds().Size() != size {
		scaled = resize.Resize(uint(size.X), uint(size.Y), src, resize.Lanczos3)
	}
	c.path, c.modTime, c.size, c.scaled = overlayPath, info.ModTime(), size, scaled
	return scaled, nil
}

// apply writes <name>_overlay.jpg next to photoPath and removes the original.
func (c *overlayCache) apply(photoPath, overlayPath string) (string, error) {
	f, err := os.Open(photoPath)
	if err != nil {
		return "", fmt.Errorf("open photo: %w", err)
	}
	base, err := jpeg.Decode(f)
	f.Close()
	if err != nil {
		return "", fmt.Errorf("decode photo: %w", err)
	}

	bounds := base.Bounds()
	ovl, err := c.get(overlayPath, bounds.Size())
	if err != nil {
		return "", err
	}

	canvas := image.NewRGBA(image.Rect(0, 0, bounds.Dx(), bounds.Dy()))
	draw.Draw(canvas, canvas.Bounds(), base, bounds.Min, draw.Src)
	draw.Draw(canvas, canvas.Bounds(), ovl, ovl.Bounds().Min, draw.Over)

	out := strings.TrimSuffix(photoPath, filepath.Ext(photoPath)) + "_overlay.jpg"
	if err := writeJPEG(out, canvas); err != nil {
		return "", err
	}
	// a leftover original is harmless; the composite is what gets uploaded
	_ = os.Remove(photoPath)
	return out, nil
}

func writeJPEG(path string, img image.Image) error {
	tmp, err := os.CreateTemp(filepath.Dir(path), filepath.Base(path)+".tmp-*")
	if err != nil {
		return fmt.Errorf("create output: %w", err)
	}
	if err := jpeg.Encode(tmp, img, &jpeg.Options{Quality: OverlayQuality}); err != nil {
		tmp.Close()
		os.Remove(tmp.Name())
		return fmt.Errorf("encode output: %w", err)
	}
	if err := tmp.Close(); err != nil {
		os.Remove(tmp.Name())
		return err
	}
	return os.Rename(tmp.Name(), path)
}
