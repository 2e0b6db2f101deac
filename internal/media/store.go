// Package media validates uploaded post images, normalizes them to WebP and stores them
// on disk under the media root.
package media

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"image"
	_ "image/gif"  // register GIF decoder
	_ "image/jpeg" // register JPEG decoder
	_ "image/png"  // register PNG decoder
	"net/http"
	"os"
	"path"
	"path/filepath"
	"strings"

	"penfeed/internal/config"
	"penfeed/internal/models"

	"github.com/chai2010/webp"
	"github.com/google/uuid"
	xdraw "golang.org/x/image/draw"
	_ "golang.org/x/image/webp" // register WebP decoder
)

const (
	DefaultMaxUploadBytes = 10 << 20
	MaxDimension          = 1280
	WebPQuality           = 75
	postsDir              = "posts"
)

// Store persists an uploaded image and returns the reference kept on Post.Image.
type Store interface {
	Save(ctx context.Context, filename string, content []byte) (string, error)
	// Remove deletes a stored image. Removing a missing image is not an error.
	Remove(ctx context.Context, ref string) error
}

type DiskStore struct {
	root     string
	maxBytes int64
}

func NewDiskStore(root string, maxBytes int64) *DiskStore {
	if maxBytes <= 0 {
		maxBytes = DefaultMaxUploadBytes
	}
	return &DiskStore{root: root, maxBytes: maxBytes}
}

// NewDiskStoreFromConfig reads MEDIA_ROOT and the upload limit from cfg.
func NewDiskStoreFromConfig(cfg *config.Config) *DiskStore {
	return NewDiskStore(cfg.MediaRoot, cfg.MediaMaxUploadBytes())
}

func (s *DiskStore) Root() string {
	return s.root
}

// Save validates content, downsizes it to fit MaxDimension and writes posts/<uuid>.webp.
func (s *DiskStore) Save(ctx context.Context, filename string, content []byte) (string, error) {
	if len(content) == 0 {
		return "", models.NewFieldError("image", "No file uploaded")
	}
	if int64(len(content)) > s.maxBytes {
		return "", models.NewFieldError("image", fmt.Sprintf("File too large (max %dMB)", s.maxBytes>>20))
	}
	if !isAllowedImageMIME(http.DetectContentType(content)) {
		return "", models.NewFieldError("image", "Upload a valid image. The file you uploaded was either not an image or a corrupted image.")
	}

	decoded, _, err := image.Decode(bytes.NewReader(content))
	if err != nil {
		return "", models.NewFieldError("image", "Invalid image file")
	}
	if err := ctx.Err(); err != nil {
		return "", err
	}

	encoded, err := encodeWebP(resizeToFit(decoded, MaxDimension, MaxDimension))
	if err != nil {
		return "", models.NewInternalError(err)
	}

	ref := path.Join(postsDir, uuid.NewString()+".webp")
	if err := writeFile(filepath.Join(s.root, filepath.FromSlash(ref)), encoded); err != nil {
		return "", models.NewInternalError(fmt.Errorf("store %s (%s): %w", ref, filename, err))
	}
	return ref, nil
}

func (s *DiskStore) Remove(_ context.Context, ref string) error {
	clean := strings.TrimPrefix(path.Clean("/"+ref), "/")
	if clean == "" || !strings.HasPrefix(clean, postsDir+"/") {
		return fmt.Errorf("media: refusing to remove %q", ref)
	}
	err := os.Remove(filepath.Join(s.root, filepath.FromSlash(clean)))
	if err != nil && !errors.Is(err, os.ErrNotExist) {
		return err
	}
	return nil
}

func isAllowedImageMIME(contentType string) bool {
	switch strings.ToLower(strings.TrimSpace(strings.Split(contentType, ";")[0])) {
	case "image/jpeg", "image/png", "image/gif", "image/webp":
		return true
	default:
		return false
	}
}

func resizeToFit(src image.Image, maxWidth, maxHeight int) image.Image {
	bounds := src.Bounds()
	w, h := bounds.Dx(), bounds.Dy()
	if w <= 0 || h <= 0 || (w <= maxWidth && h <= maxHeight) {
		return src
	}

	scale := min(float64(maxWidth)/float64(w), float64(maxHeight)/float64(h))
	newW := max(int(float64(w)*scale), 1)
	newH := max(int(float64(h)*scale), 1)

	dst := image.NewRGBA(image.Rect(0, 0, newW, newH))
	xdraw.CatmullRom.Scale(dst, dst.Bounds(), src, bounds, xdraw.Over, nil)
	return dst
}

func encodeWebP(img image.Image) ([]byte, error) {
	var buf bytes.Buffer
	if err := webp.Encode(&buf, img, &webp.Options{Quality: WebPQuality}); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

func writeFile(p string, data []byte) error {
	if err := os.MkdirAll(filepath.Dir(p), 0o750); err != nil {
		return err
	}
	return os.WriteFile(p, data, 0o600)
}
