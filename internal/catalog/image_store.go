package catalog

import (
	"fmt"
	"io"
	"mime/multipart"
	"os"
	"path/filepath"
	"strings"

	"github.com/gabriel-vasile/mimetype"
	"github.com/google/uuid"

	"phonestore-backend/internal/apperr"
)

const (
	MaxImageBytes  = 5 << 20
	ImageURLPrefix = "/images/"
)

var imageExtensions = map[string]string{
	"image/jpeg": ".jpg",
	"image/png":  ".png",
	"image/webp": ".webp",
}

// ImageStore keeps product images on local disk under dir. Files are served
// by the HTTP layer from ImageURLPrefix.
type ImageStore struct {
	dir string
}

func NewImageStore(dir string) *ImageStore {
	return &ImageStore{dir: dir}
}

func (s *ImageStore) Dir() string { return s.dir }

// Save validates the upload by size and sniffed content type, then writes it
// as product-<id>-<random>.<ext> and returns its public URL.
func (s *ImageStore) Save(productID uint, fh *multipart.FileHeader) (string, error) {
	if fh == nil {
		return "", apperr.Invalid("image file is required")
	}
	if fh.Size > MaxImageBytes {
		return "", apperr.Invalid("image must be at most %d MB", MaxImageBytes>>20)
	}

	src, err := fh.Open()
	if err != nil {
		return "", fmt.Errorf("open upload: %w", err)
	}
	defer src.Close()

	mt, err := mimetype.DetectReader(src)
	if err != nil {
		return "", fmt.Errorf("detect image type: %w", err)
	}
	ext, ok := imageExtensions[mt.String()]
	if !ok {
		return "", apperr.Invalid("unsupported image type %s, use jpg, png or webp", mt.String())
	}
	if _, err := src.Seek(0, io.SeekStart); err != nil {
		return "", fmt.Errorf("rewind upload: %w", err)
	}

	if err := os.MkdirAll(s.dir, 0o755); err != nil {
		return "", fmt.Errorf("create image dir: %w", err)
	}
	name := fmt.Sprintf("product-%d-%s%s", productID, uuid.NewString()[:8], ext)
	dst, err := os.Create(filepath.Join(s.dir, name))
	if err != nil {
		return "", fmt.Errorf("create image file: %w", err)
	}
	defer dst.Close()

	n, err := io.Copy(dst, io.LimitReader(src, MaxImageBytes+1))
	if err != nil {
		_ = os.Remove(dst.Name())
		return "", fmt.Errorf("write image: %w", err)
	}
	if n > MaxImageBytes {
		_ = os.Remove(dst.Name())
		return "", apperr.Invalid("image must be at most %d MB", MaxImageBytes>>20)
	}
	return ImageURLPrefix + name, nil
}

// Remove deletes a previously saved image. URLs outside the store are ignored.
func (s *ImageStore) Remove(url string) error {
	if !strings.HasPrefix(url, ImageURLPrefix) {
		return nil
	}
	name := filepath.Base(strings.TrimPrefix(url, ImageURLPrefix))
	err := os.Remove(filepath.Join(s.dir, name))
	if os.IsNotExist(err) {
		return nil
	}
	return err
}
