// Package blob stores uploaded event images on local disk and hands back
// their public URLs.
package blob

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"image"
	"io"
	"net/http"
	"os"
	"path/filepath"
	"strings"

	"github.com/disintegration/imaging"
	"github.com/google/uuid"
	_ "golang.org/x/image/webp" // WebP decoder
)

// MaxSize is the largest accepted upload.
const MaxSize = 5 << 20

// MaxWidth is the widest stored image; wider JPEG and PNG uploads are scaled down.
const MaxWidth = 2400

// MaxPixels bounds width*height of an accepted image, checked from the
// header before the image is decoded.
const MaxPixels = 40_000_000

// Prefix is the directory (and URL segment) event images live under.
const Prefix = "event-images"

var (
	ErrTooLarge        = errors.New("image must be less than 5MB")
	ErrUnsupportedType = errors.New("please upload a JPG, PNG, GIF, or WebP image")
	ErrTooManyPixels   = errors.New("image dimensions are too large")
)

var extensions = map[string]string{
	"image/jpeg": ".jpg",
	"image/png":  ".png",
	"image/gif":  ".gif",
	"image/webp": ".webp",
}

// Store writes images under dir and serves them from baseURL + "/uploads".
type Store struct {
	dir     string
	baseURL string
}

// NewStore constructs a Store, creating its directory if needed.
func NewStore(dir, baseURL string) (*Store, error) {
	if err := os.MkdirAll(filepath.Join(dir, Prefix), 0o755); err != nil {
		return nil, fmt.Errorf("create upload dir: %w", err)
	}
	return &Store{dir: dir, baseURL: strings.TrimRight(baseURL, "/")}, nil
}

// Files returns the stored images as a file system that serves files only.
// Directories are reported as missing so their contents cannot be listed.
func (s *Store) Files() http.FileSystem {
	return filesOnly{http.Dir(s.dir)}
}

type filesOnly struct {
	fs http.FileSystem
}

func (f filesOnly) Open(name string) (http.File, error) {
	file, err := f.fs.Open(name)
	if err != nil {
		return nil, err
	}
	info, err := file.Stat()
	if err != nil {
		_ = file.Close()
		return nil, err
	}
	if info.IsDir() {
		_ = file.Close()
		return nil, os.ErrNotExist
	}
	return file, nil
}

// Upload validates an image read from r, stores it under a fresh name and
// returns its public URL.
func (s *Store) Upload(ctx context.Context, r io.Reader) (string, error) {
	data, err := io.ReadAll(io.LimitReader(r, MaxSize+1))
	if err != nil {
		return "", fmt.Errorf("read upload: %w", err)
	}
	if len(data) > MaxSize {
		return "", ErrTooLarge
	}

	contentType := http.DetectContentType(data)
	ext, ok := extensions[contentType]
	if !ok {
		return "", ErrUnsupportedType
	}

	data, err = fit(data, ext)
	if err != nil {
		return "", err
	}
	if err := ctx.Err(); err != nil {
		return "", err
	}

	name := uuid.New().String() + ext
	path := filepath.Join(s.dir, Prefix, name)
	if err := os.WriteFile(path, data, 0o644); err != nil {
		return "", fmt.Errorf("write upload: %w", err)
	}
	return s.baseURL + "/uploads/" + Prefix + "/" + name, nil
}

// fit checks the header dimensions, decodes the image to make sure it is
// one, and scales JPEG and PNG images wider than MaxWidth. GIF and WebP are
// stored as uploaded.
func fit(data []byte, ext string) ([]byte, error) {
	cfg, _, err := image.DecodeConfig(bytes.NewReader(data))
	if err != nil {
		return nil, ErrUnsupportedType
	}
	if cfg.Width <= 0 || cfg.Height <= 0 || int64(cfg.Width)*int64(cfg.Height) > MaxPixels {
		return nil, ErrTooManyPixels
	}

	img, err := imaging.Decode(bytes.NewReader(data), imaging.AutoOrientation(true))
	if err != nil {
		return nil, ErrUnsupportedType
	}
	if img.Bounds().Dx() <= MaxWidth || (ext != ".jpg" && ext != ".png") {
		return data, nil
	}

	format, err := imaging.FormatFromExtension(ext)
	if err != nil {
		return nil, err
	}
	var buf bytes.Buffer
	resized := image.Image(imaging.Resize(img, MaxWidth, 0, imaging.Lanczos))
	if err := imaging.Encode(&buf, resized, format, imaging.JPEGQuality(85)); err != nil {
		return nil, fmt.Errorf("encode resized image: %w", err)
	}
	return buf.Bytes(), nil
}
