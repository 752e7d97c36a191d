// Package asset stores images uploaded for use in rendered exports.
package asset

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"mime"
	"mime/multipart"
	"net/http"
	"path"
	"path/filepath"
	"strings"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"github.com/invitely/invitely/internal/storage"
)

// Upload limits.
const (
	MaxFiles    = 10
	MaxFileSize = 10 << 20

	// KeyPrefix is the storage prefix for uploaded assets.
	KeyPrefix = "assets/"

	sniffLen = 512
)

var (
	ErrNoFiles       = errors.New("no files uploaded")
	ErrTooManyFiles  = fmt.Errorf("at most %d files may be uploaded at once", MaxFiles)
	ErrFileTooLarge  = fmt.Errorf("files must be at most %d bytes", MaxFileSize)
	ErrNotImage      = errors.New("only image files are allowed")
	ErrAssetNotFound = errors.New("asset not found")
)

// File describes a stored upload.
type File struct {
	Filename     string `json:"filename"`
	OriginalName string `json:"originalName"`
	Size         int64  `json:"size"`
	MIMEType     string `json:"mimetype"`
	URL          string `json:"url"`
}

// Service validates and stores uploaded images.
type Service struct {
	storage storage.Interface
	logger  zerolog.Logger
}

// NewService creates an asset service backed by store.
func NewService(store storage.Interface, logger zerolog.Logger) *Service {
	return &Service{
		storage: store,
		logger:  logger.With().Str("component", "asset").Logger(),
	}
}

// Upload checks every file before storing any of them, so a rejected batch
// leaves nothing behind.
func (s *Service) Upload(ctx context.Context, userID string, headers []*multipart.FileHeader) ([]File, error) {
	if len(headers) == 0 {
		return nil, ErrNoFiles
	}
	if len(headers) > MaxFiles {
		return nil, ErrTooManyFiles
	}
	for _, fh := range headers {
		if fh.Size > MaxFileSize {
			return nil, fmt.Errorf("%s: %w", fh.Filename, ErrFileTooLarge)
		}
		if !isImage(fh.Header.Get("Content-Type")) {
			return nil, fmt.Errorf("%s: %w", fh.Filename, ErrNotImage)
		}
	}

	files := make([]File, 0, len(headers))
	for _, fh := range headers {
		f, err := s.store(ctx, fh)
		if err != nil {
			s.rollback(ctx, files)
			return nil, err
		}
		files = append(files, *f)
	}

	s.logger.Info().
		Str("user_id", userID).
		Int("count", len(files)).
		Msg("assets uploaded")

	return files, nil
}

func (s *Service) store(ctx context.Context, fh *multipart.FileHeader) (*File, error) {
	src, err := fh.Open()
	if err != nil {
		return nil, fmt.Errorf("open upload %s: %w", fh.Filename, err)
	}
	defer src.Close()

	head := make([]byte, sniffLen)
	n, err := io.ReadFull(src, head)
	if err != nil && !errors.Is(err, io.ErrUnexpectedEOF) && !errors.Is(err, io.EOF) {
		return nil, fmt.Errorf("read upload %s: %w", fh.Filename, err)
	}
	head = head[:n]

	declared := fh.Header.Get("Content-Type")
	if !sniffsAsImage(declared, http.DetectContentType(head)) {
		return nil, fmt.Errorf("%s: %w", fh.Filename, ErrNotImage)
	}

	name := uuid.New().String() + extension(fh.Filename, declared)

	body := io.MultiReader(bytes.NewReader(head), src)
	obj, err := s.storage.Put(ctx, KeyPrefix+name, body, fh.Size, declared)
	if err != nil {
		return nil, fmt.Errorf("store asset %s: %w", fh.Filename, err)
	}

	return &File{
		Filename:     name,
		OriginalName: fh.Filename,
		Size:         obj.Size,
		MIMEType:     declared,
		URL:          URL(name),
	}, nil
}

func (s *Service) rollback(ctx context.Context, files []File) {
	for _, f := range files {
		if err := s.storage.Delete(ctx, KeyPrefix+f.Filename); err != nil {
			s.logger.Warn().Err(err).Str("filename", f.Filename).Msg("failed to remove partial upload")
		}
	}
}

// Open returns the stored asset and its MIME type.
func (s *Service) Open(ctx context.Context, filename string) (io.ReadCloser, string, error) {
	if filename == "" || filename != path.Base(filename) || strings.HasPrefix(filename, ".") {
		return nil, "", ErrAssetNotFound
	}

	rc, err := s.storage.Open(ctx, KeyPrefix+filename)
	if err != nil {
		if errors.Is(err, storage.ErrObjectNotFound) || errors.Is(err, storage.ErrInvalidKey) {
			return nil, "", ErrAssetNotFound
		}
		return nil, "", err
	}

	contentType := mime.TypeByExtension(filepath.Ext(filename))
	if contentType == "" {
		contentType = "application/octet-stream"
	}
	return rc, contentType, nil
}

// URL is the public path an asset is served from.
func URL(filename string) string {
	return "/uploads/assets/" + filename
}

func isImage(contentType string) bool {
	mediaType, _, err := mime.ParseMediaType(contentType)
	if err != nil {
		return false
	}
	return strings.HasPrefix(mediaType, "image/")
}

// sniffsAsImage accepts SVG, which content sniffing reports as XML or text.
func sniffsAsImage(declared, sniffed string) bool {
	if isImage(sniffed) {
		return true
	}
	mediaType, _, _ := mime.ParseMediaType(declared)
	return mediaType == "image/svg+xml" &&
		(strings.HasPrefix(sniffed, "text/xml") || strings.HasPrefix(sniffed, "text/plain"))
}

var extByType = map[string]string{
	"image/jpeg":    ".jpg",
	"image/png":     ".png",
	"image/gif":     ".gif",
	"image/webp":    ".webp",
	"image/svg+xml": ".svg",
}

// extension keeps the uploaded file's extension, falling back to one derived from the MIME type.
func extension(filename, contentType string) string {
	if ext := strings.ToLower(filepath.Ext(filename)); ext != "" && len(ext) <= 6 {
		return ext
	}
	mediaType, _, _ := mime.ParseMediaType(contentType)
	if ext, ok := extByType[mediaType]; ok {
		return ext
	}
	if exts, err := mime.ExtensionsByType(contentType); err == nil && len(exts) > 0 {
		return exts[0]
	}
	return ""
}
