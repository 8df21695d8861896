package services

import (
	"context"
	"fmt"
	"io"
	"mime/multipart"
	"os"
	"path/filepath"
	"strings"

	"github.com/google/uuid"

	"github.com/cppla/socialfeed/models"
)

// MaxUploadSize caps a single upload.
const MaxUploadSize = 10 << 20

var imageExtensions = map[string]string{
	"image/jpeg": ".jpg",
	"image/png":  ".png",
}

// FileService stores uploaded images under a directory served as static content.
type FileService struct {
	dir string
}

// NewFileService creates the upload directory if needed.
func NewFileService(dir string) (*FileService, error) {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("create upload dir: %w", err)
	}
	return &FileService{dir: dir}, nil
}

// Dir is the directory uploads are written to.
func (s *FileService) Dir() string {
	return s.dir
}

// Save stores a jpeg or png upload under a random name and returns its id.
func (s *FileService) Save(ctx context.Context, header *multipart.FileHeader) (models.MediaResponse, error) {
	contentType := strings.ToLower(strings.TrimSpace(header.Header.Get("Content-Type")))
	ext, ok := imageExtensions[contentType]
	if !ok {
		return models.MediaResponse{}, fmt.Errorf("%q: %w", contentType, models.ErrUnsupportedMedia)
	}
	if header.Size > MaxUploadSize {
		return models.MediaResponse{}, fmt.Errorf("file exceeds %d bytes: %w", MaxUploadSize, models.ErrInvalidInput)
	}

	// the client's file name never picks the extension the file is served with
	name := uuid.NewString() + ext

	src, err := header.Open()
	if err != nil {
		return models.MediaResponse{}, fmt.Errorf("open upload: %w", err)
	}
	defer src.Close()

	if err := s.write(ctx, filepath.Join(s.dir, name), src); err != nil {
		return models.MediaResponse{}, err
	}
	return models.MediaResponse{ID: name, Type: models.MediaTypeImage}, nil
}

func (s *FileService) write(ctx context.Context, path string, src io.Reader) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	out, err := os.OpenFile(path, os.O_WRONLY|os.O_CREATE|os.O_EXCL, 0o644)
	if err != nil {
		return fmt.Errorf("create file: %w", err)
	}
	lr := &io.LimitedReader{R: src, N: MaxUploadSize + 1}
	written, err := io.Copy(out, lr)
	if cerr := out.Close(); err == nil {
		err = cerr
	}
	if err != nil {
		_ = os.Remove(path)
		return fmt.Errorf("write file: %w", err)
	}
	if written > MaxUploadSize {
		_ = os.Remove(path)
		return fmt.Errorf("file exceeds %d bytes: %w", MaxUploadSize, models.ErrInvalidInput)
	}
	return nil
}
