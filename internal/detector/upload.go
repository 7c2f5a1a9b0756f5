package detector

import (
	"fmt"
	"io"
	"mime/multipart"
	"os"
	"path/filepath"
	"strings"

	"github.com/ternarybob/deepscan/internal/common"
	"github.com/ternarybob/deepscan/internal/models"
)

// UploadPolicy is the local check applied before any upload reaches the network.
type UploadPolicy struct {
	MaxBytes          int64
	AllowedExtensions []string // With or without the leading dot, case insensitive
}

// DefaultUploadPolicy returns the 100 MiB / common video container policy.
func DefaultUploadPolicy() UploadPolicy {
	return UploadPolicy{
		MaxBytes:          DefaultMaxUploadBytes,
		AllowedExtensions: DefaultAllowedExtensions,
	}
}

// Check stats the file and returns a ValidationError if it may not be uploaded.
func (p UploadPolicy) Check(path string) (os.FileInfo, error) {
	if strings.TrimSpace(path) == "" {
		return nil, &models.ValidationError{Field: "file", Message: "no file provided"}
	}

	info, err := os.Stat(path)
	if err != nil {
		return nil, &models.ValidationError{Field: "file", Message: fmt.Sprintf("cannot read %s: %v", path, err)}
	}
	if info.IsDir() {
		return nil, &models.ValidationError{Field: "file", Message: fmt.Sprintf("%s is a directory", path)}
	}
	if info.Size() == 0 {
		return nil, &models.ValidationError{Field: "file", Message: fmt.Sprintf("%s is empty", path)}
	}

	if !p.Allows(filepath.Ext(path)) {
		return nil, &models.ValidationError{
			Field:   "extension",
			Message: fmt.Sprintf("unsupported file type %q (allowed: %s)", filepath.Ext(path), strings.Join(p.AllowedExtensions, ", ")),
		}
	}

	if p.MaxBytes > 0 && info.Size() > p.MaxBytes {
		return nil, &models.ValidationError{
			Field:   "size",
			Message: fmt.Sprintf("file is %s, limit is %s", common.FormatFileSize(info.Size()), common.FormatFileSize(p.MaxBytes)),
		}
	}

	return info, nil
}

// Allows reports whether an extension is accepted.
func (p UploadPolicy) Allows(ext string) bool {
	ext = strings.TrimPrefix(strings.ToLower(ext), ".")
	if ext == "" {
		return false
	}
	for _, allowed := range p.AllowedExtensions {
		if strings.TrimPrefix(strings.ToLower(allowed), ".") == ext {
			return true
		}
	}
	return false
}

// multipartBody streams the file as form field "video" through a pipe.
// The caller must close the returned reader; closing it stops the writer
// goroutine and releases the file even if the request was never sent.
func multipartBody(path, filename string) (io.ReadCloser, string) {
	pr, pw := io.Pipe()
	writer := multipart.NewWriter(pw)

	go func() {
		pw.CloseWithError(writeMultipart(writer, path, filename))
	}()

	return pr, writer.FormDataContentType()
}

func writeMultipart(writer *multipart.Writer, path, filename string) error {
	file, err := os.Open(path)
	if err != nil {
		return fmt.Errorf("failed to open %s: %w", path, err)
	}
	defer file.Close()

	part, err := writer.CreateFormFile("video", filename)
	if err != nil {
		return fmt.Errorf("failed to create form file: %w", err)
	}
	if _, err := io.Copy(part, file); err != nil {
		return fmt.Errorf("failed to stream %s: %w", path, err)
	}
	return writer.Close()
}
