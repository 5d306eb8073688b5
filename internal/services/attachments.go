package services

import (
	"encoding/base64"
	"log"
	"os"

	"gemchat/internal/models"
)

// MaxFileSize bounds a single attachment.
const MaxFileSize = 10 * 1024 * 1024 // 10 MiB

// MaxFilesPerRequest bounds attachments in one submission.
const MaxFilesPerRequest = 5

var allowedMediaTypes = map[string]bool{
	"image/jpeg":         true,
	"image/jpg":          true,
	"image/png":          true,
	"image/gif":          true,
	"image/webp":         true,
	"application/pdf":    true,
	"text/plain":         true,
	"application/msword": true,
	"application/vnd.openxmlformats-officedocument.wordprocessingml.document": true,
}

// IsAllowedMediaType reports whether a declared media type is on the
// attachment allow-list.
func IsAllowedMediaType(mediaType string) bool {
	return allowedMediaTypes[mediaType]
}

// ValidateAttachment checks a file's declared size and media type before any
// byte of it is read.
func ValidateAttachment(name string, sizeBytes int64, mediaType string) error {
	if sizeBytes > MaxFileSize {
		return &AttachmentError{Name: name, Reason: "oversize"}
	}
	if !IsAllowedMediaType(mediaType) {
		return &AttachmentError{Name: name, Reason: "type"}
	}
	return nil
}

// Upload is a transient file staged on disk for a single request.
type Upload struct {
	Path      string
	Name      string
	MediaType string
}

// EncodeFile reads a transient upload and produces a base64 inline part. The
// backing file is removed on every path; a removal failure is logged rather
// than propagated so it cannot mask the primary result.
func EncodeFile(path, name, mediaType string) (models.InlinePart, error) {
	defer func() {
		if err := os.Remove(path); err != nil && !os.IsNotExist(err) {
			log.Printf("WARNING: failed to delete transient upload %s: %v", path, err)
		}
	}()

	info, err := os.Stat(path)
	if err != nil {
		return models.InlinePart{}, err
	}
	if err := ValidateAttachment(name, info.Size(), mediaType); err != nil {
		return models.InlinePart{}, err
	}

	data, err := os.ReadFile(path)
	if err != nil {
		return models.InlinePart{}, err
	}

	return models.InlinePart{
		MediaType: mediaType,
		Data:      base64.StdEncoding.EncodeToString(data),
	}, nil
}

// EncodeAll processes uploads independently: a failure on one file is logged
// and does not abort the others. It returns the successfully encoded parts in
// submission order.
func EncodeAll(uploads []Upload) []models.InlinePart {
	parts := make([]models.InlinePart, 0, len(uploads))
	for _, u := range uploads {
		part, err := EncodeFile(u.Path, u.Name, u.MediaType)
		if err != nil {
			log.Printf("Error processing file %s: %v", u.Name, err)
			continue
		}
		parts = append(parts, part)
	}
	return parts
}
