package validators

import (
	"fmt"
	"mime"
	"path/filepath"
	"strings"

	"github.com/gabriel-vasile/mimetype"
)

const (
	// MaxImageSizeMB is the upload ceiling for product images.
	MaxImageSizeMB = 5
	// MaxImageSize is MaxImageSizeMB in bytes.
	MaxImageSize = MaxImageSizeMB * 1024 * 1024
)

var (
	allowedImageExtensions   = []string{".jpg", ".jpeg", ".png", ".gif", ".webp"}
	allowedImageContentTypes = []string{"image/jpeg", "image/png", "image/gif", "image/webp"}
)

// ImageFile is an uploaded image as received from the client.
type ImageFile struct {
	Filename    string
	ContentType string
	Size        int64
	Data        []byte
}

// Extension returns the lower-cased file extension, dot included.
func (f ImageFile) Extension() string {
	return strings.ToLower(filepath.Ext(f.Filename))
}

// ValidateImage checks size, extension, declared MIME type and sniffed content of f.
func ValidateImage(f ImageFile) Errors {
	var errs Errors

	if f.Size > MaxImageSize {
		errs = append(errs, FieldError{
			Field: "image",
			Code:  CodeInvalidImage,
			Message: fmt.Sprintf("File size must be less than %dMB. Your file is %.2fMB.",
				MaxImageSizeMB, float64(f.Size)/(1024*1024)),
		})
	}

	ext := f.Extension()
	if !contains(allowedImageExtensions, ext) {
		errs = append(errs, FieldError{
			Field: "image",
			Code:  CodeInvalidImage,
			Message: fmt.Sprintf("File extension %q is not allowed. Allowed extensions: %s",
				ext, strings.Join(allowedImageExtensions, ", ")),
		})
	}

	if declared := normalizeContentType(f.ContentType); declared != "" && !contains(allowedImageContentTypes, declared) {
		errs = append(errs, FieldError{
			Field:   "image",
			Code:    CodeInvalidImage,
			Message: fmt.Sprintf("File type %q is not allowed. Must be a valid image file.", declared),
		})
	}

	if len(errs) == 0 && !sniffedImage(f.Data) {
		errs = append(errs, FieldError{
			Field:   "image",
			Code:    CodeInvalidImage,
			Message: "Upload a valid image. The file you uploaded was either not an image or a corrupted image.",
		})
	}
	return errs
}

func sniffedImage(data []byte) bool {
	if len(data) == 0 {
		return false
	}
	detected := mimetype.Detect(data)
	for _, allowed := range allowedImageContentTypes {
		if detected.Is(allowed) {
			return true
		}
	}
	return false
}

func normalizeContentType(value string) string {
	clean := strings.TrimSpace(value)
	if clean == "" {
		return ""
	}
	mediaType, _, err := mime.ParseMediaType(clean)
	if err != nil {
		return strings.ToLower(clean)
	}
	return strings.ToLower(mediaType)
}

func contains(list []string, value string) bool {
	for _, item := range list {
		if item == value {
			return true
		}
	}
	return false
}
