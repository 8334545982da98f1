package validate

import (
	"errors"
	"fmt"
	"mime"
	"path/filepath"
	"strings"
)

// File validation errors
var (
	ErrInvalidMIMEType  = errors.New("file type not allowed")
	ErrInvalidExtension = errors.New("file extension not allowed")
	ErrFileTooLarge     = errors.New("file is too large")
	ErrFileEmpty        = errors.New("file is empty")
)

// AllowedCSVTypes lists MIME types accepted for CSV uploads. Browsers and
// the LinkedIn export itself disagree on what a CSV is, so the list is
// permissive; the importer rejects anything that does not parse as CSV.
var AllowedCSVTypes = []string{
	"text/csv",
	"text/plain",
	"application/csv",
	"application/vnd.ms-excel",
	"application/octet-stream",
}

// FileConstraints defines validation constraints for file uploads.
type FileConstraints struct {
	AllowedTypes []string // Allowed MIME types (empty = any)
	MaxSizeBytes int64    // Maximum size in bytes (0 = no maximum)
}

// MIMEType validates a MIME type against an allowlist.
// Parameters such as charset are stripped before comparison.
// Returns the normalized media type.
func MIMEType(mimeType string, allowedTypes []string) (string, error) {
	mediaType, _, err := mime.ParseMediaType(mimeType)
	if err != nil {
		return "", fmt.Errorf("%w: %q", ErrInvalidMIMEType, mimeType)
	}
	mediaType = strings.ToLower(mediaType)

	if len(allowedTypes) == 0 {
		return mediaType, nil
	}
	for _, allowed := range allowedTypes {
		if mediaType == allowed {
			return mediaType, nil
		}
	}
	return "", fmt.Errorf("%w: %q", ErrInvalidMIMEType, mediaType)
}

// FileSize validates a file size against constraints.
func FileSize(sizeBytes int64, constraints FileConstraints) error {
	if sizeBytes <= 0 {
		return ErrFileEmpty
	}
	if constraints.MaxSizeBytes > 0 && sizeBytes > constraints.MaxSizeBytes {
		return fmt.Errorf("%w: %d bytes, maximum is %d", ErrFileTooLarge, sizeBytes, constraints.MaxSizeBytes)
	}
	return nil
}

// File validates both MIME type and size of an upload.
// Returns the normalized media type.
func File(mimeType string, sizeBytes int64, constraints FileConstraints) (string, error) {
	mediaType, err := MIMEType(mimeType, constraints.AllowedTypes)
	if err != nil {
		return "", err
	}
	if err := FileSize(sizeBytes, constraints); err != nil {
		return "", err
	}
	return mediaType, nil
}

// CSVFileName checks for a .csv extension, case-insensitively. The MIME
// allowlist is permissive, so the extension check carries the rejection of
// obvious non-exports.
func CSVFileName(name string) error {
	if !strings.EqualFold(filepath.Ext(name), ".csv") {
		return fmt.Errorf("%w: %q", ErrInvalidExtension, name)
	}
	return nil
}

// CSVFile validates an uploaded CSV export's name, MIME type and size
// against the given cap.
func CSVFile(filename, mimeType string, sizeBytes, maxBytes int64) (string, error) {
	if err := CSVFileName(filename); err != nil {
		return "", err
	}
	return File(mimeType, sizeBytes, FileConstraints{
		AllowedTypes: AllowedCSVTypes,
		MaxSizeBytes: maxBytes,
	})
}
