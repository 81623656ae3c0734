package storage

import (
	"errors"
	"fmt"
	"io"
	"net/http"
	"slices"
	"strings"
)

var (
	ErrFileTooLarge    = errors.New("file exceeds maximum size")
	ErrInvalidMimeType = errors.New("file type not allowed")
	ErrEmptyFile       = errors.New("file is empty")
)

// MaxReceiptSize is the largest accepted receipt upload.
const MaxReceiptSize int64 = 5 * 1024 * 1024

// ReceiptMimeTypes are the content types accepted as deposit receipts.
var ReceiptMimeTypes = []string{"image/jpeg", "image/png", "image/webp", "application/pdf"}

// ValidateFile reads at most maxSize bytes from reader and checks the sniffed MIME type.
func ValidateFile(reader io.Reader, allowed []string, maxSize int64) ([]byte, string, error) {
	data, err := io.ReadAll(io.LimitReader(reader, maxSize+1))
	if err != nil {
		return nil, "", fmt.Errorf("failed to read file: %w", err)
	}
	if len(data) == 0 {
		return nil, "", ErrEmptyFile
	}
	if int64(len(data)) > maxSize {
		return nil, "", ErrFileTooLarge
	}

	mimeType := http.DetectContentType(data)
	if idx := strings.Index(mimeType, ";"); idx != -1 {
		mimeType = strings.TrimSpace(mimeType[:idx])
	}
	if !slices.Contains(allowed, mimeType) {
		return nil, "", ErrInvalidMimeType
	}
	return data, mimeType, nil
}

// ValidateReceipt applies the receipt limits.
func ValidateReceipt(reader io.Reader) ([]byte, string, error) {
	return ValidateFile(reader, ReceiptMimeTypes, MaxReceiptSize)
}

// ExtensionForMime returns the file extension for a MIME type
func ExtensionForMime(mimeType string) string {
	switch mimeType {
	case "image/jpeg":
		return ".jpg"
	case "image/png":
		return ".png"
	case "image/webp":
		return ".webp"
	case "application/pdf":
		return ".pdf"
	default:
		return ""
	}
}
