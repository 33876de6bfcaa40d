package scanning

import (
	"errors"

	"receipt-tidy/internal/parsing"
)

// ErrUnreadableImage indicates the input could not be decoded or no text
// was detected in it.
var ErrUnreadableImage = errors.New("unreadable image")

// ErrExtraction indicates the extraction backend failed or returned a
// response that could not be parsed into records.
var ErrExtraction = errors.New("extraction failed")

// Scanner defines the interface for receipt extraction backends.
type Scanner interface {
	// ScanReceipt analyzes a receipt image/PDF and extracts transaction
	// records. One image may yield several records: a single photo can
	// contain multiple receipts.
	ScanReceipt(imageData []byte, contentType string) ([]parsing.Record, error)
	// Close closes the scanner and releases resources
	Close() error
}
