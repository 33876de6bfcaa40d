package receipt

import (
	"fmt"
	"io"
	"log/slog"
	"time"

	"github.com/google/uuid"

	"receipt-tidy/internal/scanning"
)

// IDGenerator produces session-unique item IDs
type IDGenerator interface {
	Generate() string
}

// defaultIDGenerator combines a millisecond timestamp with a short uuid
// suffix. Uniqueness only needs to hold within a session, and the
// timestamp prefix keeps IDs sortable in upload order.
type defaultIDGenerator struct{}

func (defaultIDGenerator) Generate() string {
	return fmt.Sprintf("%d-%s", time.Now().UnixMilli(), uuid.NewString()[:8])
}

// Outcome classifies a finished batch for the caller. The distinction
// drives which message the user sees: retry with clearer photos, proceed
// to review, or a neutral nothing-found notice.
type Outcome string

const (
	// OutcomeOK: every file produced records
	OutcomeOK Outcome = "ok"
	// OutcomePartial: some files failed but records were extracted
	OutcomePartial Outcome = "partial"
	// OutcomeAllFailed: every file failed, nothing extracted
	OutcomeAllFailed Outcome = "all_failed"
	// OutcomeEmpty: no files, or no records and no failures
	OutcomeEmpty Outcome = "empty"
)

// UploadFile is one file of a batch
type UploadFile struct {
	Name        string
	ContentType string
	Data        []byte
}

// BatchResult reports a settled batch
type BatchResult struct {
	Items       []*Item `json:"items"`
	FailedCount int     `json:"failedCount"`
	Outcome     Outcome `json:"outcome"`
}

// ProgressFunc receives "file index of total" updates during a batch.
type ProgressFunc func(index, total int, filename string)

// Service drives uploads through extraction into the review store
type Service struct {
	store   Store
	scanner scanning.Scanner
	archive Archive
	idGen   IDGenerator
}

// NewService creates a Service with the default ID generator
func NewService(store Store, scanner scanning.Scanner, archive Archive) *Service {
	return NewServiceWithDeps(store, scanner, archive, defaultIDGenerator{})
}

// NewServiceWithDeps creates a Service with custom dependencies for testing
func NewServiceWithDeps(store Store, scanner scanning.Scanner, archive Archive, idGen IDGenerator) *Service {
	return &Service{
		store:   store,
		scanner: scanner,
		archive: archive,
		idGen:   idGen,
	}
}

// ProcessBatch extracts records from each file in turn. A file's failure
// is counted and logged, never propagated: the rest of the batch still
// runs. Files are processed sequentially to stay friendly to rate-limited
// backends. The store is only touched once every file has settled.
func (s *Service) ProcessBatch(files []UploadFile, progress ProgressFunc) (*BatchResult, error) {
	newItems := []*Item{}
	failed := 0

	for i, f := range files {
		if progress != nil {
			progress(i+1, len(files), f.Name)
		}

		records, err := s.scanner.ScanReceipt(f.Data, f.ContentType)
		if err != nil {
			slog.Error("extraction failed",
				"filename", f.Name,
				"content_type", f.ContentType,
				"file_size", len(f.Data),
				"error", err,
			)
			failed++
			continue
		}
		if len(records) == 0 {
			slog.Info("no receipts found in file", "filename", f.Name)
			continue
		}

		sourcePath := ""
		archiveName := fmt.Sprintf("%s_%s", s.idGen.Generate(), f.Name)
		if path, err := s.archive.Save(archiveName, f.Data); err != nil {
			slog.Warn("archiving upload failed", "filename", f.Name, "error", err)
		} else {
			sourcePath = path
		}

		for _, rec := range records {
			newItems = append(newItems, newItem(s.idGen.Generate(), rec, sourcePath))
		}
	}

	if len(newItems) > 0 {
		if err := s.store.Add(newItems); err != nil {
			return nil, fmt.Errorf("adding items to store: %w", err)
		}
	}

	return &BatchResult{
		Items:       newItems,
		FailedCount: failed,
		Outcome:     classifyBatch(len(newItems), failed),
	}, nil
}

func classifyBatch(extracted, failed int) Outcome {
	switch {
	case extracted > 0 && failed == 0:
		return OutcomeOK
	case extracted > 0:
		return OutcomePartial
	case failed > 0:
		return OutcomeAllFailed
	default:
		return OutcomeEmpty
	}
}

// ListItems returns the review table
func (s *Service) ListItems() ([]*Item, error) {
	items, err := s.store.List()
	if err != nil {
		return nil, fmt.Errorf("listing items: %w", err)
	}
	return items, nil
}

// UpdateItem applies a field-level edit to one row
func (s *Service) UpdateItem(id string, patch ItemPatch) (*Item, error) {
	if err := s.store.Update(id, patch); err != nil {
		return nil, fmt.Errorf("updating item: %w", err)
	}
	item, err := s.store.Get(id)
	if err != nil {
		return nil, fmt.Errorf("getting updated item: %w", err)
	}
	return item, nil
}

// DeleteItem removes one row and its archived upload when no other row
// references it.
func (s *Service) DeleteItem(id string) error {
	item, err := s.store.Get(id)
	if err != nil {
		return fmt.Errorf("getting item for deletion: %w", err)
	}

	if err := s.store.Delete(id); err != nil {
		return fmt.Errorf("deleting item: %w", err)
	}

	if item.SourceImage != "" && !s.sourceImageInUse(item.SourceImage) {
		if err := s.archive.Delete(item.SourceImage); err != nil {
			slog.Warn("deleting archived upload failed", "path", item.SourceImage, "error", err)
		}
	}
	return nil
}

func (s *Service) sourceImageInUse(path string) bool {
	items, err := s.store.List()
	if err != nil {
		return true
	}
	for _, item := range items {
		if item.SourceImage == path {
			return true
		}
	}
	return false
}

// Reset clears the session
func (s *Service) Reset() error {
	items, err := s.store.List()
	if err != nil {
		return fmt.Errorf("listing items for reset: %w", err)
	}
	for _, item := range items {
		if item.SourceImage != "" {
			if err := s.archive.Delete(item.SourceImage); err != nil {
				slog.Warn("deleting archived upload failed", "path", item.SourceImage, "error", err)
			}
		}
	}
	if err := s.store.Reset(); err != nil {
		return fmt.Errorf("resetting store: %w", err)
	}
	return nil
}

// GetSourceImage returns the archived upload behind a row
func (s *Service) GetSourceImage(id string) ([]byte, error) {
	item, err := s.store.Get(id)
	if err != nil {
		return nil, fmt.Errorf("getting item: %w", err)
	}
	if item.SourceImage == "" {
		return nil, fmt.Errorf("item %s has no archived source image", id)
	}
	data, err := s.archive.Get(item.SourceImage)
	if err != nil {
		return nil, fmt.Errorf("getting source image: %w", err)
	}
	return data, nil
}

// Export writes the review table as an xlsx spreadsheet
func (s *Service) Export(w io.Writer) error {
	items, err := s.store.List()
	if err != nil {
		return fmt.Errorf("listing items for export: %w", err)
	}
	if err := WriteXLSX(w, items); err != nil {
		return fmt.Errorf("writing spreadsheet: %w", err)
	}
	return nil
}
