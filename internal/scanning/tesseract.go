package scanning

import (
	"fmt"
	"strings"

	"github.com/otiai10/gosseract/v2"

	"receipt-tidy/internal/parsing"
)

// Tesseract implements the Scanner interface with local OCR followed by
// the heuristic text parser. Unlike the model backends it cannot split a
// photo into multiple receipts, so it always yields a single record.
type Tesseract struct {
	languages []string
	parser    *parsing.Parser

	// Progress, when set, receives coarse stage updates during a scan.
	// It replaces the global progress logger the OCR engine would
	// otherwise write to.
	Progress func(stage string)
}

// NewTesseract creates a Tesseract-backed scanner. With no language hints
// it recognizes Korean and English, the scripts receipts here mix. The
// corresponding tesseract language data must be installed.
func NewTesseract(languages ...string) *Tesseract {
	if len(languages) == 0 {
		languages = []string{"kor", "eng"}
	}
	return &Tesseract{
		languages: languages,
		parser:    parsing.New(),
	}
}

// ScanReceipt runs OCR on the image and feeds the raw text to the
// heuristic parser. The parser never fails; the only error paths are an
// undecodable image and OCR producing no text at all.
func (t *Tesseract) ScanReceipt(imageData []byte, contentType string) ([]parsing.Record, error) {
	pngData, err := prepareImageData(imageData, contentType)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrUnreadableImage, err)
	}

	t.report("preparing image")
	prepped, err := preprocessForOCR(pngData)
	if err != nil {
		// Preprocessing is an accuracy aid, not a requirement.
		prepped = pngData
	}

	t.report("recognizing text")
	text, err := t.recognize(prepped)
	if err != nil {
		return nil, err
	}
	if strings.TrimSpace(text) == "" {
		return nil, fmt.Errorf("%w: no text detected", ErrUnreadableImage)
	}

	t.report("parsing text")
	return []parsing.Record{t.parser.Parse(text)}, nil
}

// recognize runs one OCR pass. A fresh client per scan keeps the cgo
// handle lifecycle simple.
func (t *Tesseract) recognize(pngData []byte) (string, error) {
	client := gosseract.NewClient()
	defer client.Close()

	if err := client.SetLanguage(t.languages...); err != nil {
		return "", fmt.Errorf("setting OCR languages %v: %w", t.languages, err)
	}
	if err := client.SetImageFromBytes(pngData); err != nil {
		return "", fmt.Errorf("%w: %v", ErrUnreadableImage, err)
	}

	text, err := client.Text()
	if err != nil {
		return "", fmt.Errorf("%w: %v", ErrUnreadableImage, err)
	}
	return text, nil
}

func (t *Tesseract) report(stage string) {
	if t.Progress != nil {
		t.Progress(stage)
	}
}

// Close closes the scanner (clients are per-scan, nothing to release)
func (t *Tesseract) Close() error {
	return nil
}
