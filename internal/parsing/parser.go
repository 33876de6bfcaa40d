package parsing

import (
	"fmt"
	"regexp"
	"strconv"
	"strings"
	"time"
	"unicode"
	"unicode/utf8"
)

// MerchantPlaceholder is emitted when no line looks like a store name, so
// the user can spot the row and fill it in by hand.
const MerchantPlaceholder = "상호명 확인 필요"

// Record is the structured result of parsing one receipt's OCR text.
// Every field is always populated; extraction failures degrade to the
// documented defaults instead of erroring.
type Record struct {
	Date         string `json:"date"` // YYYY-MM-DD
	MerchantName string `json:"merchantName"`
	Amount       int    `json:"amount"` // whole currency units (KRW)
	Notes        string `json:"notes"`
}

var (
	// Matches 2024-03-15, 2024.03.15, 2024/03/15 and 2024년 3월 15일.
	dateRe = regexp.MustCompile(`(\d{4})[-./년\s](\d{1,2})[-./월\s](\d{1,2})`)

	// Money tokens: digit groups with thousands separators (12,345) or a
	// bare digit run with a trailing won marker (5000원).
	moneyRe = regexp.MustCompile(`[0-9]{1,3}(?:,[0-9]{3})+|[0-9]+원`)
)

// Parser extracts a Record from raw OCR text. The zero value is not
// usable; construct with New.
type Parser struct {
	now func() time.Time
}

// New returns a Parser that uses the system clock for the date fallback.
func New() *Parser {
	return NewWithClock(time.Now)
}

// NewWithClock returns a Parser with an injected clock, for tests.
func NewWithClock(now func() time.Time) *Parser {
	return &Parser{now: now}
}

// Parse runs the three extraction passes over the OCR text and returns a
// best-effort Record. It never fails: each field independently falls back
// to its default when nothing matches.
func (p *Parser) Parse(text string) Record {
	lines := splitLines(text)

	return Record{
		Date:         extractDate(lines, p.now()),
		MerchantName: extractMerchant(lines),
		Amount:       extractAmount(lines),
		Notes:        "",
	}
}

// splitLines breaks OCR output into trimmed, non-empty lines in original
// order. All three passes scan this sequence.
func splitLines(text string) []string {
	var lines []string
	for _, line := range strings.Split(text, "\n") {
		line = strings.TrimSpace(line)
		if line != "" {
			lines = append(lines, line)
		}
	}
	return lines
}

// extractDate returns the first line's date normalized to YYYY-MM-DD.
// First match wins; later (possibly better) dates are ignored. With no
// match the current date is used so the table column is never blank.
func extractDate(lines []string, now time.Time) string {
	for _, line := range lines {
		m := dateRe.FindStringSubmatch(line)
		if m == nil {
			continue
		}
		month, _ := strconv.Atoi(m[2])
		day, _ := strconv.Atoi(m[3])
		return fmt.Sprintf("%s-%02d-%02d", m[1], month, day)
	}
	return now.Format("2006-01-02")
}

// extractAmount collects every money-looking token across all lines and
// returns the maximum. On a real receipt the total is usually the largest
// currency-formatted figure. This is deliberately not first-match: item
// prices and subtotals appear before the total. It will misfire on
// receipts where a non-total figure (a large unit price, a pre-discount
// subtotal) exceeds the true total; no layout-aware disambiguation is
// attempted.
func extractAmount(lines []string) int {
	max := 0
	for _, line := range lines {
		// OCR tends to scatter spaces inside numbers.
		clean := strings.ReplaceAll(line, " ", "")
		for _, token := range moneyRe.FindAllString(clean, -1) {
			n, err := strconv.Atoi(digitsOnly(token))
			if err != nil || n <= 0 {
				continue
			}
			if n > max {
				max = n
			}
		}
	}
	return max
}

// extractMerchant returns the first line that plausibly names a store:
// not a date line, contains at least one letter in any script, and is at
// least two runes long. Phone numbers, barcodes and separator junk fail
// the letter check.
func extractMerchant(lines []string) string {
	for _, line := range lines {
		if dateRe.MatchString(line) {
			continue
		}
		if !containsLetter(line) {
			continue
		}
		if utf8.RuneCountInString(line) < 2 {
			continue
		}
		return line
	}
	return MerchantPlaceholder
}

func containsLetter(s string) bool {
	for _, r := range s {
		if unicode.IsLetter(r) {
			return true
		}
	}
	return false
}

func digitsOnly(s string) string {
	return strings.Map(func(r rune) rune {
		if r >= '0' && r <= '9' {
			return r
		}
		return -1
	}, s)
}
