package scanning

import (
	"encoding/json"
	"fmt"
	"math"
	"strings"
	"time"

	"receipt-tidy/internal/parsing"
)

// modelPrompt is shared by the vision-model backends. It asks for a JSON
// array so a photo holding several receipts yields several records.
const modelPrompt = `Analyze this receipt image and extract every distinct receipt visible in it. Receipts may be printed in Korean or English. For each receipt extract:

1. date: the transaction date in YYYY-MM-DD format. If the year is missing, assume the current year.
2. merchantName: the store or business name, usually the most prominent text near the top.
3. amount: the final total as a plain number, without currency symbols or separators.
4. notes: a short description like "Lunch" or "Taxi" if obvious from the items, otherwise an empty string.

Return ONLY a valid JSON array in this exact format:
[{"date": "YYYY-MM-DD", "merchantName": "...", "amount": 0, "notes": ""}]

Important:
- Return one array element per receipt visible in the image
- Do not include any text before or after the JSON
- Do not use markdown code blocks`

// wireRecord matches the JSON schema the prompt asks for. Amount comes
// back as a JSON number, possibly fractional.
type wireRecord struct {
	Date         string  `json:"date"`
	MerchantName string  `json:"merchantName"`
	Amount       float64 `json:"amount"`
	Notes        string  `json:"notes"`
}

// parseRecordArray parses a model response into records. Models wrap
// output in markdown fences or prose despite instructions, so the JSON is
// cut out of the surrounding text first. A bare object is accepted as a
// one-element array.
func parseRecordArray(text string, now time.Time) ([]parsing.Record, error) {
	text = strings.TrimSpace(text)
	text = strings.TrimPrefix(text, "```json")
	text = strings.TrimPrefix(text, "```")
	text = strings.TrimSuffix(text, "```")
	text = strings.TrimSpace(text)

	var wires []wireRecord

	if start := strings.Index(text, "["); start != -1 {
		end := strings.LastIndex(text, "]")
		if end < start {
			return nil, fmt.Errorf("unterminated JSON array in response")
		}
		if err := json.Unmarshal([]byte(text[start:end+1]), &wires); err != nil {
			return nil, fmt.Errorf("unmarshaling record array: %w", err)
		}
	} else if start := strings.Index(text, "{"); start != -1 {
		end := strings.LastIndex(text, "}")
		if end < start {
			return nil, fmt.Errorf("unterminated JSON object in response")
		}
		var single wireRecord
		if err := json.Unmarshal([]byte(text[start:end+1]), &single); err != nil {
			return nil, fmt.Errorf("unmarshaling record: %w", err)
		}
		wires = []wireRecord{single}
	} else {
		return nil, fmt.Errorf("no JSON found in response")
	}

	records := make([]parsing.Record, 0, len(wires))
	for _, w := range wires {
		records = append(records, normalizeRecord(w, now))
	}
	return records, nil
}

// dateFormats are tried in order when the model ignores the YYYY-MM-DD
// instruction.
var dateFormats = []string{
	"2006-01-02",
	"2006/01/02",
	"2006.01.02",
	"01/02/2006",
}

// normalizeRecord applies the same per-field defaults the heuristic
// parser guarantees, so both backends emit records with every field
// populated.
func normalizeRecord(w wireRecord, now time.Time) parsing.Record {
	rec := parsing.Record{
		Date:         now.Format("2006-01-02"),
		MerchantName: strings.TrimSpace(w.MerchantName),
		Notes:        strings.TrimSpace(w.Notes),
	}

	for _, format := range dateFormats {
		if d, err := time.Parse(format, strings.TrimSpace(w.Date)); err == nil {
			rec.Date = d.Format("2006-01-02")
			break
		}
	}

	if rec.MerchantName == "" {
		rec.MerchantName = parsing.MerchantPlaceholder
	}

	if amount := int(math.Round(w.Amount)); amount > 0 {
		rec.Amount = amount
	}

	return rec
}
