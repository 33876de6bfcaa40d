package receipt

import "receipt-tidy/internal/parsing"

// Item is one row of the review table: an extracted record plus the
// session-unique ID that edits and deletes are keyed on.
type Item struct {
	ID           string `json:"id"`
	Date         string `json:"date"` // YYYY-MM-DD
	MerchantName string `json:"merchantName"`
	Amount       int    `json:"amount"` // whole currency units (KRW)
	Notes        string `json:"notes"`
	// SourceImage is the archive path of the upload this row came from,
	// empty when the original was not kept.
	SourceImage string `json:"sourceImage,omitempty"`
}

// ItemPatch is a field-level update; nil fields are left unchanged.
type ItemPatch struct {
	Date         *string `json:"date"`
	MerchantName *string `json:"merchantName"`
	Amount       *int    `json:"amount"`
	Notes        *string `json:"notes"`
}

func newItem(id string, rec parsing.Record, sourceImage string) *Item {
	return &Item{
		ID:           id,
		Date:         rec.Date,
		MerchantName: rec.MerchantName,
		Amount:       rec.Amount,
		Notes:        rec.Notes,
		SourceImage:  sourceImage,
	}
}

func (i *Item) apply(patch ItemPatch) {
	if patch.Date != nil {
		i.Date = *patch.Date
	}
	if patch.MerchantName != nil {
		i.MerchantName = *patch.MerchantName
	}
	if patch.Amount != nil {
		i.Amount = *patch.Amount
	}
	if patch.Notes != nil {
		i.Notes = *patch.Notes
	}
}
