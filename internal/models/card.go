package models

// Card represents a stored payment card record
type Card struct {
	ID             int64   `json:"id"`
	CardNumber     string  `json:"card_number"`
	ExpiryMonth    string  `json:"expiry_month"`
	ExpiryYear     string  `json:"expiry_year"`
	CVV            string  `json:"cvv"`
	CardholderName string  `json:"cardholder_name"`
	IsLive         *bool   `json:"is_live"`   // nil when the card was never tested
	TestedAt       *string `json:"tested_at"` // free-form place/time of the test
}

// CardCreate is the payload for creating a card
type CardCreate struct {
	CardNumber     string `json:"card_number" validate:"required,max=19"`
	ExpiryMonth    string `json:"expiry_month" validate:"required,max=2"`
	ExpiryYear     string `json:"expiry_year" validate:"required,max=4"`
	CVV            string `json:"cvv" validate:"required,max=4"`
	CardholderName string `json:"cardholder_name" validate:"required,max=255"`
}

// CardUpdate is the payload for a partial card update.
// Only fields present in the request body are applied.
type CardUpdate struct {
	CardNumber     Optional[string] `json:"card_number"`
	ExpiryMonth    Optional[string] `json:"expiry_month"`
	ExpiryYear     Optional[string] `json:"expiry_year"`
	CVV            Optional[string] `json:"cvv"`
	CardholderName Optional[string] `json:"cardholder_name"`
}

// StatusUpdate is the payload for PATCH /cards/{id}/status
type StatusUpdate struct {
	IsLive   Optional[bool]   `json:"is_live"`
	TestedAt Optional[string] `json:"tested_at"`
}

// Empty reports whether neither status field was supplied
func (s StatusUpdate) Empty() bool {
	return !s.IsLive.Set && !s.TestedAt.Set
}

// DedupResult summarizes a duplicate removal sweep
type DedupResult struct {
	Message string `json:"message"`
	Removed int    `json:"removed"`
	Failed  int    `json:"failed"`
}
