package models

// BinInfo is the enrichment data reported by the BIN directory.
// Every field is optional; a zero BinInfo is a valid lookup result.
type BinInfo struct {
	Scheme       *string `json:"scheme"`
	Type         *string `json:"type"`
	Brand        *string `json:"brand"`
	Country      *string `json:"country"`
	CountryEmoji *string `json:"country_emoji"`
	Bank         *string `json:"bank"`
	Prepaid      *bool   `json:"prepaid"`
}
