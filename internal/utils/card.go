package utils

import (
	"strings"
)

// BinPrefixLength is the maximum number of digits sent to the BIN directory
const BinPrefixLength = 8

// NormalizeCardNumber removes spaces from a card number
func NormalizeCardNumber(cardNumber string) string {
	return strings.ReplaceAll(cardNumber, " ", "")
}

// BinPrefix strips spaces and hyphens and returns at most the first 8 characters
func BinPrefix(raw string) string {
	var builder strings.Builder
	count := 0
	for _, r := range raw {
		if r == ' ' || r == '-' {
			continue
		}
		if count == BinPrefixLength {
			break
		}
		builder.WriteRune(r)
		count++
	}
	return builder.String()
}

// MaskCardNumber hides all but the last four digits of a card number for logging
func MaskCardNumber(cardNumber string) string {
	digits := NormalizeCardNumber(cardNumber)
	if len(digits) <= 4 {
		return strings.Repeat("*", len(digits))
	}
	return strings.Repeat("*", len(digits)-4) + digits[len(digits)-4:]
}
