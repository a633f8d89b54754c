package utils

import (
	"strings"

	"golang.org/x/text/unicode/norm"
)

// NormalizeName trims a username and folds it to NFC so visually identical
// names stored from different clients compare equal.
func NormalizeName(name string) string {
	return norm.NFC.String(strings.TrimSpace(name))
}

func NormalizeEmail(email string) string {
	return strings.ToLower(norm.NFC.String(strings.TrimSpace(email)))
}
