package match

import (
	"regexp"
	"strings"
	"unicode"

	"github.com/agext/levenshtein"
	"golang.org/x/text/runes"
	"golang.org/x/text/transform"
	"golang.org/x/text/unicode/norm"
)

var (
	nonNameRe  = regexp.MustCompile(`[^\p{L}\p{N}\s]+`)
	multiSpace = regexp.MustCompile(`\s+`)
	nonDigitRe = regexp.MustCompile(`\D+`)

	// Unit costs: similarity is 1 - distance/len(longer).
	simParams = levenshtein.NewParams()
)

// NormalizeName folds a person's name for comparison:
//  1. Strip diacritics (José → Jose)
//  2. Lower-case
//  3. Drop punctuation
//  4. Collapse whitespace
func NormalizeName(name string) string {
	name = strings.TrimSpace(name)
	if name == "" {
		return ""
	}
	fold := transform.Chain(norm.NFD, runes.Remove(runes.In(unicode.Mn)), norm.NFC)
	if folded, _, err := transform.String(fold, name); err == nil {
		name = folded
	}
	name = strings.ToLower(name)
	name = nonNameRe.ReplaceAllString(name, "")
	name = multiSpace.ReplaceAllString(name, " ")
	return strings.TrimSpace(name)
}

// PhoneDigits reduces a phone number to its digits. A leading North American
// country code is dropped from 11-digit numbers.
func PhoneDigits(phone string) string {
	d := nonDigitRe.ReplaceAllString(phone, "")
	if len(d) == 11 && d[0] == '1' {
		d = d[1:]
	}
	return d
}

// NormalizeEmail lower-cases and trims an email address.
func NormalizeEmail(email string) string {
	return strings.ToLower(strings.TrimSpace(email))
}

// NameSimilarity returns a 0..1 edit-distance similarity between two names
// after normalization. Empty input on either side scores 0.
func NameSimilarity(a, b string) float64 {
	a, b = NormalizeName(a), NormalizeName(b)
	if a == "" || b == "" {
		return 0
	}
	if a == b {
		return 1
	}
	return levenshtein.Similarity(a, b, simParams)
}

// PhoneSimilarity compares digit-only phone numbers. Empty input on either
// side scores 0.
func PhoneSimilarity(a, b string) float64 {
	a, b = PhoneDigits(a), PhoneDigits(b)
	if a == "" || b == "" {
		return 0
	}
	if a == b {
		return 1
	}
	return levenshtein.Similarity(a, b, simParams)
}
