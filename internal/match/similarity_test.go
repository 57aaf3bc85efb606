package match

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestNormalizeName(t *testing.T) {
	tests := []struct {
		in, want string
	}{
		{"", ""},
		{"  Jane   Doe ", "jane doe"},
		{"José Núñez", "jose nunez"},
		{"O'Brien, Pat", "obrien pat"},
		{"MARY-ANNE", "maryanne"},
	}
	for _, tt := range tests {
		t.Run(tt.in, func(t *testing.T) {
			assert.Equal(t, tt.want, NormalizeName(tt.in))
		})
	}
}

func TestPhoneDigits(t *testing.T) {
	assert.Equal(t, "5551234567", PhoneDigits("(555) 123-4567"))
	assert.Equal(t, "5551234567", PhoneDigits("+1 555 123 4567"))
	assert.Equal(t, "445551234567", PhoneDigits("+44 555 123 4567"))
	assert.Equal(t, "", PhoneDigits("n/a"))
}

func TestNameSimilarity(t *testing.T) {
	assert.InDelta(t, 1.0, NameSimilarity("JOSE  Nunez", "José Núñez"), 1e-9)
	assert.InDelta(t, 0.9, NameSimilarity("Jon Smith", "John Smith"), 0.01)
	assert.Less(t, NameSimilarity("John Smith", "Maria Lopez"), 0.5)
	assert.Zero(t, NameSimilarity("", "John"))
}

func TestPhoneSimilarity(t *testing.T) {
	assert.InDelta(t, 1.0, PhoneSimilarity("1-555-123-4567", "555.123.4567"), 1e-9)
	assert.InDelta(t, 0.9, PhoneSimilarity("5551234567", "5551234568"), 0.01)
	assert.Zero(t, PhoneSimilarity("", "5551234567"))
}
