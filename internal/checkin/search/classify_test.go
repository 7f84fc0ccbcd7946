package search

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestClassify(t *testing.T) {
	tests := []struct {
		name   string
		raw    string
		mode   Mode
		want   Mode
		digits string
		terms  []string
	}{
		{name: "formatted phone", raw: "(555) 867-5309", mode: ModeAuto, want: ModePhone, digits: "5558675309"},
		{name: "last four digits", raw: "5309", mode: ModeAuto, want: ModePhone, digits: "5309"},
		{name: "too few digits falls back to name", raw: "530", mode: ModeAuto, want: ModeName, terms: []string{"530"}},
		{name: "name with digits is not a phone", raw: "Room 1234 Smith", mode: ModeAuto, want: ModeName, terms: []string{"room", "1234", "smith"}},
		{name: "name", raw: "  Ann   LEE ", mode: ModeAuto, want: ModeName, terms: []string{"ann", "lee"}},
		{name: "repeated term searched once", raw: "ann lee ANN", mode: ModeAuto, want: ModeName, terms: []string{"ann", "lee"}},
		{name: "forced name keeps digits as text", raw: "5309", mode: ModeName, want: ModeName, terms: []string{"5309"}},
		{name: "forced phone below minimum is empty", raw: "53", mode: ModePhone, want: ModePhone},
		{name: "single letter is empty", raw: "a", mode: ModeAuto, want: ModeName},
		{name: "blank", raw: "   ", mode: ModeAuto, want: ModeName},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			q := Classify(tt.raw, tt.mode, 4, 2)
			assert.Equal(t, tt.want, q.Mode)
			assert.Equal(t, tt.digits, q.Digits)
			assert.Equal(t, tt.terms, q.Terms)
		})
	}
}

func TestParseMode(t *testing.T) {
	m, err := ParseMode("")
	require.NoError(t, err)
	assert.Equal(t, ModeAuto, m)

	m, err = ParseMode("Phone")
	require.NoError(t, err)
	assert.Equal(t, ModePhone, m)

	_, err = ParseMode("fuzzy")
	assert.Error(t, err)
}
