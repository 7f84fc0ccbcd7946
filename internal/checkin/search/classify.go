package search

import (
	"strings"
	"unicode"

	"shepherd/internal/checkin/models"
	dErrors "shepherd/pkg/domain-errors"
	platformstrings "shepherd/pkg/platform/strings"
)

type Mode string

const (
	ModeAuto  Mode = "auto"
	ModePhone Mode = "phone"
	ModeName  Mode = "name"
)

// ParseMode accepts "", auto, phone and name.
func ParseMode(s string) (Mode, error) {
	switch Mode(strings.ToLower(strings.TrimSpace(s))) {
	case "", ModeAuto:
		return ModeAuto, nil
	case ModePhone:
		return ModePhone, nil
	case ModeName:
		return ModeName, nil
	}
	return "", dErrors.New(dErrors.CodeValidation, "mode must be auto, phone, or name")
}

// Query is a classified search input. Empty reports a query too short to run.
type Query struct {
	Mode   Mode
	Digits string
	Terms  []string
}

func (q Query) Empty() bool {
	return q.Digits == "" && len(q.Terms) == 0
}

// Classify decides between phone and name search. In auto mode the input is
// a phone search when it carries at least minDigits digits and digits make up
// most of its non-space characters.
func Classify(raw string, mode Mode, minDigits, minNameChars int) Query {
	digits := models.NormalizePhone(raw)
	name := models.NormalizeName(raw)

	if mode == ModeAuto {
		mode = ModeName
		if len(digits) >= minDigits && digitDominant(raw, len(digits)) {
			mode = ModePhone
		}
	}

	switch mode {
	case ModePhone:
		if len(digits) < minDigits {
			return Query{Mode: ModePhone}
		}
		return Query{Mode: ModePhone, Digits: digits}
	default:
		if len([]rune(strings.ReplaceAll(name, " ", ""))) < minNameChars {
			return Query{Mode: ModeName}
		}
		return Query{Mode: ModeName, Terms: platformstrings.UniqueFields(name)}
	}
}

func digitDominant(raw string, digitCount int) bool {
	visible := 0
	for _, r := range raw {
		if !unicode.IsSpace(r) {
			visible++
		}
	}
	return digitCount*2 > visible
}
