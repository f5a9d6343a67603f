// Package coding classifies message text into an SMS alphabet and converts it
// to and from wire octets.
package coding

import (
	"errors"
	"fmt"
	"unicode/utf8"

	"github.com/example/bulksms/internal/models"
	"github.com/example/bulksms/internal/smserr"
)

// Classify returns AlphabetRestricted when every rune of body is in the
// GSM 03.38 default or shift table and AlphabetExtended otherwise.
func Classify(body string) models.Alphabet {
	for _, r := range body {
		if !IsGSM7(r) {
			return models.AlphabetExtended
		}
	}
	return models.AlphabetRestricted
}

// Weight returns the capacity units r consumes in alphabet a. ok is false when
// r cannot be represented.
func Weight(r rune, a models.Alphabet) (units int, ok bool) {
	switch a {
	case models.AlphabetRestricted:
		if InBasicTable(r) {
			return 1, true
		}
		if InShiftTable(r) {
			return 2, true
		}
		return 0, false
	case models.AlphabetExtended:
		if r < 0 || r > utf8.MaxRune || (r >= 0xD800 && r <= 0xDFFF) {
			return 0, false
		}
		if r >= 0x10000 {
			return 2, true
		}
		return 1, true
	default:
		return 0, false
	}
}

// WeightedLength sums the capacity units of body in alphabet a.
func WeightedLength(body string, a models.Alphabet) (int, error) {
	if !utf8.ValidString(body) {
		return 0, smserr.Encoding(errors.New("body is not valid UTF-8"))
	}
	total := 0
	for i, r := range body {
		w, ok := Weight(r, a)
		if !ok {
			return 0, smserr.Encoding(fmt.Errorf("rune %q at offset %d cannot be represented in %s", r, i, a))
		}
		total += w
	}
	return total, nil
}

// Encode converts text to unpacked wire units for alphabet a: septets for
// the restricted alphabet and UTF-16BE octets for the extended one.
func Encode(text string, a models.Alphabet) ([]byte, error) {
	switch a {
	case models.AlphabetRestricted:
		return EncodeGSM7(text)
	case models.AlphabetExtended:
		return EncodeUCS2(text)
	default:
		return nil, smserr.Encoding(fmt.Errorf("unknown alphabet %d", int(a)))
	}
}
