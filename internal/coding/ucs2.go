package coding

import (
	"fmt"
	"unicode/utf8"

	"golang.org/x/text/encoding/unicode"

	"github.com/example/bulksms/internal/smserr"
)

var utf16be = unicode.UTF16(unicode.BigEndian, unicode.IgnoreBOM)

// EncodeUCS2 converts text into big-endian UTF-16 octets. Runes outside the
// basic multilingual plane become surrogate pairs.
func EncodeUCS2(text string) ([]byte, error) {
	if !utf8.ValidString(text) {
		return nil, smserr.Encoding(fmt.Errorf("text is not valid UTF-8"))
	}
	out, err := utf16be.NewEncoder().Bytes([]byte(text))
	if err != nil {
		return nil, smserr.Encoding(fmt.Errorf("encode utf-16: %w", err))
	}
	return out, nil
}

// DecodeUCS2 converts big-endian UTF-16 octets back into text.
func DecodeUCS2(octets []byte) (string, error) {
	if len(octets)%2 != 0 {
		return "", smserr.Encoding(fmt.Errorf("odd utf-16 length %d", len(octets)))
	}
	out, err := utf16be.NewDecoder().Bytes(octets)
	if err != nil {
		return "", smserr.Encoding(fmt.Errorf("decode utf-16: %w", err))
	}
	return string(out), nil
}
