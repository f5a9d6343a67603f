package segment

import (
	"fmt"

	"github.com/example/bulksms/internal/coding"
	"github.com/example/bulksms/internal/models"
)

// Concatenation information element, 8 bit reference.
const (
	ieiConcat8    = 0x00
	ieiConcat8Len = 0x03
	// HeaderLength is the size in octets of the concatenation header,
	// including the leading UDHL octet.
	HeaderLength = 6
	// MaxUserData is the user data budget of one SMS-SUBMIT PDU.
	MaxUserData = 140
)

// Header returns the user data header for seg, or nil for a single segment
// message.
func Header(seg models.Segment) []byte {
	if !seg.Concatenated() {
		return nil
	}
	return []byte{HeaderLength - 1, ieiConcat8, ieiConcat8Len, seg.ConcatRef, byte(seg.Total), byte(seg.Index)}
}

// UserData renders seg as the user data field of an SMS-SUBMIT PDU: the
// header, then the payload as packed septets or UTF-16BE octets.
func UserData(seg models.Segment, a models.Alphabet) ([]byte, error) {
	header := Header(seg)
	switch a {
	case models.AlphabetRestricted:
		septets, err := coding.EncodeGSM7(seg.Payload)
		if err != nil {
			return nil, err
		}
		fill := 0
		if n := len(header) * 8 % 7; n != 0 {
			fill = 7 - n
		}
		return append(header, coding.PackSeptets(septets, fill)...), nil
	case models.AlphabetExtended:
		octets, err := coding.EncodeUCS2(seg.Payload)
		if err != nil {
			return nil, err
		}
		return append(header, octets...), nil
	default:
		return nil, fmt.Errorf("segment: unknown alphabet %d", int(a))
	}
}
