package coding

import (
	"fmt"
	"strings"

	"github.com/example/bulksms/internal/smserr"
)

// escape is the GSM 03.38 shift prefix.
const escape byte = 0x1B

// basicTable lists the default alphabet in code order. Position 0x1B holds the
// escape code and never maps to a rune.
const basicTable = "@£$¥èéùìòÇ\nØø\rÅåΔ_ΦΓΛΩΠΨΣΘΞ\x1bÆæßÉ !\"#¤%&'()*+,-./0123456789:;<=>?¡ABCDEFGHIJKLMNOPQRSTUVWXYZÄÖÑÜ§¿abcdefghijklmnopqrstuvwxyzäöñüà"

// shiftTable maps runes reachable through the escape code.
var shiftTable = map[rune]byte{
	'\f': 0x0A,
	'^':  0x14,
	'{':  0x28,
	'}':  0x29,
	'\\': 0x2F,
	'[':  0x3C,
	'~':  0x3D,
	']':  0x3E,
	'|':  0x40,
	'€':  0x65,
}

var (
	basicCodes   = make(map[rune]byte, 128)
	basicRunes   [128]rune
	shiftedRunes = make(map[byte]rune, len(shiftTable))
)

func init() {
	code := 0
	for _, r := range basicTable {
		basicRunes[code] = r
		if byte(code) != escape {
			basicCodes[r] = byte(code)
		}
		code++
	}
	for r, b := range shiftTable {
		shiftedRunes[b] = r
	}
}

// InBasicTable reports whether r is in the GSM 03.38 default alphabet.
func InBasicTable(r rune) bool {
	_, ok := basicCodes[r]
	return ok
}

// InShiftTable reports whether r needs the escape prefix.
func InShiftTable(r rune) bool {
	_, ok := shiftTable[r]
	return ok
}

// IsGSM7 reports whether r can be sent in the restricted alphabet.
func IsGSM7(r rune) bool {
	return InBasicTable(r) || InShiftTable(r)
}

// EncodeGSM7 converts text into unpacked septets, one byte per septet, with
// shift-table runes expanded to escape + code.
func EncodeGSM7(text string) ([]byte, error) {
	out := make([]byte, 0, len(text))
	for i, r := range text {
		if b, ok := basicCodes[r]; ok {
			out = append(out, b)
			continue
		}
		if b, ok := shiftTable[r]; ok {
			out = append(out, escape, b)
			continue
		}
		return nil, smserr.Encoding(fmt.Errorf("rune %q at offset %d is not in the GSM 03.38 alphabet", r, i))
	}
	return out, nil
}

// DecodeGSM7 converts unpacked septets back into text.
func DecodeGSM7(septets []byte) (string, error) {
	var sb strings.Builder
	for i := 0; i < len(septets); i++ {
		b := septets[i]
		if b > 0x7F {
			return "", smserr.Encoding(fmt.Errorf("septet 0x%02X at %d out of range", b, i))
		}
		if b != escape {
			sb.WriteRune(basicRunes[b])
			continue
		}
		if i+1 >= len(septets) {
			return "", smserr.Encoding(fmt.Errorf("dangling escape at %d", i))
		}
		i++
		r, ok := shiftedRunes[septets[i]]
		if !ok {
			return "", smserr.Encoding(fmt.Errorf("unknown shift code 0x%02X at %d", septets[i], i))
		}
		sb.WriteRune(r)
	}
	return sb.String(), nil
}

// PackSeptets packs septets into octets, least significant bit first.
// fillBits leading zero bits are inserted so the first septet starts on a
// septet boundary after a user data header.
func PackSeptets(septets []byte, fillBits int) []byte {
	totalBits := fillBits + 7*len(septets)
	out := make([]byte, (totalBits+7)/8)
	for i, s := range septets {
		pos := fillBits + 7*i
		idx, shift := pos/8, uint(pos%8)
		out[idx] |= (s & 0x7F) << shift
		if shift > 1 {
			out[idx+1] |= (s & 0x7F) >> (8 - shift)
		}
	}
	return out
}

// UnpackSeptets reverses PackSeptets for count septets.
func UnpackSeptets(octets []byte, fillBits, count int) []byte {
	out := make([]byte, 0, count)
	for i := 0; i < count; i++ {
		pos := fillBits + 7*i
		idx, shift := pos/8, uint(pos%8)
		if idx >= len(octets) {
			break
		}
		v := octets[idx] >> shift
		if shift > 1 && idx+1 < len(octets) {
			v |= octets[idx+1] << (8 - shift)
		}
		out = append(out, v&0x7F)
	}
	return out
}
