package models

// Alphabet identifies the character repertoire a message is transported in.
type Alphabet int

const (
	// AlphabetRestricted is the GSM 03.38 7-bit default alphabet with its
	// shift table.
	AlphabetRestricted Alphabet = iota
	// AlphabetExtended is the 16-bit UCS-2/UTF-16 alphabet.
	AlphabetExtended
)

func (a Alphabet) String() string {
	switch a {
	case AlphabetRestricted:
		return "gsm7"
	case AlphabetExtended:
		return "ucs2"
	default:
		return "unknown"
	}
}

// Segment is one transport-level unit of a Message.
type Segment struct {
	// Index is 1-based.
	Index int
	Total int
	// Payload is the slice of the message body carried by this segment.
	Payload string
	// Units is the weighted length of Payload under the message alphabet.
	Units int
	// ConcatRef is shared by every segment of the same message. It carries
	// no meaning when Total is 1.
	ConcatRef uint8
}

// Concatenated reports whether the segment belongs to a multi-part message.
func (s Segment) Concatenated() bool { return s.Total > 1 }

// Message is an immutable, classified and segmented message body.
type Message struct {
	body     string
	alphabet Alphabet
	segments []Segment
}

// NewMessage builds a Message. The segment slice is copied.
func NewMessage(body string, alphabet Alphabet, segments []Segment) Message {
	return Message{
		body:     body,
		alphabet: alphabet,
		segments: append([]Segment(nil), segments...),
	}
}

func (m Message) Body() string                   { return m.body }
func (m Message) Alphabet() Alphabet             { return m.alphabet }
func (m Message) SegmentCount() int              { return len(m.segments) }
func (m Message) RequiresExtendedAlphabet() bool { return m.alphabet == AlphabetExtended }

// Segments returns a copy of the ordered segments.
func (m Message) Segments() []Segment {
	return append([]Segment(nil), m.segments...)
}

// Units returns the weighted length of the whole body.
func (m Message) Units() int {
	n := 0
	for _, s := range m.segments {
		n += s.Units
	}
	return n
}
