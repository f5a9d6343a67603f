// Package segment splits message bodies into transport segments that a
// handset can reassemble in order.
package segment

import (
	"errors"
	"fmt"
	"math/rand"
	"sync/atomic"
	"time"
	"unicode/utf8"

	"github.com/rs/zerolog"

	"github.com/example/bulksms/internal/coding"
	"github.com/example/bulksms/internal/logger"
	"github.com/example/bulksms/internal/models"
	"github.com/example/bulksms/internal/smserr"
)

// Capacities holds the per-segment unit budgets for each alphabet.
type Capacities struct {
	SingleGSM  int
	ConcatGSM  int
	SingleUCS2 int
	ConcatUCS2 int
}

// DefaultCapacities returns the budgets of a 140 octet user data field with a
// 6 octet concatenation header on multipart messages.
func DefaultCapacities() Capacities {
	return Capacities{SingleGSM: 160, ConcatGSM: 153, SingleUCS2: 70, ConcatUCS2: 67}
}

// Validate checks that every budget can hold a two unit rune and that
// concatenated budgets never exceed single ones.
func (c Capacities) Validate() error {
	if c.ConcatGSM < 2 || c.ConcatUCS2 < 2 {
		return errors.New("segment: concatenated capacities must be >= 2")
	}
	if c.SingleGSM < c.ConcatGSM {
		return fmt.Errorf("segment: gsm single capacity %d below concatenated %d", c.SingleGSM, c.ConcatGSM)
	}
	if c.SingleUCS2 < c.ConcatUCS2 {
		return fmt.Errorf("segment: ucs2 single capacity %d below concatenated %d", c.SingleUCS2, c.ConcatUCS2)
	}
	return nil
}

// For returns the capacity for alphabet a.
func (c Capacities) For(a models.Alphabet, concatenated bool) int {
	switch {
	case a == models.AlphabetExtended && concatenated:
		return c.ConcatUCS2
	case a == models.AlphabetExtended:
		return c.SingleUCS2
	case concatenated:
		return c.ConcatGSM
	default:
		return c.SingleGSM
	}
}

// Planner classifies and splits message bodies. A Planner is safe for
// concurrent use; its concatenation references are unique per instance until
// the 8 bit space wraps.
type Planner struct {
	caps        Capacities
	maxSegments int
	nextRef     func() uint8
	logger      zerolog.Logger
}

// Option customises a Planner.
type Option func(*Planner)

// WithCapacities overrides the default unit budgets.
func WithCapacities(c Capacities) Option {
	return func(p *Planner) {
		p.caps = c
	}
}

// WithMaxSegments caps the number of segments per message. Zero means
// unbounded.
func WithMaxSegments(n int) Option {
	return func(p *Planner) {
		if n >= 0 {
			p.maxSegments = n
		}
	}
}

// WithRefSource replaces the concatenation reference generator.
func WithRefSource(next func() uint8) Option {
	return func(p *Planner) {
		if next != nil {
			p.nextRef = next
		}
	}
}

// WithLogger sets the planner logger.
func WithLogger(logger zerolog.Logger) Option {
	return func(p *Planner) {
		p.logger = logger
	}
}

// NewPlanner builds a Planner with default capacities and an unbounded
// segment count.
func NewPlanner(opts ...Option) (*Planner, error) {
	p := &Planner{caps: DefaultCapacities()}
	for _, opt := range opts {
		opt(p)
	}
	if err := p.caps.Validate(); err != nil {
		return nil, err
	}
	if p.nextRef == nil {
		p.nextRef = counterFrom(uint32(rand.New(rand.NewSource(time.Now().UnixNano())).Intn(256)))
	}
	p.logger = logger.ForComponent(p.logger, "segment_planner")
	return p, nil
}

func counterFrom(start uint32) func() uint8 {
	var n atomic.Uint32
	n.Store(start)
	return func() uint8 {
		return uint8(n.Add(1))
	}
}

// Capacities returns the planner's unit budgets.
func (p *Planner) Capacities() Capacities { return p.caps }

// Plan splits body into segments for alphabet a. Bodies that fit the single
// segment capacity produce exactly one segment without a reference. Longer
// bodies are packed greedily into concatenated segments sharing one fresh
// reference; a two unit rune is never split across segments.
func (p *Planner) Plan(body string, a models.Alphabet) ([]models.Segment, error) {
	if body == "" {
		return nil, smserr.Encoding(errors.New("message body is empty"))
	}
	if !utf8.ValidString(body) {
		return nil, smserr.Encoding(errors.New("message body is not valid UTF-8"))
	}
	total, err := coding.WeightedLength(body, a)
	if err != nil {
		return nil, err
	}

	if total <= p.caps.For(a, false) {
		return []models.Segment{{Index: 1, Total: 1, Payload: body, Units: total}}, nil
	}

	limit := p.caps.For(a, true)
	var segments []models.Segment
	start, units := 0, 0
	for i, r := range body {
		w, _ := coding.Weight(r, a)
		if units+w > limit {
			segments = append(segments, models.Segment{Payload: body[start:i], Units: units})
			start, units = i, 0
		}
		units += w
	}
	segments = append(segments, models.Segment{Payload: body[start:], Units: units})

	if p.maxSegments > 0 && len(segments) > p.maxSegments {
		return nil, smserr.Encoding(fmt.Errorf("message needs %d segments, limit is %d", len(segments), p.maxSegments))
	}

	ref := p.nextRef()
	for i := range segments {
		segments[i].Index = i + 1
		segments[i].Total = len(segments)
		segments[i].ConcatRef = ref
	}

	p.logger.Debug().
		Str("alphabet", a.String()).
		Int("units", total).
		Int("segments", len(segments)).
		Uint8("ref", ref).
		Msg("segment: planned concatenated message")

	return segments, nil
}

// Message classifies body and plans its segments.
func (p *Planner) Message(body string) (models.Message, error) {
	alphabet := coding.Classify(body)
	segments, err := p.Plan(body, alphabet)
	if err != nil {
		return models.Message{}, err
	}
	return models.NewMessage(body, alphabet, segments), nil
}
