// Copyright 2026 The Arduino Utils Authors
// SPDX-License-Identifier: Apache-2.0

package broker

import (
	"errors"
	"fmt"
	"sync/atomic"

	"github.com/arduino-utils/arduino/lib/handshake"
)

// ErrLineOverflow is returned by Parser.Feed under OverflowFail when a
// field's text reaches the line capacity before a separator arrives.
var ErrLineOverflow = errors.New("field exceeds line capacity")

// OverflowPolicy decides what an over-long field does to the stream.
type OverflowPolicy int

const (
	// OverflowFail stops the daemon. This is the historical behavior:
	// a field that does not fit means the stream is not what we think
	// it is.
	OverflowFail OverflowPolicy = iota

	// OverflowResync drops the rest of the row, waits for the next row
	// separator, and carries on from field 0.
	OverflowResync
)

// ParseOverflowPolicy accepts "fail" and "resync".
func ParseOverflowPolicy(name string) (OverflowPolicy, error) {
	switch name {
	case "", "fail":
		return OverflowFail, nil
	case "resync":
		return OverflowResync, nil
	default:
		return 0, fmt.Errorf("unknown overflow policy %q (want fail or resync)", name)
	}
}

func (p OverflowPolicy) String() string {
	switch p {
	case OverflowFail:
		return "fail"
	case OverflowResync:
		return "resync"
	default:
		return fmt.Sprintf("OverflowPolicy(%d)", int(p))
	}
}

// ParserConfig holds the framing bytes and the line buffer bound.
type ParserConfig struct {
	FieldSeparator byte
	RowSeparator   byte

	// Terminator is appended to every delivered line.
	Terminator []byte

	// LineCapacity bounds a delivered line, terminator included.
	LineCapacity int

	Overflow OverflowPolicy
}

// DefaultParserConfig returns the Arduino sketch's framing: fields end
// in '\r', rows in '\n', lines are delivered with '\n' and fit in 512
// bytes.
func DefaultParserConfig() ParserConfig {
	return ParserConfig{
		FieldSeparator: '\r',
		RowSeparator:   '\n',
		Terminator:     []byte("\n"),
		LineCapacity:   512,
		Overflow:       OverflowFail,
	}
}

// Validate checks that the framing is usable.
func (c ParserConfig) Validate() error {
	if c.FieldSeparator == c.RowSeparator {
		return fmt.Errorf("field and row separators must differ (both %q)", c.FieldSeparator)
	}
	if c.LineCapacity <= len(c.Terminator) {
		return fmt.Errorf("line capacity %d leaves no room for text after the %d byte terminator",
			c.LineCapacity, len(c.Terminator))
	}
	return nil
}

// Event is one completed field. Line is the field text followed by the
// terminator and is only valid until the next call to Feed.
type Event struct {
	Field  int
	Line   []byte
	RowEnd bool
}

// discardMode records why the parser is skipping bytes.
type discardMode int

const (
	keeping discardMode = iota
	// syncing: attached mid-stream, waiting for the first row separator.
	syncing
	// excess: the row has more fields than a mask can address.
	excess
	// resyncing: a field overflowed under OverflowResync.
	resyncing
)

// Parser turns the device byte stream into field events. It is owned by
// the broker's main loop and is not safe for concurrent use; its
// counters may be read from any goroutine.
type Parser struct {
	config  ParserConfig
	maxText int

	field   int
	buffer  []byte
	discard discardMode

	rows         atomic.Uint64
	fields       atomic.Uint64
	overflows    atomic.Uint64
	excessFields atomic.Uint64
}

// NewParser returns a parser in the syncing state: everything up to and
// including the first row separator is discarded.
func NewParser(config ParserConfig) (*Parser, error) {
	if err := config.Validate(); err != nil {
		return nil, err
	}
	return &Parser{
		config:  config,
		maxText: config.LineCapacity - len(config.Terminator),
		buffer:  make([]byte, 0, config.LineCapacity),
		discard: syncing,
	}, nil
}

// Synced reports whether the first row separator has been seen.
func (p *Parser) Synced() bool {
	return p.discard != syncing
}

// AtRowBoundary reports whether the parser sits between rows: field 0,
// nothing buffered, not skipping. Subscriptions are committed only here.
func (p *Parser) AtRowBoundary() bool {
	return p.discard == keeping && p.field == 0 && len(p.buffer) == 0
}

// Field returns the index of the field currently being read.
func (p *Parser) Field() int {
	return p.field
}

// Feed consumes one byte. It returns an event when the byte completes a
// field. Under OverflowFail an over-long field returns ErrLineOverflow.
func (p *Parser) Feed(c byte) (Event, bool, error) {
	if p.discard != keeping {
		p.skip(c)
		return Event{}, false, nil
	}

	switch c {
	case p.config.FieldSeparator:
		event := p.complete(false)
		if p.field == handshake.MaxFields-1 {
			p.discard = excess
			p.excessFields.Add(1)
		} else {
			p.field++
		}
		return event, true, nil

	case p.config.RowSeparator:
		event := p.complete(true)
		p.field = 0
		p.rows.Add(1)
		return event, true, nil
	}

	if len(p.buffer) >= p.maxText {
		p.overflows.Add(1)
		if p.config.Overflow == OverflowFail {
			return Event{}, false, fmt.Errorf("field %d: %w (%d bytes)", p.field, ErrLineOverflow, p.config.LineCapacity)
		}
		p.buffer = p.buffer[:0]
		p.discard = resyncing
		return Event{}, false, nil
	}
	p.buffer = append(p.buffer, c)
	return Event{}, false, nil
}

// complete builds the event for the current field and clears the buffer.
// The terminator is appended in place, so the line shares the buffer's
// backing array.
func (p *Parser) complete(rowEnd bool) Event {
	line := append(p.buffer, p.config.Terminator...)
	p.buffer = p.buffer[:0]
	p.fields.Add(1)
	return Event{Field: p.field, Line: line, RowEnd: rowEnd}
}

// skip handles a byte while discarding.
func (p *Parser) skip(c byte) {
	switch c {
	case p.config.RowSeparator:
		if p.discard != syncing {
			p.rows.Add(1)
		}
		p.discard = keeping
		p.field = 0
		p.buffer = p.buffer[:0]
	case p.config.FieldSeparator:
		if p.discard == excess {
			p.excessFields.Add(1)
		}
	}
}

// Rows returns the number of row separators seen since syncing.
func (p *Parser) Rows() uint64 { return p.rows.Load() }

// Fields returns the number of field events emitted.
func (p *Parser) Fields() uint64 { return p.fields.Load() }

// Overflows returns the number of fields that hit the line capacity.
func (p *Parser) Overflows() uint64 { return p.overflows.Load() }

// ExcessFields returns the number of fields dropped because their row
// already had eight.
func (p *Parser) ExcessFields() uint64 { return p.excessFields.Load() }
