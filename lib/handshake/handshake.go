// Copyright 2026 The Arduino Utils Authors
// SPDX-License-Identifier: Apache-2.0

package handshake

import (
	"errors"
	"fmt"
	"io"
	"math/bits"
)

// MaxFields is the number of addressable fields per row: one per bit
// of the mode byte.
const MaxFields = 8

// ModeSend is the mode byte that introduces a send request.
const ModeSend = 0x00

// MaxPayload is the largest send payload the one-byte length can carry.
const MaxPayload = 255

// ErrPayloadTooLarge is returned by EncodeSend for payloads longer than
// MaxPayload.
var ErrPayloadTooLarge = errors.New("handshake: payload exceeds 255 bytes")

// ErrEmptyMask is returned by MaskFromInputs when no input selects a
// field.
var ErrEmptyMask = errors.New("handshake: no inputs selected")

// Mask is a set of field indices, bit k for field k.
type Mask uint8

// Has reports whether field is in the mask. Indices outside 0..7 are
// never members.
func (m Mask) Has(field int) bool {
	if field < 0 || field >= MaxFields {
		return false
	}
	return m&(1<<field) != 0
}

// Fields returns the member field indices in ascending order.
func (m Mask) Fields() []int {
	fields := make([]int, 0, m.Count())
	for field := 0; field < MaxFields; field++ {
		if m.Has(field) {
			fields = append(fields, field)
		}
	}
	return fields
}

// Count returns the number of fields in the mask.
func (m Mask) Count() int {
	return bits.OnesCount8(uint8(m))
}

// MaskFromInputs builds a mask from 1-based input numbers. Zero is
// skipped, matching the legacy clients' atoi handling of non-numeric
// arguments. Numbers outside 0..8 are rejected.
func MaskFromInputs(inputs []int) (Mask, error) {
	var mask Mask
	for _, input := range inputs {
		if input == 0 {
			continue
		}
		if input < 0 || input > MaxFields {
			return 0, fmt.Errorf("handshake: input %d out of range 1-%d", input, MaxFields)
		}
		mask |= 1 << (input - 1)
	}
	if mask == 0 {
		return 0, ErrEmptyMask
	}
	return mask, nil
}

// Kind distinguishes the two handshake roles.
type Kind int

const (
	// Subscribe requests pushes for the fields in Request.Mask.
	Subscribe Kind = iota
	// Send forwards Request.Payload to the device.
	Send
)

func (k Kind) String() string {
	switch k {
	case Subscribe:
		return "subscribe"
	case Send:
		return "send"
	default:
		return fmt.Sprintf("Kind(%d)", int(k))
	}
}

// Request is a decoded handshake.
type Request struct {
	Kind    Kind
	Mask    Mask
	Payload []byte
}

// ReadRequest reads exactly one handshake from r. A send request whose
// payload is cut short returns an error wrapping io.ErrUnexpectedEOF
// and no payload: partial payloads are never forwarded.
func ReadRequest(r io.Reader) (Request, error) {
	var header [1]byte
	if _, err := io.ReadFull(r, header[:]); err != nil {
		return Request{}, fmt.Errorf("reading mode byte: %w", err)
	}
	if header[0] != ModeSend {
		return Request{Kind: Subscribe, Mask: Mask(header[0])}, nil
	}

	if _, err := io.ReadFull(r, header[:]); err != nil {
		return Request{}, fmt.Errorf("reading payload length: %w", err)
	}
	payload := make([]byte, int(header[0]))
	if _, err := io.ReadFull(r, payload); err != nil {
		if errors.Is(err, io.EOF) {
			err = io.ErrUnexpectedEOF
		}
		return Request{}, fmt.Errorf("reading %d byte payload: %w", len(payload), err)
	}
	return Request{Kind: Send, Payload: payload}, nil
}

// EncodeSubscribe returns the single-byte subscribe handshake.
func EncodeSubscribe(mask Mask) ([]byte, error) {
	if mask == 0 {
		return nil, ErrEmptyMask
	}
	return []byte{byte(mask)}, nil
}

// EncodeSend returns the send handshake for payload.
func EncodeSend(payload []byte) ([]byte, error) {
	if len(payload) > MaxPayload {
		return nil, ErrPayloadTooLarge
	}
	message := make([]byte, 0, 2+len(payload))
	message = append(message, ModeSend, byte(len(payload)))
	return append(message, payload...), nil
}
