// Copyright 2026 The Arduino Utils Authors
// SPDX-License-Identifier: Apache-2.0

package control

import (
	"io"
	"reflect"

	"github.com/fxamacker/cbor/v2"
)

// Requests and responses are single CBOR items. Encoding is Core
// Deterministic (RFC 8949 §4.2); decoding ignores unknown fields so an
// older arduino-status can read a newer daemon's stats.
var (
	encoding cbor.EncMode
	decoding cbor.DecMode
)

func init() {
	var err error
	encoding, err = cbor.CoreDetEncOptions().EncMode()
	if err != nil {
		panic("control: CBOR encoder options: " + err.Error())
	}
	decoding, err = cbor.DecOptions{
		// Untyped maps decode with string keys so --json output of a
		// generic result re-encodes cleanly.
		DefaultMapType: reflect.TypeOf(map[string]any(nil)),
		// A control message never needs more than a handful of nested
		// levels or entries.
		MaxNestedLevels:  16,
		MaxArrayElements: 4096,
		MaxMapPairs:      4096,
	}.DecMode()
	if err != nil {
		panic("control: CBOR decoder options: " + err.Error())
	}
}

func marshal(v any) ([]byte, error) { return encoding.Marshal(v) }

func unmarshal(data []byte, v any) error { return decoding.Unmarshal(data, v) }

func writeMessage(w io.Writer, v any) error {
	return encoding.NewEncoder(w).Encode(v)
}

// readMessage decodes one item from r, reading at most limit bytes.
func readMessage(r io.Reader, limit int64, v any) error {
	return decoding.NewDecoder(io.LimitReader(r, limit)).Decode(v)
}
