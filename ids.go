package main

import (
	"bytes"
	"encoding/json"
	"fmt"
	"math"
	"strconv"
	"strings"
)

// RecordID is an item identifier exactly as it appears in the backing
// document. Ids written by the store are JSON integers, but hand-edited or
// imported documents may hold numeric strings, which are kept verbatim and
// compared through normalizeID.
type RecordID struct {
	raw json.RawMessage
}

// NewRecordID returns an integer RecordID.
func NewRecordID(n int64) RecordID {
	return RecordID{raw: json.RawMessage(strconv.FormatInt(n, 10))}
}

// Int returns the id as an integer when it normalizes to a whole number.
func (id RecordID) Int() (int64, bool) {
	v, ok := normalizeID(id.raw)
	if !ok || v != math.Trunc(v) {
		return 0, false
	}
	return int64(v), true
}

// Matches reports whether id identifies the item with numeric id n.
func (id RecordID) Matches(n int64) bool {
	v, ok := normalizeID(id.raw)
	return ok && v == float64(n)
}

// String returns the id's JSON text with string quotes removed.
func (id RecordID) String() string {
	var s string
	if err := json.Unmarshal(id.raw, &s); err == nil {
		return s
	}
	return string(id.raw)
}

func (id RecordID) MarshalJSON() ([]byte, error) {
	if len(id.raw) == 0 {
		return []byte("null"), nil
	}
	return id.raw, nil
}

func (id *RecordID) UnmarshalJSON(b []byte) error {
	id.raw = append(json.RawMessage(nil), bytes.TrimSpace(b)...)
	return nil
}

// normalizeID is the single rule for numeric item identity. A JSON number,
// or a JSON string holding a finite decimal number, coerces; anything else
// does not.
func normalizeID(raw json.RawMessage) (float64, bool) {
	raw = bytes.TrimSpace(raw)
	if len(raw) == 0 {
		return 0, false
	}
	text := string(raw)
	if raw[0] == '"' {
		var s string
		if err := json.Unmarshal(raw, &s); err != nil {
			return 0, false
		}
		text = strings.TrimSpace(s)
		if text == "" {
			return 0, false
		}
	}
	v, err := strconv.ParseFloat(text, 64)
	if err != nil || math.IsInf(v, 0) || math.IsNaN(v) {
		return 0, false
	}
	return v, true
}

// maxRecordID is the largest id the store assigns or resolves. Every integer
// up to it has an exact float64 form, so numeric id comparison stays exact.
const maxRecordID = 1<<53 - 1

// nextID returns one more than the largest numeric id in items, or 1 when
// none coerce. It fails with ErrIDSpaceExhausted when that would pass
// maxRecordID.
func nextID(items []Item) (int64, error) {
	var maxID float64
	for _, it := range items {
		if v, ok := normalizeID(it.ID.raw); ok && v > maxID {
			maxID = v
		}
	}
	if maxID >= maxRecordID {
		return 0, fmt.Errorf("%w: largest stored id is %s", ErrIDSpaceExhausted, strconv.FormatFloat(maxID, 'g', -1, 64))
	}
	return int64(math.Floor(maxID)) + 1, nil
}

// parsePathID parses an id taken from a request path. Only well-formed
// integers in [1, maxRecordID] are accepted.
func parsePathID(s string) (int64, bool) {
	if s == "" || strings.TrimLeft(s, "0123456789") != "" {
		return 0, false
	}
	n, err := strconv.ParseInt(s, 10, 64)
	if err != nil || n <= 0 || n > maxRecordID {
		return 0, false
	}
	return n, true
}
