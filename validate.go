package main

import (
	"bytes"
	"encoding/json"
	"fmt"
	"math"
	"strings"
)

var requiredFields = []string{"name", "type", "price", "in_stock"}

// validatePayload checks a create or replace payload (partial=false) or a
// patch payload (partial=true). It never touches storage.
func validatePayload(p Payload, partial bool) error {
	if !partial {
		for _, k := range requiredFields {
			if _, ok := p[k]; !ok {
				return &ValidationError{Kind: KindMissingField, Field: k, Message: "Missing required field: " + k}
			}
		}
	}
	if raw, ok := p["type"]; ok {
		var t string
		if err := json.Unmarshal(raw, &t); err != nil || isNull(raw) || !ItemType(t).Valid() {
			names := make([]string, len(ItemTypes))
			for i, v := range ItemTypes {
				names[i] = string(v)
			}
			return &ValidationError{Kind: KindInvalidEnum, Field: "type", Message: "Invalid type. Allowed: " + strings.Join(names, ", ")}
		}
	}
	if raw, ok := p["price"]; ok {
		v, isNum := jsonNumber(raw)
		if !isNum || v < 0 {
			return &ValidationError{Kind: KindInvalidRange, Field: "price", Message: "price must be a non-negative number"}
		}
	}
	if raw, ok := p["name"]; ok {
		var s string
		if err := json.Unmarshal(raw, &s); err != nil || isNull(raw) || strings.TrimSpace(s) == "" {
			return &ValidationError{Kind: KindInvalidField, Field: "name", Message: "name must be a non-empty string"}
		}
	}
	if raw, ok := p["in_stock"]; ok {
		var b bool
		if err := json.Unmarshal(raw, &b); err != nil || isNull(raw) {
			return &ValidationError{Kind: KindInvalidType, Field: "in_stock", Message: "in_stock must be boolean"}
		}
	}
	if raw, ok := p["tags"]; ok {
		// A null tags value in a patch keeps the stored tags.
		if !(partial && isNull(raw)) {
			if _, err := decodeTags(raw); err != nil {
				return &ValidationError{Kind: KindInvalidType, Field: "tags", Message: "tags must be an array of strings"}
			}
		}
	}
	return nil
}

// decodeTags decodes a JSON array of strings. Null is rejected.
func decodeTags(raw json.RawMessage) ([]string, error) {
	if isNull(raw) {
		return nil, fmt.Errorf("tags is null")
	}
	var elems []json.RawMessage
	if err := json.Unmarshal(raw, &elems); err != nil {
		return nil, err
	}
	tags := make([]string, len(elems))
	for i, e := range elems {
		if isNull(e) {
			return nil, fmt.Errorf("tags[%d] is null", i)
		}
		if err := json.Unmarshal(e, &tags[i]); err != nil {
			return nil, fmt.Errorf("tags[%d]: %w", i, err)
		}
	}
	return tags, nil
}

// jsonNumber decodes raw as a finite JSON number.
func jsonNumber(raw json.RawMessage) (float64, bool) {
	raw = bytes.TrimSpace(raw)
	if len(raw) == 0 || raw[0] == '"' || isNull(raw) {
		return 0, false
	}
	var v float64
	if err := json.Unmarshal(raw, &v); err != nil || math.IsNaN(v) || math.IsInf(v, 0) {
		return 0, false
	}
	return v, true
}

func isNull(raw json.RawMessage) bool {
	return string(bytes.TrimSpace(raw)) == "null"
}
