package puzzle

import (
	"bytes"
	"encoding/json"
	"math"
	"strconv"
	"strings"
)

// Answer is a submitted answer as it arrived on the wire. Depending on
// the kind it is a string, a number, an object of field values or a
// {stage, value} pair.
type Answer struct {
	raw json.RawMessage
}

// NewAnswer wraps a raw JSON payload.
func NewAnswer(raw json.RawMessage) Answer {
	return Answer{raw: raw}
}

// TextAnswer builds a plain string answer.
func TextAnswer(s string) Answer {
	b, _ := json.Marshal(s)
	return Answer{raw: b}
}

// FieldsAnswer builds an object answer for multi-field kinds.
func FieldsAnswer(fields map[string]any) Answer {
	b, _ := json.Marshal(fields)
	return Answer{raw: b}
}

// StageAnswer builds a multi-stage answer.
func StageAnswer(stage int, value string) Answer {
	b, _ := json.Marshal(map[string]any{"stage": stage, "value": value})
	return Answer{raw: b}
}

// Text returns the answer as a string. Numbers and booleans keep their
// literal form; objects, arrays and null read as empty.
func (a Answer) Text() string {
	return rawText(a.raw)
}

// Field returns the text of one named field of an object answer.
func (a Answer) Field(id string) (string, bool) {
	var m map[string]json.RawMessage
	if err := json.Unmarshal(a.raw, &m); err != nil {
		return "", false
	}
	v, ok := m[id]
	if !ok {
		return "", false
	}
	return rawText(v), true
}

// Stage returns the stage index and value of a multi-stage answer.
func (a Answer) Stage() (int, string, bool) {
	var s struct {
		Stage *int            `json:"stage"`
		Value json.RawMessage `json:"value"`
	}
	if err := json.Unmarshal(a.raw, &s); err != nil || s.Stage == nil {
		return 0, "", false
	}
	return *s.Stage, rawText(s.Value), true
}

func rawText(raw json.RawMessage) string {
	raw = bytes.TrimSpace(raw)
	if len(raw) == 0 {
		return ""
	}
	switch raw[0] {
	case '"':
		var s string
		if err := json.Unmarshal(raw, &s); err != nil {
			return ""
		}
		return s
	case '{', '[', 'n':
		return ""
	default:
		return string(raw)
	}
}

// parseNumber reads a finite number. NaN and infinities never compare
// true, so they would slip past every bound.
func parseNumber(s string) (float64, bool) {
	v, err := strconv.ParseFloat(strings.TrimSpace(s), 64)
	if err != nil || math.IsNaN(v) || math.IsInf(v, 0) {
		return 0, false
	}
	return v, true
}

func formatNumber(v float64) string {
	return strconv.FormatFloat(v, 'f', -1, 64)
}

func sameText(submitted, expected string) bool {
	return strings.EqualFold(strings.TrimSpace(submitted), strings.TrimSpace(expected))
}
