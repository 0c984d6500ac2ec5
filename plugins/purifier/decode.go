package purifier

import (
	"net/url"
	"strings"
	"unicode/utf8"
)

// DecodeMode selects how values of a response body are interpreted.
type DecodeMode int

const (
	// FlatDecode keeps every value as the raw string. Used for command acks.
	FlatDecode DecodeMode = iota
	// NestedDecode percent-decodes every value and stores it as a nested
	// record when it holds a list of pairs.
	NestedDecode
)

func (m DecodeMode) String() string {
	switch m {
	case FlatDecode:
		return "flat"
	case NestedDecode:
		return "nested"
	default:
		return "unknown"
	}
}

// RawValue is one decoded value: a scalar string or a nested record.
// Present is false for a pair that had no '='.
type RawValue struct {
	Scalar  string
	Nested  *RawKeyValueMap
	Present bool
}

// IsNested reports whether the value holds a nested record.
func (v RawValue) IsNested() bool {
	return v.Nested != nil
}

// RawKeyValueMap is an ordered key/value map produced by Decode.
//
// Duplicate keys keep the position of their first occurrence and the value
// of their last one.
type RawKeyValueMap struct {
	keys   []string
	values map[string]RawValue
}

func newRawKeyValueMap() *RawKeyValueMap {
	return &RawKeyValueMap{values: make(map[string]RawValue)}
}

func (m *RawKeyValueMap) set(key string, value RawValue) {
	if _, ok := m.values[key]; !ok {
		m.keys = append(m.keys, key)
	}
	m.values[key] = value
}

// Len returns the number of distinct keys.
func (m *RawKeyValueMap) Len() int {
	if m == nil {
		return 0
	}
	return len(m.keys)
}

// Keys returns keys in first-seen order.
func (m *RawKeyValueMap) Keys() []string {
	if m == nil {
		return nil
	}
	return append([]string(nil), m.keys...)
}

func (m *RawKeyValueMap) Get(key string) (RawValue, bool) {
	if m == nil {
		return RawValue{}, false
	}
	value, ok := m.values[key]
	return value, ok
}

// String returns the scalar value under key. It reports false for missing
// keys, pairs without '=' and nested records.
func (m *RawKeyValueMap) String(key string) (string, bool) {
	value, ok := m.Get(key)
	if !ok || !value.Present || value.IsNested() {
		return "", false
	}
	return value.Scalar, true
}

// Map returns the nested record under key.
func (m *RawKeyValueMap) Map(key string) (*RawKeyValueMap, bool) {
	value, ok := m.Get(key)
	if !ok || !value.IsNested() {
		return nil, false
	}
	return value.Nested, true
}

// Flatten renders the map as plain strings, nested records as sub-maps.
func (m *RawKeyValueMap) Flatten() map[string]any {
	out := make(map[string]any, m.Len())
	if m == nil {
		return out
	}
	for _, key := range m.keys {
		value := m.values[key]
		switch {
		case value.IsNested():
			out[key] = value.Nested.Flatten()
		case value.Present:
			out[key] = value.Scalar
		default:
			out[key] = nil
		}
	}
	return out
}

type rawPair struct {
	key     string
	value   string
	present bool
}

// Decode parses a "k=v,k=v" response body. It never fails: pairs without
// '=' map to an absent value and duplicate keys resolve last-write-wins.
func Decode(body string, mode DecodeMode) *RawKeyValueMap {
	out := newRawKeyValueMap()
	for _, pair := range parseList(body) {
		if mode == NestedDecode && pair.present {
			out.set(pair.key, decodeNestedValue(pair.value))
			continue
		}
		out.set(pair.key, RawValue{Scalar: pair.value, Present: pair.present})
	}
	return out
}

func decodeNestedValue(raw string) RawValue {
	decoded := percentDecode(raw)
	pairs := parseList(decoded)
	if !isNestedRecord(len(pairs)) {
		return RawValue{Scalar: raw, Present: true}
	}
	nested := newRawKeyValueMap()
	for _, pair := range pairs {
		nested.set(pair.key, RawValue{Scalar: pair.value, Present: pair.present})
	}
	return RawValue{Nested: nested, Present: true}
}

// isNestedRecord decides whether a decoded value is a record. A value with a
// single pair stays a scalar even if it contains '='.
func isNestedRecord(pairs int) bool {
	return pairs >= 2
}

// parseList implements list := pair (',' pair)*. An empty input has no pairs.
func parseList(input string) []rawPair {
	if input == "" {
		return nil
	}
	parts := strings.Split(input, ",")
	pairs := make([]rawPair, 0, len(parts))
	for _, part := range parts {
		pairs = append(pairs, parsePair(part))
	}
	return pairs
}

// parsePair implements pair := key '=' value, splitting on the first '='.
func parsePair(input string) rawPair {
	key, value, found := strings.Cut(input, "=")
	return rawPair{key: key, value: value, present: found}
}

// percentDecode undoes percent-encoding without treating '+' as a space.
// Malformed escapes and escapes that decode to invalid UTF-8 leave the
// input unchanged.
func percentDecode(input string) string {
	decoded, err := url.PathUnescape(input)
	if err != nil || !utf8.ValidString(decoded) {
		return input
	}
	return decoded
}
