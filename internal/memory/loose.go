package memory

import (
	"bytes"
	"encoding/json"
	"errors"
	"math"
	"sort"
	"strconv"
	"strings"
)

// fields is a decoded JSON object whose values are still raw. Known keys are
// taken out one by one; whatever remains is carried along as extra data so a
// load/save round trip never drops keys written by newer tools.
type fields map[string]json.RawMessage

func decodeObject(data []byte) (fields, bool) {
	var f fields
	if err := json.Unmarshal(data, &f); err != nil || f == nil {
		return nil, false
	}
	return f, true
}

// take removes key and reports whether it was present.
func (f fields) take(key string) (json.RawMessage, bool) {
	raw, ok := f[key]
	if ok {
		delete(f, key)
	}
	return raw, ok
}

func (f fields) rest() map[string]json.RawMessage {
	if len(f) == 0 {
		return nil
	}
	return map[string]json.RawMessage(f)
}

func isNull(raw json.RawMessage) bool {
	return len(bytes.TrimSpace(raw)) == 0 || string(bytes.TrimSpace(raw)) == "null"
}

func decodeScalar(raw json.RawMessage) (any, bool) {
	dec := json.NewDecoder(bytes.NewReader(raw))
	dec.UseNumber()
	var v any
	if err := dec.Decode(&v); err != nil {
		return nil, false
	}
	return v, true
}

// strictString returns the value only when raw is a JSON string.
func strictString(raw json.RawMessage) (string, bool) {
	if isNull(raw) {
		return "", false
	}
	var s string
	if err := json.Unmarshal(raw, &s); err != nil {
		return "", false
	}
	return s, true
}

// looseString renders any non-null JSON value as text: strings as-is,
// numbers by their literal, booleans as true/false, containers compacted.
func looseString(raw json.RawMessage) (string, bool) {
	if isNull(raw) {
		return "", false
	}
	v, ok := decodeScalar(raw)
	if !ok {
		return "", false
	}
	switch t := v.(type) {
	case string:
		return t, true
	case json.Number:
		return t.String(), true
	case bool:
		return strconv.FormatBool(t), true
	default:
		var buf bytes.Buffer
		if err := json.Compact(&buf, raw); err != nil {
			return "", false
		}
		return buf.String(), true
	}
}

// strictInt accepts only integer JSON numbers.
func strictInt(raw json.RawMessage) (int, bool) {
	v, ok := decodeScalar(raw)
	if !ok {
		return 0, false
	}
	n, isNum := v.(json.Number)
	if !isNum {
		return 0, false
	}
	i, err := strconv.ParseInt(n.String(), 10, 0)
	if err != nil {
		return 0, false
	}
	return int(i), true
}

// looseInt accepts integer or fractional numbers (truncated), numeric
// strings and booleans. Null, empty strings and false yield zero.
func looseInt(raw json.RawMessage) (int, bool) {
	if isNull(raw) {
		return 0, true
	}
	v, ok := decodeScalar(raw)
	if !ok {
		return 0, false
	}
	switch t := v.(type) {
	case json.Number:
		if i, err := strconv.ParseInt(t.String(), 10, 0); err == nil {
			return int(i), true
		}
		f, err := t.Float64()
		if err != nil || math.IsNaN(f) || math.IsInf(f, 0) {
			return 0, false
		}
		return int(f), true
	case string:
		s := strings.TrimSpace(t)
		if s == "" {
			return 0, true
		}
		i, err := strconv.Atoi(s)
		if err != nil {
			return 0, false
		}
		return i, true
	case bool:
		if t {
			return 1, true
		}
		return 0, true
	default:
		return 0, false
	}
}

// looseFloat parses numbers, numeric strings and booleans. NaN is rejected.
func looseFloat(raw json.RawMessage) (float64, bool) {
	v, ok := decodeScalar(raw)
	if !ok {
		return 0, false
	}
	var f float64
	switch t := v.(type) {
	case json.Number:
		parsed, err := strconv.ParseFloat(t.String(), 64)
		if err != nil && !errors.Is(err, strconv.ErrRange) {
			return 0, false
		}
		f = parsed
	case string:
		parsed, err := strconv.ParseFloat(strings.TrimSpace(t), 64)
		if err != nil && !errors.Is(err, strconv.ErrRange) {
			return 0, false
		}
		f = parsed
	case bool:
		if t {
			f = 1
		}
	default:
		return 0, false
	}
	if math.IsNaN(f) {
		return 0, false
	}
	return f, true
}

// rawArray splits a JSON array into its elements.
func rawArray(raw json.RawMessage) ([]json.RawMessage, bool) {
	var items []json.RawMessage
	if err := json.Unmarshal(raw, &items); err != nil || items == nil {
		return nil, false
	}
	return items, true
}

// marshalJSON encodes v without HTML escaping and without the trailing
// newline json.Encoder appends.
func marshalJSON(v any) ([]byte, error) {
	var buf bytes.Buffer
	enc := json.NewEncoder(&buf)
	enc.SetEscapeHTML(false)
	if err := enc.Encode(v); err != nil {
		return nil, err
	}
	return bytes.TrimRight(buf.Bytes(), "\n"), nil
}

type member struct {
	key   string
	value any
}

// encodeObject writes members in order followed by extra keys sorted by name.
func encodeObject(members []member, extra map[string]json.RawMessage) ([]byte, error) {
	var buf bytes.Buffer
	buf.WriteByte('{')
	write := func(key string, value []byte) error {
		if buf.Len() > 1 {
			buf.WriteByte(',')
		}
		k, err := marshalJSON(key)
		if err != nil {
			return err
		}
		buf.Write(k)
		buf.WriteByte(':')
		buf.Write(value)
		return nil
	}
	for _, m := range members {
		v, err := marshalJSON(m.value)
		if err != nil {
			return nil, err
		}
		if err := write(m.key, v); err != nil {
			return nil, err
		}
	}
	keys := make([]string, 0, len(extra))
	for k := range extra {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	for _, k := range keys {
		if err := write(k, extra[k]); err != nil {
			return nil, err
		}
	}
	buf.WriteByte('}')
	return buf.Bytes(), nil
}
