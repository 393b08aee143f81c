package attrvalue

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"io"
)

// jsonWriter serializes values without HTML escaping so string payloads
// are written the way a JSON.stringify would write them.
type jsonWriter struct {
	buf bytes.Buffer
	enc *json.Encoder
}

func newJSONWriter() *jsonWriter {
	w := &jsonWriter{}
	w.enc = json.NewEncoder(&w.buf)
	w.enc.SetEscapeHTML(false)
	return w
}

func (w *jsonWriter) string(s string) error {
	if err := w.enc.Encode(s); err != nil {
		return err
	}
	// Encode terminates every value with '\n'.
	w.buf.Truncate(w.buf.Len() - 1)
	return nil
}

func (w *jsonWriter) value(v Value) error {
	w.buf.WriteByte('{')
	switch v.tag {
	case TagN, TagS:
		if err := w.string(v.tag.String()); err != nil {
			return err
		}
		w.buf.WriteByte(':')
		if err := w.string(v.text); err != nil {
			return err
		}
	case TagBOOL:
		w.buf.WriteString(`"BOOL":`)
		if v.b {
			w.buf.WriteString("true")
		} else {
			w.buf.WriteString("false")
		}
	case TagNULL:
		w.buf.WriteString(`"NULL":true`)
	case TagL:
		w.buf.WriteString(`"L":[`)
		for i, item := range v.list {
			if i > 0 {
				w.buf.WriteByte(',')
			}
			if err := w.value(item); err != nil {
				return err
			}
		}
		w.buf.WriteByte(']')
	case TagM:
		w.buf.WriteString(`"M":`)
		if err := w.fields(v.fields); err != nil {
			return err
		}
	default:
		return fmt.Errorf("%w: tag %s", ErrInvalidValue, v.tag)
	}
	w.buf.WriteByte('}')
	return nil
}

func (w *jsonWriter) fields(fields []Field) error {
	w.buf.WriteByte('{')
	for i, f := range fields {
		if i > 0 {
			w.buf.WriteByte(',')
		}
		if err := w.string(f.Name); err != nil {
			return err
		}
		w.buf.WriteByte(':')
		if err := w.value(f.Value); err != nil {
			return fmt.Errorf("field %q: %w", f.Name, err)
		}
	}
	w.buf.WriteByte('}')
	return nil
}

// MarshalJSON writes the single-key wire form, e.g. {"N":"30"}.
func (v Value) MarshalJSON() ([]byte, error) {
	w := newJSONWriter()
	if err := w.value(v); err != nil {
		return nil, err
	}
	return w.buf.Bytes(), nil
}

// MarshalJSON writes {"Item":{...}} keeping field order.
func (r Record) MarshalJSON() ([]byte, error) {
	w := newJSONWriter()
	w.buf.WriteString(`{"Item":`)
	if err := w.fields(r.Item); err != nil {
		return nil, err
	}
	w.buf.WriteByte('}')
	return w.buf.Bytes(), nil
}

// UnmarshalJSON decodes the wire form. Values with zero or several tags,
// or with an unknown tag, are rejected.
func (v *Value) UnmarshalJSON(data []byte) error {
	dec := json.NewDecoder(bytes.NewReader(data))
	out, err := decodeValue(dec)
	if err != nil {
		return err
	}
	if err := expectEOF(dec); err != nil {
		return err
	}
	*v = out
	return nil
}

func (r *Record) UnmarshalJSON(data []byte) error {
	dec := json.NewDecoder(bytes.NewReader(data))
	if err := expectDelim(dec, '{'); err != nil {
		return err
	}
	var (
		item []Field
		seen bool
	)
	for dec.More() {
		key, err := decodeKey(dec)
		if err != nil {
			return err
		}
		if key != ItemKey {
			return fmt.Errorf("%w: unexpected record key %q", ErrInvalidValue, key)
		}
		if seen {
			return fmt.Errorf("%w: duplicate %q key", ErrInvalidValue, ItemKey)
		}
		seen = true
		if item, err = decodeFields(dec); err != nil {
			return err
		}
	}
	if err := expectDelim(dec, '}'); err != nil {
		return err
	}
	if !seen {
		return fmt.Errorf("%w: missing %q key", ErrInvalidValue, ItemKey)
	}
	if err := expectEOF(dec); err != nil {
		return err
	}
	r.Item = item
	return nil
}

func decodeValue(dec *json.Decoder) (Value, error) {
	if err := expectDelim(dec, '{'); err != nil {
		return Value{}, err
	}
	if !dec.More() {
		return Value{}, fmt.Errorf("%w: no tag", ErrInvalidValue)
	}
	name, err := decodeKey(dec)
	if err != nil {
		return Value{}, err
	}
	tag, ok := parseTag(name)
	if !ok {
		return Value{}, fmt.Errorf("%w: unknown tag %q", ErrInvalidValue, name)
	}

	var out Value
	switch tag {
	case TagN, TagS:
		var s string
		if err := dec.Decode(&s); err != nil {
			return Value{}, fmt.Errorf("%w: %s payload: %v", ErrInvalidValue, tag, err)
		}
		out = Value{tag: tag, text: s}
	case TagBOOL:
		var b bool
		if err := dec.Decode(&b); err != nil {
			return Value{}, fmt.Errorf("%w: BOOL payload: %v", ErrInvalidValue, err)
		}
		out = Bool(b)
	case TagNULL:
		var b bool
		if err := dec.Decode(&b); err != nil || !b {
			return Value{}, fmt.Errorf("%w: NULL payload must be true", ErrInvalidValue)
		}
		out = Null()
	case TagL:
		if err := expectDelim(dec, '['); err != nil {
			return Value{}, err
		}
		items := []Value{}
		for dec.More() {
			item, err := decodeValue(dec)
			if err != nil {
				return Value{}, err
			}
			items = append(items, item)
		}
		if err := expectDelim(dec, ']'); err != nil {
			return Value{}, err
		}
		out = List(items...)
	case TagM:
		fields, err := decodeFields(dec)
		if err != nil {
			return Value{}, err
		}
		out = Map(fields...)
	}

	if dec.More() {
		return Value{}, fmt.Errorf("%w: more than one tag", ErrInvalidValue)
	}
	if err := expectDelim(dec, '}'); err != nil {
		return Value{}, err
	}
	return out, nil
}

func decodeFields(dec *json.Decoder) ([]Field, error) {
	if err := expectDelim(dec, '{'); err != nil {
		return nil, err
	}
	fields := []Field{}
	seen := make(map[string]struct{})
	for dec.More() {
		name, err := decodeKey(dec)
		if err != nil {
			return nil, err
		}
		if _, dup := seen[name]; dup {
			return nil, fmt.Errorf("%w: duplicate field %q", ErrInvalidValue, name)
		}
		seen[name] = struct{}{}
		v, err := decodeValue(dec)
		if err != nil {
			return nil, fmt.Errorf("field %q: %w", name, err)
		}
		fields = append(fields, Field{Name: name, Value: v})
	}
	if err := expectDelim(dec, '}'); err != nil {
		return nil, err
	}
	return fields, nil
}

func decodeKey(dec *json.Decoder) (string, error) {
	tok, err := dec.Token()
	if err != nil {
		return "", err
	}
	s, ok := tok.(string)
	if !ok {
		return "", fmt.Errorf("%w: expected object key, got %v", ErrInvalidValue, tok)
	}
	return s, nil
}

func expectDelim(dec *json.Decoder, want json.Delim) error {
	tok, err := dec.Token()
	if err != nil {
		return err
	}
	if d, ok := tok.(json.Delim); !ok || d != want {
		return fmt.Errorf("%w: expected %q, got %v", ErrInvalidValue, want, tok)
	}
	return nil
}

func expectEOF(dec *json.Decoder) error {
	if _, err := dec.Token(); !errors.Is(err, io.EOF) {
		return fmt.Errorf("%w: trailing data", ErrInvalidValue)
	}
	return nil
}
