package attrvalue

import (
	"encoding/json"
	"fmt"
	"math"
	"reflect"
	"sort"
	"strconv"
	"time"

	"go.mongodb.org/mongo-driver/v2/bson"
)

// Kind is the semantic category a source value falls into. Classification
// follows a fixed priority: number, text, boolean, timestamp, sequence,
// null, mapping, and finally opaque.
type Kind uint8

const (
	KindOpaque Kind = iota
	KindNumber
	KindText
	KindBoolean
	KindTimestamp
	KindSequence
	KindNull
	KindMapping
)

func (k Kind) String() string {
	switch k {
	case KindNumber:
		return "number"
	case KindText:
		return "text"
	case KindBoolean:
		return "boolean"
	case KindTimestamp:
		return "timestamp"
	case KindSequence:
		return "sequence"
	case KindNull:
		return "null"
	case KindMapping:
		return "mapping"
	default:
		return "opaque"
	}
}

// TimestampLayout renders timestamps as ISO-8601 UTC with milliseconds.
// Years outside 0000-9999 use the expanded form with a sign and six year
// digits, see FormatTimestamp.
const TimestampLayout = "2006-01-02T15:04:05.000Z"

// Text forms used for non-finite numbers.
const (
	NaNText         = "NaN"
	PosInfinityText = "Infinity"
	NegInfinityText = "-Infinity"
)

var timeType = reflect.TypeOf(time.Time{})

// KindOf classifies v.
func KindOf(v any) Kind {
	switch v.(type) {
	case nil:
		return KindNull
	case float64, float32, int, int8, int16, int32, int64,
		uint, uint8, uint16, uint32, uint64, bson.Decimal128, json.Number:
		return KindNumber
	case string:
		return KindText
	case bool:
		return KindBoolean
	case time.Time, bson.DateTime, bson.Timestamp:
		return KindTimestamp
	case bson.A, []any:
		return KindSequence
	case bson.Null, bson.Undefined:
		return KindNull
	case bson.D, bson.Raw:
		return KindMapping
	case bson.M, map[string]any:
		if reflect.ValueOf(v).IsNil() {
			return KindNull
		}
		return KindMapping
	case []byte, bson.ObjectID, bson.Binary, bson.Regex, bson.DBPointer,
		bson.CodeWithScope, bson.MinKey, bson.MaxKey:
		return KindOpaque
	}

	rv := reflect.ValueOf(v)
	switch rv.Kind() {
	case reflect.Int, reflect.Int8, reflect.Int16, reflect.Int32, reflect.Int64,
		reflect.Uint, reflect.Uint8, reflect.Uint16, reflect.Uint32, reflect.Uint64,
		reflect.Float32, reflect.Float64:
		return KindNumber
	case reflect.String:
		return KindText
	case reflect.Bool:
		return KindBoolean
	case reflect.Slice, reflect.Array:
		if rv.Type().Elem().Kind() == reflect.Uint8 {
			return KindOpaque
		}
		return KindSequence
	case reflect.Pointer, reflect.Interface:
		if rv.IsNil() {
			return KindNull
		}
		return KindOf(rv.Elem().Interface())
	case reflect.Map:
		if rv.IsNil() {
			return KindNull
		}
		if rv.Type().Key().Kind() == reflect.String {
			return KindMapping
		}
	case reflect.Struct:
		if rv.Type().ConvertibleTo(timeType) {
			return KindTimestamp
		}
		return KindMapping
	}
	return KindOpaque
}

// Encode converts a source value into its tagged form. It never fails:
// values that fit no other kind are stored as their JSON text under S.
func Encode(v any) Value {
	if rv := reflect.ValueOf(v); rv.Kind() == reflect.Pointer && !rv.IsNil() {
		return Encode(rv.Elem().Interface())
	}
	switch KindOf(v) {
	case KindNumber:
		return encodeNumber(v)
	case KindText:
		return String(textOf(v))
	case KindBoolean:
		return Bool(boolOf(v))
	case KindTimestamp:
		return String(timestampText(v))
	case KindSequence:
		return encodeSequence(v)
	case KindNull:
		return Null()
	case KindMapping:
		if fields, ok := encodeMapping(v); ok {
			return Map(fields...)
		}
	}
	return encodeOpaque(v)
}

// FormatFloat returns the shortest decimal text that parses back to f.
// Plain notation is used for magnitudes in [1e-6, 1e21), exponent form
// otherwise. Non-finite values use NaN, Infinity and -Infinity.
func FormatFloat(f float64, bits int) string {
	switch {
	case math.IsNaN(f):
		return NaNText
	case math.IsInf(f, 1):
		return PosInfinityText
	case math.IsInf(f, -1):
		return NegInfinityText
	case f == 0:
		return "0"
	}

	abs := math.Abs(f)
	format := byte('f')
	if bits == 32 {
		if float32(abs) < 1e-6 || float32(abs) >= 1e21 {
			format = 'e'
		}
	} else if abs < 1e-6 || abs >= 1e21 {
		format = 'e'
	}

	s := strconv.FormatFloat(f, format, -1, bits)
	if format == 'e' {
		// 1e-07 -> 1e-7
		n := len(s)
		if n >= 4 && s[n-4] == 'e' && s[n-3] == '-' && s[n-2] == '0' {
			s = s[:n-2] + s[n-1:]
		}
	}
	return s
}

func isFinite(f float64) bool { return !math.IsNaN(f) && !math.IsInf(f, 0) }

func encodeNumber(v any) Value {
	switch x := v.(type) {
	case float64:
		return floatValue(x, 64)
	case float32:
		return floatValue(float64(x), 32)
	case int:
		return Number(strconv.FormatInt(int64(x), 10))
	case int8:
		return Number(strconv.FormatInt(int64(x), 10))
	case int16:
		return Number(strconv.FormatInt(int64(x), 10))
	case int32:
		return Number(strconv.FormatInt(int64(x), 10))
	case int64:
		return Number(strconv.FormatInt(x, 10))
	case uint:
		return Number(strconv.FormatUint(uint64(x), 10))
	case uint8:
		return Number(strconv.FormatUint(uint64(x), 10))
	case uint16:
		return Number(strconv.FormatUint(uint64(x), 10))
	case uint32:
		return Number(strconv.FormatUint(uint64(x), 10))
	case uint64:
		return Number(strconv.FormatUint(x, 10))
	case bson.Decimal128:
		switch {
		case x.IsNaN():
			return String(NaNText)
		case x.IsInf() > 0:
			return String(PosInfinityText)
		case x.IsInf() < 0:
			return String(NegInfinityText)
		}
		// Finite decimals beyond the float64 range keep their text as S.
		if s := x.String(); parsesFinite(s) {
			return Number(s)
		}
		return String(x.String())
	case json.Number:
		// Taken verbatim: the runtime type says number even when the
		// text does not parse.
		return Number(x.String())
	}

	rv := reflect.ValueOf(v)
	switch rv.Kind() {
	case reflect.Int, reflect.Int8, reflect.Int16, reflect.Int32, reflect.Int64:
		return Number(strconv.FormatInt(rv.Int(), 10))
	case reflect.Uint, reflect.Uint8, reflect.Uint16, reflect.Uint32, reflect.Uint64:
		return Number(strconv.FormatUint(rv.Uint(), 10))
	case reflect.Float32:
		return floatValue(rv.Float(), 32)
	default:
		return floatValue(rv.Float(), 64)
	}
}

func floatValue(f float64, bits int) Value {
	text := FormatFloat(f, bits)
	if !isFinite(f) {
		return String(text)
	}
	return Number(text)
}

func textOf(v any) string {
	if s, ok := v.(string); ok {
		return s
	}
	return reflect.ValueOf(v).String()
}

func boolOf(v any) bool {
	if b, ok := v.(bool); ok {
		return b
	}
	return reflect.ValueOf(v).Bool()
}

func timestampText(v any) string {
	var t time.Time
	switch x := v.(type) {
	case time.Time:
		t = x
	case bson.DateTime:
		t = x.Time()
	case bson.Timestamp:
		t = time.Unix(int64(x.T), 0)
	default:
		t = reflect.ValueOf(v).Convert(timeType).Interface().(time.Time)
	}
	return FormatTimestamp(t)
}

// FormatTimestamp renders t in UTC using TimestampLayout, switching to the
// expanded year form (+010000-01-01T00:00:00.000Z) when the year has more
// than four digits or is negative.
func FormatTimestamp(t time.Time) string {
	t = t.UTC()
	year := t.Year()
	if year >= 0 && year <= 9999 {
		return t.Format(TimestampLayout)
	}
	sign := byte('+')
	if year < 0 {
		sign = '-'
		year = -year
	}
	return fmt.Sprintf("%c%06d", sign, year) + t.Format(TimestampLayout[4:])
}

func encodeSequence(v any) Value {
	switch x := v.(type) {
	case bson.A:
		return encodeItems([]any(x))
	case []any:
		return encodeItems(x)
	}

	rv := reflect.ValueOf(v)
	items := make([]Value, rv.Len())
	for i := range items {
		items[i] = Encode(rv.Index(i).Interface())
	}
	return List(items...)
}

func encodeItems(in []any) Value {
	items := make([]Value, len(in))
	for i, item := range in {
		items[i] = Encode(item)
	}
	return List(items...)
}

// encodeMapping returns false when v cannot be walked as a keyed
// structure, in which case the caller falls back to the opaque form.
func encodeMapping(v any) ([]Field, bool) {
	switch x := v.(type) {
	case bson.D:
		return encodeDocument(x, ""), true
	case bson.M:
		return encodeStringMap(x), true
	case map[string]any:
		return encodeStringMap(x), true
	case bson.Raw:
		var d bson.D
		if err := bson.Unmarshal(x, &d); err != nil {
			return nil, false
		}
		return encodeDocument(d, ""), true
	}

	rv := reflect.ValueOf(v)
	switch rv.Kind() {
	case reflect.Map:
		keys := rv.MapKeys()
		sort.Slice(keys, func(i, j int) bool { return keys[i].String() < keys[j].String() })
		fields := make([]Field, 0, len(keys))
		for _, k := range keys {
			fields = append(fields, Field{Name: k.String(), Value: Encode(rv.MapIndex(k).Interface())})
		}
		return fields, true
	case reflect.Struct:
		// Structs are walked through their BSON form so field names follow
		// the same tags the driver would use.
		raw, err := bson.Marshal(v)
		if err != nil {
			return nil, false
		}
		return encodeMapping(bson.Raw(raw))
	}
	return nil, false
}

// encodeStringMap sorts keys since Go maps carry no order.
func encodeStringMap(m map[string]any) []Field {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	fields := make([]Field, 0, len(keys))
	for _, k := range keys {
		fields = append(fields, Field{Name: k, Value: Encode(m[k])})
	}
	return fields
}

// encodeDocument walks an ordered document, skipping the skip key when it
// is non-empty.
func encodeDocument(d bson.D, skip string) []Field {
	set := newFieldSet(len(d))
	for _, e := range d {
		if skip != "" && e.Key == skip {
			continue
		}
		set.set(e.Key, Encode(e.Value))
	}
	return set.fields
}

func encodeOpaque(v any) Value {
	b, err := json.Marshal(v)
	if err != nil {
		return String(fmt.Sprintf("%v", v))
	}
	return String(string(b))
}

// DefaultIdentifierField is the document identifier dropped from records.
const DefaultIdentifierField = "_id"

// EncodeRecord encodes a document into a Record, dropping its _id field.
func EncodeRecord(doc bson.D) Record {
	return EncodeRecordExcluding(doc, DefaultIdentifierField)
}

// EncodeRecordExcluding encodes doc, dropping the top-level idField. Nested
// fields of the same name are kept.
func EncodeRecordExcluding(doc bson.D, idField string) Record {
	return Record{Item: encodeDocument(doc, idField)}
}
