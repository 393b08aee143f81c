// Package attrvalue converts document values into DynamoDB-style tagged
// attribute values ({"N":...}, {"S":...}, {"M":...}, ...) and repairs
// malformed numeric attributes.
package attrvalue

import (
	"errors"
	"fmt"
)

// Tag identifies which variant of a Value is populated.
type Tag uint8

const (
	TagInvalid Tag = iota
	TagN
	TagS
	TagBOOL
	TagNULL
	TagL
	TagM
)

var tagNames = [...]string{
	TagInvalid: "",
	TagN:       "N",
	TagS:       "S",
	TagBOOL:    "BOOL",
	TagNULL:    "NULL",
	TagL:       "L",
	TagM:       "M",
}

// String returns the wire name of the tag ("N", "S", ...).
func (t Tag) String() string {
	if int(t) < len(tagNames) && t != TagInvalid {
		return tagNames[t]
	}
	return fmt.Sprintf("Tag(%d)", uint8(t))
}

func parseTag(s string) (Tag, bool) {
	for t := TagN; t <= TagM; t++ {
		if tagNames[t] == s {
			return t, true
		}
	}
	return TagInvalid, false
}

// ErrInvalidValue is returned when a zero Value is serialized or a decoded
// value does not carry exactly one known tag.
var ErrInvalidValue = errors.New("invalid attribute value")

// Value is a DynamoDB-style tagged attribute value. Exactly one tag is
// populated; the zero Value is invalid.
type Value struct {
	tag    Tag
	text   string
	b      bool
	list   []Value
	fields []Field
}

// Field is a named entry of a Map value or of a Record item.
type Field struct {
	Name  string
	Value Value
}

func Number(text string) Value { return Value{tag: TagN, text: text} }

func String(s string) Value { return Value{tag: TagS, text: s} }

func Bool(b bool) Value { return Value{tag: TagBOOL, b: b} }

func Null() Value { return Value{tag: TagNULL} }

func List(items ...Value) Value {
	if items == nil {
		items = []Value{}
	}
	return Value{tag: TagL, list: items}
}

// Map builds an M value. Field order is kept as given.
func Map(fields ...Field) Value {
	if fields == nil {
		fields = []Field{}
	}
	return Value{tag: TagM, fields: fields}
}

func (v Value) Tag() Tag { return v.tag }

func (v Value) Valid() bool { return v.tag != TagInvalid }

// Text returns the payload of an N or S value.
func (v Value) Text() string { return v.text }

func (v Value) BoolValue() bool { return v.b }

func (v Value) Items() []Value { return v.list }

func (v Value) Fields() []Field { return v.fields }

// Get returns the value stored under name in an M value.
func (v Value) Get(name string) (Value, bool) {
	for _, f := range v.fields {
		if f.Name == name {
			return f.Value, true
		}
	}
	return Value{}, false
}

// Equal reports whether both values carry the same tag and payload,
// including field order for maps.
func (v Value) Equal(o Value) bool {
	if v.tag != o.tag {
		return false
	}
	switch v.tag {
	case TagN, TagS:
		return v.text == o.text
	case TagBOOL:
		return v.b == o.b
	case TagL:
		if len(v.list) != len(o.list) {
			return false
		}
		for i := range v.list {
			if !v.list[i].Equal(o.list[i]) {
				return false
			}
		}
		return true
	case TagM:
		return fieldsEqual(v.fields, o.fields)
	default:
		return true
	}
}

func (v Value) String() string {
	b, err := v.MarshalJSON()
	if err != nil {
		return "<invalid>"
	}
	return string(b)
}

func fieldsEqual(a, b []Field) bool {
	if len(a) != len(b) {
		return false
	}
	for i := range a {
		if a[i].Name != b[i].Name || !a[i].Value.Equal(b[i].Value) {
			return false
		}
	}
	return true
}

// ItemKey is the top-level key wrapping the attribute map of a Record.
const ItemKey = "Item"

// Record is one encoded document: {"Item": {...}}.
type Record struct {
	Item []Field
}

// Get returns the top-level attribute stored under name.
func (r Record) Get(name string) (Value, bool) {
	return Map(r.Item...).Get(name)
}

func (r Record) Equal(o Record) bool { return fieldsEqual(r.Item, o.Item) }

// fieldSet appends fields while keeping names unique. A repeated name
// replaces the earlier value in place, keeping its original position.
type fieldSet struct {
	fields []Field
	index  map[string]int
}

func newFieldSet(n int) *fieldSet {
	return &fieldSet{fields: make([]Field, 0, n)}
}

func (s *fieldSet) set(name string, v Value) {
	if s.index == nil {
		s.index = make(map[string]int, cap(s.fields))
	}
	if i, ok := s.index[name]; ok {
		s.fields[i].Value = v
		return
	}
	s.index[name] = len(s.fields)
	s.fields = append(s.fields, Field{Name: name, Value: v})
}
