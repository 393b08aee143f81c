package attrvalue

import (
	"encoding/json"
	"math"
	"strconv"
	"strings"
	"testing"
	"time"

	"github.com/google/go-cmp/cmp"
	"go.mongodb.org/mongo-driver/v2/bson"
)

func TestEncode_Scalars(t *testing.T) {
	type myInt int16
	type myString string

	tests := []struct {
		name string
		in   any
		want Value
	}{
		{"int32", int32(30), Number("30")},
		{"int64", int64(-9007199254740993), Number("-9007199254740993")},
		{"uint64", uint64(math.MaxUint64), Number("18446744073709551615")},
		{"float integral", float64(30), Number("30")},
		{"float fraction", 1.25, Number("1.25")},
		{"float tiny", 1e-7, Number("1e-7")},
		{"float huge", 1e21, Number("1e+21")},
		{"float32", float32(0.1), Number("0.1")},
		{"negative zero", math.Copysign(0, -1), Number("0")},
		{"named int", myInt(7), Number("7")},
		{"string", "Ann", String("Ann")},
		{"named string", myString("x"), String("x")},
		{"html is kept", "<a&b>", String("<a&b>")},
		{"true", true, Bool(true)},
		{"false", false, Bool(false)},
		{"nil", nil, Null()},
		{"bson null", bson.Null{}, Null()},
		{"bson undefined", bson.Undefined{}, Null()},
		{"nil pointer", (*int)(nil), Null()},
		{"nil map", map[string]any(nil), Null()},
		{"nil bson map", bson.M(nil), Null()},
		{"pointer", ptr(int64(5)), Number("5")},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			if diff := cmp.Diff(tc.want, Encode(tc.in)); diff != "" {
				t.Fatalf("Encode(%#v) mismatch (-want +got):\n%s", tc.in, diff)
			}
		})
	}
}

func TestEncode_NonFiniteNumbersBecomeStrings(t *testing.T) {
	tests := []struct {
		in   any
		want string
	}{
		{math.NaN(), "NaN"},
		{math.Inf(1), "Infinity"},
		{math.Inf(-1), "-Infinity"},
		{float32(math.Inf(1)), "Infinity"},
		{mustDecimal(t, "NaN"), "NaN"},
		{mustDecimal(t, "-Infinity"), "-Infinity"},
	}

	for _, tc := range tests {
		got := Encode(tc.in)
		if got.Tag() != TagS {
			t.Fatalf("Encode(%v) tag = %s; want S", tc.in, got.Tag())
		}
		if got.Text() != tc.want {
			t.Fatalf("Encode(%v) text = %q; want %q", tc.in, got.Text(), tc.want)
		}
	}
}

func TestFormatFloat_RoundTrips(t *testing.T) {
	for _, f := range []float64{
		0.1, 1.0 / 3, -2.5, 123456789.123, 1e-6, 9.999999e-7, 1e20, 1.7976931348623157e308,
		5e-324, 4503599627370497, -0.000123,
	} {
		s := FormatFloat(f, 64)
		back, err := strconv.ParseFloat(s, 64)
		if err != nil {
			t.Fatalf("FormatFloat(%v) = %q does not parse: %v", f, s, err)
		}
		if back != f {
			t.Fatalf("FormatFloat(%v) = %q parses back to %v", f, s, back)
		}
		if got := Encode(f); got.Tag() != TagN || got.Text() != s {
			t.Fatalf("Encode(%v) = %s; want N %q", f, got, s)
		}
	}
}

func TestEncode_Decimal128(t *testing.T) {
	got := Encode(mustDecimal(t, "12.50"))
	if got.Tag() != TagN || got.Text() != "12.50" {
		t.Fatalf("Encode(decimal) = %s", got)
	}
}

func TestEncode_Decimal128OutOfFloatRange(t *testing.T) {
	huge := mustDecimal(t, "1E+6000")

	if diff := cmp.Diff(String("1E+6000"), Encode(huge)); diff != "" {
		t.Fatalf("top level (-want +got):\n%s", diff)
	}

	nested := Encode(bson.D{
		{Key: "x", Value: huge},
		{Key: "l", Value: bson.A{huge, mustDecimal(t, "2.5")}},
	})
	want := Map(
		Field{Name: "x", Value: String("1E+6000")},
		Field{Name: "l", Value: List(String("1E+6000"), Number("2.5"))},
	)
	if diff := cmp.Diff(want, nested); diff != "" {
		t.Fatalf("nested (-want +got):\n%s", diff)
	}
}

func TestEncode_Timestamps(t *testing.T) {
	loc := time.FixedZone("UTC+2", 2*60*60)
	local := time.Date(2024, 3, 1, 12, 30, 15, 123456789, loc)

	tests := []struct {
		name string
		in   any
		want string
	}{
		{"time.Time in zone", local, "2024-03-01T10:30:15.123Z"},
		{"bson datetime", bson.NewDateTimeFromTime(local), "2024-03-01T10:30:15.123Z"},
		{"bson timestamp", bson.Timestamp{T: 1700000000, I: 3}, "2023-11-14T22:13:20.000Z"},
		{"pointer to time", &local, "2024-03-01T10:30:15.123Z"},
		{"year 9999", time.Date(9999, 12, 31, 23, 59, 59, 999e6, time.UTC), "9999-12-31T23:59:59.999Z"},
		{"year 10000", bson.NewDateTimeFromTime(time.Date(10000, 1, 1, 0, 0, 0, 0, time.UTC)), "+010000-01-01T00:00:00.000Z"},
		{"year 0", time.Date(0, 6, 1, 0, 0, 0, 0, time.UTC), "0000-06-01T00:00:00.000Z"},
		{"negative year", time.Date(-1, 1, 1, 0, 0, 0, 0, time.UTC), "-000001-01-01T00:00:00.000Z"},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			if diff := cmp.Diff(String(tc.want), Encode(tc.in)); diff != "" {
				t.Fatalf("mismatch (-want +got):\n%s", diff)
			}
		})
	}
}

func TestEncode_SequencesKeepOrder(t *testing.T) {
	want := List(String("a"), Number("2"), Null(), List(Bool(true)))

	for _, in := range []any{
		bson.A{"a", int32(2), nil, bson.A{true}},
		[]any{"a", 2, nil, []bool{true}},
	} {
		if diff := cmp.Diff(want, Encode(in)); diff != "" {
			t.Fatalf("Encode(%#v) mismatch (-want +got):\n%s", in, diff)
		}
	}

	if got := Encode([]string{}); got.Tag() != TagL || len(got.Items()) != 0 {
		t.Fatalf("empty slice = %s; want empty L", got)
	}
	if got := Encode([]int(nil)); got.Tag() != TagL {
		t.Fatalf("nil slice = %s; want L (sequence wins over null)", got)
	}
}

func TestEncode_Mappings(t *testing.T) {
	t.Run("bson.D keeps order", func(t *testing.T) {
		got := Encode(bson.D{{Key: "z", Value: 1}, {Key: "a", Value: "x"}})
		want := Map(Field{"z", Number("1")}, Field{"a", String("x")})
		if diff := cmp.Diff(want, got); diff != "" {
			t.Fatalf("mismatch (-want +got):\n%s", diff)
		}
	})

	t.Run("duplicate keys keep first position, last value", func(t *testing.T) {
		got := Encode(bson.D{{Key: "a", Value: 1}, {Key: "b", Value: 2}, {Key: "a", Value: 3}})
		want := Map(Field{"a", Number("3")}, Field{"b", Number("2")})
		if diff := cmp.Diff(want, got); diff != "" {
			t.Fatalf("mismatch (-want +got):\n%s", diff)
		}
	})

	t.Run("go maps are sorted", func(t *testing.T) {
		got := Encode(bson.M{"b": true, "a": nil, "c": bson.M{"d": "e"}})
		want := Map(
			Field{"a", Null()},
			Field{"b", Bool(true)},
			Field{"c", Map(Field{"d", String("e")})},
		)
		if diff := cmp.Diff(want, got); diff != "" {
			t.Fatalf("mismatch (-want +got):\n%s", diff)
		}
	})

	t.Run("nested _id is kept", func(t *testing.T) {
		got := Encode(bson.D{{Key: "_id", Value: "inner"}})
		if _, ok := got.Get("_id"); !ok {
			t.Fatalf("nested _id dropped: %s", got)
		}
	})

	t.Run("struct via bson tags", func(t *testing.T) {
		type address struct {
			City string `bson:"city"`
			Zip  int32  `bson:"zip"`
		}
		got := Encode(address{City: "Lisbon", Zip: 1000})
		want := Map(Field{"city", String("Lisbon")}, Field{"zip", Number("1000")})
		if diff := cmp.Diff(want, got); diff != "" {
			t.Fatalf("mismatch (-want +got):\n%s", diff)
		}
	})

	t.Run("raw document", func(t *testing.T) {
		raw, err := bson.Marshal(bson.D{{Key: "n", Value: int32(1)}})
		if err != nil {
			t.Fatalf("marshal: %v", err)
		}
		got := Encode(bson.Raw(raw))
		if diff := cmp.Diff(Map(Field{"n", Number("1")}), got); diff != "" {
			t.Fatalf("mismatch (-want +got):\n%s", diff)
		}
	})
}

func TestEncode_OpaqueFallback(t *testing.T) {
	oid := bson.NewObjectID()
	got := Encode(oid)
	if got.Tag() != TagS || !strings.Contains(got.Text(), oid.Hex()) {
		t.Fatalf("Encode(ObjectID) = %s; want S containing %s", got, oid.Hex())
	}

	if got := Encode([]byte("hi")); got.Tag() != TagS || got.Text() != `"aGk="` {
		t.Fatalf("Encode([]byte) = %s", got)
	}

	if got := Encode(func() {}); got.Tag() != TagS || got.Text() == "" {
		t.Fatalf("Encode(func) = %s; want non-empty S", got)
	}

	if got := Encode(map[int]string{1: "a"}); got.Tag() != TagS || got.Text() != `{"1":"a"}` {
		t.Fatalf("Encode(map[int]string) = %s", got)
	}
}

func TestKindOf_Priority(t *testing.T) {
	tests := []struct {
		in   any
		want Kind
	}{
		{3.5, KindNumber},
		{"s", KindText},
		{true, KindBoolean},
		{time.Now(), KindTimestamp},
		{bson.DateTime(0), KindTimestamp},
		{bson.A{}, KindSequence},
		{[]any(nil), KindSequence},
		{nil, KindNull},
		{bson.D{}, KindMapping},
		{map[string]int{}, KindMapping},
		{bson.M(nil), KindNull},
		{map[string]any(nil), KindNull},
		{map[string]int(nil), KindNull},
		{bson.NewObjectID(), KindOpaque},
		{make(chan int), KindOpaque},
	}
	for _, tc := range tests {
		if got := KindOf(tc.in); got != tc.want {
			t.Fatalf("KindOf(%T) = %s; want %s", tc.in, got, tc.want)
		}
	}
}

func TestEncodeRecord_Example(t *testing.T) {
	doc := bson.D{
		{Key: "_id", Value: "x1"},
		{Key: "name", Value: "Ann"},
		{Key: "age", Value: int32(30)},
		{Key: "active", Value: true},
		{Key: "tags", Value: bson.A{"a", "b"}},
		{Key: "meta", Value: nil},
	}

	b, err := json.Marshal(EncodeRecord(doc))
	if err != nil {
		t.Fatalf("marshal: %v", err)
	}

	want := `{"Item":{"name":{"S":"Ann"},"age":{"N":"30"},"active":{"BOOL":true},"tags":{"L":[{"S":"a"},{"S":"b"}]},"meta":{"NULL":true}}}`
	if string(b) != want {
		t.Fatalf("got  %s\nwant %s", b, want)
	}
}

func TestEncodeRecord_NaNField(t *testing.T) {
	rec := Validate(EncodeRecord(bson.D{{Key: "score", Value: math.NaN()}}))
	b, err := json.Marshal(rec)
	if err != nil {
		t.Fatalf("marshal: %v", err)
	}
	if want := `{"Item":{"score":{"S":"NaN"}}}`; string(b) != want {
		t.Fatalf("got %s; want %s", b, want)
	}
}

func TestEncodeRecordExcluding_CustomIdentifier(t *testing.T) {
	rec := EncodeRecordExcluding(bson.D{
		{Key: "_id", Value: 1},
		{Key: "pk", Value: 2},
	}, "pk")

	if _, ok := rec.Get("pk"); ok {
		t.Fatal("identifier field pk was emitted")
	}
	if _, ok := rec.Get("_id"); !ok {
		t.Fatal("_id should be kept when another identifier is configured")
	}
}

func ptr[T any](v T) *T { return &v }

func mustDecimal(t *testing.T, s string) bson.Decimal128 {
	t.Helper()
	d, err := bson.ParseDecimal128(s)
	if err != nil {
		t.Fatalf("ParseDecimal128(%q): %v", s, err)
	}
	return d
}

func BenchmarkEncodeRecord(b *testing.B) {
	doc := bson.D{
		{Key: "_id", Value: bson.NewObjectID()},
		{Key: "name", Value: "Ann"},
		{Key: "age", Value: int32(30)},
		{Key: "score", Value: 98.5},
		{Key: "created", Value: bson.NewDateTimeFromTime(time.Unix(1700000000, 0))},
		{Key: "tags", Value: bson.A{"a", "b", "c"}},
		{Key: "address", Value: bson.D{{Key: "city", Value: "Lisbon"}, {Key: "zip", Value: "1000"}}},
	}

	b.ReportAllocs()
	b.ResetTimer()
	for i := 0; i < b.N; i++ {
		_ = Validate(EncodeRecord(doc))
	}
}
