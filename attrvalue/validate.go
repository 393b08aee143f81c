package attrvalue

import (
	"log/slog"
	"slices"
	"strconv"
	"sync/atomic"
)

// Validator repairs top-level N attributes whose text does not parse to a
// finite number by re-tagging them as S. Nested L and M values are left
// untouched.
//
// A Validator is safe for concurrent use.
type Validator struct {
	// Logger receives one warning per repaired attribute (nil: slog.Default()).
	Logger *slog.Logger

	repaired atomic.Int64
}

// Validate returns rec with malformed top-level numbers re-tagged. The
// input slice is not modified; a copy is made on the first repair. Extra
// attrs are appended to each warning.
func (v *Validator) Validate(rec Record, attrs ...any) Record {
	var out []Field
	for i, f := range rec.Item {
		if f.Value.tag != TagN || parsesFinite(f.Value.text) {
			continue
		}
		if out == nil {
			out = slices.Clone(rec.Item)
		}
		out[i].Value = String(f.Value.text)
		v.repaired.Add(1)
		v.logger().Warn("non-numeric value found",
			append([]any{"field", f.Name, "value", f.Value.text}, attrs...)...)
	}
	if out != nil {
		rec.Item = out
	}
	return rec
}

// Repaired returns how many attributes this validator has re-tagged.
func (v *Validator) Repaired() int64 { return v.repaired.Load() }

func (v *Validator) logger() *slog.Logger {
	if v.Logger != nil {
		return v.Logger
	}
	return slog.Default()
}

// Validate runs a one-off Validator that logs to slog.Default().
func Validate(rec Record) Record {
	var v Validator
	return v.Validate(rec)
}

// parsesFinite is strict: the whole text must be a float literal.
func parsesFinite(s string) bool {
	f, err := strconv.ParseFloat(s, 64)
	return err == nil && isFinite(f)
}
