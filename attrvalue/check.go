package attrvalue

import (
	"bufio"
	"encoding/json"
	"errors"
	"fmt"
	"io"
)

// ErrInvariant reports a record that could not have come out of
// EncodeRecord followed by Validate.
var ErrInvariant = errors.New("record invariant violated")

// CheckRecord verifies that every value carries exactly one known tag,
// that idField is absent from the item, and that top-level N attributes
// parse to finite numbers.
func CheckRecord(rec Record, idField string) error {
	for _, f := range rec.Item {
		if idField != "" && f.Name == idField {
			return fmt.Errorf("%w: identifier field %q present", ErrInvariant, idField)
		}
		if err := checkValue(f.Value); err != nil {
			return fmt.Errorf("%w: field %q: %v", ErrInvariant, f.Name, err)
		}
		if f.Value.tag == TagN && !parsesFinite(f.Value.text) {
			return fmt.Errorf("%w: field %q: N %q is not a finite number", ErrInvariant, f.Name, f.Value.text)
		}
	}
	return nil
}

func checkValue(v Value) error {
	switch v.tag {
	case TagN, TagS, TagBOOL, TagNULL:
		return nil
	case TagL:
		for i, item := range v.list {
			if err := checkValue(item); err != nil {
				return fmt.Errorf("[%d]: %w", i, err)
			}
		}
		return nil
	case TagM:
		for _, f := range v.fields {
			if err := checkValue(f.Value); err != nil {
				return fmt.Errorf("%s: %w", f.Name, err)
			}
		}
		return nil
	default:
		return ErrInvalidValue
	}
}

// LineError locates an invalid line in an NDJSON stream.
type LineError struct {
	Line int
	Err  error
}

func (e LineError) Error() string { return fmt.Sprintf("line %d: %v", e.Line, e.Err) }

func (e LineError) Unwrap() error { return e.Err }

// VerifyReport summarizes a scanned NDJSON stream.
type VerifyReport struct {
	Records int
	Invalid []LineError
}

func (r VerifyReport) OK() bool { return len(r.Invalid) == 0 }

// VerifyStream decodes every non-empty line of r as a Record and checks it
// with CheckRecord. Decoding or invariant failures are collected in the
// report; the returned error is reserved for read failures.
func VerifyStream(r io.Reader, idField string) (VerifyReport, error) {
	var report VerifyReport
	br := bufio.NewReader(r)
	line := 0
	for {
		b, err := br.ReadBytes('\n')
		if len(b) > 0 {
			line++
			if trimmed := trimLine(b); len(trimmed) > 0 {
				var rec Record
				if derr := json.Unmarshal(trimmed, &rec); derr != nil {
					report.Invalid = append(report.Invalid, LineError{Line: line, Err: derr})
				} else if cerr := CheckRecord(rec, idField); cerr != nil {
					report.Invalid = append(report.Invalid, LineError{Line: line, Err: cerr})
				} else {
					report.Records++
				}
			}
		}
		if errors.Is(err, io.EOF) {
			return report, nil
		}
		if err != nil {
			return report, fmt.Errorf("read line %d: %w", line+1, err)
		}
	}
}

func trimLine(b []byte) []byte {
	for len(b) > 0 && (b[len(b)-1] == '\n' || b[len(b)-1] == '\r') {
		b = b[:len(b)-1]
	}
	return b
}
