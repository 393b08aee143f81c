package exporter

import "errors"

// Error taxonomy. Run wraps every failure in one of these so callers can
// tell which stage of the pipeline gave up.
var (
	ErrSource    = errors.New("source error")
	ErrTransform = errors.New("transform error")
	ErrEncode    = errors.New("encode error")
	ErrSinkWrite = errors.New("sink write error")

	// ErrKeyConflict means two collections map to the same object key,
	// e.g. a_b.c and a.b_c both naming a_b_c.json.
	ErrKeyConflict = errors.New("object key conflict")
)
