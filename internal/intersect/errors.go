package intersect

import "errors"

// Kind classifies an extraction failure.
type Kind string

// Error makes a Kind usable as an errors.Is target.
func (k Kind) Error() string { return string(k) }

const (
	// KindInputShape means the region input is not exactly one polygon.
	KindInputShape Kind = "input_shape"
	// KindGeometryLoad means a geometry file was unreadable, malformed or had no CRS.
	KindGeometryLoad Kind = "geometry_load"
	// KindComputation means reprojection or pairwise testing failed.
	KindComputation Kind = "computation"
)

// Sentinels for errors.Is.
var (
	ErrInputShape   error = KindInputShape
	ErrGeometryLoad error = KindGeometryLoad
	ErrComputation  error = KindComputation
)

// ExtractError carries the Kind of an extraction failure.
type ExtractError struct {
	Kind Kind
	Err  error
}

func (e *ExtractError) Error() string {
	return e.Err.Error()
}

func (e *ExtractError) Unwrap() error {
	return e.Err
}

// Is matches the sentinel for the error's kind.
func (e *ExtractError) Is(target error) bool {
	k, ok := target.(Kind)
	return ok && k == e.Kind
}

func newError(kind Kind, err error) *ExtractError {
	return &ExtractError{Kind: kind, Err: err}
}

// KindOf returns the Kind of the first ExtractError in err's chain, or "".
func KindOf(err error) Kind {
	var ee *ExtractError
	if errors.As(err, &ee) {
		return ee.Kind
	}
	return ""
}
