package geography

import (
	"errors"
	"fmt"
)

var (
	// ErrEnvironment marks a precondition of the running process, not of the
	// data. It is never retried and aborts a whole batch run.
	ErrEnvironment = errors.New("environment precondition failed")

	ErrUnsupportedLevel  = errors.New("unsupported geography level")
	ErrClassification    = errors.New("not a trust or reservation")
	ErrCollisionOverflow = errors.New("more than two rows share one geoid")
	ErrNameMismatch      = errors.New("names differ across trust and reservation land")
	ErrTypeCoercion      = errors.New("value is not numeric")
	ErrDuplicateGeoID    = errors.New("geoid appears more than once")
	ErrGeometry          = errors.New("unsupported geometry")
)

// RowError attaches row context to one of the sentinel errors above.
type RowError struct {
	GeoID  string
	Column string
	Value  any
	Err    error
}

func (e *RowError) Error() string {
	switch {
	case e.GeoID != "" && e.Column != "":
		return fmt.Sprintf("geoid %s: column %s=%v: %v", e.GeoID, e.Column, e.Value, e.Err)
	case e.GeoID != "":
		return fmt.Sprintf("geoid %s: %v", e.GeoID, e.Err)
	case e.Column != "":
		return fmt.Sprintf("column %s=%v: %v", e.Column, e.Value, e.Err)
	}
	return e.Err.Error()
}

func (e *RowError) Unwrap() error { return e.Err }

// IsFatal reports whether err should stop a batch run instead of only the
// current layer.
func IsFatal(err error) bool {
	return errors.Is(err, ErrEnvironment)
}
