package grid

import (
	"errors"
	"fmt"
)

// ShapeError reports a grid that is not a non-empty rectangle.
// It is fatal at construction: no engine may be built on such a grid.
type ShapeError struct {
	Reason string
	Row    int // offending row, or NoRow when the grid has none
}

// NoRow is the ShapeError.Row of an error that concerns the whole grid.
const NoRow = -1

func (e *ShapeError) Error() string {
	if e.Row == NoRow {
		return "invalid grid shape: " + e.Reason
	}
	return fmt.Sprintf("invalid grid shape: row %d: %s", e.Row, e.Reason)
}

// IsShapeError reports whether err is (or wraps) a *ShapeError.
func IsShapeError(err error) bool {
	var se *ShapeError
	return errors.As(err, &se)
}
