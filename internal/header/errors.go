package header

import "errors"

// ErrRowOutOfRange is returned for an index past the last row.
var ErrRowOutOfRange = errors.New("row index out of range")
