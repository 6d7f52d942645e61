package index

import "errors"

// ErrUniquenessViolation is returned by Update when a Unique index's
// key-expression collides with an existing entry for a different id while
// the index is Readable. A WriteOnly index records the same violation but
// lets the write proceed (§4.F; see DESIGN.md Open Question resolutions).
var ErrUniquenessViolation = errors.New("index: uniqueness violation")
