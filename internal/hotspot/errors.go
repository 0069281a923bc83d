package hotspot

import "errors"

// User-facing failures. The triggering operation is aborted and the document
// is left unmutated.
var (
	ErrNoFrameSelected     = errors.New("no frame selected")
	ErrDuplicateName       = errors.New("hotspot with the same name already exists")
	ErrMalformedAnnotation = errors.New("malformed hotspot annotation")
	ErrAmbiguousSelection  = errors.New("select a single hotspot")
	ErrEmptyName           = errors.New("hotspot name is empty")
)
