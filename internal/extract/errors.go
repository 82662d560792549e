package extract

import "errors"

var (
	// ErrUnrecognizedLayout means no layout rule matched the document text.
	// Scanned PDFs with no text layer end up here too.
	ErrUnrecognizedLayout = errors.New("unrecognized document layout")
	// ErrMissingRequiredField means the layout matched but a mandatory
	// anchor (pratica, plate, PO number) was absent.
	ErrMissingRequiredField = errors.New("missing required field")
)
