package transcribe

import "errors"

// Category classifies a failed transcription request for the caller.
type Category string

const (
	CategoryBadRequest       Category = "bad_request"
	CategoryExtractionFailed Category = "extraction_failed"
	CategoryUpstreamFailed   Category = "upstream_failed"
	CategoryTimeout          Category = "timeout"
	CategoryInternal         Category = "internal"
)

// Error carries the caller-facing category and message alongside the wrapped
// cause. Message is safe to return to clients; Err is for logs only.
type Error struct {
	Category Category
	Message  string
	Err      error
}

func (e *Error) Error() string {
	if e.Err == nil {
		return e.Message
	}
	return e.Message + ": " + e.Err.Error()
}

func (e *Error) Unwrap() error {
	return e.Err
}

// CategoryOf returns the category of err, or CategoryInternal for anything
// that is not a *Error.
func CategoryOf(err error) Category {
	var terr *Error
	if errors.As(err, &terr) {
		return terr.Category
	}
	return CategoryInternal
}

// MessageOf returns the caller-safe message of err, or a generic one for
// unclassified failures.
func MessageOf(err error) string {
	var terr *Error
	if errors.As(err, &terr) {
		return terr.Message
	}
	return "internal error"
}
