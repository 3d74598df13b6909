package vtshaver

import "errors"

// Error kinds. Every error returned by this package wraps exactly one of
// these, so callers can classify failures with errors.Is.
var (
	// ErrConfiguration is returned while building a FilterTable from
	// malformed input.
	ErrConfiguration = errors.New("invalid filter configuration")

	// ErrRequestValidation is returned for malformed shave options, before
	// any work is started.
	ErrRequestValidation = errors.New("invalid shave request")

	// ErrFilterExpression is returned when a layer's filter cannot be
	// parsed.
	ErrFilterExpression = errors.New("invalid filter expression")

	// ErrTileDecode is returned when the input tile cannot be decoded.
	ErrTileDecode = errors.New("unable to decode tile")

	// ErrCodec is returned when compressing or decompressing tile data
	// fails.
	ErrCodec = errors.New("compression codec failure")
)
