package dataset

import "errors"

// ErrConfig is returned when the inputs of a build cannot produce a dataset,
// such as a missing source directory or an empty corpus. It is not retriable.
var ErrConfig = errors.New("Dataset configuration error")

// ErrMalformed is returned by ParseRecord for a line that is not a valid annotation record
var ErrMalformed = errors.New("Malformed annotation record")
