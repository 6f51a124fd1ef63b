// Package errors defines the sentinel errors shared by the build pipeline and
// the query service, and maps them to HTTP statuses and stable error codes
// for API responses.
package errors

import (
	"errors"
	"net/http"
)

var (
	ErrDocumentNotFound  = errors.New("document not found")
	ErrMalformedDocument = errors.New("malformed document")
	ErrEmptyDocument     = errors.New("document has no content")
	ErrCorruptShard      = errors.New("corrupt shard file")
	ErrShardUnavailable  = errors.New("shard unavailable")
	ErrIndexNotReady     = errors.New("index not ready")
	ErrInvalidInput      = errors.New("invalid input")
	ErrInternal          = errors.New("internal error")
	ErrTimeout           = errors.New("operation timed out")
)

type class struct {
	sentinel error
	status   int
	code     string
}

// classes is checked in order; the first sentinel in the chain wins.
var classes = []class{
	{ErrDocumentNotFound, http.StatusNotFound, "not_found"},
	{ErrInvalidInput, http.StatusBadRequest, "invalid_input"},
	{ErrMalformedDocument, http.StatusBadRequest, "malformed_document"},
	{ErrEmptyDocument, http.StatusBadRequest, "empty_document"},
	{ErrIndexNotReady, http.StatusServiceUnavailable, "index_not_ready"},
	{ErrShardUnavailable, http.StatusServiceUnavailable, "shard_unavailable"},
	{ErrTimeout, http.StatusServiceUnavailable, "timeout"},
	{ErrCorruptShard, http.StatusInternalServerError, "corrupt_shard"},
}

func classify(err error) (class, bool) {
	for _, c := range classes {
		if errors.Is(err, c.sentinel) {
			return c, true
		}
	}
	return class{}, false
}

// HTTPStatusCode maps err to the status an API handler should answer with.
// Unknown errors are 500.
func HTTPStatusCode(err error) int {
	if c, ok := classify(err); ok {
		return c.status
	}
	return http.StatusInternalServerError
}

// Code is a stable machine-readable name for err, "internal" when err wraps
// none of the sentinels.
func Code(err error) string {
	if c, ok := classify(err); ok {
		return c.code
	}
	return "internal"
}

// Is and As re-export the standard helpers so callers importing this package
// under the name "errors" keep access to them.
func Is(err, target error) bool { return errors.Is(err, target) }

func As(err error, target any) bool { return errors.As(err, target) }
