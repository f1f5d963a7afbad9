package feed

import (
	"fmt"
	"net/http"
)

// ErrorKind classifies why a source fetch failed.
type ErrorKind string

const (
	KindTimeout    ErrorKind = "timeout"
	KindConnection ErrorKind = "connection_error"
	KindHTTP       ErrorKind = "http_error"
	KindParse      ErrorKind = "parse_error"
	KindUnknown    ErrorKind = "unknown"
)

// FetchError is the typed failure returned by the Fetcher. It never
// escapes as a panic; the coordinator treats every source outcome as a
// value.
type FetchError struct {
	Kind   ErrorKind
	Status int // HTTP status for KindHTTP, zero otherwise
	Err    error
}

func (e *FetchError) Error() string {
	switch e.Kind {
	case KindHTTP:
		return fmt.Sprintf("http error: %d %s", e.Status, http.StatusText(e.Status))
	default:
		if e.Err != nil {
			return fmt.Sprintf("%s: %v", e.Kind, e.Err)
		}
		return string(e.Kind)
	}
}

func (e *FetchError) Unwrap() error { return e.Err }
