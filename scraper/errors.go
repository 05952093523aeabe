// Package scraper fetches search result pages and drives the harvest loop.
package scraper

import "errors"

// labeled is implemented by every fetch error class; the label feeds logs and the
// errors_total metric.
type labeled interface {
	error
	label() string
}

func describe(label string, err error) string {
	if err == nil {
		return label
	}
	return label + ": " + err.Error()
}

// ErrTimeout indicates the search request timed out.
type ErrTimeout struct{ Err error }

func (e ErrTimeout) Error() string { return describe(e.label(), e.Err) }
func (e ErrTimeout) Unwrap() error { return e.Err }
func (ErrTimeout) label() string   { return "timeout" }

// ErrConnection indicates the search API could not be reached.
type ErrConnection struct{ Err error }

func (e ErrConnection) Error() string { return describe(e.label(), e.Err) }
func (e ErrConnection) Unwrap() error { return e.Err }
func (ErrConnection) label() string   { return "connection" }

// ErrForbidden is an HTTP 403: the key is disabled, revoked or not enabled for the API.
// The harvester records such keys in the corrupt-keys file.
type ErrForbidden struct{ Err error }

func (e ErrForbidden) Error() string { return describe(e.label(), e.Err) }
func (e ErrForbidden) Unwrap() error { return e.Err }
func (ErrForbidden) label() string   { return "forbidden" }

// ErrNotFound is an HTTP 404, normally a misconfigured search URL.
type ErrNotFound struct{ Err error }

func (e ErrNotFound) Error() string { return describe(e.label(), e.Err) }
func (e ErrNotFound) Unwrap() error { return e.Err }
func (ErrNotFound) label() string   { return "not_found" }

// ErrRateLimited is an HTTP 429: the key's daily quota is spent.
type ErrRateLimited struct{ Err error }

func (e ErrRateLimited) Error() string { return describe(e.label(), e.Err) }
func (e ErrRateLimited) Unwrap() error { return e.Err }
func (ErrRateLimited) label() string   { return "rate_limited" }

// ErrDecode indicates a 2xx response whose body was not a search result document.
type ErrDecode struct{ Err error }

func (e ErrDecode) Error() string { return describe(e.label(), e.Err) }
func (e ErrDecode) Unwrap() error { return e.Err }
func (ErrDecode) label() string   { return "decode" }

// errorTypeLabel maps err to its metric label: "unknown" for nil, "other" for
// errors outside the classes above.
func errorTypeLabel(err error) string {
	if err == nil {
		return "unknown"
	}
	var l labeled
	if errors.As(err, &l) {
		return l.label()
	}
	return "other"
}

// exhaustsKey reports whether err should retire the key that produced it.
func exhaustsKey(err error) bool {
	switch errorTypeLabel(err) {
	case "forbidden", "rate_limited":
		return true
	}
	return false
}
