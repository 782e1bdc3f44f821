package network

import (
	"errors"
	"fmt"
)

// ErrorKind classifies network failures
type ErrorKind int

const (
	KindInvalidURL ErrorKind = iota + 1
	KindTransportFailure
	KindNonUTF8Body
)

func (k ErrorKind) String() string {
	switch k {
	case KindInvalidURL:
		return "invalid_url"
	case KindTransportFailure:
		return "transport_failure"
	case KindNonUTF8Body:
		return "non_utf8_body"
	default:
		return "unknown"
	}
}

// Sentinel errors for errors.Is
var (
	ErrInvalidURL       = errors.New("invalid url")
	ErrTransportFailure = errors.New("transport failure")
	ErrNonUTF8Body      = errors.New("response body is not valid utf-8")
)

// Error is returned by Execute
type Error struct {
	Kind    ErrorKind
	URL     string
	Charset string // detected charset hint for NonUTF8Body
	Err     error
}

func (e *Error) Error() string {
	switch e.Kind {
	case KindInvalidURL:
		return fmt.Sprintf("invalid url %q: %v", e.URL, e.Err)
	case KindNonUTF8Body:
		if e.Charset != "" {
			return fmt.Sprintf("response from %s is not valid utf-8 (looks like %s)", e.URL, e.Charset)
		}
		return fmt.Sprintf("response from %s is not valid utf-8", e.URL)
	default:
		return fmt.Sprintf("request to %s failed: %v", e.URL, e.Err)
	}
}

func (e *Error) Unwrap() error {
	return e.Err
}

// Is matches the sentinel for the error's kind
func (e *Error) Is(target error) bool {
	switch target {
	case ErrInvalidURL:
		return e.Kind == KindInvalidURL
	case ErrTransportFailure:
		return e.Kind == KindTransportFailure
	case ErrNonUTF8Body:
		return e.Kind == KindNonUTF8Body
	}
	return false
}

// Code returns the kind name exposed to guest code
func (e *Error) Code() string {
	return e.Kind.String()
}

func invalidURL(rawURL string, err error) *Error {
	return &Error{Kind: KindInvalidURL, URL: rawURL, Err: err}
}

func transportFailure(rawURL string, err error) *Error {
	return &Error{Kind: KindTransportFailure, URL: rawURL, Err: err}
}
