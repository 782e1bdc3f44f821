package types

import (
	"fmt"
	"net/http"
	"strings"
)

// Method is an HTTP method a guest may issue
type Method string

const (
	MethodGet     Method = http.MethodGet
	MethodPost    Method = http.MethodPost
	MethodPut     Method = http.MethodPut
	MethodPatch   Method = http.MethodPatch
	MethodDelete  Method = http.MethodDelete
	MethodHead    Method = http.MethodHead
	MethodOptions Method = http.MethodOptions
)

// ParseMethod normalizes a guest supplied method. Empty means GET.
func ParseMethod(s string) (Method, error) {
	m := Method(strings.ToUpper(strings.TrimSpace(s)))
	switch m {
	case "":
		return MethodGet, nil
	case MethodGet, MethodPost, MethodPut, MethodPatch, MethodDelete, MethodHead, MethodOptions:
		return m, nil
	default:
		return "", fmt.Errorf("unsupported method: %q", s)
	}
}

func (m Method) String() string {
	return string(m)
}

// HostRequest is a network request issued by guest code.
// It is immutable once constructed; accessors return copies.
type HostRequest struct {
	url     string
	method  Method
	headers map[string]string
	body    *string
}

// NewHostRequest builds a request. Header keys are canonicalized so lookups
// are case-insensitive; on collision the last key in iteration order wins.
func NewHostRequest(url string, method Method, headers map[string]string, body *string) (HostRequest, error) {
	if url == "" {
		return HostRequest{}, fmt.Errorf("url is required")
	}
	if method == "" {
		method = MethodGet
	}
	if _, err := ParseMethod(string(method)); err != nil {
		return HostRequest{}, err
	}

	canonical := make(map[string]string, len(headers))
	for k, v := range headers {
		canonical[http.CanonicalHeaderKey(k)] = v
	}

	var b *string
	if body != nil {
		copied := *body
		b = &copied
	}

	return HostRequest{
		url:     url,
		method:  method,
		headers: canonical,
		body:    b,
	}, nil
}

// URL returns the raw request URL
func (r HostRequest) URL() string { return r.url }

// Method returns the request method
func (r HostRequest) Method() Method { return r.method }

// Headers returns a copy of the canonicalized headers
func (r HostRequest) Headers() map[string]string {
	out := make(map[string]string, len(r.headers))
	for k, v := range r.headers {
		out[k] = v
	}
	return out
}

// Header returns a header value by case-insensitive name
func (r HostRequest) Header(name string) (string, bool) {
	v, ok := r.headers[http.CanonicalHeaderKey(name)]
	return v, ok
}

// HasHeader reports whether the guest set the header
func (r HostRequest) HasHeader(name string) bool {
	_, ok := r.Header(name)
	return ok
}

// Body returns the request body and whether one was supplied
func (r HostRequest) Body() (string, bool) {
	if r.body == nil {
		return "", false
	}
	return *r.body, true
}

// HostResponse is the normalized result of a completed network transaction
type HostResponse struct {
	StatusCode  int               `json:"statusCode" yaml:"statusCode"`
	ContentType string            `json:"contentType" yaml:"contentType"`
	Headers     map[string]string `json:"headers" yaml:"headers"`
	Body        string            `json:"body" yaml:"body"`
}
