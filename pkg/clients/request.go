package clients

import (
	"net/http"
)

// SignedRequest is an immutable descriptor of one fully-authenticated
// outbound call: URL, headers and optional body. It is produced by a
// request signer and consumed exactly once by the HTTP client.
type SignedRequest struct {
	Method string
	URL    string
	Header http.Header
	Body   []byte
}

// NewSignedRequest creates a request descriptor with an initialized header map.
func NewSignedRequest(method, url string) *SignedRequest {
	return &SignedRequest{
		Method: method,
		URL:    url,
		Header: make(http.Header),
	}
}

// WithHeader sets a header and returns the descriptor for chaining.
func (r *SignedRequest) WithHeader(key, value string) *SignedRequest {
	r.Header.Set(key, value)
	return r
}

// WithBody sets the request body and returns the descriptor for chaining.
func (r *SignedRequest) WithBody(body []byte) *SignedRequest {
	r.Body = body
	return r
}

// Clone returns a deep copy of the descriptor.
func (r *SignedRequest) Clone() *SignedRequest {
	clone := &SignedRequest{
		Method: r.Method,
		URL:    r.URL,
		Header: make(http.Header, len(r.Header)),
	}
	for k, vs := range r.Header {
		for _, v := range vs {
			clone.Header.Add(k, v)
		}
	}
	if r.Body != nil {
		clone.Body = make([]byte, len(r.Body))
		copy(clone.Body, r.Body)
	}
	return clone
}

// Response is a buffered provider response.
type Response struct {
	StatusCode int
	Header     http.Header
	Body       []byte
}

// IsSuccess reports whether the status code is in the 2xx range.
func (r *Response) IsSuccess() bool {
	return r.StatusCode >= 200 && r.StatusCode < 300
}
