// Copyright (C) 2024 HERE Europe B.V.
// See LICENSE for copying information.

// Package olpclient is the HTTP client facade (component D): the
// Network capability, its request/response model, and OlpClient, the
// thin helper that composes URL/auth/retry around a Network.
package olpclient

import "github.com/zeebo/errs"

// Error is the class for olpclient failures.
var Error = errs.Class("olpclient")

// Verb is an HTTP method.
type Verb string

// Supported verbs.
const (
	GET     Verb = "GET"
	POST    Verb = "POST"
	PUT     Verb = "PUT"
	DELETE  Verb = "DELETE"
	PATCH   Verb = "PATCH"
	HEAD    Verb = "HEAD"
	OPTIONS Verb = "OPTIONS"
)

// Header is a single ordered (name, value) pair; NetworkRequest keeps
// headers as an ordered list rather than a map so request signing
// (which is order-sensitive) can rely on it.
type Header struct {
	Name  string
	Value string
}

// RequestID is an opaque id assigned by the transport when Send
// succeeds.
type RequestID uint64

// ErrorCode classifies why Send or a completion callback failed.
type ErrorCode int

// Transport-level error codes (spec §4.4).
const (
	Success ErrorCode = iota
	IOError
	AuthorizationError
	InvalidURLError
	OfflineError
	CancelledError
	AuthenticationError
	TimeoutError
	NetworkOverloadError
	UnknownError
)

// Sentinel errors Send returns synchronously; no completion callback
// will fire for a request rejected this way.
var (
	// ErrOverload reports the transport's parallel-requests limit
	// was exceeded (NetworkOverloadError).
	ErrOverload = errs.New("network overload: parallel requests limit reached")
	// ErrOffline reports the Network has been closed (OfflineError).
	ErrOffline = errs.New("network is deinitialized")
)

// NetworkRequest is everything needed to issue one HTTP request.
type NetworkRequest struct {
	URL      string
	Verb     Verb
	Headers  []Header
	Body     []byte
	Settings NetworkSettings
}

// NetworkSettings carries a per-request timeout, independent of the
// client-wide client.NetworkSettings default; proxy and retry are not
// configurable per request.
type NetworkSettings struct {
	TimeoutSeconds int
}

// NetworkResponse is delivered to the completion callback exactly
// once per successfully-sent request. ErrorCode classifies a
// transport-level failure (CancelledError, TimeoutError,
// OfflineError, ...); it is Success whenever the whole response was
// received, even a 4xx/5xx one. A failure while reading the body
// keeps the HTTP Status but sets ErrorCode to that failure's code.
type NetworkResponse struct {
	RequestID       RequestID
	Status          int
	ErrorCode       ErrorCode
	Error           string
	Headers         []Header
	BytesDownloaded int64
	BytesUploaded   int64
}

// HeaderCallback is invoked zero or more times, strictly before the
// completion callback, once per response header line received.
type HeaderCallback func(name, value string)

// DataCallback is invoked zero or more times, strictly before the
// completion callback, once per chunk of response body received.
type DataCallback func(offset int64, data []byte)

// CompletionCallback is invoked exactly once per request that Send
// accepted, carrying the final NetworkResponse.
type CompletionCallback func(NetworkResponse)
