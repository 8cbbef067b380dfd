// Copyright (C) 2024 HERE Europe B.V.
// See LICENSE for copying information.

// Package client holds the types shared across every subsystem of the
// runtime: the Result/ApiError sum type and the settings bundle a
// caller assembles once and threads through the rest of the SDK.
package client

import (
	"fmt"
	"net/http"

	"github.com/zeebo/errs"
)

// Error is the base class for errors originating in this package.
var Error = errs.Class("client")

// ErrorKind classifies an ApiError the way every public operation
// reports failure, per the spec's error-kind table.
type ErrorKind int

// Error kinds surfaced to callers.
const (
	KindUnknown ErrorKind = iota
	KindCancelled
	KindInvalidArgument
	KindUnauthorized
	KindForbidden
	KindNotFound
	KindPreconditionFailed
	KindServiceUnavailable
	KindNetworkError
	KindTimeout
	KindOffline
)

func (k ErrorKind) String() string {
	switch k {
	case KindCancelled:
		return "Cancelled"
	case KindInvalidArgument:
		return "InvalidArgument"
	case KindUnauthorized:
		return "Unauthorized"
	case KindForbidden:
		return "Forbidden"
	case KindNotFound:
		return "NotFound"
	case KindPreconditionFailed:
		return "PreconditionFailed"
	case KindServiceUnavailable:
		return "ServiceUnavailable"
	case KindNetworkError:
		return "NetworkError"
	case KindTimeout:
		return "Timeout"
	case KindOffline:
		return "Offline"
	default:
		return "Unknown"
	}
}

// ApiError is the error payload half of Result[T]; no exception-like
// unwinding crosses the public boundary, only this value.
type ApiError struct {
	Kind       ErrorKind
	HTTPStatus int
	Message    string
}

func (e *ApiError) Error() string {
	if e.HTTPStatus != 0 {
		return fmt.Sprintf("%s (http %d): %s", e.Kind, e.HTTPStatus, e.Message)
	}
	return fmt.Sprintf("%s: %s", e.Kind, e.Message)
}

// NewError builds an ApiError, the constructor every subsystem uses
// instead of ad-hoc error values so Kind is never forgotten.
func NewError(kind ErrorKind, message string) *ApiError {
	return &ApiError{Kind: kind, Message: message}
}

// Cancelled is the canonical ApiError delivered whenever an operation
// observes cancellation, per spec §4.3/§8.2.
func Cancelled() *ApiError {
	return &ApiError{Kind: KindCancelled, Message: "operation was cancelled"}
}

// KindFromHTTPStatus maps an HTTP status code to an ErrorKind,
// following the same "classify once at the boundary" idiom the
// teacher's rpc status package uses for gRPC codes.
func KindFromHTTPStatus(status int) ErrorKind {
	switch {
	case status == http.StatusUnauthorized:
		return KindUnauthorized
	case status == http.StatusForbidden:
		return KindForbidden
	case status == http.StatusNotFound:
		return KindNotFound
	case status == http.StatusPreconditionFailed || status == http.StatusConflict:
		return KindPreconditionFailed
	case status == http.StatusRequestTimeout:
		return KindTimeout
	case status >= 500:
		return KindServiceUnavailable
	case status >= 400:
		return KindInvalidArgument
	default:
		return KindUnknown
	}
}

// ErrorFromHTTPStatus builds an ApiError for a non-2xx HTTP response,
// propagating the status verbatim per spec §7.
func ErrorFromHTTPStatus(status int, message string) *ApiError {
	return &ApiError{Kind: KindFromHTTPStatus(status), HTTPStatus: status, Message: message}
}

// Result is the tagged sum the spec's §9 design notes call for in
// place of the original's CRTP-templated ApiResponse<T, Err, Payload>.
type Result[T any] struct {
	Value T
	Err   *ApiError
}

// Ok builds a successful Result.
func Ok[T any](v T) Result[T] { return Result[T]{Value: v} }

// Failed builds a failed Result.
func Failed[T any](err *ApiError) Result[T] { return Result[T]{Err: err} }

// IsSuccess reports whether the result carries a value rather than an error.
func (r Result[T]) IsSuccess() bool { return r.Err == nil }
