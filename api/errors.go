package api

import (
	"errors"
	"fmt"
)

// Kind classifies a request failure and drives the retry policy.
type Kind string

const (
	// KindClient marks 4xx responses. Never retried; the backend's error
	// message is carried on the [RequestError] when present.
	KindClient Kind = "client_error"

	// KindTimeout marks requests whose attempt deadline elapsed before a
	// response arrived. Never retried.
	KindTimeout Kind = "timeout"

	// KindTransient marks everything else: transport failures, 5xx
	// responses and malformed bodies. Retried with backoff; surfaced only
	// after the retry budget is exhausted.
	KindTransient Kind = "transient"
)

// Error codes returned by the backend in the response envelope.
const (
	CodeValidation         = "VALIDATION_ERROR"
	CodeDeviceNotFound     = "DEVICE_NOT_FOUND"
	CodeDeviceDisconnected = "DEVICE_DISCONNECTED"
	CodeADB                = "ADB_ERROR"
	CodeRecording          = "RECORDING_ERROR"
	CodeMetricCollection   = "METRIC_COLLECTION_ERROR"
	CodeDatabase           = "DATABASE_ERROR"
	CodeInternal           = "INTERNAL_ERROR"
)

// RequestError is the classified failure returned by [Client.Do] and the
// typed endpoint methods.
//
// Kind determines how the failure was handled by the retry loop; Code and
// Message carry the backend's envelope error when one was decoded.
type RequestError struct {
	// Kind is the failure classification.
	Kind Kind

	// Endpoint is the request path, e.g. "/metrics/current".
	Endpoint string

	// StatusCode is the HTTP status, or 0 when no response was received.
	StatusCode int

	// Code is the backend error code from the envelope, if present.
	Code string

	// Message is the backend error message from the envelope, if present.
	Message string

	// Err is the underlying cause, if any.
	Err error
}

func (e *RequestError) Error() string {
	switch {
	case e.Message != "":
		return fmt.Sprintf("api %s: %s (%s)", e.Endpoint, e.Message, e.Kind)
	case e.StatusCode != 0:
		return fmt.Sprintf("api %s: status %d (%s)", e.Endpoint, e.StatusCode, e.Kind)
	case e.Err != nil:
		return fmt.Sprintf("api %s: %v (%s)", e.Endpoint, e.Err, e.Kind)
	default:
		return fmt.Sprintf("api %s: request failed (%s)", e.Endpoint, e.Kind)
	}
}

func (e *RequestError) Unwrap() error { return e.Err }

// IsClientError reports whether err is a non-retryable 4xx failure.
func IsClientError(err error) bool { return hasKind(err, KindClient) }

// IsTimeout reports whether err is an attempt-deadline failure, letting
// callers distinguish "slow" from "rejected".
func IsTimeout(err error) bool { return hasKind(err, KindTimeout) }

// IsTransient reports whether err exhausted the retry budget on a
// retryable failure.
func IsTransient(err error) bool { return hasKind(err, KindTransient) }

// ErrorCode returns the backend error code carried by err, or "" when err
// is not a [RequestError] or carried none.
func ErrorCode(err error) string {
	var re *RequestError
	if errors.As(err, &re) {
		return re.Code
	}
	return ""
}

func hasKind(err error, k Kind) bool {
	var re *RequestError
	return errors.As(err, &re) && re.Kind == k
}
