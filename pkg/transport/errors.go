package transport

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/http"

	"github.com/rhuss/fetchbridge/pkg/fetch"
)

// Construction errors. They are fatal for the current request; the binding
// reports them to the client with a generic failure response.
var (
	// ErrMissingHost means neither x-forwarded-host nor host was present.
	ErrMissingHost = errors.New("request has neither x-forwarded-host nor host header")

	// ErrInvalidURL means the scheme, host and path did not form a valid URL.
	ErrInvalidURL = errors.New("invalid request URL")
)

// Abort reasons. A request whose signal fires with one of these ends in
// StateAborted, which is not a failure.
var (
	// ErrConnectionClosed is the reason used when the outgoing connection
	// closes before the response is fully written.
	ErrConnectionClosed = errors.New("connection closed")

	// ErrShutdown is the reason used when a forced server shutdown aborts
	// in-flight requests.
	ErrShutdown = errors.New("server shutting down")
)

var (
	// ErrHeadersWritten is returned when a second header block is written
	// to an outgoing message.
	ErrHeadersWritten = errors.New("response headers already written")

	// ErrHandlerPanic wraps the value recovered from a panicking handler.
	ErrHandlerPanic = errors.New("handler panicked")

	// ErrNilResponse is returned when a handler returns neither a response
	// nor an error.
	ErrNilResponse = errors.New("handler returned nil response")
)

// BuildError reports a failure to construct the Fetch-style request.
type BuildError struct {
	Err error
}

func (e *BuildError) Error() string { return "building request: " + e.Err.Error() }

func (e *BuildError) Unwrap() error { return e.Err }

// StreamError reports a failure while writing the response. Op is one of
// "head", "read", "write", "flush" or "end". Headers may already have been sent;
// nothing is re-sent.
type StreamError struct {
	Op  string
	Err error
}

func (e *StreamError) Error() string { return "streaming body: " + e.Op + ": " + e.Err.Error() }

func (e *StreamError) Unwrap() error { return e.Err }

// IsAbortReason reports whether err is one of the cancellation reasons that
// end a request in StateAborted.
func IsAbortReason(err error) bool {
	return errors.Is(err, ErrConnectionClosed) || errors.Is(err, ErrShutdown)
}

// ErrorType represents the category of an error response.
type ErrorType string

const (
	ErrorTypeServerError      ErrorType = "server_error"
	ErrorTypeInvalidRequest   ErrorType = "invalid_request"
	ErrorTypeUnauthorized     ErrorType = "unauthorized"
	ErrorTypeForbidden        ErrorType = "forbidden"
	ErrorTypeTooManyRequests  ErrorType = "too_many_requests"
	ErrorTypeNotFound         ErrorType = "not_found"
	ErrorTypeMethodNotAllowed ErrorType = "method_not_allowed"
	ErrorTypePayloadTooLarge  ErrorType = "payload_too_large"
	ErrorTypeBadGateway       ErrorType = "bad_gateway"
	ErrorTypeGatewayTimeout   ErrorType = "gateway_timeout"
)

// APIError is the body of a failure response emitted by the transport
// layer itself (never by application handlers).
type APIError struct {
	Type    ErrorType `json:"type"`
	Message string    `json:"message"`
}

// Error implements the error interface.
func (e *APIError) Error() string {
	return string(e.Type) + ": " + e.Message
}

// ErrorResponse wraps an APIError for JSON serialization.
type ErrorResponse struct {
	Error *APIError `json:"error"`
}

// NewServerError creates an APIError for internal server errors.
func NewServerError(message string) *APIError {
	return &APIError{Type: ErrorTypeServerError, Message: message}
}

// NewUnauthorizedError creates an APIError for rejected credentials.
func NewUnauthorizedError(message string) *APIError {
	return &APIError{Type: ErrorTypeUnauthorized, Message: message}
}

// NewForbiddenError creates an APIError for authenticated callers that lack
// a required permission.
func NewForbiddenError(message string) *APIError {
	return &APIError{Type: ErrorTypeForbidden, Message: message}
}

// NewRateLimitError creates an APIError for throttled callers.
func NewRateLimitError(message string) *APIError {
	return &APIError{Type: ErrorTypeTooManyRequests, Message: message}
}

// NewInvalidRequestError creates an APIError for malformed requests.
func NewInvalidRequestError(message string) *APIError {
	return &APIError{Type: ErrorTypeInvalidRequest, Message: message}
}

// NewPayloadTooLargeError creates an APIError for request bodies over the
// configured limit.
func NewPayloadTooLargeError(limit int64) *APIError {
	return &APIError{
		Type:    ErrorTypePayloadTooLarge,
		Message: fmt.Sprintf("request body exceeds %d bytes", limit),
	}
}

// GenericFailure is the error body used for construction and handler
// errors. Details go to the log, not to the client.
func GenericFailure() *APIError {
	return NewServerError("internal server error")
}

// HTTPStatusFromError maps an APIError type to the corresponding HTTP status
// code.
func HTTPStatusFromError(err *APIError) int {
	switch err.Type {
	case ErrorTypeInvalidRequest:
		return http.StatusBadRequest
	case ErrorTypeUnauthorized:
		return http.StatusUnauthorized
	case ErrorTypeForbidden:
		return http.StatusForbidden
	case ErrorTypeTooManyRequests:
		return http.StatusTooManyRequests
	case ErrorTypeNotFound:
		return http.StatusNotFound
	case ErrorTypeMethodNotAllowed:
		return http.StatusMethodNotAllowed
	case ErrorTypePayloadTooLarge:
		return http.StatusRequestEntityTooLarge
	case ErrorTypeBadGateway:
		return http.StatusBadGateway
	case ErrorTypeGatewayTimeout:
		return http.StatusGatewayTimeout
	default:
		return http.StatusInternalServerError
	}
}

// WriteErrorResponse writes a JSON error response using the ErrorResponse
// wrapper format. It sets the Content-Type header and writes the HTTP
// status code.
func WriteErrorResponse(w http.ResponseWriter, apiErr *APIError, statusCode int) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(statusCode)
	json.NewEncoder(w).Encode(ErrorResponse{Error: apiErr})
}

// WriteAPIError writes an APIError response, deriving the HTTP status code
// from the error type.
func WriteAPIError(w http.ResponseWriter, apiErr *APIError) {
	WriteErrorResponse(w, apiErr, HTTPStatusFromError(apiErr))
}

// NewAPIErrorResponse renders apiErr as a Fetch-style JSON response, so that
// middleware can reject a request without touching the outgoing message.
func NewAPIErrorResponse(apiErr *APIError) *fetch.Response {
	resp, err := fetch.JSON(HTTPStatusFromError(apiErr), ErrorResponse{Error: apiErr})
	if err != nil {
		return fetch.Text(http.StatusInternalServerError, "internal server error")
	}
	return resp
}
