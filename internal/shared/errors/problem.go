// Package errors provides RFC 7807 Problem Details for the HTTP API.
package errors

import (
	"fmt"
	"net/http"
)

// ProblemDetail represents an RFC 7807 Problem Details response.
// See: https://www.rfc-editor.org/rfc/rfc7807
type ProblemDetail struct {
	// Type is a URI reference that identifies the problem type.
	Type string `json:"type"`
	// Title is a short, English summary of the problem type.
	Title string `json:"title"`
	// Status is the HTTP status code for this occurrence.
	Status int `json:"status"`
	// Detail is the localized message shown to the vendor.
	Detail string `json:"detail,omitempty"`
	// Instance is the request path of this occurrence.
	Instance string `json:"instance,omitempty"`
	// Extensions carries machine-readable fields such as the error code.
	Extensions map[string]any `json:"extensions,omitempty"`
}

func (p ProblemDetail) Error() string {
	if p.Detail != "" {
		return fmt.Sprintf("%s: %s", p.Title, p.Detail)
	}
	return p.Title
}

// WithDetail returns a copy with the given detail message.
func (p ProblemDetail) WithDetail(detail string) ProblemDetail {
	p.Detail = detail
	return p
}

// WithExtension returns a copy with an additional extension property. The
// receiver's map is never modified, so templates stay shareable.
func (p ProblemDetail) WithExtension(key string, value any) ProblemDetail {
	extensions := make(map[string]any, len(p.Extensions)+1)
	for k, v := range p.Extensions {
		extensions[k] = v
	}
	extensions[key] = value
	p.Extensions = extensions
	return p
}

// WithCode returns a copy carrying a machine-readable error code such as
// "orders/invalid-format" or "auth/weak-password".
func (p ProblemDetail) WithCode(code string) ProblemDetail {
	if code == "" {
		return p
	}
	return p.WithExtension("code", code)
}

// Code returns the code set by WithCode, or "".
func (p ProblemDetail) Code() string {
	code, _ := p.Extensions["code"].(string)
	return code
}

const (
	TypeValidation   = "/problems/validation-error"
	TypeConflict     = "/problems/conflict"
	TypeInternal     = "/problems/internal-error"
	TypeUnauthorized = "/problems/unauthorized"
	TypeForbidden    = "/problems/forbidden"
	TypeTooMany      = "/problems/too-many-requests"
	TypeUnavailable  = "/problems/unavailable"
)

// FallbackDetail is shown when an error has no vendor-facing message.
const FallbackDetail = "Ocurrió un error. Intenta nuevamente."

var (
	// ErrValidation indicates the request failed validation.
	ErrValidation = ProblemDetail{
		Type:   TypeValidation,
		Title:  "Validation Error",
		Status: http.StatusBadRequest,
	}

	// ErrConflict indicates a conflicting operation is already running.
	ErrConflict = ProblemDetail{
		Type:   TypeConflict,
		Title:  "Conflict",
		Status: http.StatusConflict,
	}

	ErrInternal = ProblemDetail{
		Type:   TypeInternal,
		Title:  "Internal Server Error",
		Status: http.StatusInternalServerError,
	}

	// ErrUnauthorized indicates a missing, expired, or revoked session.
	ErrUnauthorized = ProblemDetail{
		Type:   TypeUnauthorized,
		Title:  "Unauthorized",
		Status: http.StatusUnauthorized,
	}

	ErrForbidden = ProblemDetail{
		Type:   TypeForbidden,
		Title:  "Forbidden",
		Status: http.StatusForbidden,
	}

	// ErrTooManyRequests indicates the caller is being throttled upstream.
	ErrTooManyRequests = ProblemDetail{
		Type:   TypeTooMany,
		Title:  "Too Many Requests",
		Status: http.StatusTooManyRequests,
	}

	// ErrUnavailable indicates a backing store or provider could not be reached.
	ErrUnavailable = ProblemDetail{
		Type:   TypeUnavailable,
		Title:  "Service Unavailable",
		Status: http.StatusServiceUnavailable,
	}
)
