package models

import (
	"encoding/json"
	"net/http"
)

// ProblemContentType is the media type of every error body.
const ProblemContentType = "application/problem+json"

// Problem is an RFC 7807 error body.
type Problem struct {
	Type     string       `json:"type"`
	Title    string       `json:"title"`
	Status   int          `json:"status"`
	Detail   string       `json:"detail,omitempty"`
	Instance string       `json:"instance,omitempty"`
	TraceID  string       `json:"traceId"`
	Errors   []FieldError `json:"errors,omitempty"`
}

// FieldError is a validation failure on one request field.
type FieldError struct {
	Field   string `json:"field"`
	Message string `json:"message"`
	Code    string `json:"code,omitempty"`
}

const problemBase = "https://api.invitely.app/problems/"

// Problem type URIs.
const (
	ProblemTypeValidation       = problemBase + "validation-error"
	ProblemTypeUnauthorized     = problemBase + "unauthorized"
	ProblemTypeNotFound         = problemBase + "not-found"
	ProblemTypeNotReady         = problemBase + "not-ready"
	ProblemTypeConflict         = problemBase + "conflict"
	ProblemTypeUnsupportedMedia = problemBase + "unsupported-media-type"
	ProblemTypeTooManyRequests  = problemBase + "too-many-requests"
	ProblemTypeTLSRequired      = problemBase + "tls-required"
	ProblemTypeInternal         = problemBase + "internal-error"
	ProblemTypeUnavailable      = problemBase + "service-unavailable"
)

// problemKind fixes the type, title and status of a family of problems.
type problemKind struct {
	typ    string
	title  string
	status int
}

var (
	kindValidation  = problemKind{ProblemTypeValidation, "Validation error", http.StatusBadRequest}
	kindNotReady    = problemKind{ProblemTypeNotReady, "Not ready", http.StatusBadRequest}
	kindUnauth      = problemKind{ProblemTypeUnauthorized, "Unauthorized", http.StatusUnauthorized}
	kindTLS         = problemKind{ProblemTypeTLSRequired, "TLS required", http.StatusForbidden}
	kindNotFound    = problemKind{ProblemTypeNotFound, "Not found", http.StatusNotFound}
	kindConflict    = problemKind{ProblemTypeConflict, "Conflict", http.StatusConflict}
	kindMedia       = problemKind{ProblemTypeUnsupportedMedia, "Unsupported media type", http.StatusUnsupportedMediaType}
	kindRateLimited = problemKind{ProblemTypeTooManyRequests, "Too many requests", http.StatusTooManyRequests}
	kindInternal    = problemKind{ProblemTypeInternal, "Internal server error", http.StatusInternalServerError}
	kindUnavailable = problemKind{ProblemTypeUnavailable, "Service unavailable", http.StatusServiceUnavailable}
)

func (k problemKind) new(traceID, detail string) *Problem {
	return &Problem{
		Type:    k.typ,
		Title:   k.title,
		Status:  k.status,
		Detail:  detail,
		TraceID: traceID,
	}
}

// NewProblem creates a Problem of an arbitrary type.
func NewProblem(problemType, title string, status int, traceID string) *Problem {
	return problemKind{problemType, title, status}.new(traceID, "")
}

// Write sends the Problem with its status code.
func (p *Problem) Write(w http.ResponseWriter) {
	w.Header().Set("Content-Type", ProblemContentType)
	if p.TraceID != "" {
		w.Header().Set("X-Request-Id", p.TraceID)
	}
	w.WriteHeader(p.Status)
	_ = json.NewEncoder(w).Encode(p)
}

// NewBadRequest creates a 400 validation problem.
func NewBadRequest(traceID, detail string, errors []FieldError) *Problem {
	p := kindValidation.new(traceID, detail)
	p.Errors = errors
	return p
}

// NewNotReady creates a 400 problem for a resource that exists but cannot be
// served yet, such as an export that has not completed.
func NewNotReady(traceID, detail string) *Problem {
	return kindNotReady.new(traceID, detail)
}

// NewUnauthorized creates a 401 problem.
func NewUnauthorized(traceID, detail string) *Problem {
	return kindUnauth.new(traceID, detail)
}

// NewTLSRequired creates a 403 problem for plain HTTP requests.
func NewTLSRequired(traceID string) *Problem {
	return kindTLS.new(traceID, "This endpoint requires HTTPS")
}

// NewNotFound creates a 404 problem.
func NewNotFound(traceID, detail string) *Problem {
	return kindNotFound.new(traceID, detail)
}

// NewConflict creates a 409 problem.
func NewConflict(traceID, detail string) *Problem {
	return kindConflict.new(traceID, detail)
}

// NewUnsupportedMediaType creates a 415 problem.
func NewUnsupportedMediaType(traceID, detail string) *Problem {
	return kindMedia.new(traceID, detail)
}

// NewTooManyRequests creates a 429 problem.
func NewTooManyRequests(traceID, detail string) *Problem {
	return kindRateLimited.new(traceID, detail)
}

// NewInternalError creates a 500 problem.
func NewInternalError(traceID, detail string) *Problem {
	return kindInternal.new(traceID, detail)
}

// NewServiceUnavailable creates a 503 problem.
func NewServiceUnavailable(traceID, detail string) *Problem {
	return kindUnavailable.new(traceID, detail)
}
