// Package response writes JSON, problem and file responses.
package response

import (
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strconv"

	"github.com/invitely/invitely/internal/api/middleware"
	"github.com/invitely/invitely/internal/api/models"
)

// JSON writes data as JSON with the given status code.
func JSON(w http.ResponseWriter, r *http.Request, status int, data any) {
	writeJSON(w, r, status, "", data)
}

// Created writes a 201 response with a Location header.
func Created(w http.ResponseWriter, r *http.Request, location string, data any) {
	writeJSON(w, r, http.StatusCreated, location, data)
}

func writeJSON(w http.ResponseWriter, r *http.Request, status int, location string, data any) {
	setRequestID(w, r)
	w.Header().Set("Content-Type", "application/json")
	if location != "" {
		w.Header().Set("Location", location)
	}
	w.WriteHeader(status)
	if data != nil {
		_ = json.NewEncoder(w).Encode(data)
	}
}

func setRequestID(w http.ResponseWriter, r *http.Request) {
	if id := middleware.GetRequestID(r.Context()); id != "" {
		w.Header().Set("X-Request-Id", id)
	}
}

// File describes a stored file to stream to the client.
type File struct {
	Name        string
	ContentType string
	Size        int64
	Body        io.Reader

	// Attachment asks the client to save the file instead of displaying it.
	Attachment bool

	// CacheControl is sent as-is when set.
	CacheControl string
}

// Stream writes f with a 200 status. Copy errors after the header is sent
// cannot be reported to the client and are returned to the caller.
func Stream(w http.ResponseWriter, r *http.Request, f File) error {
	setRequestID(w, r)
	h := w.Header()
	contentType := f.ContentType
	if contentType == "" {
		contentType = "application/octet-stream"
	}
	h.Set("Content-Type", contentType)
	if f.Size > 0 {
		h.Set("Content-Length", strconv.FormatInt(f.Size, 10))
	}
	if f.Attachment {
		h.Set("Content-Disposition", fmt.Sprintf("attachment; filename=%q", f.Name))
	}
	if f.CacheControl != "" {
		h.Set("Cache-Control", f.CacheControl)
	}
	w.WriteHeader(http.StatusOK)

	if r.Method == http.MethodHead {
		return nil
	}
	_, err := io.Copy(w, f.Body)
	return err
}

// Error writes problem with the request path as its instance.
func Error(w http.ResponseWriter, r *http.Request, problem *models.Problem) {
	problem.Instance = r.URL.Path
	problem.Write(w)
}

func traceID(r *http.Request) string {
	return middleware.GetRequestID(r.Context())
}

// BadRequest writes a 400 validation problem.
func BadRequest(w http.ResponseWriter, r *http.Request, detail string, errors []models.FieldError) {
	Error(w, r, models.NewBadRequest(traceID(r), detail, errors))
}

// NotReady writes a 400 problem for a resource that cannot be served yet.
func NotReady(w http.ResponseWriter, r *http.Request, detail string) {
	Error(w, r, models.NewNotReady(traceID(r), detail))
}

// Unauthorized writes a 401 problem.
func Unauthorized(w http.ResponseWriter, r *http.Request, detail string) {
	Error(w, r, models.NewUnauthorized(traceID(r), detail))
}

// NotFound writes a 404 problem.
func NotFound(w http.ResponseWriter, r *http.Request, detail string) {
	Error(w, r, models.NewNotFound(traceID(r), detail))
}

// Conflict writes a 409 problem.
func Conflict(w http.ResponseWriter, r *http.Request, detail string) {
	Error(w, r, models.NewConflict(traceID(r), detail))
}

// InternalError writes a 500 problem. detail is shown to the client, so it
// must not carry the underlying error.
func InternalError(w http.ResponseWriter, r *http.Request, detail string) {
	Error(w, r, models.NewInternalError(traceID(r), detail))
}

// ServiceUnavailable writes a 503 problem.
func ServiceUnavailable(w http.ResponseWriter, r *http.Request, detail string) {
	Error(w, r, models.NewServiceUnavailable(traceID(r), detail))
}
