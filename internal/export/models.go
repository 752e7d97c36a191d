// Package export implements the export job manager: it accepts requests to
// render an event asset into a file, drives each job through its lifecycle
// and serves the finished file for download.
package export

import (
	"errors"
	"fmt"
	"time"
)

// Errors returned by the export service and repositories.
var (
	ErrExportNotFound    = errors.New("export not found")
	ErrEventNotFound     = errors.New("event not found")
	ErrNotReady          = errors.New("export not ready")
	ErrUnsupportedFormat = errors.New("unsupported export format")
	ErrVersionConflict   = errors.New("export was modified concurrently")
	ErrFileNotFound      = errors.New("export file not found")
)

// Type is the kind of event asset being rendered.
type Type string

// Export types.
const (
	TypeInvitation Type = "invitation"
	TypeSaveDate   Type = "save_date"
	TypeRSVPCard   Type = "rsvp_card"
	TypeThankYou   Type = "thank_you"
	TypeSign       Type = "sign"
	TypeMenu       Type = "menu"
	TypeTimeline   Type = "timeline"
)

// AllTypes returns every export type.
func AllTypes() []Type {
	return []Type{TypeInvitation, TypeSaveDate, TypeRSVPCard, TypeThankYou, TypeSign, TypeMenu, TypeTimeline}
}

// Valid reports whether t is a known type.
func (t Type) Valid() bool {
	for _, v := range AllTypes() {
		if t == v {
			return true
		}
	}
	return false
}

// Format is the output file format.
type Format string

// Export formats. Only pdf, png and jpg have renderers.
const (
	FormatPDF  Format = "pdf"
	FormatPNG  Format = "png"
	FormatJPG  Format = "jpg"
	FormatSVG  Format = "svg"
	FormatHTML Format = "html"
	FormatDOCX Format = "docx"
)

// AllFormats returns every accepted format.
func AllFormats() []Format {
	return []Format{FormatPDF, FormatPNG, FormatJPG, FormatSVG, FormatHTML, FormatDOCX}
}

// Valid reports whether f is an accepted format.
func (f Format) Valid() bool {
	for _, v := range AllFormats() {
		if f == v {
			return true
		}
	}
	return false
}

// Extension is the file extension used for f.
func (f Format) Extension() string {
	return string(f)
}

// Status is the lifecycle state of a job.
type Status string

// Job statuses. StatusDeleting is internal: a record in that state is being
// removed and is invisible to callers.
const (
	StatusPending    Status = "pending"
	StatusProcessing Status = "processing"
	StatusCompleted  Status = "completed"
	StatusFailed     Status = "failed"
	StatusDeleting   Status = "deleting"
)

// Valid reports whether s is a caller-visible status.
func (s Status) Valid() bool {
	switch s {
	case StatusPending, StatusProcessing, StatusCompleted, StatusFailed:
		return true
	}
	return false
}

// IsTerminal reports whether no further transitions are possible.
func (s Status) IsTerminal() bool {
	return s == StatusCompleted || s == StatusFailed
}

// Processing tracks worker progress.
type Processing struct {
	StartedAt   *time.Time
	CompletedAt *time.Time
	Progress    int
	Error       string
}

// FileInfo describes a rendered file. Present only on completed jobs.
type FileInfo struct {
	Filename        string
	Size            int64
	MIMEType        string
	URL             string
	StorageProvider string
}

// Downloads counts successful download retrievals.
type Downloads struct {
	Total          int
	LastDownloaded *time.Time
}

// Job is an export job record.
type Job struct {
	ID         string
	UserID     string
	EventID    string
	Type       Type
	Format     Format
	Status     Status
	Processing Processing
	FileInfo   *FileInfo
	Downloads  Downloads

	// Version increments on every write and guards concurrent updates.
	Version int64

	CreatedAt time.Time
	UpdatedAt time.Time
}

// Clone returns a deep copy of j.
func (j *Job) Clone() *Job {
	c := *j
	if j.Processing.StartedAt != nil {
		t := *j.Processing.StartedAt
		c.Processing.StartedAt = &t
	}
	if j.Processing.CompletedAt != nil {
		t := *j.Processing.CompletedAt
		c.Processing.CompletedAt = &t
	}
	if j.FileInfo != nil {
		fi := *j.FileInfo
		c.FileInfo = &fi
	}
	if j.Downloads.LastDownloaded != nil {
		t := *j.Downloads.LastDownloaded
		c.Downloads.LastDownloaded = &t
	}
	return &c
}

// Filename returns the stored file name for the given extension.
func Filename(id, ext string) string {
	return fmt.Sprintf("export_%s.%s", id, ext)
}

// StoragePrefix is the key prefix for rendered export files.
const StoragePrefix = "exports/"

// StorageKey returns the blob key of a rendered file.
func StorageKey(filename string) string {
	return StoragePrefix + filename
}

// DownloadURL returns the API path that serves a job's file.
func DownloadURL(id string) string {
	return "/api/export/" + id + "/download"
}

// ListFilter narrows a listing. Zero values match everything.
type ListFilter struct {
	EventID string
	Type    Type
	Status  Status
}

// Matches reports whether j satisfies the filter.
func (f ListFilter) Matches(j *Job) bool {
	if f.EventID != "" && j.EventID != f.EventID {
		return false
	}
	if f.Type != "" && j.Type != f.Type {
		return false
	}
	if f.Status != "" && j.Status != f.Status {
		return false
	}
	return true
}

// SubmitInput is the payload for a new export job.
type SubmitInput struct {
	EventID string `json:"eventId" validate:"required"`
	Type    Type   `json:"type"    validate:"required,oneof=invitation save_date rsvp_card thank_you sign menu timeline"`
	Format  Format `json:"format"  validate:"required,oneof=pdf png jpg svg html docx"`
}
