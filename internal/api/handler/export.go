package handler

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/rs/zerolog"

	"github.com/invitely/invitely/internal/api/middleware"
	"github.com/invitely/invitely/internal/api/models"
	"github.com/invitely/invitely/internal/api/response"
	"github.com/invitely/invitely/internal/export"
)

// ExportHandler handles export job endpoints.
type ExportHandler struct {
	service *export.Service
	logger  zerolog.Logger
}

// NewExportHandler creates a new ExportHandler.
func NewExportHandler(service *export.Service, logger zerolog.Logger) *ExportHandler {
	return &ExportHandler{service: service, logger: logger}
}

// ListExports handles GET /api/export - list the caller's exports.
// Optional query filters: eventId, type, status.
func (h *ExportHandler) ListExports(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	filter := export.ListFilter{
		EventID: q.Get("eventId"),
		Type:    export.Type(q.Get("type")),
		Status:  export.Status(q.Get("status")),
	}

	jobs, err := h.service.List(r.Context(), middleware.GetUserID(r.Context()), filter)
	if err != nil {
		h.internalError(w, r, err, "failed to list exports")
		return
	}

	items := make([]models.Export, 0, len(jobs))
	for _, job := range jobs {
		items = append(items, toAPIExport(job))
	}
	response.JSON(w, r, http.StatusOK, models.ExportList{Exports: items})
}

// CreateExport handles POST /api/export - submit an export job.
func (h *ExportHandler) CreateExport(w http.ResponseWriter, r *http.Request) {
	var input export.SubmitInput
	if err := json.NewDecoder(r.Body).Decode(&input); err != nil {
		response.BadRequest(w, r, "invalid JSON body", nil)
		return
	}

	job, err := h.service.Submit(r.Context(), middleware.GetUserID(r.Context()), &input)
	if err != nil {
		var validationErr *export.ValidationError
		switch {
		case errors.As(err, &validationErr):
			response.BadRequest(w, r, "invalid export request", validationErr.Errors)
		case errors.Is(err, export.ErrEventNotFound):
			response.NotFound(w, r, "event not found")
		default:
			h.internalError(w, r, err, "failed to create export job")
		}
		return
	}

	location := fmt.Sprintf("/api/export/%s", job.ID)
	response.Created(w, r, location, models.ExportResponse{
		Message: "Export job created",
		Export:  toAPIExport(job),
	})
}

// GetExport handles GET /api/export/{id} - get an export's status.
func (h *ExportHandler) GetExport(w http.ResponseWriter, r *http.Request) {
	job, err := h.service.Get(r.Context(), middleware.GetUserID(r.Context()), chi.URLParam(r, "id"))
	if err != nil {
		h.writeLookupError(w, r, err)
		return
	}
	response.JSON(w, r, http.StatusOK, models.ExportResponse{Export: toAPIExport(job)})
}

// DownloadExport handles GET /api/export/{id}/download - stream the rendered file.
func (h *ExportHandler) DownloadExport(w http.ResponseWriter, r *http.Request) {
	dl, err := h.service.Download(r.Context(), middleware.GetUserID(r.Context()), chi.URLParam(r, "id"))
	if err != nil {
		switch {
		case errors.Is(err, export.ErrNotReady):
			response.NotReady(w, r, "export not ready for download")
		case errors.Is(err, export.ErrFileNotFound):
			response.NotFound(w, r, "export file not found")
		default:
			h.writeLookupError(w, r, err)
		}
		return
	}
	defer dl.Body.Close()

	err = response.Stream(w, r, response.File{
		Name:        dl.Filename,
		ContentType: dl.MIMEType,
		Size:        dl.Size,
		Body:        dl.Body,
		Attachment:  true,
	})
	if err != nil {
		h.logger.Warn().Err(err).Str("export_id", dl.Job.ID).Msg("export download interrupted")
	}
}

// DeleteExport handles DELETE /api/export/{id} - delete an export and its file.
func (h *ExportHandler) DeleteExport(w http.ResponseWriter, r *http.Request) {
	if err := h.service.Delete(r.Context(), middleware.GetUserID(r.Context()), chi.URLParam(r, "id")); err != nil {
		h.writeLookupError(w, r, err)
		return
	}
	response.JSON(w, r, http.StatusOK, models.MessageResponse{Message: "Export deleted successfully"})
}

func (h *ExportHandler) writeLookupError(w http.ResponseWriter, r *http.Request, err error) {
	if errors.Is(err, export.ErrExportNotFound) {
		response.NotFound(w, r, "export not found")
		return
	}
	h.internalError(w, r, err, "export request failed")
}

func (h *ExportHandler) internalError(w http.ResponseWriter, r *http.Request, err error, detail string) {
	h.logger.Error().Err(err).Str("path", r.URL.Path).Msg(detail)
	response.InternalError(w, r, detail)
}

// toAPIExport converts a domain export job to its API form.
func toAPIExport(job *export.Job) models.Export {
	out := models.Export{
		ID:      job.ID,
		EventID: job.EventID,
		Type:    string(job.Type),
		Format:  string(job.Format),
		Status:  string(job.Status),
		Processing: models.ExportProcessing{
			StartedAt:   models.TimestampPtr(job.Processing.StartedAt),
			CompletedAt: models.TimestampPtr(job.Processing.CompletedAt),
			Progress:    job.Processing.Progress,
			Error:       job.Processing.Error,
		},
		Downloads: models.ExportDownloads{
			Total:          job.Downloads.Total,
			LastDownloaded: models.TimestampPtr(job.Downloads.LastDownloaded),
		},
		CreatedAt: models.Timestamp(job.CreatedAt),
		UpdatedAt: models.Timestamp(job.UpdatedAt),
	}
	if fi := job.FileInfo; fi != nil {
		out.FileInfo = &models.ExportFileInfo{
			Filename:        fi.Filename,
			Size:            fi.Size,
			MIMEType:        fi.MIMEType,
			URL:             fi.URL,
			StorageProvider: fi.StorageProvider,
		}
	}
	return out
}
