package handler

import (
	"errors"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/rs/zerolog"

	"github.com/invitely/invitely/internal/api/middleware"
	"github.com/invitely/invitely/internal/api/models"
	"github.com/invitely/invitely/internal/api/response"
	"github.com/invitely/invitely/internal/asset"
)

// maxUploadBody bounds the whole multipart body: every file plus form overhead.
const maxUploadBody = asset.MaxFiles*asset.MaxFileSize + 1<<20

// AssetHandler handles asset upload and serving.
type AssetHandler struct {
	service *asset.Service
	logger  zerolog.Logger
}

// NewAssetHandler creates a new AssetHandler.
func NewAssetHandler(service *asset.Service, logger zerolog.Logger) *AssetHandler {
	return &AssetHandler{service: service, logger: logger}
}

// UploadAssets handles POST /api/export/upload-assets - store up to 10 images
// sent as multipart "files" fields.
func (h *AssetHandler) UploadAssets(w http.ResponseWriter, r *http.Request) {
	r.Body = http.MaxBytesReader(w, r.Body, maxUploadBody)
	if err := r.ParseMultipartForm(32 << 20); err != nil {
		response.BadRequest(w, r, "invalid multipart upload", nil)
		return
	}
	defer func() { _ = r.MultipartForm.RemoveAll() }()

	files, err := h.service.Upload(r.Context(), middleware.GetUserID(r.Context()), r.MultipartForm.File["files"])
	if err != nil {
		switch {
		case errors.Is(err, asset.ErrNoFiles),
			errors.Is(err, asset.ErrTooManyFiles),
			errors.Is(err, asset.ErrFileTooLarge),
			errors.Is(err, asset.ErrNotImage):
			response.BadRequest(w, r, err.Error(), nil)
		default:
			h.logger.Error().Err(err).Msg("failed to upload assets")
			response.InternalError(w, r, "failed to upload assets")
		}
		return
	}

	out := make([]models.UploadedFile, 0, len(files))
	for _, f := range files {
		out = append(out, models.UploadedFile{
			Filename:     f.Filename,
			OriginalName: f.OriginalName,
			Size:         f.Size,
			MIMEType:     f.MIMEType,
			URL:          f.URL,
		})
	}
	response.JSON(w, r, http.StatusOK, models.UploadResponse{
		Message: "Files uploaded successfully",
		Files:   out,
	})
}

// ServeAsset handles GET /uploads/assets/{filename}.
func (h *AssetHandler) ServeAsset(w http.ResponseWriter, r *http.Request) {
	body, contentType, err := h.service.Open(r.Context(), chi.URLParam(r, "filename"))
	if err != nil {
		if errors.Is(err, asset.ErrAssetNotFound) {
			response.NotFound(w, r, "asset not found")
			return
		}
		h.logger.Error().Err(err).Msg("failed to open asset")
		response.InternalError(w, r, "failed to open asset")
		return
	}
	defer body.Close()

	err = response.Stream(w, r, response.File{
		ContentType:  contentType,
		Body:         body,
		CacheControl: "public, max-age=86400",
	})
	if err != nil {
		h.logger.Warn().Err(err).Msg("asset transfer interrupted")
	}
}
