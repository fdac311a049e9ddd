package handlers

import (
	"io"
	"net/http"

	"bailian-gateway/internal/api/response"
	"bailian-gateway/internal/pkg/errors"
	"bailian-gateway/internal/services"
)

// multipart overhead allowed on top of the file itself
const multipartSlack = 1 << 20

// FileUploadHandler handles media uploads for multimodal messages
type FileUploadHandler struct {
	mediaService services.MediaService
	maxBytes     int64
}

// NewFileUploadHandler creates a new FileUploadHandler
func NewFileUploadHandler(mediaService services.MediaService, maxBytes int64) *FileUploadHandler {
	return &FileUploadHandler{
		mediaService: mediaService,
		maxBytes:     maxBytes,
	}
}

// Upload godoc
// @Summary Upload a media file
// @Description Stores an image or video and returns a URL usable in multimodal messages
// @Tags media
// @Accept multipart/form-data
// @Produce json
// @Param file formData file true "File to upload"
// @Success 201 {object} services.UploadedMedia
// @Failure 400 {string} string "Invalid upload"
// @Failure 401 {string} string "Unauthorized"
// @Router /api/media/upload [post]
func (h *FileUploadHandler) Upload(w http.ResponseWriter, r *http.Request) {
	identity, err := currentIdentity(r)
	if err != nil {
		response.Error(w, r, err)
		return
	}

	r.Body = http.MaxBytesReader(w, r.Body, h.maxBytes+multipartSlack)
	if err := r.ParseMultipartForm(h.maxBytes); err != nil {
		response.Error(w, r, errors.Validation(errors.ErrInvalidInput, "Invalid multipart form"))
		return
	}

	file, header, err := r.FormFile("file")
	if err != nil {
		response.Error(w, r, errors.Validation(errors.ErrInvalidInput, "Missing file field"))
		return
	}
	defer file.Close()

	if header.Size > h.maxBytes {
		response.Error(w, r, errors.Validation(errors.ErrInvalidInput, "File size exceeds the maximum allowed limit"))
		return
	}

	data, err := io.ReadAll(file)
	if err != nil {
		response.Error(w, r, errors.Validation(errors.ErrInvalidInput, "Could not read file"))
		return
	}

	uploaded, err := h.mediaService.Upload(r.Context(), identity.UserID, header.Filename, data)
	if err != nil {
		response.Error(w, r, err)
		return
	}

	response.JSON(w, r, http.StatusCreated, uploaded)
}
