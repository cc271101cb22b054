package handler

import (
	"errors"
	"io"
	"mime"
	"mime/multipart"
	"net/http"

	"github.com/gin-gonic/gin"

	"pothole-detect/internal/app"
	"pothole-detect/internal/logger"
	"pothole-detect/internal/transport/http/response"
	"pothole-detect/internal/vision"
)

const formFileField = "file"

var (
	errNoFileProvided = errors.New("no file part in request")
	errNoFileSelected = errors.New("file part has an empty filename")
)

// DetectHandler serves pothole detection uploads.
type DetectHandler struct {
	service  *app.DetectService
	maxBytes int64
}

func NewDetectHandler(service *app.DetectService, maxBytes int64) *DetectHandler {
	return &DetectHandler{service: service, maxBytes: maxBytes}
}

// Detect classifies an uploaded road image. The body is streamed part by part
// straight into the scratch store, capped at maxBytes.
//
//	@Summary	Detect a pothole in an uploaded image
//	@Tags		detection
//	@Accept		multipart/form-data
//	@Produce	json
//	@Param		file	formData	file	true	"road image"
//	@Success	200		{object}	model.Prediction
//	@Failure	400		{object}	response.ErrorResponse
//	@Failure	413		{object}	response.ErrorResponse
//	@Failure	500		{object}	response.ErrorResponse
//	@Router		/detect [post]
func (h *DetectHandler) Detect(c *gin.Context) {
	ctx := c.Request.Context()
	log := logger.FromContext(ctx)
	log.Debug("/detect endpoint hit")

	if h.maxBytes > 0 {
		c.Request.Body = http.MaxBytesReader(c.Writer, c.Request.Body, h.maxBytes)
	}

	part, err := nextFilePart(c.Request)
	switch {
	case isTooLarge(err):
		log.Debug("file too large", "max_bytes", h.maxBytes)
		response.Error(c, http.StatusRequestEntityTooLarge, response.MsgFileTooLarge)
		return
	case errors.Is(err, errNoFileSelected):
		log.Debug("no file selected")
		response.Error(c, http.StatusBadRequest, response.MsgNoFileSelected)
		return
	case err != nil:
		log.Debug("no file provided in request", "error", err)
		response.Error(c, http.StatusBadRequest, response.MsgNoFileProvided)
		return
	}
	defer part.Close()

	result, err := h.service.Detect(ctx, app.DetectInput{
		Filename: part.FileName(),
		Body:     part,
	})
	if err != nil {
		h.fail(c, err)
		return
	}

	response.OK(c, result)
}

func (h *DetectHandler) fail(c *gin.Context, err error) {
	log := logger.FromContext(c.Request.Context())
	switch {
	case isTooLarge(err):
		log.Debug("file too large", "max_bytes", h.maxBytes)
		response.Error(c, http.StatusRequestEntityTooLarge, response.MsgFileTooLarge)
		return
	case errors.Is(err, app.ErrUploadSave):
		log.Error("saving upload failed", "error", err)
	case vision.KindOf(err) != "":
		log.Error("error during model prediction", "kind", vision.KindOf(err), "error", err)
	default:
		log.Error("error processing image for detection", "error", err)
	}
	response.Error(c, http.StatusInternalServerError, response.MsgDetectionFailed)
}

// nextFilePart advances to the first part named "file" that carries a
// filename parameter. Parts without one are plain form values and are skipped,
// so a text field called "file" does not count as an upload.
func nextFilePart(r *http.Request) (*multipart.Part, error) {
	reader, err := r.MultipartReader()
	if err != nil {
		return nil, errors.Join(errNoFileProvided, err)
	}

	for {
		part, err := reader.NextPart()
		if errors.Is(err, io.EOF) {
			return nil, errNoFileProvided
		}
		if err != nil {
			return nil, errors.Join(errNoFileProvided, err)
		}

		if part.FormName() != formFileField || !hasFilenameParam(part) {
			_ = part.Close()
			continue
		}
		if part.FileName() == "" {
			_ = part.Close()
			return nil, errNoFileSelected
		}
		return part, nil
	}
}

func hasFilenameParam(part *multipart.Part) bool {
	_, params, err := mime.ParseMediaType(part.Header.Get("Content-Disposition"))
	if err != nil {
		return false
	}
	_, ok := params["filename"]
	return ok
}

func isTooLarge(err error) bool {
	var maxErr *http.MaxBytesError
	return errors.As(err, &maxErr)
}
