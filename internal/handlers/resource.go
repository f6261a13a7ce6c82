package handlers

import (
	"errors"
	"fmt"
	"io"
	"mime/multipart"
	"net/http"
	"os"
	"strconv"
	"strings"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"

	"github.com/openshelf/openshelf-backend/internal/logger"
	"github.com/openshelf/openshelf-backend/internal/middleware"
	"github.com/openshelf/openshelf-backend/internal/services"
	"github.com/openshelf/openshelf-backend/internal/types"
)

const maxUploadBytes = 50 << 20

type ResourceHandler struct {
	log              *logger.Logger
	ingestionService services.IngestionService
	resourceService  services.ResourceService
}

func NewResourceHandler(
	log *logger.Logger,
	ingestionService services.IngestionService,
	resourceService services.ResourceService,
) *ResourceHandler {
	return &ResourceHandler{
		log:              log.With("handler", "ResourceHandler"),
		ingestionService: ingestionService,
		resourceService:  resourceService,
	}
}

// POST /api/resources
// Multipart upload; the file is spooled to a temp path the pipeline owns.
func (rh *ResourceHandler) Upload(c *gin.Context) {
	userID, ok := middleware.UserID(c)
	if !ok {
		RespondError(c, http.StatusUnauthorized, "unauthorized", errors.New("missing user"))
		return
	}

	fileHeader, err := c.FormFile("file")
	if err != nil {
		RespondError(c, http.StatusBadRequest, "invalid_upload", errors.New("a file field is required"))
		return
	}
	if fileHeader.Size > maxUploadBytes {
		RespondError(c, http.StatusRequestEntityTooLarge, "file_too_large",
			fmt.Errorf("file exceeds the %d byte limit", maxUploadBytes))
		return
	}

	mimeType := fileHeader.Header.Get("Content-Type")
	mediaKind := mediaKindFor(mimeType)
	if mediaKind == "" {
		RespondError(c, http.StatusUnsupportedMediaType, "unsupported_media",
			fmt.Errorf("unsupported content type %q", mimeType))
		return
	}

	tempPath, err := spoolUpload(fileHeader)
	if err != nil {
		rh.log.Error("Failed to spool upload", "error", err)
		RespondError(c, http.StatusInternalServerError, "upload_failed", errors.New("could not store upload"))
		return
	}

	result, err := rh.ingestionService.IngestResource(c.Request.Context(), userID, services.ResourceUpload{
		TempPath:     tempPath,
		OriginalName: fileHeader.Filename,
		MimeType:     mimeType,
		SizeBytes:    fileHeader.Size,
		MediaKind:    mediaKind,
	})
	if err != nil {
		rh.respondIngestError(c, err)
		return
	}

	switch result.Status {
	case services.IngestAccepted:
		c.JSON(http.StatusCreated, result)
	default:
		c.JSON(http.StatusUnprocessableEntity, result)
	}
}

// GET /api/resources/:id
func (rh *ResourceHandler) Get(c *gin.Context) {
	resourceID, err := uuid.Parse(c.Param("id"))
	if err != nil {
		RespondError(c, http.StatusBadRequest, "invalid_id", errors.New("invalid resource id"))
		return
	}
	resource, err := rh.resourceService.GetResource(c.Request.Context(), resourceID)
	if err != nil {
		if errors.Is(err, services.ErrResourceNotFound) {
			RespondError(c, http.StatusNotFound, "not_found", err)
			return
		}
		RespondError(c, http.StatusInternalServerError, "internal", err)
		return
	}
	RespondOK(c, resource)
}

// GET /api/resources?limit=&offset=
func (rh *ResourceHandler) List(c *gin.Context) {
	limit, _ := strconv.Atoi(c.DefaultQuery("limit", "50"))
	offset, _ := strconv.Atoi(c.DefaultQuery("offset", "0"))
	resources, err := rh.resourceService.ListResources(c.Request.Context(), limit, offset)
	if err != nil {
		RespondError(c, http.StatusInternalServerError, "internal", err)
		return
	}
	RespondOK(c, gin.H{"resources": resources})
}

// GET /api/users/me/resources
func (rh *ResourceHandler) ListMine(c *gin.Context) {
	userID, ok := middleware.UserID(c)
	if !ok {
		RespondError(c, http.StatusUnauthorized, "unauthorized", errors.New("missing user"))
		return
	}
	resources, err := rh.resourceService.ListUserResources(c.Request.Context(), userID)
	if err != nil {
		RespondError(c, http.StatusInternalServerError, "internal", err)
		return
	}
	RespondOK(c, gin.H{"resources": resources})
}

// POST /api/resources/:id/claim
func (rh *ResourceHandler) Claim(c *gin.Context) {
	userID, ok := middleware.UserID(c)
	if !ok {
		RespondError(c, http.StatusUnauthorized, "unauthorized", errors.New("missing user"))
		return
	}
	resourceID, err := uuid.Parse(c.Param("id"))
	if err != nil {
		RespondError(c, http.StatusBadRequest, "invalid_id", errors.New("invalid resource id"))
		return
	}
	resource, err := rh.resourceService.ClaimResource(c.Request.Context(), resourceID, userID)
	if err != nil {
		switch {
		case errors.Is(err, services.ErrResourceNotFound):
			RespondError(c, http.StatusNotFound, "not_found", err)
		case errors.Is(err, services.ErrOwnResource):
			RespondError(c, http.StatusForbidden, "own_resource", err)
		case errors.Is(err, services.ErrAlreadyClaimed):
			RespondError(c, http.StatusConflict, "already_claimed", err)
		default:
			RespondError(c, http.StatusInternalServerError, "internal", err)
		}
		return
	}
	RespondOK(c, resource)
}

func (rh *ResourceHandler) respondIngestError(c *gin.Context, err error) {
	switch {
	case errors.Is(err, services.ErrStorageCommit):
		RespondError(c, http.StatusBadGateway, "storage_commit_failed", errors.New("could not store the file"))
	case errors.Is(err, services.ErrPersistence):
		RespondError(c, http.StatusInternalServerError, "persistence_failed", errors.New("could not save the resource"))
	case errors.Is(err, services.ErrLedger):
		RespondError(c, http.StatusInternalServerError, "ledger_failed", errors.New("could not credit the upload"))
	default:
		RespondError(c, http.StatusInternalServerError, "internal", errors.New("upload processing failed"))
	}
}

func mediaKindFor(mimeType string) string {
	mt := strings.ToLower(strings.TrimSpace(mimeType))
	switch {
	case strings.HasPrefix(mt, "image/"):
		return types.MediaKindImage
	case mt == "application/pdf",
		mt == "text/plain",
		mt == "text/html",
		strings.HasPrefix(mt, "application/vnd.openxmlformats-officedocument"),
		mt == "application/msword":
		return types.MediaKindDocument
	default:
		return ""
	}
}

func spoolUpload(fileHeader *multipart.FileHeader) (string, error) {
	src, err := fileHeader.Open()
	if err != nil {
		return "", fmt.Errorf("open upload: %w", err)
	}
	defer src.Close()

	tmp, err := os.CreateTemp("", "openshelf-upload-*")
	if err != nil {
		return "", fmt.Errorf("create temp file: %w", err)
	}
	if _, err := io.Copy(tmp, src); err != nil {
		tmp.Close()
		os.Remove(tmp.Name())
		return "", fmt.Errorf("write temp file: %w", err)
	}
	if err := tmp.Close(); err != nil {
		os.Remove(tmp.Name())
		return "", fmt.Errorf("close temp file: %w", err)
	}
	return tmp.Name(), nil
}
