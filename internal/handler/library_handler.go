package handler

import (
	"context"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/rcffuta/elib-api/internal/dto"
	"github.com/rcffuta/elib-api/internal/models"
	appErrors "github.com/rcffuta/elib-api/pkg/errors"
	"github.com/rcffuta/elib-api/pkg/response"
)

type libraryService interface {
	Dashboard(ctx context.Context, userID, search string) (*models.Dashboard, error)
	CourseMaterials(ctx context.Context, userID, courseID string) (*models.Course, []models.Material, error)
	TrackDownload(ctx context.Context, materialID, userID string) (string, bool, error)
}

// LibraryHandler serves the student-facing library.
type LibraryHandler struct {
	library libraryService
}

// NewLibraryHandler constructs a LibraryHandler.
func NewLibraryHandler(library libraryService) *LibraryHandler {
	return &LibraryHandler{library: library}
}

// Dashboard godoc
// @Summary Student dashboard
// @Description Profile summary plus the courses eligible for the caller's department and level
// @Tags Library
// @Produce json
// @Param q query string false "Case-insensitive match on course code or title"
// @Success 200 {object} response.Envelope
// @Failure 401 {object} response.Envelope
// @Failure 503 {object} response.Envelope
// @Router /library/dashboard [get]
func (h *LibraryHandler) Dashboard(c *gin.Context) {
	dashboard, err := h.library.Dashboard(c.Request.Context(), currentUserID(c), c.Query("q"))
	if err != nil {
		response.Error(c, err)
		return
	}
	response.OK(c, dashboard)
}

// CourseMaterials godoc
// @Summary Materials of an eligible course
// @Tags Library
// @Produce json
// @Param id path string true "Course ID"
// @Success 200 {object} response.Envelope
// @Failure 404 {object} response.Envelope
// @Router /library/courses/{id}/materials [get]
func (h *LibraryHandler) CourseMaterials(c *gin.Context) {
	course, materials, err := h.library.CourseMaterials(c.Request.Context(), currentUserID(c), c.Param("id"))
	if err != nil {
		response.Error(c, err)
		return
	}
	response.OK(c, dto.CourseMaterialsResponse{Course: *course, Materials: materials})
}

// Download godoc
// @Summary Track a download
// @Description Records the download and returns the file location
// @Tags Library
// @Produce json
// @Param id path string true "Material ID"
// @Success 200 {object} response.Envelope
// @Failure 401 {object} response.Envelope
// @Failure 404 {object} response.Envelope
// @Failure 429 {object} response.Envelope
// @Router /library/materials/{id}/download [post]
func (h *LibraryHandler) Download(c *gin.Context) {
	materialID := c.Param("id")
	fileURL, found, err := h.library.TrackDownload(c.Request.Context(), materialID, currentUserID(c))
	if err != nil {
		response.Error(c, err)
		return
	}
	if !found {
		response.Error(c, appErrors.Clone(appErrors.ErrNotFound, "file unavailable"))
		return
	}
	response.JSON(c, http.StatusOK, dto.DownloadResponse{MaterialID: materialID, FileURL: fileURL}, nil)
}
