package handler

import (
	"context"

	"github.com/gin-gonic/gin"

	"github.com/rcffuta/elib-api/internal/dto"
	"github.com/rcffuta/elib-api/internal/models"
	appErrors "github.com/rcffuta/elib-api/pkg/errors"
	"github.com/rcffuta/elib-api/pkg/response"
	"github.com/rcffuta/elib-api/pkg/storage"
)

type materialService interface {
	Create(ctx context.Context, req dto.CreateMaterialRequest, uploadedBy string) (*models.Material, error)
}

type uploadService interface {
	Signature(adminID string) (*storage.UploadSignature, error)
}

// MaterialHandler registers uploaded materials.
type MaterialHandler struct {
	materials materialService
	uploads   uploadService
}

// NewMaterialHandler constructs a MaterialHandler.
func NewMaterialHandler(materials materialService, uploads uploadService) *MaterialHandler {
	return &MaterialHandler{materials: materials, uploads: uploads}
}

// UploadSignature godoc
// @Summary Signed upload parameters
// @Description Returns a signature for uploading directly to the media host
// @Tags Materials
// @Produce json
// @Success 200 {object} response.Envelope
// @Router /admin/uploads/signature [post]
func (h *MaterialHandler) UploadSignature(c *gin.Context) {
	sig, err := h.uploads.Signature(currentUserID(c))
	if err != nil {
		response.Error(c, err)
		return
	}
	response.OK(c, sig)
}

// Create godoc
// @Summary Save material metadata
// @Tags Materials
// @Accept json
// @Produce json
// @Param payload body dto.CreateMaterialRequest true "Material"
// @Success 201 {object} response.Envelope
// @Failure 400 {object} response.Envelope
// @Failure 404 {object} response.Envelope
// @Router /admin/materials [post]
func (h *MaterialHandler) Create(c *gin.Context) {
	var req dto.CreateMaterialRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error(c, appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, "invalid material payload"))
		return
	}
	material, err := h.materials.Create(c.Request.Context(), req, currentUserID(c))
	if err != nil {
		response.Error(c, err)
		return
	}
	response.Created(c, material)
}
