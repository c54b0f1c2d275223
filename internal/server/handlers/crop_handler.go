package handlers

import (
	"context"
	"net/http"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"github.com/mamadbah2/fieldtrack/internal/domain/models"
)

// CropService is the crop catalog surface used over HTTP.
type CropService interface {
	Create(ctx context.Context, name, actorID string) (string, error)
	Get(ctx context.Context, id string) (*models.Crop, error)
	List(ctx context.Context) ([]models.Crop, error)
	Delete(ctx context.Context, id string) error
}

// CropHandler serves /api/crops.
type CropHandler struct {
	crops  CropService
	logger *zap.Logger
}

// NewCropHandler constructs the HTTP handler adapter.
func NewCropHandler(crops CropService, logger *zap.Logger) *CropHandler {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &CropHandler{crops: crops, logger: logger}
}

type cropRequest struct {
	Name string `json:"name" binding:"required,max=80"`
}

// Create adds a crop to the catalog.
func (h *CropHandler) Create(c *gin.Context) {
	var req cropRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, h.logger, err)
		return
	}

	id, err := h.crops.Create(c.Request.Context(), req.Name, actorID(c))
	if err != nil {
		storeFailure(c, h.logger, "failed to create crop", err)
		return
	}
	c.JSON(http.StatusCreated, gin.H{"id": id})
}

// List returns the catalog ordered by name.
func (h *CropHandler) List(c *gin.Context) {
	list, err := h.crops.List(c.Request.Context())
	if err != nil {
		storeFailure(c, h.logger, "failed to list crops", err)
		return
	}
	c.JSON(http.StatusOK, list)
}

// Get returns one crop.
func (h *CropHandler) Get(c *gin.Context) {
	crop, err := h.crops.Get(c.Request.Context(), c.Param("id"))
	if err != nil {
		storeFailure(c, h.logger, "failed to load crop", err)
		return
	}
	if crop == nil {
		notFound(c, "crop")
		return
	}
	c.JSON(http.StatusOK, crop)
}

// Delete removes a crop from the catalog.
func (h *CropHandler) Delete(c *gin.Context) {
	if err := h.crops.Delete(c.Request.Context(), c.Param("id")); err != nil {
		storeFailure(c, h.logger, "failed to delete crop", err)
		return
	}
	c.Status(http.StatusNoContent)
}
