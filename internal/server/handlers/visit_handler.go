package handlers

import (
	"context"
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"github.com/mamadbah2/fieldtrack/internal/docstore"
	"github.com/mamadbah2/fieldtrack/internal/domain/models"
)

// VisitService is the visit surface used over HTTP.
type VisitService interface {
	Create(ctx context.Context, visit models.Visit, actorID string) (string, error)
	Get(ctx context.Context, id string) (*models.Visit, error)
	Update(ctx context.Context, id string, fields docstore.Document) error
	Delete(ctx context.Context, id string) error
	ListByCrop(ctx context.Context, cropID string) ([]models.Visit, error)
}

// VisitHandler serves /api/visits.
type VisitHandler struct {
	visits VisitService
	crops  CropResolver
	logger *zap.Logger
}

// NewVisitHandler constructs the HTTP handler adapter.
func NewVisitHandler(visits VisitService, crops CropResolver, logger *zap.Logger) *VisitHandler {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &VisitHandler{visits: visits, crops: crops, logger: logger}
}

type visitRequest struct {
	FarmerID        string    `json:"farmerId" binding:"required"`
	Crop            cropInput `json:"crop" binding:"required"`
	Date            string    `json:"date"`
	NextVisitDate   string    `json:"nextVisitDate"`
	CropHealth      string    `json:"cropHealth" binding:"required,oneof=good average poor"`
	Notes           string    `json:"notes"`
	Recommendations string    `json:"recommendations"`
	Images          []string  `json:"images" binding:"max=5"`
}

type visitPatch struct {
	Crop            *cropInput `json:"crop"`
	Date            *string    `json:"date"`
	NextVisitDate   *string    `json:"nextVisitDate"`
	CropHealth      *string    `json:"cropHealth" binding:"omitempty,oneof=good average poor"`
	Notes           *string    `json:"notes"`
	Recommendations *string    `json:"recommendations"`
	Images          *[]string  `json:"images" binding:"omitempty,max=5"`
}

// Create records a visit and stamps the farmer's last visit date.
func (h *VisitHandler) Create(c *gin.Context) {
	var req visitRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, h.logger, err)
		return
	}
	if err := validDate(req.Date); err != nil {
		badRequest(c, h.logger, err)
		return
	}
	if err := validImages(req.Images...); err != nil {
		badRequest(c, h.logger, err)
		return
	}

	crop, err := h.crops.Ensure(c.Request.Context(), models.CropRef{ID: req.Crop.ID, Name: req.Crop.Name}, actorID(c))
	if err != nil {
		storeFailure(c, h.logger, "failed to resolve crop", err)
		return
	}

	id, err := h.visits.Create(c.Request.Context(), models.Visit{
		FarmerID:        req.FarmerID,
		Crop:            crop,
		Date:            req.Date,
		NextVisitDate:   req.NextVisitDate,
		CropHealth:      models.CropHealth(req.CropHealth),
		Notes:           req.Notes,
		Recommendations: req.Recommendations,
		Images:          req.Images,
	}, actorID(c))
	if err != nil {
		if id != "" {
			h.logger.Warn("visit stored but farmer not stamped", zap.String("visit_id", id), zap.Error(err))
			c.JSON(http.StatusCreated, gin.H{"id": id, "warning": "farmer last visit date not updated"})
			return
		}
		storeFailure(c, h.logger, "failed to create visit", err)
		return
	}

	c.JSON(http.StatusCreated, gin.H{"id": id})
}

// Get returns one visit.
func (h *VisitHandler) Get(c *gin.Context) {
	visit, err := h.visits.Get(c.Request.Context(), c.Param("id"))
	if err != nil {
		storeFailure(c, h.logger, "failed to load visit", err)
		return
	}
	if visit == nil {
		notFound(c, "visit")
		return
	}
	c.JSON(http.StatusOK, visit)
}

// ListByCrop returns the visits recorded for ?cropId=.
func (h *VisitHandler) ListByCrop(c *gin.Context) {
	cropID := c.Query("cropId")
	if cropID == "" {
		badRequest(c, h.logger, errors.New("cropId is required"))
		return
	}
	list, err := h.visits.ListByCrop(c.Request.Context(), cropID)
	if err != nil {
		storeFailure(c, h.logger, "failed to list visits", err)
		return
	}
	c.JSON(http.StatusOK, list)
}

// Update merges the provided fields into the visit.
func (h *VisitHandler) Update(c *gin.Context) {
	var req visitPatch
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, h.logger, err)
		return
	}
	if req.Date != nil {
		if err := validDate(*req.Date); err != nil {
			badRequest(c, h.logger, err)
			return
		}
	}
	if req.Images != nil {
		if err := validImages(*req.Images...); err != nil {
			badRequest(c, h.logger, err)
			return
		}
	}

	fields := docstore.Document{}
	setIfPresent(fields, "date", req.Date)
	setIfPresent(fields, "nextVisitDate", req.NextVisitDate)
	setIfPresent(fields, "cropHealth", req.CropHealth)
	setIfPresent(fields, "notes", req.Notes)
	setIfPresent(fields, "recommendations", req.Recommendations)
	setIfPresent(fields, "images", req.Images)
	if req.Crop != nil {
		crop, err := h.crops.Ensure(c.Request.Context(), models.CropRef{ID: req.Crop.ID, Name: req.Crop.Name}, actorID(c))
		if err != nil {
			storeFailure(c, h.logger, "failed to resolve crop", err)
			return
		}
		fields["crop"] = crop
	}
	if len(fields) == 0 {
		badRequest(c, h.logger, errors.New("no fields to update"))
		return
	}

	if err := h.visits.Update(c.Request.Context(), c.Param("id"), fields); err != nil {
		storeFailure(c, h.logger, "failed to update visit", err)
		return
	}
	c.Status(http.StatusNoContent)
}

// Delete removes a visit.
func (h *VisitHandler) Delete(c *gin.Context) {
	if err := h.visits.Delete(c.Request.Context(), c.Param("id")); err != nil {
		storeFailure(c, h.logger, "failed to delete visit", err)
		return
	}
	c.Status(http.StatusNoContent)
}

func validDate(s string) error {
	if s == "" {
		return nil
	}
	if _, err := docstore.ParseTime(s); err != nil {
		return errors.New("date must be RFC 3339 or YYYY-MM-DD")
	}
	return nil
}
