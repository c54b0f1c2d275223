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

// FarmerService is the farmer surface used over HTTP.
type FarmerService interface {
	Create(ctx context.Context, farmer models.Farmer, actorID string) (string, error)
	Get(ctx context.Context, id string) (*models.Farmer, error)
	Update(ctx context.Context, id string, fields docstore.Document) error
	Delete(ctx context.Context, id string) error
	ListAll(ctx context.Context) ([]models.Farmer, error)
	ListByCrop(ctx context.Context, cropID string) ([]models.Farmer, error)
}

// CropResolver turns typed crop references into catalog references.
type CropResolver interface {
	Ensure(ctx context.Context, ref models.CropRef, actorID string) (models.CropRef, error)
}

// VisitLister lists a farmer's visits.
type VisitLister interface {
	ListByFarmer(ctx context.Context, farmerID string) ([]models.Visit, error)
}

// PurchaseLister lists a farmer's purchases.
type PurchaseLister interface {
	ListByFarmer(ctx context.Context, farmerID string) ([]models.Purchase, error)
}

// ActivityService builds a farmer's timeline for one crop.
type ActivityService interface {
	ForFarmerCrop(ctx context.Context, farmerID, cropID string) ([]models.CropActivity, error)
}

// FarmerHandler serves /api/farmers.
type FarmerHandler struct {
	farmers   FarmerService
	crops     CropResolver
	visits    VisitLister
	purchases PurchaseLister
	activity  ActivityService
	logger    *zap.Logger
}

// NewFarmerHandler constructs the HTTP handler adapter.
func NewFarmerHandler(farmers FarmerService, crops CropResolver, visits VisitLister, purchases PurchaseLister, activity ActivityService, logger *zap.Logger) *FarmerHandler {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &FarmerHandler{
		farmers:   farmers,
		crops:     crops,
		visits:    visits,
		purchases: purchases,
		activity:  activity,
		logger:    logger,
	}
}

type cropInput struct {
	ID   string `json:"id"`
	Name string `json:"name" binding:"required_without=ID"`
}

type farmerRequest struct {
	Name         string      `json:"name" binding:"required,max=120"`
	Phone        string      `json:"phone" binding:"omitempty,max=20"`
	Village      string      `json:"village"`
	District     string      `json:"district"`
	State        string      `json:"state"`
	LandAcres    float64     `json:"landAcres" binding:"gte=0"`
	ProfileImage string      `json:"profileImage"`
	Crops        []cropInput `json:"crops" binding:"dive"`
}

type farmerPatch struct {
	Name         *string      `json:"name" binding:"omitempty,min=1,max=120"`
	Phone        *string      `json:"phone" binding:"omitempty,max=20"`
	Village      *string      `json:"village"`
	District     *string      `json:"district"`
	State        *string      `json:"state"`
	LandAcres    *float64     `json:"landAcres" binding:"omitempty,gte=0"`
	ProfileImage *string      `json:"profileImage"`
	Crops        *[]cropInput `json:"crops" binding:"omitempty,dive"`
}

// Create registers a farmer.
func (h *FarmerHandler) Create(c *gin.Context) {
	var req farmerRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, h.logger, err)
		return
	}
	if req.ProfileImage != "" {
		if err := validImages(req.ProfileImage); err != nil {
			badRequest(c, h.logger, err)
			return
		}
	}

	crops, err := h.resolveCrops(c, req.Crops)
	if err != nil {
		storeFailure(c, h.logger, "failed to resolve crops", err)
		return
	}

	id, err := h.farmers.Create(c.Request.Context(), models.Farmer{
		Name:         req.Name,
		Phone:        req.Phone,
		Village:      req.Village,
		District:     req.District,
		State:        req.State,
		LandAcres:    req.LandAcres,
		ProfileImage: req.ProfileImage,
		Crops:        crops,
	}, actorID(c))
	if err != nil {
		storeFailure(c, h.logger, "failed to create farmer", err)
		return
	}

	c.JSON(http.StatusCreated, gin.H{"id": id})
}

// Get returns one farmer.
func (h *FarmerHandler) Get(c *gin.Context) {
	farmer, err := h.farmers.Get(c.Request.Context(), c.Param("id"))
	if err != nil {
		storeFailure(c, h.logger, "failed to load farmer", err)
		return
	}
	if farmer == nil {
		notFound(c, "farmer")
		return
	}
	c.JSON(http.StatusOK, farmer)
}

// List returns every farmer, or those growing ?cropId=.
func (h *FarmerHandler) List(c *gin.Context) {
	var (
		list []models.Farmer
		err  error
	)
	if cropID := c.Query("cropId"); cropID != "" {
		list, err = h.farmers.ListByCrop(c.Request.Context(), cropID)
	} else {
		list, err = h.farmers.ListAll(c.Request.Context())
	}
	if err != nil {
		storeFailure(c, h.logger, "failed to list farmers", err)
		return
	}
	c.JSON(http.StatusOK, list)
}

// Update merges the provided fields into the farmer.
func (h *FarmerHandler) Update(c *gin.Context) {
	var req farmerPatch
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, h.logger, err)
		return
	}

	if req.ProfileImage != nil && *req.ProfileImage != "" {
		if err := validImages(*req.ProfileImage); err != nil {
			badRequest(c, h.logger, err)
			return
		}
	}

	fields := docstore.Document{}
	setIfPresent(fields, "name", req.Name)
	setIfPresent(fields, "phone", req.Phone)
	setIfPresent(fields, "village", req.Village)
	setIfPresent(fields, "district", req.District)
	setIfPresent(fields, "state", req.State)
	setIfPresent(fields, "landAcres", req.LandAcres)
	setIfPresent(fields, "profileImage", req.ProfileImage)
	if req.Crops != nil {
		crops, err := h.resolveCrops(c, *req.Crops)
		if err != nil {
			storeFailure(c, h.logger, "failed to resolve crops", err)
			return
		}
		fields["crops"] = crops
	}
	if len(fields) == 0 {
		badRequest(c, h.logger, errors.New("no fields to update"))
		return
	}

	if err := h.farmers.Update(c.Request.Context(), c.Param("id"), fields); err != nil {
		storeFailure(c, h.logger, "failed to update farmer", err)
		return
	}
	c.Status(http.StatusNoContent)
}

// Delete removes a farmer.
func (h *FarmerHandler) Delete(c *gin.Context) {
	if err := h.farmers.Delete(c.Request.Context(), c.Param("id")); err != nil {
		storeFailure(c, h.logger, "failed to delete farmer", err)
		return
	}
	c.Status(http.StatusNoContent)
}

// Visits lists the farmer's visits, most recent first.
func (h *FarmerHandler) Visits(c *gin.Context) {
	list, err := h.visits.ListByFarmer(c.Request.Context(), c.Param("id"))
	if err != nil {
		storeFailure(c, h.logger, "failed to list visits", err)
		return
	}
	c.JSON(http.StatusOK, list)
}

// Purchases lists the farmer's purchases, most recent first.
func (h *FarmerHandler) Purchases(c *gin.Context) {
	list, err := h.purchases.ListByFarmer(c.Request.Context(), c.Param("id"))
	if err != nil {
		storeFailure(c, h.logger, "failed to list purchases", err)
		return
	}
	c.JSON(http.StatusOK, list)
}

// Activity returns the farmer's visits and purchases for one crop.
func (h *FarmerHandler) Activity(c *gin.Context) {
	list, err := h.activity.ForFarmerCrop(c.Request.Context(), c.Param("id"), c.Param("cropId"))
	if err != nil {
		storeFailure(c, h.logger, "failed to load crop activity", err)
		return
	}
	c.JSON(http.StatusOK, list)
}

func (h *FarmerHandler) resolveCrops(c *gin.Context, in []cropInput) ([]models.CropRef, error) {
	out := make([]models.CropRef, 0, len(in))
	for _, ci := range in {
		ref, err := h.crops.Ensure(c.Request.Context(), models.CropRef{ID: ci.ID, Name: ci.Name}, actorID(c))
		if err != nil {
			return nil, err
		}
		out = append(out, ref)
	}
	return out, nil
}
